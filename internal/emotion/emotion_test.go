package emotion

import (
	"context"
	"image/color"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/petmood/internal/errors"
	"github.com/tphakala/petmood/internal/observability/metrics"
	fixtures "github.com/tphakala/petmood/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBackend returns fixed outputs and records the last input.
type fakeBackend struct {
	mu        sync.Mutex
	size      int
	layout    Layout
	outputs   []float32
	err       error
	lastInput []float32
	closed    bool
	block     chan struct{}
	started   chan struct{}
}

func (f *fakeBackend) Name() string   { return "fake" }
func (f *fakeBackend) Layout() Layout { return f.layout }
func (f *fakeBackend) InputSize() int { return f.size }

func (f *fakeBackend) Run(input []float32) ([]float32, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return append([]float32(nil), f.outputs...), nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func sumProbabilities(p *Prediction) float64 {
	var sum float64
	for _, v := range p.Probabilities() {
		sum += v
	}
	return sum
}

func TestParseSpecies(t *testing.T) {
	t.Parallel()

	sp, err := ParseSpecies(" Dog ")
	require.NoError(t, err)
	assert.Equal(t, SpeciesDog, sp)

	_, err = ParseSpecies("ferret")
	require.Error(t, err)

	labels := SpeciesCat.Labels()
	labels[0] = "mutated"
	assert.Equal(t, []string{"angry", "happy", "sad"}, SpeciesCat.Labels())
	assert.Equal(t, []string{"angry", "happy", "relaxed", "sad"}, SpeciesDog.Labels())
}

func TestParseNormalization(t *testing.T) {
	t.Parallel()

	n, err := ParseNormalization("", NormalizationImageNet)
	require.NoError(t, err)
	assert.Equal(t, NormalizationImageNet, n)

	n, err = ParseNormalization("RAW255", NormalizationUnit)
	require.NoError(t, err)
	assert.Equal(t, NormalizationRaw255, n)

	_, err = ParseNormalization("zscore", NormalizationUnit)
	require.Error(t, err)
}

func TestSoftmax(t *testing.T) {
	t.Parallel()

	probs := softmax([]float32{1, 2, 3})
	var sum float64
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, probs[2], probs[1])

	// Large logits must not overflow.
	probs = softmax([]float32{1000, 1000, 999})
	for _, p := range probs {
		assert.False(t, math.IsNaN(p))
	}
	assert.InDelta(t, probs[0], probs[1], 1e-12)
}

func TestRenormalize(t *testing.T) {
	t.Parallel()

	probs, ok := renormalize([]float32{0.2, 0.2, 0.4})
	require.True(t, ok)
	assert.InDelta(t, 0.5, probs[2], 1e-6)

	_, ok = renormalize([]float32{0, -1, 0})
	assert.False(t, ok)
}

func TestNewPredictionTieGoesToFirstLabel(t *testing.T) {
	t.Parallel()

	p := newPrediction([]string{"angry", "happy", "sad"}, []float64{0.25, 0.375, 0.375})
	assert.Equal(t, "happy", p.Label)
	assert.InDelta(t, 0.375, p.Confidence, 0)

	dist := p.Probabilities()
	dist["happy"] = 0
	assert.InDelta(t, 0.375, p.Probabilities()["happy"], 0)
}

func TestPreprocessNormalization(t *testing.T) {
	t.Parallel()

	img, err := decodeImage(fixtures.SolidPNG(t, 4, color.RGBA{R: 128, G: 128, B: 128, A: 255}))
	require.NoError(t, err)

	tests := []struct {
		name          string
		normalization Normalization
		want          [channels]float32
	}{
		{"unit", NormalizationUnit, [channels]float32{128.0 / 255, 128.0 / 255, 128.0 / 255}},
		{"raw255", NormalizationRaw255, [channels]float32{128, 128, 128}},
		{"imagenet", NormalizationImageNet, [channels]float32{
			(128.0/255 - 0.485) / 0.229,
			(128.0/255 - 0.456) / 0.224,
			(128.0/255 - 0.406) / 0.225,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := preprocessor{size: 4, normalization: tt.normalization, layout: LayoutNCHW}
			out := p.tensor(img)
			require.Len(t, out, channels*16)
			for ch := range channels {
				assert.InDelta(t, tt.want[ch], out[ch*16], 1e-5, "channel %d", ch)
				assert.InDelta(t, tt.want[ch], out[ch*16+15], 1e-5, "channel %d", ch)
			}
		})
	}
}

func TestPreprocessLayout(t *testing.T) {
	t.Parallel()

	img, err := decodeImage(fixtures.SolidPNG(t, 2, color.RGBA{R: 255, G: 0, B: 51, A: 255}))
	require.NoError(t, err)

	nchw := preprocessor{size: 2, normalization: NormalizationRaw255, layout: LayoutNCHW}.tensor(img)
	assert.Equal(t, []float32{255, 255, 255, 255, 0, 0, 0, 0, 51, 51, 51, 51}, nchw)

	nhwc := preprocessor{size: 2, normalization: NormalizationRaw255, layout: LayoutNHWC}.tensor(img)
	assert.Equal(t, []float32{255, 0, 51, 255, 0, 51, 255, 0, 51, 255, 0, 51}, nhwc)
}

func TestDecodeJPEG(t *testing.T) {
	t.Parallel()

	img, err := decodeImage(fixtures.SolidJPEG(t, 8, color.Black))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	_, err = decodeImage([]byte("GIF89a but not really"))
	require.ErrorIs(t, err, ErrDecode)
}

func TestPreprocessResizes(t *testing.T) {
	t.Parallel()

	img, err := decodeImage(fixtures.SolidPNG(t, 37, color.White))
	require.NoError(t, err)

	out := preprocessor{size: DefaultInputSize, normalization: NormalizationUnit, layout: LayoutNCHW}.tensor(img)
	require.Len(t, out, channels*DefaultInputSize*DefaultInputSize)
	assert.InDelta(t, 1.0, out[len(out)/2], 0.01)
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := decodeImage([]byte("definitely not an image"))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.ErrorIs(t, err, ErrDecode)

	_, err = decodeImage(nil)
	require.ErrorIs(t, err, ErrDecode)
}

func TestDetectorPredict(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{size: 8, layout: LayoutNCHW, outputs: []float32{0.1, 2.5, 0.3}}
	d := NewReady(SpeciesCat, backend)
	require.True(t, d.Ready())
	assert.Equal(t, "fake", d.BackendName())

	for _, c := range []color.Color{color.Black, color.White} {
		pred, err := d.Predict(t.Context(), fixtures.SolidPNG(t, 16, c))
		require.NoError(t, err)
		assert.Equal(t, "happy", pred.Label)
		assert.InDelta(t, 1.0, sumProbabilities(pred), 1e-9)
		assert.ElementsMatch(t, SpeciesCat.Labels(), keys(pred.Probabilities()))
		assert.Len(t, backend.lastInput, channels*8*8)
	}

	require.NoError(t, d.Close())
	assert.True(t, backend.closed)
}

func TestDetectorProbabilitiesOutput(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{size: 4, layout: LayoutNHWC, outputs: []float32{0.1, 0.1, 0.6, 0.2}}
	d := NewReady(SpeciesDog, backend, WithProbabilities(true))

	pred, err := d.Predict(t.Context(), fixtures.SolidPNG(t, 4, color.Gray{Y: 90}))
	require.NoError(t, err)
	assert.Equal(t, "relaxed", pred.Label)
	assert.InDelta(t, 0.6, pred.Confidence, 1e-6)
	assert.InDelta(t, 1.0, sumProbabilities(pred), 1e-9)
}

func TestDetectorLabelOrderOverride(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{size: 4, layout: LayoutNCHW, outputs: []float32{5, 0, 0}}
	d := NewReady(SpeciesCat, backend, WithLabels([]string{"sad", "angry", "happy"}))

	pred, err := d.Predict(t.Context(), fixtures.SolidPNG(t, 4, color.White))
	require.NoError(t, err)
	assert.Equal(t, "sad", pred.Label)
}

func TestDetectorInferenceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend *fakeBackend
	}{
		{"backend error", &fakeBackend{size: 4, err: errors.NewStd("boom")}},
		{"wrong output length", &fakeBackend{size: 4, outputs: []float32{1, 2}}},
		{"nan output", &fakeBackend{size: 4, outputs: []float32{float32(math.NaN()), 1, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewReady(SpeciesCat, tt.backend)
			_, err := d.Predict(t.Context(), fixtures.SolidPNG(t, 4, color.White))
			var infErr *InferenceError
			require.ErrorAs(t, err, &infErr)
			assert.Equal(t, SpeciesCat, infErr.Species)
			assert.ErrorIs(t, err, ErrInference)
		})
	}
}

func TestDetectorDecodeError(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{size: 4, outputs: []float32{1, 2, 3}}
	d := NewReady(SpeciesCat, backend)

	_, err := d.Predict(t.Context(), []byte{0x00, 0x01, 0x02})
	require.ErrorIs(t, err, ErrDecode)
	assert.Nil(t, backend.lastInput)
}

func TestDetectorRejectsOversizedImage(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{size: 4, outputs: []float32{1, 2, 3}}
	d := NewReady(SpeciesCat, backend)

	_, err := d.Predict(t.Context(), fixtures.PNGWithDeclaredSize(t, 12000, 12000))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.ErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, err, errTooLarge)
	assert.Nil(t, backend.lastInput)

	// the rewritten header round-trips for a real size
	_, err = decodeImage(fixtures.PNGWithDeclaredSize(t, 1, 1))
	require.NoError(t, err)
}

func TestUnavailableDetector(t *testing.T) {
	t.Parallel()

	d := NewUnavailable(SpeciesDog, "model file missing")
	assert.False(t, d.Ready())
	assert.Empty(t, d.BackendName())
	assert.Equal(t, "model file missing", d.Reason())

	_, err := d.Predict(t.Context(), fixtures.SolidPNG(t, 4, color.White))
	var unavailable *ModelUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, SpeciesDog, unavailable.Species)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
	require.NoError(t, d.Close())
}

func TestDetectorHonorsContextWhileWaiting(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		size:    4,
		outputs: []float32{1, 2, 3},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	d := NewReady(SpeciesCat, backend, WithMaxConcurrent(1))
	img := fixtures.SolidPNG(t, 4, color.White)

	done := make(chan error, 1)
	go func() {
		_, err := d.Predict(context.Background(), img)
		done <- err
	}()
	<-backend.started

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := d.Predict(ctx, img)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, err, ErrInference)

	close(backend.block)
	require.NoError(t, <-done)
}

func TestDetectorRecordsMetrics(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewEmotionMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	backend := &fakeBackend{size: 4, outputs: []float32{3, 1, 1}}
	d := NewReady(SpeciesCat, backend, WithMetrics(m))

	_, err = d.Predict(t.Context(), fixtures.SolidPNG(t, 4, color.White))
	require.NoError(t, err)
	_, err = d.Predict(t.Context(), []byte("junk"))
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("cat", "angry")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PredictionErrors.WithLabelValues("cat", "decode")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DetectorReadyGauge.WithLabelValues("cat")), 0)
}

func TestRegistryFillsMissingSpecies(t *testing.T) {
	t.Parallel()

	cat := NewReady(SpeciesCat, &fakeBackend{size: 4, outputs: []float32{1, 2, 3}})
	r := NewRegistry(cat)

	got, ok := r.Get(SpeciesCat)
	require.True(t, ok)
	assert.Same(t, cat, got)

	dog, ok := r.Get(SpeciesDog)
	require.True(t, ok)
	assert.False(t, dog.Ready())

	require.Len(t, r.Detectors(), 2)
	require.NoError(t, r.Close())
}

func keys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
