package emotion

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tphakala/petmood/internal/conf"
	"github.com/tphakala/petmood/internal/errors"
	"github.com/tphakala/petmood/internal/httpclient"
	"github.com/tphakala/petmood/internal/logger"
	"github.com/tphakala/petmood/internal/observability/metrics"
)

var (
	errNoModelPath       = errors.NewStd("no model path configured")
	errNonFiniteOutput   = errors.NewStd("model output contains NaN or Inf")
	errNoProbabilityMass = errors.NewStd("model output has no probability mass")
)

// DetectorConfig describes how to load one species' model.
type DetectorConfig struct {
	Species         Species
	Enabled         bool
	ModelPath       string
	ModelURL        string
	Backend         string
	Normalization   string
	InputName       string
	OutputName      string
	InputSize       int
	Probabilities   bool
	Threads         int
	MaxConcurrent   int
	ONNXLibraryPath string
	FetchTimeout    time.Duration
}

// ConfigFromSettings builds the DetectorConfig for species from settings.
func ConfigFromSettings(species Species, settings *conf.Settings) DetectorConfig {
	ds, _ := settings.Emotion.Detector(string(species))
	inf := settings.Emotion.Inference
	return DetectorConfig{
		Species:         species,
		Enabled:         ds.Enabled,
		ModelPath:       ds.ModelPath,
		ModelURL:        ds.ModelURL,
		Backend:         ds.Backend,
		Normalization:   ds.Normalization,
		InputName:       ds.InputName,
		OutputName:      ds.OutputName,
		InputSize:       DefaultInputSize,
		Probabilities:   ds.Probabilities,
		Threads:         inf.Threads,
		MaxConcurrent:   inf.MaxConcurrent,
		ONNXLibraryPath: inf.ONNXLibraryPath,
		FetchTimeout:    inf.FetchTimeout,
	}
}

// Detector classifies images of one species. A Detector is safe for
// concurrent use. An unavailable detector answers every Predict with a
// ModelUnavailableError.
type Detector struct {
	species       Species
	labels        []string
	backend       Backend
	reason        string
	pre           preprocessor
	probabilities bool
	sem           *semaphore.Weighted
	metrics       *metrics.EmotionMetrics
	log           logger.Logger
}

// Option customizes a Detector.
type Option func(*Detector)

// WithNormalization overrides the species default normalization.
func WithNormalization(n Normalization) Option {
	return func(d *Detector) { d.pre.normalization = n }
}

// WithProbabilities marks the backend output as already softmaxed.
func WithProbabilities(p bool) Option {
	return func(d *Detector) { d.probabilities = p }
}

// WithLabels sets the backend output order. labels must be a permutation of
// the species labels.
func WithLabels(labels []string) Option {
	return func(d *Detector) { d.labels = labels }
}

// WithMaxConcurrent bounds the number of in-flight predictions.
func WithMaxConcurrent(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithMetrics records predictions on m.
func WithMetrics(m *metrics.EmotionMetrics) Option {
	return func(d *Detector) { d.metrics = m }
}

// WithLogger sets the detector logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}

func newDetector(species Species, opts []Option) *Detector {
	d := &Detector{
		species: species,
		labels:  species.Labels(),
		pre: preprocessor{
			size:          DefaultInputSize,
			normalization: species.DefaultNormalization(),
			layout:        LayoutNCHW,
		},
		sem: semaphore.NewWeighted(1),
		log: logger.NewSlogLogger(nil, logger.LogLevelInfo, nil).Module("emotion"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With(logger.String("species", string(species)))
	return d
}

// NewReady wraps a loaded backend.
func NewReady(species Species, backend Backend, opts ...Option) *Detector {
	d := newDetector(species, opts)
	d.backend = backend
	d.pre.size = backend.InputSize()
	d.pre.layout = backend.Layout()
	d.metrics.RecordModelLoad(string(species), true)
	return d
}

// NewUnavailable returns a detector that refuses every prediction with
// reason.
func NewUnavailable(species Species, reason string, opts ...Option) *Detector {
	d := newDetector(species, opts)
	d.reason = reason
	d.metrics.RecordModelLoad(string(species), false)
	return d
}

// Load builds the detector described by cfg. It never fails: any problem
// with the model yields an unavailable detector and is logged. The caller
// must Close the returned detector.
func Load(ctx context.Context, cfg DetectorConfig, client *httpclient.Client, opts ...Option) *Detector {
	log := newDetector(cfg.Species, opts).log

	if !cfg.Enabled {
		log.Info("emotion detector disabled")
		return NewUnavailable(cfg.Species, "detector disabled in configuration", opts...)
	}

	start := time.Now()
	backend, labels, err := loadBackend(ctx, &cfg, client, log)
	if err != nil {
		log.Error("emotion model unavailable",
			logger.Error(err),
			logger.String("model_path", cfg.ModelPath))
		return NewUnavailable(cfg.Species, err.Error(), opts...)
	}

	normalization, err := ParseNormalization(cfg.Normalization, cfg.Species.DefaultNormalization())
	if err != nil {
		_ = backend.Close()
		log.Error("emotion model unavailable", logger.Error(err))
		return NewUnavailable(cfg.Species, err.Error(), opts...)
	}

	all := append([]Option{
		WithLabels(labels),
		WithNormalization(normalization),
		WithProbabilities(cfg.Probabilities),
		WithMaxConcurrent(cfg.MaxConcurrent),
	}, opts...)
	d := NewReady(cfg.Species, backend, all...)

	log.Info("emotion detector ready",
		logger.String("backend", backend.Name()),
		logger.String("model_path", cfg.ModelPath),
		logger.String("normalization", string(normalization)),
		logger.Duration("load_time", time.Since(start)))
	return d
}

func loadBackend(ctx context.Context, cfg *DetectorConfig, client *httpclient.Client, log logger.Logger) (Backend, []string, error) {
	if cfg.ModelPath == "" {
		return nil, nil, errNoModelPath
	}

	if cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
	}
	if err := ensureModel(ctx, client, cfg.ModelPath, cfg.ModelURL, log); err != nil {
		return nil, nil, err
	}

	md, err := loadMetadata(cfg.ModelPath)
	if err != nil {
		return nil, nil, err
	}
	labels, err := md.apply(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = DefaultInputSize
	}

	threads := determineThreadCount(cfg.Threads)

	var backend Backend
	switch name := resolveBackend(cfg.Backend, cfg.ModelPath); name {
	case BackendTFLite:
		backend, err = newTFLiteBackend(cfg.ModelPath, threads, log)
	case BackendONNX:
		backend, err = newONNXBackend(onnxConfig{
			modelPath:   cfg.ModelPath,
			libraryPath: cfg.ONNXLibraryPath,
			inputName:   cfg.InputName,
			outputName:  cfg.OutputName,
			inputSize:   cfg.InputSize,
			outputLen:   len(labels),
			threads:     threads,
		}, log)
	default:
		err = fmt.Errorf("unknown inference backend %q", name)
	}
	if err != nil {
		return nil, nil, err
	}
	return backend, labels, nil
}

// Species returns the species this detector classifies.
func (d *Detector) Species() Species { return d.species }

// Ready reports whether the model is loaded.
func (d *Detector) Ready() bool { return d.backend != nil }

// Reason explains why an unavailable detector is not ready.
func (d *Detector) Reason() string { return d.reason }

// Labels returns a copy of the label set in model output order.
func (d *Detector) Labels() []string {
	out := make([]string, len(d.labels))
	copy(out, d.labels)
	return out
}

// BackendName returns the runtime name, or "" when unavailable.
func (d *Detector) BackendName() string {
	if d.backend == nil {
		return ""
	}
	return d.backend.Name()
}

// Predict classifies one encoded image.
//
// It returns a *ModelUnavailableError when the model is not loaded, a
// *DecodeError when data is not a supported image and an *InferenceError
// when the runtime fails or produces an output that does not match the
// label set.
func (d *Detector) Predict(ctx context.Context, data []byte) (*Prediction, error) {
	pred, err := d.predict(ctx, data)
	if err != nil {
		d.metrics.RecordPredictionError(string(d.species), errorKind(err))
		return nil, err
	}
	return pred, nil
}

func (d *Detector) predict(ctx context.Context, data []byte) (*Prediction, error) {
	if d.backend == nil {
		return nil, &ModelUnavailableError{Species: d.species, Reason: d.reason}
	}

	// Decoding holds a slot too, so concurrent uploads cannot multiply the
	// decoder's memory use.
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, &InferenceError{Species: d.species, Err: err}
	}
	defer d.sem.Release(1)

	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}

	d.metrics.AddInflight(string(d.species), 1)
	defer d.metrics.AddInflight(string(d.species), -1)

	start := time.Now()
	input := d.pre.tensor(img)
	outputs, err := d.backend.Run(input)
	if err != nil {
		return nil, &InferenceError{Species: d.species, Err: err}
	}

	probs, err := d.toProbabilities(outputs)
	if err != nil {
		return nil, &InferenceError{Species: d.species, Err: err}
	}

	pred := newPrediction(d.labels, probs)
	elapsed := time.Since(start)
	d.metrics.RecordPrediction(string(d.species), pred.Label, elapsed.Seconds())
	d.log.Debug("emotion predicted",
		logger.String("label", pred.Label),
		logger.Float64("confidence", pred.Confidence),
		logger.Duration("elapsed", elapsed))
	return pred, nil
}

func (d *Detector) toProbabilities(outputs []float32) ([]float64, error) {
	if len(outputs) != len(d.labels) {
		return nil, fmt.Errorf("model returned %d outputs for %d labels", len(outputs), len(d.labels))
	}
	if !finite(outputs) {
		return nil, errNonFiniteOutput
	}
	if !d.probabilities {
		return softmax(outputs), nil
	}
	probs, ok := renormalize(outputs)
	if !ok {
		return nil, errNoProbabilityMass
	}
	return probs, nil
}

// Close releases the backend. It is safe to call on an unavailable
// detector.
func (d *Detector) Close() error {
	if d.backend == nil {
		return nil
	}
	return d.backend.Close()
}
