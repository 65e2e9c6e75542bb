package emotion

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/tphakala/petmood/internal/errors"
	"github.com/tphakala/petmood/internal/logger"
)

// The onnxruntime environment is process-wide. It is initialized by the
// first ONNX backend and destroyed by DestroyONNXEnvironment.
var onnxEnvMu sync.Mutex

func initONNXEnvironment(libraryPath string) error {
	onnxEnvMu.Lock()
	defer onnxEnvMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.New(err).
			Component("emotion").
			Category(errors.CategoryModelInit).
			Context("library_path", libraryPath).
			Build()
	}
	return nil
}

// DestroyONNXEnvironment releases the onnxruntime environment if it was
// initialized.
func DestroyONNXEnvironment() error {
	onnxEnvMu.Lock()
	defer onnxEnvMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

type onnxConfig struct {
	modelPath   string
	libraryPath string
	inputName   string
	outputName  string
	inputSize   int
	outputLen   int
	threads     int
}

// onnxBackend runs an ONNX model with fixed, preallocated tensors, so Run
// is serialized.
type onnxBackend struct {
	mu        sync.Mutex
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	output    *ort.Tensor[float32]
	inputSize int
}

func newONNXBackend(cfg onnxConfig, log logger.Logger) (*onnxBackend, error) {
	if err := initONNXEnvironment(cfg.libraryPath); err != nil {
		return nil, err
	}

	inputShape := ort.NewShape(1, channels, int64(cfg.inputSize), int64(cfg.inputSize))
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.outputLen)))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	if err := options.SetIntraOpNumThreads(cfg.threads); err != nil {
		log.Warn("cannot set onnx thread count", logger.Error(err), logger.Int("threads", cfg.threads))
	}

	session, err := ort.NewAdvancedSession(cfg.modelPath,
		[]string{cfg.inputName}, []string{cfg.outputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		options)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, errors.New(err).
			Component("emotion").
			Category(errors.CategoryModelLoad).
			Context("model_path", cfg.modelPath).
			Context("input_name", cfg.inputName).
			Context("output_name", cfg.outputName).
			Build()
	}

	log.Debug("onnx session ready",
		logger.Int("threads", cfg.threads),
		logger.Int("input_size", cfg.inputSize),
		logger.Int("outputs", cfg.outputLen))

	return &onnxBackend{
		session:   session,
		input:     input,
		output:    output,
		inputSize: cfg.inputSize,
	}, nil
}

func (b *onnxBackend) Name() string   { return BackendONNX }
func (b *onnxBackend) Layout() Layout { return LayoutNCHW }
func (b *onnxBackend) InputSize() int { return b.inputSize }

func (b *onnxBackend) Run(input []float32) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil, errBackendClosed
	}

	dst := b.input.GetData()
	if len(dst) != len(input) {
		return nil, fmt.Errorf("input tensor holds %d values, got %d", len(dst), len(input))
	}
	copy(dst, input)

	if err := b.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	data := b.output.GetData()
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

func (b *onnxBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	err := errors.Join(b.session.Destroy(), b.input.Destroy(), b.output.Destroy())
	b.session = nil
	return err
}
