package emotion

import (
	"fmt"
	"os"
	"sync"

	"github.com/tphakala/go-tflite"

	"github.com/tphakala/petmood/internal/errors"
	"github.com/tphakala/petmood/internal/logger"
)

// tfliteBackend runs a TensorFlow Lite model. The interpreter is not
// reentrant so Run is serialized.
type tfliteBackend struct {
	mu          sync.Mutex
	model       *tflite.Model
	interpreter *tflite.Interpreter
	inputSize   int
	outputLen   int
}

func newTFLiteBackend(modelPath string, threads int, log logger.Logger) (*tfliteBackend, error) {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, errors.New(err).
			Component("emotion").
			Category(errors.CategoryModelLoad).
			Context("model_path", modelPath).
			Build()
	}

	model := tflite.NewModel(data)
	if model == nil {
		return nil, errors.Newf("cannot load tflite model from %s", modelPath).
			Component("emotion").
			Category(errors.CategoryModelLoad).
			Context("model_size", len(data)).
			Build()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ any) {
		log.Error("tflite runtime error", logger.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, errors.Newf("cannot create tflite interpreter").
			Component("emotion").
			Category(errors.CategoryModelInit).
			Context("threads", threads).
			Build()
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, errors.Newf("tensor allocation failed: %v", status).
			Component("emotion").
			Category(errors.CategoryModelInit).
			Build()
	}

	input := interpreter.GetInputTensor(0)
	output := interpreter.GetOutputTensor(0)
	if input == nil || output == nil || input.NumDims() != 4 {
		interpreter.Delete()
		model.Delete()
		return nil, errors.Newf("unexpected tflite tensor shape in %s", modelPath).
			Component("emotion").
			Category(errors.CategoryModelInit).
			Build()
	}

	if err := checkTensorTypes(input.Type(), output.Type()); err != nil {
		interpreter.Delete()
		model.Delete()
		return nil, errors.New(err).
			Component("emotion").
			Category(errors.CategoryModelInit).
			Context("model_path", modelPath).
			Build()
	}

	// NHWC: [1, height, width, 3]
	b := &tfliteBackend{
		model:       model,
		interpreter: interpreter,
		inputSize:   input.Dim(1),
		outputLen:   output.Dim(output.NumDims() - 1),
	}
	log.Debug("tflite interpreter ready",
		logger.Int("threads", threads),
		logger.Int("input_size", b.inputSize),
		logger.Int("outputs", b.outputLen))
	return b, nil
}

// checkTensorTypes rejects quantized models; Run copies float32 values in
// and out of the tensors.
func checkTensorTypes(input, output tflite.TensorType) error {
	if input != tflite.Float32 {
		return fmt.Errorf("tflite input tensor is %s, want %s", input, tflite.Float32)
	}
	if output != tflite.Float32 {
		return fmt.Errorf("tflite output tensor is %s, want %s", output, tflite.Float32)
	}
	return nil
}

func (b *tfliteBackend) Name() string   { return BackendTFLite }
func (b *tfliteBackend) Layout() Layout { return LayoutNHWC }
func (b *tfliteBackend) InputSize() int { return b.inputSize }

func (b *tfliteBackend) Run(input []float32) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.interpreter == nil {
		return nil, errBackendClosed
	}

	inputTensor := b.interpreter.GetInputTensor(0)
	dst := inputTensor.Float32s()
	if len(dst) != len(input) {
		return nil, fmt.Errorf("input tensor holds %d values, got %d", len(dst), len(input))
	}
	copy(dst, input)

	if status := b.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tflite invoke failed: %v", status)
	}

	outputTensor := b.interpreter.GetOutputTensor(0)
	out := make([]float32, b.outputLen)
	copy(out, outputTensor.Float32s())
	return out, nil
}

func (b *tfliteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.interpreter != nil {
		b.interpreter.Delete()
		b.interpreter = nil
	}
	if b.model != nil {
		b.model.Delete()
		b.model = nil
	}
	return nil
}
