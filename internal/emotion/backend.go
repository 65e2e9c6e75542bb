package emotion

import (
	"path/filepath"
	"strings"

	"github.com/tphakala/petmood/internal/errors"
)

var errBackendClosed = errors.NewStd("inference backend closed")

// Backend runs a loaded model on one preprocessed input tensor.
//
// Implementations are safe for concurrent use. Run returns the raw output
// vector, one value per label.
type Backend interface {
	Name() string
	Layout() Layout
	InputSize() int
	Run(input []float32) ([]float32, error)
	Close() error
}

// Backend names accepted in configuration.
const (
	BackendAuto   = "auto"
	BackendTFLite = "tflite"
	BackendONNX   = "onnx"
)

// resolveBackend picks a runtime for modelPath. "auto" chooses by file
// extension.
func resolveBackend(name, modelPath string) string {
	if name != "" && name != BackendAuto {
		return name
	}
	switch strings.ToLower(filepath.Ext(modelPath)) {
	case ".onnx":
		return BackendONNX
	default:
		return BackendTFLite
	}
}
