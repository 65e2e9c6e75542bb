// Package emotion classifies the emotional state of cats and dogs from
// photographs.
//
// A Detector is built once per species and shared by all requests. It is
// either ready, holding an inference Backend, or unavailable, holding the
// reason the model could not be loaded. Predict decodes the image, resizes
// it to the model input size, normalizes it for the species and returns a
// Prediction whose distribution covers every label of the species.
package emotion

import (
	"fmt"
	"slices"
	"strings"
)

// Species identifies which classifier handles an image.
type Species string

const (
	SpeciesCat Species = "cat"
	SpeciesDog Species = "dog"
)

// AllSpecies lists the supported species in a stable order.
var AllSpecies = []Species{SpeciesCat, SpeciesDog}

// species labels in model output order
var speciesLabels = map[Species][]string{
	SpeciesCat: {"angry", "happy", "sad"},
	SpeciesDog: {"angry", "happy", "relaxed", "sad"},
}

// ParseSpecies returns the Species named by s (case-insensitive).
func ParseSpecies(s string) (Species, error) {
	sp := Species(strings.ToLower(strings.TrimSpace(s)))
	if !sp.Valid() {
		return "", fmt.Errorf("unknown species %q", s)
	}
	return sp, nil
}

// Valid reports whether s is a supported species.
func (s Species) Valid() bool {
	_, ok := speciesLabels[s]
	return ok
}

// Labels returns a copy of the species' ordered label set.
func (s Species) Labels() []string {
	return slices.Clone(speciesLabels[s])
}

// DefaultNormalization is the pixel normalization the species' checkpoint
// was trained with.
func (s Species) DefaultNormalization() Normalization {
	if s == SpeciesDog {
		return NormalizationImageNet
	}
	return NormalizationUnit
}

func (s Species) String() string {
	return string(s)
}

// Normalization selects how 8-bit RGB values are mapped to model inputs.
type Normalization string

const (
	// NormalizationUnit maps v to v/255.
	NormalizationUnit Normalization = "unit"
	// NormalizationImageNet maps v to (v/255 - mean[c]) / std[c].
	NormalizationImageNet Normalization = "imagenet"
	// NormalizationRaw255 passes v through unchanged, for graphs that rescale internally.
	NormalizationRaw255 Normalization = "raw255"
)

// ParseNormalization parses a normalization name. The empty string yields
// fallback.
func ParseNormalization(s string, fallback Normalization) (Normalization, error) {
	switch n := Normalization(strings.ToLower(s)); n {
	case "":
		return fallback, nil
	case NormalizationUnit, NormalizationImageNet, NormalizationRaw255:
		return n, nil
	default:
		return "", fmt.Errorf("unknown normalization %q", s)
	}
}

// Layout is the memory order of the input tensor.
type Layout string

const (
	// LayoutNCHW is channel-major, used by PyTorch and ONNX exports.
	LayoutNCHW Layout = "nchw"
	// LayoutNHWC is channel-last, used by TFLite and Keras exports.
	LayoutNHWC Layout = "nhwc"
)
