package emotion

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelMetadata is the optional YAML sidecar stored next to a model file,
// e.g. models/dog_emotion.yaml for models/dog_emotion.tflite. Zero fields
// keep the configured value.
type ModelMetadata struct {
	// Labels lists the output order when it differs from the built-in
	// order. It must be a permutation of the species labels.
	Labels        []string `yaml:"labels"`
	Normalization string   `yaml:"normalization"`
	InputSize     int      `yaml:"input_size"`
	InputName     string   `yaml:"input_name"`
	OutputName    string   `yaml:"output_name"`
	Probabilities *bool    `yaml:"probabilities"`
}

// metadataPath returns the sidecar path for modelPath.
func metadataPath(modelPath string) string {
	return strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".yaml"
}

// loadMetadata reads the sidecar for modelPath. A missing sidecar yields
// nil, nil.
func loadMetadata(modelPath string) (*ModelMetadata, error) {
	data, err := os.ReadFile(metadataPath(modelPath))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var md ModelMetadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parse model metadata: %w", err)
	}
	return &md, nil
}

// apply overlays md onto cfg and returns the label order to use.
func (md *ModelMetadata) apply(cfg *DetectorConfig) ([]string, error) {
	labels := cfg.Species.Labels()
	if md == nil {
		return labels, nil
	}

	if len(md.Labels) > 0 {
		got := slices.Sorted(slices.Values(md.Labels))
		want := slices.Sorted(slices.Values(labels))
		if !slices.Equal(got, want) {
			return nil, fmt.Errorf("model labels %v do not match %s labels %v", md.Labels, cfg.Species, labels)
		}
		labels = slices.Clone(md.Labels)
	}
	if md.Normalization != "" {
		cfg.Normalization = md.Normalization
	}
	if md.InputSize > 0 {
		cfg.InputSize = md.InputSize
	}
	if md.InputName != "" {
		cfg.InputName = md.InputName
	}
	if md.OutputName != "" {
		cfg.OutputName = md.OutputName
	}
	if md.Probabilities != nil {
		cfg.Probabilities = *md.Probabilities
	}
	return labels, nil
}
