// Package predict implements a one-shot classification command.
package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/petmood/internal/conf"
	"github.com/tphakala/petmood/internal/emotion"
	"github.com/tphakala/petmood/internal/httpclient"
	"github.com/tphakala/petmood/internal/logger"
)

// Output is the JSON document printed for one image.
type Output struct {
	Species       string             `json:"species"`
	Emotion       string             `json:"emotion"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// Command creates the predict command.
func Command(settings *conf.Settings) *cobra.Command {
	var species string

	cmd := &cobra.Command{
		Use:   "predict --species cat|dog [image]",
		Short: "Classify a single image",
		Long:  "Load the model for one species, classify the image and print the result as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings, species, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&species, "species", "s", string(emotion.SpeciesCat), "Species of the pet in the image (cat or dog)")

	return cmd
}

func run(ctx context.Context, settings *conf.Settings, speciesName, imagePath string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	species, err := emotion.ParseSpecies(speciesName)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	level := logger.LogLevelWarn
	if settings.Debug {
		level = logger.LogLevelDebug
	}
	log := logger.NewSlogLogger(os.Stderr, level, nil).Module("emotion")

	client := httpclient.New(&httpclient.Config{DefaultTimeout: settings.Emotion.Inference.FetchTimeout})
	defer client.Close()

	detector := emotion.Load(ctx, emotion.ConfigFromSettings(species, settings), client, emotion.WithLogger(log))
	defer func() {
		_ = detector.Close()
		_ = emotion.DestroyONNXEnvironment()
	}()

	if !detector.Ready() {
		return fmt.Errorf("%s model unavailable: %s", species, detector.Reason())
	}

	prediction, err := detector.Predict(ctx, data)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(Output{
		Species:       species.String(),
		Emotion:       prediction.Label,
		Confidence:    prediction.Confidence,
		Probabilities: prediction.Probabilities(),
	})
}
