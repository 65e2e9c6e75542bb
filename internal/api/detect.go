package api

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/petmood/internal/datastore/repository"
	"github.com/tphakala/petmood/internal/emotion"
	"github.com/tphakala/petmood/internal/errors"
	"github.com/tphakala/petmood/internal/logger"
	"github.com/tphakala/petmood/internal/mqtt"
)

// allowedImageExtensions are the accepted upload file extensions.
var allowedImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// ValidationError is a rejected request. Message is safe to return.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) ErrorCategory() errors.ErrorCategory { return errors.CategoryValidation }

// detectRequest is a validated detect upload.
type detectRequest struct {
	petID    uint
	image    []byte
	filename string
}

// DetectionResult is the data payload of a successful detect.
type DetectionResult struct {
	ID            uint               `json:"id"`
	Emotion       string             `json:"emotion"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	CreatedAt     string             `json:"created_at"`
}

// parseDetectRequest reads the image file and pet_id form fields.
func parseDetectRequest(ctx echo.Context) (*detectRequest, error) {
	fh, err := ctx.FormFile("image")
	if err != nil || fh.Filename == "" {
		return nil, &ValidationError{Message: msgMissingImage}
	}
	if !allowedImageExtensions[strings.ToLower(filepath.Ext(fh.Filename))] {
		return nil, &ValidationError{Message: msgUnsupportedFormat}
	}

	f, err := fh.Open()
	if err != nil {
		return nil, &ValidationError{Message: msgMissingImage}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &ValidationError{Message: msgEmptyImage}
	}

	raw := strings.TrimSpace(ctx.FormValue("pet_id"))
	if raw == "" {
		return nil, &ValidationError{Message: msgMissingPetID}
	}
	petID, err := parsePositiveID(raw)
	if err != nil {
		return nil, &ValidationError{Message: msgBadPetID}
	}

	return &detectRequest{petID: petID, image: data, filename: fh.Filename}, nil
}

// parsePositiveID parses a decimal id greater than zero.
func parsePositiveID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errors.NewStd("id must be positive")
	}
	return uint(id), nil
}

// detectorMessage maps a Predict error to its client message. Every
// detector failure is answered with 500.
func detectorMessage(err error) string {
	switch {
	case errors.Is(err, emotion.ErrDecode):
		return msgDecodeFailed
	case errors.Is(err, emotion.ErrModelUnavailable):
		return msgModelUnavailable
	default:
		return msgDetectionFailed
	}
}

// detectHandler handles POST /api/<species>-emotion/detect.
func (c *Controller) detectHandler(species emotion.Species) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		reqCtx := ctx.Request().Context()

		req, err := parseDetectRequest(ctx)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return c.HandleError(ctx, err, ve.Message, http.StatusBadRequest)
			}
			return c.HandleError(ctx, err, msgMissingImage, http.StatusBadRequest)
		}

		prediction, err := c.detector(species).Predict(reqCtx, req.image)
		if err != nil {
			return c.HandleError(ctx, err, detectorMessage(err), http.StatusInternalServerError)
		}

		rec := &repository.HistoryRecord{
			PetID:         req.petID,
			Emotion:       prediction.Label,
			Confidence:    prediction.Confidence,
			Probabilities: prediction.Probabilities(),
		}
		if err := c.history.Save(reqCtx, species.String(), rec); err != nil {
			if errors.Is(err, repository.ErrPetNotFound) {
				return c.HandleError(ctx, err, msgPetNotFound, http.StatusNotFound)
			}
			return c.HandleError(ctx, err, msgSaveFailed, http.StatusInternalServerError)
		}

		c.invalidateHistory(species, req.petID)
		c.publishDetection(reqCtx, species, rec)

		c.logger.WithContext(reqCtx).Info("emotion detected",
			logger.String("species", species.String()),
			logger.Uint64("pet_id", uint64(rec.PetID)),
			logger.String("emotion", rec.Emotion),
			logger.Float64("confidence", rec.Confidence))

		return ok(ctx, DetectionResult{
			ID:            rec.ID,
			Emotion:       rec.Emotion,
			Confidence:    rec.Confidence,
			Probabilities: rec.Probabilities,
			CreatedAt:     formatTimestamp(rec.CreatedAt),
		})
	}
}

// publishDetection sends the stored detection to MQTT. Failures are logged
// by the publisher and never fail the request.
func (c *Controller) publishDetection(ctx context.Context, species emotion.Species, rec *repository.HistoryRecord) {
	event := &mqtt.DetectionEventDTO{
		Species:       species.String(),
		PetID:         rec.PetID,
		RecordID:      rec.ID,
		Emotion:       rec.Emotion,
		Confidence:    rec.Confidence,
		Probabilities: rec.Probabilities,
		CreatedAt:     rec.CreatedAt.UTC().Truncate(time.Second),
	}
	_ = c.publisher.PublishDetection(context.WithoutCancel(ctx), event)
}
