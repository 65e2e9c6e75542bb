package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/petmood/internal/errors"
	"github.com/tphakala/petmood/internal/logger"
	"github.com/tphakala/petmood/internal/privacy"
)

// Client-facing failure messages. Internal error text is only logged.
const (
	msgDecodeFailed      = "Image could not be decoded"
	msgModelUnavailable  = "Emotion model is not available"
	msgDetectionFailed   = "Emotion detection failed"
	msgPetNotFound       = "Pet not found"
	msgSaveFailed        = "Failed to save detection result"
	msgHistoryFailed     = "Failed to load emotion history"
	msgTooManyRequests   = "Too many requests"
	msgInternalError     = "Internal server error"
	msgInvalidPetID      = "Invalid pet id"
	msgInvalidLimit      = "limit must be a positive integer"
	msgMissingImage      = "No image file provided"
	msgEmptyImage        = "Image file is empty"
	msgUnsupportedFormat = "Unsupported image format; allowed: png, jpg, jpeg, gif, bmp, webp"
	msgMissingPetID      = "pet_id is required"
	msgBadPetID          = "pet_id must be a positive integer"
)

// SuccessResponse wraps every successful payload.
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success       bool   `json:"success"`
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a failure body with a fresh correlation id.
func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		Success:       false,
		Error:         message,
		CorrelationID: uuid.NewString(),
	}
}

func ok(ctx echo.Context, data any) error {
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true, Data: data})
}

// HandleError logs err under a correlation id and writes message with code.
// err is never sent to the client.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(message)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields,
			logger.Error(privacy.ScrubError(err)),
			logger.String("category", string(categoryOf(err))))
	}

	log := c.logger.WithContext(ctx.Request().Context())
	if code >= http.StatusInternalServerError {
		log.Error("API error", fields...)
	} else {
		log.Debug("API request rejected", fields...)
	}

	return ctx.JSON(code, resp)
}

// categoryOf reports the error category of err, if it carries one.
func categoryOf(err error) errors.ErrorCategory {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.Category
	}
	var ce errors.CategorizedError
	if errors.As(err, &ce) {
		return ce.ErrorCategory()
	}
	return errors.CategoryGeneric
}

// httpErrorHandler renders echo errors (404, 405, 413, panics recovered by
// the Recover middleware) in the ErrorResponse shape.
func (c *Controller) httpErrorHandler(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := msgInternalError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	if writeErr := c.HandleError(ctx, err, message, code); writeErr != nil {
		c.logger.Error("failed to write error response", logger.Error(writeErr))
	}
}
