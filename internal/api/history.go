package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/petmood/internal/datastore/repository"
	"github.com/tphakala/petmood/internal/emotion"
)

// HistoryResponse is the data payload of a history query. Total is the
// number of returned entries.
type HistoryResponse struct {
	PetID   uint          `json:"pet_id"`
	Total   int           `json:"total"`
	History []HistoryItem `json:"history"`
}

// HistoryItem is one history row as served to clients.
type HistoryItem struct {
	ID            uint               `json:"id"`
	PetID         uint               `json:"pet_id"`
	PetName       *string            `json:"pet_name"`
	Emotion       string             `json:"emotion"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	ImageURL      *string            `json:"image_url"`
	CreatedAt     string             `json:"created_at"`
}

// formatTimestamp is the created_at format of every endpoint: UTC RFC 3339
// with whole seconds.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toHistoryItems(entries []repository.HistoryEntry) []HistoryItem {
	items := make([]HistoryItem, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		items = append(items, HistoryItem{
			ID:            e.ID,
			PetID:         e.PetID,
			PetName:       e.PetName,
			Emotion:       e.Emotion,
			Confidence:    e.Confidence,
			Probabilities: e.Probabilities,
			ImageURL:      e.ImageURL,
			CreatedAt:     formatTimestamp(e.CreatedAt),
		})
	}
	return items
}

// parseLimit reads the limit query parameter, applying the default and
// clamping to the configured maximum.
func (c *Controller) parseLimit(raw string) (int, error) {
	if raw == "" {
		return c.config.HistoryDefaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, &ValidationError{Message: msgInvalidLimit}
	}
	return min(limit, c.config.HistoryMaxLimit), nil
}

// historyHandler handles GET /api/<species>-emotion/history/:petId.
func (c *Controller) historyHandler(species emotion.Species) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		petID, err := parsePositiveID(ctx.Param("petId"))
		if err != nil {
			return c.HandleError(ctx, err, msgInvalidPetID, http.StatusBadRequest)
		}

		limit, err := c.parseLimit(strings.TrimSpace(ctx.QueryParam("limit")))
		if err != nil {
			return c.HandleError(ctx, err, msgInvalidLimit, http.StatusBadRequest)
		}

		key := historyCacheKey(species, petID, limit)
		var gen uint64
		if c.historyCache != nil {
			gen = c.historyGeneration(species, petID)
			if cached, found := c.historyCache.Get(key); found {
				c.metrics.RecordHistoryCache(true)
				return ok(ctx, cached)
			}
			c.metrics.RecordHistoryCache(false)
		}

		entries, err := c.history.List(ctx.Request().Context(), species.String(), petID, limit)
		if err != nil {
			return c.HandleError(ctx, err, msgHistoryFailed, http.StatusInternalServerError)
		}

		resp := HistoryResponse{PetID: petID, Total: len(entries), History: toHistoryItems(entries)}
		c.storeHistory(species, petID, gen, key, resp)
		return ok(ctx, resp)
	}
}

func historyCachePrefix(species emotion.Species, petID uint) string {
	return fmt.Sprintf("%s:%d:", species, petID)
}

func historyCacheKey(species emotion.Species, petID uint, limit int) string {
	return historyCachePrefix(species, petID) + strconv.Itoa(limit)
}

func (c *Controller) historyGeneration(species emotion.Species, petID uint) uint64 {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	return c.historyGen[historyCachePrefix(species, petID)]
}

// storeHistory caches resp unless a detection for the pet was stored after
// the page was read at generation gen.
func (c *Controller) storeHistory(species emotion.Species, petID uint, gen uint64, key string, resp HistoryResponse) {
	if c.historyCache == nil {
		return
	}
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	if c.historyGen[historyCachePrefix(species, petID)] != gen {
		return
	}
	c.historyCache.Set(key, resp, cache.DefaultExpiration)
}

// invalidateHistory drops every cached page for the pet and bumps its
// generation so in-flight reads do not repopulate the cache.
func (c *Controller) invalidateHistory(species emotion.Species, petID uint) {
	if c.historyCache == nil {
		return
	}
	prefix := historyCachePrefix(species, petID)
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	c.historyGen[prefix]++
	for key := range c.historyCache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.historyCache.Delete(key)
		}
	}
}
