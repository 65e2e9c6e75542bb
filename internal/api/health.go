package api

import (
	"context"
	"math"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tphakala/petmood/internal/emotion"
	"github.com/tphakala/petmood/internal/logger"
)

const healthCheckTimeout = 2 * time.Second

// Health status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// DetectorHealth describes one detector.
type DetectorHealth struct {
	Species string   `json:"species"`
	Ready   bool     `json:"ready"`
	Classes []string `json:"classes"`
	Backend string   `json:"backend"`
	Reason  string   `json:"reason,omitempty"`
}

// DatabaseHealth reports whether the database answered a ping.
type DatabaseHealth struct {
	OK bool `json:"ok"`
}

// SystemHealth carries host statistics.
type SystemHealth struct {
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	Goroutines        int     `json:"goroutines"`
}

// HealthResponse is the data payload of GET /api/health.
type HealthResponse struct {
	Status        string                    `json:"status"`
	Version       string                    `json:"version"`
	InstanceID    string                    `json:"instance_id"`
	UptimeSeconds float64                   `json:"uptime_seconds"`
	Detectors     map[string]DetectorHealth `json:"detectors"`
	Database      DatabaseHealth            `json:"database"`
	System        SystemHealth              `json:"system"`
}

func detectorHealth(d Detector) DetectorHealth {
	h := DetectorHealth{
		Species: d.Species().String(),
		Ready:   d.Ready(),
		Classes: d.Labels(),
		Backend: d.BackendName(),
	}
	if !h.Ready {
		h.Reason = d.Reason()
	}
	return h
}

// speciesHealthHandler handles GET /api/<species>-emotion/health. The status
// is 200 even when the detector is unavailable.
func (c *Controller) speciesHealthHandler(species emotion.Species) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ok(ctx, detectorHealth(c.detector(species)))
	}
}

// GetHealth handles GET /api/health.
func (c *Controller) GetHealth(ctx echo.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:        StatusOK,
		Version:       c.build.Version(),
		InstanceID:    c.build.InstanceID(),
		UptimeSeconds: math.Round(time.Since(c.startTime).Seconds()),
		Detectors:     make(map[string]DetectorHealth, len(emotion.AllSpecies)),
		System:        c.systemHealth(reqCtx),
	}

	for _, s := range emotion.AllSpecies {
		h := detectorHealth(c.detector(s))
		resp.Detectors[h.Species] = h
		if !h.Ready {
			resp.Status = StatusDegraded
		}
	}

	if c.db != nil {
		if err := c.db.Ping(reqCtx); err != nil {
			c.logger.WithContext(reqCtx).Warn("database ping failed", logger.Error(err))
		} else {
			resp.Database.OK = true
		}
	}
	if !resp.Database.OK {
		resp.Status = StatusDegraded
	}

	return ok(ctx, resp)
}

func (c *Controller) systemHealth(ctx context.Context) SystemHealth {
	h := SystemHealth{Goroutines: runtime.NumGoroutine()}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		c.logger.Debug("memory stats unavailable", logger.Error(err))
		return h
	}
	h.MemoryUsedPercent = math.Round(vm.UsedPercent*10) / 10
	return h
}
