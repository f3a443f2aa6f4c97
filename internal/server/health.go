package server

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health represents the complete health check response
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Guests     int                        `json:"guests"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
}

// Pinger is a dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

const (
	healthTimeout    = 5 * time.Second
	slowCheckLatency = 2 * time.Second
)

// HandleHealth reports store and catalog health. A down store makes the
// service unhealthy (503); a down catalog only degrades it, since uploads
// still succeed without it.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.checkHealth(r.Context())

	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

// HandleLive provides a liveness probe (is the process running?)
func (s *Server) HandleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
	})
}

func (s *Server) checkHealth(ctx context.Context) Health {
	health := Health{
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]ComponentHealth),
	}
	if s.cfg.Presence != nil {
		health.Guests = s.cfg.Presence.Snapshot()
	}

	health.Components["storage"] = checkComponent(ctx, "storage", s.cfg.Store.Check)
	if s.cfg.Catalog != nil {
		c := checkComponent(ctx, "catalog", s.cfg.Catalog.Ping)
		if c.Status == ComponentStatusDown {
			c.Status = ComponentStatusDegraded
		}
		health.Components["catalog"] = c
	}

	health.Status = determineOverallHealth(health.Components)
	return health
}

func checkComponent(ctx context.Context, name string, check func(context.Context) error) ComponentHealth {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := check(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: name + " check failed: " + err.Error(),
		}
	}

	latency := time.Since(start)
	h := ComponentHealth{
		Status:    ComponentStatusUp,
		Message:   name + " healthy",
		LatencyMs: float64(latency.Microseconds()) / 1000,
	}
	if latency > slowCheckLatency {
		h.Status = ComponentStatusDegraded
		h.Message = name + " latency high"
	}
	return h
}

// determineOverallHealth calculates overall health from component statuses
func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	var (
		downCount     int
		degradedCount int
	)

	for _, component := range components {
		switch component.Status {
		case ComponentStatusDown:
			downCount++
		case ComponentStatusDegraded:
			degradedCount++
		}
	}

	if downCount > 0 {
		return HealthStatusUnhealthy
	}
	if degradedCount > 0 {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}
