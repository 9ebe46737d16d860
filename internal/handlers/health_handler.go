package handlers

import (
	"context"
	"net/http"
	"time"

	"ticket-marketplace/utils"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
	redis redis.Cmdable
}

// NewHealthHandler takes an optional redis client; nil skips that check.
func NewHealthHandler(store Pinger, rdb redis.Cmdable) *HealthHandler {
	return &HealthHandler{store: store, redis: rdb}
}

// Root - GET /
func (h *HealthHandler) Root(e *core.RequestEvent) error {
	return e.String(http.StatusOK, "Ticket marketplace server is running")
}

// Health - GET /health
func (h *HealthHandler) Health(e *core.RequestEvent) error {
	ctx, cancel := context.WithTimeout(e.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"store": "ok"}
	code := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		checks["store"] = err.Error()
		code = http.StatusServiceUnavailable
	}

	if h.redis != nil {
		checks["redis"] = "ok"
		if err := utils.RedisHealthCheck(ctx, h.redis); err != nil {
			checks["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	state := "healthy"
	if code != http.StatusOK {
		state = "unhealthy"
	}

	return e.JSON(code, map[string]any{
		"status":    state,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}
