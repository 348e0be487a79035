package restore

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// maintenanceKey mirrors the gate state in Redis so sibling replicas and
// load-balancer probes can observe it.
const maintenanceKey = "canon:maintenance"

// Gate is the process-wide maintenance-mode flag. Only the restore service
// sets it, and every run path must clear it on exit; treat it like a lock
// that must never be left held.
type Gate struct {
	enabled atomic.Bool
	redis   *redis.Client
	logger  *slog.Logger
}

// NewGate creates a maintenance gate. The redis client is optional; when
// present the gate state is mirrored to a shared key.
func NewGate(client *redis.Client, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{redis: client, logger: logger}
}

// Enable turns maintenance mode on. Mirror failures are logged, not
// returned: the in-process flag is authoritative.
func (g *Gate) Enable(ctx context.Context) {
	g.enabled.Store(true)
	g.logger.InfoContext(ctx, "maintenance mode enabled")
	if g.redis != nil {
		if err := g.redis.Set(ctx, maintenanceKey, "1", 0).Err(); err != nil {
			g.logger.WarnContext(ctx, "failed to mirror maintenance flag", "error", err)
		}
	}
}

// Disable turns maintenance mode off. Safe to call repeatedly.
func (g *Gate) Disable(ctx context.Context) {
	g.enabled.Store(false)
	g.logger.InfoContext(ctx, "maintenance mode disabled")
	if g.redis != nil {
		if err := g.redis.Del(ctx, maintenanceKey).Err(); err != nil {
			g.logger.WarnContext(ctx, "failed to clear mirrored maintenance flag", "error", err)
		}
	}
}

// Enabled reports the in-process gate state.
func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}
