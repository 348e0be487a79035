// Package emitter delivers audit events to a sink with bounded retry.
// Delivery is at-least-once and best-effort: once retries are exhausted the
// event is logged and dropped, never surfaced to the caller. Audit problems
// must not fail the business operation that produced the event.
package emitter

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"canon/pkg/requestcontext"

	audit "canon/pkg/platform/audit"
)

const (
	// DefaultMaxRetries bounds the retry loop. Attempt 0 plus three retries.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the first backoff step; delay doubles per attempt.
	DefaultBaseDelay = 100 * time.Millisecond
)

// pqSerializationFailure is the transient-conflict SQLSTATE treated as
// retryable alongside network and connection errors.
const pqSerializationFailure = "40001"

// Emitter sends audit events to a Store with exponential-backoff retry.
type Emitter struct {
	store      audit.Store
	logger     *slog.Logger
	metrics    *Metrics
	maxRetries int
	baseDelay  time.Duration
}

type Option func(*Emitter)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Emitter) { e.logger = logger }
}

func WithMetrics(metrics *Metrics) Option {
	return func(e *Emitter) { e.metrics = metrics }
}

// WithMaxRetries overrides the retry bound. Negative values are clamped to
// zero (single attempt).
func WithMaxRetries(n int) Option {
	return func(e *Emitter) {
		if n < 0 {
			n = 0
		}
		e.maxRetries = n
	}
}

// WithBaseDelay overrides the first backoff step. Tests use this to keep the
// retry path fast.
func WithBaseDelay(d time.Duration) Option {
	return func(e *Emitter) {
		if d > 0 {
			e.baseDelay = d
		}
	}
}

func New(store audit.Store, opts ...Option) *Emitter {
	e := &Emitter{
		store:      store,
		logger:     slog.Default(),
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit delivers one event. It never returns an error: retryable failures are
// retried with exponential backoff up to the configured bound, fatal
// failures stop immediately, and in both terminal cases the loss is logged.
func (e *Emitter) Emit(ctx context.Context, event audit.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = requestcontext.Now(ctx)
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if e.metrics != nil {
			e.metrics.IncrementAttempts()
		}

		err := e.store.Append(ctx, event)
		if err == nil {
			if attempt > 0 {
				e.logger.InfoContext(ctx, "audit event delivered after retries",
					"action", event.Action,
					"entity_type", event.EntityType,
					"entity_id", event.EntityID,
					"retries", attempt,
				)
			}
			return
		}
		lastErr = err

		if !isRetryable(err) || attempt == e.maxRetries {
			break
		}

		delay := e.baseDelay << attempt
		e.logger.WarnContext(ctx, "audit delivery failed, retrying",
			"action", event.Action,
			"attempt", attempt+1,
			"max_attempts", e.maxRetries+1,
			"delay", delay,
			"error", err,
		)
		if e.metrics != nil {
			e.metrics.IncrementRetries()
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = e.maxRetries // no point retrying a dead context
		}
	}

	e.logger.ErrorContext(ctx, "audit event dropped",
		"action", event.Action,
		"entity_type", event.EntityType,
		"entity_id", event.EntityID,
		"error", lastErr,
	)
	if e.metrics != nil {
		e.metrics.IncrementDropped()
	}
}

// EmitTransition builds the audit event for a workflow transition result and
// delivers it.
func (e *Emitter) EmitTransition(ctx context.Context, result audit.TransitionResult, actx audit.Context) {
	e.Emit(ctx, audit.BuildEvent(result, actx))
}

// EmitBatch delivers one event per result concurrently and waits for all of
// them to settle. A failing event never prevents the others from being
// attempted; Emit itself swallows terminal failures.
func (e *Emitter) EmitBatch(ctx context.Context, results []audit.TransitionResult, actx audit.Context) {
	g := new(errgroup.Group)
	for _, result := range results {
		g.Go(func() error {
			e.EmitTransition(ctx, result, actx)
			return nil
		})
	}
	_ = g.Wait()
}

// isRetryable classifies a sink error. Network-level failures, generic
// connection/timeout/database errors and serialization conflicts are worth
// retrying; anything else (validation, permissions) fails immediately.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqSerializationFailure {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection reset",
		"connection refused",
		"no such host",
		"broken pipe",
		"serialization failure",
		"connection",
		"timeout",
		"database",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
