package integrity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"canon/internal/proposal/models"
	"canon/internal/storage"
)

// reportKey holds the latest verification report so operators can re-read it
// without triggering another full sweep.
const reportKey = "canon:integrity:last_report"

// DefaultReportTTL bounds how stale a cached report may be served.
const DefaultReportTTL = 15 * time.Minute

// ReportCache stores the most recent verification report in Redis.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = DefaultReportTTL
	}
	return &ReportCache{client: client, ttl: ttl}
}

// Save caches the report. A nil cache or nil client is a no-op so wiring
// without Redis stays valid.
func (c *ReportCache) Save(ctx context.Context, report *models.VerificationReport) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal verification report: %w", err)
	}
	if err := c.client.Set(ctx, reportKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache verification report: %w", err)
	}
	return nil
}

// Latest returns the cached report or storage.ErrNotFound when none exists
// or the TTL expired.
func (c *ReportCache) Latest(ctx context.Context) (*models.VerificationReport, error) {
	if c == nil || c.client == nil {
		return nil, storage.ErrNotFound
	}
	payload, err := c.client.Get(ctx, reportKey).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cached verification report: %w", err)
	}
	var report models.VerificationReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("unmarshal cached verification report: %w", err)
	}
	return &report, nil
}
