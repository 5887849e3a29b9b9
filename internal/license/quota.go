package license

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scancore/engine/internal/cache"
)

const (
	reservationTTL = 60 * time.Second
	activeRegistry = "quota:reservations:active"
)

// QuotaTracker implements pre-increment/reserve-commit-release quota
// accounting against Redis: reserve bumps the usage counter immediately
// and records a short-lived pending marker; commit simply clears the
// marker (usage already reflects it); release decrements usage back out.
// A reservation whose marker expires untouched is swept and released on
// the same terms, per the 60s auto-release rule.
type QuotaTracker struct {
	redis  *cache.Client
	logger *zap.Logger
}

func NewQuotaTracker(redis *cache.Client, logger *zap.Logger) *QuotaTracker {
	return &QuotaTracker{redis: redis, logger: logger}
}

func usageKey(tenantID uuid.UUID, periodKey, bucket string) string {
	return fmt.Sprintf("quota:usage:%s:%s:%s", tenantID, periodKey, bucket)
}

func pendingKey(reservationID string) string {
	return "quota:pending:" + reservationID
}

// Reserve pre-increments the usage counter for tenant/periodKey/bucket by
// n and returns an opaque reservation handle good for 60s.
func (q *QuotaTracker) Reserve(ctx context.Context, tenantID uuid.UUID, periodKey, bucket string, limit int64, n int64) (string, error) {
	key := usageKey(tenantID, periodKey, bucket)
	used, err := q.redis.IncrBy(ctx, key, n)
	if err != nil {
		return "", err
	}
	if limit > 0 && used > limit {
		// Back out the speculative increment; the caller never consumed
		// capacity it was refused.
		_, _ = q.redis.IncrBy(ctx, key, -n)
		return "", ErrQuotaExceeded
	}

	reservationID := uuid.New().String()
	record := fmt.Sprintf("%s|%s|%s|%d", tenantID, periodKey, bucket, n)
	if _, err := q.redis.SetNX(ctx, pendingKey(reservationID), record, reservationTTL); err != nil {
		return "", err
	}
	if err := q.redis.HSet(ctx, activeRegistry, map[string]string{reservationID: record}); err != nil {
		return "", err
	}
	return reservationID, nil
}

// Commit clears the pending marker for a reservation; the usage counter
// it already incremented stands.
func (q *QuotaTracker) Commit(ctx context.Context, reservationID string) {
	_ = q.redis.Del(ctx, pendingKey(reservationID))
	_ = q.redis.HDel(ctx, activeRegistry, reservationID)
}

// Release undoes a reservation's speculative increment — used when a job
// is rejected before reaching Admitted, per the pre-increment rationale.
func (q *QuotaTracker) Release(ctx context.Context, reservationID string) {
	record, err := q.redis.HGetAll(ctx, activeRegistry)
	if err != nil {
		return
	}
	raw, ok := record[reservationID]
	if !ok {
		return
	}
	q.releaseRecord(ctx, reservationID, raw)
}

func (q *QuotaTracker) releaseRecord(ctx context.Context, reservationID, raw string) {
	parts := strings.SplitN(raw, "|", 4)
	if len(parts) != 4 {
		return
	}
	tenantID, periodKey, bucket, nStr := parts[0], parts[1], parts[2], parts[3]
	n, err := strconv.ParseInt(nStr, 10, 64)
	if err != nil {
		return
	}
	key := fmt.Sprintf("quota:usage:%s:%s:%s", tenantID, periodKey, bucket)
	_, _ = q.redis.IncrBy(ctx, key, -n)
	_ = q.redis.Del(ctx, pendingKey(reservationID))
	_ = q.redis.HDel(ctx, activeRegistry, reservationID)
}

// Used returns the current counter value for tenant/periodKey/bucket.
func (q *QuotaTracker) Used(ctx context.Context, tenantID uuid.UUID, periodKey, bucket string) (int64, error) {
	v, err := q.redis.Get(ctx, usageKey(tenantID, periodKey, bucket))
	if err != nil {
		return 0, err
	}
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

// Sweep scans the active-reservation registry and releases any entry
// whose 60s pending marker has already expired, reclaiming capacity that
// a crashed or hung caller never committed or released. Intended to run
// on a periodic ticker from the process that owns the QuotaTracker.
func (q *QuotaTracker) Sweep(ctx context.Context) {
	entries, err := q.redis.HGetAll(ctx, activeRegistry)
	if err != nil {
		q.logger.Warn("quota sweep: failed to list active reservations", zap.Error(err))
		return
	}
	for reservationID, raw := range entries {
		exists, err := q.redis.Exists(ctx, pendingKey(reservationID))
		if err != nil || exists {
			continue
		}
		q.releaseRecord(ctx, reservationID, raw)
		q.logger.Info("auto-released expired quota reservation", zap.String("reservation_id", reservationID))
	}
}

// RunSweeper starts a background loop calling Sweep on the given
// interval until ctx is cancelled.
func (q *QuotaTracker) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Sweep(ctx)
		}
	}
}
