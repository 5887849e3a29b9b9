package license

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scancore/engine/internal/cache"
)

// SessionTracker maintains a sliding set of distinct active user sessions
// per tenant with a heartbeat TTL, backing the concurrent-user cap.
type SessionTracker struct {
	redis *cache.Client
	ttl   time.Duration
}

func NewSessionTracker(redis *cache.Client, ttl time.Duration) *SessionTracker {
	return &SessionTracker{redis: redis, ttl: ttl}
}

func sessionSetKey(tenantID uuid.UUID) string {
	return "sessions:active:" + tenantID.String()
}

// Touch records userID as active for the tenant, refreshing the set's
// TTL. Returns ErrConcurrentCapHit if the cap is already saturated and
// userID is not already a member.
func (s *SessionTracker) Touch(ctx context.Context, tenantID, userID uuid.UUID, maxConcurrent int) error {
	key := sessionSetKey(tenantID)
	member := userID.String()

	if maxConcurrent > 0 {
		already, err := s.redis.SIsMember(ctx, key, member)
		if err != nil {
			return err
		}
		if !already {
			count, err := s.redis.SCard(ctx, key)
			if err != nil {
				return err
			}
			if count >= int64(maxConcurrent) {
				return fmt.Errorf("%w: %d/%d", ErrConcurrentCapHit, count, maxConcurrent)
			}
		}
	}

	return s.redis.SAdd(ctx, key, member, s.ttl)
}
