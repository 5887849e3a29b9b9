package license

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scancore/engine/internal/cache"
	"github.com/scancore/engine/internal/domain"
)

func newTestClient(t *testing.T) *cache.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &cache.Client{Raw: raw}
}

func TestReserveCommitRelease(t *testing.T) {
	client := newTestClient(t)
	q := NewQuotaTracker(client, zap.NewNop())
	ctx := context.Background()
	tenant := uuid.New()

	res, err := q.Reserve(ctx, tenant, "2026-07", "scans_per_month", 2, 1)
	require.NoError(t, err)
	require.NotEmpty(t, res)

	used, err := q.Used(ctx, tenant, "2026-07", "scans_per_month")
	require.NoError(t, err)
	require.Equal(t, int64(1), used)

	q.Commit(ctx, res)

	used, err = q.Used(ctx, tenant, "2026-07", "scans_per_month")
	require.NoError(t, err)
	require.Equal(t, int64(1), used) // commit keeps the increment

	res2, err := q.Reserve(ctx, tenant, "2026-07", "scans_per_month", 2, 1)
	require.NoError(t, err)
	q.Release(ctx, res2)

	used, err = q.Used(ctx, tenant, "2026-07", "scans_per_month")
	require.NoError(t, err)
	require.Equal(t, int64(1), used) // release undoes its own increment only
}

func TestReserveExceedsLimit(t *testing.T) {
	client := newTestClient(t)
	q := NewQuotaTracker(client, zap.NewNop())
	ctx := context.Background()
	tenant := uuid.New()

	_, err := q.Reserve(ctx, tenant, "2026-07", "scans_per_month", 1, 1)
	require.NoError(t, err)

	_, err = q.Reserve(ctx, tenant, "2026-07", "scans_per_month", 1, 1)
	require.ErrorIs(t, err, ErrQuotaExceeded)

	used, err := q.Used(ctx, tenant, "2026-07", "scans_per_month")
	require.NoError(t, err)
	require.Equal(t, int64(1), used) // rejected reservation left no trace
}

func TestSessionCap(t *testing.T) {
	client := newTestClient(t)
	s := NewSessionTracker(client, 30*time.Minute)
	ctx := context.Background()
	tenant := uuid.New()
	userA, userB := uuid.New(), uuid.New()

	require.NoError(t, s.Touch(ctx, tenant, userA, 1))
	require.NoError(t, s.Touch(ctx, tenant, userA, 1)) // re-touch same user never rejected

	err := s.Touch(ctx, tenant, userB, 1)
	require.ErrorIs(t, err, ErrConcurrentCapHit)
}

func TestEnforcerCanSubmitGating(t *testing.T) {
	client := newTestClient(t)
	store := NewMemoryStore()
	tenant := uuid.New()
	store.Put(domain.License{
		TenantID:        tenant,
		AllowedScanners: []string{"website", "code"},
		AllowedRegions:  []string{"NL"},
		Quotas:          map[string]int64{"scans_per_month": 100},
		ValidFrom:       time.Now().Add(-time.Hour),
		ValidUntil:      time.Now().Add(time.Hour),
	})

	e := NewEnforcer(store, NewQuotaTracker(client, zap.NewNop()), NewSessionTracker(client, 30*time.Minute), zap.NewNop())

	err := e.CanSubmit(context.Background(), domain.ScanRequest{
		TenantID: tenant, ScanType: "website", Options: domain.ScanOptions{RegionSet: []string{"NL"}},
	})
	require.NoError(t, err)

	err = e.CanSubmit(context.Background(), domain.ScanRequest{
		TenantID: tenant, ScanType: "database",
	})
	require.ErrorIs(t, err, ErrScannerNotAllowed)

	err = e.CanSubmit(context.Background(), domain.ScanRequest{
		TenantID: tenant, ScanType: "website", Options: domain.ScanOptions{RegionSet: []string{"DE"}},
	})
	require.ErrorIs(t, err, ErrRegionNotAllowed)
}
