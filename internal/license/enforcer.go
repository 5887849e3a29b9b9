package license

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scancore/engine/internal/domain"
)

// scanQuotaBucket is the quota bucket scans_per_month consumes, fixed
// here because request.Options carries no quota-bucket concept of its
// own — one scan always draws one unit from the monthly scan quota,
// regardless of scan type.
const scanQuotaBucket = "scans_per_month"

// Enforcer implements the orchestrator's LicenseGate: it resolves the
// tenant's License, gates scanner/region/hardware binding, and drives
// the Redis-backed QuotaTracker and SessionTracker. It satisfies
// orchestrator.LicenseGate structurally without importing that package.
type Enforcer struct {
	store    Store
	quota    *QuotaTracker
	sessions *SessionTracker
	logger   *zap.Logger
}

func NewEnforcer(store Store, quota *QuotaTracker, sessions *SessionTracker, logger *zap.Logger) *Enforcer {
	return &Enforcer{store: store, quota: quota, sessions: sessions, logger: logger}
}

// CanSubmit gates scanner type, region and hardware binding without any
// side effect — safe to call repeatedly for a dry-run check.
func (e *Enforcer) CanSubmit(ctx context.Context, req domain.ScanRequest) error {
	lic, err := e.store.Resolve(ctx, req.TenantID)
	if err != nil {
		return err
	}

	if !contains(lic.AllowedScanners, req.ScanType) {
		return fmt.Errorf("%w: %s", ErrScannerNotAllowed, req.ScanType)
	}

	if len(req.Options.RegionSet) > 0 && len(lic.AllowedRegions) > 0 {
		for _, region := range req.Options.RegionSet {
			if !contains(lic.AllowedRegions, region) {
				return fmt.Errorf("%w: %s", ErrRegionNotAllowed, region)
			}
		}
	}

	if lic.HardwareBinding != "" {
		fp := req.Target.Metadata["device_fingerprint"]
		if fp == "" || fp != lic.HardwareBinding {
			return ErrHardwareMismatch
		}
	}

	return nil
}

// ReserveQuota pre-increments scans_per_month for the tenant's current
// monthly period and returns a 60s reservation handle.
func (e *Enforcer) ReserveQuota(ctx context.Context, tenantID uuid.UUID, scanType string) (string, error) {
	lic, err := e.store.Resolve(ctx, tenantID)
	if err != nil {
		return "", err
	}
	limit := lic.Quotas[scanQuotaBucket]
	periodKey := time.Now().UTC().Format("2006-01")
	return e.quota.Reserve(ctx, tenantID, periodKey, scanQuotaBucket, limit, 1)
}

func (e *Enforcer) CommitQuota(ctx context.Context, reservation string) {
	e.quota.Commit(ctx, reservation)
}

func (e *Enforcer) ReleaseQuota(ctx context.Context, reservation string) {
	e.quota.Release(ctx, reservation)
}

// TouchSession records the submitting user as active for the tenant's
// concurrent-session cap (the license's MaxConcurrentUsers); the session
// TTL is the one the SessionTracker was built with.
func (e *Enforcer) TouchSession(ctx context.Context, tenantID, userID uuid.UUID) error {
	lic, err := e.store.Resolve(ctx, tenantID)
	if err != nil {
		return err
	}
	return e.sessions.Touch(ctx, tenantID, userID, lic.MaxConcurrentUsers)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
