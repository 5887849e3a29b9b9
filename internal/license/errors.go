// Package license implements the License & Quota Enforcer (C5): license
// resolution and gating, quota pre-increment/reservation, the
// concurrent-session cap, and hardware-binding checks for standalone
// licenses. Public operations never throw — every failure mode is
// surfaced as a structured error the orchestrator turns into a
// Rejected* response.
package license

import "errors"

// ErrLicenseExpired and friends name the specific gating failure so the
// orchestrator's RejectedLicense carries a useful reason string.
var (
	ErrLicenseNotFound    = errors.New("license: no active license for tenant")
	ErrLicenseExpired     = errors.New("license: license has expired")
	ErrLicenseSuspended   = errors.New("license: license is suspended")
	ErrScannerNotAllowed  = errors.New("license: scan type not permitted by license")
	ErrRegionNotAllowed   = errors.New("license: region not permitted by license")
	ErrHardwareMismatch   = errors.New("license: hardware_mismatch")
	ErrQuotaExceeded      = errors.New("license: quota exceeded for period")
	ErrConcurrentCapHit   = errors.New("license: concurrent session cap reached")
	ErrReservationUnknown = errors.New("license: unknown or expired reservation")
)
