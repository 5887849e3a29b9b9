package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

// LicenseGate is the narrow view of the License & Quota Enforcer (C5) the
// orchestrator needs at admission time. The concrete implementation lives
// in internal/license and is injected at startup so the two packages
// never import each other.
type LicenseGate interface {
	// CanSubmit gates scanner type, region and hardware binding without
	// side effects.
	CanSubmit(ctx context.Context, req domain.ScanRequest) error
	// ReserveQuota pre-increments usage and returns a reservation handle
	// good for 60s unless committed or released.
	ReserveQuota(ctx context.Context, tenantID uuid.UUID, scanType string) (reservation string, err error)
	CommitQuota(ctx context.Context, reservation string)
	ReleaseQuota(ctx context.Context, reservation string)
	// TouchSession records the submitting user as active for the
	// concurrent-session TTL, rejecting if the cap is already at capacity
	// for a user not already in the active set.
	TouchSession(ctx context.Context, tenantID, userID uuid.UUID) error
}

// SnapshotSource resolves the current pattern/rule registry snapshot at
// dispatch time, so a reload mid-queue only affects not-yet-started jobs.
// Satisfied by *registry.Registry.
type SnapshotSource interface {
	Snapshot() *registry.Snapshot
}

// ResultSink receives the aggregated terminal outcome of a job. The
// concrete pipeline is aggregator.Aggregate feeding persistence.Gateway;
// kept as an interface here so the orchestrator never imports either.
type ResultSink interface {
	Finalize(ctx context.Context, job *domain.ScanJob, events []domain.ScanEvent)
}

// JobRecorder persists job lifecycle transitions. A no-op implementation
// is acceptable when the orchestrator runs without durable storage (e.g.
// in tests), but production wiring always supplies persistence.Gateway.
type JobRecorder interface {
	SaveJob(ctx context.Context, job domain.ScanJob) error
	UpdateJobState(ctx context.Context, jobID uuid.UUID, state domain.JobState, at time.Time) error
}

// admittedJob is the orchestrator's internal bookkeeping record, distinct
// from domain.ScanJob which is the externally-visible projection.
type admittedJob struct {
	job         domain.ScanJob
	req         domain.ScanRequest
	reservation string
	cancel      context.CancelFunc
	events      chan domain.ScanEvent
	subscribers []chan domain.ScanEvent
	done        chan struct{}
	submittedAt time.Time
}
