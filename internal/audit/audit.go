// Package audit implements the append-only audit trail supplementing
// C8's persistence contract, readable back in a paginated, tenant-scoped
// view. Its only writer is the result sink, which records one
// "scan.completed" event per terminal job with the job's final state as
// outcome and no actor. A cancellation shows up only as that event's
// outcome; who cancelled is not recorded. License overrides and registry
// reloads are not recorded.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/scancore/engine/internal/domain"
)

// Writer is the narrow persistence dependency audit needs.
type Writer interface {
	AppendAudit(ctx context.Context, event domain.AuditEvent) error
}

// Reader is satisfied by a store capable of listing a tenant's audit
// trail; the Postgres gateway implements this via a dedicated query, kept
// out of the core Gateway interface since audit reads are an operator
// surface, not a scan-pipeline one.
type Reader interface {
	QueryAudit(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.AuditEvent, error)
}

// Recorder records privileged actions. Record writes synchronously through
// the Writer and returns its error; each caller decides whether a failed
// audit write matters to it.
type Recorder struct {
	writer Writer
}

func NewRecorder(writer Writer) *Recorder {
	return &Recorder{writer: writer}
}

// Record appends one audit event, stamping At if the caller left it zero.
func (r *Recorder) Record(ctx context.Context, event domain.AuditEvent) error {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	return r.writer.AppendAudit(ctx, event)
}

// RecordAction is a convenience wrapper for the common case of a single
// actor performing a single named action against a target.
func (r *Recorder) RecordAction(ctx context.Context, tenantID, actor uuid.UUID, action, target, outcome string, attrs map[string]string) error {
	return r.Record(ctx, domain.AuditEvent{
		TenantID:   tenantID,
		Actor:      actor,
		Action:     action,
		Target:     target,
		Outcome:    outcome,
		Attributes: attrs,
	})
}

// List returns one tenant's audit trail, newest first, through any
// Reader (the Postgres gateway in production).
func List(ctx context.Context, reader Reader, tenantID uuid.UUID, limit, offset int) ([]domain.AuditEvent, error) {
	return reader.QueryAudit(ctx, tenantID, limit, offset)
}
