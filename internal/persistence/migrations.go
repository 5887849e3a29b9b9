package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migrationLockID is an arbitrary, process-wide advisory lock key so two
// instances starting at once never race each other's schema creation.
const migrationLockID = 741852963

// RunMigrations creates every table the gateway depends on if absent. It
// is idempotent and safe to run on every process start.
func RunMigrations(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := db.ExecContext(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("persistence: acquire migration lock: %w", err)
	}
	defer db.Exec("SELECT pg_advisory_unlock($1)", migrationLockID)

	if _, err := db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`); err != nil {
		return fmt.Errorf("persistence: enable uuid-ossp: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("persistence: run migration: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		tenant_id  UUID PRIMARY KEY,
		slug       TEXT UNIQUE NOT NULL,
		name       TEXT NOT NULL,
		is_active  BOOLEAN NOT NULL DEFAULT true,
		plan       TEXT NOT NULL DEFAULT 'standard',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		session_token      TEXT PRIMARY KEY,
		tenant_id          UUID NOT NULL,
		user_id            UUID NOT NULL,
		roles              TEXT,
		device_fingerprint TEXT,
		expires_at         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scan_jobs (
		job_id       UUID PRIMARY KEY,
		tenant_id    UUID NOT NULL,
		scan_type    TEXT NOT NULL,
		state        TEXT NOT NULL,
		progress_pct INT NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_jobs_tenant ON scan_jobs (tenant_id, job_id)`,
	`CREATE TABLE IF NOT EXISTS findings (
		finding_id UUID NOT NULL,
		job_id     UUID NOT NULL,
		type       TEXT,
		category   TEXT,
		severity   TEXT,
		location   TEXT,
		excerpt    TEXT,
		confidence DOUBLE PRECISION,
		rule_id    TEXT,
		pii_kind   TEXT,
		PRIMARY KEY (job_id, finding_id)
	)`,
	`CREATE TABLE IF NOT EXISTS scan_results (
		job_id            UUID PRIMARY KEY,
		tenant_id         UUID NOT NULL,
		scan_type         TEXT NOT NULL,
		compliance_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_findings    INT NOT NULL DEFAULT 0,
		critical_findings INT NOT NULL DEFAULT 0,
		payload           JSONB NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_results_tenant ON scan_results (tenant_id)`,
	`CREATE TABLE IF NOT EXISTS compliance_history (
		id               BIGSERIAL PRIMARY KEY,
		tenant_id        UUID NOT NULL,
		at               TIMESTAMPTZ NOT NULL,
		overall_score    DOUBLE PRECISION NOT NULL,
		component_scores JSONB NOT NULL,
		source_job_id    UUID NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_compliance_history_tenant_at ON compliance_history (tenant_id, at)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id         BIGSERIAL PRIMARY KEY,
		at         TIMESTAMPTZ NOT NULL,
		tenant_id  UUID NOT NULL,
		actor      UUID NOT NULL,
		action     TEXT NOT NULL,
		target     TEXT,
		outcome    TEXT,
		attributes JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_tenant_at ON audit_events (tenant_id, at DESC)`,
}
