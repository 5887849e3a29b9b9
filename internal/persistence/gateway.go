// Package persistence implements the Persistence Gateway (C8): a narrow
// interface over durable storage, backed by Postgres via lib/pq. Job,
// audit and history listings are scoped by tenant_id; finding and
// job-state queries are keyed by job_id. The scan-completion boundary
// (ScanResult + Findings + History) commits as a single transaction.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/scancore/engine/internal/domain"
)

// ErrTenantMismatch is a programming error: a caller attempted a query
// scoped to one tenant while holding data that belongs to another.
var ErrTenantMismatch = fmt.Errorf("persistence: tenant_id mismatch between caller and record")

// PageRequest paginates query_jobs/query_findings.
type PageRequest struct {
	Limit  int
	Offset int
}

// JobFilter narrows query_jobs by optional state and scan type.
type JobFilter struct {
	State    string
	ScanType string
}

// Gateway is the Postgres-backed Persistence Gateway.
type Gateway struct {
	db     *sql.DB
	logger *zap.Logger
}

// Config holds connection-pool sizing for the underlying database.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
}

// Open connects to Postgres and verifies connectivity before returning,
// so a misconfigured DSN fails at startup.
func Open(cfg Config, logger *zap.Logger) (*Gateway, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("persistence: open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("persistence: ping: %w", err)
	}
	return &Gateway{db: db, logger: logger}, nil
}

// NewWithDB wraps an already-opened *sql.DB, the path sqlmock-backed
// tests use to inject a fake driver.
func NewWithDB(db *sql.DB, logger *zap.Logger) *Gateway {
	return &Gateway{db: db, logger: logger}
}

func (g *Gateway) Close() error { return g.db.Close() }

// DB exposes the underlying connection pool for callers that need it
// outside the gateway's own narrow query surface — running migrations at
// startup, or building a tenant resolver against the same database.
func (g *Gateway) DB() *sql.DB { return g.db }

// SaveJob inserts a new ScanJob row.
func (g *Gateway) SaveJob(ctx context.Context, job domain.ScanJob) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO scan_jobs (job_id, tenant_id, scan_type, state, progress_pct)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id) DO NOTHING`,
		job.JobID, job.TenantID, job.ScanType, string(job.State), job.ProgressPct)
	if err != nil {
		return fmt.Errorf("persistence: save_job: %w", err)
	}
	return nil
}

// UpdateJobState transitions a job's recorded state.
func (g *Gateway) UpdateJobState(ctx context.Context, jobID uuid.UUID, state domain.JobState, at time.Time) error {
	_, err := g.db.ExecContext(ctx, `
		UPDATE scan_jobs SET state = $2, updated_at = $3 WHERE job_id = $1`,
		jobID, string(state), at)
	if err != nil {
		return fmt.Errorf("persistence: update_job_state: %w", err)
	}
	return nil
}

// AppendFindings is idempotent per (job_id, finding_id): a re-delivered
// finding (e.g. after a retried scanner attempt) never duplicates a row.
// It does not check the job's state before writing.
func (g *Gateway) AppendFindings(ctx context.Context, jobID uuid.UUID, findings []domain.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persistence: append_findings: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (finding_id, job_id, type, category, severity, location, excerpt, confidence, rule_id, pii_kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (job_id, finding_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("persistence: append_findings: prepare: %w", err)
	}
	defer stmt.Close()

	for _, f := range findings {
		if _, err := stmt.ExecContext(ctx, f.FindingID, jobID, f.Type, f.Category, string(f.Severity), f.Location, f.Excerpt, f.Confidence, f.RuleID, f.PIIKind); err != nil {
			return fmt.Errorf("persistence: append_findings: %w", err)
		}
	}
	return tx.Commit()
}

// SaveScanResult inserts or replaces the canonical ScanResult row by
// job_id.
func (g *Gateway) SaveScanResult(ctx context.Context, result domain.ScanResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("persistence: save_scan_result: marshal: %w", err)
	}
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO scan_results (job_id, tenant_id, scan_type, compliance_score, total_findings, critical_findings, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id) DO UPDATE SET
			compliance_score = EXCLUDED.compliance_score,
			total_findings = EXCLUDED.total_findings,
			critical_findings = EXCLUDED.critical_findings,
			payload = EXCLUDED.payload`,
		result.JobID, result.TenantID, result.ScanType, result.ComplianceScore, result.TotalFindings, result.CriticalFindings, payload)
	if err != nil {
		return fmt.Errorf("persistence: save_scan_result: %w", err)
	}
	return nil
}

// AppendHistory inserts one compliance trajectory point.
func (g *Gateway) AppendHistory(ctx context.Context, point domain.ComplianceHistoryPoint) error {
	payload, err := json.Marshal(point.ComponentScores)
	if err != nil {
		return fmt.Errorf("persistence: append_history: marshal: %w", err)
	}
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO compliance_history (tenant_id, at, overall_score, component_scores, source_job_id)
		VALUES ($1, $2, $3, $4, $5)`,
		point.TenantID, point.At, point.OverallScore, payload, point.SourceJobID)
	if err != nil {
		return fmt.Errorf("persistence: append_history: %w", err)
	}
	return nil
}

// AppendAudit inserts one append-only audit event.
func (g *Gateway) AppendAudit(ctx context.Context, event domain.AuditEvent) error {
	attrs, err := json.Marshal(event.Attributes)
	if err != nil {
		return fmt.Errorf("persistence: append_audit: marshal: %w", err)
	}
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO audit_events (at, tenant_id, actor, action, target, outcome, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.At, event.TenantID, event.Actor, event.Action, event.Target, event.Outcome, attrs)
	if err != nil {
		return fmt.Errorf("persistence: append_audit: %w", err)
	}
	return nil
}

// QueryJobs returns a tenant-scoped, paginated job listing.
func (g *Gateway) QueryJobs(ctx context.Context, tenantID uuid.UUID, filter JobFilter, page PageRequest) ([]domain.ScanJob, error) {
	query := `SELECT job_id, tenant_id, scan_type, state, progress_pct FROM scan_jobs WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if filter.State != "" {
		args = append(args, filter.State)
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	if filter.ScanType != "" {
		args = append(args, filter.ScanType)
		query += fmt.Sprintf(" AND scan_type = $%d", len(args))
	}
	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, page.Offset)
	query += fmt.Sprintf(" ORDER BY job_id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("persistence: query_jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.ScanJob
	for rows.Next() {
		var j domain.ScanJob
		var state string
		if err := rows.Scan(&j.JobID, &j.TenantID, &j.ScanType, &state, &j.ProgressPct); err != nil {
			return nil, fmt.Errorf("persistence: query_jobs: scan: %w", err)
		}
		j.State = domain.JobState(state)
		if j.TenantID != tenantID {
			return nil, ErrTenantMismatch
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// QueryFindings returns a paginated finding listing for one job.
func (g *Gateway) QueryFindings(ctx context.Context, jobID uuid.UUID, page PageRequest) ([]domain.Finding, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := g.db.QueryContext(ctx, `
		SELECT finding_id, job_id, type, category, severity, location, excerpt, confidence, rule_id, pii_kind
		FROM findings WHERE job_id = $1 ORDER BY finding_id LIMIT $2 OFFSET $3`,
		jobID, limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("persistence: query_findings: %w", err)
	}
	defer rows.Close()

	var out []domain.Finding
	for rows.Next() {
		var f domain.Finding
		var severity string
		if err := rows.Scan(&f.FindingID, &f.JobID, &f.Type, &f.Category, &severity, &f.Location, &f.Excerpt, &f.Confidence, &f.RuleID, &f.PIIKind); err != nil {
			return nil, fmt.Errorf("persistence: query_findings: scan: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// QueryAudit returns a tenant-scoped, paginated audit trail, newest
// first. Satisfies audit.Reader.
func (g *Gateway) QueryAudit(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := g.db.QueryContext(ctx, `
		SELECT at, tenant_id, actor, action, target, outcome, attributes
		FROM audit_events WHERE tenant_id = $1 ORDER BY at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("persistence: query_audit: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		var raw []byte
		if err := rows.Scan(&e.At, &e.TenantID, &e.Actor, &e.Action, &e.Target, &e.Outcome, &raw); err != nil {
			return nil, fmt.Errorf("persistence: query_audit: scan: %w", err)
		}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &e.Attributes)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// QueryHistory returns a tenant-scoped trajectory slice for range.
func (g *Gateway) QueryHistory(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]domain.ComplianceHistoryPoint, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT tenant_id, at, overall_score, component_scores, source_job_id
		FROM compliance_history WHERE tenant_id = $1 AND at BETWEEN $2 AND $3 ORDER BY at`,
		tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("persistence: query_history: %w", err)
	}
	defer rows.Close()

	var out []domain.ComplianceHistoryPoint
	for rows.Next() {
		var p domain.ComplianceHistoryPoint
		var raw []byte
		if err := rows.Scan(&p.TenantID, &p.At, &p.OverallScore, &raw, &p.SourceJobID); err != nil {
			return nil, fmt.Errorf("persistence: query_history: scan: %w", err)
		}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &p.ComponentScores)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CompleteScan commits ScanResult, final Findings and the History point
// atomically — the scan-completion transactional boundary.
func (g *Gateway) CompleteScan(ctx context.Context, result domain.ScanResult, point domain.ComplianceHistoryPoint) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persistence: complete_scan: begin: %w", err)
	}
	defer tx.Rollback()

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("persistence: complete_scan: marshal result: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scan_results (job_id, tenant_id, scan_type, compliance_score, total_findings, critical_findings, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id) DO UPDATE SET
			compliance_score = EXCLUDED.compliance_score,
			total_findings = EXCLUDED.total_findings,
			critical_findings = EXCLUDED.critical_findings,
			payload = EXCLUDED.payload`,
		result.JobID, result.TenantID, result.ScanType, result.ComplianceScore, result.TotalFindings, result.CriticalFindings, payload); err != nil {
		return fmt.Errorf("persistence: complete_scan: save result: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (finding_id, job_id, type, category, severity, location, excerpt, confidence, rule_id, pii_kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (job_id, finding_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("persistence: complete_scan: prepare findings: %w", err)
	}
	defer stmt.Close()
	for _, f := range result.Findings {
		if _, err := stmt.ExecContext(ctx, f.FindingID, result.JobID, f.Type, f.Category, string(f.Severity), f.Location, f.Excerpt, f.Confidence, f.RuleID, f.PIIKind); err != nil {
			return fmt.Errorf("persistence: complete_scan: findings: %w", err)
		}
	}

	scores, err := json.Marshal(point.ComponentScores)
	if err != nil {
		return fmt.Errorf("persistence: complete_scan: marshal history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO compliance_history (tenant_id, at, overall_score, component_scores, source_job_id)
		VALUES ($1, $2, $3, $4, $5)`,
		point.TenantID, point.At, point.OverallScore, scores, point.SourceJobID); err != nil {
		return fmt.Errorf("persistence: complete_scan: history: %w", err)
	}

	return tx.Commit()
}
