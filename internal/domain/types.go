// Package domain holds the entities shared across every component:
// Finding, ScanRequest, ScanJob, ScanResult, ComplianceHistoryPoint and
// AuditEvent, per the data model. These are plain structs with no
// persistence or transport concerns attached.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/scancore/engine/internal/registry"
)

// JobState is the closed ScanJob lifecycle enum.
type JobState string

const (
	JobQueued    JobState = "Queued"
	JobAdmitted  JobState = "Admitted"
	JobRunning   JobState = "Running"
	JobSucceeded JobState = "Succeeded"
	JobFailed    JobState = "Failed"
	JobCancelled JobState = "Cancelled"
	JobTimedOut  JobState = "TimedOut"
)

// IsTerminal reports whether a state has no further transitions.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCancelled, JobTimedOut:
		return true
	default:
		return false
	}
}

// Principal mirrors tenant.Principal without importing it, to keep
// domain free of the tenant package's context-carrying concerns; callers
// convert at the boundary.
type Principal struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Roles    []string
}

// ScanRequest is what a collaborator submits to the orchestrator.
type ScanRequest struct {
	RequestID    uuid.UUID
	TenantID     uuid.UUID
	Principal    Principal
	ScanType     string
	Target       ScanTarget
	Options      ScanOptions
	SubmittedAt  time.Time
	Deadline     *time.Time
}

// ScanTarget is scanner-specific input: exactly one of these fields is
// populated depending on ScanType.
type ScanTarget struct {
	RepoPath          string            // code
	BlobHandle        string            // document/image
	URL               string            // website
	DSN               string            // database (opaque secret handle)
	Endpoints         []string          // api
	ModelArtifactPath string            // aimodel
	QuestionnaireAnswers map[string][]int // dpia: category -> 5 answers in {0,1,2}
	Metadata          map[string]string
}

// ScanOptions carries scanner-tunable knobs (scan mode, region set, link
// depth) that do not belong in the target itself.
type ScanOptions struct {
	RegionSet []string
	ScanMode  string // FAST|SMART|DEEP, database scanner only
	MaxPages  int    // website scanner, default 5
}

// ScanJob is the orchestrator's live view of one execution.
type ScanJob struct {
	JobID               uuid.UUID
	TenantID             uuid.UUID
	ScanType             string
	State                JobState
	WorkerID             string
	StartedAt            *time.Time
	FinishedAt           *time.Time
	ProgressPct          int
	PartialFindingsCount int
}

// Finding is a single detected violation or PII occurrence, normalized by
// the Results Aggregator (C6).
type Finding struct {
	FindingID  uuid.UUID
	JobID      uuid.UUID
	Type       string
	Category   string
	Severity   registry.Severity
	Location   string
	Excerpt    string
	Confidence float64
	RuleID     string
	RegionTags []string
	PIIKind    string
}

// ScanResult is the canonical one-per-terminal-job summary.
type ScanResult struct {
	JobID            uuid.UUID
	TenantID         uuid.UUID
	ScanType         string
	State            JobState
	Partial          bool
	FilesScanned     int
	LinesAnalyzed    int
	Units            map[string]int
	Findings         []Finding
	TotalFindings    int
	CriticalFindings int
	CriticalFindingsInclHigh int
	BySeverity       map[registry.Severity]int
	ByCategory       map[string]int
	PIITotals        map[string]int
	ComplianceScore  float64
	PrincipleScores  map[registry.ComplianceCategory]float64
	RegionViolations []registry.RuleViolation
	ScanMode         string
	DPIA             *DPIAResult
	DurationMs       int64
	CompletedAt      time.Time
}

// DPIAResult carries the questionnaire-engine's output, embedded in
// ScanResult only for dpia scans.
type DPIAResult struct {
	DPIARequired    bool
	CategoryScores  map[string]float64 // 0..10
	OverallPercent  float64
	Recommendations []string
}

// ComplianceHistoryPoint is an append-only per-tenant trajectory entry.
type ComplianceHistoryPoint struct {
	TenantID        uuid.UUID
	At              time.Time
	OverallScore    float64
	ComponentScores map[registry.ComplianceCategory]float64
	SourceJobID     uuid.UUID
}

// AuditEvent is an append-only record of a privileged action.
type AuditEvent struct {
	At         time.Time
	TenantID   uuid.UUID
	Actor      uuid.UUID
	Action     string
	Target     string
	Outcome    string
	Attributes map[string]string
}

// License is read-only to the core; maintained by an external admin path.
type License struct {
	TenantID          uuid.UUID
	Tier              string
	AllowedScanners   []string
	AllowedRegions    []string
	FeatureFlags      []string
	Quotas            map[string]int64 // period key (e.g. "scans_per_month") -> limit
	MaxConcurrentUsers int
	ValidFrom         time.Time
	ValidUntil        time.Time
	HardwareBinding   string // empty for non-standalone licenses
}

// QuotaCounter tracks usage for one tenant/period/scan-type bucket.
type QuotaCounter struct {
	TenantID uuid.UUID
	PeriodKey string
	ScanType string
	Used     int64
}
