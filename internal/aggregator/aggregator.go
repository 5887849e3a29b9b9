// Package aggregator implements the Results Aggregator (C6): it folds a
// scanner's ScanEvent stream into the canonical ScanResult, deduplicating
// findings, re-assigning severity from the registry, and computing the
// unified cross-scanner metrics vocabulary.
package aggregator

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

// evidenceHash folds a finding's distinguishing content into a short
// digest so (rule_id, location, evidence_hash) can dedup two findings
// that share a rule and location but differ in the actual evidence (two
// distinct emails flagged on the same line, say).
func evidenceHash(f domain.Finding) string {
	h := sha256.Sum256([]byte(f.Excerpt))
	return hex.EncodeToString(h[:])[:16]
}

type dedupKey struct {
	ruleID   string
	location string
	evidence string
}

// Aggregate converts one job's collected ScanEvent stream into the
// canonical ScanResult. snap re-assigns severity from the registry's
// current rule table, which always wins over a scanner's advisory
// severity.
func Aggregate(job domain.ScanJob, events []domain.ScanEvent, snap *registry.Snapshot) domain.ScanResult {
	result := domain.ScanResult{
		JobID:      job.JobID,
		TenantID:   job.TenantID,
		ScanType:   job.ScanType,
		State:      job.State,
		BySeverity: make(map[registry.Severity]int),
		ByCategory: make(map[string]int),
		PIITotals:  make(map[string]int),
		Units:      make(map[string]int),
		CompletedAt: time.Now(),
	}
	if job.StartedAt != nil && job.FinishedAt != nil {
		result.DurationMs = job.FinishedAt.Sub(*job.StartedAt).Milliseconds()
	}

	seen := make(map[dedupKey]bool)
	var findings []domain.Finding
	var regionViolations []registry.RuleViolation
	var doneHints map[string]int
	var doneCtx map[string]interface{}
	partial := job.State != domain.JobSucceeded

	for _, ev := range events {
		switch ev.Kind {
		case domain.EventFinding:
			f := *ev.Finding
			if sev, ok := lookupSeverity(snap, f.RuleID); ok {
				f.Severity = sev
			}
			key := dedupKey{ruleID: f.RuleID, location: f.Location, evidence: evidenceHash(f)}
			if seen[key] {
				continue
			}
			seen[key] = true
			findings = append(findings, f)
		case domain.EventDone:
			if ev.Done != nil {
				doneHints = ev.Done.Hints
				doneCtx = ev.Done.Context
				partial = partial || ev.Done.Partial
				if v, ok := ev.Done.Context["region_violations"].([]registry.RuleViolation); ok {
					regionViolations = v
				}
			}
		}
	}

	result.Findings = findings
	result.TotalFindings = len(findings)
	result.Partial = partial
	result.RegionViolations = regionViolations

	for _, f := range findings {
		result.BySeverity[f.Severity]++
		if f.Category != "" {
			result.ByCategory[f.Category]++
		}
		if f.PIIKind != "" {
			result.PIITotals[f.PIIKind]++
		}
		if f.Severity == registry.SeverityCritical {
			result.CriticalFindings++
		}
		if f.Severity == registry.SeverityCritical || f.Severity == registry.SeverityHigh {
			result.CriticalFindingsInclHigh++
		}
	}

	result.FilesScanned, result.LinesAnalyzed, result.Units = canonicalizeUnits(job.ScanType, doneHints)

	if doneCtx != nil {
		if dpia, ok := doneCtx["dpia_result"].(domain.DPIAResult); ok {
			result.DPIA = &dpia
		}
		if ai, ok := doneCtx["ai_risk_category"].(string); ok {
			result.Units["ai_risk_category_code"] = aiRiskCodes[ai]
		}
	}

	return result
}

func lookupSeverity(snap *registry.Snapshot, ruleID string) (registry.Severity, bool) {
	if snap == nil || ruleID == "" {
		return "", false
	}
	return snap.SeverityForRule(ruleID)
}

// aiRiskCodes lets the aimodel scanner's textual risk category travel
// through the numeric Units map alongside every other scanner's hints.
var aiRiskCodes = map[string]int{
	"Prohibited": 4, "High": 3, "Limited": 2, "GPAI": 1, "Minimal": 0,
}

// unitFieldsByScanType names which hint keys feed files_scanned and
// lines_analyzed for each scan type, per the unified vocabulary contract.
var unitFieldsByScanType = map[string]struct{ files, lines string }{
	"code":     {"files_scanned", "lines_analyzed"},
	"document": {"pages_scanned", "lines_analyzed"},
	"image":    {"files_scanned", "lines_analyzed"},
	"database": {"tables_sampled", "rows_sampled"},
	"api":      {"endpoints_probed", "endpoints_probed"},
	"website":  {"pages_scanned", "lines_analyzed"},
	"aimodel":  {"files_scanned", "lines_analyzed"},
	"dpia":     {"files_scanned", "files_scanned"},
}

// canonicalizeUnits maps each scanner's declared hint vocabulary onto the
// unified files_scanned / lines_analyzed contract, preserving every raw
// hint in Units for callers that want the scanner-native detail too.
func canonicalizeUnits(scanType string, hints map[string]int) (filesScanned, linesAnalyzed int, units map[string]int) {
	units = make(map[string]int, len(hints))
	for k, v := range hints {
		units[k] = v
	}

	fields, ok := unitFieldsByScanType[scanType]
	if !ok {
		fields = struct{ files, lines string }{"files_scanned", "lines_analyzed"}
	}

	filesScanned = hints[fields.files]
	if filesScanned < 1 {
		filesScanned = 1
	}
	linesAnalyzed = hints[fields.lines]

	return filesScanned, linesAnalyzed, units
}
