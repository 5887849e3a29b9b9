package aggregator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

func TestAggregateDedupesBySameKey(t *testing.T) {
	jobID := uuid.New()
	finding := domain.Finding{
		FindingID: uuid.New(), JobID: jobID,
		RuleID: "email", Location: "line:3", Excerpt: "a@b.com", Severity: "Low",
	}
	events := []domain.ScanEvent{
		domain.FindingEvent(finding),
		domain.FindingEvent(finding), // exact duplicate: same rule/location/evidence
		domain.DoneEvent(false, map[string]int{"files_scanned": 2, "lines_analyzed": 40}, nil),
	}

	job := domain.ScanJob{JobID: jobID, ScanType: "code", State: domain.JobSucceeded}
	result := Aggregate(job, events, registry.New().Snapshot())

	require.Equal(t, 1, result.TotalFindings)
	require.Equal(t, 2, result.FilesScanned)
	require.Equal(t, 40, result.LinesAnalyzed)
	require.False(t, result.Partial)
}

func TestAggregateRegistrySeverityWins(t *testing.T) {
	jobID := uuid.New()
	finding := domain.Finding{
		FindingID: uuid.New(), JobID: jobID,
		RuleID: "dutch_bsn", Location: "line:1", Excerpt: "111222333", Severity: "Low",
	}
	events := []domain.ScanEvent{
		domain.FindingEvent(finding),
		domain.DoneEvent(false, map[string]int{"files_scanned": 1}, nil),
	}
	job := domain.ScanJob{JobID: jobID, ScanType: "document", State: domain.JobSucceeded}

	result := Aggregate(job, events, registry.New().Snapshot())
	require.Len(t, result.Findings, 1)
	require.NotEqual(t, registry.Severity("Low"), result.Findings[0].Severity)
}

func TestAggregatePartialOnFailedState(t *testing.T) {
	job := domain.ScanJob{JobID: uuid.New(), ScanType: "website", State: domain.JobFailed}
	result := Aggregate(job, nil, registry.New().Snapshot())
	require.True(t, result.Partial)
	require.Equal(t, 1, result.FilesScanned) // floor of 1 even with zero hints
}
