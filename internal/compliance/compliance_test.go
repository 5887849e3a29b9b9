package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

func TestScorePenalizesBySeverity(t *testing.T) {
	result := domain.ScanResult{
		Findings: []domain.Finding{
			{Severity: registry.SeverityCritical, Category: "lawfulness"},
			{Severity: registry.SeverityHigh, Category: "lawfulness"},
			{Severity: registry.SeverityLow, Category: "accuracy"},
		},
	}

	scores, overall := Score(result, registry.DefaultSeverityWeights(), UniformWeights())

	require.Equal(t, 100-25-10, int(scores[registry.CategoryLawfulness]))
	require.Equal(t, 100-1, int(scores[registry.CategoryAccuracy]))
	require.Equal(t, 100, int(scores[registry.CategoryPurposeLimitation]))
	require.InDelta(t, 0, overall, 100) // sanity: stays within [0,100]
	require.GreaterOrEqual(t, overall, 0.0)
	require.LessOrEqual(t, overall, 100.0)
}

func TestScoreCapsDeductionPerPrinciple(t *testing.T) {
	var findings []domain.Finding
	for i := 0; i < 10; i++ {
		findings = append(findings, domain.Finding{Severity: registry.SeverityCritical, Category: "lawfulness"})
	}
	result := domain.ScanResult{Findings: findings}
	scores, _ := Score(result, registry.DefaultSeverityWeights(), UniformWeights())
	require.Equal(t, 0.0, scores[registry.CategoryLawfulness]) // 10*25=250 capped at 100 deduction, floor 0
}

func TestScoreRegionViolationMultiplier(t *testing.T) {
	result := domain.ScanResult{
		RegionViolations: []registry.RuleViolation{
			{Severity: registry.SeverityHigh, PenaltyMultiplier: 1.2},
		},
	}
	scores, _ := Score(result, registry.DefaultSeverityWeights(), UniformWeights())
	require.InDelta(t, 100-12, scores[registry.CategoryLawfulness], 0.001)
}

func TestBuildForecastInputDownsamplesAndFitsTrend(t *testing.T) {
	store := NewMemoryHistoryStore()
	tenant := uuid.New()
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	for day := 0; day < 5; day++ {
		at := now.AddDate(0, 0, -day)
		require.NoError(t, store.AppendHistory(context.Background(), domain.ComplianceHistoryPoint{
			TenantID: tenant, At: at, OverallScore: float64(90 - day), // improving trend walking backward
		}))
	}

	input, err := BuildForecastInput(context.Background(), store, tenant, now)
	require.NoError(t, err)
	require.Len(t, input.Days, 5)
	require.InDelta(t, 88, input.Mean, 0.001)
	require.Greater(t, input.Slope, 0.0) // scores rise day over day moving forward
}
