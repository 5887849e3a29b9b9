// Package compliance implements the Compliance Score Engine (C7): per-
// principle penalty scoring from a finalized ScanResult, the overall
// weighted-mean compliance score, and the trajectory/forecast-input view
// consumed by an external forecasting collaborator.
package compliance

import (
	"math"

	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

const maxDeductionPerPrinciplePerScan = 100.0

// Score computes every GDPR principle's score for one finalized
// ScanResult and the overall weighted mean, clamped to [0, 100].
func Score(result domain.ScanResult, weights registry.SeverityWeights, principleWeights map[registry.ComplianceCategory]float64) (map[registry.ComplianceCategory]float64, float64) {
	deductions := make(map[registry.ComplianceCategory]float64)
	for _, c := range registry.AllCategories() {
		deductions[c] = 0
	}

	for _, f := range result.Findings {
		cat := registry.ComplianceCategory(f.Category)
		if _, ok := deductions[cat]; !ok {
			continue // findings without a recognized principle don't penalize any principle
		}
		deductions[cat] += weights.For(f.Severity)
	}

	for _, v := range result.RegionViolations {
		// Region violations aren't findings and carry no principle tag
		// directly; they penalize lawfulness, the principle GDPR rule
		// packs are written against, scaled by the rule's multiplier.
		mult := v.PenaltyMultiplier
		if mult <= 0 {
			mult = 1.0
		}
		deductions[registry.CategoryLawfulness] += weights.For(v.Severity) * mult
	}

	scores := make(map[registry.ComplianceCategory]float64, len(deductions))
	for cat, ded := range deductions {
		if ded > maxDeductionPerPrinciplePerScan {
			ded = maxDeductionPerPrinciplePerScan
		}
		scores[cat] = clamp(100-ded, 0, 100)
	}

	overall := weightedMean(scores, principleWeights)
	return scores, clamp(overall, 0, 100)
}

// UniformWeights gives every principle equal weight, the documented
// default when no weight table override is configured.
func UniformWeights() map[registry.ComplianceCategory]float64 {
	w := make(map[registry.ComplianceCategory]float64)
	for _, c := range registry.AllCategories() {
		w[c] = 1.0
	}
	return w
}

func weightedMean(scores map[registry.ComplianceCategory]float64, weights map[registry.ComplianceCategory]float64) float64 {
	var sum, totalWeight float64
	for cat, score := range scores {
		w := weights[cat]
		if w == 0 {
			w = 1.0
		}
		sum += score * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return sum / totalWeight
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
