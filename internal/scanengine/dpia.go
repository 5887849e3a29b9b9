package scanengine

import (
	"context"
	"fmt"

	"github.com/scancore/engine/internal/config"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

// DPIACategories lists the 5 questionnaire categories in a fixed order,
// each carrying exactly 5 questions answered 0=No/1=Partial/2=Yes.
var DPIACategories = []string{
	"data_category", "processing_activity", "rights_impact",
	"transfer_sharing", "security_measures",
}

// dpiaForcingCategories: a High score on any of these forces dpia_required.
var dpiaForcingCategories = map[string]bool{
	"data_category": true, "processing_activity": true, "rights_impact": true,
}

var recommendationTable = map[string][]string{
	"data_category_High":        {"Conduct a full Article 35 DPIA before processing begins", "Minimize the categories of personal data collected"},
	"data_category_Medium":      {"Review data categories collected against the stated purpose"},
	"processing_activity_High":  {"Document the legal basis for each processing activity", "Conduct a full Article 35 DPIA before processing begins"},
	"processing_activity_Medium": {"Re-assess the necessity of higher-risk processing activities"},
	"rights_impact_High":        {"Establish a data-subject rights request process", "Conduct a full Article 35 DPIA before processing begins"},
	"rights_impact_Medium":      {"Document how data-subject rights requests are handled"},
	"transfer_sharing_High":     {"Review international transfer mechanisms (SCCs, adequacy decisions)"},
	"security_measures_High":    {"Perform a security control gap assessment"},
}

// CategoryRisk classifies a 0-10 scaled category score.
func CategoryRisk(score float64) string {
	switch {
	case score >= 7:
		return "High"
	case score >= 4:
		return "Medium"
	default:
		return "Low"
	}
}

// RunDPIA scores a 5x5 questionnaire deterministically: same 25 answers
// always produce the same classification and percentage.
func RunDPIA(answers map[string][]int) domain.DPIAResult {
	categoryScores := make(map[string]float64, len(DPIACategories))
	var recommendations []string
	required := false
	var sumPct float64

	for _, cat := range DPIACategories {
		a := answers[cat]
		sum := 0
		for _, v := range a {
			sum += v
		}
		// Raw sum is 0..10 (5 questions * max 2); already on a 0-10 scale.
		score := float64(sum)
		categoryScores[cat] = score

		risk := CategoryRisk(score)
		if risk == "High" && dpiaForcingCategories[cat] {
			required = true
		}
		if recs, ok := recommendationTable[cat+"_"+risk]; ok {
			recommendations = append(recommendations, recs...)
		}
		sumPct += score
	}

	overallPct := (sumPct / float64(len(DPIACategories)*10)) * 100

	return domain.DPIAResult{
		DPIARequired:    required,
		CategoryScores:  categoryScores,
		OverallPercent:  overallPct,
		Recommendations: dedupStrings(recommendations),
	}
}

func dedupStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// DPIAScanner runs the structured questionnaire state machine; it is not
// a content scan.
type DPIAScanner struct{}

func NewDPIAScanner() *DPIAScanner { return &DPIAScanner{} }

func (s *DPIAScanner) ScanType() config.ScanType { return config.ScanTypeDPIA }
func (s *DPIAScanner) RetrySafe() bool            { return false }

func (s *DPIAScanner) Run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot) (<-chan domain.ScanEvent, error) {
	if len(req.Target.QuestionnaireAnswers) == 0 {
		return nil, fmt.Errorf("scanengine: dpia scan requires questionnaire answers")
	}
	ch := make(chan domain.ScanEvent, 8)
	go s.run(ctx, req, ch)
	return ch, nil
}

func (s *DPIAScanner) run(ctx context.Context, req domain.ScanRequest, ch chan<- domain.ScanEvent) {
	defer close(ch)

	emitChan(ctx, ch, domain.ProgressEvent(50, "scoring questionnaire"))

	result := RunDPIA(req.Target.QuestionnaireAnswers)

	for _, cat := range DPIACategories {
		score := result.CategoryScores[cat]
		risk := CategoryRisk(score)
		sev := "Low"
		switch risk {
		case "High":
			sev = "High"
		case "Medium":
			sev = "Medium"
		}
		f := domain.Finding{
			Type: "dpia_category", Category: cat, Severity: domainSeverity(sev),
			Location: "category=" + cat, Excerpt: fmt.Sprintf("%s risk (%.1f/10)", risk, score),
			Confidence: 1.0, RuleID: "DPIA_" + cat,
		}
		if !emitChan(ctx, ch, domain.FindingEvent(f)) {
			break
		}
	}

	emitChan(ctx, ch, domain.DoneEvent(false, map[string]int{"files_scanned": 1}, map[string]interface{}{
		"dpia_result": result,
	}))
}

func domainSeverity(s string) registry.Severity {
	return registry.Severity(s)
}

var _ Scanner = (*DPIAScanner)(nil)
