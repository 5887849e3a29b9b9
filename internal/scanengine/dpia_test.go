package scanengine

import "testing"

func TestRunDPIAScenarioS2(t *testing.T) {
	answers := map[string][]int{
		"data_category":       {2, 0, 0, 2, 0},
		"processing_activity": {2, 2, 0, 0, 0},
		"rights_impact":       {1, 1, 0, 0, 0},
		"transfer_sharing":    {0, 0, 0, 0, 0},
		"security_measures":   {0, 0, 0, 0, 0},
	}

	result := RunDPIA(answers)

	want := map[string]float64{
		"data_category":       10,
		"processing_activity": 8,
		"rights_impact":       5,
		"transfer_sharing":    0,
		"security_measures":   0,
	}
	for cat, score := range want {
		if result.CategoryScores[cat] != score {
			t.Errorf("category %s score = %v, want %v", cat, result.CategoryScores[cat], score)
		}
	}

	if CategoryRisk(result.CategoryScores["data_category"]) != "High" {
		t.Error("expected data_category High risk")
	}
	if CategoryRisk(result.CategoryScores["rights_impact"]) != "Medium" {
		t.Error("expected rights_impact Medium risk")
	}
	if !result.DPIARequired {
		t.Error("expected dpia_required=true")
	}
	if len(result.Recommendations) < 3 {
		t.Errorf("expected at least 3 recommendations, got %d: %v", len(result.Recommendations), result.Recommendations)
	}
}

func TestRunDPIADeterministic(t *testing.T) {
	answers := map[string][]int{
		"data_category":       {2, 2, 2, 2, 2},
		"processing_activity": {0, 0, 0, 0, 0},
		"rights_impact":       {0, 0, 0, 0, 0},
		"transfer_sharing":    {0, 0, 0, 0, 0},
		"security_measures":   {0, 0, 0, 0, 0},
	}
	a := RunDPIA(answers)
	b := RunDPIA(answers)
	if a.OverallPercent != b.OverallPercent || a.DPIARequired != b.DPIARequired {
		t.Error("expected deterministic result across identical runs")
	}
}
