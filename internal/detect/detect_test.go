package detect

import (
	"testing"

	"github.com/google/uuid"
	"github.com/scancore/engine/internal/registry"
)

func TestScanTextDedupsOverlappingWindow(t *testing.T) {
	reg := registry.New().Snapshot()
	content := []byte("reach jane.doe@example.com for support")
	findings := ScanText(uuid.New(), content, "file.txt", reg, nil)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %+v", len(findings), findings)
	}
}

func TestEstimateCookieCountHeuristic(t *testing.T) {
	cases := []struct {
		trackers int
		want     int
	}{
		{0, 0},
		{1, 2},
		{3, 2},
		{10, 7},
		{100, 20},
	}
	for _, c := range cases {
		trackers := make([]string, c.trackers)
		got := estimateCookieCount(nil, trackers)
		if got != c.want {
			t.Errorf("estimateCookieCount(trackers=%d) = %d, want %d", c.trackers, got, c.want)
		}
	}
}

func TestAnalyzeHTMLScenarioS1(t *testing.T) {
	page := PageCapture{
		URL: "https://example.nl",
		HTML: `<html><body>
			<button>Accept All</button>
			<input type="checkbox" class="marketing" checked>
			consent banner here
		</body></html>`,
		LoadedResources: []string{"https://www.google-analytics.com/analytics.js"},
	}
	obs := AnalyzeHTML(page)
	if obs.HasRejectAllButton {
		t.Error("expected no reject-all button")
	}
	if !obs.PreTickedMarketing {
		t.Error("expected pre-ticked marketing checkbox detected")
	}
	if len(obs.TrackerDomains) == 0 {
		t.Error("expected google-analytics.com tracker detected")
	}
	if obs.CookiesFound < 2 {
		t.Errorf("expected estimated cookie count >= 2, got %d", obs.CookiesFound)
	}
}

func TestAnalyzeModelArtifactUnknownFramework(t *testing.T) {
	findings := AnalyzeModelArtifact(uuid.New(), ModelArtifactMetadata{})
	if len(findings) != 1 || findings[0].RuleID != "MODEL_FRAMEWORK_UNKNOWN" {
		t.Fatalf("expected single unknown-framework finding, got %+v", findings)
	}
}
