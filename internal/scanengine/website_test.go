package scanengine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/scancore/engine/internal/collaborators"
	"github.com/scancore/engine/internal/config"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

type fakeFetcher struct {
	pages map[string]collaborators.PageFetch
}

func (f *fakeFetcher) FetchPage(_ context.Context, url string) (collaborators.PageFetch, error) {
	return f.pages[url], nil
}

func (f *fakeFetcher) Probe(context.Context, string) (int, map[string]string, []byte, error) {
	return 200, nil, nil, nil
}

func TestWebsiteScannerScenarioS1(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]collaborators.PageFetch{
		"https://example.nl": {
			URL: "https://example.nl",
			HTML: `<html><body>
				<button>Accept All</button>
				<input type="checkbox" class="marketing" checked>
			</body></html>`,
			LoadedResources: []string{"https://www.google-analytics.com/analytics.js"},
		},
	}}

	scanner := NewWebsiteScanner(fetcher)
	snap := registry.New().Snapshot()

	req := domain.ScanRequest{
		RequestID: uuid.New(),
		ScanType:  string(config.ScanTypeWebsite),
		Target:    domain.ScanTarget{URL: "https://example.nl"},
		Options:   domain.ScanOptions{RegionSet: []string{"NL"}, MaxPages: 1},
	}

	events, err := scanner.Run(context.Background(), req, snap)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var violationCount int
	var done *domain.DoneSummary
	for ev := range events {
		if ev.Kind == domain.EventDone {
			done = ev.Done
		}
	}
	if done == nil {
		t.Fatal("expected a terminal done event")
	}
	if done.Hints["pages_scanned"] != 1 {
		t.Errorf("expected pages_scanned=1, got %d", done.Hints["pages_scanned"])
	}
	if done.Hints["trackers_found"] < 1 {
		t.Error("expected at least one tracker found")
	}
	if done.Hints["cookies_found"] < 2 {
		t.Error("expected estimated cookies_found >= 2")
	}
	if done.Hints["lines_analyzed"] <= 0 {
		t.Errorf("expected lines_analyzed > 0, got %d", done.Hints["lines_analyzed"])
	}
	violations, _ := done.Context["region_violations"].([]registry.RuleViolation)
	violationCount = len(violations)
	if violationCount < 5 {
		t.Errorf("expected >= 5 NL violations per scenario S1, got %d", violationCount)
	}
}
