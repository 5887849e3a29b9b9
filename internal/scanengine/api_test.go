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

// cancelingFetcher cancels its own context on the first probe, so a
// correct scanner must stop after one endpoint instead of probing every
// endpoint in the target list.
type cancelingFetcher struct {
	cancel context.CancelFunc
	calls  int
}

func (f *cancelingFetcher) FetchPage(context.Context, string) (collaborators.PageFetch, error) {
	return collaborators.PageFetch{}, nil
}

func (f *cancelingFetcher) Probe(context.Context, string) (int, map[string]string, []byte, error) {
	f.calls++
	f.cancel()
	return 200, map[string]string{"Authorization": "x", "X-RateLimit-Limit": "10"}, nil, nil
}

func TestAPIScannerStopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &cancelingFetcher{cancel: cancel}

	scanner := NewAPIScanner(fetcher)
	snap := registry.New().Snapshot()

	req := domain.ScanRequest{
		RequestID: uuid.New(),
		ScanType:  string(config.ScanTypeAPI),
		Target:    domain.ScanTarget{Endpoints: []string{"https://a", "https://b", "https://c"}},
	}

	events, err := scanner.Run(ctx, req, snap)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var done *domain.DoneSummary
	for ev := range events {
		if ev.Kind == domain.EventDone {
			done = ev.Done
		}
	}
	if done == nil {
		t.Fatal("expected a terminal done event")
	}
	if !done.Partial {
		t.Error("expected partial=true once context is cancelled mid-probe")
	}
	if fetcher.calls >= 3 {
		t.Errorf("expected the loop to stop before probing every endpoint, got %d calls", fetcher.calls)
	}
}
