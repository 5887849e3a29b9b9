package scanengine

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/scancore/engine/internal/config"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

type fakeBlobFetcher struct {
	content []byte
}

func (f *fakeBlobFetcher) Fetch(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.content)), nil
}

func TestDocumentScannerReportsPagesScanned(t *testing.T) {
	fetcher := &fakeBlobFetcher{content: []byte("page one\f page two\f page three")}
	scanner := NewDocumentScanner(fetcher)
	snap := registry.New().Snapshot()

	req := domain.ScanRequest{
		RequestID: uuid.New(),
		ScanType:  string(config.ScanTypeDocument),
		Target:    domain.ScanTarget{BlobHandle: "blob://doc-1"},
	}

	events, err := scanner.Run(context.Background(), req, snap)
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
	if done.Hints["pages_scanned"] != 3 {
		t.Errorf("expected pages_scanned=3, got %d", done.Hints["pages_scanned"])
	}
	if done.Hints["lines_analyzed"] <= 0 {
		t.Errorf("expected lines_analyzed > 0, got %d", done.Hints["lines_analyzed"])
	}
}
