package scanengine

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/scancore/engine/internal/collaborators"
	"github.com/scancore/engine/internal/config"
	"github.com/scancore/engine/internal/detect"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

// DocumentScanner handles PDF/DOCX/TXT/CSV blobs that have already been
// extracted to plain text by the collaborator's blob pipeline; the core
// only ever receives bytes plus a page-delimiter convention (form-feed),
// never parses binary document formats itself.
type DocumentScanner struct {
	fetcher collaborators.BlobFetcher
}

func NewDocumentScanner(fetcher collaborators.BlobFetcher) *DocumentScanner {
	return &DocumentScanner{fetcher: fetcher}
}

func (s *DocumentScanner) ScanType() config.ScanType { return config.ScanTypeDocument }
func (s *DocumentScanner) RetrySafe() bool            { return true }

func (s *DocumentScanner) Run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot) (<-chan domain.ScanEvent, error) {
	if req.Target.BlobHandle == "" {
		return nil, fmt.Errorf("scanengine: document scan requires a blob handle")
	}
	ch := make(chan domain.ScanEvent, 32)
	go s.run(ctx, req, snap, ch)
	return ch, nil
}

func (s *DocumentScanner) run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot, ch chan<- domain.ScanEvent) {
	defer close(ch)

	rc, err := s.fetcher.Fetch(ctx, req.Target.BlobHandle)
	if err != nil {
		emitChan(ctx, ch, domain.DiagnosticEvent(domain.DiagLevelError, "fetch blob failed: "+err.Error()))
		emitChan(ctx, ch, domain.DoneEvent(true, map[string]int{"pages_scanned": 0}, nil))
		return
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		emitChan(ctx, ch, domain.DiagnosticEvent(domain.DiagLevelError, "read blob failed: "+err.Error()))
		emitChan(ctx, ch, domain.DoneEvent(true, map[string]int{"pages_scanned": 0}, nil))
		return
	}

	pages := bytes.Split(content, []byte{'\f'})
	linesAnalyzed := 0
	partial := false

	for i, page := range pages {
		select {
		case <-ctx.Done():
			partial = true
			goto done
		default:
		}

		linesAnalyzed += detect.CountLines(page)
		findings := detect.ScanText(req.RequestID, page, fmt.Sprintf("page=%d", i+1), snap, req.Options.RegionSet)
		for _, f := range findings {
			if !emitChan(ctx, ch, domain.FindingEvent(f)) {
				partial = true
				goto done
			}
		}

		if !emitChan(ctx, ch, domain.ProgressEvent((i+1)*100/max1(len(pages)), fmt.Sprintf("scanned page %d/%d", i+1, len(pages)))) {
			partial = true
			goto done
		}
	}

done:
	emitChan(ctx, ch, domain.DoneEvent(partial, map[string]int{
		"pages_scanned":  len(pages),
		"lines_analyzed": linesAnalyzed,
	}, nil))
}

var _ Scanner = (*DocumentScanner)(nil)
