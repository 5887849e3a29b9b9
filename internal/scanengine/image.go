package scanengine

import (
	"context"
	"fmt"
	"io"

	"github.com/scancore/engine/internal/collaborators"
	"github.com/scancore/engine/internal/config"
	"github.com/scancore/engine/internal/detect"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

// ImageScanner fetches the target blob and hands it to the OCR adapter;
// when OCR is unavailable it still completes the job, marking findings
// degraded rather than failing.
type ImageScanner struct {
	fetcher collaborators.BlobFetcher
	ocr     detect.OCRAdapter
}

func NewImageScanner(fetcher collaborators.BlobFetcher, ocr detect.OCRAdapter) *ImageScanner {
	if ocr == nil {
		ocr = detect.NoopOCRAdapter{}
	}
	return &ImageScanner{fetcher: fetcher, ocr: ocr}
}

func (s *ImageScanner) ScanType() config.ScanType { return config.ScanTypeImage }
func (s *ImageScanner) RetrySafe() bool            { return true }

func (s *ImageScanner) Run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot) (<-chan domain.ScanEvent, error) {
	if req.Target.BlobHandle == "" {
		return nil, fmt.Errorf("scanengine: image scan requires a blob handle")
	}
	ch := make(chan domain.ScanEvent, 8)
	go s.run(ctx, req, snap, ch)
	return ch, nil
}

func (s *ImageScanner) run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot, ch chan<- domain.ScanEvent) {
	defer close(ch)

	rc, err := s.fetcher.Fetch(ctx, req.Target.BlobHandle)
	if err != nil {
		emitChan(ctx, ch, domain.DiagnosticEvent(domain.DiagLevelError, "fetch blob failed: "+err.Error()))
		emitChan(ctx, ch, domain.DoneEvent(true, map[string]int{"files_scanned": 0}, nil))
		return
	}
	defer rc.Close()

	image, err := io.ReadAll(rc)
	if err != nil {
		emitChan(ctx, ch, domain.DiagnosticEvent(domain.DiagLevelError, "read blob failed: "+err.Error()))
		emitChan(ctx, ch, domain.DoneEvent(true, map[string]int{"files_scanned": 0}, nil))
		return
	}

	emitChan(ctx, ch, domain.ProgressEvent(10, "running OCR"))

	findings, diags := detect.ScanImage(req.RequestID, image, "blob="+req.Target.BlobHandle, s.ocr, snap, req.Options.RegionSet)
	partial := false
	for _, d := range diags {
		if !emitChan(ctx, ch, domain.ScanEvent{Kind: domain.EventDiagnostic, Diagnostic: &d}) {
			partial = true
			break
		}
	}
	for _, f := range findings {
		if !emitChan(ctx, ch, domain.FindingEvent(f)) {
			partial = true
			break
		}
	}

	emitChan(ctx, ch, domain.DoneEvent(partial, map[string]int{"files_scanned": 1}, nil))
}

var _ Scanner = (*ImageScanner)(nil)
