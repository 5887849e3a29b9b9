package scanengine

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/scancore/engine/internal/collaborators"
	"github.com/scancore/engine/internal/config"
	"github.com/scancore/engine/internal/detect"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

const maxCodeFileSize = 10 * 1024 * 1024 // 10MB size cap, larger files are skipped as a Diagnostic

var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".pdf": true,
	".zip": true, ".tar": true, ".gz": true, ".exe": true, ".bin": true,
	".so": true, ".dll": true, ".woff": true, ".woff2": true, ".ico": true,
}

// CodeScanner enumerates files in a local tree or VCS clone handle up to
// a size cap, skips binaries by extension, runs the text scanner, and
// applies code-specific rules (hardcoded secrets, BSN literals are
// already covered by the shared pattern set).
type CodeScanner struct {
	lister collaborators.FileLister
}

func NewCodeScanner(lister collaborators.FileLister) *CodeScanner {
	return &CodeScanner{lister: lister}
}

func (s *CodeScanner) ScanType() config.ScanType { return config.ScanTypeCode }
func (s *CodeScanner) RetrySafe() bool            { return false }

func (s *CodeScanner) Run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot) (<-chan domain.ScanEvent, error) {
	if req.Target.RepoPath == "" {
		return nil, fmt.Errorf("scanengine: code scan requires a repo path")
	}
	ch := make(chan domain.ScanEvent, 32)
	go s.run(ctx, req, snap, ch)
	return ch, nil
}

func (s *CodeScanner) run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot, ch chan<- domain.ScanEvent) {
	defer close(ch)

	files, err := s.lister.List(ctx, req.Target.RepoPath)
	if err != nil {
		emitChan(ctx, ch, domain.DiagnosticEvent(domain.DiagLevelError, "list files: "+err.Error()))
		emitChan(ctx, ch, domain.DoneEvent(true, map[string]int{"files_scanned": 0}, nil))
		return
	}

	filesScanned := 0
	linesAnalyzed := 0
	partial := false

	for i, f := range files {
		select {
		case <-ctx.Done():
			partial = true
			goto done
		default:
		}

		if binaryExtensions[strings.ToLower(filepath.Ext(f.Path))] {
			continue
		}
		if f.Size > maxCodeFileSize {
			if !emitChan(ctx, ch, domain.DiagnosticEvent(domain.DiagLevelWarning, "skipped oversized file: "+f.Path)) {
				partial = true
				goto done
			}
			continue
		}

		rc, err := s.lister.Open(ctx, f.Path)
		if err != nil {
			if !emitChan(ctx, ch, domain.DiagnosticEvent(domain.DiagLevelWarning, "open failed: "+f.Path)) {
				partial = true
				goto done
			}
			continue
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}

		linesAnalyzed += detect.CountLines(content)
		findings := detect.ScanText(req.RequestID, content, "file="+f.Path, snap, req.Options.RegionSet)
		for _, finding := range findings {
			if !emitChan(ctx, ch, domain.FindingEvent(finding)) {
				partial = true
				goto done
			}
		}
		filesScanned++

		if filesScanned%25 == 0 || i == len(files)-1 {
			if !emitChan(ctx, ch, domain.ProgressEvent(filesScanned*100/max1(len(files)), fmt.Sprintf("scanned %d/%d files", filesScanned, len(files)))) {
				partial = true
				goto done
			}
		}
	}

done:
	emitChan(ctx, ch, domain.DoneEvent(partial, map[string]int{
		"files_scanned":  filesScanned,
		"lines_analyzed": linesAnalyzed,
	}, nil))
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

var _ Scanner = (*CodeScanner)(nil)
