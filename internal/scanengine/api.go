package scanengine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/scancore/engine/internal/collaborators"
	"github.com/scancore/engine/internal/config"
	"github.com/scancore/engine/internal/detect"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

// APIScanner issues read-only probes against a list of endpoints,
// inspects responses with the text scanner, and checks for the presence
// of auth and rate-limit headers.
type APIScanner struct {
	fetcher collaborators.HTTPFetcher
}

func NewAPIScanner(fetcher collaborators.HTTPFetcher) *APIScanner {
	return &APIScanner{fetcher: fetcher}
}

func (s *APIScanner) ScanType() config.ScanType { return config.ScanTypeAPI }
func (s *APIScanner) RetrySafe() bool            { return true }

func (s *APIScanner) Run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot) (<-chan domain.ScanEvent, error) {
	if len(req.Target.Endpoints) == 0 {
		return nil, fmt.Errorf("scanengine: api scan requires at least one endpoint")
	}
	ch := make(chan domain.ScanEvent, 32)
	go s.run(ctx, req, snap, ch)
	return ch, nil
}

func (s *APIScanner) run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot, ch chan<- domain.ScanEvent) {
	defer close(ch)

	total := len(req.Target.Endpoints)
	probed := 0
	partial := false

	for i, ep := range req.Target.Endpoints {
		select {
		case <-ctx.Done():
			partial = true
			goto done
		default:
		}

		status, headers, body, err := s.fetcher.Probe(ctx, ep)
		if err != nil {
			if !emitChan(ctx, ch, domain.DiagnosticEvent(domain.DiagLevelWarning, "probe failed for "+ep+": "+err.Error())) {
				partial = true
				goto done
			}
			continue
		}

		if _, ok := headers["Authorization"]; !ok {
			if !emitChan(ctx, ch, domain.FindingEvent(domain.Finding{
				FindingID: uuid.New(), JobID: req.RequestID,
				Type: "api_config", Category: "integrity_confidentiality", Severity: "Medium",
				Location: ep, Excerpt: fmt.Sprintf("status=%d no auth header observed", status),
				Confidence: 0.6, RuleID: "API_MISSING_AUTH_HEADER",
			})) {
				partial = true
				goto done
			}
		}
		if _, ok := headers["X-RateLimit-Limit"]; !ok {
			if !emitChan(ctx, ch, domain.FindingEvent(domain.Finding{
				FindingID: uuid.New(), JobID: req.RequestID,
				Type: "api_config", Category: "integrity_confidentiality", Severity: "Low",
				Location: ep, Excerpt: "no rate-limit header observed",
				Confidence: 0.5, RuleID: "API_MISSING_RATE_LIMIT_HEADER",
			})) {
				partial = true
				goto done
			}
		}

		bodyFindings := detect.ScanText(req.RequestID, body, "endpoint="+ep, snap, req.Options.RegionSet)
		for _, f := range bodyFindings {
			if !emitChan(ctx, ch, domain.FindingEvent(f)) {
				partial = true
				goto done
			}
		}

		probed = i + 1
		emitChan(ctx, ch, domain.ProgressEvent(probed*100/total, fmt.Sprintf("probed %d/%d endpoints", probed, total)))
	}

done:
	// The terminal event is sent even after cancellation; the consumer
	// drains the channel until it is closed.
	ch <- domain.DoneEvent(partial, map[string]int{"endpoints_probed": probed}, nil)
}

var _ Scanner = (*APIScanner)(nil)
