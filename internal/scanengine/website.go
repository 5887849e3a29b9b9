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

const defaultMaxPages = 5

// WebsiteScanner fetches the target URL plus a bounded set of linked
// pages, hands each capture to the HTML/DOM analyzer, and applies the
// region rule pack.
type WebsiteScanner struct {
	fetcher collaborators.HTTPFetcher
}

func NewWebsiteScanner(fetcher collaborators.HTTPFetcher) *WebsiteScanner {
	return &WebsiteScanner{fetcher: fetcher}
}

func (s *WebsiteScanner) ScanType() config.ScanType { return config.ScanTypeWebsite }
func (s *WebsiteScanner) RetrySafe() bool            { return true }

func (s *WebsiteScanner) Run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot) (<-chan domain.ScanEvent, error) {
	if req.Target.URL == "" {
		return nil, fmt.Errorf("scanengine: website scan requires a target URL")
	}

	ch := make(chan domain.ScanEvent, 32)
	go s.run(ctx, req, snap, ch)
	return ch, nil
}

func (s *WebsiteScanner) run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot, ch chan<- domain.ScanEvent) {
	defer close(ch)

	maxPages := req.Options.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	queue := []string{req.Target.URL}
	visited := map[string]bool{}

	var findings []domain.Finding
	var violations []registry.RuleViolation
	pagesScanned := 0
	linesAnalyzed := 0
	trackerSet := map[string]bool{}
	cookiesFound := 0
	partial := false

	for len(queue) > 0 && pagesScanned < maxPages {
		select {
		case <-ctx.Done():
			partial = true
			goto done
		default:
		}

		url := queue[0]
		queue = queue[1:]
		if visited[url] {
			continue
		}
		visited[url] = true

		page, err := s.fetcher.FetchPage(ctx, url)
		if err != nil {
			if !emitChan(ctx, ch, domain.DiagnosticEvent(domain.DiagLevelError, "fetch failed for "+url+": "+err.Error())) {
				partial = true
				goto done
			}
			continue
		}

		obs := detect.AnalyzeHTML(toPageCapture(page))

		pageFindings := detect.ScanText(req.RequestID, []byte(page.HTML), "url="+url, snap, req.Options.RegionSet)
		findings = append(findings, pageFindings...)

		ruleCtx := obs.ToRuleContext()
		pageViolations := snap.EvaluateRules("website", ruleCtx, req.Options.RegionSet)
		violations = append(violations, pageViolations...)

		for _, t := range obs.TrackerDomains {
			trackerSet[t] = true
		}
		cookiesFound += obs.CookiesFound
		linesAnalyzed += detect.CountLines([]byte(page.HTML))
		pagesScanned++

		if !emitChan(ctx, ch, domain.ProgressEvent(pagesScanned*100/maxPages, fmt.Sprintf("scanned %d/%d pages", pagesScanned, maxPages))) {
			partial = true
			goto done
		}

		for _, link := range page.Links {
			if len(visited)+len(queue) < maxPages*4 {
				queue = append(queue, link)
			}
		}
	}

done:
	for _, f := range findings {
		if !emitChan(ctx, ch, domain.FindingEvent(f)) {
			partial = true
			break
		}
	}

	hints := map[string]int{
		"pages_scanned":  pagesScanned,
		"trackers_found": len(trackerSet),
		"cookies_found":  cookiesFound,
		"lines_analyzed": linesAnalyzed,
	}
	doneCtx := map[string]interface{}{
		"region_violations": violations,
	}
	emitChan(ctx, ch, domain.DoneEvent(partial, hints, doneCtx))
}

func toPageCapture(p collaborators.PageFetch) detect.PageCapture {
	return detect.PageCapture{
		URL:             p.URL,
		HTML:            p.HTML,
		ResponseHeaders: p.ResponseHeaders,
		LoadedResources: p.LoadedResources,
		SetCookies:      p.SetCookies,
	}
}

var _ Scanner = (*WebsiteScanner)(nil)
