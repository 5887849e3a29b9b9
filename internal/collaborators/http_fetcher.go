package collaborators

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedHTTPFetcher is the default HTTPFetcher, throttled by
// golang.org/x/time/rate so the website/API scanners' outbound probes
// never exceed a configured request rate, and bounded by the per-request
// inner timeout independent of the job deadline (spec §5).
type RateLimitedHTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewRateLimitedHTTPFetcher builds a fetcher allowing ratePerSecond
// requests/sec with a burst of the same size, and a 20s per-request
// timeout matching the HTTP default in spec §5.
func NewRateLimitedHTTPFetcher(ratePerSecond float64) *RateLimitedHTTPFetcher {
	if ratePerSecond <= 0 {
		ratePerSecond = 5
	}
	return &RateLimitedHTTPFetcher{
		client:  &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), int(ratePerSecond)),
	}
}

var linkRe = regexp.MustCompile(`(?i)<a\s+[^>]*href=["']([^"']+)["']`)

func (f *RateLimitedHTTPFetcher) FetchPage(ctx context.Context, url string) (PageFetch, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return PageFetch{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PageFetch{}, fmt.Errorf("collaborators: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return PageFetch{}, fmt.Errorf("collaborators: fetch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return PageFetch{}, fmt.Errorf("collaborators: read body: %w", err)
	}

	headers := map[string]string{}
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	var cookies []string
	for _, c := range resp.Header.Values("Set-Cookie") {
		cookies = append(cookies, c)
	}

	html := string(body)
	var links []string
	for _, m := range linkRe.FindAllStringSubmatch(html, -1) {
		links = append(links, m[1])
	}

	var resources []string
	srcRe := regexp.MustCompile(`(?i)(?:src|href)=["']([^"']+)["']`)
	for _, m := range srcRe.FindAllStringSubmatch(html, -1) {
		resources = append(resources, m[1])
	}

	return PageFetch{
		URL:             url,
		HTML:            html,
		ResponseHeaders: headers,
		LoadedResources: resources,
		SetCookies:      cookies,
		Links:           links,
	}, nil
}

func (f *RateLimitedHTTPFetcher) Probe(ctx context.Context, url string) (int, map[string]string, []byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("collaborators: build probe request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("collaborators: probe: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	headers := map[string]string{}
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return resp.StatusCode, headers, body, nil
}

var _ HTTPFetcher = (*RateLimitedHTTPFetcher)(nil)
