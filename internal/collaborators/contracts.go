// Package collaborators defines the narrow interfaces the core consumes
// from external systems (C9), plus one concrete adapter per contract. The
// core depends only on these interfaces — never on a specific cloud SDK
// or auth provider directly.
package collaborators

import (
	"context"
	"io"
)

// BlobFetcher resolves an uploaded-file handle to its byte stream.
type BlobFetcher interface {
	Fetch(ctx context.Context, blobHandle string) (io.ReadCloser, error)
}

// SourceFile is one file discovered by a FileLister.
type SourceFile struct {
	Path string
	Size int64
}

// FileLister enumerates a code tree or VCS clone handle for the code
// scanner, without the core ever touching a filesystem or git client
// directly.
type FileLister interface {
	List(ctx context.Context, repoPath string) ([]SourceFile, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// PageFetch is one captured page, as the website scanner needs it.
type PageFetch struct {
	URL             string
	HTML            string
	ResponseHeaders map[string]string
	LoadedResources []string
	SetCookies      []string
	Links           []string
}

// HTTPFetcher fetches a URL's rendered/response content for the website
// and API scanners.
type HTTPFetcher interface {
	FetchPage(ctx context.Context, url string) (PageFetch, error)
	Probe(ctx context.Context, url string) (status int, headers map[string]string, body []byte, err error)
}

// Notifier is fire-and-forget notification delivery; the core never
// blocks on it and never retries on its behalf.
type Notifier interface {
	Notify(ctx context.Context, tenantID, subject string, payload map[string]string)
}

// ReportRenderer turns a canonical ScanResult into externally rendered
// document bytes; the core only ever supplies the canonical result.
type ReportRenderer interface {
	Render(ctx context.Context, scanResultJSON []byte) ([]byte, error)
}

// WebhookSender delivers a completion notification at-least-once, keyed
// by job_id as the idempotency key.
type WebhookSender interface {
	Send(ctx context.Context, idempotencyKey string, payload []byte) error
}
