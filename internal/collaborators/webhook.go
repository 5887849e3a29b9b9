package collaborators

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/scancore/engine/internal/cache"
)

// HTTPWebhookSender delivers completion payloads at-least-once to a
// configured URL. Idempotency is the receiver's responsibility per the
// contract (idempotency key = job_id); this sender additionally records
// delivered keys in Redis for webhookDedupTTL so a redelivery of the same
// key is not posted twice. A failed delivery clears its key, so a later
// retry is still sent.
type HTTPWebhookSender struct {
	url    string
	client *http.Client
	cache  *cache.Client
}

func NewHTTPWebhookSender(url string, cacheClient *cache.Client) *HTTPWebhookSender {
	return &HTTPWebhookSender{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		cache:  cacheClient,
	}
}

const webhookDedupTTL = 24 * time.Hour

func (w *HTTPWebhookSender) Send(ctx context.Context, idempotencyKey string, payload []byte) error {
	if w.url == "" {
		return nil
	}

	dedupKey := "webhook:sent:" + idempotencyKey
	delivered := false
	if w.cache != nil {
		alreadySent, err := w.cache.SetNX(ctx, dedupKey, "1", webhookDedupTTL)
		if err == nil && !alreadySent {
			return nil
		}
		if err == nil {
			defer func() {
				if !delivered {
					_ = w.cache.Del(context.Background(), dedupKey)
				}
			}()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("collaborators: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("collaborators: send webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("collaborators: webhook endpoint returned %d", resp.StatusCode)
	}
	delivered = true
	return nil
}

var _ WebhookSender = (*HTTPWebhookSender)(nil)
