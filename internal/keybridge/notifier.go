package keybridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPNotifier posts the verification confirmation to the ledger's webhook.
// One immediate retry covers transient failures; beyond that the error
// surfaces to the caller, who can replay the whole verify request (the
// ledger side is idempotent).
type HTTPNotifier struct {
	HTTP   *http.Client
	URL    string
	Secret string
}

func NewHTTPNotifier(url, secret string, timeout time.Duration) *HTTPNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPNotifier{
		HTTP:   &http.Client{Timeout: timeout},
		URL:    url,
		Secret: secret,
	}
}

func (n *HTTPNotifier) NotifyVerified(ctx context.Context, externalID string) error {
	body, err := json.Marshal(map[string]string{
		"discord_id": externalID,
		"secret":     n.Secret,
	})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.HTTP.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("ledger webhook returned %d", resp.StatusCode)
	}
	return fmt.Errorf("notify ledger: %w", lastErr)
}
