// Package bridge is the ledger's HTTP client for the key bridge's verify
// webhook. The call is awaited with a bounded timeout; on any failure the
// caller must leave user state untouched.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	HTTP      *http.Client
	VerifyURL string
	Secret    string
}

func NewClient(verifyURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout},
		VerifyURL: verifyURL,
		Secret:    secret,
	}
}

type VerifyRequest struct {
	ExternalID string `json:"discord_id"`
	Key        string `json:"key"`
	RoleType   string `json:"role_type"`
	Secret     string `json:"secret"`
}

type VerifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Verify asks the bridge to validate and consume the one-time key. Returns
// (false, nil) when the bridge answers with a non-2xx status, so callers can
// distinguish rejection from transport failure.
func (c *Client) Verify(ctx context.Context, externalID, key string) (bool, error) {
	body, err := json.Marshal(VerifyRequest{
		ExternalID: externalID,
		Key:        key,
		RoleType:   "member",
		Secret:     c.Secret,
	})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.VerifyURL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, fmt.Errorf("bridge verify: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
