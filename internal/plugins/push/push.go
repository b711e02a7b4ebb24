package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cboydstun/bounce-v3-sub014/internal/config"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/contracts"
)

// Client talks to the external push-notification gateway. One request covers
// a whole contractor batch; the fixed client timeout feeds transport failures
// into the caller's retry policy.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

func NewClient(cfg config.PushConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		http:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) Send(ctx context.Context, payload contracts.PushPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push gateway rejected request: status %d", resp.StatusCode)
	}
	return nil
}
