package reveal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/decred/slog"
)

// HTTPDecryptClient speaks the decryption service's JSON contract: a signed
// handle batch in, positionally aligned decimal plaintexts out.
type HTTPDecryptClient struct {
	baseURL string
	client  *http.Client
	log     slog.Logger
}

// NewHTTPDecryptClient creates a client for the service at baseURL.
func NewHTTPDecryptClient(baseURL string, timeout time.Duration, log slog.Logger) *HTTPDecryptClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Disabled
	}
	return &HTTPDecryptClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

type decryptErrorBody struct {
	Error string `json:"error"`
}

// Decrypt posts the reveal request and decodes the service response. A 403
// maps to ErrAccessDenied so callers can distinguish a missing grant from a
// transient failure.
func (c *HTTPDecryptClient) Decrypt(ctx context.Context, req RevealRequest) (RevealResult, error) {
	var result RevealResult

	body, err := json.Marshal(req)
	if err != nil {
		return result, fmt.Errorf("encode reveal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/decrypt", bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("build decrypt request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return result, fmt.Errorf("decrypt request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return result, fmt.Errorf("read decrypt response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errBody decryptErrorBody
		msg := string(raw)
		if json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
			msg = errBody.Error
		}
		if resp.StatusCode == http.StatusForbidden {
			return result, fmt.Errorf("%w: %s", ErrAccessDenied, msg)
		}
		return result, fmt.Errorf("decrypt service status %d: %s", resp.StatusCode, msg)
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("decode decrypt response: %w", err)
	}
	return result, nil
}
