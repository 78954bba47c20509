package reveal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/decred/slog"
)

// HTTPLedgerClient reads game account blobs from a ledger RPC gateway.
type HTTPLedgerClient struct {
	baseURL string
	client  *http.Client
	log     slog.Logger
}

// NewHTTPLedgerClient creates a ledger reader for the gateway at baseURL.
func NewHTTPLedgerClient(baseURL string, timeout time.Duration, log slog.Logger) *HTTPLedgerClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Disabled
	}
	return &HTTPLedgerClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// ReadGameAccount fetches the raw account blob for gameRef.
func (c *HTTPLedgerClient) ReadGameAccount(ctx context.Context, gameRef string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/games/%s/account", c.baseURL, gameRef), nil)
	if err != nil {
		return nil, fmt.Errorf("build account request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read account %s: %w", gameRef, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ledger gateway status %d for game %s", resp.StatusCode, gameRef)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read account body: %w", err)
	}
	return data, nil
}
