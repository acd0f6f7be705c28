package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sentryflow/livetail/internal/model"
)

// BackfillClient fetches cached history for a source from the feed's
// short-term cache endpoint. It pre-populates a source on first
// selection; a failure is non-fatal and callers fall back to local
// buffers.
type BackfillClient struct {
	baseURL string
	httpc   *http.Client
}

// NewBackfillClient creates a client against the feed's HTTP base URL.
func NewBackfillClient(baseURL string) *BackfillClient {
	return &BackfillClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch retrieves the cached snapshot for a source.
func (c *BackfillClient) Fetch(ctx context.Context, source string) ([]model.LogEntry, error) {
	endpoint := fmt.Sprintf("%s/api/cache/%s", c.baseURL, url.PathEscape(source))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("backfill: build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backfill: fetch %q: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backfill: fetch %q: unexpected status %d", source, resp.StatusCode)
	}

	var body struct {
		Logs []model.LogEntry `json:"logs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("backfill: decode response: %w", err)
	}
	return body.Logs, nil
}
