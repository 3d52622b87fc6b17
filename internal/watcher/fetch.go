package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rolewatch/internal/listing"
	logx "rolewatch/pkg/logx"
)

// Fetcher retrieves the current listing set for one feed URL.
// A failure of any kind (network, HTTP status, parse) is just an error;
// the caller treats it the same as an empty feed and skips the cycle.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]listing.Record, error)
}

// HTTPFetcher fetches flat JSON arrays over HTTP(S). The feeds are public
// raw files, so there is no auth and no pagination.
type HTTPFetcher struct {
	client *http.Client
	log    logx.Logger
}

const defaultFetchTimeout = 30 * time.Second

func NewHTTPFetcher(timeout time.Duration, log logx.Logger) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]listing.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var records []listing.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}

	f.log.Debug("feed fetched",
		logx.String("url", url),
		logx.Int("records", len(records)),
		logx.Duration("took", time.Since(start)))
	return records, nil
}
