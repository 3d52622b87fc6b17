package watcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "rolewatch/pkg/logx"
)

func TestHTTPFetcherDecodesFeed(t *testing.T) {
	body := `[
		{"id": "1", "company_name": "Acme", "active": true},
		{"id": 2, "company_name": "Globex", "active": "false", "terms": ["Fall", "Winter"]}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(time.Second, logx.Nop())
	records, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[1].ID != "2" || records[1].IsActive() {
		t.Fatalf("loose fields not decoded: %+v", records[1])
	}
}

func TestHTTPFetcherNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(time.Second, logx.Nop())
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatalf("non-200 response must error")
	}
}

func TestHTTPFetcherMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(time.Second, logx.Nop())
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatalf("malformed body must error")
	}
}

func TestHTTPFetcherContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	f := NewHTTPFetcher(time.Minute, logx.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := f.Fetch(ctx, srv.URL); err == nil {
		t.Fatalf("canceled fetch must error")
	}
}
