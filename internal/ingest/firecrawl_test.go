package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abhisek/igcseprep/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *FirecrawlClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewFirecrawlClient(config.IngestConfig{FirecrawlAPIKey: "fc-test", FirecrawlBaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewFirecrawlClient: %v", err)
	}
	return c
}

func TestFirecrawlScrape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/scrape" {
			t.Errorf("request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer fc-test" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["url"] != "https://example.org/cells" || body["onlyMainContent"] != true {
			t.Errorf("body = %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"markdown":"# Cells","html":"<h1>Cells</h1>","metadata":{"title":"Cells"}}}`))
	})

	res, err := c.Scrape(context.Background(), "https://example.org/cells", ScrapeOptions{})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if res.Markdown != "# Cells" || res.Metadata.Title != "Cells" {
		t.Errorf("result = %+v", res)
	}
}

func TestFirecrawlScrape_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"success":false,"error":"slow down"}`, true},
		{"server error", http.StatusBadGateway, ``, true},
		{"payment required", http.StatusPaymentRequired, `{"error":"no credits"}`, false},
		{"not successful", http.StatusOK, `{"success":false,"error":"blocked"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Scrape(context.Background(), "https://example.org", DefaultScrapeOptions())
			if err == nil {
				t.Fatal("expected error")
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("retryable = %v for %v", IsRetryable(err), err)
			}
		})
	}
}

func TestNewFirecrawlClient_RequiresKey(t *testing.T) {
	if _, err := NewFirecrawlClient(config.IngestConfig{}); err == nil {
		t.Error("expected error without API key")
	}
}
