package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abhisek/igcseprep/internal/config"
)

const defaultFirecrawlURL = "https://api.firecrawl.dev"

// ScrapeOptions mirrors the Firecrawl scrape parameters we use.
type ScrapeOptions struct {
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	// WaitFor is milliseconds to wait for dynamic content.
	WaitFor int `json:"waitFor,omitempty"`
	// Timeout is the server-side scrape timeout in milliseconds.
	Timeout int `json:"timeout,omitempty"`
}

// DefaultScrapeOptions asks for markdown and HTML of the main content.
func DefaultScrapeOptions() ScrapeOptions {
	return ScrapeOptions{
		Formats:         []string{"markdown", "html"},
		OnlyMainContent: true,
		WaitFor:         2000,
		Timeout:         30000,
	}
}

type PageMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	SourceURL   string `json:"sourceURL,omitempty"`
	StatusCode  int    `json:"statusCode,omitempty"`
}

type ScrapeResult struct {
	Markdown string       `json:"markdown"`
	HTML     string       `json:"html"`
	Metadata PageMetadata `json:"metadata"`
}

// ScrapeError is a failed scrape. Retryable is set for rate limiting and
// server errors.
type ScrapeError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *ScrapeError) Error() string {
	if e.StatusCode == 0 {
		return "firecrawl: " + e.Message
	}
	return fmt.Sprintf("firecrawl: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether err is a ScrapeError worth retrying.
func IsRetryable(err error) bool {
	var se *ScrapeError
	return errors.As(err, &se) && se.Retryable
}

// Scraper fetches one page.
type Scraper interface {
	Scrape(ctx context.Context, url string, opts ScrapeOptions) (*ScrapeResult, error)
}

// FirecrawlClient calls the Firecrawl v1 scrape endpoint.
type FirecrawlClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewFirecrawlClient(cfg config.IngestConfig) (*FirecrawlClient, error) {
	if cfg.FirecrawlAPIKey == "" {
		return nil, errors.New("FIRECRAWL_API_KEY is not set")
	}
	base := strings.TrimRight(cfg.FirecrawlBaseURL, "/")
	if base == "" {
		base = defaultFirecrawlURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &FirecrawlClient{
		baseURL: base,
		apiKey:  cfg.FirecrawlAPIKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type scrapeRequest struct {
	URL string `json:"url"`
	ScrapeOptions
}

type scrapeResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Data    ScrapeResult `json:"data"`
}

func (c *FirecrawlClient) Scrape(ctx context.Context, url string, opts ScrapeOptions) (*ScrapeResult, error) {
	if len(opts.Formats) == 0 {
		opts = DefaultScrapeOptions()
	}
	body, err := json.Marshal(scrapeRequest{URL: url, ScrapeOptions: opts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ScrapeError{Message: err.Error(), Retryable: ctx.Err() == nil}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, &ScrapeError{StatusCode: resp.StatusCode, Message: err.Error(), Retryable: true}
	}

	var out scrapeResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &ScrapeError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "scrape was not successful"
		}
		return nil, &ScrapeError{StatusCode: resp.StatusCode, Message: msg}
	}
	return &out.Data, nil
}
