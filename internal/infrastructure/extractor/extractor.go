// Package extractor fetches publisher pages and pulls article text out of
// them with the configured extraction strategies.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/extraction"
	"NewsRelay/internal/ports"
	"NewsRelay/internal/retry"
)

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; NewsRelay/1.0; +https://github.com/newsrelay)"
	maxBodyBytes     = 5 << 20
)

// Config tunes page fetching and text selection.
type Config struct {
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	UserAgent  string
	// Strategies names the extraction order; empty uses the registry order.
	Strategies    []string
	MaxTextLength int
}

// Extractor implements ports.ContentExtractor over HTTP.
type Extractor struct {
	client *http.Client
	cfg    Config
	chain  []extraction.Strategy
	logger *slog.Logger
}

var _ ports.ContentExtractor = (*Extractor)(nil)

// statusError is a non-2xx response.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string { return "unexpected status " + e.status }

// New resolves the strategy chain from registry and prepares the HTTP client.
func New(cfg Config, registry *extraction.Registry, client *http.Client, logger *slog.Logger) (*Extractor, error) {
	if registry == nil {
		registry = extraction.DefaultRegistry()
	}
	chain, err := registry.Chain(cfg.Strategies)
	if err != nil {
		return nil, fmt.Errorf("build extraction chain: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = 10000
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Extractor{client: client, cfg: cfg, chain: chain, logger: logger}, nil
}

// Extract returns the first non-empty strategy result. Pages that are gone,
// forbidden or not HTML produce empty text; network and server failures that
// survive the retries are returned as transient errors.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (ports.Extraction, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		e.debug("invalid page url", "url", pageURL)
		return ports.Extraction{}, nil
	}

	var doc *goquery.Document
	err = retry.Do(ctx, retry.Config{
		MaxAttempts: e.cfg.Retries,
		Delay:       e.cfg.RetryDelay,
		Backoff:     true,
		Retryable:   retryable,
	}, func(ctx context.Context) error {
		var fetchErr error
		doc, fetchErr = e.fetchDocument(ctx, pageURL)
		return fetchErr
	})

	var se *statusError
	switch {
	case err == nil:
	case errors.Is(err, errNotHTML):
		e.debug("page is not html", "url", pageURL)
		return ports.Extraction{}, nil
	case errors.As(err, &se) && !retryable(se):
		e.debug("page unavailable", "url", pageURL, "status", se.status)
		return ports.Extraction{}, nil
	default:
		return ports.Extraction{}, &domain.TransientError{Op: "fetch page", Err: err}
	}

	page := extraction.Page{URL: pageURL, Doc: doc}
	for _, strategy := range e.chain {
		text := strategy.Extract(page)
		if text == "" {
			continue
		}
		e.debug("text extracted", "url", pageURL, "strategy", strategy.Name(), "runes", utf8.RuneCountInString(text))
		return ports.Extraction{Text: limitRunes(text, e.cfg.MaxTextLength), Strategy: strategy.Name()}, nil
	}

	e.debug("no strategy produced text", "url", pageURL)
	return ports.Extraction{}, nil
}

var errNotHTML = errors.New("response is not html")

func (e *Extractor) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, status: resp.Status}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, _ := mime.ParseMediaType(ct)
		if mediaType != "text/html" && mediaType != "application/xhtml+xml" {
			return nil, errNotHTML
		}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func retryable(err error) bool {
	if errors.Is(err, errNotHTML) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests || se.code == http.StatusRequestTimeout
	}
	return true
}

func limitRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
