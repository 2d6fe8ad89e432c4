// Package resolver turns aggregator redirect links into publisher URLs.
package resolver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/normalize"
	"NewsRelay/internal/ports"
)

const (
	defaultBaseURL = "https://news.google.com"
	batchPath      = "/_/DotsSplashUi/data/batchexecute"
	batchRPC       = "Fbv4je"
)

var embeddedURL = regexp.MustCompile(`https?://[A-Za-z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+`)

// GoogleNews decodes news.google.com article tokens. Any other URL is
// returned unchanged.
type GoogleNews struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ ports.URLResolver = (*GoogleNews)(nil)

// NewGoogleNews builds a resolver; an empty baseURL targets news.google.com.
func NewGoogleNews(baseURL string, client *http.Client, logger *slog.Logger) *GoogleNews {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &GoogleNews{baseURL: strings.TrimRight(baseURL, "/"), client: client, logger: logger}
}

// Resolve returns the publisher URL behind rawURL.
func (g *GoogleNews) Resolve(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("empty url: %w", domain.ErrUnresolvable)
	}
	if !normalize.IsRedirect(rawURL) {
		return rawURL, nil
	}

	id, err := articleID(rawURL)
	if err != nil {
		return "", err
	}

	if decoded, ok := decodeLegacy(id); ok {
		g.debug("decoded legacy token", "url", decoded)
		return decoded, nil
	}

	sig, ts, err := g.fetchParams(ctx, id)
	if err != nil {
		return "", err
	}
	decoded, err := g.batchExecute(ctx, id, sig, ts)
	if err != nil {
		return "", err
	}
	g.debug("decoded article token", "url", decoded)
	return decoded, nil
}

func articleID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", domain.ErrUnresolvable)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == "articles" || segments[i] == "read" {
			return segments[i+1], nil
		}
	}
	return "", fmt.Errorf("no article token in %s: %w", rawURL, domain.ErrUnresolvable)
}

// decodeLegacy handles old tokens that embed the target URL directly in
// their base64 payload.
func decodeLegacy(id string) (string, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(id, "="))
	if err != nil {
		return "", false
	}
	// Newer tokens carry an opaque AU_yqL payload that needs the RPC.
	if strings.Contains(string(raw), "AU_yqL") {
		return "", false
	}
	found := embeddedURL.Find(raw)
	if found == nil {
		return "", false
	}
	return string(found), true
}

func (g *GoogleNews) fetchParams(ctx context.Context, id string) (signature, timestamp string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/articles/"+url.PathEscape(id), nil)
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", "", &domain.TransientError{Op: "fetch article page", Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp, "article page"); err != nil {
		return "", "", err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("parse article page: %w", err)
	}

	node := doc.Find("c-wiz > div[jscontroller]").First()
	if node.Length() == 0 {
		node = doc.Find("[data-n-a-sg]").First()
	}
	signature, _ = node.Attr("data-n-a-sg")
	timestamp, _ = node.Attr("data-n-a-ts")
	if signature == "" || timestamp == "" {
		return "", "", fmt.Errorf("article page lacks decoding params: %w", domain.ErrUnresolvable)
	}
	return signature, timestamp, nil
}

func (g *GoogleNews) batchExecute(ctx context.Context, id, signature, timestamp string) (string, error) {
	inner := fmt.Sprintf(`["garturlreq",[["X","X",["X","X"],null,null,1,1,"US:en",null,1,null,null,null,null,null,0,1],"X","X",1,[1,1,1],1,1,null,0,0,null,0],%q,%s,%q]`,
		id, timestamp, signature)
	envelope, err := json.Marshal([][][]any{{{batchRPC, inner, nil, "generic"}}})
	if err != nil {
		return "", fmt.Errorf("marshal batch request: %w", err)
	}

	form := url.Values{}
	form.Set("f.req", string(envelope))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+batchPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &domain.TransientError{Op: "batch execute", Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp, "batch execute"); err != nil {
		return "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &domain.TransientError{Op: "read batch response", Err: err}
	}
	return parseBatchResponse(body)
}

// parseBatchResponse digs the URL out of the anti-XSSI prefixed envelope.
func parseBatchResponse(body []byte) (string, error) {
	_, payload, ok := strings.Cut(string(body), "\n\n")
	if !ok {
		return "", fmt.Errorf("malformed batch response: %w", domain.ErrUnresolvable)
	}

	var envelope [][]any
	if err := json.NewDecoder(strings.NewReader(payload)).Decode(&envelope); err != nil {
		return "", fmt.Errorf("decode batch envelope: %v: %w", err, domain.ErrUnresolvable)
	}

	for _, entry := range envelope {
		if len(entry) < 3 || entry[1] != batchRPC {
			continue
		}
		inner, ok := entry[2].(string)
		if !ok {
			continue
		}
		var result []any
		if err := json.Unmarshal([]byte(inner), &result); err != nil || len(result) < 2 {
			continue
		}
		if decoded, ok := result[1].(string); ok && decoded != "" {
			return decoded, nil
		}
	}
	return "", fmt.Errorf("batch response carries no url: %w", domain.ErrUnresolvable)
}

func classifyStatus(resp *http.Response, op string) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return &domain.TransientError{Op: op, Err: errors.New(resp.Status)}
	default:
		return fmt.Errorf("%s returned %s: %w", op, resp.Status, domain.ErrUnresolvable)
	}
}

func (g *GoogleNews) debug(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Debug(msg, args...)
	}
}
