// Package bluesky publishes posts to a Bluesky (AT Protocol) account.
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"NewsRelay/internal/config"
	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

const (
	createSessionPath = "/xrpc/com.atproto.server.createSession"
	createRecordPath  = "/xrpc/com.atproto.repo.createRecord"
	postCollection    = "app.bsky.feed.post"
)

// Publisher posts to Bluesky over XRPC with an app password.
type Publisher struct {
	host     string
	handle   string
	password string
	language string
	client   *http.Client
	cards    *CardFetcher
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	session *session
}

var _ ports.Publisher = (*Publisher)(nil)

type session struct {
	AccessJwt string `json:"accessJwt"`
	Did       string `json:"did"`
}

// NewPublisher registers account credentials; the session is created lazily.
func NewPublisher(cfg config.BlueskyConfig, language string, logger *slog.Logger) *Publisher {
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		host = "https://bsky.social"
	}
	client := &http.Client{Timeout: 20 * time.Second}
	return &Publisher{
		host:     host,
		handle:   cfg.Handle,
		password: cfg.AppPassword,
		language: language,
		client:   client,
		cards:    NewCardFetcher(client),
		now:      time.Now,
		logger:   logger,
	}
}

func (p *Publisher) Name() string { return "bluesky" }

// Publish creates a post whose source label links to the article, with an
// external web card for the same URL.
func (p *Publisher) Publish(ctx context.Context, post domain.Post) (ports.PublishResult, error) {
	if p.handle == "" || p.password == "" {
		return ports.PublishResult{}, &domain.PublishError{Class: domain.PublishErrAuth, Err: errors.New("bluesky credentials not configured")}
	}

	record := p.buildRecord(ctx, post)

	ref, err := p.createRecord(ctx, record)
	if err != nil && isExpired(err) {
		p.debug("session expired, re-authenticating")
		p.dropSession()
		ref, err = p.createRecord(ctx, record)
	}
	if err != nil {
		return ports.PublishResult{}, err
	}
	return ports.PublishResult{Ref: ref}, nil
}

func (p *Publisher) buildRecord(ctx context.Context, post domain.Post) map[string]any {
	record := map[string]any{
		"$type":     postCollection,
		"text":      post.Text(),
		"createdAt": p.now().UTC().Format(time.RFC3339),
	}
	if p.language != "" {
		record["langs"] = []string{p.language}
	}

	if start, end, ok := post.LinkSpan(); ok {
		record["facets"] = []map[string]any{{
			"index": map[string]int{"byteStart": start, "byteEnd": end},
			"features": []map[string]string{{
				"$type": "app.bsky.richtext.facet#link",
				"uri":   post.URL,
			}},
		}}
	}

	if post.URL != "" {
		card := p.cards.Fetch(ctx, post.URL)
		if card.Title == "" {
			card.Title = post.SourceLabel
		}
		if card.Description == "" {
			card.Description = post.Summary
		}
		record["embed"] = map[string]any{
			"$type": "app.bsky.embed.external",
			"external": map[string]string{
				"uri":         post.URL,
				"title":       card.Title,
				"description": card.Description,
			},
		}
	}
	return record
}

func (p *Publisher) createRecord(ctx context.Context, record map[string]any) (string, error) {
	sess, err := p.ensureSession(ctx)
	if err != nil {
		return "", err
	}

	var out struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	err = p.call(ctx, createRecordPath, sess.AccessJwt, map[string]any{
		"repo":       sess.Did,
		"collection": postCollection,
		"record":     record,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.URI, nil
}

func (p *Publisher) ensureSession(ctx context.Context) (*session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		return p.session, nil
	}

	var sess session
	err := p.call(ctx, createSessionPath, "", map[string]string{
		"identifier": p.handle,
		"password":   p.password,
	}, &sess)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if sess.AccessJwt == "" || sess.Did == "" {
		return nil, &domain.PublishError{Class: domain.PublishErrAuth, Err: errors.New("session response lacks token")}
	}
	p.session = &sess
	p.debug("session created", "did", sess.Did)
	return p.session, nil
}

func (p *Publisher) dropSession() {
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()
}

// xrpcError is the error body XRPC endpoints return.
type xrpcError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *xrpcError) Error() string {
	return fmt.Sprintf("xrpc %d %s: %s", e.Status, e.Code, e.Message)
}

func isExpired(err error) bool {
	var xe *xrpcError
	return errors.As(err, &xe) && (xe.Code == "ExpiredToken" || xe.Code == "InvalidToken")
}

func (p *Publisher) call(ctx context.Context, path, token string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return &domain.PublishError{Class: domain.PublishErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		xe := &xrpcError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, xe)
		if xe.Message == "" {
			xe.Message = strings.TrimSpace(string(raw))
		}
		return &domain.PublishError{Class: classify(resp.StatusCode), Err: xe}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.PublishError{Class: domain.PublishErrUnknown, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func classify(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.PublishErrAuth
	case status == http.StatusTooManyRequests:
		return domain.PublishErrRateLimited
	case status >= http.StatusInternalServerError:
		return domain.PublishErrServer
	case status >= http.StatusBadRequest:
		return domain.PublishErrRejected
	default:
		return domain.PublishErrUnknown
	}
}

func (p *Publisher) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
