package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"NewsRelay/internal/config"
	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// Publisher sends posts to a Telegram chat via bot API.
type Publisher struct {
	baseURL  string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher registers bot token and chat identifier.
func NewPublisher(cfg config.TelegramConfig) *Publisher {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Publisher{
		baseURL:  baseURL,
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Publisher) Name() string { return "telegram" }

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Publish posts an HTML message whose trailing source label links to the article.
func (n *Publisher) Publish(ctx context.Context, post domain.Post) (ports.PublishResult, error) {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return ports.PublishResult{}, &domain.PublishError{Class: domain.PublishErrAuth, Err: errors.New("telegram publisher misconfigured")}
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", RenderHTML(post))
	form.Set("parse_mode", "HTML")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return ports.PublishResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return ports.PublishResult{}, &domain.PublishError{Class: domain.PublishErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	var decoded apiResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode != http.StatusOK || !decoded.OK {
		desc := decoded.Description
		if desc == "" {
			desc = resp.Status
		}
		return ports.PublishResult{}, &domain.PublishError{
			Class: classify(resp.StatusCode),
			Err:   fmt.Errorf("telegram error: %s", desc),
		}
	}

	return ports.PublishResult{Ref: n.chatID + ":" + strconv.FormatInt(decoded.Result.MessageID, 10)}, nil
}

// RenderHTML produces the escaped message body with the label as a link.
func RenderHTML(post domain.Post) string {
	body := html.EscapeString(post.Summary + domain.BylineSuffix(post.Byline))
	if post.SourceLabel == "" {
		return body
	}
	label := html.EscapeString(post.SourceLabel)
	if post.URL == "" {
		return body + " " + label
	}
	return body + ` <a href="` + html.EscapeString(post.URL) + `">` + label + `</a>`
}

func classify(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusNotFound:
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
