package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"NewsRelay/internal/config"
	"NewsRelay/internal/domain"
)

func TestRenderHTML(t *testing.T) {
	t.Parallel()

	got := RenderHTML(domain.Post{Summary: "Tides <rise> & fall", Byline: "By Ann", SourceLabel: "Coast & Co", URL: "https://x.example/a?b=1&c=2"})
	want := `Tides &lt;rise&gt; &amp; fall By Ann. <a href="https://x.example/a?b=1&amp;c=2">Coast &amp; Co</a>`
	if got != want {
		t.Fatalf("unexpected html\n got: %s\nwant: %s", got, want)
	}
}

func TestPublishSendsMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("chat_id") != "42" || r.PostForm.Get("parse_mode") != "HTML" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	}))
	defer srv.Close()

	pub := NewPublisher(config.TelegramConfig{BaseURL: srv.URL, BotToken: "TOKEN", ChatID: "42"})
	res, err := pub.Publish(context.Background(), domain.Post{Summary: "Hello"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if res.Ref != "42:7" {
		t.Fatalf("unexpected ref %q", res.Ref)
	}
}

func TestPublishClassifiesErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 5"}`))
	}))
	defer srv.Close()

	pub := NewPublisher(config.TelegramConfig{BaseURL: srv.URL, BotToken: "T", ChatID: "1"})
	_, err := pub.Publish(context.Background(), domain.Post{Summary: "Hello"})
	if got := domain.PublishErrorClass(err); got != domain.PublishErrRateLimited {
		t.Fatalf("expected rate_limited, got %s (%v)", got, err)
	}

	if _, err := NewPublisher(config.TelegramConfig{}).Publish(context.Background(), domain.Post{}); domain.PublishErrorClass(err) != domain.PublishErrAuth {
		t.Fatalf("expected auth error for missing credentials, got %v", err)
	}
}
