package resolver

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"NewsRelay/internal/domain"
)

const articlePage = `<html><body><c-wiz><div jscontroller="x" data-n-a-sg="SIG123" data-n-a-ts="1700000000"></div></c-wiz></body></html>`

const batchResponse = ")]}'\n\n" +
	`[["wrb.fr","Fbv4je","[\"garturlres\",\"https://publisher.example/story\",1]",null,null,null,"generic"],["di",10]]`

func TestResolvePassesThroughDirectURLs(t *testing.T) {
	t.Parallel()

	r := NewGoogleNews("http://unused.invalid", nil, nil)
	got, err := r.Resolve(context.Background(), "https://publisher.example/a")
	if err != nil || got != "https://publisher.example/a" {
		t.Fatalf("expected passthrough, got %q (%v)", got, err)
	}
}

func TestResolveDecodesViaBatchExecute(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/articles/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/TOKEN_AU") {
			t.Errorf("unexpected article path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(articlePage))
	})
	mux.HandleFunc(batchPath, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		freq := r.PostForm.Get("f.req")
		if !strings.Contains(freq, "SIG123") || !strings.Contains(freq, "1700000000") {
			t.Errorf("batch request misses params: %s", freq)
		}
		_, _ = w.Write([]byte(batchResponse))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := NewGoogleNews(srv.URL, srv.Client(), nil)
	got, err := r.Resolve(context.Background(), "https://news.google.com/rss/articles/TOKEN_AU?oc=5")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "https://publisher.example/story" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestResolveLegacyToken(t *testing.T) {
	t.Parallel()

	token := base64.RawURLEncoding.EncodeToString([]byte("\x08\x13\x22\x1ehttps://publisher.example/old\xd2\x01\x00"))
	r := NewGoogleNews("http://unused.invalid", nil, nil)
	got, err := r.Resolve(context.Background(), "https://news.google.com/articles/"+token)
	if err != nil || got != "https://publisher.example/old" {
		t.Fatalf("expected legacy decode, got %q (%v)", got, err)
	}
}

func TestResolveMissingParamsIsUnresolvable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>consent wall</body></html>"))
	}))
	defer srv.Close()

	_, err := NewGoogleNews(srv.URL, srv.Client(), nil).Resolve(context.Background(), "https://news.google.com/articles/TOKEN_AU")
	if !errors.Is(err, domain.ErrUnresolvable) {
		t.Fatalf("expected ErrUnresolvable, got %v", err)
	}
}

func TestResolveServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewGoogleNews(srv.URL, srv.Client(), nil).Resolve(context.Background(), "https://news.google.com/articles/TOKEN_AU")
	if !domain.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if errors.Is(err, domain.ErrUnresolvable) {
		t.Fatal("server errors must not be permanent")
	}
}

func TestParseBatchResponseRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := parseBatchResponse([]byte("nonsense")); !errors.Is(err, domain.ErrUnresolvable) {
		t.Fatalf("expected ErrUnresolvable, got %v", err)
	}
}
