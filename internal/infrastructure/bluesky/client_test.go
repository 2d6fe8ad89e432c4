package bluesky

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"NewsRelay/internal/config"
	"NewsRelay/internal/domain"
)

type recordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	Record     struct {
		Text   string   `json:"text"`
		Langs  []string `json:"langs"`
		Facets []struct {
			Index struct {
				ByteStart int `json:"byteStart"`
				ByteEnd   int `json:"byteEnd"`
			} `json:"index"`
			Features []struct {
				URI string `json:"uri"`
			} `json:"features"`
		} `json:"facets"`
		Embed struct {
			Type     string `json:"$type"`
			External struct {
				URI   string `json:"uri"`
				Title string `json:"title"`
			} `json:"external"`
		} `json:"embed"`
	} `json:"record"`
}

func newPublisher(host string) *Publisher {
	p := NewPublisher(config.BlueskyConfig{Host: host, Handle: "relay.example", AppPassword: "pw"}, "en", nil)
	p.now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }
	return p
}

func TestPublishCreatesLinkedPost(t *testing.T) {
	t.Parallel()

	var sessions atomic.Int32
	var got recordRequest
	mux := http.NewServeMux()
	mux.HandleFunc(createSessionPath, func(w http.ResponseWriter, _ *http.Request) {
		sessions.Add(1)
		_, _ = w.Write([]byte(`{"accessJwt":"jwt-1","did":"did:plc:relay"}`))
	})
	mux.HandleFunc(createRecordPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer jwt-1" {
			t.Errorf("missing access token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"uri":"at://did:plc:relay/app.bsky.feed.post/1","cid":"c"}`))
	})
	mux.HandleFunc("/story", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><meta property="og:title" content="Harbour reopens"></head></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	post := domain.Post{Summary: "Harbour reopens after storm.", Byline: "Ann Lee", SourceLabel: "Coastal Times", URL: srv.URL + "/story"}
	p := newPublisher(srv.URL)

	res, err := p.Publish(context.Background(), post)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if res.Ref != "at://did:plc:relay/app.bsky.feed.post/1" {
		t.Fatalf("unexpected ref %q", res.Ref)
	}
	if got.Repo != "did:plc:relay" || got.Collection != postCollection {
		t.Fatalf("unexpected record target %+v", got)
	}
	if got.Record.Text != "Harbour reopens after storm. By Ann Lee. Coastal Times" {
		t.Fatalf("unexpected text %q", got.Record.Text)
	}
	if len(got.Record.Facets) != 1 {
		t.Fatalf("expected one facet, got %d", len(got.Record.Facets))
	}
	span := got.Record.Facets[0].Index
	if got.Record.Text[span.ByteStart:span.ByteEnd] != "Coastal Times" || got.Record.Facets[0].Features[0].URI != post.URL {
		t.Fatalf("facet does not cover the label: %+v", span)
	}
	if got.Record.Embed.Type != "app.bsky.embed.external" || got.Record.Embed.External.Title != "Harbour reopens" {
		t.Fatalf("unexpected embed %+v", got.Record.Embed)
	}
	if len(got.Record.Langs) != 1 || got.Record.Langs[0] != "en" {
		t.Fatalf("unexpected langs %v", got.Record.Langs)
	}

	if _, err := p.Publish(context.Background(), post); err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if sessions.Load() != 1 {
		t.Fatalf("expected session reuse, got %d sessions", sessions.Load())
	}
}

func TestPublishRefreshesExpiredSession(t *testing.T) {
	t.Parallel()

	var sessions, records atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(createSessionPath, func(w http.ResponseWriter, _ *http.Request) {
		n := sessions.Add(1)
		_, _ = w.Write([]byte(`{"accessJwt":"jwt-` + string(rune('0'+n)) + `","did":"did:plc:relay"}`))
	})
	mux.HandleFunc(createRecordPath, func(w http.ResponseWriter, r *http.Request) {
		records.Add(1)
		if r.Header.Get("Authorization") == "Bearer jwt-1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"ExpiredToken","message":"Token has expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"uri":"at://post/2"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res, err := newPublisher(srv.URL).Publish(context.Background(), domain.Post{Summary: "Text"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if res.Ref != "at://post/2" || sessions.Load() != 2 || records.Load() != 2 {
		t.Fatalf("expected one refresh, got ref=%q sessions=%d records=%d", res.Ref, sessions.Load(), records.Load())
	}
}

func TestPublishClassifiesFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		class  string
	}{
		{http.StatusUnauthorized, domain.PublishErrAuth},
		{http.StatusTooManyRequests, domain.PublishErrRateLimited},
		{http.StatusBadRequest, domain.PublishErrRejected},
		{http.StatusBadGateway, domain.PublishErrServer},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == createSessionPath {
				_, _ = w.Write([]byte(`{"accessJwt":"jwt","did":"did:plc:relay"}`))
				return
			}
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":"Failure","message":"nope"}`))
		}))

		_, err := newPublisher(srv.URL).Publish(context.Background(), domain.Post{Summary: "Text"})
		srv.Close()
		if got := domain.PublishErrorClass(err); got != tc.class {
			t.Fatalf("status %d: expected class %s, got %s (%v)", tc.status, tc.class, got, err)
		}
	}
}

func TestPublishWithoutCredentials(t *testing.T) {
	t.Parallel()

	p := NewPublisher(config.BlueskyConfig{}, "", nil)
	_, err := p.Publish(context.Background(), domain.Post{Summary: "x"})
	if domain.PublishErrorClass(err) != domain.PublishErrAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
}
