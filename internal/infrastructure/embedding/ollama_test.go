package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"NewsRelay/internal/domain"
)

func TestEmbed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body["model"] != "nomic-embed-text" || body["prompt"] != "harbour" {
			t.Errorf("unexpected payload %v", body)
		}
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer srv.Close()

	vec, err := NewClient(srv.URL+"/", "nomic-embed-text").Embed(context.Background(), "harbour")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 || vec[2] != 0.3 {
		t.Fatalf("unexpected vector %v", vec)
	}
}

func TestEmbedErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "m").Embed(context.Background(), "x"); !domain.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if _, err := NewClient("", "m").Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error without endpoint")
	}
}

func TestNewClientAddsScheme(t *testing.T) {
	t.Parallel()

	if c := NewClient("localhost:11434", "m"); c.endpoint != "http://localhost:11434" {
		t.Fatalf("unexpected endpoint %q", c.endpoint)
	}
}
