package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHandlerReportsHealth(t *testing.T) {
	t.Parallel()

	m := New()
	m.Add("published", 2)
	m.RecordRun("run-1", time.Second, nil)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()

	var stats map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats["items_published"].(float64) != 2 {
		t.Fatalf("unexpected published count: %v", stats["items_published"])
	}

	m.RecordRun("run-2", time.Second, errors.New("store unavailable"))
	health, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after failed run, got %d", health.StatusCode)
	}
}
