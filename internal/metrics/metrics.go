package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Metrics aggregates counters across pipeline iterations.
type Metrics struct {
	mu sync.RWMutex

	Iterations       int64
	ItemsFetched     int64
	DuplicatesFound  int64
	ItemsRejected    int64
	ItemsPublished   int64
	PublishFailures  int64
	PublishDeferrals int64
	PublishSkipped   int64
	TransientErrors  int64

	LastRunDuration    time.Duration
	AverageRunDuration time.Duration
	totalRunDuration   time.Duration

	LastRunID     string
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

// New returns a healthy, zeroed collector.
func New() *Metrics {
	return &Metrics{IsHealthy: true}
}

// Add bumps a named counter; unknown names are ignored.
func (m *Metrics) Add(counter string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	switch counter {
	case "fetched":
		m.ItemsFetched += int64(n)
	case "duplicate":
		m.DuplicatesFound += int64(n)
	case "rejected":
		m.ItemsRejected += int64(n)
	case "published":
		m.ItemsPublished += int64(n)
	case "publish_error", "publish_failed":
		m.PublishFailures += int64(n)
	case "deferred":
		m.PublishDeferrals += int64(n)
	case "publish_skipped":
		m.PublishSkipped += int64(n)
	case "transient":
		m.TransientErrors += int64(n)
	}
}

// RecordRun stores the outcome of one iteration.
func (m *Metrics) RecordRun(runID string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Iterations++
	m.LastRunID = runID
	m.LastRunTime = time.Now()
	m.LastRunDuration = duration
	m.totalRunDuration += duration
	m.AverageRunDuration = m.totalRunDuration / time.Duration(m.Iterations)

	if err != nil {
		m.LastError = err.Error()
		m.LastErrorTime = m.LastRunTime
		m.IsHealthy = false
		return
	}
	m.IsHealthy = true
}

// GetStats snapshots every counter.
func (m *Metrics) GetStats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]any{
		"iterations":              m.Iterations,
		"items_fetched":           m.ItemsFetched,
		"duplicates_found":        m.DuplicatesFound,
		"items_rejected":          m.ItemsRejected,
		"items_published":         m.ItemsPublished,
		"publish_failures":        m.PublishFailures,
		"publish_deferrals":       m.PublishDeferrals,
		"publish_skipped":         m.PublishSkipped,
		"transient_errors":        m.TransientErrors,
		"last_run_id":             m.LastRunID,
		"last_run_duration_ms":    m.LastRunDuration.Milliseconds(),
		"average_run_duration_ms": m.AverageRunDuration.Milliseconds(),
		"last_run_time":           formatTime(m.LastRunTime),
		"last_error_time":         formatTime(m.LastErrorTime),
		"last_error":              m.LastError,
		"is_healthy":              m.IsHealthy,
	}
}

// Handler serves /health and /metrics as JSON.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		m.mu.RLock()
		healthy := m.IsHealthy
		m.mu.RUnlock()

		status := http.StatusOK
		body := map[string]any{"status": "healthy"}
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
		}
		writeJSON(w, status, body)
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, m.GetStats())
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
