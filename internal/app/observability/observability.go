// Package observability exposes plaintext metrics for the update pipeline
// and the HTTP surface, plus JSON request logging.
package observability

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type httpKey struct {
	Method string
	Path   string
	Status int
}

type httpStat struct {
	Count     int64
	LatencyMS float64
}

type Collector struct {
	db *sql.DB

	mu           sync.RWMutex
	requestStats map[httpKey]httpStat
	updateStats  map[string]int64
	startedAt    time.Time
}

func NewCollector(db *sql.DB) *Collector {
	return &Collector{
		db:           db,
		requestStats: make(map[httpKey]httpStat),
		updateStats:  make(map[string]int64),
		startedAt:    time.Now(),
	}
}

// RecordUpdate counts one handled chat update by kind (message, callback,
// poll_answer).
func (c *Collector) RecordUpdate(kind string) {
	c.mu.Lock()
	c.updateStats[kind]++
	c.mu.Unlock()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		latencyMS := float64(time.Since(start).Microseconds()) / 1000.0

		c.mu.Lock()
		k := httpKey{Method: r.Method, Path: r.URL.Path, Status: rec.status}
		s := c.requestStats[k]
		s.Count++
		s.LatencyMS += latencyMS
		c.requestStats[k] = s
		c.mu.Unlock()

		entry := map[string]any{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"latency_ms": latencyMS,
			"remote_ip":  strings.TrimSpace(r.RemoteAddr),
		}
		b, _ := json.Marshal(entry)
		log.Printf("%s", string(b))
	})
}

func (c *Collector) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	httpCopy := make(map[httpKey]httpStat, len(c.requestStats))
	for k, v := range c.requestStats {
		httpCopy[k] = v
	}
	updatesCopy := make(map[string]int64, len(c.updateStats))
	for k, v := range c.updateStats {
		updatesCopy[k] = v
	}
	startedAt := c.startedAt
	c.mu.RUnlock()

	var sb strings.Builder
	sb.WriteString("# quizbot observability metrics\n")
	sb.WriteString("# TYPE quizbot_uptime_seconds gauge\n")
	sb.WriteString(fmt.Sprintf("quizbot_uptime_seconds %.0f\n", time.Since(startedAt).Seconds()))

	kinds := make([]string, 0, len(updatesCopy))
	for k := range updatesCopy {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	sb.WriteString("# TYPE quizbot_updates_total counter\n")
	for _, k := range kinds {
		sb.WriteString(fmt.Sprintf("quizbot_updates_total{kind=\"%s\"} %d\n", k, updatesCopy[k]))
	}

	keys := make([]httpKey, 0, len(httpCopy))
	for k := range httpCopy {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Method != keys[j].Method {
			return keys[i].Method < keys[j].Method
		}
		if keys[i].Path != keys[j].Path {
			return keys[i].Path < keys[j].Path
		}
		return keys[i].Status < keys[j].Status
	})

	sb.WriteString("# TYPE quizbot_http_requests_total counter\n")
	sb.WriteString("# TYPE quizbot_http_request_latency_ms_sum counter\n")
	for _, k := range keys {
		s := httpCopy[k]
		labels := fmt.Sprintf("method=\"%s\",path=\"%s\",status=\"%d\"", k.Method, k.Path, k.Status)
		sb.WriteString(fmt.Sprintf("quizbot_http_requests_total{%s} %d\n", labels, s.Count))
		sb.WriteString(fmt.Sprintf("quizbot_http_request_latency_ms_sum{%s} %.3f\n", labels, s.LatencyMS))
	}

	if c.db != nil {
		dbs := c.db.Stats()
		sb.WriteString("# TYPE quizbot_db_open_connections gauge\n")
		sb.WriteString(fmt.Sprintf("quizbot_db_open_connections %d\n", dbs.OpenConnections))
		sb.WriteString("# TYPE quizbot_db_in_use_connections gauge\n")
		sb.WriteString(fmt.Sprintf("quizbot_db_in_use_connections %d\n", dbs.InUse))
		sb.WriteString("# TYPE quizbot_db_wait_count counter\n")
		sb.WriteString(fmt.Sprintf("quizbot_db_wait_count %d\n", dbs.WaitCount))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sb.String()))
}
