package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCollectorCountsUpdatesByKind(t *testing.T) {
	c := NewCollector(nil)
	c.RecordUpdate("message")
	c.RecordUpdate("message")
	c.RecordUpdate("poll_answer")

	w := httptest.NewRecorder()
	c.MetricsHandler(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	if !strings.Contains(body, `quizbot_updates_total{kind="message"} 2`) {
		t.Fatalf("missing message counter:\n%s", body)
	}
	if !strings.Contains(body, `quizbot_updates_total{kind="poll_answer"} 1`) {
		t.Fatalf("missing poll_answer counter:\n%s", body)
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	c := NewCollector(nil)
	h := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	mw := httptest.NewRecorder()
	c.MetricsHandler(mw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(mw.Body.String(), `quizbot_http_requests_total{method="GET",path="/healthz",status="418"} 1`) {
		t.Fatalf("request not recorded:\n%s", mw.Body.String())
	}
}
