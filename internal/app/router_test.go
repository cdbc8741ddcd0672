package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quizbot/internal/app/observability"
	"quizbot/internal/bot"
	"quizbot/internal/exam"
	"quizbot/internal/question"
	"quizbot/internal/report"
	"quizbot/internal/store"
)

func newTestRouter(t *testing.T, cfg Config) (http.Handler, *observability.Collector) {
	t.Helper()
	st := store.NewMemStore()
	exams := exam.NewService(st, nil, nil)
	handler := bot.NewHandler(
		nil,
		bot.NewMemDialogs(),
		bot.NewAuthority(1, nil, st),
		exams,
		question.NewService(st),
		report.NewService(st),
		st,
	)
	collector := observability.NewCollector(nil)
	return NewRouter(cfg, handler, collector), collector
}

func TestRouterHealthz(t *testing.T) {
	r, _ := newTestRouter(t, Config{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != `{"ok":true}` {
		t.Fatalf("unexpected health body: %s", body)
	}
}

func TestRouterWebhookRequiresSecret(t *testing.T) {
	r, _ := newTestRouter(t, Config{WebhookSecret: "hush"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{"update_id":1}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without secret, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{"update_id":1}`))
	req.Header.Set(webhookSecretHeader, "hush")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with secret, got %d", w.Code)
	}
}

func TestRouterWebhookRejectsMalformedBody(t *testing.T) {
	r, _ := newTestRouter(t, Config{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{not json"))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRouterWebhookCountsUpdateKinds(t *testing.T) {
	r, _ := newTestRouter(t, Config{})

	body := `{"update_id":7,"poll_answer":{"poll_id":"nope","user":{"id":5},"option_ids":[0]}}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	mw := httptest.NewRecorder()
	r.ServeHTTP(mw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(mw.Body.String(), `quizbot_updates_total{kind="poll_answer"} 1`) {
		t.Fatalf("poll_answer not counted:\n%s", mw.Body.String())
	}
}
