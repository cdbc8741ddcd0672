package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-token")
	c.baseURL = srv.URL
	c.fileURL = srv.URL + "/file"
	return c
}

func TestClientSendPollReturnsToken(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sendPoll" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req sendPollRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.IsAnonymous {
			t.Errorf("polls must be non-anonymous to carry voter identity")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 5, "poll": map[string]any{"id": "poll-abc"}},
		})
	})

	token, err := c.SendPoll(context.Background(), 7, "Q?", []string{"a", "b"})
	if err != nil {
		t.Fatalf("send poll: %v", err)
	}
	if token != "poll-abc" {
		t.Fatalf("token = %q, want poll-abc", token)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	})

	if _, err := c.SendMessage(context.Background(), 1, "hi", nil); err == nil {
		t.Fatalf("expected error for ok=false response")
	}
}

func TestClientFetchFile(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/getFile":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok":     true,
				"result": map[string]any{"file_id": "f1", "file_path": "documents/q.txt"},
			})
		case "/file/documents/q.txt":
			_, _ = w.Write([]byte("1. Q?\nA. a\nB. b\nAns: A\n"))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})

	data, err := c.FetchFile(context.Background(), "f1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "1. Q?\nA. a\nB. b\nAns: A\n" {
		t.Fatalf("data = %q", data)
	}
}
