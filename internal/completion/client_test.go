package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// zeroBackoff keeps retry tests fast.
func zeroBackoff(c *Client) {
	c.Policy.Backoff = func(int) time.Duration { return 0 }
}

func chatReply(content string) string {
	body := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

func TestClient_CompleteHappyPath(t *testing.T) {
	var gotAuth, gotPath string
	var gotReq ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(chatReply(`{"answer": "hi there", "function_calls": []}`)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", "test-model", 0.2, nil)
	dec := c.Complete(context.Background(), "hello")
	if dec.Answer != "hi there" {
		t.Errorf("answer: %q", dec.Answer)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header: %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path: %q", gotPath)
	}
	if gotReq.Model != "test-model" || gotReq.Temperature != 0.2 {
		t.Errorf("request: %+v", gotReq)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "hello" {
		t.Errorf("messages: %+v", gotReq.Messages)
	}
}

func TestClient_RetriesEmptyReplyThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Write([]byte(chatReply("No response")))
			return
		}
		w.Write([]byte(chatReply(`{"answer": "third time", "function_calls": []}`)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "test-model", 0, nil)
	zeroBackoff(c)
	dec := c.Complete(context.Background(), "q")
	if dec.Answer != "third time" {
		t.Errorf("answer: %q", dec.Answer)
	}
	if calls.Load() != 3 {
		t.Errorf("calls: %d", calls.Load())
	}
}

func TestClient_ExhaustionYieldsTerminalDecision(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "test-model", 0, nil)
	zeroBackoff(c)
	dec := c.Complete(context.Background(), "q")
	if calls.Load() != 5 {
		t.Errorf("calls: %d", calls.Load())
	}
	if dec.Answer == "" {
		t.Error("expected diagnostic answer")
	}
	if len(dec.FunctionCalls) != 0 {
		t.Errorf("expected no function calls, got %+v", dec.FunctionCalls)
	}
}

func TestClient_RetriesMalformedJSON(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(chatReply("not json at all")))
			return
		}
		w.Write([]byte(chatReply(`{"answer": "recovered", "function_calls": []}`)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "test-model", 0, nil)
	zeroBackoff(c)
	dec := c.Complete(context.Background(), "q")
	if dec.Answer != "recovered" {
		t.Errorf("answer: %q", dec.Answer)
	}
}

func TestClient_ProviderErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "model overloaded"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "test-model", 0, nil)
	zeroBackoff(c)
	dec := c.Complete(context.Background(), "q")
	if !strings.Contains(dec.Answer, "model overloaded") {
		t.Errorf("expected last error in diagnostic, got %q", dec.Answer)
	}
}
