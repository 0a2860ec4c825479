package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stewardbot/steward/internal/agent"
	"github.com/stewardbot/steward/internal/core"
)

type fakeRunner struct {
	lastQuery string
	lastSpec  string
	result    agent.Result
}

func (f *fakeRunner) Run(ctx context.Context, userQuery, specialization string) agent.Result {
	f.lastQuery = userQuery
	f.lastSpec = specialization
	return f.result
}

func TestHandleAsk(t *testing.T) {
	runner := &fakeRunner{result: agent.Result{
		Answer:         "done",
		Transcript:     []core.Entry{{Role: core.RoleUser, Content: "add milk"}},
		Specialization: "general",
	}}
	srv := httptest.NewServer(NewHandler(runner, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ask", "application/json",
		strings.NewReader(`{"query": "add milk", "specialization": "planner"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}

	var got agent.Result
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Answer != "done" || got.Specialization != "general" {
		t.Errorf("result: %+v", got)
	}
	if runner.lastQuery != "add milk" || runner.lastSpec != "planner" {
		t.Errorf("runner got: %q %q", runner.lastQuery, runner.lastSpec)
	}
}

func TestHandleAsk_EmptyQuery(t *testing.T) {
	srv := httptest.NewServer(NewHandler(&fakeRunner{}, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ask", "application/json", strings.NewReader(`{"query": ""}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: %d", resp.StatusCode)
	}
}

func TestHandleAsk_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(NewHandler(&fakeRunner{}, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ask", "application/json", strings.NewReader(`{`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: %d", resp.StatusCode)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := httptest.NewServer(NewHandler(&fakeRunner{}, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body: %+v", body)
	}
}
