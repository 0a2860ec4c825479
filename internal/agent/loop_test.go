package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stewardbot/steward/internal/core"
	"github.com/stewardbot/steward/internal/dispatch"
	"github.com/stewardbot/steward/internal/knowledge"
	"github.com/stewardbot/steward/internal/query"
	"github.com/stewardbot/steward/internal/store"
)

// scriptedClient replays a fixed sequence of decisions and records every
// prompt it was given.
type scriptedClient struct {
	decisions []core.Decision
	prompts   []string
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string) core.Decision {
	c.prompts = append(c.prompts, prompt)
	if len(c.decisions) == 0 {
		return core.Decision{Answer: "out of script", FunctionCalls: []core.FunctionCallRequest{}}
	}
	d := c.decisions[0]
	c.decisions = c.decisions[1:]
	return d
}

func testLoop(t *testing.T, client core.CompletionClient) (*Loop, *store.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	table := dispatch.NewTable(db, query.NewCompiler(db), knowledge.New(db, nil), nil)
	return New(client, table, db, nil), db
}

func callsOf(calls ...core.FunctionCallRequest) []core.FunctionCallRequest {
	return calls
}

func TestRun_ImmediateAnswer(t *testing.T) {
	client := &scriptedClient{decisions: []core.Decision{
		{Answer: "your list has 3 items", FunctionCalls: callsOf()},
	}}
	loop, _ := testLoop(t, client)

	res := loop.Run(context.Background(), "how long is my list?", "")
	if res.Answer != "your list has 3 items" {
		t.Errorf("answer: %q", res.Answer)
	}
	if len(res.Transcript) != 2 {
		t.Fatalf("transcript: %+v", res.Transcript)
	}
	if res.Transcript[0].Role != core.RoleUser || res.Transcript[1].Role != core.RoleAssistant {
		t.Errorf("transcript roles: %+v", res.Transcript)
	}
	if res.Specialization != DefaultSpecialization {
		t.Errorf("specialization: %q", res.Specialization)
	}
}

func TestRun_ExecutesThenAnswers(t *testing.T) {
	client := &scriptedClient{decisions: []core.Decision{
		{
			Reasoning: "adding milk first",
			FunctionCalls: callsOf(core.FunctionCallRequest{
				Name: "query_data",
				Parameters: map[string]any{
					"table": "shopping_list", "action": "insert",
					"data": map[string]any{"description": "milk"},
				},
			}),
		},
		{Answer: "added milk to your list", FunctionCalls: callsOf()},
	}}
	loop, db := testLoop(t, client)

	res := loop.Run(context.Background(), "add milk", "")
	if res.Answer != "added milk to your list" {
		t.Errorf("answer: %q", res.Answer)
	}

	// Transcript: user, execution entry, final answer.
	if len(res.Transcript) != 3 {
		t.Fatalf("transcript: %+v", res.Transcript)
	}
	execEntry := res.Transcript[1].Content
	if !strings.Contains(execEntry, "adding milk first") || !strings.Contains(execEntry, "Status: Success") {
		t.Errorf("execution entry: %q", execEntry)
	}

	// The second prompt must include the rendered results of the first step.
	if len(client.prompts) != 2 {
		t.Fatalf("prompts: %d", len(client.prompts))
	}
	if !strings.Contains(client.prompts[1], "Function: query_data") {
		t.Errorf("second prompt missing results:\n%s", client.prompts[1])
	}

	var n int
	err := db.QueryRowContext(context.Background(), `SELECT count(*) FROM shopping_list`).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rows: %d", n)
	}
}

func TestRun_BudgetExhausted(t *testing.T) {
	noop := core.Decision{
		FunctionCalls: callsOf(core.FunctionCallRequest{
			Name:       "query_data",
			Parameters: map[string]any{"table": "tasks", "action": "select"},
		}),
	}
	client := &scriptedClient{decisions: []core.Decision{noop, noop, noop, noop, noop, noop, noop}}
	loop, _ := testLoop(t, client)
	loop.MaxIterations = 3

	res := loop.Run(context.Background(), "loop forever", "")
	if res.Answer != budgetExhaustedAnswer {
		t.Errorf("answer: %q", res.Answer)
	}
	if len(client.prompts) != 3 {
		t.Errorf("expected exactly 3 completion calls, got %d", len(client.prompts))
	}
	// user + 3 execution entries + apology.
	if len(res.Transcript) != 5 {
		t.Errorf("transcript length: %d", len(res.Transcript))
	}
}

func TestRun_EmptyAnswerGetsFallback(t *testing.T) {
	client := &scriptedClient{decisions: []core.Decision{
		{Answer: "   ", FunctionCalls: callsOf()},
	}}
	loop, _ := testLoop(t, client)

	res := loop.Run(context.Background(), "hello", "")
	if res.Answer != emptyAnswerFallback {
		t.Errorf("answer: %q", res.Answer)
	}
}

func TestRun_SpecializationChangesNextPrompt(t *testing.T) {
	client := &scriptedClient{decisions: []core.Decision{
		{
			FunctionCalls: callsOf(core.FunctionCallRequest{
				Name:       "set_specialization",
				Parameters: map[string]any{"name": "planner"},
			}),
		},
		{Answer: "switched", FunctionCalls: callsOf()},
	}}
	loop, db := testLoop(t, client)

	planner, err := db.GetSpecialization(context.Background(), "planner")
	if err != nil || planner == nil {
		t.Fatalf("planner seed: %v %v", planner, err)
	}

	res := loop.Run(context.Background(), "plan my week", "")
	if res.Specialization != "planner" {
		t.Errorf("specialization: %q", res.Specialization)
	}
	if len(client.prompts) != 2 {
		t.Fatalf("prompts: %d", len(client.prompts))
	}
	if strings.Contains(client.prompts[0], planner.Instructions) {
		t.Error("first prompt should not carry planner instructions yet")
	}
	if !strings.Contains(client.prompts[1], planner.Instructions) {
		t.Error("second prompt should carry planner instructions")
	}
}

func TestRun_UnknownSpecializationFallsBack(t *testing.T) {
	client := &scriptedClient{decisions: []core.Decision{
		{Answer: "ok", FunctionCalls: callsOf()},
	}}
	loop, _ := testLoop(t, client)

	res := loop.Run(context.Background(), "hi", "wizard")
	if res.Specialization != DefaultSpecialization {
		t.Errorf("specialization: %q", res.Specialization)
	}
}

func TestBuildPrompt_ContainsPieces(t *testing.T) {
	transcript := []core.Entry{
		{Role: core.RoleUser, Content: "add milk"},
		{Role: core.RoleAssistant, Content: "Function: query_data"},
	}
	prompt := BuildPrompt("You are a planner.", transcript)
	for _, want := range []string{
		"You are a planner.",
		"query_data",
		"retrieve_knowledge",
		"User: add milk",
		"Assistant: Function: query_data",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
