package dispatch

import (
	"strings"
	"testing"

	"github.com/stewardbot/steward/internal/core"
)

func TestRenderResults_SuccessWithRecords(t *testing.T) {
	out := RenderResults([]core.FunctionCallResult{
		{
			Name:       "query_data",
			Parameters: map[string]any{"table": "tasks", "action": "select"},
			Success:    true,
			Data: []map[string]any{
				{"id": int64(1), "title": "buy groceries"},
				{"id": int64(2), "title": "water plants"},
			},
		},
	})

	for _, want := range []string{
		"Function: query_data",
		`Parameters: {"action":"select","table":"tasks"}`,
		"Status: Success",
		"Data: 2 records",
		`1. {"id":1,"title":"buy groceries"}`,
		`2. {"id":2,"title":"water plants"}`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderResults_Failure(t *testing.T) {
	out := RenderResults([]core.FunctionCallResult{
		{Name: "query_data", Parameters: map[string]any{}, Success: false, Error: "update requires at least one filter"},
	})
	if !strings.Contains(out, "Status: Failed") || !strings.Contains(out, "Error: update requires at least one filter") {
		t.Errorf("rendered:\n%s", out)
	}
	if strings.Contains(out, "Data:") {
		t.Errorf("failed result should carry no data:\n%s", out)
	}
}

func TestRenderResults_EmptyAndScalarData(t *testing.T) {
	out := RenderResults([]core.FunctionCallResult{
		{Name: "query_data", Success: true, Data: []map[string]any{}},
		{Name: "query_data", Success: true, Data: map[string]any{"updated": int64(3)}},
		{Name: "list_specializations", Success: true, Data: []string{"general", "planner"}},
	})
	if !strings.Contains(out, "Data: 0 records") {
		t.Errorf("rendered:\n%s", out)
	}
	if !strings.Contains(out, `Data: {"updated":3}`) {
		t.Errorf("rendered:\n%s", out)
	}
	if !strings.Contains(out, "Data: 2 records") || !strings.Contains(out, `1. "general"`) {
		t.Errorf("rendered:\n%s", out)
	}
}

func TestRenderResults_Deterministic(t *testing.T) {
	results := []core.FunctionCallResult{
		{
			Name:       "synthesize_knowledge",
			Parameters: map[string]any{"topic": "bike", "content": "rides", "confidence": 0.8},
			Success:    true,
			Data:       map[string]any{"b": 2, "a": 1, "c": 3},
		},
	}
	first := RenderResults(results)
	for i := 0; i < 10; i++ {
		if got := RenderResults(results); got != first {
			t.Fatalf("rendering not deterministic:\n%s\nvs\n%s", first, got)
		}
	}
	if !strings.Contains(first, `{"a":1,"b":2,"c":3}`) {
		t.Errorf("keys not sorted:\n%s", first)
	}
}
