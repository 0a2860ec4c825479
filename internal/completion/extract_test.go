package completion

import (
	"errors"
	"testing"
)

func TestExtractDecision_PlainJSON(t *testing.T) {
	dec, err := ExtractDecision(`{"answer": "milk is on the list", "reasoning": "done", "function_calls": []}`)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Answer != "milk is on the list" || dec.Reasoning != "done" {
		t.Errorf("decision: %+v", dec)
	}
	if dec.FunctionCalls == nil || len(dec.FunctionCalls) != 0 {
		t.Errorf("expected empty non-nil function calls, got %#v", dec.FunctionCalls)
	}
}

func TestExtractDecision_FencedWithLanguageTag(t *testing.T) {
	raw := "Here is my decision:\n```json\n{\"answer\": \"\", \"function_calls\": [{\"function\": \"list_specializations\", \"parameters\": {}}]}\n```\nthanks"
	dec, err := ExtractDecision(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(dec.FunctionCalls) != 1 || dec.FunctionCalls[0].Name != "list_specializations" {
		t.Errorf("function calls: %+v", dec.FunctionCalls)
	}
}

func TestExtractDecision_NoisyProseAroundObject(t *testing.T) {
	raw := `Sure! I will do that. {"answer": "done", "function_calls": []} Hope that helps.`
	dec, err := ExtractDecision(raw)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Answer != "done" {
		t.Errorf("answer: %q", dec.Answer)
	}
}

func TestExtractDecision_EmptyAndSentinel(t *testing.T) {
	for _, raw := range []string{"", "   \n", "No response"} {
		if _, err := ExtractDecision(raw); !errors.Is(err, ErrEmptyReply) {
			t.Errorf("raw %q: expected ErrEmptyReply, got %v", raw, err)
		}
	}
}

func TestExtractDecision_NoObject(t *testing.T) {
	if _, err := ExtractDecision("I could not decide."); !errors.Is(err, ErrNoJSONObject) {
		t.Errorf("expected ErrNoJSONObject, got %v", err)
	}
}

func TestExtractDecision_MalformedJSON(t *testing.T) {
	_, err := ExtractDecision(`{"answer": "unterminated`)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if errors.Is(err, ErrEmptyReply) || errors.Is(err, ErrNoJSONObject) {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestExtractDecision_UnclosedFenceFallsThrough(t *testing.T) {
	raw := "```json\n{\"answer\": \"ok\", \"function_calls\": []}"
	dec, err := ExtractDecision(raw)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Answer != "ok" {
		t.Errorf("answer: %q", dec.Answer)
	}
}

func TestExtractDecision_FunctionKeyIsFunction(t *testing.T) {
	dec, err := ExtractDecision(`{"function_calls": [{"function": "query_data", "parameters": {"table": "tasks", "action": "select"}}]}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(dec.FunctionCalls) != 1 {
		t.Fatalf("function calls: %+v", dec.FunctionCalls)
	}
	call := dec.FunctionCalls[0]
	if call.Name != "query_data" {
		t.Errorf("name: %q", call.Name)
	}
	if call.Parameters["table"] != "tasks" {
		t.Errorf("parameters: %+v", call.Parameters)
	}
}
