package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stewardbot/steward/internal/core"
)

// RenderResults produces the deterministic, transcript-appendable block for
// a batch: per call, a header with name and parameters, a status line, and
// for array data a per-record enumeration. Parameter and data maps marshal
// with sorted keys, so rendering is stable across runs.
func RenderResults(results []core.FunctionCallResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Function: %s\n", r.Name)
		fmt.Fprintf(&b, "Parameters: %s\n", compactJSON(r.Parameters))
		if r.Success {
			b.WriteString("Status: Success\n")
			renderData(&b, r.Data)
		} else {
			b.WriteString("Status: Failed\n")
			fmt.Fprintf(&b, "Error: %s\n", r.Error)
		}
	}
	return b.String()
}

func renderData(b *strings.Builder, data any) {
	switch v := data.(type) {
	case nil:
		b.WriteString("Data: (none)\n")
	case []map[string]any:
		renderRecords(b, toAnySlice(v))
	case []any:
		renderRecords(b, v)
	default:
		// Reflected slices (e.g. []ScoredSnippet) still enumerate per record.
		if records, ok := sliceOfAny(v); ok {
			renderRecords(b, records)
			return
		}
		fmt.Fprintf(b, "Data: %s\n", compactJSON(v))
	}
}

func renderRecords(b *strings.Builder, records []any) {
	if len(records) == 0 {
		b.WriteString("Data: 0 records\n")
		return
	}
	fmt.Fprintf(b, "Data: %d records\n", len(records))
	for i, rec := range records {
		fmt.Fprintf(b, "  %d. %s\n", i+1, compactJSON(rec))
	}
}

func toAnySlice(v []map[string]any) []any {
	out := make([]any, len(v))
	for i, m := range v {
		out[i] = m
	}
	return out
}

// sliceOfAny round-trips arbitrary slice values through JSON so every
// array-shaped result renders the same way.
func sliceOfAny(v any) ([]any, bool) {
	raw, err := json.Marshal(v)
	if err != nil || len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var out []any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func compactJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
