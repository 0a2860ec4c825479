package agent

import (
	"strings"

	"github.com/stewardbot/steward/internal/core"
)

// Capabilities is the static documentation of the response protocol and the
// dispatchable functions, included in every prompt.
const Capabilities = `
You operate in a loop. On every step, reply with EXACTLY ONE JSON object and nothing else:
{"answer": "<final answer text, or empty>", "reasoning": "<one or two sentences on what you are doing>", "function_calls": [{"function": "<name>", "parameters": {...}}]}

Rules:
- To act, leave "answer" empty and list one or more function_calls. Calls run in the order given; a later call sees the effects of earlier ones.
- To finish, set "answer" and leave "function_calls" empty. Never set both.
- If a function call failed, read its error, adjust, and try a different call on the next step.

Available functions:

query_data: run one operation against the user's tables (shopping_list, tasks, notes).
Parameters form a query descriptor:
  table (required), action: one of select|insert|update|delete|upsert|join|search,
  columns: comma-separated projection (default "*"),
  data: object or array of objects (insert/update/upsert),
  filters: [{"column": ..., "operator": eq|neq|gt|lt|gte|lte|like|ilike|in|contains|range, "value": ...}] (all ANDed),
  order: [{"column": ..., "ascending": true|false}],
  pagination: {"limit": N, "offset": N},
  join: [{"table": ..., "on": {"local": ..., "foreign": ...}, "type": "inner"|"left", "columns": ..., "column_prefix": ...}],
  search_term and search_columns (search action; default columns title, description, content),
  on_conflict: conflict column for upsert (default "id").
update and delete require at least one filter.

retrieve_knowledge: keyword search over what you know about the user.
Parameters: query (required), limit (optional, default 5, max 50).

synthesize_knowledge: store or update a fact about the user.
Parameters: topic (required), content (required), source, confidence (0..1), related_entities (object).

set_specialization: switch your persona for the NEXT step.
Parameters: name (required).

list_specializations: list available personas. No parameters.
`

// BuildPrompt assembles the completion prompt: persona instructions, the
// capability documentation, and the transcript as an ordered narrative.
func BuildPrompt(instructions string, transcript []core.Entry) string {
	var b strings.Builder
	if instructions != "" {
		b.WriteString(strings.TrimSpace(instructions))
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(Capabilities))
	b.WriteString("\n\nConversation so far:\n\n")
	b.WriteString(RenderTranscript(transcript))
	b.WriteString("\nRespond with the next JSON object.")
	return b.String()
}

// RenderTranscript renders entries in order; order is the only memory the
// loop has.
func RenderTranscript(transcript []core.Entry) string {
	var b strings.Builder
	for _, e := range transcript {
		switch e.Role {
		case core.RoleUser:
			b.WriteString("User: ")
		case core.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString(e.Role + ": ")
		}
		b.WriteString(e.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}
