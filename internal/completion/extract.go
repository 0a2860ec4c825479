package completion

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stewardbot/steward/internal/core"
)

// Extraction failure causes. Each stage fails distinctly so retries can log
// what actually went wrong.
var (
	ErrEmptyReply   = errors.New("empty reply")
	ErrNoJSONObject = errors.New("no JSON object in reply")
)

// noResponseSentinel is a literal some providers return instead of an empty
// body; it is treated as an empty reply.
const noResponseSentinel = "No response"

// ExtractDecision pulls a Decision out of a possibly noisy completion reply.
// Stages, in order: take the interior of a fenced code block if one is
// present; bound to the first '{' through the last '}'; parse strictly as
// JSON.
func ExtractDecision(raw string) (core.Decision, error) {
	var dec core.Decision

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == noResponseSentinel {
		return dec, ErrEmptyReply
	}

	candidate := stripFences(trimmed)

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end < start {
		return dec, ErrNoJSONObject
	}
	candidate = candidate[start : end+1]

	if err := json.Unmarshal([]byte(candidate), &dec); err != nil {
		return dec, fmt.Errorf("parsing decision JSON: %w", err)
	}
	if dec.FunctionCalls == nil {
		dec.FunctionCalls = []core.FunctionCallRequest{}
	}
	return dec, nil
}

// stripFences returns the interior of the first fenced code block, or the
// input unchanged when no complete fence is present. A language tag on the
// opening fence line is skipped.
func stripFences(s string) string {
	const fence = "```"
	open := strings.Index(s, fence)
	if open < 0 {
		return s
	}
	rest := s[open+len(fence):]
	if nl := strings.Index(rest, "\n"); nl >= 0 && !strings.Contains(rest[:nl], "{") {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, fence)
	if end < 0 {
		return s
	}
	return rest[:end]
}
