package core

// Entry is one tagged block in the transcript: a role label plus content.
// The transcript is append-only and is the sole memory of an invocation.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Transcript role labels.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Decision is the parsed output of one completion round. A well-formed
// decision carries either a final answer or function calls, never both;
// an empty FunctionCalls list always terminates the loop.
type Decision struct {
	Answer        string                `json:"answer"`
	Reasoning     string                `json:"reasoning"`
	FunctionCalls []FunctionCallRequest `json:"function_calls"`
}

// FunctionCallRequest names one dispatchable function and its parameters.
type FunctionCallRequest struct {
	Name       string         `json:"function"`
	Parameters map[string]any `json:"parameters"`
}

// FunctionCallResult is the outcome of one dispatched call. Handler faults
// never escape dispatch; they land here as Success=false.
type FunctionCallResult struct {
	Name       string         `json:"function"`
	Parameters map[string]any `json:"parameters"`
	Success    bool           `json:"success"`
	Data       any            `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Specialization is a named persona whose instruction text is prepended to
// the prompt while active. Protected specializations are seeded by the app
// and cannot be removed by the agent.
type Specialization struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	Protected    bool   `json:"protected"`
}
