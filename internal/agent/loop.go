package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/stewardbot/steward/internal/core"
	"github.com/stewardbot/steward/internal/dispatch"
	"github.com/stewardbot/steward/internal/store"
)

// DefaultMaxIterations bounds decision/execute round-trips per request.
const DefaultMaxIterations = 5

// DefaultSpecialization is the persona used when the caller names none.
const DefaultSpecialization = "general"

const (
	// budgetExhaustedAnswer is the designed degradation path, not an error.
	budgetExhaustedAnswer = "I'm sorry, I couldn't finish working on that request within my step budget. Please try again, or break the request into smaller pieces."
	// emptyAnswerFallback covers a terminating decision with no answer text.
	emptyAnswerFallback = "(The model returned no answer text; please try rephrasing your request.)"
)

// Loop owns the transcript, the active specialization, and the iteration
// budget for one request. The specialization is threaded through the loop as
// state, never held in a process-wide variable.
type Loop struct {
	Client        core.CompletionClient
	Dispatcher    core.Dispatcher
	DB            *store.DB
	MaxIterations int
	Log           *slog.Logger
}

// Result is what one invocation returns to the front door.
type Result struct {
	Answer         string       `json:"answer"`
	Transcript     []core.Entry `json:"transcript"`
	Specialization string       `json:"specialization"`
}

// New creates a Loop with the default iteration budget.
func New(client core.CompletionClient, dispatcher core.Dispatcher, db *store.DB, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		Client:        client,
		Dispatcher:    dispatcher,
		DB:            db,
		MaxIterations: DefaultMaxIterations,
		Log:           log,
	}
}

// Run drives one request to completion: alternate between requesting a
// decision and executing the functions it names, until an answer is returned
// or the budget is exhausted. Failures below the dispatch boundary never
// surface as errors; the user always gets a natural-language answer.
func (l *Loop) Run(ctx context.Context, userQuery, specialization string) Result {
	maxIter := l.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	active := l.resolveSpecialization(ctx, specialization)

	transcript := []core.Entry{{Role: core.RoleUser, Content: userQuery}}

	for iteration := 1; iteration <= maxIter; iteration++ {
		prompt := BuildPrompt(l.instructionsFor(ctx, active), transcript)
		decision := l.Client.Complete(ctx, prompt)
		l.Log.Debug("decision received",
			"iteration", iteration,
			"function_calls", len(decision.FunctionCalls),
			"has_answer", decision.Answer != "")

		// An empty function_calls list always terminates the loop.
		if len(decision.FunctionCalls) == 0 {
			answer := strings.TrimSpace(decision.Answer)
			if answer == "" {
				answer = emptyAnswerFallback
			}
			transcript = append(transcript, core.Entry{Role: core.RoleAssistant, Content: answer})
			return Result{Answer: answer, Transcript: transcript, Specialization: active}
		}

		mode := core.ExecSequential
		if l.Dispatcher.ReadOnly(decision.FunctionCalls) {
			mode = core.ExecConcurrent
		}
		results, rendered := l.Dispatcher.Execute(ctx, decision.FunctionCalls, mode)

		// A set_specialization side effect changes the persona for the next
		// prompt only; it is applied here, to loop state.
		for _, r := range results {
			if r.Success && r.Name == dispatch.FuncSetSpecialization.String() {
				if data, ok := r.Data.(map[string]any); ok {
					if name, ok := data["specialization"].(string); ok && name != "" {
						active = name
					}
				}
			}
		}

		entry := rendered
		if reasoning := strings.TrimSpace(decision.Reasoning); reasoning != "" {
			entry = reasoning + "\n\n" + rendered
		}
		transcript = append(transcript, core.Entry{Role: core.RoleAssistant, Content: entry})
	}

	transcript = append(transcript, core.Entry{Role: core.RoleAssistant, Content: budgetExhaustedAnswer})
	return Result{Answer: budgetExhaustedAnswer, Transcript: transcript, Specialization: active}
}

// resolveSpecialization falls back to the default persona when the requested
// one is missing or unknown.
func (l *Loop) resolveSpecialization(ctx context.Context, name string) string {
	if name == "" {
		return DefaultSpecialization
	}
	spec, err := l.DB.GetSpecialization(ctx, name)
	if err != nil {
		l.Log.Warn("resolving specialization failed", "name", name, "error", err)
		return DefaultSpecialization
	}
	if spec == nil {
		l.Log.Warn("unknown specialization requested", "name", name)
		return DefaultSpecialization
	}
	return spec.Name
}

func (l *Loop) instructionsFor(ctx context.Context, name string) string {
	spec, err := l.DB.GetSpecialization(ctx, name)
	if err != nil || spec == nil {
		if err != nil {
			l.Log.Warn("loading specialization instructions failed", "name", name, "error", err)
		}
		return ""
	}
	return spec.Instructions
}
