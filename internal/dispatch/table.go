package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/stewardbot/steward/internal/core"
	"github.com/stewardbot/steward/internal/knowledge"
	"github.com/stewardbot/steward/internal/query"
	"github.com/stewardbot/steward/internal/store"
)

// Table routes function calls to their handlers. Handlers never let a fault
// escape: panics and errors alike become failed FunctionCallResults.
type Table struct {
	Compiler  *query.Compiler
	Knowledge *knowledge.Store
	DB        *store.DB
	Log       *slog.Logger
}

// NewTable wires a dispatch table over the given collaborators.
func NewTable(db *store.DB, compiler *query.Compiler, kn *knowledge.Store, log *slog.Logger) *Table {
	if log == nil {
		log = slog.Default()
	}
	return &Table{Compiler: compiler, Knowledge: kn, DB: db, Log: log}
}

// Execute runs the batch in the given mode and renders the results into a
// transcript-appendable block. ExecConcurrent falls back to sequential when
// the batch is not read-only; ordering of results always matches the request.
func (t *Table) Execute(ctx context.Context, calls []core.FunctionCallRequest, mode core.ExecMode) ([]core.FunctionCallResult, string) {
	results := make([]core.FunctionCallResult, len(calls))

	if mode == core.ExecConcurrent && t.ReadOnly(calls) {
		g, gctx := errgroup.WithContext(ctx)
		for i, call := range calls {
			g.Go(func() error {
				results[i] = t.run(gctx, call)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, call := range calls {
			results[i] = t.run(ctx, call)
		}
	}

	for _, r := range results {
		t.Log.Debug("function call dispatched", "function", r.Name, "success", r.Success)
	}
	return results, RenderResults(results)
}

// ReadOnly reports whether every call in the batch is free of store side
// effects. query_data is read-only only for select, search, and join.
func (t *Table) ReadOnly(calls []core.FunctionCallRequest) bool {
	for _, call := range calls {
		fn, ok := ParseFunction(call.Name)
		if !ok {
			return false
		}
		switch fn {
		case FuncRetrieveKnowledge, FuncListSpecializations:
			// Knowledge retrieval appends an audit record, but never touches
			// data another call in the batch could observe.
		case FuncQueryData:
			action, _ := stringParam(call.Parameters, "action", false)
			if action != "select" && action != "search" && action != "join" {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// run executes one call, converting any fault into a failed result.
func (t *Table) run(ctx context.Context, call core.FunctionCallRequest) (result core.FunctionCallResult) {
	result = core.FunctionCallResult{Name: call.Name, Parameters: call.Parameters}

	defer func() {
		if r := recover(); r != nil {
			t.Log.Error("function handler panicked", "function", call.Name, "panic", r)
			result.Success = false
			result.Data = nil
			result.Error = fmt.Sprintf("internal error in %s: %v", call.Name, r)
		}
	}()

	fn, ok := ParseFunction(call.Name)
	if !ok {
		result.Error = fmt.Sprintf("Function %s not found", call.Name)
		return result
	}

	var (
		data any
		err  error
	)
	switch fn {
	case FuncQueryData:
		data, err = t.runQuery(ctx, call.Parameters)
	case FuncRetrieveKnowledge:
		data, err = t.runRetrieve(ctx, call.Parameters)
	case FuncSynthesizeKnowledge:
		data, err = t.runSynthesize(ctx, call.Parameters)
	case FuncSetSpecialization:
		data, err = t.runSetSpecialization(ctx, call.Parameters)
	case FuncListSpecializations:
		data, err = t.runListSpecializations(ctx)
	}

	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	result.Data = data
	return result
}

func (t *Table) runQuery(ctx context.Context, params map[string]any) (any, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding descriptor: %w", err)
	}
	d, err := query.Decode(raw)
	if err != nil {
		return nil, err
	}
	return t.Compiler.Run(ctx, d)
}

func (t *Table) runRetrieve(ctx context.Context, params map[string]any) (any, error) {
	q, err := stringParam(params, "query", true)
	if err != nil {
		return nil, err
	}
	limit, err := intParam(params, "limit", knowledge.DefaultLimit)
	if err != nil {
		return nil, err
	}
	return t.Knowledge.Retrieve(ctx, q, limit)
}

func (t *Table) runSynthesize(ctx context.Context, params map[string]any) (any, error) {
	topic, err := stringParam(params, "topic", true)
	if err != nil {
		return nil, err
	}
	content, err := stringParam(params, "content", true)
	if err != nil {
		return nil, err
	}
	source, err := stringParam(params, "source", false)
	if err != nil {
		return nil, err
	}
	confidence, err := floatParam(params, "confidence")
	if err != nil {
		return nil, err
	}
	entities, err := mapParam(params, "related_entities")
	if err != nil {
		return nil, err
	}
	return t.Knowledge.Synthesize(ctx, topic, content, knowledge.SynthesisOptions{
		Source:          source,
		Confidence:      confidence,
		RelatedEntities: entities,
	})
}

// runSetSpecialization validates the persona and returns its name; applying
// it to loop state is the orchestrator's job, so the transition stays pure.
func (t *Table) runSetSpecialization(ctx context.Context, params map[string]any) (any, error) {
	name, err := stringParam(params, "name", true)
	if err != nil {
		return nil, err
	}
	spec, err := t.DB.GetSpecialization(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("looking up specialization: %w", err)
	}
	if spec == nil {
		return nil, fmt.Errorf("unknown specialization %q", name)
	}
	return map[string]any{
		"specialization": spec.Name,
		"message":        fmt.Sprintf("Specialization set to %q for the next step", spec.Name),
	}, nil
}

func (t *Table) runListSpecializations(ctx context.Context) (any, error) {
	specs, err := t.DB.ListSpecializations(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names, nil
}
