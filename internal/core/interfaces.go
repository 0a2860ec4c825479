package core

import (
	"context"
)

// CompletionClient produces one Decision per prompt. Implementations absorb
// transport and parse failures internally; once the retry budget is spent
// they return a terminal Decision rather than an error, so the loop always
// terminates without throwing.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) Decision
}

// ExecMode selects how a dispatch batch runs.
type ExecMode int

const (
	// ExecSequential runs calls in the order given; later calls observe the
	// side effects of earlier ones. This is the default.
	ExecSequential ExecMode = iota
	// ExecConcurrent runs calls in parallel. Only legal for batches with no
	// cross-call dependency, i.e. all calls read-only.
	ExecConcurrent
)

// Dispatcher executes a batch of function calls and renders the results into
// a transcript-appendable block.
type Dispatcher interface {
	Execute(ctx context.Context, calls []FunctionCallRequest, mode ExecMode) ([]FunctionCallResult, string)
	// ReadOnly reports whether every call in the batch is free of side effects
	// on the store, making ExecConcurrent legal.
	ReadOnly(calls []FunctionCallRequest) bool
}
