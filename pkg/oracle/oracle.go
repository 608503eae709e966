// Package oracle is the boundary to the external inference service. The core
// treats it as an opaque prompt-in/text-out oracle; the only classification it
// needs is transient overload (retried here, with bounded backoff) versus
// terminal failure (bubbled up).
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FailureKind classifies oracle failures.
type FailureKind string

const (
	// FailureTransient marks overload conditions worth retrying.
	FailureTransient FailureKind = "transient"

	// FailureTerminal marks failures that retrying cannot fix.
	FailureTerminal FailureKind = "terminal"
)

// Failure wraps an oracle error with its kind.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("oracle failure (%s): %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// IsTerminal reports whether err is a terminal oracle failure.
func IsTerminal(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == FailureTerminal
}

// Usage carries token accounting for one invocation.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Result is one successful oracle response.
type Result struct {
	Text    string
	Usage   Usage
	Latency time.Duration
}

// InvokeOptions bound a single invocation.
type InvokeOptions struct {
	MaxTokens   int
	Temperature float64

	// Purpose labels the invocation for accounting ("consolidation",
	// "synthesis"). It never reaches the wire.
	Purpose string
}

// Oracle is the opaque inference service consumed by the pipeline.
type Oracle interface {
	// Invoke sends a prompt and eventually returns text or a terminal
	// failure; transient overload is retried internally with bounded
	// exponential backoff and never escapes as transient.
	Invoke(ctx context.Context, prompt string, opts InvokeOptions) (*Result, error)

	// Name identifies the backing implementation.
	Name() string
}
