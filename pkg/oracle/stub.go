package oracle

import (
	"context"
	"time"
)

// Stub is a scripted Oracle for tests. Each Invoke consumes the next queued
// response; Err, when set, fails every call.
type Stub struct {
	Responses []string
	Err       error

	// Prompts records every prompt received, in order.
	Prompts []string

	next int
}

// Name identifies the stub.
func (s *Stub) Name() string { return "stub" }

// Invoke returns the next scripted response or the configured error.
func (s *Stub) Invoke(_ context.Context, prompt string, _ InvokeOptions) (*Result, error) {
	s.Prompts = append(s.Prompts, prompt)
	if s.Err != nil {
		return nil, s.Err
	}
	if s.next >= len(s.Responses) {
		return nil, &Failure{Kind: FailureTerminal, Err: errNoScriptedResponse}
	}
	text := s.Responses[s.next]
	s.next++
	return &Result{
		Text:    text,
		Usage:   Usage{InputTokens: len(prompt) / 4, OutputTokens: len(text) / 4, TotalTokens: (len(prompt) + len(text)) / 4},
		Latency: time.Millisecond,
	}, nil
}

var errNoScriptedResponse = &scriptError{"stub oracle exhausted its scripted responses"}

type scriptError struct{ msg string }

func (e *scriptError) Error() string { return e.msg }
