package domain

import (
	"errors"
	"fmt"
)

// Common domain errors. Structured wrappers below attach context while
// keeping errors.Is matching against these sentinels.
var (
	ErrMissingInput    = errors.New("missing required input")
	ErrCyclicGraph     = errors.New("pipeline graph contains a cycle")
	ErrModuleExecution = errors.New("module execution failed")
	ErrSelection       = errors.New("selector could not produce a valid choice")
	ErrEmptyRouter     = errors.New("router has no registered choices")
	ErrAmbiguousInput  = errors.New("input targeted by more than one link")
	ErrUnknownModule   = errors.New("module not found")
	ErrUnknownPort     = errors.New("module does not declare the named port")
)

// MissingInputError reports a required input that neither a link, a root
// input, nor a declared default could satisfy.
type MissingInputError struct {
	ModuleID string
	Input    string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("module %q: missing required input %q", e.ModuleID, e.Input)
}

func (e *MissingInputError) Unwrap() error { return ErrMissingInput }

// CyclicGraphError reports a dependency cycle detected at build time,
// before any execution.
type CyclicGraphError struct {
	PipelineID string
	From       string
	To         string
}

func (e *CyclicGraphError) Error() string {
	if e.From != "" {
		return fmt.Sprintf("pipeline %q: link %s -> %s creates a cycle", e.PipelineID, e.From, e.To)
	}
	return fmt.Sprintf("pipeline %q: graph contains a cycle", e.PipelineID)
}

func (e *CyclicGraphError) Unwrap() error { return ErrCyclicGraph }

// AmbiguousInputError reports a destination input targeted by more than one
// link. Last-link-wins would hide wiring mistakes, so this is rejected at
// build time.
type AmbiguousInputError struct {
	ModuleID string
	Input    string
}

func (e *AmbiguousInputError) Error() string {
	return fmt.Sprintf("module %q: input %q already receives a link", e.ModuleID, e.Input)
}

func (e *AmbiguousInputError) Unwrap() error { return ErrAmbiguousInput }

// ModuleExecutionError wraps a collaborator failure with the identity of the
// module that surfaced it. The executor never inspects or retries these;
// they propagate to the caller with the cause chain intact.
type ModuleExecutionError struct {
	ModuleID string
	Err      error
}

func (e *ModuleExecutionError) Error() string {
	return fmt.Sprintf("module %q: %v", e.ModuleID, e.Err)
}

func (e *ModuleExecutionError) Unwrap() error { return e.Err }

// Is lets errors.Is match both the sentinel and the wrapped cause.
func (e *ModuleExecutionError) Is(target error) bool { return target == ErrModuleExecution }

// SelectionError reports that the selector exhausted its single bounded
// retry without producing an index within range. The enclosing router
// invokes zero sub-pipelines when it sees this error.
type SelectionError struct {
	Attempts int
	Answer   string
	Err      error
}

func (e *SelectionError) Error() string {
	if e.Answer != "" {
		return fmt.Sprintf("selection failed after %d attempt(s): unusable answer %q", e.Attempts, e.Answer)
	}
	return fmt.Sprintf("selection failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *SelectionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrSelection
}

// Is lets errors.Is match the ErrSelection sentinel regardless of cause.
func (e *SelectionError) Is(target error) bool { return target == ErrSelection }
