package modules

import (
	"context"
	"fmt"

	"github.com/relayai/relay-oss/pkg/domain"
)

// Func adapts an arbitrary function to the module contract. It is the
// escape hatch for collaborators that need no dedicated adapter, and the
// workhorse of tests.
type Func struct {
	id      string
	inputs  []domain.InputSpec
	outputs []string
	fn      func(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

// NewFunc creates a function-backed module with explicit input and output
// declarations.
func NewFunc(id string, inputs []domain.InputSpec, outputs []string, fn func(ctx context.Context, inputs map[string]any) (map[string]any, error)) (*Func, error) {
	if fn == nil {
		return nil, fmt.Errorf("module %q: fn must not be nil", id)
	}
	if len(outputs) == 0 {
		outputs = []string{domain.DefaultOutput}
	}
	return &Func{id: id, inputs: inputs, outputs: outputs, fn: fn}, nil
}

// ID implements domain.Module.
func (f *Func) ID() string { return f.id }

// InputSpecs implements domain.Module.
func (f *Func) InputSpecs() []domain.InputSpec { return f.inputs }

// OutputNames implements domain.Module.
func (f *Func) OutputNames() []string { return f.outputs }

// Run implements domain.Module.
func (f *Func) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	return f.fn(ctx, inputs)
}
