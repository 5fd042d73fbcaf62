package domain

import "context"

// DefaultOutput is the conventional output name used by single-output modules.
const DefaultOutput = "output"

// InputSpec declares one named input of a module. Required inputs without a
// default must be satisfied by a link or by a forwarded root input; the
// executor fails the run with a MissingInputError otherwise.
type InputSpec struct {
	Name     string
	Required bool
	Default  any
}

// Module is the atomic unit of computation: it accepts a mapping of named
// inputs and produces a mapping of named outputs. Implementations must be
// safe for repeated invocation and must not rely on executor-managed state
// beyond the inputs they are handed.
//
// A Pipeline implements Module itself, so composite graphs nest as ordinary
// nodes without special-casing in the executor.
type Module interface {
	// ID returns the stable identity of the module within its pipeline.
	ID() string

	// InputSpecs declares the module's named inputs.
	InputSpecs() []InputSpec

	// OutputNames declares the module's named outputs.
	OutputNames() []string

	// Run executes the module with the resolved inputs. Every declared
	// output name must be present in the returned map on success.
	Run(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

// SingleOutput wraps a single value under the conventional output name.
func SingleOutput(v any) map[string]any {
	return map[string]any{DefaultOutput: v}
}

// RequiredInput builds a required InputSpec without a default.
func RequiredInput(name string) InputSpec {
	return InputSpec{Name: name, Required: true}
}

// OptionalInput builds an optional InputSpec with a default value.
func OptionalInput(name string, def any) InputSpec {
	return InputSpec{Name: name, Default: def}
}
