package modules

import (
	"context"
	"fmt"

	"github.com/relayai/relay-oss/pkg/domain"
)

// Completion invokes a text-generation collaborator with the prompt it
// receives on its "prompt" input.
type Completion struct {
	id     string
	client TextCompleter
}

// NewCompletion creates a completion module bound to the given collaborator.
func NewCompletion(id string, client TextCompleter) (*Completion, error) {
	if client == nil {
		return nil, fmt.Errorf("module %q: completer must not be nil", id)
	}
	return &Completion{id: id, client: client}, nil
}

// ID implements domain.Module.
func (c *Completion) ID() string { return c.id }

// InputSpecs implements domain.Module.
func (c *Completion) InputSpecs() []domain.InputSpec {
	return []domain.InputSpec{domain.RequiredInput("prompt")}
}

// OutputNames implements domain.Module.
func (c *Completion) OutputNames() []string { return []string{domain.DefaultOutput} }

// Run implements domain.Module.
func (c *Completion) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	prompt := fmt.Sprint(inputs["prompt"])
	answer, err := c.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	return domain.SingleOutput(answer), nil
}
