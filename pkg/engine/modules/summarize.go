package modules

import (
	"context"
	"fmt"

	"github.com/relayai/relay-oss/pkg/domain"
)

const defaultSummarizeInstruction = "Summarize the following text concisely, preserving the key facts."

// Summarize condenses its "text" input through the text-generation
// collaborator. A completion specialization: the instruction is fixed per
// module instance instead of flowing in as a rendered prompt.
type Summarize struct {
	id          string
	client      TextCompleter
	instruction string
}

// NewSummarize creates a summarization module. An empty instruction uses the
// default.
func NewSummarize(id string, client TextCompleter, instruction string) (*Summarize, error) {
	if client == nil {
		return nil, fmt.Errorf("module %q: completer must not be nil", id)
	}
	if instruction == "" {
		instruction = defaultSummarizeInstruction
	}
	return &Summarize{id: id, client: client, instruction: instruction}, nil
}

// ID implements domain.Module.
func (s *Summarize) ID() string { return s.id }

// InputSpecs implements domain.Module.
func (s *Summarize) InputSpecs() []domain.InputSpec {
	return []domain.InputSpec{domain.RequiredInput("text")}
}

// OutputNames implements domain.Module.
func (s *Summarize) OutputNames() []string { return []string{domain.DefaultOutput} }

// Run implements domain.Module.
func (s *Summarize) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	prompt := fmt.Sprintf("%s\n\nTEXT:\n%v", s.instruction, inputs["text"])
	summary, err := s.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("summarize request: %w", err)
	}
	return domain.SingleOutput(summary), nil
}
