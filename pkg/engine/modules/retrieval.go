package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/relayai/relay-oss/pkg/domain"
)

// Retrieval fetches documents relevant to the "query" input and joins them
// into a single context block on its output.
type Retrieval struct {
	id        string
	retriever Retriever
	separator string
}

// NewRetrieval creates a retrieval module bound to the given collaborator.
func NewRetrieval(id string, retriever Retriever) (*Retrieval, error) {
	if retriever == nil {
		return nil, fmt.Errorf("module %q: retriever must not be nil", id)
	}
	return &Retrieval{id: id, retriever: retriever, separator: "\n\n"}, nil
}

// ID implements domain.Module.
func (r *Retrieval) ID() string { return r.id }

// InputSpecs implements domain.Module.
func (r *Retrieval) InputSpecs() []domain.InputSpec {
	return []domain.InputSpec{domain.RequiredInput("query")}
}

// OutputNames implements domain.Module.
func (r *Retrieval) OutputNames() []string { return []string{domain.DefaultOutput} }

// Run implements domain.Module.
func (r *Retrieval) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	query := fmt.Sprint(inputs["query"])
	docs, err := r.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval request: %w", err)
	}
	return domain.SingleOutput(strings.Join(docs, r.separator)), nil
}
