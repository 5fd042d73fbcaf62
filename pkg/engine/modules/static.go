package modules

import (
	"context"

	"github.com/relayai/relay-oss/pkg/domain"
)

// Static emits a fixed value. Useful as a stub terminal in tests and as a
// canned-response node in demo pipelines.
type Static struct {
	id    string
	value any
}

// NewStatic creates a module that always produces the given value.
func NewStatic(id string, value any) *Static {
	return &Static{id: id, value: value}
}

// ID implements domain.Module.
func (s *Static) ID() string { return s.id }

// InputSpecs implements domain.Module. Static declares an optional query
// input so it can terminate a query-shaped sub-pipeline on its own.
func (s *Static) InputSpecs() []domain.InputSpec {
	return []domain.InputSpec{{Name: "query"}}
}

// OutputNames implements domain.Module.
func (s *Static) OutputNames() []string { return []string{domain.DefaultOutput} }

// Run implements domain.Module.
func (s *Static) Run(context.Context, map[string]any) (map[string]any, error) {
	return domain.SingleOutput(s.value), nil
}
