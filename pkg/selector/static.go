package selector

import (
	"context"

	"github.com/relayai/relay-oss/pkg/domain"
)

// Static always answers with a fixed index. It deliberately performs no
// range validation of its own: tests use it to exercise the out-of-range
// handling of the layers above.
type Static struct {
	Index     int
	Rationale string
}

// NewStatic creates a selector that always picks the given index.
func NewStatic(index int) *Static {
	return &Static{Index: index, Rationale: "static selection"}
}

// Select implements domain.Selector.
func (s *Static) Select(context.Context, string, []string) (domain.SelectorResult, error) {
	return domain.SelectorResult{Index: s.Index, Rationale: s.Rationale}, nil
}
