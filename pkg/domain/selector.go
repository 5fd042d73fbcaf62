package domain

import "context"

// Choice is a human-readable description of what a candidate sub-pipeline is
// good for. Immutable once registered; paired 1:1 by index with a sub-pipeline.
type Choice struct {
	Description string
}

// Ranking is one entry of an optional ranked selector answer.
type Ranking struct {
	Index int
	Score float64
}

// SelectorResult is the outcome of a selection decision. Index is always
// strictly within [0, len(choices)). Rankings and Rationale are optional and
// exist for observability only.
type SelectorResult struct {
	Index     int
	Rankings  []Ranking
	Rationale string
}

// Selector maps a (query, ordered choice descriptions) pair to a chosen
// index. Implementations are polymorphic: the default delegates to a
// natural-language reasoning collaborator, but deterministic rule-based or
// similarity-based selectors satisfy the same contract.
type Selector interface {
	Select(ctx context.Context, query string, choices []string) (SelectorResult, error)
}
