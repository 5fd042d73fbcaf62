package selector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/relayai/relay-oss/pkg/domain"
)

// Keyword is a deterministic Selector scoring token overlap between the
// query and each choice description. It needs no external collaborator,
// which makes it the default when no reasoning endpoint is configured, and
// it produces a full ranking for observability.
type Keyword struct{}

// NewKeyword creates the keyword selector.
func NewKeyword() *Keyword { return &Keyword{} }

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "to": {}, "is": {}, "this": {},
	"that": {}, "and": {}, "or": {}, "for": {}, "in": {}, "on": {}, "what": {},
	"did": {}, "do": {}, "his": {}, "her": {}, "at": {},
}

// Select implements domain.Selector. Ties break toward the lower index so
// results are stable for identical inputs.
func (k *Keyword) Select(_ context.Context, query string, choices []string) (domain.SelectorResult, error) {
	if len(choices) == 0 {
		return domain.SelectorResult{}, &domain.SelectionError{Attempts: 0, Err: fmt.Errorf("no choices supplied")}
	}

	queryTokens := tokenize(query)
	rankings := make([]domain.Ranking, len(choices))
	for i, choice := range choices {
		score := 0.0
		for token := range tokenize(choice) {
			if _, ok := queryTokens[token]; ok {
				score++
			}
		}
		rankings[i] = domain.Ranking{Index: i, Score: score}
	}

	best := 0
	for i, r := range rankings {
		if r.Score > rankings[best].Score {
			best = i
		}
	}

	ranked := make([]domain.Ranking, len(rankings))
	copy(ranked, rankings)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	return domain.SelectorResult{
		Index:     best,
		Rankings:  ranked,
		Rationale: fmt.Sprintf("keyword overlap score %.0f for choice %d", rankings[best].Score, best),
	}, nil
}

func tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if _, skip := stopwords[field]; skip {
			continue
		}
		tokens[field] = struct{}{}
	}
	return tokens
}
