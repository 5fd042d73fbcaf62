package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/relayai/relay-oss/pkg/domain"
)

// LLM is the default Selector: it hands the query and the enumerated choice
// descriptions to a reasoning collaborator and asks for the single best
// match plus a short justification.
//
// Answers that cannot be parsed or fall out of range trigger exactly one
// retry with a stricter reformulated request; a second unusable answer
// surfaces a SelectionError. There is no default branch.
type LLM struct {
	client ChatClient
	logger *slog.Logger

	// The collaborator is not assumed thread-safe; calls through one LLM
	// instance are serialized.
	mu sync.Mutex
}

// NewLLM creates the LLM-backed selector.
func NewLLM(client ChatClient, logger *slog.Logger) (*LLM, error) {
	if client == nil {
		return nil, fmt.Errorf("selector: chat client must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLM{client: client, logger: logger}, nil
}

// Select implements domain.Selector.
func (s *LLM) Select(ctx context.Context, query string, choices []string) (domain.SelectorResult, error) {
	if len(choices) == 0 {
		return domain.SelectorResult{}, &domain.SelectionError{Attempts: 0, Err: fmt.Errorf("no choices supplied")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var lastAnswer string
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		prompt := buildPrompt(query, choices, attempt > 1)

		answer, err := s.client.Complete(ctx, prompt)
		if err != nil {
			lastErr = err
			s.logger.Warn("selector request failed", "attempt", attempt, "error", err)
			continue
		}

		index, rationale, err := parseAnswer(answer, len(choices))
		if err != nil {
			lastAnswer, lastErr = answer, err
			s.logger.Warn("selector answer unusable, reformulating",
				"attempt", attempt,
				"answer", domain.Preview(answer),
				"error", err,
			)
			continue
		}

		s.logger.Debug("selector decision",
			"attempt", attempt,
			"choice_index", index,
			"rationale", rationale,
		)
		return domain.SelectorResult{Index: index, Rationale: rationale}, nil
	}

	return domain.SelectorResult{}, &domain.SelectionError{Attempts: 2, Answer: lastAnswer, Err: lastErr}
}

func buildPrompt(query string, choices []string, strict bool) string {
	var sb strings.Builder
	sb.WriteString("You are routing a user query to the single most suitable handler.\n\n")
	sb.WriteString("QUERY:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nCHOICES:\n")
	for i, choice := range choices {
		fmt.Fprintf(&sb, "(%d) %s\n", i+1, choice)
	}
	sb.WriteString("\nPick the one best choice for the query.\n")
	if strict {
		fmt.Fprintf(&sb, "Respond with ONLY a JSON object of the exact form {\"choice\": <integer between 1 and %d>, \"reason\": \"<one sentence>\"}. No other text.\n", len(choices))
	} else {
		sb.WriteString("Return JSON with 'choice' (the 1-based number of the chosen option) and 'reason' (a short justification).\n")
	}
	return sb.String()
}

// parseAnswer extracts the 1-based choice number and rationale from the
// collaborator's answer and converts it to a 0-based index. Lenient on
// shape: JSON first, then the first integer in the text.
func parseAnswer(answer string, n int) (int, string, error) {
	content := strings.TrimSpace(answer)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var parsed struct {
		Choice int    `json:"choice"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err == nil && parsed.Choice != 0 {
		return validateChoice(parsed.Choice, n, parsed.Reason)
	}

	if number, ok := firstInteger(content); ok {
		return validateChoice(number, n, content)
	}

	return 0, "", fmt.Errorf("no choice number found in answer")
}

func validateChoice(oneBased, n int, rationale string) (int, string, error) {
	if oneBased < 1 || oneBased > n {
		return 0, "", fmt.Errorf("choice %d out of range [1, %d]", oneBased, n)
	}
	return oneBased - 1, rationale, nil
}

func firstInteger(s string) (int, bool) {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			v, err := strconv.Atoi(s[start:i])
			return v, err == nil
		}
	}
	if start >= 0 {
		v, err := strconv.Atoi(s[start:])
		return v, err == nil
	}
	return 0, false
}
