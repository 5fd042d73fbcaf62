package router_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/relayai/relay-oss/pkg/domain"
	"github.com/relayai/relay-oss/pkg/engine"
	"github.com/relayai/relay-oss/pkg/engine/modules"
	"github.com/relayai/relay-oss/pkg/router"
	"github.com/relayai/relay-oss/pkg/selector"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingTarget is a route target that counts invocations and answers with
// its own id.
type countingTarget struct {
	id    string
	calls atomic.Int32
}

func (c *countingTarget) ID() string { return c.id }

func (c *countingTarget) InputSpecs() []domain.InputSpec {
	return []domain.InputSpec{domain.RequiredInput("query")}
}

func (c *countingTarget) OutputNames() []string { return []string{domain.DefaultOutput} }

func (c *countingTarget) Run(context.Context, map[string]any) (map[string]any, error) {
	c.calls.Add(1)
	return domain.SingleOutput("answered by " + c.id), nil
}

func makeRoutes(n int) ([]router.Route, []*countingTarget) {
	targets := make([]*countingTarget, n)
	routes := make([]router.Route, n)
	for i := range targets {
		targets[i] = &countingTarget{id: fmt.Sprintf("target-%d", i)}
		routes[i] = router.Route{
			Choice: domain.Choice{Description: fmt.Sprintf("handles topic %d", i)},
			Target: targets[i],
		}
	}
	return routes, targets
}

func TestRouter_InvokesExactlyTheChosenRoute(t *testing.T) {
	routes, targets := makeRoutes(2)
	r, err := router.New("root", &selector.Static{Index: 1, Rationale: "test"}, routes,
		router.WithLogger(discardLogger()))
	require.NoError(t, err)

	out, err := r.Run(context.Background(), map[string]any{"query": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "answered by target-1", out[domain.DefaultOutput])
	assert.EqualValues(t, 0, targets[0].calls.Load())
	assert.EqualValues(t, 1, targets[1].calls.Load())
}

func TestRouter_FailsClosedOnOutOfRangeSelection(t *testing.T) {
	routes, targets := makeRoutes(3)
	r, err := router.New("root", &selector.Static{Index: 7}, routes,
		router.WithLogger(discardLogger()))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), map[string]any{"query": "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSelection)
	for i, target := range targets {
		assert.EqualValues(t, 0, target.calls.Load(), "route %d must not run after a selection failure", i)
	}
}

func TestRouter_WrapsForeignSelectorErrors(t *testing.T) {
	routes, targets := makeRoutes(2)
	boom := errors.New("endpoint unreachable")
	r, err := router.New("root", failingSelector{err: boom}, routes,
		router.WithLogger(discardLogger()))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), map[string]any{"query": "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSelection)
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 0, targets[0].calls.Load())
	assert.EqualValues(t, 0, targets[1].calls.Load())
}

type failingSelector struct{ err error }

func (f failingSelector) Select(context.Context, string, []string) (domain.SelectorResult, error) {
	return domain.SelectorResult{}, f.err
}

func TestRouter_RejectsEmptyRouteSet(t *testing.T) {
	_, err := router.New("root", selector.NewKeyword(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyRouter)
}

func TestRouter_RequiresQueryInput(t *testing.T) {
	routes, targets := makeRoutes(2)
	r, err := router.New("root", &selector.Static{Index: 0}, routes,
		router.WithLogger(discardLogger()))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingInput)
	assert.EqualValues(t, 0, targets[0].calls.Load())
	assert.EqualValues(t, 0, targets[1].calls.Load())
}

func TestRouter_DecisionPrecedesTargetInTrace(t *testing.T) {
	sink := engine.NewMemorySink()
	sub := engine.New("echo-pipeline", engine.WithLogger(discardLogger()), engine.WithTraceSink(sink))
	echo, err := modules.NewFunc("echo",
		[]domain.InputSpec{domain.RequiredInput("query")},
		nil,
		func(_ context.Context, inputs map[string]any) (map[string]any, error) {
			return domain.SingleOutput(inputs["query"]), nil
		},
	)
	require.NoError(t, err)
	require.NoError(t, sub.AddModule(echo))

	routes := []router.Route{{
		Choice: domain.Choice{Description: "echoes the query back"},
		Target: sub,
	}}
	r, err := router.New("root", &selector.Static{Index: 0, Rationale: "only route"}, routes,
		router.WithLogger(discardLogger()), router.WithTraceSink(sink))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), map[string]any{"query": "ping"})
	require.NoError(t, err)

	records := sink.Records()
	require.NotEmpty(t, records)
	require.Equal(t, "root", records[0].ModuleID, "routing decision must be traced before the chosen route runs")
	require.NotNil(t, records[0].ChoiceIndex)
	assert.Equal(t, 0, *records[0].ChoiceIndex)
	assert.Equal(t, "only route", records[0].Rationale)

	var sawEcho bool
	for _, rec := range records[1:] {
		if rec.ModuleID == "echo" {
			sawEcho = true
		}
	}
	assert.True(t, sawEcho, "chosen sub-pipeline records must follow the decision record")
}

// Exactly-one-of-N: whatever index the selector produces, either exactly one
// route runs (valid index) or none do (selection failure). Never more.
func TestRouter_ExactlyOneOfN(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "routes")
		index := rapid.IntRange(-2, 10).Draw(t, "index")

		routes, targets := makeRoutes(n)
		r, err := router.New("root", &selector.Static{Index: index}, routes,
			router.WithLogger(discardLogger()))
		if err != nil {
			t.Fatalf("new router: %v", err)
		}

		_, runErr := r.Run(context.Background(), map[string]any{"query": "q"})

		total := int32(0)
		for _, target := range targets {
			total += target.calls.Load()
		}
		if index >= 0 && index < n {
			if runErr != nil {
				t.Fatalf("valid index %d of %d failed: %v", index, n, runErr)
			}
			if total != 1 || targets[index].calls.Load() != 1 {
				t.Fatalf("expected exactly route %d to run once, total %d", index, total)
			}
		} else {
			if runErr == nil {
				t.Fatalf("out-of-range index %d of %d must fail", index, n)
			}
			if total != 0 {
				t.Fatalf("selection failure must invoke zero routes, got %d", total)
			}
		}
	})
}

// Routing two intents to two canned answers through the full pipeline stack:
// the router's answer is the chosen route's answer, unchanged.
func TestRouter_RoutesQueriesByDescription(t *testing.T) {
	newLeaf := func(id, answer string) *engine.Pipeline {
		p := engine.New(id, engine.WithLogger(discardLogger()))
		require.NoError(t, p.AddModule(modules.NewStatic(id+"-answer", answer)))
		return p
	}

	routes := []router.Route{
		{
			Choice: domain.Choice{Description: "answers questions about specific activities and events"},
			Target: newLeaf("activities", "the activities answer"),
		},
		{
			Choice: domain.Choice{Description: "produces a summary of the document"},
			Target: newLeaf("summaries", "the summary answer"),
		},
	}
	r, err := router.New("root", selector.NewKeyword(), routes, router.WithLogger(discardLogger()))
	require.NoError(t, err)

	top := engine.New("top", engine.WithLogger(discardLogger()))
	require.NoError(t, top.AddModule(r))

	got, err := top.RunQuery(context.Background(), "What did the author do during his time at the organization?")
	require.NoError(t, err)
	assert.Equal(t, "the activities answer", got)

	got, err = top.RunQuery(context.Background(), "What is a summary of this document?")
	require.NoError(t, err)
	assert.Equal(t, "the summary answer", got)
}
