// Package router implements runtime dispatch among mutually-exclusive
// candidate sub-pipelines: a Selector picks one route by its
// natural-language description and the router delegates the whole
// invocation to it.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/relayai/relay-oss/pkg/domain"
	"github.com/relayai/relay-oss/pkg/telemetry"
)

// Route pairs a choice description with the module it selects. Targets are
// held behind the Module interface, so any sub-pipeline shape nests here.
type Route struct {
	Choice domain.Choice
	Target domain.Module
}

// Router is a module that asks its Selector which of N registered routes
// fits the query, then invokes exactly that one and returns its output
// verbatim. Unchosen routes are never invoked: cost is proportional to one
// branch regardless of N, and a selection failure invokes zero of them.
type Router struct {
	id       string
	routes   []Route
	selector domain.Selector
	logger   *slog.Logger
	sink     domain.TraceSink
}

// Option configures a Router at construction time.
type Option func(*Router)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// WithTraceSink directs routing-decision trace records to the given sink.
func WithTraceSink(sink domain.TraceSink) Option {
	return func(r *Router) { r.sink = sink }
}

// New creates a router. At least one route and a selector are mandatory;
// misconfiguration fails here, not on the first query.
func New(id string, sel domain.Selector, routes []Route, opts ...Option) (*Router, error) {
	if len(routes) == 0 {
		return nil, fmt.Errorf("router %q: %w", id, domain.ErrEmptyRouter)
	}
	if sel == nil {
		return nil, fmt.Errorf("router %q: selector must not be nil", id)
	}
	for i, route := range routes {
		if route.Target == nil {
			return nil, fmt.Errorf("router %q: route %d has no target", id, i)
		}
		if route.Choice.Description == "" {
			return nil, fmt.Errorf("router %q: route %d has an empty choice description", id, i)
		}
	}
	r := &Router{
		id:       id,
		routes:   routes,
		selector: sel,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ID implements domain.Module.
func (r *Router) ID() string { return r.id }

// InputSpecs implements domain.Module. The router forwards root inputs
// unchanged, so its declared inputs are the union of its targets'; an input
// is required at the router only if every target requires it.
func (r *Router) InputSpecs() []domain.InputSpec {
	union := make(map[string]int)
	requiredCount := make(map[string]int)
	var specs []domain.InputSpec
	for _, route := range r.routes {
		for _, spec := range route.Target.InputSpecs() {
			if _, seen := union[spec.Name]; !seen {
				union[spec.Name] = len(specs)
				specs = append(specs, domain.InputSpec{Name: spec.Name, Default: spec.Default})
			}
			if spec.Required {
				requiredCount[spec.Name]++
			}
		}
	}
	for i := range specs {
		if requiredCount[specs[i].Name] == len(r.routes) {
			specs[i].Required = true
			specs[i].Default = nil
		}
	}
	return specs
}

// OutputNames implements domain.Module. Routes are mutually exclusive
// alternatives for the same job, so the first target's declared outputs
// stand for all of them.
func (r *Router) OutputNames() []string {
	return r.routes[0].Target.OutputNames()
}

// Run implements domain.Module: select, then delegate to exactly one route.
func (r *Router) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	if len(r.routes) == 0 {
		return nil, fmt.Errorf("router %q: %w", r.id, domain.ErrEmptyRouter)
	}

	tracer := otel.Tracer("relay.pipeline")
	ctx, span := tracer.Start(ctx, "router.dispatch")
	span.SetAttributes(
		attribute.String("router.id", r.id),
		attribute.Int("router.routes", len(r.routes)),
	)
	defer span.End()

	queryValue, ok := inputs["query"]
	if !ok {
		err := &domain.MissingInputError{ModuleID: r.id, Input: "query"}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	query := fmt.Sprint(queryValue)

	descriptions := make([]string, len(r.routes))
	for i, route := range r.routes {
		descriptions[i] = route.Choice.Description
	}

	result, err := r.selector.Select(ctx, query, descriptions)
	if err == nil && (result.Index < 0 || result.Index >= len(r.routes)) {
		err = &domain.SelectionError{
			Attempts: 1,
			Err:      fmt.Errorf("selector returned index %d, want [0, %d)", result.Index, len(r.routes)),
		}
	}
	if err != nil {
		if !errors.Is(err, domain.ErrSelection) {
			err = &domain.SelectionError{Attempts: 1, Err: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		telemetry.RecordDecisionMetrics(ctx, telemetry.DecisionMetrics{RouterID: r.id, Failed: true})
		r.logger.Error("routing decision failed", "router_id", r.id, "error", err)
		// Fail closed: no sub-pipeline runs on a selection failure.
		return nil, err
	}

	chosen := r.routes[result.Index]
	span.SetAttributes(
		attribute.Int("router.choice_index", result.Index),
		attribute.String("router.choice", chosen.Choice.Description),
	)
	telemetry.RecordDecisionMetrics(ctx, telemetry.DecisionMetrics{RouterID: r.id, ChoiceIndex: result.Index})
	r.logger.Info("routing decision",
		"router_id", r.id,
		"choice_index", result.Index,
		"choice", chosen.Choice.Description,
		"rationale", result.Rationale,
	)

	// The router's own trace entry precedes the chosen sub-pipeline's.
	if r.sink != nil {
		index := result.Index
		r.sink.Emit(domain.TraceRecord{
			PipelineID:  r.id,
			ModuleID:    r.id,
			Inputs:      map[string]string{"query": domain.Preview(query)},
			ChoiceIndex: &index,
			Rationale:   result.Rationale,
		})
	}

	outputs, err := chosen.Target.Run(ctx, inputs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return outputs, nil
}
