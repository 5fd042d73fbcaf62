package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dominikbraun/graph"

	"github.com/relayai/relay-oss/pkg/domain"
)

// Link is a directed data-flow edge: the named output of one module feeds
// the named input of another.
type Link struct {
	FromModule string
	FromOutput string
	ToModule   string
	ToInput    string
}

// Pipeline owns a set of modules and the links between them, resolves
// execution order at build time, and drives data through the graph at run
// time. A built Pipeline satisfies domain.Module, so pipelines nest.
type Pipeline struct {
	id      string
	logger  *slog.Logger
	sink    domain.TraceSink
	verbose bool

	modules []domain.Module
	index   map[string]int
	links   []Link
	inbound map[string]map[string]Link
	outdeg  map[string]int
	dag     graph.Graph[string, string]

	terminal   string
	built      bool
	waves      [][]int
	rootInputs []domain.InputSpec
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithLogger sets the structured logger used by the executor.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithTraceSink directs per-module trace records to the given sink.
func WithTraceSink(sink domain.TraceSink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

// WithVerbose emits trace records to the pipeline logger when no explicit
// sink is configured.
func WithVerbose() Option {
	return func(p *Pipeline) { p.verbose = true }
}

// New creates an empty pipeline with the given identity.
func New(id string, opts ...Option) *Pipeline {
	p := &Pipeline{
		id:      id,
		logger:  slog.Default(),
		index:   make(map[string]int),
		inbound: make(map[string]map[string]Link),
		outdeg:  make(map[string]int),
		dag:     graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles()),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sink == nil && p.verbose {
		p.sink = NewSlogSink(p.logger)
	}
	return p
}

// AddModule registers a module with the pipeline. Module ids must be unique
// within a pipeline.
func (p *Pipeline) AddModule(m domain.Module) error {
	if m == nil {
		return fmt.Errorf("pipeline %q: module must not be nil", p.id)
	}
	id := m.ID()
	if id == "" {
		return fmt.Errorf("pipeline %q: module id must not be empty", p.id)
	}
	if _, exists := p.index[id]; exists {
		return fmt.Errorf("pipeline %q: duplicate module id %q", p.id, id)
	}
	if err := p.dag.AddVertex(id); err != nil {
		return fmt.Errorf("pipeline %q: add module %q: %w", p.id, id, err)
	}
	p.index[id] = len(p.modules)
	p.modules = append(p.modules, m)
	p.built = false
	return nil
}

// Connect declares that the named output of one module feeds the named
// input of another. Both port names are validated against the modules'
// declared schemas, a second link into the same input is rejected as
// ambiguous, and a link that would close a cycle fails immediately with a
// CyclicGraphError, all before the first run.
func (p *Pipeline) Connect(fromModule, fromOutput, toModule, toInput string) error {
	from, ok := p.module(fromModule)
	if !ok {
		return fmt.Errorf("pipeline %q: link source %q: %w", p.id, fromModule, domain.ErrUnknownModule)
	}
	to, ok := p.module(toModule)
	if !ok {
		return fmt.Errorf("pipeline %q: link destination %q: %w", p.id, toModule, domain.ErrUnknownModule)
	}
	if !hasOutput(from, fromOutput) {
		return fmt.Errorf("pipeline %q: module %q has no output %q: %w", p.id, fromModule, fromOutput, domain.ErrUnknownPort)
	}
	if !hasInput(to, toInput) {
		return fmt.Errorf("pipeline %q: module %q has no input %q: %w", p.id, toModule, toInput, domain.ErrUnknownPort)
	}
	if _, taken := p.inbound[toModule][toInput]; taken {
		return &domain.AmbiguousInputError{ModuleID: toModule, Input: toInput}
	}

	if err := p.dag.AddEdge(fromModule, toModule); err != nil {
		if errors.Is(err, graph.ErrEdgeCreatesCycle) {
			return &domain.CyclicGraphError{PipelineID: p.id, From: fromModule, To: toModule}
		}
		// A second link between the same module pair is legal as long as it
		// targets a different input.
		if !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return fmt.Errorf("pipeline %q: link %s -> %s: %w", p.id, fromModule, toModule, err)
		}
	}

	link := Link{FromModule: fromModule, FromOutput: fromOutput, ToModule: toModule, ToInput: toInput}
	if p.inbound[toModule] == nil {
		p.inbound[toModule] = make(map[string]Link)
	}
	p.inbound[toModule][toInput] = link
	p.links = append(p.links, link)
	p.outdeg[fromModule]++
	p.built = false
	return nil
}

// SetOutput designates the terminal module whose output becomes the
// pipeline's own output. Pipelines with a single natural sink (exactly one
// module without outgoing links) do not need this.
func (p *Pipeline) SetOutput(moduleID string) error {
	if _, ok := p.module(moduleID); !ok {
		return fmt.Errorf("pipeline %q: output module %q: %w", p.id, moduleID, domain.ErrUnknownModule)
	}
	p.terminal = moduleID
	p.built = false
	return nil
}

// Build validates the graph and freezes the execution plan: terminal module
// resolution, topological ordering, wave computation, and root input
// discovery. Build is idempotent and runs implicitly on first use.
func (p *Pipeline) Build() error {
	if p.built {
		return nil
	}
	if len(p.modules) == 0 {
		return fmt.Errorf("pipeline %q has no modules", p.id)
	}

	// Connect refuses cycle-closing edges, so this only trips if the graph
	// was mutated through the embedded DAG. Checked anyway: topological
	// sortability is the invariant the executor depends on.
	if _, err := graph.TopologicalSort(p.dag); err != nil {
		return &domain.CyclicGraphError{PipelineID: p.id}
	}

	if err := p.resolveTerminal(); err != nil {
		return err
	}

	p.waves = p.computeWaves()
	p.rootInputs = p.computeRootInputs()
	p.built = true

	p.logger.Debug("pipeline built",
		"pipeline_id", p.id,
		"modules", len(p.modules),
		"links", len(p.links),
		"waves", len(p.waves),
		"terminal", p.terminal,
	)
	return nil
}

func (p *Pipeline) resolveTerminal() error {
	if p.terminal != "" {
		return nil
	}
	var sinks []string
	for _, m := range p.modules {
		if p.outdeg[m.ID()] == 0 {
			sinks = append(sinks, m.ID())
		}
	}
	if len(sinks) != 1 {
		return fmt.Errorf("pipeline %q has %d sink modules %v; designate one with SetOutput", p.id, len(sinks), sinks)
	}
	p.terminal = sinks[0]
	return nil
}

// computeWaves groups modules into Kahn levels: every module in a wave has
// all producers in earlier waves, so modules within a wave are mutually
// independent and may run concurrently. Declaration order is preserved
// within each wave to keep trace ordering deterministic.
func (p *Pipeline) computeWaves() [][]int {
	remaining := make([]int, len(p.modules))
	consumers := make(map[string][]int)
	for i, m := range p.modules {
		producers := make(map[string]struct{})
		for _, link := range p.inbound[m.ID()] {
			producers[link.FromModule] = struct{}{}
		}
		remaining[i] = len(producers)
		for producer := range producers {
			consumers[producer] = append(consumers[producer], i)
		}
	}

	scheduled := make([]bool, len(p.modules))
	var waves [][]int
	for placed := 0; placed < len(p.modules); {
		var wave []int
		for i := range p.modules {
			if !scheduled[i] && remaining[i] == 0 {
				wave = append(wave, i)
			}
		}
		for _, i := range wave {
			scheduled[i] = true
			for _, consumer := range consumers[p.modules[i].ID()] {
				remaining[consumer]--
			}
		}
		waves = append(waves, wave)
		placed += len(wave)
	}
	return waves
}

// computeRootInputs collects inputs not satisfied by any link; these are
// forwarded from the external call's root inputs. An input is required at
// the root only if some module requires it and declares no default.
func (p *Pipeline) computeRootInputs() []domain.InputSpec {
	var specs []domain.InputSpec
	seen := make(map[string]int)
	for _, m := range p.modules {
		for _, spec := range m.InputSpecs() {
			if _, linked := p.inbound[m.ID()][spec.Name]; linked {
				continue
			}
			if idx, ok := seen[spec.Name]; ok {
				if spec.Required && spec.Default == nil {
					specs[idx].Required = true
					specs[idx].Default = nil
				}
				continue
			}
			seen[spec.Name] = len(specs)
			specs = append(specs, domain.InputSpec{
				Name:     spec.Name,
				Required: spec.Required && spec.Default == nil,
				Default:  spec.Default,
			})
		}
	}
	return specs
}

// ID implements domain.Module.
func (p *Pipeline) ID() string { return p.id }

// InputSpecs implements domain.Module: the pipeline's inputs are the root
// inputs its members cannot satisfy through links. Returns nil for a
// pipeline that fails to build; Build reports the underlying error.
func (p *Pipeline) InputSpecs() []domain.InputSpec {
	if err := p.Build(); err != nil {
		return nil
	}
	return p.rootInputs
}

// OutputNames implements domain.Module: the terminal module's outputs are
// the pipeline's own outputs.
func (p *Pipeline) OutputNames() []string {
	if err := p.Build(); err != nil {
		return nil
	}
	return p.modules[p.index[p.terminal]].OutputNames()
}

// Run implements domain.Module. It validates root inputs, executes all
// modules in dependency order, and returns the terminal module's output.
func (p *Pipeline) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	if err := p.Build(); err != nil {
		return nil, err
	}
	return p.execute(ctx, inputs)
}

// RunQuery is the uniform entry point for query-shaped pipelines: the query
// string becomes the "query" root input and the terminal module's sole
// output value is returned unchanged.
func (p *Pipeline) RunQuery(ctx context.Context, query string) (any, error) {
	outputs, err := p.Run(ctx, map[string]any{"query": query})
	if err != nil {
		return nil, err
	}
	if v, ok := outputs[domain.DefaultOutput]; ok {
		return v, nil
	}
	if len(outputs) == 1 {
		for _, v := range outputs {
			return v, nil
		}
	}
	return outputs, nil
}

// Result carries the outcome of an asynchronous run.
type Result struct {
	Outputs map[string]any
	Err     error
}

// RunAsync starts the pipeline without blocking and returns a channel that
// yields exactly one Result. The channel is buffered, so the result is
// delivered even if the caller reads late.
func (p *Pipeline) RunAsync(ctx context.Context, inputs map[string]any) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		outputs, err := p.Run(ctx, inputs)
		out <- Result{Outputs: outputs, Err: err}
	}()
	return out
}

func (p *Pipeline) module(id string) (domain.Module, bool) {
	idx, ok := p.index[id]
	if !ok {
		return nil, false
	}
	return p.modules[idx], true
}

func hasInput(m domain.Module, name string) bool {
	for _, spec := range m.InputSpecs() {
		if spec.Name == name {
			return true
		}
	}
	return false
}

func hasOutput(m domain.Module, name string) bool {
	for _, out := range m.OutputNames() {
		if out == name {
			return true
		}
	}
	return false
}
