package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/relayai/relay-oss/pkg/domain"
	"github.com/relayai/relay-oss/pkg/telemetry"
)

// outputStore holds completed module outputs, partitioned by module id.
// Each entry is written exactly once, by the goroutine that ran the module;
// readers only see entries of modules joined in earlier waves.
type outputStore struct {
	mu      sync.Mutex
	outputs map[string]map[string]any
}

func newOutputStore() *outputStore {
	return &outputStore{outputs: make(map[string]map[string]any)}
}

func (s *outputStore) put(moduleID string, outputs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[moduleID] = outputs
}

func (s *outputStore) get(moduleID, name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	outputs, ok := s.outputs[moduleID]
	if !ok {
		return nil, false
	}
	v, ok := outputs[name]
	return v, ok
}

type moduleTask struct {
	mod      domain.Module
	resolved map[string]any
	seq      int
}

// execute drives the frozen execution plan. Modules within a wave share no
// links, direct or transitive, and run concurrently; the executor joins the
// wave before dispatching any dependent. On failure the in-flight siblings
// finish, no further wave is scheduled, and the first failure in dispatch
// order is the one surfaced.
func (p *Pipeline) execute(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	runID := uuid.NewString()

	tracer := otel.Tracer("relay.pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.execute")
	span.SetAttributes(
		attribute.String("pipeline.id", p.id),
		attribute.String("run.id", runID),
		attribute.Int("pipeline.modules", len(p.modules)),
	)
	defer span.End()

	if err := p.checkRootInputs(inputs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	p.logger.Debug("executing pipeline",
		"pipeline_id", p.id,
		"run_id", runID,
		"waves", len(p.waves),
	)

	store := newOutputStore()
	buffer := newTraceBuffer(p.sink)

	for _, wave := range p.waves {
		tasks := make([]moduleTask, 0, len(wave))
		for _, idx := range wave {
			mod := p.modules[idx]
			resolved, err := p.resolveInputs(mod, inputs, store)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			seq := buffer.add(domain.TraceRecord{
				PipelineID: p.id,
				RunID:      runID,
				ModuleID:   mod.ID(),
				Inputs:     domain.PreviewInputs(resolved),
			})
			tasks = append(tasks, moduleTask{mod: mod, resolved: resolved, seq: seq})
		}

		errs := make([]error, len(tasks))
		group := new(errgroup.Group)
		for i, task := range tasks {
			group.Go(func() error {
				errs[i] = p.runModule(ctx, task, store, buffer, runID)
				// Siblings in the same wave are allowed to finish; the error
				// is collected positionally so dispatch order decides which
				// failure wins.
				return nil
			})
		}
		_ = group.Wait()

		for _, err := range errs {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
		}
	}

	return store.outputs[p.terminal], nil
}

func (p *Pipeline) runModule(ctx context.Context, task moduleTask, store *outputStore, buffer *traceBuffer, runID string) error {
	tracer := otel.Tracer("relay.pipeline")
	moduleCtx, span := tracer.Start(ctx, "pipeline.module")
	span.SetAttributes(
		attribute.String("pipeline.id", p.id),
		attribute.String("run.id", runID),
		attribute.String("module.id", task.mod.ID()),
	)
	defer span.End()

	start := time.Now()
	outputs, err := task.mod.Run(moduleCtx, task.resolved)
	duration := time.Since(start)

	if err == nil {
		err = checkDeclaredOutputs(task.mod, outputs)
	}
	if err != nil {
		execErr := &domain.ModuleExecutionError{ModuleID: task.mod.ID(), Err: err}
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
		buffer.complete(task.seq, "", duration, execErr)
		telemetry.RecordModuleMetrics(ctx, telemetry.ModuleMetrics{
			PipelineID: p.id,
			ModuleID:   task.mod.ID(),
			Outcome:    telemetry.OutcomeFailure,
			Duration:   duration,
		})
		p.logger.Error("module execution failed",
			"pipeline_id", p.id,
			"run_id", runID,
			"module_id", task.mod.ID(),
			"error", execErr,
		)
		return execErr
	}

	store.put(task.mod.ID(), outputs)
	buffer.complete(task.seq, domain.PreviewOutputs(outputs), duration, nil)
	span.SetAttributes(attribute.Int64("module.duration_ms", duration.Milliseconds()))
	telemetry.RecordModuleMetrics(ctx, telemetry.ModuleMetrics{
		PipelineID: p.id,
		ModuleID:   task.mod.ID(),
		Outcome:    telemetry.OutcomeSuccess,
		Duration:   duration,
	})
	return nil
}

// resolveInputs gathers a module's inputs: linked values come from already
// completed producers, unlinked names are forwarded from the root inputs,
// and declared defaults fill the rest.
func (p *Pipeline) resolveInputs(mod domain.Module, root map[string]any, store *outputStore) (map[string]any, error) {
	resolved := make(map[string]any, len(mod.InputSpecs()))
	for _, spec := range mod.InputSpecs() {
		if link, ok := p.inbound[mod.ID()][spec.Name]; ok {
			v, ok := store.get(link.FromModule, link.FromOutput)
			if !ok {
				// Producers always join before consumers dispatch, so a miss
				// here means the producer omitted a declared output and was
				// already failed by checkDeclaredOutputs.
				return nil, &domain.ModuleExecutionError{
					ModuleID: link.FromModule,
					Err:      fmt.Errorf("output %q unavailable for module %q", link.FromOutput, mod.ID()),
				}
			}
			resolved[spec.Name] = v
			continue
		}
		if v, ok := root[spec.Name]; ok {
			resolved[spec.Name] = v
			continue
		}
		if spec.Default != nil {
			resolved[spec.Name] = spec.Default
			continue
		}
		if spec.Required {
			return nil, &domain.MissingInputError{ModuleID: mod.ID(), Input: spec.Name}
		}
	}
	return resolved, nil
}

// checkRootInputs fails fast before any module executes when a required
// root input is absent from the external call.
func (p *Pipeline) checkRootInputs(inputs map[string]any) error {
	for _, spec := range p.rootInputs {
		if !spec.Required {
			continue
		}
		if _, ok := inputs[spec.Name]; !ok {
			owner := p.rootInputOwner(spec.Name)
			return &domain.MissingInputError{ModuleID: owner, Input: spec.Name}
		}
	}
	return nil
}

func (p *Pipeline) rootInputOwner(input string) string {
	for _, m := range p.modules {
		if _, linked := p.inbound[m.ID()][input]; linked {
			continue
		}
		for _, spec := range m.InputSpecs() {
			if spec.Name == input && spec.Required && spec.Default == nil {
				return m.ID()
			}
		}
	}
	return p.id
}

func checkDeclaredOutputs(mod domain.Module, outputs map[string]any) error {
	for _, name := range mod.OutputNames() {
		if _, ok := outputs[name]; !ok {
			return fmt.Errorf("declared output %q missing from result", name)
		}
	}
	return nil
}
