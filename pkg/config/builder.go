package config

import (
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/relayai/relay-oss/pkg/domain"
	"github.com/relayai/relay-oss/pkg/engine"
	"github.com/relayai/relay-oss/pkg/engine/modules"
	"github.com/relayai/relay-oss/pkg/router"
	"github.com/relayai/relay-oss/pkg/selector"
)

// Collaborators holds the external services modules are bound to at build
// time. Nil fields are permitted as long as no module needs them; the
// chat client doubles as the text completer when none is supplied.
type Collaborators struct {
	Completer modules.TextCompleter
	Retriever modules.Retriever
	Chat      selector.ChatClient
}

// BuildResult is the compiled form of a configuration: the pipeline set and
// the id external callers hit by default.
type BuildResult struct {
	Pipelines []*engine.Pipeline
	DefaultID string
}

// Build compiles a validated configuration into engine pipelines, wiring
// the router (when declared) into a thin top-level pipeline.
func Build(cfg *Config, collab Collaborators, logger *slog.Logger, sink domain.TraceSink) (*BuildResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	collab = withDefaults(cfg, collab)

	opts := []engine.Option{engine.WithLogger(logger)}
	if sink != nil {
		opts = append(opts, engine.WithTraceSink(sink))
	} else if cfg.Verbose {
		opts = append(opts, engine.WithVerbose())
	}

	result := &BuildResult{}
	byID := make(map[string]*engine.Pipeline)
	for _, pc := range cfg.Pipelines {
		p, err := buildPipeline(pc, collab, opts)
		if err != nil {
			return nil, err
		}
		byID[pc.ID] = p
		result.Pipelines = append(result.Pipelines, p)
	}
	result.DefaultID = cfg.Pipelines[0].ID

	if cfg.Router != nil {
		sel, err := buildSelector(cfg.Selector, collab, logger)
		if err != nil {
			return nil, err
		}

		routes := make([]router.Route, 0, len(cfg.Router.Choices))
		for _, choice := range cfg.Router.Choices {
			routes = append(routes, router.Route{
				Choice: domain.Choice{Description: choice.Description},
				Target: byID[choice.Pipeline],
			})
		}

		routerOpts := []router.Option{router.WithLogger(logger)}
		if sink != nil {
			routerOpts = append(routerOpts, router.WithTraceSink(sink))
		}
		rt, err := router.New(cfg.Router.ID, sel, routes, routerOpts...)
		if err != nil {
			return nil, err
		}

		top := engine.New(cfg.Router.ID, opts...)
		if err := top.AddModule(rt); err != nil {
			return nil, err
		}
		if err := top.Build(); err != nil {
			return nil, err
		}
		result.Pipelines = append(result.Pipelines, top)
		result.DefaultID = cfg.Router.ID
	}

	return result, nil
}

func withDefaults(cfg *Config, collab Collaborators) Collaborators {
	if collab.Chat == nil && cfg.Selector.Type == "llm" {
		client := selector.NewOpenAIClient(selector.OpenAIConfig{
			BaseURL:     cfg.Selector.BaseURL,
			Model:       cfg.Selector.Model,
			Temperature: cfg.Selector.Temperature,
		})
		collab.Chat = selector.NewGuardedClient(client, nil)
	}
	if collab.Completer == nil {
		if completer, ok := collab.Chat.(modules.TextCompleter); ok {
			collab.Completer = completer
		}
	}
	return collab
}

func buildSelector(sc SelectorConfig, collab Collaborators, logger *slog.Logger) (domain.Selector, error) {
	switch sc.Type {
	case "llm":
		return selector.NewLLM(collab.Chat, logger)
	case "static":
		return selector.NewStatic(sc.Index), nil
	default:
		return selector.NewKeyword(), nil
	}
}

func buildPipeline(pc PipelineConfig, collab Collaborators, opts []engine.Option) (*engine.Pipeline, error) {
	p := engine.New(pc.ID, opts...)
	for _, mc := range pc.Modules {
		m, err := buildModule(mc, collab)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: %w", pc.ID, err)
		}
		if err := p.AddModule(m); err != nil {
			return nil, err
		}
	}
	for _, link := range pc.Links {
		if err := p.Connect(link.From, link.Output, link.To, link.Input); err != nil {
			return nil, err
		}
	}
	if pc.Output != "" {
		if err := p.SetOutput(pc.Output); err != nil {
			return nil, err
		}
	}
	if err := p.Build(); err != nil {
		return nil, err
	}
	return p, nil
}

func buildModule(mc ModuleConfig, collab Collaborators) (domain.Module, error) {
	switch mc.Type {
	case "template":
		var spec struct {
			Template string   `yaml:"template"`
			Inputs   []string `yaml:"inputs"`
		}
		if err := decodeModuleConfig(mc.Config, &spec); err != nil {
			return nil, fmt.Errorf("module %q: %w", mc.ID, err)
		}
		if spec.Template == "" {
			return nil, fmt.Errorf("module %q: template text is required", mc.ID)
		}
		inputs := make([]domain.InputSpec, 0, len(spec.Inputs))
		for _, name := range spec.Inputs {
			inputs = append(inputs, domain.RequiredInput(name))
		}
		return modules.NewTemplate(mc.ID, spec.Template, inputs)

	case "completion":
		if collab.Completer == nil {
			return nil, fmt.Errorf("module %q: no text completer configured", mc.ID)
		}
		return modules.NewCompletion(mc.ID, collab.Completer)

	case "retrieval":
		if collab.Retriever == nil {
			return nil, fmt.Errorf("module %q: no retriever configured", mc.ID)
		}
		return modules.NewRetrieval(mc.ID, collab.Retriever)

	case "summarize":
		if collab.Completer == nil {
			return nil, fmt.Errorf("module %q: no text completer configured", mc.ID)
		}
		var spec struct {
			Instruction string `yaml:"instruction"`
		}
		if err := decodeModuleConfig(mc.Config, &spec); err != nil {
			return nil, fmt.Errorf("module %q: %w", mc.ID, err)
		}
		return modules.NewSummarize(mc.ID, collab.Completer, spec.Instruction)

	case "static":
		var spec struct {
			Value any `yaml:"value"`
		}
		if err := decodeModuleConfig(mc.Config, &spec); err != nil {
			return nil, fmt.Errorf("module %q: %w", mc.ID, err)
		}
		return modules.NewStatic(mc.ID, spec.Value), nil

	default:
		return nil, fmt.Errorf("module %q: unknown type %q", mc.ID, mc.Type)
	}
}

// decodeModuleConfig maps a free-form config mapping onto a typed spec
// through a YAML round trip, keeping tag handling consistent with the rest
// of the file.
func decodeModuleConfig(raw map[string]any, out any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
