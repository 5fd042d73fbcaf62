// Package config loads declarative pipeline definitions from YAML and
// compiles them into engine objects. A file provider watches the
// configuration for changes and feeds atomic registry updates.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML configuration.
type Config struct {
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
	Server    ServerConfig     `yaml:"server"`
	Verbose   bool             `yaml:"verbose"`
	Selector  SelectorConfig   `yaml:"selector"`
	Pipelines []PipelineConfig `yaml:"pipelines"`
	Router    *RouterConfig    `yaml:"router"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig configures the OTLP trace exporter.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"`
	Environment string `yaml:"environment"`
	Insecure    bool   `yaml:"insecure"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr      string          `yaml:"addr"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds the inbound query rate. A zero rate disables the
// limit.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

// SelectorConfig configures the routing decision unit.
type SelectorConfig struct {
	Type        string  `yaml:"type"` // llm, keyword, static
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	Index       int     `yaml:"index"` // static only
}

// PipelineConfig declares one pipeline: its modules, links, and optionally
// a designated output module.
type PipelineConfig struct {
	ID      string         `yaml:"id"`
	Output  string         `yaml:"output"`
	Modules []ModuleConfig `yaml:"modules"`
	Links   []LinkConfig   `yaml:"links"`
}

// ModuleConfig declares one module instance by type with a type-specific
// configuration mapping.
type ModuleConfig struct {
	ID     string         `yaml:"id"`
	Type   string         `yaml:"type"` // template, completion, retrieval, summarize, static
	Config map[string]any `yaml:"config"`
}

// LinkConfig declares one data-flow edge. Output and Input default to the
// conventional single-output name when omitted.
type LinkConfig struct {
	From   string `yaml:"from"`
	Output string `yaml:"output"`
	To     string `yaml:"to"`
	Input  string `yaml:"input"`
}

// RouterConfig declares the top-level router and its choices.
type RouterConfig struct {
	ID      string         `yaml:"id"`
	Choices []ChoiceConfig `yaml:"choices"`
}

// ChoiceConfig pairs a choice description with a pipeline id.
type ChoiceConfig struct {
	Description string `yaml:"description"`
	Pipeline    string `yaml:"pipeline"`
}

// Load reads, parses, and validates the configuration file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- File path is configured at startup
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RELAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RELAY_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("RELAY_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
	}
}

// Validate checks cross-references and fills defaults.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("server rate limit must not be negative")
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "relay"
	}
	if c.Selector.Type == "" {
		c.Selector.Type = "keyword"
	}
	switch c.Selector.Type {
	case "llm", "keyword", "static":
	default:
		return fmt.Errorf("unknown selector type %q", c.Selector.Type)
	}

	if len(c.Pipelines) == 0 {
		return fmt.Errorf("at least one pipeline is required")
	}

	seen := make(map[string]bool)
	for i := range c.Pipelines {
		p := &c.Pipelines[i]
		if p.ID == "" {
			return fmt.Errorf("pipeline %d: id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate pipeline id %q", p.ID)
		}
		seen[p.ID] = true
		if len(p.Modules) == 0 {
			return fmt.Errorf("pipeline %q: at least one module is required", p.ID)
		}
		for j := range p.Links {
			link := &p.Links[j]
			if link.Output == "" {
				link.Output = "output"
			}
			if link.From == "" || link.To == "" || link.Input == "" {
				return fmt.Errorf("pipeline %q: link %d: from, to, and input are required", p.ID, j)
			}
		}
	}

	if c.Router != nil {
		if c.Router.ID == "" {
			c.Router.ID = "root"
		}
		if seen[c.Router.ID] {
			return fmt.Errorf("router id %q collides with a pipeline id", c.Router.ID)
		}
		if len(c.Router.Choices) == 0 {
			return fmt.Errorf("router %q: at least one choice is required", c.Router.ID)
		}
		for i, choice := range c.Router.Choices {
			if choice.Description == "" {
				return fmt.Errorf("router %q: choice %d: description is required", c.Router.ID, i)
			}
			if !seen[choice.Pipeline] {
				return fmt.Errorf("router %q: choice %d references unknown pipeline %q", c.Router.ID, i, choice.Pipeline)
			}
		}
	}

	return nil
}
