package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds initialization parameters for a bus and the agents hosted on it.
type Config struct {
	Bus         BusConfig                `json:"bus" yaml:"bus" toml:"bus"`
	Agents      map[string]RuntimeConfig `json:"agents,omitempty" yaml:"agents" toml:"agents"`
	Diagnostics DiagnosticsConfig        `json:"diagnostics" yaml:"diagnostics" toml:"diagnostics"`
	Events      EventsConfig             `json:"events" yaml:"events" toml:"events"`
}

// DiagnosticsConfig controls the read-only diagnostics endpoint.
type DiagnosticsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr" toml:"addr"` // Listen address; empty disables the endpoint.
}

func (c *DiagnosticsConfig) Merge(source *DiagnosticsConfig) {
	if source.Addr != "" {
		c.Addr = source.Addr
	}
}

// EventsConfig controls persistence of observability events.
type EventsConfig struct {
	Path string `json:"path,omitempty" yaml:"path" toml:"path"` // SQLite database file; empty disables persistence.
}

func (c *EventsConfig) Merge(source *EventsConfig) {
	if source.Path != "" {
		c.Path = source.Path
	}
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Bus: DefaultBusConfig(),
	}
}

// Merge applies non-zero values from source into c. Agent entries are merged
// per name over the runtime defaults.
func (c *Config) Merge(source *Config) {
	c.Bus.Merge(&source.Bus)
	c.Diagnostics.Merge(&source.Diagnostics)
	c.Events.Merge(&source.Events)

	if len(source.Agents) > 0 {
		if c.Agents == nil {
			c.Agents = make(map[string]RuntimeConfig, len(source.Agents))
		}
		for name, agentCfg := range source.Agents {
			base, exists := c.Agents[name]
			if !exists {
				base = DefaultRuntimeConfig(name)
			}
			base.Merge(&agentCfg)
			c.Agents[name] = base
		}
	}
}

// Runtime returns the runtime configuration for a named agent, falling back
// to defaults when the agent is not configured.
func (c *Config) Runtime(name string) RuntimeConfig {
	if cfg, exists := c.Agents[name]; exists {
		return cfg
	}
	return DefaultRuntimeConfig(name)
}

// LoadConfig reads a JSON, YAML or TOML config file (chosen by extension),
// merges it with defaults, and returns the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		err = json.Unmarshal(data, &loaded)
	case ".yaml", ".yml":
		err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &loaded)
	case ".toml":
		err = toml.Unmarshal(data, &loaded)
	default:
		return nil, fmt.Errorf("unsupported config format: %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
