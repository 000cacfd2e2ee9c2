package config

import (
	"log/slog"
	"maps"
	"time"
)

// RuntimeConfig defines identity and timing for an agent runtime.
type RuntimeConfig struct {
	ID           string            `json:"id" yaml:"id" toml:"id"`
	Capabilities []string          `json:"capabilities,omitempty" yaml:"capabilities" toml:"capabilities"`
	Version      string            `json:"version,omitempty" yaml:"version" toml:"version"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata" toml:"metadata"`

	HeartbeatInterval Duration `json:"heartbeat_interval" yaml:"heartbeat_interval" toml:"heartbeat_interval"`
	RequestTimeout    Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`

	// AnnounceState broadcasts AGENT_STATE_CHANGED on every state transition.
	AnnounceState bool `json:"announce_state" yaml:"announce_state" toml:"announce_state"`

	Logger *slog.Logger `json:"-" yaml:"-" toml:"-"`
}

// DefaultRuntimeConfig returns a RuntimeConfig for the given agent id.
func DefaultRuntimeConfig(id string) RuntimeConfig {
	return RuntimeConfig{
		ID:                id,
		Version:           "1.0.0",
		HeartbeatInterval: Duration(30 * time.Second),
		RequestTimeout:    Duration(120 * time.Second),
		Logger:            slog.Default(),
	}
}

func (c *RuntimeConfig) Merge(source *RuntimeConfig) {
	if source.ID != "" {
		c.ID = source.ID
	}

	if len(source.Capabilities) > 0 {
		c.Capabilities = source.Capabilities
	}

	if source.Version != "" {
		c.Version = source.Version
	}

	if len(source.Metadata) > 0 {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string, len(source.Metadata))
		}
		maps.Copy(c.Metadata, source.Metadata)
	}

	if source.HeartbeatInterval > 0 {
		c.HeartbeatInterval = source.HeartbeatInterval
	}

	if source.RequestTimeout > 0 {
		c.RequestTimeout = source.RequestTimeout
	}

	if source.AnnounceState {
		c.AnnounceState = source.AnnounceState
	}

	if source.Logger != nil {
		c.Logger = source.Logger
	}
}
