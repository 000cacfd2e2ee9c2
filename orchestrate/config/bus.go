package config

import (
	"log/slog"
	"time"
)

// BusConfig defines configuration for a Bus instance.
type BusConfig struct {
	// Bus identity
	Name string `json:"name" yaml:"name" toml:"name"`

	// Liveness settings
	HeartbeatInterval   Duration `json:"heartbeat_interval" yaml:"heartbeat_interval" toml:"heartbeat_interval"`
	HealthCheckInterval Duration `json:"health_check_interval" yaml:"health_check_interval" toml:"health_check_interval"`

	// Observability
	HistorySize int `json:"history_size" yaml:"history_size" toml:"history_size"`

	// Senders allowed to send without being registered
	SystemSenders []string `json:"system_senders,omitempty" yaml:"system_senders" toml:"system_senders"`

	Logger *slog.Logger     `json:"-" yaml:"-" toml:"-"`
	Clock  func() time.Time `json:"-" yaml:"-" toml:"-"`
}

// SystemSender is the sender id the bus uses for its own announcements.
const SystemSender = "system"

// DefaultBusConfig returns a BusConfig with sensible defaults.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		Name:                "default",
		HeartbeatInterval:   Duration(30 * time.Second),
		HealthCheckInterval: Duration(30 * time.Second),
		HistorySize:         1000,
		SystemSenders:       []string{SystemSender},
		Logger:              slog.Default(),
		Clock:               time.Now,
	}
}

// StaleAfter is the heartbeat age beyond which an agent is flagged stale.
func (c *BusConfig) StaleAfter() time.Duration {
	return 2 * c.HeartbeatInterval.Std()
}

func (c *BusConfig) Merge(source *BusConfig) {
	if source.Name != "" {
		c.Name = source.Name
	}

	if source.HeartbeatInterval > 0 {
		c.HeartbeatInterval = source.HeartbeatInterval
	}

	if source.HealthCheckInterval > 0 {
		c.HealthCheckInterval = source.HealthCheckInterval
	}

	if source.HistorySize > 0 {
		c.HistorySize = source.HistorySize
	}

	if len(source.SystemSenders) > 0 {
		c.SystemSenders = source.SystemSenders
	}

	if source.Logger != nil {
		c.Logger = source.Logger
	}

	if source.Clock != nil {
		c.Clock = source.Clock
	}
}
