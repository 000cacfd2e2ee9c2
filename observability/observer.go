// Package observability carries the structured events a bus and its agent
// runtimes emit: registrations, stale transitions, deliveries, state changes
// and task outcomes. Observers turn them into log lines, SQLite rows or
// diagnostics replies. Severities use the OpenTelemetry SeverityNumber scale.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level is an event severity. Routine traffic such as deliveries and state
// changes is Verbose; stale agents and failed routes are Warning.
type Level int

const (
	LevelVerbose Level = 5
	LevelInfo    Level = 9
	LevelWarning Level = 13
	LevelError   Level = 17
)

// severities lists the upper bound of each OTel severity band.
var severities = []struct {
	max  Level
	name string
	slog slog.Level
}{
	{4, "TRACE", slog.LevelDebug},
	{8, "DEBUG", slog.LevelDebug},
	{12, "INFO", slog.LevelInfo},
	{16, "WARN", slog.LevelWarn},
	{20, "ERROR", slog.LevelError},
}

func (l Level) String() string {
	for _, s := range severities {
		if l <= s.max {
			return s.name
		}
	}
	return "FATAL"
}

// SlogLevel is the slog level an event of this severity is logged at.
func (l Level) SlogLevel() slog.Level {
	for _, s := range severities {
		if l <= s.max {
			return s.slog
		}
	}
	return slog.LevelError
}

// EventType names an event, namespaced by its emitter: "bus.*" from a hub,
// "runtime.*" from an agent runtime.
type EventType string

// Event is one occurrence on a bus. Source is "hub.<bus name>" or
// "runtime.<agent id>"; Data holds flat attributes such as agent_id and
// message_id.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType EventType, level Level, source string, data map[string]any) Event {
	return Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	}
}

// Observer receives events synchronously on the emitting goroutine, which may
// be a bus delivery pump, so OnEvent should return quickly.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}
