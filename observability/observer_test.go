package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/tailored-agentic-units/agentbus/observability"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		name  string
		level observability.Level
		want  string
	}{
		{name: "trace range", level: 1, want: "TRACE"},
		{name: "verbose maps to DEBUG", level: observability.LevelVerbose, want: "DEBUG"},
		{name: "info maps to INFO", level: observability.LevelInfo, want: "INFO"},
		{name: "warning maps to WARN", level: observability.LevelWarning, want: "WARN"},
		{name: "error maps to ERROR", level: observability.LevelError, want: "ERROR"},
		{name: "fatal range", level: 21, want: "FATAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
			}
		})
	}
}

func TestLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level observability.Level
		want  slog.Level
	}{
		{name: "verbose maps to Debug", level: observability.LevelVerbose, want: slog.LevelDebug},
		{name: "info maps to Info", level: observability.LevelInfo, want: slog.LevelInfo},
		{name: "warning maps to Warn", level: observability.LevelWarning, want: slog.LevelWarn},
		{name: "error maps to Error", level: observability.LevelError, want: slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.SlogLevel(); got != tt.want {
				t.Errorf("Level(%d).SlogLevel() = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	event := observability.NewEvent("bus.agent.stale", observability.LevelWarning, "hub.CheckHealth", map[string]any{"agent_id": "Worker.1"})

	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if event.Type != "bus.agent.stale" || event.Source != "hub.CheckHealth" {
		t.Errorf("got %+v", event)
	}
}

func TestMultiObserver(t *testing.T) {
	first := observability.NewRecorder()
	second := observability.NewRecorder()

	multi := observability.NewMultiObserver(first, nil, second, nil)
	multi.OnEvent(context.Background(), observability.NewEvent("bus.message.delivered", observability.LevelVerbose, "test", nil))

	if got := len(first.Events()); got != 1 {
		t.Errorf("observer 1 received %d events, want 1", got)
	}
	if got := len(second.Events()); got != 1 {
		t.Errorf("observer 2 received %d events, want 1", got)
	}
}

func TestRecorder_FilterAndReset(t *testing.T) {
	rec := observability.NewRecorder()
	ctx := context.Background()

	rec.OnEvent(ctx, observability.NewEvent("runtime.state.changed", observability.LevelVerbose, "test", nil))
	rec.OnEvent(ctx, observability.NewEvent("runtime.task.start", observability.LevelInfo, "test", nil))
	rec.OnEvent(ctx, observability.NewEvent("runtime.state.changed", observability.LevelVerbose, "test", nil))

	if got := len(rec.Events()); got != 3 {
		t.Errorf("Events() returned %d events, want 3", got)
	}
	if got := len(rec.Events("runtime.state.changed")); got != 2 {
		t.Errorf("Events(state.changed) returned %d events, want 2", got)
	}

	rec.Reset()
	if got := len(rec.Events()); got != 0 {
		t.Errorf("Events() after Reset returned %d events, want 0", got)
	}
}

func TestSlogObserver_LevelMapping(t *testing.T) {
	tests := []struct {
		name      string
		level     observability.Level
		minLevel  slog.Level
		expectLog bool
	}{
		{name: "verbose at debug handler", level: observability.LevelVerbose, minLevel: slog.LevelDebug, expectLog: true},
		{name: "verbose at info handler", level: observability.LevelVerbose, minLevel: slog.LevelInfo, expectLog: false},
		{name: "info at info handler", level: observability.LevelInfo, minLevel: slog.LevelInfo, expectLog: true},
		{name: "warning at warn handler", level: observability.LevelWarning, minLevel: slog.LevelWarn, expectLog: true},
		{name: "error at error handler", level: observability.LevelError, minLevel: slog.LevelError, expectLog: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
				Level: tt.minLevel,
			}))

			obs := observability.NewSlogObserver(logger)
			obs.OnEvent(context.Background(), observability.NewEvent("test.event", tt.level, "test", nil))

			hasOutput := buf.Len() > 0
			if hasOutput != tt.expectLog {
				t.Errorf("log output = %v, want %v (buf: %q)", hasOutput, tt.expectLog, buf.String())
			}
		})
	}
}

func TestSlogObserver_EventTypeAsMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	obs := observability.NewSlogObserver(logger)
	obs.OnEvent(context.Background(), observability.NewEvent(
		"bus.agent.register",
		observability.LevelInfo,
		"hub.RegisterAgent",
		map[string]any{"agent_id": "Worker.1"},
	))

	output := buf.String()
	for _, want := range []string{"bus.agent.register", "source=hub.RegisterAgent", "agent_id=Worker.1"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestSlogObserver_AttributesInKeyOrder(t *testing.T) {
	var buf bytes.Buffer
	obs := observability.NewSlogObserver(slog.New(slog.NewTextHandler(&buf, nil)))

	obs.OnEvent(context.Background(), observability.NewEvent(
		"bus.message.failed",
		observability.LevelWarning,
		"hub.main",
		map[string]any{"reason": "expired", "agent_id": "Worker.1", "message_id": "m-1"},
	))

	output := buf.String()
	source := strings.Index(output, "source=")
	agent := strings.Index(output, "agent_id=")
	message := strings.Index(output, "message_id=")
	reason := strings.Index(output, "reason=")
	if !(source < agent && agent < message && message < reason) {
		t.Errorf("attributes out of order: %s", output)
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"noop", "slog"} {
		if obs, err := observability.GetObserver(name); err != nil || obs == nil {
			t.Errorf("GetObserver(%q) = %v, %v", name, obs, err)
		}
	}

	if _, err := observability.GetObserver("nonexistent"); err == nil {
		t.Error("GetObserver(nonexistent) should fail")
	}

	rec := observability.NewRecorder()
	observability.RegisterObserver("test-recorder", rec)

	obs, err := observability.GetObserver("test-recorder")
	if err != nil {
		t.Fatalf("GetObserver failed: %v", err)
	}
	obs.OnEvent(context.Background(), observability.NewEvent("test.event", observability.LevelInfo, "test", nil))

	if got := len(rec.Events()); got != 1 {
		t.Errorf("received %d events, want 1", got)
	}
	if !slices.Contains(observability.ObserverNames(), "test-recorder") {
		t.Errorf("ObserverNames() = %v, missing test-recorder", observability.ObserverNames())
	}
}
