package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fatih/color"

	"github.com/tailored-agentic-units/agentbus/observability"
	"github.com/tailored-agentic-units/agentbus/orchestrate/config"
	"github.com/tailored-agentic-units/agentbus/orchestrate/hub"
	"github.com/tailored-agentic-units/agentbus/orchestrate/runtime"
	"github.com/tailored-agentic-units/agentbus/provider/anthropic"
	"github.com/tailored-agentic-units/agentbus/provider/openai"
)

const (
	schedulerID = "Scheduler.main"
	workerID    = "Worker.1"
)

type demo struct {
	scheduler *runtime.Runtime
	worker    *runtime.Runtime
	summarize bool
}

func newCaller(provider string) (runtime.ExternalCaller, error) {
	switch provider {
	case "":
		return nil, nil
	case "anthropic":
		return anthropic.New(), nil
	case "openai":
		return openai.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

func startDemo(ctx context.Context, b hub.Bus, cfg *config.Config, obs observability.Observer, logger *slog.Logger, caller runtime.ExternalCaller) (*demo, error) {
	schedulerCfg := cfg.Runtime(schedulerID)
	if len(schedulerCfg.Capabilities) == 0 {
		schedulerCfg.Capabilities = []string{"dispatch"}
	}
	schedulerCfg.Logger = logger

	workerCfg := cfg.Runtime(workerID)
	if len(workerCfg.Capabilities) == 0 {
		workerCfg.Capabilities = []string{"execute"}
	}
	workerCfg.Logger = logger

	d := &demo{
		scheduler: runtime.New(b, schedulerCfg, runtime.WithObserver(obs)),
		worker:    runtime.New(b, workerCfg, runtime.WithObserver(obs)),
	}

	d.worker.RegisterTaskHandler("sum", sumTask)

	if caller != nil {
		d.summarize = true
		d.worker.RegisterTaskHandler("summarize", func(ctx context.Context, task *runtime.Task) (any, error) {
			resp, err := d.worker.CallExternal(ctx, caller, runtime.ExternalRequest{Prompt: task.Prompt})
			if err != nil {
				return nil, err
			}
			return resp.Text, nil
		})
	}

	for _, rt := range []*runtime.Runtime{d.scheduler, d.worker} {
		if err := rt.Initialize(ctx); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *demo) run(ctx context.Context, prompt string) error {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	result, err := d.scheduler.Request(ctx, workerID, "sum", map[string]any{"a": 2, "b": 3})
	if err != nil {
		return fmt.Errorf("sum request failed: %w", err)
	}
	green.Print("✔ ")
	fmt.Printf("%s → %s sum(2, 3) = %v\n", schedulerID, workerID, result)

	_, err = d.scheduler.Request(ctx, workerID, "divide", map[string]any{"a": 1, "b": 0})
	var notSupported *runtime.TaskNotSupportedError
	if !errors.As(err, &notSupported) {
		return fmt.Errorf("divide request: got %v, want not supported", err)
	}
	yellow.Print("✘ ")
	fmt.Printf("%s → %s divide: %v\n", schedulerID, workerID, err)

	if d.summarize {
		result, err := d.scheduler.Request(ctx, workerID, "summarize", map[string]any{"prompt": prompt})
		if err != nil {
			return fmt.Errorf("summarize request failed: %w", err)
		}
		usage := d.worker.Status().Usage
		green.Print("✔ ")
		fmt.Printf("%s → %s summarize: %v\n", schedulerID, workerID, result)
		color.New(color.FgHiBlack).Printf("  %d in / %d out units, $%.6f\n", usage.InputUnits, usage.OutputUnits, usage.CostUSD)
	}

	return nil
}

func (d *demo) shutdown(ctx context.Context) {
	for _, rt := range []*runtime.Runtime{d.worker, d.scheduler} {
		_ = rt.Shutdown(ctx)
	}
}

func sumTask(ctx context.Context, task *runtime.Task) (any, error) {
	a, okA := number(task.Payload["a"])
	b, okB := number(task.Payload["b"])
	if !okA || !okB {
		return nil, errors.New("sum requires numeric a and b")
	}
	return a + b, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
