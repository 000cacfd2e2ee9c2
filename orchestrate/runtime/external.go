package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tailored-agentic-units/agentbus/observability"
)

// ExternalRequest describes a call to an external model provider.
type ExternalRequest struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
}

// ExternalResponse is the provider's answer with its usage counts.
type ExternalResponse struct {
	Text        string
	Model       string
	InputUnits  int64
	OutputUnits int64
}

// ExternalCaller issues a single external call. The provider packages supply
// implementations backed by vendor SDKs.
type ExternalCaller interface {
	Call(ctx context.Context, req ExternalRequest) (*ExternalResponse, error)
}

// ExternalCallerFunc adapts a function to ExternalCaller.
type ExternalCallerFunc func(ctx context.Context, req ExternalRequest) (*ExternalResponse, error)

func (f ExternalCallerFunc) Call(ctx context.Context, req ExternalRequest) (*ExternalResponse, error) {
	return f(ctx, req)
}

// Price is USD per million units.
type Price struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// PriceTable maps model names to prices. Lookups match the exact name, then
// the longest key the name starts with, then "default".
type PriceTable map[string]Price

const DefaultPriceKey = "default"

func DefaultPriceTable() PriceTable {
	return PriceTable{
		"claude-3-5-sonnet": {Input: 3, Output: 15},
		"claude-3-5-haiku":  {Input: 0.8, Output: 4},
		"gpt-4o":            {Input: 2.5, Output: 10},
		"gpt-4o-mini":       {Input: 0.15, Output: 0.6},
		DefaultPriceKey:     {Input: 3, Output: 15},
	}
}

func (t PriceTable) Lookup(model string) Price {
	if price, ok := t[model]; ok {
		return price
	}

	best := ""
	for key := range t {
		if key != DefaultPriceKey && strings.HasPrefix(model, key) && len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		return t[best]
	}
	return t[DefaultPriceKey]
}

func (t PriceTable) Cost(model string, inputUnits, outputUnits int64) float64 {
	price := t.Lookup(model)
	return (float64(inputUnits)*price.Input + float64(outputUnits)*price.Output) / 1_000_000
}

// Usage accumulates external call accounting.
type Usage struct {
	Calls       int64   `json:"calls"`
	Failures    int64   `json:"failures"`
	InputUnits  int64   `json:"inputUnits"`
	OutputUnits int64   `json:"outputUnits"`
	CostUSD     float64 `json:"costUsd"`
}

type usageMeter struct {
	mu    sync.Mutex
	usage Usage
}

func (m *usageMeter) record(inputUnits, outputUnits int64, cost float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage.Calls++
	m.usage.InputUnits += inputUnits
	m.usage.OutputUnits += outputUnits
	m.usage.CostUSD += cost
}

func (m *usageMeter) recordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage.Calls++
	m.usage.Failures++
}

func (m *usageMeter) snapshot() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

// CallExternal runs caller under PROCESSING_EXTERNAL_CALL and accounts for
// its usage. On success the runtime returns to BUSY inside a task, or IDLE
// otherwise. On failure it enters ERROR and the error is returned.
func (r *Runtime) CallExternal(ctx context.Context, caller ExternalCaller, req ExternalRequest) (*ExternalResponse, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	r.setState(ctx, StateProcessingExternalCall)
	start := time.Now()

	resp, err := caller.Call(ctx, req)
	if err != nil {
		r.usage.recordFailure()
		r.setState(ctx, StateError)

		r.logger.WarnContext(
			ctx,
			"external call failed",
			slog.String("agent_id", r.id),
			slog.String("model", req.Model),
			slog.String("error", err.Error()),
		)
		r.emit(ctx, EventExternalCall, observability.LevelWarning, map[string]any{
			"model": req.Model,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("external call failed: %w", err)
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	cost := r.prices.Cost(model, resp.InputUnits, resp.OutputUnits)
	r.usage.record(resp.InputUnits, resp.OutputUnits, cost)

	if r.inflight.Load() > 0 {
		r.setState(ctx, StateBusy)
	} else {
		r.setState(ctx, StateIdle)
	}

	r.logger.DebugContext(
		ctx,
		"external call completed",
		slog.String("agent_id", r.id),
		slog.String("model", model),
		slog.Int64("input_units", resp.InputUnits),
		slog.Int64("output_units", resp.OutputUnits),
		slog.Float64("cost_usd", cost),
		slog.Duration("duration", time.Since(start)),
	)
	r.emit(ctx, EventExternalCall, observability.LevelInfo, map[string]any{
		"model":        model,
		"input_units":  resp.InputUnits,
		"output_units": resp.OutputUnits,
		"cost_usd":     cost,
	})

	return resp, nil
}
