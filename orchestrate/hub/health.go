package hub

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/tailored-agentic-units/agentbus/observability"
	"github.com/tailored-agentic-units/agentbus/orchestrate/messaging"
)

func (b *bus) healthLoop() {
	ticker := time.NewTicker(b.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.CheckHealth(b.ctx)
		}
	}
}

// CheckHealth flags every active agent whose last heartbeat is older than
// twice the heartbeat interval as stale, broadcasting one agent-stale alert
// per transition. It returns the ids that became stale.
func (b *bus) CheckHealth(ctx context.Context) []string {
	if b.closed.Load() {
		return nil
	}

	now := b.clock()
	ages := make(map[string]time.Duration)

	b.agentsMutex.Lock()
	for id, r := range b.agents {
		if r.record.Status != AgentActive {
			continue
		}
		if age := now.Sub(r.record.LastHeartbeat); age > b.staleAfter {
			r.record.Status = AgentStale
			ages[id] = age
		}
	}
	b.agentsMutex.Unlock()

	stale := make([]string, 0, len(ages))
	for id := range ages {
		stale = append(stale, id)
	}
	sort.Strings(stale)

	for _, id := range stale {
		age := ages[id]

		b.logger.WarnContext(
			ctx,
			"agent stale",
			slog.String("bus_name", b.name),
			slog.String("agent_id", id),
			slog.Duration("age", age),
		)
		b.emit(EventAgentStale, observability.LevelWarning, map[string]any{
			"agent_id": id,
			"age_ms":   age.Milliseconds(),
		})

		b.announce(messaging.TypeSystemAlert, map[string]any{
			"alertType": AlertAgentStale,
			"agentId":   id,
			"ageMs":     age.Milliseconds(),
		}, id)
	}

	return stale
}
