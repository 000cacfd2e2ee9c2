package hub_test

import (
	"fmt"
	"testing"

	"github.com/tailored-agentic-units/agentbus/orchestrate/hub"
)

func TestHistory_RingBuffer(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		appended int
		limit    int
		want     []string
	}{
		{"empty", 3, 0, 0, []string{}},
		{"partial", 3, 2, 0, []string{"m0", "m1"}},
		{"full", 3, 3, 0, []string{"m0", "m1", "m2"}},
		{"wrapped", 3, 5, 0, []string{"m2", "m3", "m4"}},
		{"limited", 3, 5, 2, []string{"m3", "m4"}},
		{"limit above size", 5, 2, 10, []string{"m0", "m1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := hub.NewHistory(tt.capacity)
			for i := range tt.appended {
				h.Append(hub.HistoryRecord{ID: fmt.Sprintf("m%d", i)})
			}

			got := h.Recent(tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.want))
			}
			for i, record := range got {
				if record.ID != tt.want[i] {
					t.Errorf("record %d: got %s, want %s", i, record.ID, tt.want[i])
				}
			}
		})
	}
}

func TestHistory_Clear(t *testing.T) {
	h := hub.NewHistory(2)
	h.Append(hub.HistoryRecord{ID: "m0"})
	h.Clear()

	if h.Len() != 0 {
		t.Errorf("got Len %d, want 0", h.Len())
	}

	h.Append(hub.HistoryRecord{ID: "m1"})
	if got := h.Recent(0); len(got) != 1 || got[0].ID != "m1" {
		t.Errorf("got %v, want [m1]", got)
	}
}

func TestMetrics_Snapshot(t *testing.T) {
	m := hub.NewMetrics()
	m.RecordAgent(2)
	m.RecordSent(3)
	m.RecordDelivered(5)
	m.RecordFailed(1)
	m.RecordReceived(4)

	got := m.Snapshot()
	want := hub.MetricsSnapshot{Agents: 2, Sent: 3, Delivered: 5, Failed: 1, Received: 4}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	m.Reset()
	if got := m.Snapshot(); got != (hub.MetricsSnapshot{}) {
		t.Errorf("got %+v after Reset, want zero", got)
	}
}
