package hub

import "sync/atomic"

type MetricsSnapshot struct {
	Agents    int64 `json:"agents"`
	Sent      int64 `json:"sent"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Received  int64 `json:"received"`
}

// Metrics counts bus activity. Delivered counts recipients, so one broadcast
// to three agents adds three.
type Metrics struct {
	agents    atomic.Int64
	sent      atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	received  atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordAgent(delta int) {
	m.agents.Add(int64(delta))
}

func (m *Metrics) RecordSent(delta int) {
	m.sent.Add(int64(delta))
}

func (m *Metrics) RecordDelivered(delta int) {
	m.delivered.Add(int64(delta))
}

func (m *Metrics) RecordFailed(delta int) {
	m.failed.Add(int64(delta))
}

func (m *Metrics) RecordReceived(delta int) {
	m.received.Add(int64(delta))
}

func (m *Metrics) Reset() {
	m.agents.Store(0)
	m.sent.Store(0)
	m.delivered.Store(0)
	m.failed.Store(0)
	m.received.Store(0)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Agents:    m.agents.Load(),
		Sent:      m.sent.Load(),
		Delivered: m.delivered.Load(),
		Failed:    m.failed.Load(),
		Received:  m.received.Load(),
	}
}
