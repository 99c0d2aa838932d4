// Package observability holds Beacon's metric instruments and trace spans.
// Both are optional; components skip recording when they are nil.
package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for Beacon, backed by any go-utils
// MetricFactory (for example the forge-managed metrics system).
type Metrics struct {
	EventsTriggered       gu.Counter
	DeliveriesTotal       gu.Counter
	DeliveryLatency       gu.Histogram
	DeliveriesRateLimited gu.Counter
	PendingRetries        gu.Gauge
	RunsTotal             gu.Counter
	ActiveRuns            gu.Gauge
	StepsTotal            gu.Counter
	StepLatency           gu.Histogram
}

// NewMetrics creates Beacon metric instruments using the supplied factory.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		EventsTriggered:       factory.Counter("beacon_events_triggered_total"),
		DeliveriesTotal:       factory.Counter("beacon_deliveries_total"),
		DeliveryLatency:       factory.Histogram("beacon_delivery_latency_seconds"),
		DeliveriesRateLimited: factory.Counter("beacon_deliveries_rate_limited_total"),
		PendingRetries:        factory.Gauge("beacon_pending_retries"),
		RunsTotal:             factory.Counter("beacon_runs_total"),
		ActiveRuns:            factory.Gauge("beacon_active_runs"),
		StepsTotal:            factory.Counter("beacon_steps_total"),
		StepLatency:           factory.Histogram("beacon_step_latency_seconds"),
	}
}

// RecordDelivery records one delivery attempt outcome ("delivered",
// "retry", "failed", "disabled") and its latency.
func (m *Metrics) RecordDelivery(status string, latencySeconds float64) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabels(map[string]string{"status": status}).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}

// RecordRateLimited counts a target skipped by the rate limiter.
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.DeliveriesRateLimited.Inc()
}

// RecordEvent counts a triggered event.
func (m *Metrics) RecordEvent() {
	if m == nil {
		return
	}
	m.EventsTriggered.Inc()
}

// RetryScheduled and RetryClaimed keep the pending-retries gauge current.
func (m *Metrics) RetryScheduled() {
	if m == nil {
		return
	}
	m.PendingRetries.Inc()
}

func (m *Metrics) RetryClaimed(n int) {
	if m == nil || n == 0 {
		return
	}
	m.PendingRetries.Add(-float64(n))
}

// RunStarted increments the active-run gauge.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.ActiveRuns.Inc()
}

// RunFinished records a run reaching a terminal status.
func (m *Metrics) RunFinished(status string) {
	if m == nil {
		return
	}
	m.ActiveRuns.Dec()
	m.RunsTotal.WithLabels(map[string]string{"status": status}).Inc()
}

// RecordStep records one step outcome ("success", "failed", "skipped").
func (m *Metrics) RecordStep(kind, outcome string, latencySeconds float64) {
	if m == nil {
		return
	}
	m.StepsTotal.WithLabels(map[string]string{"kind": kind, "outcome": outcome}).Inc()
	m.StepLatency.Observe(latencySeconds)
}
