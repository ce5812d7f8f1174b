package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "roundtable"

// Metrics holds every metric instrument the engine emits.
type Metrics struct {
	ActionsSubmitted metric.Int64Counter
	ActionsRejected  metric.Int64Counter
	PhaseTransitions metric.Int64Counter
	KickOuts         metric.Int64Counter
	IssuesFinalized  metric.Int64Counter
	TickDuration     metric.Float64Histogram
}

// NewMetrics creates all metric instruments against the global MeterProvider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ActionsSubmitted, err = meter.Int64Counter("roundtable.actions.submitted",
		metric.WithDescription("Number of agent actions accepted by the orchestrator"))
	if err != nil {
		return nil, err
	}

	m.ActionsRejected, err = meter.Int64Counter("roundtable.actions.rejected",
		metric.WithDescription("Number of agent actions rejected by the orchestrator"))
	if err != nil {
		return nil, err
	}

	m.PhaseTransitions, err = meter.Int64Counter("roundtable.phase.transitions",
		metric.WithDescription("Number of phase transitions"))
	if err != nil {
		return nil, err
	}

	m.KickOuts, err = meter.Int64Counter("roundtable.agents.kicked_out",
		metric.WithDescription("Number of agents substituted with a default action after their think-tick budget expired"))
	if err != nil {
		return nil, err
	}

	m.IssuesFinalized, err = meter.Int64Counter("roundtable.issues.finalized",
		metric.WithDescription("Number of issues that reached FINALIZE"))
	if err != nil {
		return nil, err
	}

	m.TickDuration, err = meter.Float64Histogram("roundtable.tick.duration_seconds",
		metric.WithDescription("Wall time spent processing a single AdvanceTick call"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
