// internal/chaos/experiments.go
package chaos

import (
	"context"
	"time"
)

// Targets are the fault injection points wired around a sales service.
type Targets struct {
	Probe      *Probe
	Sink       *FlakySink
	Repository *LatentRepository
}

// RegisterSalesExperiments registers the predefined sales experiments with the engine.
func (e *Engine) RegisterSalesExperiments(t Targets, duration, latency time.Duration) {
	e.Register(EventSinkOutageExperiment(t, duration))
	e.Register(StoreLatencyExperiment(t, duration, latency))
}

// EventSinkOutageExperiment rejects every published event and expects sale creation to stay unaffected.
func EventSinkOutageExperiment(t Targets, duration time.Duration) Experiment {
	return Experiment{
		Name:       "event-sink-outage",
		Hypothesis: "Sales are still created when every event publication fails",
		SteadyState: []Metric{
			{
				Name:      "sale_creation_success_rate",
				Query:     t.Probe.CreationSuccessRate,
				Threshold: Threshold{Operator: "==", Value: 100.0},
			},
			{
				Name: "events_rejected",
				Query: func(ctx context.Context) (float64, error) {
					return float64(t.Sink.Rejected()), nil
				},
				Threshold: Threshold{Operator: ">=", Value: 0},
			},
		},
		Method: []Action{
			{
				Type:   "failure",
				Target: "event-sink",
				Execute: func(ctx context.Context) error {
					t.Sink.SetOutage(true)
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "failure",
				Target: "event-sink",
				Execute: func(ctx context.Context) error {
					t.Sink.SetOutage(false)
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "sale_creation_success_rate",
				Condition: func(v float64) bool { return v == 100.0 },
				Message:   "Sale creation success rate should stay at 100%",
			},
			{
				Metric:    "events_rejected",
				Condition: func(v float64) bool { return v > 0 },
				Message:   "The outage should have rejected at least one event",
			},
		},
		Duration:    duration,
		BlastRadius: 1.0,
	}
}

// StoreLatencyExperiment slows every gateway call and expects creations to keep succeeding.
func StoreLatencyExperiment(t Targets, duration, latency time.Duration) Experiment {
	return Experiment{
		Name:       "store-latency-injection",
		Hypothesis: "Sale creation degrades gracefully when the store is slow",
		SteadyState: []Metric{
			{
				Name:      "sale_creation_success_rate",
				Query:     t.Probe.CreationSuccessRate,
				Threshold: Threshold{Operator: ">", Value: 99.0},
			},
		},
		Method: []Action{
			{
				Type:   "latency",
				Target: "sales-store",
				Execute: func(ctx context.Context) error {
					t.Repository.SetLatency(latency)
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "latency",
				Target: "sales-store",
				Execute: func(ctx context.Context) error {
					t.Repository.SetLatency(0)
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "sale_creation_success_rate",
				Condition: func(v float64) bool { return v > 95.0 },
				Message:   "Sale creation success rate should remain above 95%",
			},
		},
		Duration:    duration,
		BlastRadius: 1.0,
	}
}
