package workflow

import (
	"context"
	"time"

	"github.com/robertarktes/rail-booking/internal/observability"
)

// Event describes a step transition, or a refused one when Err is set.
type Event struct {
	SessionKey string
	Reference  string
	From       Step
	To         Step
	Err        error
	At         time.Time
}

func (e Event) Rejected() bool {
	return e.Err != nil
}

type Observer interface {
	Observe(ctx context.Context, ev Event)
}

type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// Observers fans out to every non-nil observer.
type Observers []Observer

func (o Observers) Observe(ctx context.Context, ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ctx, ev)
		}
	}
}

// MetricsObserver counts transitions and guard rejections.
type MetricsObserver struct{}

func (MetricsObserver) Observe(_ context.Context, ev Event) {
	if ev.Rejected() {
		observability.GuardRejections.WithLabelValues(ev.From.String()).Inc()
		return
	}
	observability.StepTransitions.WithLabelValues(ev.From.String(), ev.To.String()).Inc()
}
