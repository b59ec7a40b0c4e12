package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"giftledger/core/events"
)

// Emitter counts ledger and treasury events by type. It satisfies
// events.Emitter, so engines stay unaware of the metrics backend.
type Emitter struct {
	counter *prometheus.CounterVec
}

// NewEmitter registers the event counter with the supplied registerer.
// Passing nil uses the default registry.
func NewEmitter(reg prometheus.Registerer) (*Emitter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "giftledger",
		Name:      "events_total",
		Help:      "Ledger and treasury events by type.",
	}, []string{"type"})
	if err := reg.Register(counter); err != nil {
		return nil, err
	}
	return &Emitter{counter: counter}, nil
}

// Emit implements events.Emitter.
func (e *Emitter) Emit(evt events.Event) {
	if e == nil || evt == nil {
		return
	}
	eventType := evt.EventType()
	if eventType == "" {
		return
	}
	e.counter.WithLabelValues(eventType).Inc()
}
