package events

// Event represents a structured state change emitted by the ledger stack.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (RPC, metrics,
// indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// Engines default to it so event wiring stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MultiEmitter fans a single event out to several downstream emitters.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter builds a fan-out emitter. Nil entries are skipped.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	filtered := make([]Emitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return &MultiEmitter{emitters: filtered}
}

// Emit implements the Emitter interface.
func (m *MultiEmitter) Emit(evt Event) {
	if m == nil {
		return
	}
	for _, e := range m.emitters {
		e.Emit(evt)
	}
}
