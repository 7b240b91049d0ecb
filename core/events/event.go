package events

// Event is a typed state change raised by the bank and farm engines.
type Event interface {
	EventType() string
}

// Emitter receives events as engines raise them.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
