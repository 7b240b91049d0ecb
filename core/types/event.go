package types

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// EventRecord is a committed event as published to subscribers and the
// durable event log.
type EventRecord struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Operation  string            `json:"operation"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  int64             `json:"timestamp"`
}
