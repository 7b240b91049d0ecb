package core

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"gemfarm/core/types"
)

const eventHistoryLimit = 2048

func cloneEventRecord(record types.EventRecord) types.EventRecord {
	cloned := record
	if record.Attributes != nil {
		cloned.Attributes = make(map[string]string, len(record.Attributes))
		for k, v := range record.Attributes {
			cloned.Attributes[k] = v
		}
	}
	return cloned
}

// EventStream fans committed events out to live subscribers and keeps a
// bounded history so reconnecting clients can resume from a cursor.
type EventStream struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan types.EventRecord
	history []types.EventRecord
	limit   int
}

// NewEventStream creates a stream retaining at most limit records. A
// non-positive limit selects the default.
func NewEventStream(limit int) *EventStream {
	if limit <= 0 {
		limit = eventHistoryLimit
	}
	return &EventStream{subs: make(map[uint64]chan types.EventRecord), limit: limit}
}

// Resume continues numbering after seq, typically the last sequence found in
// the durable event log.
func (s *EventStream) Resume(seq uint64) {
	s.mu.Lock()
	if seq > s.seq {
		s.seq = seq
	}
	s.mu.Unlock()
}

// Sequence returns the last assigned sequence number.
func (s *EventStream) Sequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// assign stamps sequence numbers and cursors onto records in order.
func (s *EventStream) assign(records []types.EventRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		s.seq++
		records[i].Sequence = s.seq
		records[i].Cursor = strconv.FormatUint(s.seq, 10)
	}
}

// publish records history and broadcasts to subscribers without blocking.
// Slow subscribers miss updates and must resubscribe from their cursor.
func (s *EventStream) publish(records []types.EventRecord) int {
	if len(records) == 0 {
		return 0
	}
	s.mu.Lock()
	for _, record := range records {
		s.history = append(s.history, cloneEventRecord(record))
	}
	if len(s.history) > s.limit {
		excess := len(s.history) - s.limit
		trimmed := make([]types.EventRecord, s.limit)
		copy(trimmed, s.history[excess:])
		s.history = trimmed
	}
	// Sends stay under the lock so a concurrent cancel cannot close a
	// channel mid-send.
	dropped := 0
	for _, ch := range s.subs {
		for _, record := range records {
			select {
			case ch <- cloneEventRecord(record):
			default:
				dropped++
			}
		}
	}
	s.mu.Unlock()
	return dropped
}

// Subscribe registers a subscriber for events after the supplied cursor. The
// returned backlog holds retained events the caller has not seen yet.
func (s *EventStream) Subscribe(ctx context.Context, cursor string) (<-chan types.EventRecord, func(), []types.EventRecord) {
	updates := make(chan types.EventRecord, 64)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	backlog := make([]types.EventRecord, 0, len(s.history))
	for _, entry := range s.history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneEventRecord(entry))
		}
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			sub, ok := s.subs[id]
			if ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return updates, cancel, backlog
}
