package state

import (
	"sync"

	"github.com/kubelane/kubelane/internal/types"
)

// Batch is an immutable snapshot of the ingested events. The ID is a
// monotonically increasing identity used as a memoization key by the
// engine: two Batch values with the same ID hold the same events.
type Batch struct {
	ID     uint64
	Events []types.TimelineEvent
}

// EventStore receives events from the external source and serves
// immutable batch snapshots to the engine.
type EventStore interface {
	Append(events ...types.TimelineEvent) error
	Batch() Batch
	ByRef(ref types.ResourceRef) []types.TimelineEvent
	EventCount() int
}

// MemoryStore is the in-memory EventStore.
type MemoryStore struct {
	mu      sync.RWMutex
	events  []types.TimelineEvent
	byRef   map[string][]types.TimelineEvent
	batchID uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byRef: make(map[string][]types.TimelineEvent),
	}
}

func (s *MemoryStore) Append(events ...types.TimelineEvent) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		s.events = append(s.events, ev)
		key := ev.Ref().Key()
		s.byRef[key] = append(s.byRef[key], ev)
	}
	s.batchID++
	return nil
}

// Batch returns a snapshot of all events. The returned slice is a copy;
// callers may hold it across recomputations without seeing later
// appends.
func (s *MemoryStore) Batch() Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]types.TimelineEvent, len(s.events))
	copy(events, s.events)
	return Batch{ID: s.batchID, Events: events}
}

func (s *MemoryStore) ByRef(ref types.ResourceRef) []types.TimelineEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.byRef[ref.Key()]
	events := make([]types.TimelineEvent, len(stored))
	copy(events, stored)
	return events
}

func (s *MemoryStore) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
