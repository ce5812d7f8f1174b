// Package memory implements the ledgerstore.Store port entirely in
// process memory. It is the default adapter: the whole engine runs
// dependency-free for single runs and deterministic-replay tests.
package memory

import (
	"context"
	"sync"

	"github.com/roundtable-rtc/engine/internal/domain/ledger"
	"github.com/roundtable-rtc/engine/internal/port/ledgerstore"
)

var _ ledgerstore.Store = (*Store)(nil)

// Store is an in-memory, append-only ledger event store.
type Store struct {
	mu     sync.RWMutex
	events []ledger.Event
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{}
}

// Append records ev. Satisfies both ledgerstore.Store and, structurally,
// ledger.Sink, so a *Store can back a ledger.Ledger directly.
func (s *Store) Append(_ context.Context, ev ledger.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Range returns persisted events with Seq in [from, to].
func (s *Store) Range(_ context.Context, from, to uint64) ([]ledger.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ledger.Event, 0, len(s.events))
	for _, ev := range s.events {
		if ev.Seq < from {
			continue
		}
		if to != 0 && ev.Seq > to {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
