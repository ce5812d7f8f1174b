package ledger

import (
	"context"
	"sync"

	"github.com/roundtable-rtc/engine/internal/domain"
)

// Sink receives a copy of every event appended to the Ledger, in commit
// order. Persistence adapters (memory, postgres) satisfy this interface
// structurally; the Ledger itself holds no opinion about durability.
type Sink interface {
	Append(ctx context.Context, ev Event) error
}

// Ledger is the in-process, mutex-guarded sequencer described by the
// append-only event log contract: append is total-order, events are
// immutable, and no event may be appended once the issue is finalized.
type Ledger struct {
	mu     sync.Mutex
	events []Event
	seq    uint64
	closed bool
	sink   Sink
}

// New constructs an empty Ledger. sink may be nil, in which case events
// are retained only in memory.
func New(sink Sink) *Ledger {
	return &Ledger{sink: sink}
}

// Append assigns the next sequence number to the event, records it, and
// fans it out to the configured Sink. It refuses once the ledger has been
// closed by Finalize.
func (l *Ledger) Append(ctx context.Context, tick uint64, phase string, agentID string, typ Type, message string, payload map[string]any) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return Event{}, domain.ErrLedgerClosed
	}

	l.seq++
	ev := Event{
		Seq:     l.seq,
		Tick:    tick,
		Phase:   phase,
		AgentID: agentID,
		Type:    typ,
		Message: message,
		Payload: payload,
	}
	l.events = append(l.events, ev)

	if l.sink != nil {
		if err := l.sink.Append(ctx, ev); err != nil {
			return Event{}, err
		}
	}

	return ev, nil
}

// Range returns events with seq in [from, to], inclusive. A to of 0 means
// "through the latest event".
func (l *Ledger) Range(from, to uint64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0, len(l.events))
	for _, ev := range l.events {
		if ev.Seq < from {
			continue
		}
		if to != 0 && ev.Seq > to {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// All returns every event recorded so far, in commit order.
func (l *Ledger) All() []Event {
	return l.Range(1, 0)
}

// Len reports the number of events recorded so far.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Close marks the ledger closed; subsequent Append calls fail with
// domain.ErrLedgerClosed. Called once, by Finalize.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

// Closed reports whether the ledger has been closed.
func (l *Ledger) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
