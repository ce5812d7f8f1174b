// Package ledgerstore defines the persistence port the Ledger writes
// through. The in-memory adapter is dependency-free and is the default;
// the PostgreSQL adapter provides audit-grade durability.
package ledgerstore

import (
	"context"

	"github.com/roundtable-rtc/engine/internal/domain/ledger"
)

// Store is the append-only persistence port for ledger events.
type Store interface {
	// Append persists a single event. Implementations must preserve
	// Seq ordering; the Ledger guarantees Seq is already monotonic
	// before the call.
	Append(ctx context.Context, ev ledger.Event) error

	// Range returns persisted events with Seq in [from, to], inclusive.
	// to == 0 means "through the latest event".
	Range(ctx context.Context, from, to uint64) ([]ledger.Event, error)
}
