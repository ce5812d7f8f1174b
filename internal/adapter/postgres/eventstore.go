package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roundtable-rtc/engine/internal/domain/ledger"
	"github.com/roundtable-rtc/engine/internal/port/ledgerstore"
)

var _ ledgerstore.Store = (*EventStore)(nil)

// EventStore implements ledgerstore.Store using PostgreSQL (append-only).
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts a new event into the ledger_events table.
func (s *EventStore) Append(ctx context.Context, ev ledger.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload for seq %d: %w", ev.Seq, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO ledger_events (seq, tick, phase, agent_id, event_type, message, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.Seq, ev.Tick, ev.Phase, nullIfEmpty(ev.AgentID), string(ev.Type), ev.Message, payload)
	if err != nil {
		return fmt.Errorf("append event seq %d: %w", ev.Seq, err)
	}
	return nil
}

// eventColumns is the SELECT column list for ledger_events queries.
const eventColumns = `seq, tick, phase, COALESCE(agent_id, ''), event_type, message, payload`

// scanEvent scans a row into a ledger.Event, unmarshaling the stored
// payload back into the generic map the domain layer works with.
func scanEvent(row scannable, ev *ledger.Event) error {
	var payload []byte
	if err := row.Scan(&ev.Seq, &ev.Tick, &ev.Phase, &ev.AgentID, &ev.Type, &ev.Message, &payload); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, &ev.Payload)
}

// Range returns persisted events with Seq in [from, to], ordered by seq
// ascending. to == 0 means "through the latest event".
func (s *EventStore) Range(ctx context.Context, from, to uint64) ([]ledger.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_events WHERE seq >= $1`, eventColumns)
	args := []any{from}
	if to != 0 {
		query += ` AND seq <= $2`
		args = append(args, to)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("range events from %d to %d: %w", from, to, err)
	}
	defer rows.Close()

	var events []ledger.Event
	for rows.Next() {
		var ev ledger.Event
		if err := scanEvent(rows, &ev); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
