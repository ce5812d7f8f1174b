package service

import (
	"context"

	"github.com/roundtable-rtc/engine/internal/port/broadcast"
)

// MultiBroadcaster fans a ledger event out to every attached Broadcaster,
// letting the Orchestrator drive the ws hub (agents watching this run
// in-process) and the NATS publisher (other processes watching the run
// remotely) through the single Broadcaster slot it holds.
type MultiBroadcaster []broadcast.Broadcaster

// BroadcastEvent implements broadcast.Broadcaster.
func (m MultiBroadcaster) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	for _, b := range m {
		if b != nil {
			b.BroadcastEvent(ctx, eventType, payload)
		}
	}
}
