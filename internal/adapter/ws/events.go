package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/roundtable-rtc/engine/internal/port/broadcast"
)

var _ broadcast.Broadcaster = (*Hub)(nil)

// Event type constants for WebSocket messages. These mirror the ledger's
// own event type strings so an observer can dispatch on the same tag a
// replayed ledger entry would carry.
const (
	EventPhaseTransition = "phase_transition"
	EventProposalSubmit  = "proposal_accepted"
	EventRevisionRecord  = "revision_recorded"
	EventFeedbackRecord  = "feedback_recorded"
	EventFinalize        = "finalize"
)

// LedgerEvent is the payload shape broadcast for a single committed
// ledger entry. Observers connect as unauthenticated, read-only clients
// and are subject to the same blind-staking visibility rule as
// query_state: in-round STAKE events are withheld until the round closes.
type LedgerEvent struct {
	Seq     uint64         `json:"seq"`
	Tick    uint64         `json:"tick"`
	Phase   string         `json:"phase"`
	AgentID string         `json:"agent_id,omitempty"`
	Type    string         `json:"event_type"`
	Message string         `json:"message,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
