package messagequeue

import (
	"encoding/json"
	"fmt"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation
// (future-proof for new message types).
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	if subject != SubjectRoundtableEvents {
		return nil
	}

	// roundtable.events carries either a phase_transition or finalize
	// payload; both are permissive maps at the wire level, so structural
	// validation only confirms the event_type discriminator is present.
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	if envelope.EventType == "" {
		return fmt.Errorf("schema validation failed for %s: missing event_type", subject)
	}
	return nil
}
