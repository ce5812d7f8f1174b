package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateValidPhaseTransition(t *testing.T) {
	data := []byte(`{"event_type":"phase_transition","issue_id":"i1","tick":3,"from_phase":"PROPOSE","to_phase":"FEEDBACK"}`)
	if err := Validate(SubjectRoundtableEvents, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateValidFinalize(t *testing.T) {
	data := []byte(`{"event_type":"finalize","issue_id":"i1","tick":10,"winning_proposal":"P-a1@v2"}`)
	if err := Validate(SubjectRoundtableEvents, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateMissingEventType(t *testing.T) {
	data := []byte(`{"issue_id":"i1"}`)
	err := Validate(SubjectRoundtableEvents, data)
	if err == nil {
		t.Fatal("expected error for missing event_type")
	}
	if !strings.Contains(err.Error(), "missing event_type") {
		t.Fatalf("expected 'missing event_type' in error, got: %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	// Unknown subjects should pass (future-proof).
	data := []byte(`{"foo":"bar"}`)
	if err := Validate("unknown.subject", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	data := []byte(`{not valid json`)
	err := Validate(SubjectRoundtableEvents, data)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("expected 'invalid JSON' in error, got: %v", err)
	}
}
