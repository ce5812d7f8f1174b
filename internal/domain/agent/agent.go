// Package agent defines the Agent domain entity: an identified participant
// that submits actions bound by credential. Balances are not carried here;
// they live in the credit manager.
package agent

import "github.com/roundtable-rtc/engine/internal/domain"

// Agent is a participant enrolled in a consensus run. It is created at
// invitation, enrolled on authentication, and assigned to at most one
// active issue for the lifetime of the run.
type Agent struct {
	UID         string            `json:"uid"`
	DisplayName string            `json:"display_name"`
	Credential  string            `json:"-"` // opaque secret, never serialized
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Roster is the enrolled, immutable-after-construction set of agents for a
// run, indexed both by UID and by credential for authentication.
type Roster struct {
	byUID        map[string]Agent
	byCredential map[string]string // credential -> UID
	order        []string          // UID enrollment order, for deterministic iteration
}

// NewRoster builds a Roster from an ordered agent list. Duplicate UIDs or
// credentials are a construction error, not a runtime one: the roster is
// assembled once, externally, before an Orchestrator exists.
func NewRoster(agents []Agent) (*Roster, error) {
	r := &Roster{
		byUID:        make(map[string]Agent, len(agents)),
		byCredential: make(map[string]string, len(agents)),
	}
	for _, a := range agents {
		if a.UID == "" {
			return nil, domain.ErrValidation
		}
		if _, exists := r.byUID[a.UID]; exists {
			return nil, domain.ErrConflict
		}
		if _, exists := r.byCredential[a.Credential]; exists {
			return nil, domain.ErrConflict
		}
		r.byUID[a.UID] = a
		r.byCredential[a.Credential] = a.UID
		r.order = append(r.order, a.UID)
	}
	return r, nil
}

// Authenticate resolves a credential to its enrolled Agent.
func (r *Roster) Authenticate(credential string) (Agent, bool) {
	uid, ok := r.byCredential[credential]
	if !ok {
		return Agent{}, false
	}
	return r.byUID[uid], true
}

// Get looks up an agent by UID.
func (r *Roster) Get(uid string) (Agent, bool) {
	a, ok := r.byUID[uid]
	return a, ok
}

// UIDs returns enrolled agent UIDs in enrollment order.
func (r *Roster) UIDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports the number of enrolled agents.
func (r *Roster) Len() int {
	return len(r.order)
}
