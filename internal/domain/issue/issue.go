// Package issue defines the Issue domain entity: a single decision
// instance with a fixed assigned agent set and one eventual winner.
package issue

import "github.com/roundtable-rtc/engine/internal/config"

// Issue is the subject of a single consensus run.
type Issue struct {
	ID               string          `json:"id"`
	ProblemStatement string          `json:"problem_statement"`
	Background       string          `json:"background,omitempty"`
	Indicators       []string        `json:"indicators,omitempty"`
	Goals            []string        `json:"goals,omitempty"`
	Attachments      []string        `json:"attachments,omitempty"`
	AssignedAgents   []string        `json:"assigned_agents"`
	Mechanism        config.Mechanism `json:"mechanism"`
	CreatedTick      uint64          `json:"created_tick"`
	Terminal         bool            `json:"terminal"`
}

// IsAssigned reports whether the given agent UID is a member of this
// issue's fixed agent set.
func (i Issue) IsAssigned(uid string) bool {
	for _, a := range i.AssignedAgents {
		if a == uid {
			return true
		}
	}
	return false
}
