package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/roundtable-rtc/engine/internal/config"
	"github.com/roundtable-rtc/engine/internal/domain/agent"
	"github.com/roundtable-rtc/engine/internal/domain/issue"
)

// loadRoster reads a JSON array of agents from path and builds a Roster.
func loadRoster(path string) (*agent.Roster, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from an operator-supplied flag
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}

	var agents []agent.Agent
	if err := json.Unmarshal(data, &agents); err != nil {
		return nil, fmt.Errorf("parse roster file: %w", err)
	}

	roster, err := agent.NewRoster(agents)
	if err != nil {
		return nil, fmt.Errorf("build roster: %w", err)
	}
	return roster, nil
}

// loadIssue reads an issue document from path. A missing id is filled in
// with a fresh uuid (ad hoc runs need not hand-author one); if
// AssignedAgents is empty it defaults to every agent in roster, and
// Mechanism always comes from the run's resolved configuration rather
// than the document, since the mechanism is a property of the engine
// run, not the decision itself.
func loadIssue(path string, roster *agent.Roster, mech config.Mechanism) (issue.Issue, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from an operator-supplied flag
	if err != nil {
		return issue.Issue{}, fmt.Errorf("read issue file: %w", err)
	}

	var iss issue.Issue
	if err := json.Unmarshal(data, &iss); err != nil {
		return issue.Issue{}, fmt.Errorf("parse issue file: %w", err)
	}

	if iss.ID == "" {
		iss.ID = uuid.NewString()
	}
	if len(iss.AssignedAgents) == 0 {
		iss.AssignedAgents = roster.UIDs()
	}
	iss.Mechanism = mech

	return iss, nil
}
