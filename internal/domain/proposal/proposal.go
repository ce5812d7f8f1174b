// Package proposal implements the versioned proposal graph: an arena of
// proposal records linked by parent IDs, plus the dissimilarity
// measure used to price revisions.
package proposal

import "fmt"

// NoActionAuthor is the shared author identity for the canonical NoAction
// proposal: one instance per issue, assigned to any agent that fails to
// submit a distinct proposal.
const NoActionAuthor = "__noaction__"

// Body is the substantive content of a proposal version.
type Body struct {
	Title     string `json:"title"`
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
	Impact    string `json:"impact,omitempty"`
	Risk      string `json:"risk,omitempty"`
	Notes     string `json:"notes,omitempty"`
	Refs      string `json:"refs,omitempty"`
}

// Text concatenates the fields that participate in dissimilarity scoring.
// Impact/Risk/Notes/Refs are annotations, not the substance being revised.
func (b Body) Text() string {
	return b.Title + "\n" + b.Action + "\n" + b.Rationale
}

// Proposal is a single immutable version in an author's proposal line.
type Proposal struct {
	ID          string `json:"id"` // P<author>@v<n>
	Author      string `json:"author"`
	IssueID     string `json:"issue_id"`
	ParentID    string `json:"parent_id,omitempty"` // "" for v1
	Revision    int    `json:"revision"`             // 1-based
	Body        Body   `json:"body"`
	CreatedTick uint64 `json:"created_tick"`
	UpdatedTick uint64 `json:"updated_tick"`
	Archived    bool   `json:"archived"`
	Active      bool   `json:"active"`
}

// ID formats a proposal identifier for a given author and revision.
func ID(author string, revision int) string {
	return fmt.Sprintf("P%s@v%d", author, revision)
}
