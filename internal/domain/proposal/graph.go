package proposal

import (
	"sync"

	"github.com/roundtable-rtc/engine/internal/domain"
)

// Graph is an arena of Proposal records indexed by ID string; parent links
// are parent ID strings, never pointers. Exactly one version per author
// line is active at any time.
type Graph struct {
	mu        sync.RWMutex
	byID      map[string]*Proposal
	activeFor map[string]string // author -> active proposal ID
}

// NewGraph constructs an empty proposal graph, pre-seeded with the
// canonical NoAction proposal for the given issue.
func NewGraph(issueID string, tick uint64) *Graph {
	g := &Graph{
		byID:      make(map[string]*Proposal),
		activeFor: make(map[string]string),
	}
	noAction := &Proposal{
		ID:      ID(NoActionAuthor, 1),
		Author:  NoActionAuthor,
		IssueID: issueID,
		Body: Body{
			Title:  "No Action",
			Action: "Take no action.",
		},
		Revision:    1,
		CreatedTick: tick,
		UpdatedTick: tick,
		Active:      true,
	}
	g.byID[noAction.ID] = noAction
	g.activeFor[NoActionAuthor] = noAction.ID
	return g
}

// NoActionID returns the canonical NoAction proposal ID for this graph.
func (g *Graph) NoActionID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.activeFor[NoActionAuthor]
}

// Submit creates v1 for an author. Fails with domain.ErrConflict if the
// author already has an active proposal.
func (g *Graph) Submit(author, issueID string, body Body, tick uint64) (*Proposal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.activeFor[author]; exists {
		return nil, domain.ErrConflict
	}

	p := &Proposal{
		ID:          ID(author, 1),
		Author:      author,
		IssueID:     issueID,
		Revision:    1,
		Body:        body,
		CreatedTick: tick,
		UpdatedTick: tick,
		Active:      true,
	}
	g.byID[p.ID] = p
	g.activeFor[author] = p.ID
	return p, nil
}

// AssignNoAction assigns author to the canonical NoAction line. It fails
// with domain.ErrConflict if the author already has an active proposal
// (including a prior NoAction assignment, since Submit and AssignNoAction
// share the activeFor map).
func (g *Graph) AssignNoAction(author string, tick uint64) (*Proposal, error) {
	g.mu.RLock()
	noActionID := g.activeFor[NoActionAuthor]
	_, hasOwn := g.activeFor[author]
	g.mu.RUnlock()

	if hasOwn {
		return nil, domain.ErrConflict
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.activeFor[author] = noActionID
	return g.byID[noActionID], nil
}

// Active returns the author's current active version.
func (g *Graph) Active(author string) (*Proposal, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.activeFor[author]
	if !ok {
		return nil, false
	}
	p := g.byID[id]
	return p, p != nil
}

// Get returns a proposal by ID, active or archived.
func (g *Graph) Get(id string) (*Proposal, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.byID[id]
	return p, ok
}

// Revise archives the author's current active version and creates the
// next one, linked by ParentID. Callers are responsible for the CP
// accounting (RevisionCost, auto-stake-tap) before calling this: Revise
// only mutates the graph.
func (g *Graph) Revise(author string, body Body, tick uint64) (*Proposal, *Proposal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	currentID, ok := g.activeFor[author]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	current := g.byID[currentID]
	if current == nil {
		return nil, nil, domain.ErrNotFound
	}

	current.Archived = true
	current.Active = false
	current.UpdatedTick = tick

	next := &Proposal{
		ID:          ID(author, current.Revision+1),
		Author:      author,
		IssueID:     current.IssueID,
		ParentID:    current.ID,
		Revision:    current.Revision + 1,
		Body:        body,
		CreatedTick: tick,
		UpdatedTick: tick,
		Active:      true,
	}
	g.byID[next.ID] = next
	g.activeFor[author] = next.ID

	return current, next, nil
}

// Authors returns every author with an active proposal (including
// NoAction adoptees, which share the NoActionAuthor line but are still
// distinct authors keyed by their own UID).
func (g *Graph) Authors() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.activeFor))
	for a := range g.activeFor {
		if a == NoActionAuthor {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ActiveLines returns the active proposal for every distinct line
// (including NoAction once, if adopted by anyone), for FINALIZE scoring.
func (g *Graph) ActiveLines() []*Proposal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := make(map[string]bool)
	out := make([]*Proposal, 0, len(g.activeFor))
	for a, id := range g.activeFor {
		if a == NoActionAuthor || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, g.byID[id])
	}
	return out
}
