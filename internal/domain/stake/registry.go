package stake

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/roundtable-rtc/engine/internal/domain"
)

// Registry holds every atomic stake record for an issue and computes
// conviction-weighted scores. It does not move CP: the credit manager
// deducts/credits balances and calls into the Registry to record the
// resulting stake state.
type Registry struct {
	mu         sync.RWMutex
	conviction Conviction
	byID       map[string]*Stake
	touched    map[string]bool // stakes that moved/withdrew this round
	seq        int
}

// NewRegistry constructs an empty Registry bound to the given conviction
// parameters.
func NewRegistry(conviction Conviction) *Registry {
	return &Registry{
		conviction: conviction,
		byID:       make(map[string]*Stake),
		touched:    make(map[string]bool),
	}
}

// Add records a new atomic stake and returns its ID.
func (r *Registry) Add(agent, proposalID string, amount int, kind Kind, tick uint64) *Stake {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	s := &Stake{
		ID:         fmt.Sprintf("stake-%d", r.seq),
		Agent:      agent,
		Proposal:   proposalID,
		Amount:     amount,
		OriginTick: tick,
		LastTick:   tick,
		Rounds:     0,
		Kind:       kind,
	}
	r.byID[s.ID] = s
	return s
}

// Get returns a stake by ID.
func (r *Registry) Get(id string) (*Stake, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// Retarget moves a mandatory self-stake to the author's newly revised
// proposal, preserving its accrued r, per the revision contract ("same
// agent, same line, preserving r").
func (r *Registry) Retarget(stakeID, newProposalID string, tick uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[stakeID]
	if !ok {
		return domain.ErrStakeNotFound
	}
	s.Proposal = newProposalID
	s.LastTick = tick
	return nil
}

// SwitchVoluntary moves a voluntary stake to a new proposal and resets
// r to 0. Mandatory self-stakes cannot be switched this way.
func (r *Registry) SwitchVoluntary(stakeID, newProposalID string, tick uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[stakeID]
	if !ok {
		return domain.ErrStakeNotFound
	}
	if s.Kind != KindVoluntary {
		return domain.ErrStakeImmutable
	}
	s.Proposal = newProposalID
	s.LastTick = tick
	s.Rounds = 0
	r.touched[stakeID] = true
	return nil
}

// WithdrawVoluntary removes a voluntary stake from the registry and
// returns the amount that should be credited back to the agent's balance.
func (r *Registry) WithdrawVoluntary(stakeID string) (amount int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[stakeID]
	if !ok {
		return 0, domain.ErrStakeNotFound
	}
	if s.Kind != KindVoluntary {
		return 0, domain.ErrStakeImmutable
	}
	amount = s.Amount
	delete(r.byID, stakeID)
	delete(r.touched, stakeID)
	return amount, nil
}

// ReduceAmount lowers a stake's locked amount by delta (used by
// auto-stake-tap, which drains CP from a mandatory self-stake rather than
// withdrawing it outright). Returns domain.ErrInsufficientCredit if delta
// exceeds the stake's current amount.
func (r *Registry) ReduceAmount(stakeID string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[stakeID]
	if !ok {
		return domain.ErrStakeNotFound
	}
	if delta > s.Amount {
		return domain.ErrInsufficientCredit
	}
	s.Amount -= delta
	return nil
}

// StakesByAgent returns every stake the given agent holds, regardless of
// proposal.
func (r *Registry) StakesByAgent(agent string) []*Stake {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Stake
	for _, s := range r.byID {
		if s.Agent == agent {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LockedCP returns the sum of amounts held by this agent's stake records.
func (r *Registry) LockedCP(agent string) int {
	total := 0
	for _, s := range r.StakesByAgent(agent) {
		total += s.Amount
	}
	return total
}

// StakesByProposal returns every stake currently targeting the given
// proposal ID.
func (r *Registry) StakesByProposal(proposalID string) []*Stake {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Stake
	for _, s := range r.byID {
		if s.Proposal == proposalID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AdvanceRound is called once at the end of each STAKE round: every stake
// that did not move or withdraw this round has r incremented (capped at
// ConvictionSaturationRounds); stakes that moved were already reset to
// r=0 by SwitchVoluntary at the moment of the event.
func (r *Registry) AdvanceRound() {
	r.mu.Lock()
	defer r.mu.Unlock()

	saturation := r.conviction.SaturationRounds()
	for id, s := range r.byID {
		if r.touched[id] {
			continue
		}
		if s.Rounds < saturation {
			s.Rounds++
		}
	}
	r.touched = make(map[string]bool)
}

// EffectiveWeight computes amount * mult(r) for a single stake.
func (r *Registry) EffectiveWeight(s Stake) float64 {
	return r.conviction.Weight(s)
}

// Score computes √(Σ weight) over every stake currently targeting
// proposalID.
func (r *Registry) Score(proposalID string) float64 {
	stakes := r.StakesByProposal(proposalID)
	sum := 0.0
	for _, s := range stakes {
		sum += r.EffectiveWeight(*s)
	}
	return math.Sqrt(sum)
}

// LastStakeTick returns the maximum origin tick of any add/switch on the
// given proposal, used as the FINALIZE tie-breaker.
func (r *Registry) LastStakeTick(proposalID string) uint64 {
	var last uint64
	for _, s := range r.StakesByProposal(proposalID) {
		if s.LastTick > last {
			last = s.LastTick
		}
	}
	return last
}

// All returns every stake in the registry, ordered by ID.
func (r *Registry) All() []*Stake {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Stake, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
