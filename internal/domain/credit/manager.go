// Package credit implements the Credit Manager: the only component
// authorized to mutate Conviction Point balances and stake custody. Every
// mutating method appends its own ledger event before returning, so a
// caller observing only the ledger can reconstruct balances.
package credit

import (
	"context"
	"sync"

	"github.com/roundtable-rtc/engine/internal/domain"
	"github.com/roundtable-rtc/engine/internal/domain/ledger"
	"github.com/roundtable-rtc/engine/internal/domain/stake"
)

// Manager holds per-agent balances and delegates stake bookkeeping to a
// stake.Registry.
type Manager struct {
	mu            sync.Mutex
	balances      map[string]int
	maximumCredit int // 0 means unbounded
	stakes        *stake.Registry
	ledger        *ledger.Ledger
}

// NewManager constructs a Manager with zero balances, bound to the given
// stake registry and ledger.
func NewManager(maximumCredit int, stakes *stake.Registry, lg *ledger.Ledger) *Manager {
	return &Manager{
		balances:      make(map[string]int),
		maximumCredit: maximumCredit,
		stakes:        stakes,
		ledger:        lg,
	}
}

// Balance returns an agent's current liquid balance.
func (m *Manager) Balance(agent string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[agent]
}

// Award credits an agent's balance. Rejects with ErrMaxCreditExceeded if
// it would push the balance past MaximumCredit.
func (m *Manager) Award(ctx context.Context, agent string, amount int, reason string, tick uint64, issueID string) (ledger.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.balances[agent] + amount
	if m.maximumCredit > 0 && next > m.maximumCredit {
		return ledger.Event{}, domain.ErrMaxCreditExceeded
	}
	m.balances[agent] = next

	return m.ledger.Append(ctx, tick, "", agent, ledger.TypeCreditAward, reason, map[string]any{
		"amount":  amount,
		"issue":   issueID,
		"balance": next,
	})
}

// AttemptDeduct atomically deducts amount from agent's balance, logging
// credit_burn on success or insufficient_credit on failure. Returns
// whether the deduction succeeded.
func (m *Manager) AttemptDeduct(ctx context.Context, agent string, amount int, reason string, tick uint64, issueID string) (bool, error) {
	m.mu.Lock()
	if m.balances[agent] < amount {
		m.mu.Unlock()
		if _, err := m.ledger.Append(ctx, tick, "", agent, ledger.TypeInsufficientCredit, reason, map[string]any{
			"amount":    amount,
			"available": m.Balance(agent),
			"issue":     issueID,
		}); err != nil {
			return false, err
		}
		return false, nil
	}
	m.balances[agent] -= amount
	next := m.balances[agent]
	m.mu.Unlock()

	if _, err := m.ledger.Append(ctx, tick, "", agent, ledger.TypeCreditBurn, reason, map[string]any{
		"amount":  amount,
		"issue":   issueID,
		"balance": next,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// StakeToProposal deducts amount from agent's balance and records a stake
// in the registry, emitting stake_recorded. Returns whether the stake
// succeeded (false on insufficient liquid CP).
func (m *Manager) StakeToProposal(ctx context.Context, agent, proposalID string, amount int, kind stake.Kind, tick uint64, issueID string) (*stake.Stake, bool, error) {
	ok, err := m.AttemptDeduct(ctx, agent, amount, "stake", tick, issueID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	s := m.stakes.Add(agent, proposalID, amount, kind, tick)

	if _, err := m.ledger.Append(ctx, tick, "", agent, ledger.TypeStakeRecorded, "", map[string]any{
		"stake_id": s.ID,
		"proposal": proposalID,
		"amount":   amount,
		"kind":     string(kind),
		"issue":    issueID,
	}); err != nil {
		return nil, false, err
	}

	return s, true, nil
}

// TransferStake reassigns a mandatory self-stake to a newly revised
// proposal, preserving its accrued r.
func (m *Manager) TransferStake(ctx context.Context, stakeID, newProposalID string, tick uint64, issueID string) error {
	if err := m.stakes.Retarget(stakeID, newProposalID, tick); err != nil {
		return err
	}
	_, err := m.ledger.Append(ctx, tick, "", "", ledger.TypeConvictionUpdated, "self-stake transferred on revision", map[string]any{
		"stake_id": stakeID,
		"proposal": newProposalID,
		"issue":    issueID,
	})
	return err
}

// SwitchVoluntary moves a voluntary stake to a new proposal, resetting r.
func (m *Manager) SwitchVoluntary(ctx context.Context, agent, stakeID, newProposalID string, tick uint64, issueID string) error {
	s, ok := m.stakes.Get(stakeID)
	if !ok {
		return domain.ErrStakeNotFound
	}
	previousRounds := s.Rounds
	fromProposal := s.Proposal

	if err := m.stakes.SwitchVoluntary(stakeID, newProposalID, tick); err != nil {
		return err
	}

	_, err := m.ledger.Append(ctx, tick, "", agent, ledger.TypeConvictionSwitched, "", map[string]any{
		"stake_id":        stakeID,
		"from":            fromProposal,
		"to":              newProposalID,
		"previous_rounds": previousRounds,
		"issue":           issueID,
	})
	return err
}

// WithdrawVoluntary returns a voluntary stake's amount to the agent's
// balance and removes it from the registry.
func (m *Manager) WithdrawVoluntary(ctx context.Context, agent, stakeID string, tick uint64, issueID string) error {
	amount, err := m.stakes.WithdrawVoluntary(stakeID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.balances[agent] += amount
	next := m.balances[agent]
	m.mu.Unlock()

	_, err = m.ledger.Append(ctx, tick, "", agent, ledger.TypeStakeWithdrawn, "voluntary withdrawal", map[string]any{
		"stake_id": stakeID,
		"amount":   amount,
		"balance":  next,
		"issue":    issueID,
	})
	return err
}

// BurnAllStakes is invoked by FINALIZE: every remaining stake produces a
// credit_burn event with reason stake_burn. Balances are not credited
// back; stakes are destroyed.
func (m *Manager) BurnAllStakes(ctx context.Context, tick uint64, issueID string) error {
	for _, s := range m.stakes.All() {
		if _, err := m.ledger.Append(ctx, tick, "FINALIZE", s.Agent, ledger.TypeCreditBurn, "stake_burn", map[string]any{
			"stake_id": s.ID,
			"proposal": s.Proposal,
			"amount":   s.Amount,
			"issue":    issueID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// AutoStakeTap is used during REVISE only: if liquid balance is less than
// needed, it withdraws the minimum CP from the agent's own mandatory
// self-stake to cover the deficit. Returns false if still short after
// tapping the self-stake.
func (m *Manager) AutoStakeTap(ctx context.Context, agent string, needed int, tick uint64, issueID string) (bool, error) {
	m.mu.Lock()
	liquid := m.balances[agent]
	m.mu.Unlock()

	if liquid >= needed {
		ok, err := m.AttemptDeduct(ctx, agent, needed, "revision_cost", tick, issueID)
		return ok, err
	}

	deficit := needed - liquid
	var self *stake.Stake
	for _, s := range m.stakes.StakesByAgent(agent) {
		if s.Kind == stake.KindMandatorySelf {
			self = s
			break
		}
	}
	if self == nil || self.Amount < deficit {
		return false, nil
	}

	if err := m.stakes.ReduceAmount(self.ID, deficit); err != nil {
		return false, err
	}
	if _, err := m.ledger.Append(ctx, tick, "", agent, ledger.TypeStakeWithdrawn, "auto_tap", map[string]any{
		"stake_id": self.ID,
		"amount":   deficit,
		"issue":    issueID,
	}); err != nil {
		return false, err
	}

	ok, err := m.AttemptDeduct(ctx, agent, liquid, "revision_cost", tick, issueID)
	return ok, err
}
