// Package phase implements the Phase Engine: the finite state machine over
// {PROPOSE, FEEDBACK, REVISE, STAKE, FINALIZE} with configured repetitions
// of (FEEDBACK, REVISE) and STAKE, modeled as tagged variants rather than
// a deep inheritance hierarchy.
package phase

import "fmt"

// Kind tags which state in the machine a Phase represents.
type Kind string

const (
	KindPropose  Kind = "PROPOSE"
	KindFeedback Kind = "FEEDBACK"
	KindRevise   Kind = "REVISE"
	KindStake    Kind = "STAKE"
	KindFinalize Kind = "FINALIZE"
)

// Phase is PROPOSE | FEEDBACK(i) | REVISE(i) | STAKE(j) | FINALIZE. Index
// is 1-based and meaningful only for FEEDBACK/REVISE/STAKE.
type Phase struct {
	Kind  Kind
	Index int
}

// String renders the phase the way it appears in ledger events, e.g.
// "FEEDBACK_2" or "STAKE_1".
func (p Phase) String() string {
	switch p.Kind {
	case KindFeedback, KindRevise, KindStake:
		return fmt.Sprintf("%s_%d", p.Kind, p.Index)
	default:
		return string(p.Kind)
	}
}

// Sequencer computes the phase succession for a run given its configured
// repetition counts.
type Sequencer struct {
	RevisionCycles int
	StakeRounds    int
}

// Initial returns the starting phase, PROPOSE.
func (s Sequencer) Initial() Phase {
	return Phase{Kind: KindPropose, Index: 0}
}

// Next computes the phase that follows current. FINALIZE is absorbing:
// Next(FINALIZE) == FINALIZE.
func (s Sequencer) Next(current Phase) Phase {
	switch current.Kind {
	case KindPropose:
		if s.RevisionCycles > 0 {
			return Phase{Kind: KindFeedback, Index: 1}
		}
		return s.firstStakeOrFinalize()
	case KindFeedback:
		return Phase{Kind: KindRevise, Index: current.Index}
	case KindRevise:
		if current.Index < s.RevisionCycles {
			return Phase{Kind: KindFeedback, Index: current.Index + 1}
		}
		return s.firstStakeOrFinalize()
	case KindStake:
		if current.Index < s.StakeRounds {
			return Phase{Kind: KindStake, Index: current.Index + 1}
		}
		return Phase{Kind: KindFinalize, Index: 0}
	case KindFinalize:
		return current
	default:
		return current
	}
}

func (s Sequencer) firstStakeOrFinalize() Phase {
	if s.StakeRounds > 0 {
		return Phase{Kind: KindStake, Index: 1}
	}
	return Phase{Kind: KindFinalize, Index: 0}
}

// IsTerminal reports whether the phase is FINALIZE.
func (p Phase) IsTerminal() bool {
	return p.Kind == KindFinalize
}

// Action identifies the kind of agent action submitted to the Orchestrator.
type Action string

const (
	ActionSubmitProposal Action = "submit_proposal"
	ActionSignalReady     Action = "signal_ready"
	ActionSubmitFeedback  Action = "submit_feedback"
	ActionSubmitRevision  Action = "submit_revision"
	ActionStakeAdd        Action = "stake_add"
	ActionStakeSwitch     Action = "stake_switch"
	ActionStakeWithdraw   Action = "stake_withdraw"
)

// Admissible reports whether action is valid in the current phase, per
// the action admissibility table.
func Admissible(k Kind, action Action) bool {
	switch k {
	case KindPropose:
		return action == ActionSubmitProposal || action == ActionSignalReady
	case KindFeedback:
		return action == ActionSubmitFeedback || action == ActionSignalReady
	case KindRevise:
		return action == ActionSubmitRevision || action == ActionSignalReady
	case KindStake:
		return action == ActionStakeAdd || action == ActionStakeSwitch || action == ActionStakeWithdraw || action == ActionSignalReady
	default:
		return false
	}
}
