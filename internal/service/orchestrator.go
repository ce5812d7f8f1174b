// Package service composes the domain components into the Orchestrator:
// the process-wide driver that exposes the action API to agents, advances
// ticks, dispatches to the Phase Engine, and commits all changes through
// the Ledger and Credit Manager.
package service

import (
	"context"
	"encoding/binary"
	"math"
	"sort"
	"sync"
	"time"

	rtcotel "github.com/roundtable-rtc/engine/internal/adapter/otel"
	"github.com/roundtable-rtc/engine/internal/config"
	"github.com/roundtable-rtc/engine/internal/domain"
	"github.com/roundtable-rtc/engine/internal/domain/agent"
	"github.com/roundtable-rtc/engine/internal/domain/credit"
	"github.com/roundtable-rtc/engine/internal/domain/issue"
	"github.com/roundtable-rtc/engine/internal/domain/ledger"
	"github.com/roundtable-rtc/engine/internal/domain/phase"
	"github.com/roundtable-rtc/engine/internal/domain/proposal"
	"github.com/roundtable-rtc/engine/internal/domain/stake"
	"github.com/roundtable-rtc/engine/internal/port/broadcast"
	"github.com/roundtable-rtc/engine/internal/port/cache"
)

// Result is the outcome tag of an action, per the external action API.
type Result string

const (
	ResultOk                         Result = "Ok"
	ResultRejectedInvalidPhase       Result = "RejectedInvalidPhase"
	ResultRejectedUnauthenticated    Result = "RejectedUnauthenticated"
	ResultRejectedInsufficientCredit Result = "RejectedInsufficientCredit"
	ResultRejectedQuotaExceeded      Result = "RejectedQuotaExceeded"
	ResultRejectedSemantic           Result = "RejectedSemantic"
	ResultRejectedNotFound           Result = "RejectedNotFound"
)

// Outcome is returned by every Action API call.
type Outcome struct {
	Result Result `json:"result"`
	Reason string `json:"reason,omitempty"`
}

func ok() Outcome                              { return Outcome{Result: ResultOk} }
func rejected(r Result, reason string) Outcome { return Outcome{Result: r, Reason: reason} }

// Orchestrator is the composition root for the five domain components. It
// serializes every action through a single mutex-guarded commit path,
// matching the single-writer ledger pattern required for deterministic
// replay.
type Orchestrator struct {
	commitMu sync.Mutex

	mech   config.Mechanism
	roster *agent.Roster
	issue  issue.Issue

	Ledger    *ledger.Ledger
	Credit    *credit.Manager
	Stakes    *stake.Registry
	Proposals *proposal.Graph
	sequencer phase.Sequencer

	current phase.Phase
	tick    uint64

	completed     map[string]bool
	thinkTicks    map[string]int
	feedbackCount map[string]int

	stakeVisibilityWatermark uint64
	nextBroadcastSeq         uint64

	broadcaster broadcast.Broadcaster
	scoreCache  cache.Cache
	metrics     *rtcotel.Metrics
}

// SetScoreCache attaches a cache for stake.Registry.Score lookups. Safe to
// call once at startup; nil (the default) disables caching and every
// lookup falls through to the registry directly.
func (o *Orchestrator) SetScoreCache(c cache.Cache) {
	o.scoreCache = c
}

// SetMetrics attaches the engine's metric instruments. Safe to call once
// at startup; nil (the default) disables metric recording.
func (o *Orchestrator) SetMetrics(m *rtcotel.Metrics) {
	o.metrics = m
}

// recordOutcome increments the action counter matching outcome's result.
func (o *Orchestrator) recordOutcome(ctx context.Context, outcome Outcome) {
	if o.metrics == nil {
		return
	}
	if outcome.Result == ResultOk {
		o.metrics.ActionsSubmitted.Add(ctx, 1)
	} else {
		o.metrics.ActionsRejected.Add(ctx, 1)
	}
}

// New constructs an Orchestrator for a fresh issue: enrolls every roster
// agent with StandardInvitePayment CP and starts at PROPOSE, tick 0.
func New(ctx context.Context, mech config.Mechanism, roster *agent.Roster, iss issue.Issue, lg *ledger.Ledger, broadcaster broadcast.Broadcaster) (*Orchestrator, error) {
	stakes := stake.NewRegistry(stake.NewConviction(mech.MaxConvictionMultiplier, mech.ConvictionTargetFraction, mech.ConvictionSaturationRounds))
	creditMgr := credit.NewManager(mech.MaximumCredit, stakes, lg)
	graph := proposal.NewGraph(iss.ID, 0)

	o := &Orchestrator{
		mech:          mech,
		roster:        roster,
		issue:         iss,
		Ledger:        lg,
		Credit:        creditMgr,
		Stakes:        stakes,
		Proposals:     graph,
		sequencer:     phase.Sequencer{RevisionCycles: mech.RevisionCycles, StakeRounds: mech.StakeRounds},
		current:       phase.Sequencer{RevisionCycles: mech.RevisionCycles, StakeRounds: mech.StakeRounds}.Initial(),
		completed:     make(map[string]bool),
		thinkTicks:    make(map[string]int),
		feedbackCount: make(map[string]int),
		broadcaster:   broadcaster,
	}

	for _, uid := range roster.UIDs() {
		if _, err := creditMgr.Award(ctx, uid, mech.StandardInvitePayment, "enrollment", 0, iss.ID); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() phase.Phase { return o.current }

// Tick returns the current logical tick.
func (o *Orchestrator) Tick() uint64 { return o.tick }

func (o *Orchestrator) authenticate(credential string) (agent.Agent, Outcome, bool) {
	a, ok := o.roster.Authenticate(credential)
	if !ok {
		return agent.Agent{}, rejected(ResultRejectedUnauthenticated, "unknown credential"), false
	}
	if !o.issue.IsAssigned(a.UID) {
		return agent.Agent{}, rejected(ResultRejectedNotFound, "agent not assigned to issue"), false
	}
	return a, Outcome{}, true
}

func (o *Orchestrator) emitRejected(ctx context.Context, uid string, typ ledger.Type, reason string) {
	_, _ = o.Ledger.Append(ctx, o.tick, o.current.String(), uid, typ, reason, nil)
}

// SubmitProposal handles submit_proposal(credential, body).
func (o *Orchestrator) SubmitProposal(ctx context.Context, credential string, body proposal.Body) (outcome Outcome, err error) {
	ctx, span := rtcotel.StartActionSpan(ctx, "submit_proposal", "", o.issue.ID)
	defer span.End()

	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	defer o.flushBroadcast(ctx)
	defer func() { o.recordOutcome(ctx, outcome) }()

	a, rej, okAuth := o.authenticate(credential)
	if !okAuth {
		return rej, nil
	}
	rtcotel.SetActionAgent(span, a.UID)
	if !phase.Admissible(o.current.Kind, phase.ActionSubmitProposal) {
		o.emitRejected(ctx, a.UID, ledger.TypeProposalRejected, "invalid_phase")
		return rejected(ResultRejectedInvalidPhase, "submit_proposal not valid in "+o.current.String()), nil
	}

	p, err := o.Proposals.Submit(a.UID, o.issue.ID, body, o.tick)
	if err != nil {
		o.emitRejected(ctx, a.UID, ledger.TypeProposalRejected, "duplicate_proposal")
		return rejected(ResultRejectedSemantic, "agent already has an active proposal"), nil
	}

	_, staked, err := o.Credit.StakeToProposal(ctx, a.UID, p.ID, o.mech.ProposalSelfStake, stake.KindMandatorySelf, o.tick, o.issue.ID)
	if err != nil {
		return Outcome{}, err
	}
	if !staked {
		// proposal_rejected: insufficient CP for self-stake.
		o.emitRejected(ctx, a.UID, ledger.TypeProposalRejected, "insufficient_cp_for_stake")
		return rejected(ResultRejectedInsufficientCredit, "insufficient CP for self-stake"), nil
	}

	if _, err := o.Ledger.Append(ctx, o.tick, o.current.String(), a.UID, ledger.TypeProposalAccepted, "", map[string]any{"proposal": p.ID}); err != nil {
		return Outcome{}, err
	}

	o.markCompleted(a.UID)
	return ok(), nil
}

// SignalReady handles signal_ready(credential). Idempotent after the
// agent has completed their phase obligation.
func (o *Orchestrator) SignalReady(ctx context.Context, credential string) (outcome Outcome, err error) {
	ctx, span := rtcotel.StartActionSpan(ctx, "signal_ready", "", o.issue.ID)
	defer span.End()

	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	defer o.flushBroadcast(ctx)
	defer func() { o.recordOutcome(ctx, outcome) }()

	a, rej, okAuth := o.authenticate(credential)
	if !okAuth {
		return rej, nil
	}
	rtcotel.SetActionAgent(span, a.UID)
	if !phase.Admissible(o.current.Kind, phase.ActionSignalReady) {
		return rejected(ResultRejectedInvalidPhase, "signal_ready not valid in "+o.current.String()), nil
	}
	if o.completed[a.UID] {
		return ok(), nil
	}

	switch o.current.Kind {
	case phase.KindPropose:
		return o.kickOutPropose(ctx, a.UID)
	default:
		if _, err := o.Ledger.Append(ctx, o.tick, o.current.String(), a.UID, ledger.TypeAgentReady, "", nil); err != nil {
			return Outcome{}, err
		}
		o.markCompleted(a.UID)
		return ok(), nil
	}
}

// SubmitFeedback handles submit_feedback(credential, target, body).
func (o *Orchestrator) SubmitFeedback(ctx context.Context, credential, target, body string) (outcome Outcome, err error) {
	ctx, span := rtcotel.StartActionSpan(ctx, "submit_feedback", "", o.issue.ID)
	defer span.End()

	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	defer o.flushBroadcast(ctx)
	defer func() { o.recordOutcome(ctx, outcome) }()

	a, rej, okAuth := o.authenticate(credential)
	if !okAuth {
		return rej, nil
	}
	rtcotel.SetActionAgent(span, a.UID)
	if !phase.Admissible(o.current.Kind, phase.ActionSubmitFeedback) {
		return rejected(ResultRejectedInvalidPhase, "submit_feedback not valid in "+o.current.String()), nil
	}

	own, hasOwn := o.Proposals.Active(a.UID)
	if hasOwn && own.ID == target {
		o.emitRejected(ctx, a.UID, ledger.TypeFeedbackRecorded, "target_is_self")
		return rejected(ResultRejectedSemantic, "cannot give feedback on own proposal"), nil
	}
	if _, exists := o.Proposals.Get(target); !exists {
		return rejected(ResultRejectedNotFound, "unknown proposal"), nil
	}
	if len(body) > o.mech.FeedbackCharLimit {
		return rejected(ResultRejectedQuotaExceeded, "feedback exceeds character limit"), nil
	}
	if o.feedbackCount[a.UID] >= o.mech.MaxFeedbackPerAgent {
		return rejected(ResultRejectedQuotaExceeded, "feedback limit reached"), nil
	}

	if o.mech.FeedbackStake > 0 {
		okStake, err := o.Credit.AttemptDeduct(ctx, a.UID, o.mech.FeedbackStake, "feedback_stake", o.tick, o.issue.ID)
		if err != nil {
			return Outcome{}, err
		}
		if !okStake {
			return rejected(ResultRejectedInsufficientCredit, "insufficient CP for feedback stake"), nil
		}
	}

	if _, err := o.Ledger.Append(ctx, o.tick, o.current.String(), a.UID, ledger.TypeFeedbackRecorded, "", map[string]any{
		"target": target,
		"body":   body,
	}); err != nil {
		return Outcome{}, err
	}
	o.feedbackCount[a.UID]++
	o.markCompleted(a.UID)
	return ok(), nil
}

// SubmitRevision handles submit_revision(credential, new_body).
func (o *Orchestrator) SubmitRevision(ctx context.Context, credential string, newBody proposal.Body) (outcome Outcome, err error) {
	ctx, span := rtcotel.StartActionSpan(ctx, "submit_revision", "", o.issue.ID)
	defer span.End()

	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	defer o.flushBroadcast(ctx)
	defer func() { o.recordOutcome(ctx, outcome) }()

	a, rej, okAuth := o.authenticate(credential)
	if !okAuth {
		return rej, nil
	}
	rtcotel.SetActionAgent(span, a.UID)
	if !phase.Admissible(o.current.Kind, phase.ActionSubmitRevision) {
		return rejected(ResultRejectedInvalidPhase, "submit_revision not valid in "+o.current.String()), nil
	}

	current, hasOwn := o.Proposals.Active(a.UID)
	if !hasOwn {
		return rejected(ResultRejectedNotFound, "no active proposal to revise"), nil
	}

	delta := proposal.Dissimilarity(current.Body.Text(), newBody.Text())
	cost := int(math.Round(float64(o.mech.ProposalSelfStake) * delta))

	if cost > 0 {
		okPaid, err := o.Credit.AutoStakeTap(ctx, a.UID, cost, o.tick, o.issue.ID)
		if err != nil {
			return Outcome{}, err
		}
		if !okPaid {
			o.emitRejected(ctx, a.UID, ledger.TypeProposalRejected, "insufficient_cp_for_revision")
			return rejected(ResultRejectedInsufficientCredit, "insufficient CP for revision cost"), nil
		}
	}

	old, next, err := o.Proposals.Revise(a.UID, newBody, o.tick)
	if err != nil {
		return Outcome{}, err
	}

	for _, s := range o.Stakes.StakesByAgent(a.UID) {
		if s.Kind == stake.KindMandatorySelf && s.Proposal == old.ID {
			if err := o.Credit.TransferStake(ctx, s.ID, next.ID, o.tick, o.issue.ID); err != nil {
				return Outcome{}, err
			}
		}
	}

	if _, err := o.Ledger.Append(ctx, o.tick, o.current.String(), a.UID, ledger.TypeRevisionRecorded, "", map[string]any{
		"from":  old.ID,
		"to":    next.ID,
		"delta": delta,
		"cost":  cost,
	}); err != nil {
		return Outcome{}, err
	}

	o.markCompleted(a.UID)
	return ok(), nil
}

// StakeAdd handles stake_add(credential, proposal, amount).
func (o *Orchestrator) StakeAdd(ctx context.Context, credential, proposalID string, amount int) (outcome Outcome, err error) {
	ctx, span := rtcotel.StartActionSpan(ctx, "stake_add", "", o.issue.ID)
	defer span.End()

	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	defer o.flushBroadcast(ctx)
	defer func() { o.recordOutcome(ctx, outcome) }()

	a, rej, okAuth := o.authenticate(credential)
	if !okAuth {
		return rej, nil
	}
	rtcotel.SetActionAgent(span, a.UID)
	if !phase.Admissible(o.current.Kind, phase.ActionStakeAdd) {
		return rejected(ResultRejectedInvalidPhase, "stake_add not valid in "+o.current.String()), nil
	}
	if _, exists := o.Proposals.Get(proposalID); !exists {
		return rejected(ResultRejectedNotFound, "unknown proposal"), nil
	}
	if amount <= 0 {
		return rejected(ResultRejectedSemantic, "amount must be positive"), nil
	}

	_, staked, err := o.Credit.StakeToProposal(ctx, a.UID, proposalID, amount, stake.KindVoluntary, o.tick, o.issue.ID)
	if err != nil {
		return Outcome{}, err
	}
	if !staked {
		return rejected(ResultRejectedInsufficientCredit, "insufficient CP"), nil
	}

	o.markCompleted(a.UID)
	return ok(), nil
}

// StakeSwitch handles stake_switch(credential, stake_id, new_proposal).
func (o *Orchestrator) StakeSwitch(ctx context.Context, credential, stakeID, newProposalID string) (outcome Outcome, err error) {
	ctx, span := rtcotel.StartActionSpan(ctx, "stake_switch", "", o.issue.ID)
	defer span.End()

	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	defer o.flushBroadcast(ctx)
	defer func() { o.recordOutcome(ctx, outcome) }()

	a, rej, okAuth := o.authenticate(credential)
	if !okAuth {
		return rej, nil
	}
	rtcotel.SetActionAgent(span, a.UID)
	if !phase.Admissible(o.current.Kind, phase.ActionStakeSwitch) {
		return rejected(ResultRejectedInvalidPhase, "stake_switch not valid in "+o.current.String()), nil
	}
	s, exists := o.Stakes.Get(stakeID)
	if !exists {
		return rejected(ResultRejectedNotFound, "unknown stake"), nil
	}
	if s.Agent != a.UID {
		return rejected(ResultRejectedSemantic, "stake does not belong to caller"), nil
	}
	if _, exists := o.Proposals.Get(newProposalID); !exists {
		return rejected(ResultRejectedNotFound, "unknown target proposal"), nil
	}

	if err := o.Credit.SwitchVoluntary(ctx, a.UID, stakeID, newProposalID, o.tick, o.issue.ID); err != nil {
		if domain.ErrStakeImmutable == err {
			return rejected(ResultRejectedSemantic, "cannot switch a mandatory stake"), nil
		}
		return Outcome{}, err
	}

	o.markCompleted(a.UID)
	return ok(), nil
}

// StakeWithdraw handles stake_withdraw(credential, stake_id).
func (o *Orchestrator) StakeWithdraw(ctx context.Context, credential, stakeID string) (outcome Outcome, err error) {
	ctx, span := rtcotel.StartActionSpan(ctx, "stake_withdraw", "", o.issue.ID)
	defer span.End()

	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	defer o.flushBroadcast(ctx)
	defer func() { o.recordOutcome(ctx, outcome) }()

	a, rej, okAuth := o.authenticate(credential)
	if !okAuth {
		return rej, nil
	}
	rtcotel.SetActionAgent(span, a.UID)
	if !phase.Admissible(o.current.Kind, phase.ActionStakeWithdraw) {
		return rejected(ResultRejectedInvalidPhase, "stake_withdraw not valid in "+o.current.String()), nil
	}
	s, exists := o.Stakes.Get(stakeID)
	if !exists {
		return rejected(ResultRejectedNotFound, "unknown stake"), nil
	}
	if s.Agent != a.UID {
		return rejected(ResultRejectedSemantic, "stake does not belong to caller"), nil
	}

	if err := o.Credit.WithdrawVoluntary(ctx, a.UID, stakeID, o.tick, o.issue.ID); err != nil {
		if domain.ErrStakeImmutable == err {
			return rejected(ResultRejectedSemantic, "cannot withdraw a mandatory stake"), nil
		}
		return Outcome{}, err
	}

	o.markCompleted(a.UID)
	return ok(), nil
}

func (o *Orchestrator) markCompleted(uid string) {
	o.completed[uid] = true
}

// kickOutPropose substitutes the canonical NoAction proposal for an agent
// that never submitted one, applying the self-stake, per the kick-out
// substitution rule for PROPOSE.
func (o *Orchestrator) kickOutPropose(ctx context.Context, uid string) (Outcome, error) {
	p, err := o.Proposals.AssignNoAction(uid, o.tick)
	if err != nil {
		return Outcome{}, err
	}

	_, staked, err := o.Credit.StakeToProposal(ctx, uid, p.ID, o.mech.ProposalSelfStake, stake.KindMandatorySelf, o.tick, o.issue.ID)
	if err != nil {
		return Outcome{}, err
	}
	if !staked {
		if _, err := o.Ledger.Append(ctx, o.tick, o.current.String(), uid, ledger.TypeInsufficientCredit, "noaction_self_stake", map[string]any{"proposal": p.ID}); err != nil {
			return Outcome{}, err
		}
	}

	o.markCompleted(uid)
	return ok(), nil
}

// AdvanceTick is the privileged tick() operation: an external scheduler
// invokes it to move logical time forward by one. It processes kick-outs
// for any agent whose think-tick counter saturates, checks whether every
// assigned agent has completed the current phase's obligation, and
// transitions phases (including FINALIZE) when so.
func (o *Orchestrator) AdvanceTick(ctx context.Context) error {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	defer o.flushBroadcast(ctx)

	if o.current.IsTerminal() {
		return nil
	}

	ctx, span := rtcotel.StartTickSpan(ctx, o.issue.ID, o.tick+1, o.current.String())
	defer span.End()

	if o.metrics != nil {
		start := time.Now()
		defer func() { o.metrics.TickDuration.Record(ctx, time.Since(start).Seconds()) }()
	}

	o.tick++

	for _, uid := range o.issue.AssignedAgents {
		if o.completed[uid] {
			continue
		}
		o.thinkTicks[uid]++
		if o.thinkTicks[uid] >= o.mech.MaxThinkTicks {
			if err := o.kickOut(ctx, uid); err != nil {
				return err
			}
		}
	}

	if o.allCompleted() {
		return o.transition(ctx)
	}
	return nil
}

func (o *Orchestrator) allCompleted() bool {
	for _, uid := range o.issue.AssignedAgents {
		if !o.completed[uid] {
			return false
		}
	}
	return true
}

// kickOut applies the default action for an inactive agent per phase.
func (o *Orchestrator) kickOut(ctx context.Context, uid string) error {
	if o.metrics != nil {
		o.metrics.KickOuts.Add(ctx, 1)
	}
	if o.mech.KickOutPenalty > 0 {
		if _, err := o.Credit.AttemptDeduct(ctx, uid, o.mech.KickOutPenalty, "kick_out_penalty", o.tick, o.issue.ID); err != nil {
			return err
		}
	}

	if _, err := o.Ledger.Append(ctx, o.tick, o.current.String(), uid, ledger.TypePhaseTimeout, "kick_out", nil); err != nil {
		return err
	}

	switch o.current.Kind {
	case phase.KindPropose:
		if _, err := o.kickOutPropose(ctx, uid); err != nil {
			return err
		}
	default:
		// FEEDBACK, REVISE, STAKE: treated as signal_ready with no action.
		o.markCompleted(uid)
	}
	return nil
}

// transition advances the Phase Engine to the next phase, resetting
// per-phase round state, calling AdvanceRound at the end of each STAKE
// round, and running FINALIZE's winner selection when the sequence ends.
func (o *Orchestrator) transition(ctx context.Context) error {
	prev := o.current
	next := o.sequencer.Next(prev)

	if o.metrics != nil {
		o.metrics.PhaseTransitions.Add(ctx, 1)
	}

	if prev.Kind == phase.KindStake {
		o.Stakes.AdvanceRound()
		if o.scoreCache != nil {
			_ = o.scoreCache.Clear(ctx)
		}
	}

	if _, err := o.Ledger.Append(ctx, o.tick, prev.String(), "", ledger.TypePhaseTransition, "", map[string]any{
		"from": prev.String(),
		"to":   next.String(),
	}); err != nil {
		return err
	}

	o.current = next
	o.completed = make(map[string]bool)
	o.thinkTicks = make(map[string]int)
	if next.Kind == phase.KindFeedback {
		o.feedbackCount = make(map[string]int)
	}
	if next.Kind == phase.KindStake {
		o.stakeVisibilityWatermark = uint64(o.Ledger.Len())
	}

	if next.Kind == phase.KindFinalize {
		return o.finalize(ctx)
	}
	return nil
}

// finalize computes the winner per the FINALIZE scoring rule and burns
// every remaining stake.
func (o *Orchestrator) finalize(ctx context.Context) error {
	lines := o.Proposals.ActiveLines()

	type scored struct {
		p       *proposal.Proposal
		score   float64
		lastTick uint64
	}
	var scoredLines []scored
	for _, p := range lines {
		scoredLines = append(scoredLines, scored{
			p:        p,
			score:    o.scoreFor(ctx, p.ID),
			lastTick: o.Stakes.LastStakeTick(p.ID),
		})
	}

	sort.Slice(scoredLines, func(i, j int) bool {
		if scoredLines[i].score != scoredLines[j].score {
			return scoredLines[i].score > scoredLines[j].score
		}
		return scoredLines[i].lastTick < scoredLines[j].lastTick
	})

	var winner scored
	if len(scoredLines) > 0 {
		winner = scoredLines[0]
	}

	payload := map[string]any{
		"winner": winner.p,
		"score":  winner.score,
	}
	if winner.p != nil {
		payload["winner_proposal_id"] = winner.p.ID
	}

	if _, err := o.Ledger.Append(ctx, o.tick, o.current.String(), "", ledger.TypeFinalize, "", payload); err != nil {
		return err
	}

	if err := o.Credit.BurnAllStakes(ctx, o.tick, o.issue.ID); err != nil {
		return err
	}

	o.Ledger.Close()
	if o.metrics != nil {
		o.metrics.IssuesFinalized.Add(ctx, 1)
	}
	return nil
}

// QueryState returns the caller's visible ledger slice, respecting the
// blind-staking rule: during a STAKE round, in-round stake events are
// hidden until the round that follows begins.
func (o *Orchestrator) QueryState(ctx context.Context, credential string) ([]ledger.Event, Outcome, error) {
	ctx, span := rtcotel.StartActionSpan(ctx, "query_state", "", o.issue.ID)
	defer span.End()
	_ = ctx
	a, rej, okAuth := o.authenticate(credential)
	if !okAuth {
		return nil, rej, nil
	}
	rtcotel.SetActionAgent(span, a.UID)

	all := o.Ledger.All()
	if o.current.Kind != phase.KindStake {
		return all, ok(), nil
	}

	out := make([]ledger.Event, 0, len(all))
	for _, ev := range all {
		if ev.Seq <= o.stakeVisibilityWatermark || !isBlindStakeType(ev.Type) {
			out = append(out, ev)
		}
	}
	return out, ok(), nil
}

// scoreFor returns stake.Registry.Score(proposalID), served from the score
// cache when one is attached. A STAKE round can be polled by the
// standings endpoint many times before it advances, and Score
// walks every stake on the proposal, so caching it here avoids
// recomputing the same tally on every poll. The cache is cleared whenever
// a STAKE round advances, so a cached value never survives past the
// round it was computed in.
func (o *Orchestrator) scoreFor(ctx context.Context, proposalID string) float64 {
	if o.scoreCache == nil {
		return o.Stakes.Score(proposalID)
	}

	key := "score:" + proposalID
	if data, found, err := o.scoreCache.Get(ctx, key); err == nil && found && len(data) == 8 {
		return math.Float64frombits(binary.LittleEndian.Uint64(data))
	}

	score := o.Stakes.Score(proposalID)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(score))
	_ = o.scoreCache.Set(ctx, key, buf, 5*time.Minute)
	return score
}

// Standing reports a proposal's current conviction score, as surfaced by
// the live standings view during a STAKE round.
type Standing struct {
	ProposalID string  `json:"proposal_id"`
	Score      float64 `json:"score"`
}

// Standings returns the current score of every active proposal line. It
// is safe to poll repeatedly within a STAKE round; repeated polls hit the
// score cache instead of re-walking the stake registry.
func (o *Orchestrator) Standings(ctx context.Context) []Standing {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()

	lines := o.Proposals.ActiveLines()
	out := make([]Standing, 0, len(lines))
	for _, p := range lines {
		out = append(out, Standing{ProposalID: p.ID, Score: o.scoreFor(ctx, p.ID)})
	}
	return out
}

// flushBroadcast pushes newly visible ledger events to the broadcaster,
// in seq order, honoring the same blind-staking rule QueryState applies:
// a blind STAKE-round event holds up everything after it until the
// round completes and the watermark advances past it.
func (o *Orchestrator) flushBroadcast(ctx context.Context) {
	if o.broadcaster == nil {
		return
	}
	for _, ev := range o.Ledger.All() {
		if ev.Seq < o.nextBroadcastSeq+1 {
			continue
		}
		visible := o.current.Kind != phase.KindStake || ev.Seq <= o.stakeVisibilityWatermark || !isBlindStakeType(ev.Type)
		if !visible {
			break
		}
		o.broadcaster.BroadcastEvent(ctx, string(ev.Type), ev)
		o.nextBroadcastSeq = ev.Seq
	}
}

func isBlindStakeType(t ledger.Type) bool {
	switch t {
	case ledger.TypeStakeRecorded, ledger.TypeStakeSwitched, ledger.TypeStakeWithdrawn,
		ledger.TypeConvictionUpdated, ledger.TypeConvictionSwitched:
		return true
	default:
		return false
	}
}

// Summary computes a read-only rollup of the run for reporting.
type Summary struct {
	TotalEvents int            `json:"total_events"`
	EventCounts map[string]int `json:"event_counts"`
	FirstTick   uint64         `json:"first_tick"`
	LastTick    uint64         `json:"last_tick"`
	Finalized   bool           `json:"finalized"`
}

// Summarize computes a Summary from the ledger on demand.
func (o *Orchestrator) Summarize() Summary {
	events := o.Ledger.All()
	s := Summary{EventCounts: make(map[string]int)}
	s.TotalEvents = len(events)
	for i, ev := range events {
		s.EventCounts[string(ev.Type)]++
		if i == 0 {
			s.FirstTick = ev.Tick
		}
		s.LastTick = ev.Tick
	}
	s.Finalized = o.Ledger.Closed()
	return s
}
