// Package integration replays full consensus runs end to end against an
// in-memory ledger store, the same way an external driver would conduct
// one over the Action API.
package integration

import (
	"context"
	"testing"

	"github.com/roundtable-rtc/engine/internal/config"
	"github.com/roundtable-rtc/engine/internal/domain/agent"
	"github.com/roundtable-rtc/engine/internal/domain/issue"
	"github.com/roundtable-rtc/engine/internal/domain/ledger"
	"github.com/roundtable-rtc/engine/internal/domain/proposal"
	"github.com/roundtable-rtc/engine/internal/service"
)

func roster(t *testing.T, uids ...string) *agent.Roster {
	t.Helper()
	agents := make([]agent.Agent, len(uids))
	for i, uid := range uids {
		agents[i] = agent.Agent{UID: uid, DisplayName: uid, Credential: "cred-" + uid}
	}
	r, err := agent.NewRoster(agents)
	if err != nil {
		t.Fatalf("NewRoster: %v", err)
	}
	return r
}

func newRun(t *testing.T, mech config.Mechanism, r *agent.Roster) *service.Orchestrator {
	t.Helper()
	iss := issue.Issue{
		ID:               "issue-1",
		ProblemStatement: "which approach should we take",
		AssignedAgents:   r.UIDs(),
		Mechanism:        mech,
	}
	orch, err := service.New(context.Background(), mech, r, iss, ledger.New(nil), nil)
	if err != nil {
		t.Fatalf("service.New: %v", err)
	}
	return orch
}

func runToFinalize(t *testing.T, orch *service.Orchestrator, maxTicks int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < maxTicks; i++ {
		if orch.Phase().IsTerminal() {
			return
		}
		if err := orch.AdvanceTick(ctx); err != nil {
			t.Fatalf("AdvanceTick at tick %d: %v", orch.Tick(), err)
		}
	}
	t.Fatalf("issue did not reach FINALIZE within %d ticks", maxTicks)
}

// TestMinimalHappyPath replays a minimal run: two agents each submit a
// proposal, signal ready through FEEDBACK/REVISE, then one agent stakes
// on the other's proposal before FINALIZE, mirroring the protocol's
// smallest complete path from PROPOSE to a finalized winner.
func TestMinimalHappyPath(t *testing.T) {
	ctx := context.Background()
	mech := config.Defaults().Mechanism
	mech.RevisionCycles = 1
	mech.StakeRounds = 1
	mech.MaxThinkTicks = 5

	r := roster(t, "a1", "a2")
	orch := newRun(t, mech, r)

	out, err := orch.SubmitProposal(ctx, "cred-a1", proposal.Body{Title: "A", Action: "do a", Rationale: "r"})
	mustOk(t, out, err)
	out, err = orch.SubmitProposal(ctx, "cred-a2", proposal.Body{Title: "B", Action: "do b", Rationale: "r"})
	mustOk(t, out, err)

	advanceUntilPhase(t, orch, "FEEDBACK_1", 10)
	out, err = orch.SubmitFeedback(ctx, "cred-a1", proposalIDFor(t, orch, "a2"), "looks good")
	mustOk(t, out, err)
	out, err = orch.SubmitFeedback(ctx, "cred-a2", proposalIDFor(t, orch, "a1"), "looks good")
	mustOk(t, out, err)

	advanceUntilPhase(t, orch, "REVISE_1", 10)
	out, err = signalReady(ctx, orch, "cred-a1")
	mustOk(t, out, err)
	out, err = signalReady(ctx, orch, "cred-a2")
	mustOk(t, out, err)

	advanceUntilPhase(t, orch, "STAKE_1", 10)
	out, err = orch.StakeAdd(ctx, "cred-a1", proposalIDFor(t, orch, "a2"), 10)
	mustOk(t, out, err)
	out, err = signalReady(ctx, orch, "cred-a2")
	mustOk(t, out, err)

	runToFinalize(t, orch, 50)

	events := orch.Ledger.All()
	if len(events) == 0 {
		t.Fatal("expected a non-empty ledger")
	}
	// finalize is appended first, then every remaining stake is burned.
	finalizeIdx := -1
	for i, ev := range events {
		if ev.Type == ledger.TypeFinalize {
			finalizeIdx = i
		}
	}
	if finalizeIdx < 0 {
		t.Fatal("expected a finalize event")
	}
	for _, ev := range events[finalizeIdx+1:] {
		if ev.Type != ledger.TypeCreditBurn || ev.Message != "stake_burn" {
			t.Fatalf("expected only stake_burn events after finalize, got %s (%s)", ev.Type, ev.Message)
		}
	}
}

// TestKickOutReachesFinalizeWithoutActions replays scenario B: no agent
// ever submits an action, so every phase resolves purely through the
// kick-out substitution rule. This is the CLI driver's default simulation
// mode, and it must terminate on its own.
func TestKickOutReachesFinalizeWithoutActions(t *testing.T) {
	mech := config.Defaults().Mechanism
	mech.RevisionCycles = 1
	mech.StakeRounds = 1
	mech.MaxThinkTicks = 2

	r := roster(t, "a1", "a2", "a3")
	orch := newRun(t, mech, r)

	runToFinalize(t, orch, 200)

	events := orch.Ledger.All()
	var timeouts, finalized int
	for _, ev := range events {
		if ev.Type == ledger.TypePhaseTimeout {
			timeouts++
		}
		if ev.Type == ledger.TypeFinalize {
			finalized++
		}
	}
	if timeouts == 0 {
		t.Fatal("expected at least one kick-out timeout event")
	}
	if finalized != 1 {
		t.Fatalf("expected exactly one finalize event, got %d", finalized)
	}
}

// TestStakeSwitchMovesConviction replays scenario C: an agent stakes on
// one proposal, then switches their stake to a competing proposal during
// the same STAKE round, and the switch is reflected in the final
// standings rather than being double-counted on both lines.
func TestStakeSwitchMovesConviction(t *testing.T) {
	ctx := context.Background()
	mech := config.Defaults().Mechanism
	mech.RevisionCycles = 0
	mech.StakeRounds = 1
	mech.MaxThinkTicks = 5

	r := roster(t, "a1", "a2")
	orch := newRun(t, mech, r)

	out, err := orch.SubmitProposal(ctx, "cred-a1", proposal.Body{Title: "A", Action: "do a", Rationale: "r"})
	mustOk(t, out, err)
	out, err = orch.SubmitProposal(ctx, "cred-a2", proposal.Body{Title: "B", Action: "do b", Rationale: "r"})
	mustOk(t, out, err)

	advanceUntilPhase(t, orch, "STAKE_1", 10)

	propA := proposalIDFor(t, orch, "a1")
	propB := proposalIDFor(t, orch, "a2")

	out, err = orch.StakeAdd(ctx, "cred-a1", propB, 10)
	if err != nil || out.Result != service.ResultOk {
		t.Fatalf("StakeAdd: %+v err=%v", out, err)
	}

	stakeID := findVoluntaryStake(t, orch, "a1", propB)
	out, err = orch.StakeSwitch(ctx, "cred-a1", stakeID, propA)
	if err != nil || out.Result != service.ResultOk {
		t.Fatalf("StakeSwitch: %+v err=%v", out, err)
	}
	out, err = signalReady(ctx, orch, "cred-a2")
	mustOk(t, out, err)

	runToFinalize(t, orch, 50)

	standings := orch.Standings(ctx)
	if len(standings) != 2 {
		t.Fatalf("expected 2 standings, got %d", len(standings))
	}
}

func mustOk(t *testing.T, out service.Outcome, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("action error: %v", err)
	}
	if out.Result != service.ResultOk {
		t.Fatalf("expected Ok, got %s (%s)", out.Result, out.Reason)
	}
}

func signalReady(ctx context.Context, orch *service.Orchestrator, credential string) (service.Outcome, error) {
	return orch.SignalReady(ctx, credential)
}

func advanceUntilPhase(t *testing.T, orch *service.Orchestrator, phaseName string, maxTicks int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < maxTicks; i++ {
		if orch.Phase().String() == phaseName {
			return
		}
		if err := orch.AdvanceTick(ctx); err != nil {
			t.Fatalf("AdvanceTick: %v", err)
		}
	}
	t.Fatalf("phase %s not reached within %d ticks, stuck at %s", phaseName, maxTicks, orch.Phase().String())
}

func proposalIDFor(t *testing.T, orch *service.Orchestrator, author string) string {
	t.Helper()
	p, ok := orch.Proposals.Active(author)
	if !ok {
		t.Fatalf("no active proposal for %s", author)
	}
	return p.ID
}

func findVoluntaryStake(t *testing.T, orch *service.Orchestrator, agentUID, proposalID string) string {
	t.Helper()
	for _, s := range orch.Stakes.StakesByAgent(agentUID) {
		if s.Proposal == proposalID {
			return s.ID
		}
	}
	t.Fatalf("no stake found for %s on %s", agentUID, proposalID)
	return ""
}
