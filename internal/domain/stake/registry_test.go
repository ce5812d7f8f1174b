package stake

import (
	"errors"
	"testing"

	"github.com/roundtable-rtc/engine/internal/domain"
)

func newTestRegistry() *Registry {
	return NewRegistry(NewConviction(2.0, 0.98, 5))
}

func TestAddAndScore(t *testing.T) {
	r := newTestRegistry()
	r.Add("a1", "P-p1", 20, KindVoluntary, 1)

	score := r.Score("P-p1")
	// at r=0, mult=1, weight=20, score=sqrt(20)
	if !approxEqual(score, 4.472135955, 1e-6) {
		t.Fatalf("expected sqrt(20), got %v", score)
	}
}

func TestAdvanceRoundIncrementsUntouchedStakes(t *testing.T) {
	r := newTestRegistry()
	s := r.Add("a1", "P-p1", 20, KindVoluntary, 1)

	r.AdvanceRound()

	got, _ := r.Get(s.ID)
	if got.Rounds != 1 {
		t.Fatalf("expected rounds=1 after one AdvanceRound, got %d", got.Rounds)
	}
}

func TestAdvanceRoundCountsRoundOfCreation(t *testing.T) {
	r := newTestRegistry()
	s := r.Add("a1", "P-p1", 20, KindVoluntary, 1)

	// Adding a stake is not a move: Add does not mark it touched, so the
	// first AdvanceRound after creation counts the round it was placed in.
	r.AdvanceRound()
	got, _ := r.Get(s.ID)
	if got.Rounds != 1 {
		t.Fatalf("expected rounds=1, got %d", got.Rounds)
	}
}

func TestSwitchVoluntaryResetsRounds(t *testing.T) {
	r := newTestRegistry()
	s := r.Add("a1", "P-p1", 30, KindVoluntary, 1)

	for i := 0; i < 3; i++ {
		r.AdvanceRound()
	}
	got, _ := r.Get(s.ID)
	if got.Rounds != 3 {
		t.Fatalf("expected rounds=3 before switch, got %d", got.Rounds)
	}

	if err := r.SwitchVoluntary(s.ID, "P-p2", 10); err != nil {
		t.Fatalf("SwitchVoluntary: %v", err)
	}
	got, _ = r.Get(s.ID)
	if got.Rounds != 0 || got.Proposal != "P-p2" {
		t.Fatalf("expected reset to p2 with rounds=0, got %+v", got)
	}

	r.AdvanceRound()
	got, _ = r.Get(s.ID)
	if got.Rounds != 0 {
		t.Fatalf("expected rounds still 0 in the same round as the switch, got %d", got.Rounds)
	}
}

func TestSwitchVoluntaryRejectsMandatoryStake(t *testing.T) {
	r := newTestRegistry()
	s := r.Add("a1", "P-a1@v1", 50, KindMandatorySelf, 1)

	if err := r.SwitchVoluntary(s.ID, "P-other", 2); !errors.Is(err, domain.ErrStakeImmutable) {
		t.Fatalf("expected ErrStakeImmutable, got %v", err)
	}
}

func TestWithdrawVoluntaryReturnsAmountAndRemoves(t *testing.T) {
	r := newTestRegistry()
	s := r.Add("a1", "P-p1", 20, KindVoluntary, 1)

	amount, err := r.WithdrawVoluntary(s.ID)
	if err != nil {
		t.Fatalf("WithdrawVoluntary: %v", err)
	}
	if amount != 20 {
		t.Fatalf("expected 20, got %d", amount)
	}
	if _, ok := r.Get(s.ID); ok {
		t.Fatal("expected stake to be removed from registry")
	}
}

func TestWithdrawVoluntaryRejectsMandatoryStake(t *testing.T) {
	r := newTestRegistry()
	s := r.Add("a1", "P-a1@v1", 50, KindMandatorySelf, 1)

	if _, err := r.WithdrawVoluntary(s.ID); !errors.Is(err, domain.ErrStakeImmutable) {
		t.Fatalf("expected ErrStakeImmutable, got %v", err)
	}
}

func TestRetargetPreservesRounds(t *testing.T) {
	r := newTestRegistry()
	s := r.Add("a1", "P-a1@v1", 50, KindMandatorySelf, 1)
	for i := 0; i < 2; i++ {
		r.AdvanceRound()
	}

	if err := r.Retarget(s.ID, "P-a1@v2", 10); err != nil {
		t.Fatalf("Retarget: %v", err)
	}
	got, _ := r.Get(s.ID)
	if got.Proposal != "P-a1@v2" || got.Rounds != 2 {
		t.Fatalf("expected proposal moved with rounds preserved, got %+v", got)
	}
}

func TestLastStakeTickPicksMaximum(t *testing.T) {
	r := newTestRegistry()
	r.Add("a1", "P-p1", 10, KindVoluntary, 5)
	r.Add("a2", "P-p1", 10, KindVoluntary, 9)

	if got := r.LastStakeTick("P-p1"); got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
}

func TestLockedCPSumsAgentStakes(t *testing.T) {
	r := newTestRegistry()
	r.Add("a1", "P-p1", 10, KindVoluntary, 1)
	r.Add("a1", "P-p2", 15, KindVoluntary, 1)

	if got := r.LockedCP("a1"); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
}

func TestTwoStakesSameAgentSameProposalAccrueIndependently(t *testing.T) {
	r := newTestRegistry()
	s1 := r.Add("a1", "P-p1", 10, KindVoluntary, 1)
	r.AdvanceRound()
	s2 := r.Add("a1", "P-p1", 10, KindVoluntary, 2)
	r.AdvanceRound()

	got1, _ := r.Get(s1.ID)
	got2, _ := r.Get(s2.ID)
	if got1.Rounds != 2 {
		t.Fatalf("expected stake 1 rounds=2, got %d", got1.Rounds)
	}
	if got2.Rounds != 1 {
		t.Fatalf("expected stake 2 rounds=1, got %d", got2.Rounds)
	}
}
