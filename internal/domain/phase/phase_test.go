package phase

import "testing"

func TestSequencerFullCycle(t *testing.T) {
	s := Sequencer{RevisionCycles: 2, StakeRounds: 3}

	got := s.Initial()
	want := []Phase{
		{KindPropose, 0},
		{KindFeedback, 1},
		{KindRevise, 1},
		{KindFeedback, 2},
		{KindRevise, 2},
		{KindStake, 1},
		{KindStake, 2},
		{KindStake, 3},
		{KindFinalize, 0},
	}

	for i, w := range want {
		if got != w {
			t.Fatalf("step %d: expected %+v, got %+v", i, w, got)
		}
		got = s.Next(got)
	}
}

func TestSequencerZeroRevisionCyclesSkipsToStake(t *testing.T) {
	s := Sequencer{RevisionCycles: 0, StakeRounds: 1}
	if got := s.Next(s.Initial()); got.Kind != KindStake {
		t.Fatalf("expected STAKE, got %+v", got)
	}
}

func TestSequencerZeroStakeRoundsSkipsToFinalize(t *testing.T) {
	s := Sequencer{RevisionCycles: 0, StakeRounds: 0}
	if got := s.Next(s.Initial()); got.Kind != KindFinalize {
		t.Fatalf("expected FINALIZE, got %+v", got)
	}
}

func TestFinalizeIsAbsorbing(t *testing.T) {
	s := Sequencer{RevisionCycles: 1, StakeRounds: 1}
	fin := Phase{Kind: KindFinalize, Index: 0}
	if got := s.Next(fin); got != fin {
		t.Fatalf("expected FINALIZE to be absorbing, got %+v", got)
	}
}

func TestPhaseStringFormatting(t *testing.T) {
	if got := (Phase{KindStake, 2}).String(); got != "STAKE_2" {
		t.Fatalf("expected STAKE_2, got %s", got)
	}
	if got := (Phase{KindPropose, 0}).String(); got != "PROPOSE" {
		t.Fatalf("expected PROPOSE, got %s", got)
	}
}

func TestAdmissibleTable(t *testing.T) {
	cases := []struct {
		k      Kind
		a      Action
		expect bool
	}{
		{KindPropose, ActionSubmitProposal, true},
		{KindPropose, ActionSubmitFeedback, false},
		{KindFeedback, ActionSubmitFeedback, true},
		{KindFeedback, ActionSubmitRevision, false},
		{KindRevise, ActionSubmitRevision, true},
		{KindStake, ActionStakeAdd, true},
		{KindStake, ActionSubmitProposal, false},
		{KindFinalize, ActionSignalReady, false},
	}
	for _, c := range cases {
		if got := Admissible(c.k, c.a); got != c.expect {
			t.Errorf("Admissible(%s, %s) = %v, want %v", c.k, c.a, got, c.expect)
		}
	}
}
