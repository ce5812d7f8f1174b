package stake

import "testing"

func approxEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestMultiplierAtZeroRoundsIsOne(t *testing.T) {
	c := NewConviction(2.0, 0.98, 5)
	if got := c.Multiplier(0); !approxEqual(got, 1.0, 1e-9) {
		t.Fatalf("expected 1.0, got %v", got)
	}
}

func TestMultiplierApproachesTargetAtSaturation(t *testing.T) {
	c := NewConviction(2.0, 0.98, 5)
	got := c.Multiplier(5)
	// mult(saturation) = 1 + (max-1)*targetFraction = 1 + 1*0.98 = 1.98
	if !approxEqual(got, 1.98, 1e-9) {
		t.Fatalf("expected ~1.98, got %v", got)
	}
}

func TestMultiplierIsPureFunctionOfR(t *testing.T) {
	c := NewConviction(2.0, 0.98, 5)
	if c.Multiplier(3) != c.Multiplier(3) {
		t.Fatal("expected deterministic multiplier")
	}
}

func TestWeightScalesByAmount(t *testing.T) {
	c := NewConviction(2.0, 0.98, 5)
	s := Stake{Amount: 20, Rounds: 5}
	got := c.Weight(s)
	want := 20 * c.Multiplier(5)
	if !approxEqual(got, want, 1e-9) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestScenarioA_ConvictionAfterFiveRoundsUnmoved(t *testing.T) {
	// Scenario A: weight = 20 * 1.98 = 39.6 after 5 saturation rounds.
	c := NewConviction(2.0, 0.98, 5)
	got := c.Weight(Stake{Amount: 20, Rounds: 5})
	if !approxEqual(got, 39.6, 0.05) {
		t.Fatalf("expected ~39.6, got %v", got)
	}
}

func TestScenarioC_ConvictionAtRoundThree(t *testing.T) {
	// Scenario C: 30 * (1 + 1*(1-e^(-k*3))) = 30 * (2 - 0.02^0.6) ≈ 30 * 1.904 ≈ 57.13
	c := NewConviction(2.0, 0.98, 5)
	got := c.Weight(Stake{Amount: 30, Rounds: 3})
	if !approxEqual(got, 57.13, 0.2) {
		t.Fatalf("expected ~57.13, got %v", got)
	}
}
