// Package stake implements the Stake Registry and Conviction Engine: the
// atomic stake ledger and the conviction-weighted scoring function used
// for FINALIZE.
package stake

// Kind distinguishes mandatory self-stakes (never withdrawn, only
// retargeted on revision) from voluntary stakes placed during STAKE
// rounds.
type Kind string

const (
	KindMandatorySelf Kind = "mandatory-self"
	KindVoluntary     Kind = "voluntary"
)

// Stake is a single atomic stake record. Conviction accrues per record,
// never per agent: two stakes from the same agent on the same proposal
// accrue independently by their own origin ticks.
type Stake struct {
	ID         string `json:"id"`
	Agent      string `json:"agent"`
	Proposal   string `json:"proposal"`
	Amount     int    `json:"amount"`
	OriginTick uint64 `json:"origin_tick"`
	LastTick   uint64 `json:"last_tick"` // tick of most recent add/switch, for tie-break
	Rounds     int    `json:"rounds"`    // r: consecutive rounds held
	Kind       Kind   `json:"kind"`
}
