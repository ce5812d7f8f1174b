package http

import (
	"net/http"

	"github.com/roundtable-rtc/engine/internal/domain/proposal"
	"github.com/roundtable-rtc/engine/internal/service"
)

// credentialHeader carries the agent's opaque secret on every action
// request. There is no session or token exchange: the credential itself
// is the bearer of identity for the lifetime of the run.
const credentialHeader = "X-Agent-Credential"

// Handlers adapts the Orchestrator's action API to HTTP.
type Handlers struct {
	Orchestrator *service.Orchestrator
}

// NewHandlers constructs the HTTP adapter around a running Orchestrator.
func NewHandlers(o *service.Orchestrator) *Handlers {
	return &Handlers{Orchestrator: o}
}

func credential(r *http.Request) string {
	return r.Header.Get(credentialHeader)
}

// writeOutcome maps a Result to the HTTP status a REST client expects.
// Ok is 200; every rejection is reported as 200 with the Outcome body so
// callers can distinguish "the action was processed and rejected" from
// transport failure, matching the Action API's closed result set.
func writeOutcome(w http.ResponseWriter, outcome service.Outcome) {
	writeJSON(w, http.StatusOK, outcome)
}

type submitProposalRequest struct {
	Body proposal.Body `json:"body"`
}

// HandleSubmitProposal handles POST /proposals.
func (h *Handlers) HandleSubmitProposal(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[submitProposalRequest](w, r, 1<<20)
	if !ok {
		return
	}
	outcome, err := h.Orchestrator.SubmitProposal(r.Context(), credential(r), req.Body)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeOutcome(w, outcome)
}

// HandleSignalReady handles POST /ready.
func (h *Handlers) HandleSignalReady(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.Orchestrator.SignalReady(r.Context(), credential(r))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeOutcome(w, outcome)
}

type submitFeedbackRequest struct {
	Target string `json:"target"`
	Body   string `json:"body"`
}

// HandleSubmitFeedback handles POST /feedback.
func (h *Handlers) HandleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[submitFeedbackRequest](w, r, 1<<16)
	if !ok {
		return
	}
	if !requireField(w, req.Target, "target") {
		return
	}
	outcome, err := h.Orchestrator.SubmitFeedback(r.Context(), credential(r), req.Target, req.Body)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeOutcome(w, outcome)
}

type submitRevisionRequest struct {
	Body proposal.Body `json:"body"`
}

// HandleSubmitRevision handles POST /revisions.
func (h *Handlers) HandleSubmitRevision(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[submitRevisionRequest](w, r, 1<<20)
	if !ok {
		return
	}
	outcome, err := h.Orchestrator.SubmitRevision(r.Context(), credential(r), req.Body)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeOutcome(w, outcome)
}

type stakeAddRequest struct {
	Proposal string `json:"proposal"`
	Amount   int    `json:"amount"`
}

// HandleStakeAdd handles POST /stakes.
func (h *Handlers) HandleStakeAdd(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[stakeAddRequest](w, r, 1<<12)
	if !ok {
		return
	}
	if !requireField(w, req.Proposal, "proposal") {
		return
	}
	outcome, err := h.Orchestrator.StakeAdd(r.Context(), credential(r), req.Proposal, req.Amount)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeOutcome(w, outcome)
}

type stakeSwitchRequest struct {
	NewProposal string `json:"new_proposal"`
}

// HandleStakeSwitch handles POST /stakes/{id}/switch.
func (h *Handlers) HandleStakeSwitch(w http.ResponseWriter, r *http.Request) {
	stakeID := urlParam(r, "id")
	req, ok := readJSON[stakeSwitchRequest](w, r, 1<<12)
	if !ok {
		return
	}
	if !requireField(w, req.NewProposal, "new_proposal") {
		return
	}
	outcome, err := h.Orchestrator.StakeSwitch(r.Context(), credential(r), stakeID, req.NewProposal)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeOutcome(w, outcome)
}

// HandleStakeWithdraw handles POST /stakes/{id}/withdraw.
func (h *Handlers) HandleStakeWithdraw(w http.ResponseWriter, r *http.Request) {
	stakeID := urlParam(r, "id")
	outcome, err := h.Orchestrator.StakeWithdraw(r.Context(), credential(r), stakeID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeOutcome(w, outcome)
}

type queryStateResponse struct {
	Events []any          `json:"events"`
	Result service.Result `json:"result"`
	Reason string         `json:"reason,omitempty"`
}

// HandleQueryState handles GET /state.
func (h *Handlers) HandleQueryState(w http.ResponseWriter, r *http.Request) {
	events, outcome, err := h.Orchestrator.QueryState(r.Context(), credential(r))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if outcome.Result != service.ResultOk {
		writeJSON(w, http.StatusOK, queryStateResponse{Result: outcome.Result, Reason: outcome.Reason})
		return
	}
	out := make([]any, len(events))
	for i, ev := range events {
		out[i] = ev
	}
	writeJSON(w, http.StatusOK, queryStateResponse{Events: out, Result: service.ResultOk})
}

// HandleTick handles POST /tick. This is the privileged scheduler action;
// it carries no agent credential.
func (h *Handlers) HandleTick(w http.ResponseWriter, r *http.Request) {
	if err := h.Orchestrator.AdvanceTick(r.Context()); err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tick":  h.Orchestrator.Tick(),
		"phase": h.Orchestrator.Phase().String(),
	})
}

// HandleSummary handles GET /summary.
func (h *Handlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Orchestrator.Summarize())
}

// HandleStandings handles GET /standings, the live per-proposal score view
// agents poll during a STAKE round.
func (h *Handlers) HandleStandings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Orchestrator.Standings(r.Context()))
}
