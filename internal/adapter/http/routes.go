package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the Orchestrator's action API on the given chi
// router, letting an external CLI driver or test harness conduct a run
// over HTTP instead of in-process.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": "0.1.0"})
		})

		r.Post("/proposals", h.HandleSubmitProposal)
		r.Post("/ready", h.HandleSignalReady)
		r.Post("/feedback", h.HandleSubmitFeedback)
		r.Post("/revisions", h.HandleSubmitRevision)

		r.Post("/stakes", h.HandleStakeAdd)
		r.Post("/stakes/{id}/switch", h.HandleStakeSwitch)
		r.Post("/stakes/{id}/withdraw", h.HandleStakeWithdraw)

		r.Get("/state", h.HandleQueryState)
		r.Post("/tick", h.HandleTick)
		r.Get("/summary", h.HandleSummary)
		r.Get("/standings", h.HandleStandings)
	})
}
