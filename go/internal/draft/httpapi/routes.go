package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the JSON API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/leagues", func(r chi.Router) {
		r.Post("/", h.CreateLeague)
		r.Get("/", h.ListLeagues)
		r.Get("/{id}", h.GetLeague)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/picks", h.RecordPick)
			r.Post("/start", h.StartDraft)
			r.Post("/pause", h.PauseDraft)
			r.Post("/resume", h.ResumeDraft)
			r.Put("/sync-mode", h.SetSyncMode)
			r.Post("/sync", h.SyncNow)
			r.Get("/recommendations", h.Recommendations)
		})
	})

	r.Get("/engine", h.EngineStatus)
}

// Healthz reports liveness only.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
