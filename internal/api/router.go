package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

const defaultWSPath = "/ws"

// buildRouter mounts every route under /api/v1.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withRequestID, s.withAccessLog, s.recoverPanics, s.withCORS, limitBody)

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Get("/health", s.handleHealth)
		v1.Get("/metrics", s.handleMetrics)

		v1.Get("/programs", s.handleListPrograms)
		v1.Route("/programs/{key}", func(slot chi.Router) {
			slot.Get("/", s.handleGetProgram)
			slot.Put("/", s.handleAssignProgram)
			slot.Delete("/", s.handleRemoveProgram)
		})

		v1.Get("/shows", s.handleListShows)
		v1.Post("/shows", s.handleCreateShow)
		v1.Route("/shows/{id}", func(show chi.Router) {
			show.Get("/", s.handleGetShow)
			show.Patch("/", s.handleUpdateShow)
			show.Delete("/", s.handleDeleteShow)
			show.Get("/playbacks", s.handleListShowPlaybacks)
		})

		path := s.wsCfg.Path
		if path == "" {
			path = defaultWSPath
		}
		v1.Get(path, s.handleWebSocket)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": s.version})
}
