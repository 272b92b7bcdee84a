package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/library"
)

// handleListShows returns every show in the library, sorted by name.
func (s *Server) handleListShows(w http.ResponseWriter, r *http.Request) {
	shows, err := s.library.ListShows(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list shows")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shows": shows, "count": len(shows)})
}

// handleGetShow returns a single show by ID or slug.
func (s *Server) handleGetShow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid show ID")
		return
	}

	show, err := s.library.Resolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, library.ErrShowNotFound) {
			writeNotFound(w, "show not found")
			return
		}
		writeInternalError(w, "failed to get show")
		return
	}

	writeJSON(w, http.StatusOK, show)
}

// handleCreateShow creates a new show.
func (s *Server) handleCreateShow(w http.ResponseWriter, r *http.Request) {
	var show library.Show
	if err := json.NewDecoder(r.Body).Decode(&show); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.library.CreateShow(r.Context(), &show); err != nil {
		writeShowError(w, err, "failed to create show")
		return
	}

	writeJSON(w, http.StatusCreated, show)
}

// handleUpdateShow partially updates a show. Fields absent from the body
// keep their current values; cues are replaced as a whole.
func (s *Server) handleUpdateShow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid show ID")
		return
	}

	existing, err := s.library.Resolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, library.ErrShowNotFound) {
			writeNotFound(w, "show not found")
			return
		}
		writeInternalError(w, "failed to get show")
		return
	}

	showID := existing.ID
	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = showID

	if err := s.library.UpdateShow(r.Context(), existing); err != nil {
		writeShowError(w, err, "failed to update show")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteShow removes a show and its playback history. Programs
// already running are unaffected.
func (s *Server) handleDeleteShow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid show ID")
		return
	}

	show, err := s.library.Resolve(r.Context(), id)
	if err == nil {
		err = s.library.DeleteShow(r.Context(), show.ID)
	}
	if err != nil {
		if errors.Is(err, library.ErrShowNotFound) {
			writeNotFound(w, "show not found")
			return
		}
		writeInternalError(w, "failed to delete show")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListShowPlaybacks returns the most recent playbacks of a show.
//
// Query parameters:
//   - limit: maximum number of records (default 20, at most 200)
func (s *Server) handleListShowPlaybacks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid show ID")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	show, err := s.library.Resolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, library.ErrShowNotFound) {
			writeNotFound(w, "show not found")
			return
		}
		writeInternalError(w, "failed to get show")
		return
	}

	playbacks, err := s.library.Repository().ListPlaybacks(r.Context(), show.ID, limit)
	if err != nil {
		writeInternalError(w, "failed to list playbacks")
		return
	}
	if playbacks == nil {
		playbacks = []library.Playback{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"playbacks": playbacks, "count": len(playbacks)})
}

// writeShowError maps registry write errors to responses.
func writeShowError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, library.ErrShowExists):
		writeConflict(w, err.Error())
	case errors.Is(err, library.ErrShowNotFound):
		writeNotFound(w, "show not found")
	case errors.Is(err, library.ErrInvalidShow) || errors.Is(err, library.ErrInvalidName) ||
		errors.Is(err, library.ErrInvalidSlug) || errors.Is(err, library.ErrInvalidCue):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		writeInternalError(w, fallback)
	}
}
