package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/control"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/library"
)

// maxQueryParamLen limits path and query parameter length.
const maxQueryParamLen = 100

// assignRequest is the request body for PUT /programs/{key}.
type assignRequest struct {
	Show    string         `json:"show"`
	Options map[string]any `json:"options,omitempty"`
}

// handleListPrograms returns every occupied slot.
func (s *Server) handleListPrograms(w http.ResponseWriter, _ *http.Request) {
	programs := s.controller.Programs()
	writeJSON(w, http.StatusOK, map[string]any{"programs": programs, "count": len(programs)})
}

// handleGetProgram returns the assignment in one slot.
func (s *Server) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := control.ValidateKey(key); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	slot, ok := s.controller.Program(key)
	if !ok {
		writeNotFound(w, "no program in slot")
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// handleAssignProgram compiles a show and runs it in the slot, replacing
// whatever ran there.
//
// Status codes:
//   - 200: assigned
//   - 400: bad key or body
//   - 404: the referenced show does not exist
//   - 422: the show exists but cannot be compiled (bad nested show, cycle,
//     missing label track)
func (s *Server) handleAssignProgram(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := control.ValidateKey(key); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Show == "" {
		writeBadRequest(w, "show is required")
		return
	}
	if len(req.Show) > maxQueryParamLen {
		writeBadRequest(w, "show exceeds maximum length")
		return
	}

	// Resolve up front so a missing top-level show is a 404 while a missing
	// nested show stays a compile error.
	if _, err := s.library.Resolve(r.Context(), req.Show); err != nil {
		if errors.Is(err, library.ErrShowNotFound) {
			writeNotFound(w, "show not found")
			return
		}
		writeInternalError(w, "failed to resolve show")
		return
	}

	slot, err := s.controller.Assign(r.Context(), key, req.Show, req.Options, control.SourceAPI)
	if err != nil {
		switch {
		case errors.Is(err, control.ErrInvalidKey):
			writeBadRequest(w, err.Error())
		case library.IsCompileError(err):
			writeCompileError(w, err.Error())
		default:
			s.logger.Error("assigning program failed", "key", key, "show", req.Show, "error", err)
			writeInternalError(w, "failed to assign program")
		}
		return
	}

	writeJSON(w, http.StatusOK, slot)
}

// handleRemoveProgram clears one slot.
func (s *Server) handleRemoveProgram(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := control.ValidateKey(key); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if !s.controller.Remove(r.Context(), key) {
		writeNotFound(w, "no program in slot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
