package api

import (
	"encoding/json"
	"net/http"
)

// Error codes carried in error bodies. Clients switch on these, not on
// the message text.
const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeNotFound   = "not_found"
	ErrCodeConflict   = "conflict"
	ErrCodeInternal   = "internal_error"
	ErrCodeValidation = "validation_error"
	ErrCodeCompile    = "compile_error"
)

// Error is the body of every non-2xx response.
//
//	{"status": 404, "code": "not_found", "message": "show not found"}
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	// The status line is already out; a failed encode has nowhere to go.
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, msg)
}

func writeNotFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, msg)
}

func writeConflict(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, msg)
}

// writeCompileError reports a show that resolved but could not be built
// into a sheet (bad label file, missing subprogram).
func writeCompileError(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnprocessableEntity, ErrCodeCompile, msg)
}

func writeInternalError(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, msg)
}
