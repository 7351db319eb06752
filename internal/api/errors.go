package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariavasulin/YouLearn/internal/compile"
	"github.com/ariavasulin/YouLearn/internal/enrich"
	"github.com/ariavasulin/YouLearn/internal/notebook"
	"github.com/ariavasulin/YouLearn/internal/parser"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, notebook.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, notebook.ErrPathEscape),
		errors.Is(err, notebook.ErrOutOfScope),
		errors.Is(err, notebook.ErrInvalidRequest),
		errors.Is(err, notebook.ErrUnknownKind),
		errors.Is(err, notebook.ErrInvalidTarget),
		errors.Is(err, enrich.ErrUnknownPass),
		errors.Is(err, compile.ErrInvalidArtifact),
		errors.Is(err, parser.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, notebook.ErrDuplicateLeaf),
		errors.Is(err, enrich.ErrPassRunning),
		errors.Is(err, parser.ErrExists):
		return http.StatusConflict
	case errors.Is(err, compile.ErrToolingUnavailable),
		errors.Is(err, enrich.ErrCapabilityUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, compile.ErrCompileFailure),
		errors.Is(err, parser.ErrUnreadable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, compile.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError reports err with its mapped status. Internal errors are
// logged and hidden from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonError(w, "internal error", code)
		return
	}
	jsonError(w, err.Error(), code)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
