package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ariavasulin/YouLearn/internal/compile"
	"github.com/ariavasulin/YouLearn/internal/notebook"
	"github.com/go-chi/chi/v5"
)

type compileRequest struct {
	Target string `json:"target"`
}

type compileResponse struct {
	*compile.Result
	URL string `json:"url"`
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Target == "" {
		req.Target = notebook.AggregateTarget
	}

	res, err := s.deps.Compiler.Compile(r.Context(), req.Target)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, compileResponse{Result: res, URL: "/artifacts/" + res.Artifact})
}

// handleArtifact serves a compiled PDF for in-browser viewing.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !compile.ValidName(name) {
		jsonError(w, "invalid artifact name", http.StatusBadRequest)
		return
	}
	f, info, err := s.deps.Artifacts.Open(name)
	if err != nil {
		jsonError(w, "artifact not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}
