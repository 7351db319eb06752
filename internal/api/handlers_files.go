package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ariavasulin/YouLearn/internal/notebook"
)

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		jsonError(w, "path query parameter is required", http.StatusBadRequest)
		return
	}
	data, err := s.deps.Notebook.Read(rel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(data)
}

func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		jsonError(w, "path query parameter is required", http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("content exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if err := s.deps.Notebook.Write(rel, data); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": rel, "bytes": len(data)})
}

func (s *Server) handleListDir(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		rel = "."
	}
	entries, err := s.deps.Notebook.List(rel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []notebook.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": rel, "entries": entries})
}
