package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ariavasulin/YouLearn/internal/doctree"
	"github.com/ariavasulin/YouLearn/internal/notebook"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type leafView struct {
	notebook.LeafInfo
	Metadata *doctree.Metadata `json:"metadata,omitempty"`
}

type createLeafResponse struct {
	notebook.LeafResult
	Outcome string `json:"outcome"`
}

func (s *Server) handleListLeaves(w http.ResponseWriter, r *http.Request) {
	leaves, err := s.deps.Notebook.ListLeaves()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kind := r.URL.Query().Get("kind")

	views := make([]leafView, 0, len(leaves))
	for _, l := range leaves {
		if kind != "" && l.Kind != kind {
			continue
		}
		v := leafView{LeafInfo: l}
		if data, err := s.deps.Notebook.Read(l.Path); err == nil {
			if md := doctree.LeafMetadata(string(data)); md != (doctree.Metadata{}) {
				v.Metadata = &md
			}
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaves": views})
}

func (s *Server) handleCreateLeaf(w http.ResponseWriter, r *http.Request) {
	var req notebook.LeafRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		jsonError(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	res, err := s.deps.Notebook.CreateLeaf(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.Warning != nil {
		s.log.Warn("leaf created without registration",
			"path", res.Path,
			"container", res.Warning.Container,
			"code", res.Warning.Code,
		)
	}
	writeJSON(w, http.StatusCreated, createLeafResponse{LeafResult: res, Outcome: res.Outcome().String()})
}
