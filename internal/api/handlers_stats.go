package api

import (
	"net/http"

	"github.com/ariavasulin/YouLearn/internal/capability"
)

func (s *Server) handleCapabilityStats(w http.ResponseWriter, r *http.Request) {
	if len(s.deps.Stats) == 0 {
		jsonError(w, "capability stats unavailable", http.StatusServiceUnavailable)
		return
	}
	out := make(map[string]capability.StatsSnapshot, len(s.deps.Stats))
	for name, st := range s.deps.Stats {
		out[name] = st.Snapshot()
	}
	writeJSON(w, http.StatusOK, map[string]any{"capabilities": out})
}
