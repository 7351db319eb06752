package api

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"github.com/ariavasulin/YouLearn/internal/enrich"
	"github.com/ariavasulin/YouLearn/internal/notebook"
	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
)

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	pass, err := enrich.ParsePass(chi.URLParam(r, "pass"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.deps.Enricher.Trigger(pass)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":   id,
		"pass":     pass,
		"poll_url": "/api/enrich/runs/" + id,
	})
}

// handleSessionEnded fires both passes after a study session. Passes that
// are already running are skipped and absent from the response.
func (s *Server) handleSessionEnded(w http.ResponseWriter, r *http.Request) {
	started := s.deps.Enricher.SessionEnded()
	skipped := []enrich.PassID{}
	for _, p := range enrich.Passes {
		if _, ok := started[p]; !ok {
			skipped = append(skipped, p)
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"runs":    started,
		"skipped": skipped,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"runs": s.deps.Enricher.Runs().List()})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run := s.deps.Enricher.Runs().Get(chi.URLParam(r, "runID"))
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, run.Snapshot())
}

var reportPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Fact-Check Report</title></head>
<body>
{{.}}
</body></html>
`))

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := enrich.LoadReport(s.deps.Notebook)
	if errors.Is(err, notebook.ErrNotFound) {
		jsonError(w, "no report yet", http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, map[string]any{
			"report": report,
			"counts": report.Counts(),
		})
	case "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(enrich.FormatReport(report)))
	case "html":
		var body bytes.Buffer
		if err := goldmark.Convert([]byte(enrich.FormatReport(report)), &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		reportPage.Execute(w, template.HTML(body.String()))
	default:
		jsonError(w, "format must be json, md or html", http.StatusBadRequest)
	}
}

func (s *Server) handleNarrative(w http.ResponseWriter, r *http.Request) {
	body, ok, err := enrich.LoadNarrative(s.deps.Notebook)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		jsonError(w, "no narrative yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path": s.deps.Notebook.Layout().Narrative,
		"body": body,
	})
}
