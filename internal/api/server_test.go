package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ariavasulin/YouLearn/internal/capability"
	"github.com/ariavasulin/YouLearn/internal/compile"
	"github.com/ariavasulin/YouLearn/internal/config"
	"github.com/ariavasulin/YouLearn/internal/enrich"
	"github.com/ariavasulin/YouLearn/internal/notebook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompiler struct {
	store *compile.ArtifactStore
	err   error
}

func (f *fakeCompiler) Compile(_ context.Context, target string) (*compile.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	name := target + ".pdf"
	if target == notebook.AggregateTarget {
		name = "calc-Notes.pdf"
	}
	src := filepath.Join(os.TempDir(), "api-test-"+name)
	if err := os.WriteFile(src, []byte("%PDF-1.4 fake"), 0o644); err != nil {
		return nil, err
	}
	defer os.Remove(src)
	size, err := f.store.Publish(name, src)
	if err != nil {
		return nil, err
	}
	return &compile.Result{Target: target, Artifact: name, Size: size, Pages: 1}, nil
}

type fixture struct {
	srv  *Server
	nb   *notebook.Notebook
	comp *fakeCompiler
	orch *enrich.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tree, err := notebook.Open(t.TempDir())
	require.NoError(t, err)
	nb := notebook.New(tree, notebook.DefaultLayout())
	_, err = nb.Init("Calculus")
	require.NoError(t, err)

	store, err := compile.NewArtifactStore(t.TempDir())
	require.NoError(t, err)
	comp := &fakeCompiler{store: store}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := enrich.New(nb, enrich.NewMemoryCursorStore(), nil, nil, enrich.Options{}, log)
	t.Cleanup(orch.Wait)

	stats := capability.NewLatencyStats(time.Hour)
	stats.Record(120, false)

	cfg := config.Config{MaxUploadBytes: 1 << 20}
	srv := NewServer(Deps{
		Notebook:  nb,
		Compiler:  comp,
		Artifacts: store,
		Enricher:  orch,
		Stats:     map[string]*capability.LatencyStats{"search": stats},
	}, log, cfg)
	return &fixture{srv: srv, nb: nb, comp: comp, orch: orch}
}

func (f *fixture) do(t *testing.T, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestFiles_WriteReadList(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/files?path=notes/scratch.txt", strings.NewReader("limits"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/files?path=notes/scratch.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "limits", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/dirs?path=notes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"scratch.txt"`)
}

func TestFiles_ErrorMapping(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/files?path=missing.tex", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/files?path=../etc/passwd", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), f.nb.Root())

	rec = f.do(t, http.MethodGet, "/api/files", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/files?path=big.txt", bytes.NewReader(make([]byte, 2<<20)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestFiles_PassOwnedPathsRejected(t *testing.T) {
	f := newFixture(t)
	layout := f.nb.Layout()
	before, err := f.nb.Read(layout.Narrative)
	require.NoError(t, err)

	for _, p := range []string{layout.Narrative, layout.Report, layout.StateDir + "/verify-cursor.json"} {
		rec := f.do(t, http.MethodPut, "/api/files?path="+p, strings.NewReader("garbage"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, p)
	}

	after, err := f.nb.Read(layout.Narrative)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.False(t, f.nb.Exists(layout.Report))
}

func TestLeaves_CreateAndList(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/leaves",
		strings.NewReader(`{"kind":"lecture","metadata":{"topic":"Limits","date":"2026-02-03"}}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, "notes/latex/lec01/lec01.tex", created["path"])
	assert.Equal(t, "ok", created["outcome"])
	assert.NotContains(t, created, "warning")

	rec = f.do(t, http.MethodPost, "/api/leaves", strings.NewReader(`{"kind":"lecture","ordinal":1}`))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/leaves", strings.NewReader(`{"kind":"poster"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/leaves", strings.NewReader(`{"ordinal":2}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/leaves?kind=lecture", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	leaves := decode(t, rec)["leaves"].([]any)
	require.Len(t, leaves, 1)
	leaf := leaves[0].(map[string]any)
	assert.Equal(t, "lec01", leaf["id"])
	assert.Equal(t, "notes/latex/lec01/lec01.tex", leaf["path"])
}

func TestCompile_AndServeArtifact(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/compile", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "aggregate", body["target"])
	assert.Equal(t, "/artifacts/calc-Notes.pdf", body["url"])

	rec = f.do(t, http.MethodGet, "/artifacts/calc-Notes.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="calc-Notes.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4 fake", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/artifacts/missing.pdf", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodGet, "/artifacts/notes.txt", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompile_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&compile.Failure{Target: "aggregate", Pass: "render", Diagnostic: "! Undefined control sequence."}, http.StatusUnprocessableEntity},
		{compile.ErrToolingUnavailable, http.StatusServiceUnavailable},
		{compile.ErrTimeout, http.StatusGatewayTimeout},
		{notebook.ErrInvalidTarget, http.StatusBadRequest},
	}
	for _, tc := range cases {
		f := newFixture(t)
		f.comp.err = tc.err
		rec := f.do(t, http.MethodPost, "/api/compile", strings.NewReader(`{"target":"lec01"}`))
		assert.Equal(t, tc.code, rec.Code, "error %v", tc.err)
	}
}

func TestEnrich_TriggerAndRun(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/enrich/narrative/trigger", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	id := decode(t, rec)["run_id"].(string)
	require.NotEmpty(t, id)
	f.orch.Wait()

	rec = f.do(t, http.MethodGet, "/api/enrich/runs/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode(t, rec)
	assert.Equal(t, id, run["run_id"])
	assert.Equal(t, "narrative", run["pass"])
	assert.NotEqual(t, "running", run["status"])

	rec = f.do(t, http.MethodGet, "/api/enrich/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["runs"], 1)

	rec = f.do(t, http.MethodGet, "/api/enrich/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/enrich/summarize/trigger", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnrich_SessionEnded(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/sessions/ended", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decode(t, rec)
	runs := body["runs"].(map[string]any)
	assert.Contains(t, runs, "verify")
	assert.Contains(t, runs, "narrative")
	assert.Empty(t, body["skipped"])
}

func TestEnrich_Report(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/enrich/report", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	report := enrich.Report{
		Timestamp:    time.Date(2026, 2, 5, 18, 0, 0, 0, time.UTC),
		FilesChecked: []string{"notes/latex/lec01/lec01.tex"},
		Findings: []enrich.Finding{{
			Source:      "notes/latex/lec01/lec01.tex",
			Claim:       "Cantor published the diagonal argument in 1891.",
			Status:      enrich.StatusCorrect,
			Explanation: "Matches the 1891 paper.",
		}},
	}
	data, err := json.Marshal(report)
	require.NoError(t, err)
	require.NoError(t, f.nb.Tree.Write(f.nb.Layout().Report, data))

	rec = f.do(t, http.MethodGet, "/api/enrich/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	counts := decode(t, rec)["counts"].(map[string]any)
	assert.Equal(t, float64(1), counts["correct"])

	rec = f.do(t, http.MethodGet, "/api/enrich/report?format=md", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enrich.FormatReport(&report), rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/enrich/report?format=html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h3>Fact-Check Report (auto-generated)</h3>")
	assert.Contains(t, rec.Body.String(), "<strong>[OK]</strong>")

	rec = f.do(t, http.MethodGet, "/api/enrich/report?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnrich_NarrativePlaceholder(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/enrich/narrative", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImport_Multipart(t *testing.T) {
	f := newFixture(t)

	upload := func(name, content string, fields map[string]string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		fw.Write([]byte(content))
		for k, v := range fields {
			mw.WriteField(k, v)
		}
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("../../Week 1.md", "# Limits\n\nEpsilon.\n", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "resources/imported/week-1.md", decode(t, rec)["path"])
	assert.True(t, f.nb.Exists("resources/imported/week-1.md"))

	rec = upload("Week 1.md", "# Again\n", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = upload("Week 1.md", "# Again\n", map[string]string{"overwrite": "true"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = upload("notes.md", "# Hijack\n", map[string]string{"dest": f.nb.Layout().Narrative, "overwrite": "true"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload("slides.pptx", "x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload("broken.pdf", "not a pdf", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCapabilityStats(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/stats/capabilities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	caps := decode(t, rec)["capabilities"].(map[string]any)
	search := caps["search"].(map[string]any)
	assert.Equal(t, float64(1), search["count"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":   "passwd",
		`C:\notes\week1.pdf`: "week1.pdf",
		"..":                 "_",
		"":                   "unnamed",
		"a..b.md":            "a_b.md",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeFilename(in), "input %q", in)
	}
}
