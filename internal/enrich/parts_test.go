package enrich

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariavasulin/YouLearn/internal/capability"
	"github.com/ariavasulin/YouLearn/internal/notebook"
)

func TestExtractClaims_ZonesInDocumentOrder(t *testing.T) {
	src := `Plain prose is ignored.
\begin{theorem}[Bolzano-Weierstrass]Every bounded sequence in $\mathbb{R}$ has a convergent subsequence.\end{theorem}
\marginnote{Weierstrass gave the first rigorous proof.}
\begin{notebox}Outer note.\footnote{Nested footnote stays inside the note.}\end{notebox}
\begin{remark}  \end{remark}
\begin{aside}never closed`

	got := ExtractClaims("lec02.tex", src)
	require.Len(t, got, 3)

	assert.Equal(t, "theorem", got[0].Zone)
	assert.Equal(t, "Every bounded sequence in R has a convergent subsequence.", got[0].Text)
	assert.Equal(t, "marginnote", got[1].Zone)
	assert.Equal(t, "notebox", got[2].Zone)
	assert.Equal(t, "Outer note. Nested footnote stays inside the note.", got[2].Text)
	for _, c := range got {
		assert.Equal(t, "lec02.tex", c.Source)
	}
}

func TestExtractClaims_NoZones(t *testing.T) {
	assert.Empty(t, ExtractClaims("x.tex", `\section{Limits} Just prose. % \footnote{hidden}`))
}

func TestClaimQuery_Bounded(t *testing.T) {
	c := Claim{Text: strings.Repeat("é", 400)}
	assert.Equal(t, maxQueryRunes, len([]rune(c.Query())))
	short := Claim{Text: "short"}
	assert.Equal(t, "short", short.Query())
}

func TestOverlapJudge(t *testing.T) {
	claim := Claim{Text: "Hermite proved e is transcendental in 1873."}
	j := OverlapJudge{}

	v, err := j.Judge(context.Background(), claim, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusUnverifiable, v.Status)

	v, err = j.Judge(context.Background(), claim, []capability.Snippet{
		{URL: "https://a.example", Text: "Unrelated text about topology."},
		{URL: "https://b.example", Text: "In 1873 Hermite proved that e is transcendental."},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCorrect, v.Status)
	assert.Contains(t, v.Explanation, "https://b.example")

	v, err = j.Judge(context.Background(), claim, []capability.Snippet{{Text: "Hermite was French."}})
	require.NoError(t, err)
	assert.Equal(t, StatusUnverifiable, v.Status)
	assert.Empty(t, v.Correction)
}

func TestGenerationJudge_UnreadableAnswer(t *testing.T) {
	gen := capability.GenerateFunc(func(context.Context, capability.Prompt) (string, error) {
		return "I think it is fine.", nil
	})
	v, err := GenerationJudge{Gen: gen}.Judge(context.Background(), Claim{Text: "x"}, []capability.Snippet{{Text: "y"}})
	require.NoError(t, err)
	assert.Equal(t, StatusUnverifiable, v.Status)
}

func TestVerdictNormalize(t *testing.T) {
	v := Verdict{Status: StatusCorrected, Explanation: "no fix given"}.normalize()
	assert.Equal(t, StatusUnverifiable, v.Status)

	v = Verdict{Status: StatusUnverifiable, Correction: "x", SourceReference: "y"}.normalize()
	assert.Empty(t, v.Correction)
	assert.Empty(t, v.SourceReference)

	v = Verdict{Status: StatusCorrected, Correction: "fix", SourceReference: "src"}.normalize()
	assert.Equal(t, Verdict{Status: StatusCorrected, Correction: "fix", SourceReference: "src"}, v)
}

func TestFileCursorStore(t *testing.T) {
	tree, err := notebook.Open(t.TempDir())
	require.NoError(t, err)
	store := NewFileCursorStore(tree, "")
	ctx := context.Background()

	c, err := store.Load(ctx, PassVerify)
	require.NoError(t, err)
	assert.True(t, c.LastRun.IsZero())
	assert.Equal(t, PassVerify, c.PassID)

	when := time.Date(2026, 2, 6, 18, 30, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, Cursor{PassID: PassVerify, LastRun: when}))

	raw, err := tree.Read(".state/verify-cursor.json")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "verify", doc["pass_id"])
	assert.Equal(t, "2026-02-06T18:30:00Z", doc["last_run_timestamp"])

	c, err = store.Load(ctx, PassVerify)
	require.NoError(t, err)
	assert.True(t, c.LastRun.Equal(when))

	other, err := store.Load(ctx, PassNarrative)
	require.NoError(t, err)
	assert.True(t, other.LastRun.IsZero())
}

func TestRedisCursorStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	store := NewRedisCursorStore(client, "")
	c, err := store.Load(ctx, PassNarrative)
	require.NoError(t, err)
	assert.True(t, c.LastRun.IsZero())

	when := time.Date(2026, 2, 7, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, Cursor{PassID: PassNarrative, LastRun: when}))
	assert.True(t, mr.Exists("notebook:cursor:narrative"))

	c, err = store.Load(ctx, PassNarrative)
	require.NoError(t, err)
	assert.True(t, c.LastRun.Equal(when))

	scoped := NewRedisCursorStore(client, "math-104")
	require.NoError(t, scoped.Save(ctx, Cursor{PassID: PassVerify, LastRun: when}))
	assert.True(t, mr.Exists("notebook:math-104:cursor:verify"))
}

func TestDecodeCursor_WrongPass(t *testing.T) {
	_, err := decodeCursor(PassVerify, []byte(`{"pass_id":"narrative","last_run_timestamp":"2026-02-06T00:00:00Z"}`))
	assert.Error(t, err)
	_, err = decodeCursor(PassVerify, []byte(`not json`))
	assert.Error(t, err)
}

func TestParsePass(t *testing.T) {
	p, err := ParsePass("narrative")
	require.NoError(t, err)
	assert.Equal(t, PassNarrative, p)
	_, err = ParsePass("other")
	assert.ErrorIs(t, err, ErrUnknownPass)
}

func TestFormatReport(t *testing.T) {
	r := &Report{
		Timestamp:    time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC),
		FilesChecked: []string{"notes/latex/lec03/lec03.tex"},
		Findings: []Finding{
			{Source: "notes/latex/lec03/lec03.tex", Claim: "Hermite proved e is transcendental in 1873.", Status: StatusCorrect, Explanation: "Confirmed."},
			{Source: "notes/latex/lec03/lec03.tex", Claim: "Cantor was Austrian.", Status: StatusCorrected, Correction: "Cantor was German.", SourceReference: "https://example.org/cantor"},
		},
	}
	want := "### Fact-Check Report (auto-generated)\n" +
		"_Last run 2026-02-06T12:00:00Z: checked 2 claim(s) in 1 file(s)_\n\n" +
		"**[OK]** `notes/latex/lec03/lec03.tex`: Hermite proved e is transcendental in 1873.\n" +
		"  Confirmed.\n\n" +
		"**[ISSUE]** `notes/latex/lec03/lec03.tex`: Cantor was Austrian.\n" +
		"  Suggested correction: Cantor was German.\n" +
		"  Source: https://example.org/cantor\n\n"
	assert.Equal(t, want, FormatReport(r))
	assert.Equal(t, "", FormatReport(&Report{}))

	counts := r.Counts()
	assert.Equal(t, 1, counts[StatusCorrect])
	assert.Equal(t, 1, counts[StatusCorrected])
	assert.Equal(t, 0, counts[StatusUnverifiable])
}

func TestRunStore_Cleanup(t *testing.T) {
	store := NewRunStore(time.Minute)
	now := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

	old := newRun(PassVerify, now.Add(-time.Hour))
	old.finish(Outcome{Message: "done"}, nil, now.Add(-59*time.Minute))
	fresh := newRun(PassNarrative, now)
	fresh.finish(Outcome{Skipped: true}, nil, now)
	running := newRun(PassVerify, now.Add(-time.Hour))

	store.Put(old)
	store.Put(fresh)
	store.Put(running)
	store.Cleanup(now)

	if store.Get(old.ID) != nil {
		t.Errorf("expected finished run past TTL to be evicted")
	}
	if store.Get(fresh.ID) == nil {
		t.Errorf("expected fresh run to be kept")
	}
	if store.Get(running.ID) == nil {
		t.Errorf("expected running run to be kept")
	}
	if got := store.Get(fresh.ID).Snapshot().Status; got != RunSkipped {
		t.Errorf("expected status %q, got %q", RunSkipped, got)
	}
}

func TestRunSnapshot_EmptyDelta(t *testing.T) {
	r := newRun(PassVerify, time.Now())
	snap := r.Snapshot()
	if snap.Delta == nil || len(snap.Delta) != 0 {
		t.Errorf("expected empty non-nil delta, got %v", snap.Delta)
	}
	if snap.Finished != nil {
		t.Errorf("expected unfinished run to have no finish time")
	}
	if snap.ID == "" {
		t.Errorf("expected run id")
	}
}
