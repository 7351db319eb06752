package notebook

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariavasulin/YouLearn/internal/doctree"
	"github.com/ariavasulin/YouLearn/internal/nesting"
)

func newNotebook(t *testing.T) *Notebook {
	t.Helper()
	nb := New(newTree(t), DefaultLayout())
	nb.Now = func() time.Time { return time.Date(2026, 2, 6, 10, 0, 0, 0, time.UTC) }
	_, err := nb.Init("Math 104")
	require.NoError(t, err)
	return nb
}

func readString(t *testing.T, nb *Notebook, p string) string {
	t.Helper()
	data, err := nb.Read(p)
	require.NoError(t, err)
	return string(data)
}

func TestInit_Scaffold(t *testing.T) {
	nb := newNotebook(t)
	main := readString(t, nb, "notes/latex/master/master.tex")
	assert.True(t, nesting.Installed(main))
	assert.Equal(t, 1, doctree.ParseContainer(main, LectureMarker).MarkerCount(LectureMarker))
	assert.Contains(t, main, `\title{Math 104}`)

	for _, p := range []string{
		"notes/latex/temp/temp.tex",
		"notes/latex/sessions/sessions.tex",
		"notes/latex/assignments/assignments.tex",
		"notes/latex/syllabus/syllabus.tex",
		"notes/latex/glossary/glossary.tex",
		"notes/latex/resources/resources.tex",
		"notes/latex/progress/progress.tex",
	} {
		_, err := doctree.ParseLeaf(readString(t, nb, p))
		assert.NoError(t, err, p)
	}
	assert.Contains(t, readString(t, nb, "notes/latex/assignments/assignments.tex"), HomeworkMarker)

	written, err := nb.Init("Other")
	require.NoError(t, err)
	assert.Empty(t, written)
	assert.Contains(t, readString(t, nb, "notes/latex/master/master.tex"), `\title{Math 104}`)
}

func TestCreateLeaf_LectureScenario(t *testing.T) {
	nb := newNotebook(t)
	res, err := nb.CreateLeaf(LeafRequest{
		Kind:     "lecture",
		Ordinal:  6,
		Metadata: map[string]string{"date": "Feb 7", "topic": "Sequences"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, res.Outcome())
	assert.Equal(t, "notes/latex/lec06/lec06.tex", res.Path)
	assert.Equal(t, "lec06", res.ID)

	leaf := readString(t, nb, res.Path)
	md := doctree.LeafMetadata(leaf)
	assert.Equal(t, "6", md.Number)
	assert.Equal(t, "Feb 7", md.Date)
	assert.Equal(t, "Sequences", md.Topic)
	assert.NotContains(t, leaf, "@@")
	parsed, err := doctree.ParseLeaf(leaf)
	require.NoError(t, err)
	assert.Equal(t, "../master/master.tex", parsed.MainRef)

	main := readString(t, nb, "notes/latex/master/master.tex")
	entry := "\\nestedsubfile{../lec06/lec06}\n\\newpage\n\n" + LectureMarker
	assert.Contains(t, main, entry)
	assert.Equal(t, 1, strings.Count(main, LectureMarker))
}

func TestCreateLeaf_DuplicateLeavesContainerUnchanged(t *testing.T) {
	nb := newNotebook(t)
	req := LeafRequest{Kind: "lecture", Ordinal: 3, Metadata: map[string]string{"topic": "Limits"}}
	_, err := nb.CreateLeaf(req)
	require.NoError(t, err)

	mainBefore := readString(t, nb, "notes/latex/master/master.tex")
	leafBefore := readString(t, nb, "notes/latex/lec03/lec03.tex")

	req.Metadata["topic"] = "Changed"
	_, err = nb.CreateLeaf(req)
	assert.True(t, errors.Is(err, ErrDuplicateLeaf))
	assert.Equal(t, mainBefore, readString(t, nb, "notes/latex/master/master.tex"))
	assert.Equal(t, leafBefore, readString(t, nb, "notes/latex/lec03/lec03.tex"))
}

func TestCreateLeaf_DuplicateByContainerReference(t *testing.T) {
	nb := newNotebook(t)
	_, err := nb.CreateLeaf(LeafRequest{Kind: "lecture", Ordinal: 2})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(nb.Root(), "notes/latex/lec02/lec02.tex")))

	_, err = nb.CreateLeaf(LeafRequest{Kind: "lecture", Ordinal: 2})
	assert.True(t, errors.Is(err, ErrDuplicateLeaf))
	assert.False(t, nb.Exists("notes/latex/lec02/lec02.tex"))
}

func TestCreateLeaf_AutoOrdinal(t *testing.T) {
	nb := newNotebook(t)
	_, err := nb.CreateLeaf(LeafRequest{Kind: "lecture", Ordinal: 3})
	require.NoError(t, err)
	_, err = nb.CreateLeaf(LeafRequest{Kind: "lecture", Ordinal: 1})
	require.NoError(t, err)

	res, err := nb.CreateLeaf(LeafRequest{Kind: "lecture"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Ordinal)
	assert.Equal(t, "notes/latex/lec04/lec04.tex", res.Path)

	main := readString(t, nb, "notes/latex/master/master.tex")
	refs := doctree.ParseContainer(main, LectureMarker).References()
	assert.Equal(t, []string{"../syllabus/syllabus", "../lec03/lec03", "../lec01/lec01", "../lec04/lec04",
		"../assignments/assignments", "../sessions/sessions", "../progress/progress",
		"../glossary/glossary", "../resources/resources"}, refs)
}

func TestCreateLeaf_MissingMarkerIsWarning(t *testing.T) {
	nb := newNotebook(t)
	main := readString(t, nb, "notes/latex/master/master.tex")
	stripped := strings.Replace(main, LectureMarker+"\n", "", 1)
	require.NoError(t, nb.Write("notes/latex/master/master.tex", []byte(stripped)))

	res, err := nb.CreateLeaf(LeafRequest{Kind: "lecture", Ordinal: 1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeWarning, res.Outcome())
	require.NotNil(t, res.Warning)
	assert.Equal(t, WarnMarkerMissing, res.Warning.Code)
	assert.Equal(t, "notes/latex/master/master.tex", res.Warning.Container)
	assert.True(t, nb.Exists(res.Path))
	assert.Equal(t, stripped, readString(t, nb, "notes/latex/master/master.tex"))
}

func TestCreateLeaf_MissingContainerIsWarning(t *testing.T) {
	nb := newNotebook(t)
	require.NoError(t, os.Remove(filepath.Join(nb.Root(), "notes/latex/sessions/sessions.tex")))

	res, err := nb.CreateLeaf(LeafRequest{Kind: "session", Metadata: map[string]string{"mode": "Review"}})
	require.NoError(t, err)
	require.NotNil(t, res.Warning)
	assert.Equal(t, WarnContainerMissing, res.Warning.Code)
	assert.False(t, nb.Exists("notes/latex/sessions/sessions.tex"))
}

func TestCreateLeaf_Session(t *testing.T) {
	nb := newNotebook(t)
	res, err := nb.CreateLeaf(LeafRequest{Kind: "session", Metadata: map[string]string{
		"mode":       "Homework",
		"summary":    "Worked through HW2.",
		"topics":     "limits, sequences",
		"covered":    "Problem 1\n- Problem 2\n\n",
		"next_steps": "",
	}})
	require.NoError(t, err)
	assert.Equal(t, "notes/latex/sessions/session-2026-02-06.tex", res.Path)

	leaf := readString(t, nb, res.Path)
	assert.Contains(t, leaf, "    \\item Problem 1\n    \\item Problem 2\n")
	assert.Contains(t, leaf, "    \\item (none)")
	assert.Contains(t, leaf, `\textbf{Mode:} Homework`)
	_, err = doctree.ParseLeaf(leaf)
	require.NoError(t, err)

	container := readString(t, nb, "notes/latex/sessions/sessions.tex")
	assert.Contains(t, container, "\\subfile{session-2026-02-06}\n\n"+SessionMarker)

	_, err = nb.CreateLeaf(LeafRequest{Kind: "session", Metadata: map[string]string{"date": "2026-02-06"}})
	assert.True(t, errors.Is(err, ErrDuplicateLeaf))
}

func TestCreateLeaf_HomeworkRegisteredInAssignments(t *testing.T) {
	nb := newNotebook(t)
	res, err := nb.CreateLeaf(LeafRequest{Kind: "homework", Ordinal: 2})
	require.NoError(t, err)
	assert.Equal(t, "hw/hw2/submission/hw2.tex", res.Path)

	parsed, err := doctree.ParseLeaf(readString(t, nb, res.Path))
	require.NoError(t, err)
	assert.Equal(t, "../../../notes/latex/master/master.tex", parsed.MainRef)

	container := readString(t, nb, "notes/latex/assignments/assignments.tex")
	assert.Contains(t, container, `\nestedsubfile{../../../hw/hw2/submission/hw2}`)
}

func TestCreateLeaf_SubstitutionIsSinglePass(t *testing.T) {
	nb := newNotebook(t)
	res, err := nb.CreateLeaf(LeafRequest{Kind: "lecture", Ordinal: 1, Metadata: map[string]string{
		"topic": "Why @@DATE@@ stays literal",
		"date":  "Jan 5",
	}})
	require.NoError(t, err)
	leaf := readString(t, nb, res.Path)
	assert.Contains(t, leaf, `\renewcommand{\lecturetopic}{Why @@DATE@@ stays literal}`)
	assert.Contains(t, leaf, `\renewcommand{\lecturedate}{Jan 5}`)
}

func TestCreateLeaf_MetadataCannotPlantMarker(t *testing.T) {
	nb := newNotebook(t)
	res, err := nb.CreateLeaf(LeafRequest{Kind: "lecture", Ordinal: 6, Metadata: map[string]string{
		"topic": "Sequences\n" + LectureMarker + "\n",
	}})
	require.NoError(t, err)
	assert.Nil(t, res.Warning)

	main := readString(t, nb, "notes/latex/master/master.tex")
	assert.Equal(t, 1, doctree.ParseContainer(main, LectureMarker).MarkerCount(LectureMarker))
	assert.Contains(t, main, `\section{Lecture 6: Sequences \% ADD\_LECTURE\_HERE}`)

	next, err := nb.CreateLeaf(LeafRequest{Kind: "lecture", Ordinal: 7})
	require.NoError(t, err)
	assert.Nil(t, next.Warning)
	assert.True(t, doctree.ParseContainer(readString(t, nb, "notes/latex/master/master.tex"), LectureMarker).Includes("../lec07/lec07"))
}

func TestCreateLeaf_EntryWithMarkerRejected(t *testing.T) {
	layout := Layout{
		Main: "notes/main.tex",
		Kinds: []Kind{{
			Name:         "note",
			Path:         "notes/{id}.tex",
			IDFormat:     "note%d",
			TemplateText: "\\documentclass{article}\n\\begin{document}\n@@TOPIC@@\n\\end{document}\n",
			Container:    "notes/index.tex",
			Marker:       "ADD NOTE HERE",
			Entry:        "@@TOPIC@@\n\\input{@@REF@@}\n",
		}},
	}
	nb := New(newTree(t), layout)
	index := "start\nADD NOTE HERE\n"
	require.NoError(t, nb.Write("notes/index.tex", []byte(index)))

	_, err := nb.CreateLeaf(LeafRequest{Kind: "note", Ordinal: 1, Metadata: map[string]string{"topic": "ADD NOTE HERE"}})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	assert.False(t, nb.Exists("notes/note1.tex"))
	assert.Equal(t, index, readString(t, nb, "notes/index.tex"))

	res, err := nb.CreateLeaf(LeafRequest{Kind: "note", Ordinal: 1, Metadata: map[string]string{"topic": "Compactness"}})
	require.NoError(t, err)
	assert.Nil(t, res.Warning)
	assert.Equal(t, "start\nCompactness\n\\input{note1}\nADD NOTE HERE\n", readString(t, nb, "notes/index.tex"))
}

func TestCreateLeaf_MetadataEscaped(t *testing.T) {
	nb := newNotebook(t)
	res, err := nb.CreateLeaf(LeafRequest{Kind: "lecture", Ordinal: 2, Metadata: map[string]string{
		"topic": "50% of {sets} & $x_1^2$ ~ \\bad",
	}})
	require.NoError(t, err)

	want := `50\% of \{sets\} \& \$x\_1\textasciicircum{}2\$ \textasciitilde{} \textbackslash{}bad`
	leaf := readString(t, nb, res.Path)
	assert.Equal(t, want, doctree.LeafMetadata(leaf).Topic)
	_, err = doctree.ParseLeaf(leaf)
	require.NoError(t, err)

	res, err = nb.CreateLeaf(LeafRequest{Kind: "session", Metadata: map[string]string{
		"date": "2026-02-07", "covered": "- 100% done\n- a_n \\to 0",
	}})
	require.NoError(t, err)
	assert.Contains(t, readString(t, nb, res.Path), "    \\item 100\\% done\n    \\item a\\_n \\textbackslash{}to 0")
}

func TestCreateLeaf_Errors(t *testing.T) {
	nb := newNotebook(t)

	_, err := nb.CreateLeaf(LeafRequest{Kind: "poem"})
	assert.True(t, errors.Is(err, ErrUnknownKind))

	_, err = nb.CreateLeaf(LeafRequest{Kind: "lecture", Ordinal: -1})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = nb.CreateLeaf(LeafRequest{Kind: "section", Metadata: map[string]string{"id": "appendix"}})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	require.NoError(t, os.Remove(filepath.Join(nb.Root(), "notes/latex/temp/temp.tex")))
	_, err = nb.CreateLeaf(LeafRequest{Kind: "lecture", Ordinal: 9})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, nb.Exists("notes/latex/lec09/lec09.tex"))
}

func TestListLeaves(t *testing.T) {
	nb := newNotebook(t)
	for _, o := range []int{2, 1} {
		_, err := nb.CreateLeaf(LeafRequest{Kind: "lecture", Ordinal: o})
		require.NoError(t, err)
	}
	_, err := nb.CreateLeaf(LeafRequest{Kind: "session"})
	require.NoError(t, err)

	leaves, err := nb.ListLeaves()
	require.NoError(t, err)

	var got []string
	for _, l := range leaves {
		got = append(got, l.Kind+":"+l.ID)
	}
	assert.Equal(t, []string{
		"lecture:lec01", "lecture:lec02",
		"session:session-2026-02-06",
		"section:assignments", "section:glossary", "section:resources", "section:syllabus",
		"narrative:progress",
	}, got)
	assert.True(t, leaves[0].Verify)
	assert.False(t, leaves[2].Verify)
	assert.False(t, leaves[0].ModTime.IsZero())
}

func TestResolveTarget(t *testing.T) {
	nb := newNotebook(t)
	_, err := nb.CreateLeaf(LeafRequest{Kind: "lecture", Ordinal: 1})
	require.NoError(t, err)

	agg, err := nb.ResolveTarget("aggregate")
	require.NoError(t, err)
	assert.True(t, agg.Aggregate)
	assert.Equal(t, "notes/latex/master/master.tex", agg.Path)

	leaf, err := nb.ResolveTarget("lec01")
	require.NoError(t, err)
	assert.False(t, leaf.Aggregate)
	assert.Equal(t, "notes/latex/lec01/lec01.tex", leaf.Path)

	for _, bad := range []string{"lec07", "", "../lec01", "temp"} {
		_, err := nb.ResolveTarget(bad)
		assert.True(t, errors.Is(err, ErrInvalidTarget), bad)
	}
}

func TestLoadLayout(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "layout.toml")
	require.NoError(t, os.WriteFile(file, []byte(`
report = "reports/check.json"

[[kinds]]
name = "chapter"
path = "book/{id}.tex"
id_format = "ch%d"
container = "book/main.tex"
marker = "% ADD_CHAPTER_HERE"
entry = "\\input{@@REF@@}\n"
template_text = "\\documentclass{article}\\begin{document}\\end{document}"
verify = true
`), 0o644))

	layout, err := LoadLayout(file)
	require.NoError(t, err)
	assert.Equal(t, "reports/check.json", layout.Report)
	assert.Equal(t, DefaultLayout().Main, layout.Main)
	require.Len(t, layout.Kinds, 1)
	k, ok := layout.Kind("chapter")
	require.True(t, ok)
	assert.True(t, k.Numbered())
	assert.Equal(t, "book/ch3.tex", k.PathFor("ch3"))
}

func TestLayout_ValidateRejectsBadKinds(t *testing.T) {
	l := DefaultLayout()
	l.Kinds[0].KeyField = "date"
	assert.True(t, errors.Is(l.Validate(), ErrInvalidLayout))

	l = DefaultLayout()
	l.Kinds[0].Path = "notes/fixed.tex"
	assert.True(t, errors.Is(l.Validate(), ErrInvalidLayout))

	l = DefaultLayout()
	l.Main = ""
	assert.True(t, errors.Is(l.Validate(), ErrInvalidLayout))

	for name, mutate := range map[string]func(*Layout){
		"kind path escapes":  func(l *Layout) { l.Kinds[0].Path = "../x/{id}.tex" },
		"absolute template":  func(l *Layout) { l.Kinds[0].Template = "/etc/{id}.tex" },
		"container escapes":  func(l *Layout) { l.Kinds[0].Container = "notes/../../main.tex" },
		"main escapes":       func(l *Layout) { l.Main = "../master.tex" },
		"narrative absolute": func(l *Layout) { l.Narrative = "/tmp/progress.tex" },
		"report escapes":     func(l *Layout) { l.Report = "../report.json" },
		"state dir escapes":  func(l *Layout) { l.StateDir = ".." },
	} {
		l := DefaultLayout()
		mutate(&l)
		assert.True(t, errors.Is(l.Validate(), ErrInvalidLayout), name)
	}

	require.NoError(t, DefaultLayout().Validate())
}

func TestExtractID(t *testing.T) {
	id, ok := extractID("notes/latex/{id}/{id}.tex", "notes/latex/lec01/lec01.tex")
	assert.True(t, ok)
	assert.Equal(t, "lec01", id)

	_, ok = extractID("notes/latex/{id}/{id}.tex", "notes/latex/lec01/other.tex")
	assert.False(t, ok)

	_, ok = extractID("notes/latex/sessions/{id}.tex", "notes/latex/lec01/lec01.tex")
	assert.False(t, ok)
}
