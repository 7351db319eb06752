package doctree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const master = `\documentclass{book}
\begin{document}
\tableofcontents

% Lecture 1
\nestedsubfile{../lec01/lec01}
\newpage

% ADD_LECTURE_HERE

\printindex
\end{document}
`

func TestParseContainer_RoundTrip(t *testing.T) {
	inputs := []string{
		master,
		"",
		"no trailing newline",
		"% ADD_LECTURE_HERE",
		"\\subfile{a}\n\\subfile{b}\n\n\n",
	}
	for _, in := range inputs {
		assert.Equal(t, in, ParseContainer(in, "% ADD_LECTURE_HERE").String())
	}
}

func TestParseContainer_Classifies(t *testing.T) {
	c := ParseContainer(master, "% ADD_LECTURE_HERE")
	assert.Equal(t, []string{"../lec01/lec01"}, c.References())
	assert.Equal(t, 1, c.MarkerCount("% ADD_LECTURE_HERE"))
	assert.True(t, c.Includes("../lec01/lec01.tex"))
	assert.False(t, c.Includes("../lec02/lec02"))
}

func TestParseContainer_CommentedReferenceIsText(t *testing.T) {
	c := ParseContainer("% \\subfile{old}\n", "% ADD_LECTURE_HERE")
	assert.Empty(t, c.References())
}

func TestContainer_InsertBeforeMarker(t *testing.T) {
	c := ParseContainer(master, "% ADD_LECTURE_HERE")
	entry := "% Lecture 2\n\\nestedsubfile{../lec02/lec02}\n\\newpage\n\n"
	require.NoError(t, c.Insert("% ADD_LECTURE_HERE", entry))

	want := `\documentclass{book}
\begin{document}
\tableofcontents

% Lecture 1
\nestedsubfile{../lec01/lec01}
\newpage

% Lecture 2
\nestedsubfile{../lec02/lec02}
\newpage

% ADD_LECTURE_HERE

\printindex
\end{document}
`
	assert.Equal(t, want, c.String())
	assert.Equal(t, []string{"../lec01/lec01", "../lec02/lec02"}, c.References())
	assert.Equal(t, 1, c.MarkerCount("% ADD_LECTURE_HERE"))
}

func TestContainer_InsertKeepsOrderAcrossCalls(t *testing.T) {
	c := ParseContainer("% ADD_SESSION_HERE\n", "% ADD_SESSION_HERE")
	require.NoError(t, c.Insert("% ADD_SESSION_HERE", `\subfile{session-a}`))
	require.NoError(t, c.Insert("% ADD_SESSION_HERE", `\subfile{session-b}`))
	assert.Equal(t, "\\subfile{session-a}\n\\subfile{session-b}\n% ADD_SESSION_HERE\n", c.String())
}

func TestContainer_InsertMissingMarker(t *testing.T) {
	c := ParseContainer("\\begin{document}\n\\end{document}\n", "% ADD_LECTURE_HERE")
	before := c.String()
	err := c.Insert("% ADD_LECTURE_HERE", `\subfile{x}`)
	assert.True(t, errors.Is(err, ErrMarkerMissing))
	assert.Equal(t, before, c.String())
}

func TestContainer_InsertAmbiguousMarker(t *testing.T) {
	c := ParseContainer("% ADD_LECTURE_HERE\ntext\n  % ADD_LECTURE_HERE keep me\n", "% ADD_LECTURE_HERE")
	assert.Equal(t, 2, c.MarkerCount("% ADD_LECTURE_HERE"))
	err := c.Insert("% ADD_LECTURE_HERE", `\subfile{x}`)
	assert.True(t, errors.Is(err, ErrMarkerAmbiguous))
}

func TestContainer_SimilarTokenIsNotMarker(t *testing.T) {
	c := ParseContainer("% ADD_LECTURE_HERE_OLD\n", "% ADD_LECTURE_HERE")
	assert.Equal(t, 0, c.MarkerCount("% ADD_LECTURE_HERE"))
}

func TestParseContainer_MacroParameterIsNotReference(t *testing.T) {
	c := ParseContainer("\\newcommand{\\nestedsubfile}[1]{%\n  \\subfile{#1}%\n}\n\\subfile{real}\n")
	assert.Equal(t, []string{"real"}, c.References())
}
