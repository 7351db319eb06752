package doctree

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lecture = `\documentclass[../master/master.tex]{subfiles}
\renewcommand{\lecturenum}{6}
\renewcommand{\lecturedate}{Feb 7}
\renewcommand{\lecturetopic}{Sequences}
\begin{document}
\begin{lecturesummary}
Convergent sequences are bounded.
\end{lecturesummary}
\section{Limits}
Body.
\end{document}
`

func TestParseLeaf_Valid(t *testing.T) {
	leaf, err := ParseLeaf(lecture)
	require.NoError(t, err)
	assert.Equal(t, "subfiles", leaf.Class)
	assert.Equal(t, "../master/master.tex", leaf.MainRef)
	assert.Contains(t, leaf.Preamble, `\lecturenum`)
	assert.Contains(t, leaf.Body, `\section{Limits}`)
	assert.NotContains(t, leaf.Body, `\end{document}`)
}

func TestParseLeaf_Invalid(t *testing.T) {
	cases := map[string]string{
		"no class":      "\\begin{document}\nx\n\\end{document}\n",
		"no end":        "\\documentclass{article}\n\\begin{document}\nx\n",
		"two begins":    "\\documentclass{article}\n\\begin{document}\\begin{document}\\end{document}",
		"out of order":  "\\documentclass{article}\n\\end{document}\n\\begin{document}\n",
		"plain prose":   "Just some words.",
		"class comment": "% \\documentclass{article}\n\\begin{document}\\end{document}",
	}
	for name, text := range cases {
		_, err := ParseLeaf(text)
		assert.True(t, errors.Is(err, ErrInvalidLeaf), name)
	}
}

func TestWrapLeaf_ParsesBack(t *testing.T) {
	out := WrapLeaf("  Some narrative.  ", "../master/master.tex")
	leaf, err := ParseLeaf(out)
	require.NoError(t, err)
	assert.Equal(t, "Some narrative.", strings.TrimSpace(leaf.Body))
	assert.Equal(t, "../master/master.tex", leaf.MainRef)
}

func TestEnsureLeaf(t *testing.T) {
	t.Run("valid unchanged", func(t *testing.T) {
		assert.Equal(t, lecture, EnsureLeaf(lecture, "../master/master.tex"))
	})

	t.Run("bare prose wrapped", func(t *testing.T) {
		out := EnsureLeaf("\\section{Progress}\nGood week.", "../master/master.tex")
		leaf, err := ParseLeaf(out)
		require.NoError(t, err)
		assert.Contains(t, leaf.Body, "Good week.")
	})

	t.Run("truncated gets end appended", func(t *testing.T) {
		in := "\\documentclass[../master/master.tex]{subfiles}\n\\begin{document}\nHalf"
		out := EnsureLeaf(in, "../master/master.tex")
		assert.True(t, strings.HasPrefix(out, in))
		_, err := ParseLeaf(out)
		require.NoError(t, err)
	})

	t.Run("body without class rewrapped", func(t *testing.T) {
		in := "\\begin{document}\nInside\n\\end{document}\n"
		out := EnsureLeaf(in, "../master/master.tex")
		leaf, err := ParseLeaf(out)
		require.NoError(t, err)
		assert.Equal(t, "Inside", strings.TrimSpace(leaf.Body))
	})

	t.Run("duplicate wrappers stripped", func(t *testing.T) {
		in := "\\begin{document}\nA\n\\begin{document}\nB\n\\end{document}"
		_, err := ParseLeaf(EnsureLeaf(in, ""))
		require.NoError(t, err)
	})
}

func TestLeafMetadata(t *testing.T) {
	md := LeafMetadata(lecture)
	assert.Equal(t, "6", md.Number)
	assert.Equal(t, "Feb 7", md.Date)
	assert.Equal(t, "Sequences", md.Topic)
	assert.Equal(t, "Convergent sequences are bounded.", md.Summary)
}
