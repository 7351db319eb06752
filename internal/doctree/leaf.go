package doctree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ariavasulin/YouLearn/internal/texscan"
)

// ErrInvalidLeaf means text does not have the leaf document wrapper.
var ErrInvalidLeaf = errors.New("invalid leaf document")

// Leaf is a parsed leaf document.
type Leaf struct {
	Class    string // document class, e.g. subfiles
	MainRef  string // class option naming the main document, if any
	Preamble string // text between \documentclass and \begin{document}
	Body     string // text inside the document environment
}

// ParseLeaf checks the leaf wrapper: a \documentclass line followed by
// exactly one \begin{document} and one later \end{document}.
func ParseLeaf(text string) (*Leaf, error) {
	classes := texscan.Commands(text, 1, "documentclass")
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: no \\documentclass", ErrInvalidLeaf)
	}
	begins, ends := documentMarkers(text)
	if len(begins) != 1 || len(ends) != 1 {
		return nil, fmt.Errorf("%w: want one document environment, found %d begin and %d end",
			ErrInvalidLeaf, len(begins), len(ends))
	}
	b, e := begins[0], ends[0]
	if classes[0].Start > b.Start || b.End > e.Start {
		return nil, fmt.Errorf("%w: document wrapper out of order", ErrInvalidLeaf)
	}

	leaf := &Leaf{
		Class:    classes[0].Args[0],
		Preamble: text[classes[0].End:b.Start],
		Body:     text[b.End:e.Start],
	}
	if len(classes[0].Optional) > 0 {
		leaf.MainRef = classes[0].Optional[0]
	}
	return leaf, nil
}

func documentMarkers(text string) (begins, ends []texscan.Invocation) {
	for _, inv := range texscan.Commands(text, 1, "begin", "end") {
		if inv.Args[0] != "document" {
			continue
		}
		if inv.Name == "begin" {
			begins = append(begins, inv)
		} else {
			ends = append(ends, inv)
		}
	}
	return begins, ends
}

// WrapLeaf builds a leaf document around body. An empty mainRef yields a
// plain article leaf.
func WrapLeaf(body, mainRef string) string {
	var sb strings.Builder
	if mainRef != "" {
		fmt.Fprintf(&sb, "\\documentclass[%s]{subfiles}\n", mainRef)
	} else {
		sb.WriteString("\\documentclass{article}\n")
	}
	sb.WriteString("\\begin{document}\n\n")
	sb.WriteString(strings.TrimSpace(body))
	sb.WriteString("\n\n\\end{document}\n")
	return sb.String()
}

// EnsureLeaf returns text unchanged when it is already a valid leaf. A leaf
// cut off before \end{document} gets the closing line appended; anything
// else has its stray wrapper pieces removed and is wrapped again. The result
// always passes ParseLeaf.
func EnsureLeaf(text, mainRef string) string {
	if _, err := ParseLeaf(text); err == nil {
		return text
	}

	classes := texscan.Commands(text, 1, "documentclass")
	begins, ends := documentMarkers(text)
	if len(classes) > 0 && len(begins) == 1 && len(ends) == 0 && classes[0].Start < begins[0].Start {
		repaired := strings.TrimRight(text, " \t\n") + "\n\n\\end{document}\n"
		if _, err := ParseLeaf(repaired); err == nil {
			return repaired
		}
	}

	body := text
	if len(begins) > 0 {
		body = text[begins[0].End:]
		if len(ends) > 0 && ends[len(ends)-1].Start > begins[0].End {
			body = text[begins[0].End:ends[len(ends)-1].Start]
		}
	}
	return WrapLeaf(removeWrapperCommands(body), mainRef)
}

func removeWrapperCommands(body string) string {
	type span struct{ start, end int }
	var cut []span
	for _, inv := range texscan.Commands(body, 1, "documentclass", "begin", "end") {
		if inv.Name == "documentclass" || inv.Args[0] == "document" {
			cut = append(cut, span{inv.Start, inv.End})
		}
	}
	if len(cut) == 0 {
		return body
	}
	var sb strings.Builder
	last := 0
	for _, s := range cut {
		sb.WriteString(body[last:s.start])
		last = s.end
	}
	sb.WriteString(body[last:])
	return sb.String()
}

// Metadata is what a lecture leaf declares about itself.
type Metadata struct {
	Number  string
	Date    string
	Topic   string
	Summary string
}

// LeafMetadata reads \renewcommand{\lecturenum}{..} style declarations and
// the lecturesummary block.
func LeafMetadata(text string) Metadata {
	var md Metadata
	for _, inv := range texscan.Commands(text, 2, "renewcommand") {
		if len(inv.Args) < 2 {
			continue
		}
		val := strings.TrimSpace(inv.Args[1])
		switch strings.TrimSpace(inv.Args[0]) {
		case `\lecturenum`:
			md.Number = val
		case `\lecturedate`:
			md.Date = val
		case `\lecturetopic`:
			md.Topic = val
		}
	}
	if blocks := texscan.Environments(text, "lecturesummary"); len(blocks) > 0 {
		md.Summary = strings.TrimSpace(blocks[0].Body)
	}
	return md
}
