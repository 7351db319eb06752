// Package nesting demotes the headings of an embedded leaf by one level
// without touching the leaf's own markup.
//
// The heading commands are modelled as bindings from command name to the
// level it renders at. Entering a frame snapshots every binding first and
// then rebinds each level to the snapshotted definition of the next one.
// Rebinding from live definitions instead would demote section twice once
// subsection had already been moved. The same scheme is emitted as markup
// by Preamble for the real compiler.
package nesting

import (
	"fmt"
	"maps"
	"strings"

	"github.com/ariavasulin/YouLearn/internal/texscan"
)

// HeadingCommands lists the remappable commands from shallowest to deepest.
var HeadingCommands = []string{"section", "subsection", "subsubsection", "paragraph", "subparagraph"}

// Bindings maps a heading command to the level it renders at.
type Bindings map[string]int

// DefaultBindings renders section at 1 through subparagraph at 5.
func DefaultBindings() Bindings {
	b := make(Bindings, len(HeadingCommands))
	for i, cmd := range HeadingCommands {
		b[cmd] = i + 1
	}
	return b
}

// Frame is one active demotion. Exit restores the bindings captured when
// the frame was entered.
type Frame struct {
	b      Bindings
	saved  Bindings
	exited bool
}

// Enter demotes every heading in b by one level. The deepest command keeps
// its own definition.
func Enter(b Bindings) *Frame {
	snap := maps.Clone(b)
	last := len(HeadingCommands) - 1
	for i, cmd := range HeadingCommands {
		next := min(i+1, last)
		b[cmd] = snap[HeadingCommands[next]]
	}
	return &Frame{b: b, saved: snap}
}

// Exit restores the snapshot. Calling it twice is a no-op.
func (f *Frame) Exit() {
	if f.exited {
		return
	}
	f.exited = true
	for k := range f.b {
		if _, ok := f.saved[k]; !ok {
			delete(f.b, k)
		}
	}
	maps.Copy(f.b, f.saved)
}

// Heading is one heading command found in a leaf.
type Heading struct {
	Command string `json:"command"`
	Title   string `json:"title"`
	Level   int    `json:"level"`
	Starred bool   `json:"starred,omitempty"`
}

// Headings resolves the headings in src under b.
func Headings(src string, b Bindings) []Heading {
	var out []Heading
	for _, inv := range texscan.Commands(src, 1, HeadingCommands...) {
		out = append(out, Heading{
			Command: inv.Name,
			Title:   texscan.PlainText(inv.Args[0]),
			Level:   b[inv.Name],
			Starred: inv.Starred,
		})
	}
	return out
}

// Embed resolves the headings of src as they render when included through
// \nestedsubfile under b. b is left as it was.
func Embed(src string, b Bindings) []Heading {
	f := Enter(b)
	defer f.Exit()
	return Headings(src, b)
}

const (
	blockBegin = "% BEGIN nesting adapter"
	blockEnd   = "% END nesting adapter"
	savePrefix = `\nb@saved@`
)

// Preamble returns the markup defining \nestedsubfile{path}. Inside a
// group it saves every heading command with \let, rebinds each level to the
// saved definition of the next, includes the file and restores the saved
// definitions.
func Preamble() string {
	var sb strings.Builder
	sb.WriteString(blockBegin + "\n")
	sb.WriteString("\\makeatletter\n")
	sb.WriteString("\\newcommand{\\nestedsubfile}[1]{%\n")
	sb.WriteString("  \\begingroup\n")
	for _, cmd := range HeadingCommands {
		fmt.Fprintf(&sb, "  \\let%s%s\\%s\n", savePrefix, cmd, cmd)
	}
	last := len(HeadingCommands) - 1
	for i, cmd := range HeadingCommands[:last] {
		fmt.Fprintf(&sb, "  \\let\\%s%s%s\n", cmd, savePrefix, HeadingCommands[i+1])
	}
	sb.WriteString("  \\subfile{#1}%\n")
	for _, cmd := range HeadingCommands {
		fmt.Fprintf(&sb, "  \\let\\%s%s%s\n", cmd, savePrefix, cmd)
	}
	sb.WriteString("  \\endgroup\n")
	sb.WriteString("}\n")
	sb.WriteString("\\makeatother\n")
	sb.WriteString(blockEnd + "\n")
	return sb.String()
}

// Install places the Preamble block into a main document just before
// \begin{document}. An existing block is replaced in place, so installing
// twice gives the same text as installing once.
func Install(main string) string {
	block := Preamble()
	if start := strings.Index(main, blockBegin); start >= 0 {
		if rel := strings.Index(main[start:], blockEnd); rel >= 0 {
			end := start + rel + len(blockEnd)
			if end < len(main) && main[end] == '\n' {
				end++
			}
			return main[:start] + block + main[end:]
		}
	}
	for _, inv := range texscan.Commands(main, 1, "begin") {
		if inv.Args[0] == "document" {
			return main[:inv.Start] + block + "\n" + main[inv.Start:]
		}
	}
	return block + main
}

// Installed reports whether main already carries the block.
func Installed(main string) bool {
	return strings.Contains(main, blockBegin) && strings.Contains(main, blockEnd)
}
