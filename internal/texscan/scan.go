// Package texscan is a small paired-delimiter scanner for the markup the
// notebook engine needs to understand: balanced brace groups, optional
// bracket arguments, \begin/\end environments and command invocations.
//
// It is not a markup parser. Malformed input (an unbalanced group or an
// environment without its \end) is skipped rather than guessed at.
package texscan

import (
	"strings"
)

// Group scans a balanced delimited group starting at src[i], which must be
// the opening delimiter ('{' or '['). It returns the inner text and the index
// just past the closing delimiter. Escaped delimiters (\{ \}) do not count
// and '%' starts a comment that runs to the end of the line.
func Group(src string, i int) (inner string, end int, ok bool) {
	if i >= len(src) {
		return "", i, false
	}
	open := src[i]
	var close byte
	switch open {
	case '{':
		close = '}'
	case '[':
		close = ']'
	default:
		return "", i, false
	}

	depth := 0
	for j := i; j < len(src); j++ {
		c := src[j]
		switch {
		case c == '\\':
			j++ // skip escaped character
		case c == '%':
			nl := strings.IndexByte(src[j:], '\n')
			if nl < 0 {
				return "", i, false
			}
			j += nl
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return src[i+1 : j], j + 1, true
			}
		}
	}
	return "", i, false
}

// Invocation is one command occurrence with its arguments.
type Invocation struct {
	Name     string   // command name without the backslash
	Starred  bool     // \section* form
	Optional []string // [..] arguments, in order
	Args     []string // {..} arguments, in order
	Start    int      // offset of the backslash
	End      int      // offset just past the last consumed argument
}

// Commands finds invocations of the named commands and consumes up to
// maxArgs mandatory brace arguments for each (optional bracket arguments
// before them are collected too). A command whose mandatory argument cannot
// be scanned is skipped. Commented-out invocations are ignored.
func Commands(src string, maxArgs int, names ...string) []Invocation {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var out []Invocation
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '%':
			if nl := strings.IndexByte(src[i:], '\n'); nl >= 0 {
				i += nl
				continue
			}
			return out
		case '\\':
		default:
			continue
		}

		name, next := commandName(src, i+1)
		if name == "" {
			i++ // escaped symbol such as \% or \{
			continue
		}
		if !want[name] {
			i = next - 1
			continue
		}

		inv := Invocation{Name: name, Start: i}
		j := next
		if j < len(src) && src[j] == '*' {
			inv.Starred = true
			j++
		}
		for {
			j = skipSpace(src, j)
			if j < len(src) && src[j] == '[' && len(inv.Args) == 0 {
				opt, end, ok := Group(src, j)
				if !ok {
					break
				}
				inv.Optional = append(inv.Optional, opt)
				j = end
				continue
			}
			if j < len(src) && src[j] == '{' && len(inv.Args) < maxArgs {
				arg, end, ok := Group(src, j)
				if !ok {
					break
				}
				inv.Args = append(inv.Args, arg)
				j = end
				continue
			}
			break
		}
		if maxArgs > 0 && len(inv.Args) == 0 {
			i = next - 1
			continue
		}
		inv.End = j
		out = append(out, inv)
		i = j - 1
	}
	return out
}

// Block is one \begin{name}...\end{name} environment.
type Block struct {
	Name  string
	Body  string // text between the \begin{..} (and its arguments) and \end{..}
	Start int    // offset of \begin
	End   int    // offset just past \end{name}
}

// Environments returns the outermost blocks of the named environments in
// source order. A same-name environment nested inside another is part of
// the outer block's body. Unterminated blocks are skipped.
func Environments(src string, names ...string) []Block {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	markers := Commands(src, 1, "begin", "end")
	var out []Block
	for k := 0; k < len(markers); k++ {
		m := markers[k]
		if m.Name != "begin" || !want[m.Args[0]] {
			continue
		}
		name := m.Args[0]
		depth := 0
		for e := k; e < len(markers); e++ {
			n := markers[e]
			if n.Args[0] != name {
				continue
			}
			if n.Name == "begin" {
				depth++
				continue
			}
			depth--
			if depth == 0 {
				bodyStart := skipArgs(src, m.End)
				out = append(out, Block{
					Name:  name,
					Body:  src[bodyStart:n.Start],
					Start: m.Start,
					End:   n.End,
				})
				k = e
				break
			}
		}
	}
	return out
}

// StripComments removes unescaped '%' comments, keeping line breaks.
func StripComments(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))
	for i := 0; i < len(src); i++ {
		c := src[i]
		if c == '\\' && i+1 < len(src) {
			sb.WriteByte(c)
			sb.WriteByte(src[i+1])
			i++
			continue
		}
		if c == '%' {
			nl := strings.IndexByte(src[i:], '\n')
			if nl < 0 {
				break
			}
			i += nl - 1
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

var plainReplacer = strings.NewReplacer(
	`\&`, "&",
	`\%`, "%",
	`\$`, "$",
	`\#`, "#",
	`\_`, "_",
	`\{`, "{",
	`\}`, "}",
	`\\`, " ",
	"---", "—",
	"--", "–",
	"~", " ",
)

// PlainText strips markup to readable text: comments are dropped, command
// names are removed while their brace arguments are kept, and math
// delimiters and braces disappear. Whitespace is collapsed.
func PlainText(src string) string {
	src = StripComments(src)
	src = plainReplacer.Replace(src)

	var sb strings.Builder
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch c {
		case '\\':
			name, next := commandName(src, i+1)
			if name == "" {
				continue
			}
			// Drop optional arguments of the command; keep mandatory ones.
			j := next
			for j < len(src) && src[j] == '[' {
				_, end, ok := Group(src, j)
				if !ok {
					break
				}
				j = end
			}
			i = j - 1
			sb.WriteByte(' ')
		case '{', '}', '$':
		default:
			sb.WriteByte(c)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func commandName(src string, i int) (string, int) {
	j := i
	for j < len(src) && isLetter(src[j]) {
		j++
	}
	return src[i:j], j
}

func skipSpace(src string, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	return i
}

// skipArgs skips bracket and brace arguments that directly follow a
// \begin{name}, e.g. \begin{itemize}[nosep] or \begin{theorem}[Heine-Borel].
func skipArgs(src string, i int) int {
	for i < len(src) && (src[i] == '[' || src[i] == '{') {
		_, end, ok := Group(src, i)
		if !ok {
			return i
		}
		i = end
	}
	return i
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '@'
}
