package compile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/ariavasulin/YouLearn/internal/texscan"
)

type indexItem struct {
	key     string
	display string
	pages   []string
	subs    map[string]*indexItem
}

// BuildIndex turns the \indexentry{term}{page} lines of an .idx file into a
// theindex environment. Terms are grouped case-insensitively by sort key,
// pages are de-duplicated and sorted, and letter groups are separated with
// \indexspace. "key@display" and one level of "main!sub" are honored; an
// encapsulator after "|" is dropped.
func BuildIndex(idx string) string {
	top := make(map[string]*indexItem)
	for _, inv := range texscan.Commands(idx, 2, "indexentry") {
		if len(inv.Args) < 2 {
			continue
		}
		term, _, _ := strings.Cut(inv.Args[0], "|")
		page := strings.TrimSpace(inv.Args[1])
		if strings.TrimSpace(term) == "" || page == "" {
			continue
		}

		mainPart, subPart, hasSub := strings.Cut(term, "!")
		item := lookup(top, mainPart)
		if hasSub {
			if item.subs == nil {
				item.subs = make(map[string]*indexItem)
			}
			item = lookup(item.subs, subPart)
		}
		item.pages = appendUnique(item.pages, page)
	}

	var sb strings.Builder
	sb.WriteString("\\begin{theindex}\n")
	var group rune = -1
	for _, it := range sorted(top) {
		first := groupOf(it.key)
		if group != -1 && first != group {
			sb.WriteString("\n  \\indexspace\n")
		}
		group = first
		fmt.Fprintf(&sb, "\n  \\item %s%s\n", it.display, pageList(it.pages))
		for _, sub := range sorted(it.subs) {
			fmt.Fprintf(&sb, "    \\subitem %s%s\n", sub.display, pageList(sub.pages))
		}
	}
	sb.WriteString("\n\\end{theindex}\n")
	return sb.String()
}

func lookup(m map[string]*indexItem, raw string) *indexItem {
	key, display, ok := strings.Cut(raw, "@")
	if !ok {
		display = key
	}
	key = strings.ToLower(strings.TrimSpace(key))
	display = strings.TrimSpace(display)
	it, exists := m[key]
	if !exists {
		it = &indexItem{key: key, display: display}
		m[key] = it
	}
	return it
}

func sorted(m map[string]*indexItem) []*indexItem {
	out := make([]*indexItem, 0, len(m))
	for _, it := range m {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func appendUnique(pages []string, p string) []string {
	for _, existing := range pages {
		if existing == p {
			return pages
		}
	}
	return append(pages, p)
}

func pageList(pages []string) string {
	if len(pages) == 0 {
		return ""
	}
	sort.SliceStable(pages, func(i, j int) bool {
		a, errA := strconv.Atoi(pages[i])
		b, errB := strconv.Atoi(pages[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return false
		case errB == nil:
			return true
		default:
			return pages[i] < pages[j]
		}
	})
	return ", " + strings.Join(pages, ", ")
}

func groupOf(key string) rune {
	for _, r := range key {
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		return '#'
	}
	return '#'
}
