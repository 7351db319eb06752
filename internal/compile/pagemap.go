package compile

import (
	"strconv"
	"strings"

	"github.com/ariavasulin/YouLearn/internal/texscan"
)

// DefaultPageMapTypes are the heading types kept in a page map.
var DefaultPageMapTypes = []string{"section", "subsection"}

// PageEntry is one heading of the compiled aggregate.
type PageEntry struct {
	Type   string `json:"type"`
	Number string `json:"number,omitempty"`
	Title  string `json:"title"`
	Page   int    `json:"page"`
	Label  string `json:"label,omitempty"` // page as printed when not arabic
}

// ParsePageMap reads \contentsline{type}{[\numberline{n}]title}{page}
// entries from auxiliary output in document order, keeping the listed
// types.
func ParsePageMap(aux string, types ...string) []PageEntry {
	if len(types) == 0 {
		types = DefaultPageMapTypes
	}
	keep := make(map[string]bool, len(types))
	for _, t := range types {
		keep[t] = true
	}

	var out []PageEntry
	for _, inv := range texscan.Commands(aux, 3, "contentsline") {
		if len(inv.Args) < 3 {
			continue
		}
		typ := strings.TrimSpace(inv.Args[0])
		if !keep[typ] {
			continue
		}

		entry := PageEntry{Type: typ}
		title := inv.Args[1]
		if nums := texscan.Commands(title, 1, "numberline"); len(nums) > 0 {
			entry.Number = strings.TrimSpace(nums[0].Args[0])
			title = title[:nums[0].Start] + title[nums[0].End:]
		}
		entry.Title = texscan.PlainText(title)

		page := strings.TrimSpace(inv.Args[2])
		if n, err := strconv.Atoi(page); err == nil {
			entry.Page = n
		} else {
			entry.Label = page
		}
		out = append(out, entry)
	}
	return out
}
