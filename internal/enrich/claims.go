package enrich

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ariavasulin/YouLearn/internal/texscan"
)

// ClaimEnvironments are the annotation and formal-statement blocks whose
// bodies are treated as checkable claims.
var ClaimEnvironments = []string{
	"notebox", "historybox", "remark", "aside",
	"theorem", "proposition", "lemma", "corollary",
}

// ClaimCommands are commands whose argument is a checkable claim.
var ClaimCommands = []string{"footnote", "marginnote"}

// maxQueryRunes bounds the search query built from a claim.
const maxQueryRunes = 300

// Claim is one checkable statement found in a leaf.
type Claim struct {
	Source string // leaf path
	Zone   string // environment or command it came from
	Text   string // plain text of the statement
}

// Query is the search string for the claim.
func (c Claim) Query() string {
	if utf8.RuneCountInString(c.Text) <= maxQueryRunes {
		return c.Text
	}
	r := []rune(c.Text)
	return string(r[:maxQueryRunes])
}

// ExtractClaims returns the claims of one leaf in document order. Only text
// inside claim zones counts; a footnote nested in an already collected block
// is part of that block.
func ExtractClaims(source, text string) []Claim {
	type zone struct {
		name       string
		body       string
		start, end int
	}
	var zones []zone
	for _, b := range texscan.Environments(text, ClaimEnvironments...) {
		zones = append(zones, zone{b.Name, b.Body, b.Start, b.End})
	}
	for _, inv := range texscan.Commands(text, 1, ClaimCommands...) {
		zones = append(zones, zone{inv.Name, inv.Args[0], inv.Start, inv.End})
	}
	sort.SliceStable(zones, func(i, j int) bool { return zones[i].start < zones[j].start })

	var out []Claim
	coveredTo := -1
	for _, z := range zones {
		if z.start < coveredTo {
			continue
		}
		coveredTo = z.end
		plain := texscan.PlainText(z.body)
		if plain == "" {
			continue
		}
		out = append(out, Claim{Source: source, Zone: z.name, Text: plain})
	}
	return out
}

// claimTerms lowercases text and keeps words of four or more letters or
// digits.
func claimTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > utf8.RuneSelf)
	})
	var out []string
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= 4 {
			out = append(out, f)
		}
	}
	return out
}
