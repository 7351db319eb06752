package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariavasulin/YouLearn/internal/doctree"
	"github.com/ariavasulin/YouLearn/internal/notebook"
	"github.com/ariavasulin/YouLearn/internal/texscan"
)

// Finding is one verified claim.
type Finding struct {
	Source          string `json:"source"`
	Claim           string `json:"claim"`
	Status          Status `json:"status"`
	Correction      string `json:"correction,omitempty"`
	SourceReference string `json:"source_reference,omitempty"`
	Explanation     string `json:"explanation"`
}

// Report is the verification output. Each run replaces the previous report.
type Report struct {
	Timestamp    time.Time `json:"timestamp"`
	FilesChecked []string  `json:"files_checked"`
	Findings     []Finding `json:"findings"`
}

// Counts tallies findings by status.
func (r *Report) Counts() map[Status]int {
	out := map[Status]int{StatusCorrect: 0, StatusCorrected: 0, StatusUnverifiable: 0}
	for _, f := range r.Findings {
		out[f.Status]++
	}
	return out
}

// LoadReport reads the current report. A missing report returns
// notebook.ErrNotFound.
func LoadReport(nb *notebook.Notebook) (*Report, error) {
	data, err := nb.Read(nb.Layout().Report)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

var statusLabel = map[Status]string{
	StatusCorrect:      "OK",
	StatusCorrected:    "ISSUE",
	StatusUnverifiable: "?",
}

// FormatReport renders the report as markdown for a reader or a chat
// context. An empty report renders as an empty string.
func FormatReport(r *Report) string {
	if r == nil || len(r.Findings) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("### Fact-Check Report (auto-generated)\n")
	fmt.Fprintf(&sb, "_Last run %s: checked %d claim(s) in %d file(s)_\n\n",
		r.Timestamp.UTC().Format(time.RFC3339), len(r.Findings), len(r.FilesChecked))

	for _, f := range r.Findings {
		label, ok := statusLabel[f.Status]
		if !ok {
			label = "?"
		}
		fmt.Fprintf(&sb, "**[%s]** `%s`: %s\n", label, f.Source, f.Claim)
		if f.Status == StatusCorrected {
			fmt.Fprintf(&sb, "  Suggested correction: %s\n", f.Correction)
			if f.SourceReference != "" {
				fmt.Fprintf(&sb, "  Source: %s\n", f.SourceReference)
			}
		}
		if f.Explanation != "" {
			fmt.Fprintf(&sb, "  %s\n", f.Explanation)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// LoadNarrative returns the narrative body without its wrapper. ok is false
// when the leaf is missing, unparseable or still the placeholder.
func LoadNarrative(nb *notebook.Notebook) (body string, ok bool, err error) {
	data, err := nb.Read(nb.Layout().Narrative)
	if errors.Is(err, notebook.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	leaf, err := doctree.ParseLeaf(string(data))
	if err != nil {
		return "", false, nil
	}
	body = strings.TrimSpace(leaf.Body)
	if texscan.PlainText(body) == "" || strings.Contains(body, notebook.NarrativePlaceholder) {
		return "", false, nil
	}
	return body, true, nil
}
