// Package chunker fits labeled text sections into a token budget for a
// single generation call.
package chunker

import (
	"fmt"
	"strings"
)

// minSectionTokens is the smallest remainder worth truncating into; below
// it a section is dropped.
const minSectionTokens = 32

// Section is one labeled input to a prompt payload. Sections are packed in
// the order given, so earlier sections have priority.
type Section struct {
	Label string
	Text  string
}

// Packed is the result of fitting sections into a budget.
type Packed struct {
	Sections  []Section
	Tokens    int
	Truncated []string // labels of sections cut short
	Dropped   []string // labels of sections left out entirely
}

// Pack keeps sections in order until the budget runs out. The section that
// crosses the budget is truncated by paragraph and sentence; everything
// after it is dropped. A non-positive budget keeps everything.
func Pack(sections []Section, budget int) Packed {
	var p Packed
	remaining := budget
	for _, s := range sections {
		tokens := EstimateTokens(s.Text) + EstimateTokens(s.Label)
		if budget <= 0 || tokens <= remaining {
			p.Sections = append(p.Sections, s)
			p.Tokens += tokens
			remaining -= tokens
			continue
		}
		if remaining < minSectionTokens {
			p.Dropped = append(p.Dropped, s.Label)
			continue
		}
		cut := Truncate(s.Text, remaining-EstimateTokens(s.Label))
		used := EstimateTokens(cut) + EstimateTokens(s.Label)
		p.Sections = append(p.Sections, Section{Label: s.Label, Text: cut})
		p.Truncated = append(p.Truncated, s.Label)
		p.Tokens += used
		remaining = 0
	}
	return p
}

// String renders the packed sections as a delimited prompt body.
func (p Packed) String() string {
	var sb strings.Builder
	for i, s := range p.Sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "=== %s ===\n%s", s.Label, strings.TrimSpace(s.Text))
	}
	return sb.String()
}

// Truncate shortens text to roughly tokens, cutting at paragraph and then
// sentence boundaries. A single oversized sentence is cut by words.
func Truncate(text string, tokens int) string {
	if tokens <= 0 {
		return ""
	}
	if EstimateTokens(text) <= tokens {
		return text
	}
	parts := splitText(text, tokens, 0)
	if len(parts) == 0 {
		return ""
	}
	head := parts[0]
	if EstimateTokens(head) > tokens {
		words := strings.Fields(head)
		keep := int(float64(tokens) / 1.33)
		if keep > len(words) {
			keep = len(words)
		}
		head = strings.Join(words[:keep], " ")
	}
	return head
}

// splitText breaks text into chunks of approximately targetTokens, with overlap.
func splitText(text string, targetTokens, overlapTokens int) []string {
	paragraphs := splitByParagraphs(text)

	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, para := range paragraphs {
		paraTokens := EstimateTokens(para)

		if paraTokens > targetTokens {
			if currentTokens > 0 {
				result = append(result, current.String())
				current.Reset()
				currentTokens = 0
			}
			result = append(result, splitBySentences(para, targetTokens, overlapTokens)...)
			continue
		}

		if currentTokens+paraTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())

			overlap := overlapText(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += paraTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}
	return result
}

// splitByParagraphs splits on blank lines.
func splitByParagraphs(text string) []string {
	var result []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

func splitBySentences(text string, targetTokens, overlapTokens int) []string {
	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, sent := range splitSentences(text) {
		sentTokens := EstimateTokens(sent)

		if currentTokens+sentTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())
			overlap := overlapText(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentTokens += sentTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}
	return result
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// overlapText returns the last targetTokens worth of words.
func overlapText(text string, targetTokens int) string {
	words := strings.Fields(text)
	targetWords := int(float64(targetTokens) / 1.33)
	if targetWords <= 0 || len(words) <= targetWords {
		return ""
	}
	return strings.Join(words[len(words)-targetWords:], " ")
}
