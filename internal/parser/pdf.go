package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/ariavasulin/YouLearn/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It tries the Go library first, then falls
// back to pdftotext if enabled. Pages are grouped under chapters when
// chapter headings are found near the top of a page.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	pages, err := extractPDFPages(data)
	if err != nil && p.FallbackPdftotext {
		pages, err = extractPdftotext(data)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	tree := &doctree.DocTree{
		Title:  titleFromFilename(filename),
		Source: filename,
	}
	tree.Children = outlinePages(pages)
	return tree, nil
}

// extractPDFPages reads the text of every page. The pdf library panics on
// some malformed files; that is reported as an error.
func extractPDFPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	pages = make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func extractPdftotext(data []byte) ([]string, error) {
	tmp, err := os.CreateTemp("", "notebook-import-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	out, err := exec.Command("pdftotext", "-layout", tmp.Name(), "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	// pdftotext separates pages with form feeds.
	return strings.Split(strings.TrimSuffix(string(out), "\f"), "\f"), nil
}

// headingWindow is how many non-blank lines at the top of a page are
// searched for chapter and section headings.
const headingWindow = 10

var (
	chapterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^chapter\s+(\d+|[IVXLC]+)[:.\s]*(.*)`),
		regexp.MustCompile(`(?i)^part\s+(\d+|[IVXLC]+)[:.\s]*(.*)`),
		regexp.MustCompile(`^§\s*(\d+)\s*(.*)`),
		regexp.MustCompile(`^(\d+)\s+([A-Z]{2,}(?:\s+[A-Z]{2,}){2,})$`),
	}
	sectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(\d+\.\d+)\s+(.*)`),
		regexp.MustCompile(`^Section\s+(\d+)[:.\s]*(.*)`),
		regexp.MustCompile(`^§\s*(\d+\.\d+)\s*(.*)`),
	}
	// Exercise statements such as "3. Prove that ..." are not chapters.
	chapterBlacklist = regexp.MustCompile(`^(\d+)\.\s*(Let|Define|Prove|Show|Find|Compute|If|Suppose|Given)`)
)

func detectHeading(text string, patterns []*regexp.Regexp) string {
	seen := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if seen++; seen > headingWindow {
			break
		}
		if chapterBlacklist.MatchString(line) {
			continue
		}
		for _, re := range patterns {
			if re.MatchString(line) {
				return line
			}
		}
	}
	return ""
}

// outlinePages turns page texts into nodes. With chapter headings, each
// chapter holds its pages; pages before the first chapter stay at the top
// level. Without any, every page is a top-level node.
func outlinePages(pages []string) []*doctree.DocNode {
	var out []*doctree.DocNode
	var chapter *doctree.DocNode
	for i, text := range pages {
		num := i + 1
		text = cleanText(text)
		if text == "" {
			continue
		}

		if title := detectHeading(text, chapterPatterns); title != "" {
			chapter = &doctree.DocNode{Title: title, Page: num}
			out = append(out, chapter)
		}

		page := &doctree.DocNode{Title: fmt.Sprintf("Page %d", num), Page: num, Text: text}
		if section := detectHeading(text, sectionPatterns); section != "" && (chapter == nil || section != chapter.Title) {
			page.Text = "**" + section + "**\n\n" + text
		}
		if chapter != nil {
			chapter.Children = append(chapter.Children, page)
		} else {
			out = append(out, page)
		}
	}
	return out
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(blankRuns.ReplaceAllString(s, "\n\n"))
}
