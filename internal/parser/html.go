package parser

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/ariavasulin/YouLearn/internal/doctree"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. With Readable set, the page is first
// reduced to its main article so navigation, ads and comment threads do not
// end up in the notebook.
type HTMLParser struct {
	Readable  bool
	SourceURL string
}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}

	tree := &doctree.DocTree{
		Title:  titleFromFilename(filename),
		Source: filename,
	}

	if p.Readable {
		article, err := readability.FromReader(bytes.NewReader(src), p.pageURL(filename))
		if err != nil {
			return nil, fmt.Errorf("extract article: %w", err)
		}
		if t := strings.TrimSpace(article.Title); t != "" {
			tree.Title = t
		}
		if strings.TrimSpace(article.Content) != "" {
			src = []byte(article.Content)
		}
	}

	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if title := findTitle(doc); title != "" && !p.Readable {
		tree.Title = title
	}

	o := newOutline()
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				o.heading(level, textContent(n), 0)
				return
			}
			switch n.Data {
			case "script", "style", "nav", "footer", "header", "title", "noscript":
				return
			case "pre":
				o.paragraph(rawText(n))
				return
			case "p", "li", "td", "blockquote", "dt", "dd", "figcaption":
				o.paragraph(textContent(n))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if body := findElement(doc, "body"); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	return o.finish(tree), nil
}

// pageURL is the base used to resolve relative links. A file without a
// known origin gets a file: URL so extraction still has an absolute base.
func (p *HTMLParser) pageURL(filename string) *url.URL {
	if p.SourceURL != "" {
		if u, err := url.Parse(p.SourceURL); err == nil && u.IsAbs() {
			return u
		}
	}
	return &url.URL{Scheme: "file", Path: "/" + strings.TrimPrefix(filename, "/")}
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// textContent is the element's text with whitespace collapsed.
func textContent(n *html.Node) string {
	return strings.Join(strings.Fields(rawText(n)), " ")
}

func rawText(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findTitle(n *html.Node) string {
	if t := findElement(n, "title"); t != nil {
		return textContent(t)
	}
	return ""
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
