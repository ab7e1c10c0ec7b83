package fetch

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Elements whose text is never part of the readable content
const skipSelector = "script, style, noscript, iframe, svg, template, nav, footer, header, aside, form"

// Elements emitted as separate lines of text
const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, blockquote, pre, td, th, dd, dt, figcaption"

// ExtractText parses an HTML document and returns its title and readable text,
// one block element per line. Content inside <article> or <main> is preferred
// when present.
func ExtractText(r io.Reader) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", fmt.Errorf("parse HTML: %w", err)
	}

	title = collapse(doc.Find("title").First().Text())
	doc.Find(skipSelector).Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	var lines []string
	root.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are emitted by their outermost block only
		if s.ParentsFiltered(blockSelector).Length() > 0 {
			return
		}
		if line := collapse(s.Text()); line != "" {
			lines = append(lines, line)
		}
	})

	if len(lines) == 0 {
		if all := collapse(root.Text()); all != "" {
			lines = append(lines, all)
		}
	}

	return title, strings.Join(lines, "\n"), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
