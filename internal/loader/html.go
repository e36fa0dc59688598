package loader

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// skippedElements are containers whose text is never document content.
var skippedElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"head":     {},
}

// parseHTML extracts visible text from an HTML document as a single text
// unit, with block boundaries preserved as newlines.
func parseHTML(content []byte) ([]string, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	var b strings.Builder
	collectText(root, &b)

	text := collapseBlankLines(b.String())
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode {
		if _, skip := skippedElements[n.Data]; skip {
			return
		}
	}
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			b.WriteString(text)
			b.WriteByte('\n')
		}
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, b)
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
