package ingest

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// maxPageChars caps extracted webpage text so one huge page cannot flood
// the index.
const maxPageChars = 10000

// skipTags are elements whose text is page chrome, not content.
var skipTags = map[string]bool{
	"script": true,
	"style":  true,
	"nav":    true,
	"footer": true,
	"header": true,
}

// contentClasses mark the containers documentation sites usually put their
// body text in, checked in addition to the main and article tags.
var contentClasses = map[string]bool{
	"main":         true,
	"content":      true,
	"post-content": true,
	"markdown":     true,
	"docs-content": true,
}

// extractWebpageText pulls readable text out of an HTML page. It prefers
// the most specific content containers and falls back to the whole body,
// collapses whitespace and caps the result at maxPageChars.
func extractWebpageText(page []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", err
	}

	var parts []string
	var findContainers func(*html.Node)
	findContainers = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if isSkipped(n) {
				return
			}
			if isContentContainer(n) {
				if t := nodeText(n); t != "" {
					parts = append(parts, t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findContainers(c)
		}
	}
	findContainers(doc)

	text := strings.Join(parts, " ")
	if text == "" {
		text = nodeText(doc)
	}

	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > maxPageChars {
		text = string(runes[:maxPageChars])
	}
	return text, nil
}

func isSkipped(n *html.Node) bool {
	if skipTags[n.Data] {
		return true
	}
	for _, class := range nodeClasses(n) {
		if skipTags[class] {
			return true
		}
	}
	return false
}

func isContentContainer(n *html.Node) bool {
	if n.Data == "main" || n.Data == "article" {
		return true
	}
	for _, class := range nodeClasses(n) {
		if contentClasses[class] {
			return true
		}
	}
	return false
}

func nodeClasses(n *html.Node) []string {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			return strings.Fields(strings.ToLower(attr.Val))
		}
	}
	return nil
}

// nodeText collects the text below n, skipping chrome elements.
func nodeText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode && isSkipped(n) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}
