// Package scrape turns the static site document into plain prompt text.
package scrape

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// invisible lists elements whose text never renders in a browser.
var invisible = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// FileLoader reads a markup document from disk on every call.
type FileLoader struct {
	path string
}

func NewFileLoader(path string) (*FileLoader, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("scrape: document path must not be empty")
	}
	return &FileLoader{path: path}, nil
}

func (l *FileLoader) Path() string { return l.path }

// LoadText reads the document and returns its visible body text. Nothing is
// cached; edits to the file show up on the next call.
func (l *FileLoader) LoadText() (string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return "", fmt.Errorf("scrape: open %q: %w", l.path, err)
	}
	defer func() { _ = f.Close() }()

	text, err := ExtractBodyText(f)
	if err != nil {
		return "", fmt.Errorf("scrape: %q: %w", l.path, err)
	}
	return text, nil
}

// ExtractBodyText parses r as HTML and joins the visible text nodes under
// <body> with single spaces, in document order. Plain text input is treated
// as a body with a single text node.
func ExtractBodyText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	var parts []string
	doc.Find("body").Each(func(_ int, body *goquery.Selection) {
		for _, n := range body.Nodes {
			parts = collectText(n, parts)
		}
	})
	return strings.Join(parts, " "), nil
}

func collectText(n *html.Node, parts []string) []string {
	switch n.Type {
	case html.TextNode:
		if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
			parts = append(parts, t)
		}
		return parts
	case html.ElementNode:
		if invisible[n.Data] {
			return parts
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		parts = collectText(c, parts)
	}
	return parts
}
