// Package render turns assistant markdown into terminal or HTML output.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/kayz/deepsearch/internal/search"
)

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func htmlPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AddTargetBlankToFullyQualifiedLinks(true)
		p.RequireNoReferrerOnLinks(true)
		policy = p
	})
	return policy
}

// HTML converts markdown to sanitized HTML. External links open in a new tab.
func HTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return htmlPolicy().Sanitize(buf.String()), nil
}

// Terminal renders markdown for a terminal of the given width.
func Terminal(md string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}

// Sources formats citations as a markdown list.
func Sources(results []search.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("**Sources:**\n\n")
	for i, r := range results {
		if r.URL != "" {
			fmt.Fprintf(&sb, "%d. [%s](%s)  \n   %s\n", i+1, r.Title, r.URL, r.Snippet)
		} else {
			fmt.Fprintf(&sb, "%d. %s  \n   %s\n", i+1, r.Title, r.Snippet)
		}
	}
	return sb.String()
}
