package extract

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
)

// extractMarkdown renders markdown to HTML, then harvests the visible text.
// Rendering first strips link targets, code fences, and table syntax that
// would otherwise pollute the chunk content.
func (s *Service) extractMarkdown(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var html bytes.Buffer
	if err := goldmark.Convert([]byte(decodeText(data)), &html); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(&html)
	if err != nil {
		return "", fmt.Errorf("failed to parse rendered markdown: %w", err)
	}

	// Collect block-level text so paragraph boundaries survive for chunking
	var blocks []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, td, th, blockquote").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}

	return strings.Join(blocks, "\n\n"), nil
}
