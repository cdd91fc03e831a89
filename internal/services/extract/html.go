package extract

import (
	"fmt"
	"os"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// extractHTML converts an HTML file to markdown text. Markdown output keeps
// the document structure (headings, lists) that plain text stripping loses.
func (s *Service) extractHTML(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return htmlToMarkdown(decodeText(data))
}

// htmlToMarkdown converts an HTML fragment to markdown text
func htmlToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML: %w", err)
	}
	return markdown, nil
}
