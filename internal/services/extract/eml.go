package extract

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/emersion/go-message/mail"
)

// extractEmail extracts the subject and text body from an .eml container.
// text/plain parts are preferred; text/html parts are converted to markdown
// when no plain part exists.
func (s *Service) extractEmail(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	mr, err := mail.CreateReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse email: %w", err)
	}

	subject, _ := mr.Header.Subject()
	from, _ := mr.Header.AddressList("From")
	date, _ := mr.Header.Date()

	var plainBody, htmlBody string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			if b, err := io.ReadAll(p.Body); err == nil && plainBody == "" {
				plainBody = string(b)
			}
		case strings.HasPrefix(contentType, "text/html"):
			if b, err := io.ReadAll(p.Body); err == nil && htmlBody == "" {
				htmlBody = string(b)
			}
		}
	}

	body := strings.TrimSpace(plainBody)
	if body == "" && htmlBody != "" {
		if converted, err := htmlToMarkdown(htmlBody); err == nil {
			body = strings.TrimSpace(converted)
		}
	}

	var builder strings.Builder
	if subject != "" {
		builder.WriteString("Subject: " + subject + "\n")
	}
	if len(from) > 0 {
		builder.WriteString("From: " + from[0].String() + "\n")
	}
	if !date.IsZero() {
		builder.WriteString("Date: " + date.Format("2006-01-02 15:04") + "\n")
	}
	if builder.Len() > 0 {
		builder.WriteString("\n")
	}
	builder.WriteString(body)

	return builder.String(), nil
}
