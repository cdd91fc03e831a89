package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Office Open XML documents (.docx, .pptx, .xlsx) are zip archives of XML
// parts. Text lives in <w:t> runs (Word), <a:t> runs (PowerPoint), and the
// shared strings table (Excel); harvesting those elements covers the
// visible text of each format.

// extractDocx extracts text from word/document.xml runs
func (s *Service) extractDocx(path string) (string, error) {
	return extractZipXMLText(path, func(name string) bool {
		return name == "word/document.xml"
	}, "t")
}

// extractPptx extracts text from every slide, in slide order
func (s *Service) extractPptx(path string) (string, error) {
	return extractZipXMLText(path, func(name string) bool {
		return strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml")
	}, "t")
}

// extractXlsx extracts the shared strings table (cell text)
func (s *Service) extractXlsx(path string) (string, error) {
	return extractZipXMLText(path, func(name string) bool {
		return name == "xl/sharedStrings.xml"
	}, "t")
}

// extractZipXMLText harvests the character data of matching XML elements
// from selected archive members
func extractZipXMLText(path string, match func(string) bool, element string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer reader.Close()

	var members []*zip.File
	for _, file := range reader.File {
		if match(file.Name) {
			members = append(members, file)
		}
	}
	if len(members) == 0 {
		return "", fmt.Errorf("no text parts found in archive")
	}

	// Slide files enumerate in archive order; sort by name for slide order
	sort.Slice(members, func(i, j int) bool {
		return members[i].Name < members[j].Name
	})

	var builder strings.Builder
	for _, member := range members {
		rc, err := member.Open()
		if err != nil {
			continue
		}
		text, err := harvestElementText(rc, element)
		rc.Close()
		if err != nil {
			continue
		}
		if text != "" {
			if builder.Len() > 0 {
				builder.WriteString("\n\n")
			}
			builder.WriteString(text)
		}
	}

	return builder.String(), nil
}

// harvestElementText streams an XML document and collects the character
// data of every element with the given local name
func harvestElementText(r io.Reader, element string) (string, error) {
	decoder := xml.NewDecoder(r)

	var builder strings.Builder
	depth := 0 // Nesting depth inside a matching element
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("malformed XML: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == element {
				depth++
			} else if t.Name.Local == "p" || t.Name.Local == "br" {
				// Paragraph and line breaks separate runs
				if builder.Len() > 0 {
					builder.WriteString("\n")
				}
			}
		case xml.EndElement:
			if t.Name.Local == element && depth > 0 {
				depth--
				builder.WriteString(" ")
			}
		case xml.CharData:
			if depth > 0 {
				builder.Write(t)
			}
		}
	}

	return strings.TrimSpace(builder.String()), nil
}
