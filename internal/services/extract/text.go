package extract

import (
	"bytes"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// extractText decodes a plain-text file, trying a prioritized list of
// character encodings before a lossy fallback
func (s *Service) extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return decodeText(data), nil
}

// decodeText converts raw bytes to a string. UTF-8 and BOM-marked UTF-16
// are tried first, then windows-1252; anything left decodes as latin-1,
// which is total over all byte sequences.
func decodeText(data []byte) string {
	// UTF-16 BOM
	if len(data) >= 2 {
		if (data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF) {
			decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
			if decoded, err := decoder.Bytes(data); err == nil {
				return string(decoded)
			}
		}
	}

	if utf8.Valid(data) {
		// Strip a UTF-8 BOM if present
		return string(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))
	}

	if decoded, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil {
		return string(decoded)
	}

	// latin-1 maps every byte, so this never fails
	decoded, _ := charmap.ISO8859_1.NewDecoder().Bytes(data)
	return string(decoded)
}
