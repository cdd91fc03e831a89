// Package extract converts heterogeneous source files into raw text.
// Extraction is total over arbitrary input: recoverable failures (corrupt
// content, missing decoders, oversized files) produce sentinel extractions
// with bracketed placeholder text instead of errors, so downstream stages
// always have some content to chunk and embed.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/interfaces"
)

// Reason values for sentinel extractions
const (
	ReasonError       = "error"
	ReasonEmpty       = "empty"
	ReasonOversized   = "oversized"
	ReasonUnavailable = "unavailable"
)

type extractFunc func(path string) (string, error)

// Service dispatches extraction by file extension
type Service struct {
	extractors    map[string]extractFunc
	maxFileSizeMB int
	logger        arbor.ILogger
}

// NewService creates a new extractor service with all format handlers registered
func NewService(maxFileSizeMB int, logger arbor.ILogger) *Service {
	s := &Service{
		maxFileSizeMB: maxFileSizeMB,
		logger:        logger,
	}

	s.extractors = map[string]extractFunc{
		".pdf":  s.extractPDF,
		".docx": s.extractDocx,
		".pptx": s.extractPptx,
		".xlsx": s.extractXlsx,
		".txt":  s.extractText,
		".csv":  s.extractText,
		".md":   s.extractMarkdown,
		".html": s.extractHTML,
		".htm":  s.extractHTML,
		".eml":  s.extractEmail,
	}

	return s
}

// Supported reports whether the extension has a dedicated extractor
func (s *Service) Supported(path string) bool {
	_, ok := s.extractors[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extract reads the file at path and returns its text content.
// Unsupported extensions fall back to plain-text decoding; image files
// yield an OCR-unavailable sentinel.
func (s *Service) Extract(path string) interfaces.Extraction {
	name := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", name).Msg("Cannot stat file for extraction")
		return sentinel(ReasonError, fmt.Sprintf("[ERROR Cannot read %s: %v]", name, err))
	}

	if info.Size() > int64(s.maxFileSizeMB)*1024*1024 {
		s.logger.Warn().
			Str("file", name).
			Int64("size", info.Size()).
			Int("limit_mb", s.maxFileSizeMB).
			Msg("File exceeds size limit, skipping extraction")
		return sentinel(ReasonOversized, fmt.Sprintf("[ERROR %s exceeds the %dMB size limit]", name, s.maxFileSizeMB))
	}

	ext := strings.ToLower(filepath.Ext(path))
	if isImageExt(ext) {
		// No OCR engine is bundled; keep the pipeline total with a sentinel
		return sentinel(ReasonUnavailable, fmt.Sprintf("[ERROR OCR unavailable for %s]", name))
	}

	fn, ok := s.extractors[ext]
	if !ok {
		// Unsupported extensions fall back to plain-text decoding
		fn = s.extractText
	}

	text, err := fn(path)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", name).Str("ext", ext).Msg("Extraction failed")
		return sentinel(ReasonError, fmt.Sprintf("[ERROR Failed to extract %s: %v]", name, err))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return sentinel(ReasonEmpty, fmt.Sprintf("[EMPTY %s contains no extractable text]", name))
	}

	return interfaces.Extraction{Text: text}
}

func sentinel(reason, text string) interfaces.Extraction {
	return interfaces.Extraction{
		Text:     text,
		Sentinel: true,
		Reason:   reason,
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".webp":
		return true
	}
	return false
}

// Ensure Service implements the interface
var _ interfaces.ExtractorService = (*Service)(nil)
