// Package chunker splits raw document text into overlapping, paragraph-aware
// segments of bounded size for embedding and indexing.
package chunker

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// Service splits document text into chunks
type Service struct {
	chunkSize    int
	chunkOverlap int
	logger       arbor.ILogger
}

// NewService creates a new chunker service
func NewService(chunkSize, chunkOverlap int, logger arbor.ILogger) *Service {
	return &Service{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
}

// Parameters returns the configured chunk size and overlap
func (s *Service) Parameters() (int, int) {
	return s.chunkSize, s.chunkOverlap
}

// Chunk splits text into chunks for the given source file.
// Paragraphs are packed greedily into a buffer until adding the next one
// would exceed the chunk size; a paragraph larger than the chunk size is
// force-split at strides of chunkSize - chunkOverlap. Every chunk after the
// first is prefixed with the trailing overlap of its predecessor, so each
// output chunk is at most chunkSize + chunkOverlap characters (force-split
// segments excepted, which are exactly chunkSize before the prefix).
func (s *Service) Chunk(title, text, sourceFile string) []*models.Chunk {
	segments := s.splitText(text)

	now := time.Now()
	chunks := make([]*models.Chunk, 0, len(segments))
	for i, segment := range segments {
		content := segment
		if i > 0 && s.chunkOverlap > 0 {
			prev := segments[i-1]
			overlap := prev
			if len(prev) > s.chunkOverlap {
				// Advance to the next rune start so a multibyte character on
				// the cut never splits; the overlap only ever shrinks, keeping
				// the size bound intact
				overlap = prev[ceilRuneBoundary(prev, len(prev)-s.chunkOverlap):]
			}
			content = overlap + content
		}

		chunks = append(chunks, &models.Chunk{
			ID:         common.NewChunkID(),
			Title:      title,
			Content:    content,
			SourceFile: sourceFile,
			ChunkIndex: i,
			CreatedAt:  now,
		})
	}

	s.logger.Debug().
		Str("source_file", sourceFile).
		Int("text_len", len(text)).
		Int("chunks", len(chunks)).
		Msg("Chunked document text")

	return chunks
}

// splitText produces the primary (pre-overlap) segments
func (s *Service) splitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	paragraphs := splitParagraphs(text)

	var segments []string
	var buffer strings.Builder

	flush := func() {
		if buffer.Len() > 0 {
			segments = append(segments, buffer.String())
			buffer.Reset()
		}
	}

	for _, para := range paragraphs {
		if len(para) > s.chunkSize {
			// Oversized paragraph: flush the buffer, then force-split the
			// paragraph at fixed strides
			flush()
			stride := s.chunkSize - s.chunkOverlap
			if stride <= 0 {
				stride = s.chunkSize
			}
			for start := 0; start < len(para); {
				end := start + s.chunkSize
				if end >= len(para) {
					end = len(para)
				} else {
					end = floorRuneBoundary(para, end)
				}
				segments = append(segments, para[start:end])
				if end == len(para) {
					break
				}
				next := floorRuneBoundary(para, start+stride)
				if next <= start {
					next = end
				}
				start = next
			}
			continue
		}

		// Separator cost when appending to a non-empty buffer
		added := len(para)
		if buffer.Len() > 0 {
			added += 2
		}

		if buffer.Len()+added > s.chunkSize {
			flush()
		}
		if buffer.Len() > 0 {
			buffer.WriteString("\n\n")
		}
		buffer.WriteString(para)
	}
	flush()

	return segments
}

// floorRuneBoundary moves i left to the start of the rune it falls inside
func floorRuneBoundary(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// ceilRuneBoundary moves i right to the next rune start
func ceilRuneBoundary(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// splitParagraphs splits text on blank-line boundaries, dropping empties
func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	raw := strings.Split(normalized, "\n\n")

	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}

// Ensure Service implements the interface
var _ interfaces.ChunkerService = (*Service)(nil)
