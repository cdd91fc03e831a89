package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestChunk_SizeBound(t *testing.T) {
	logger := arbor.NewLogger()

	tests := []struct {
		name         string
		chunkSize    int
		chunkOverlap int
		text         string
	}{
		{
			name:         "Short Paragraphs",
			chunkSize:    500,
			chunkOverlap: 100,
			text:         strings.Repeat("A short paragraph of text.\n\n", 40),
		},
		{
			name:         "Mixed Lengths",
			chunkSize:    300,
			chunkOverlap: 50,
			text:         "One.\n\n" + strings.Repeat("word ", 100) + "\n\nAnother paragraph here.",
		},
		{
			name:         "Single Paragraph",
			chunkSize:    1200,
			chunkOverlap: 300,
			text:         strings.Repeat("sentence. ", 50),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(tt.chunkSize, tt.chunkOverlap, logger)
			chunks := service.Chunk("Test", tt.text, "test.txt")

			require.NotEmpty(t, chunks)
			for _, chunk := range chunks {
				assert.LessOrEqual(t, len(chunk.Content), tt.chunkSize+tt.chunkOverlap,
					"chunk %d exceeds size bound", chunk.ChunkIndex)
			}
		})
	}
}

func TestChunk_OverlapContinuity(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewService(500, 100, logger)

	// Three paragraphs totaling ~1400 characters
	para := strings.Repeat("abcdefghi ", 46) // 460 chars
	text := para + "\n\n" + para + "\n\n" + para

	chunks := service.Chunk("Policy", text, "policy.txt")

	require.GreaterOrEqual(t, len(chunks), 3)
	require.LessOrEqual(t, len(chunks), 4)

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Content
		overlap := prev[len(prev)-100:]
		assert.True(t, strings.HasPrefix(chunks[i].Content, overlap),
			"chunk %d does not start with the previous chunk's last 100 chars", i)
		assert.LessOrEqual(t, len(chunks[i].Content), 600)
	}
}

func TestChunk_OversizedParagraphForceSplit(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewService(200, 50, logger)

	// One unbroken paragraph far larger than the chunk size
	text := strings.Repeat("x", 1000)

	chunks := service.Chunk("Big", text, "big.txt")
	require.NotEmpty(t, chunks)

	// Force-split segments are exactly chunkSize before overlap prefixing,
	// so every chunk stays within the bound
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Content), 250)
	}

	// Strides of chunkSize - chunkOverlap must cover the full paragraph
	total := 0
	for _, chunk := range chunks {
		total += len(chunk.Content)
	}
	assert.GreaterOrEqual(t, total, 1000)
}

func TestChunk_MultibyteTextStaysValidUTF8(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewService(500, 100, logger)

	// One long Devanagari paragraph exercises both the stride split and the
	// overlap prefix; every cut must land on a rune boundary
	text := strings.Repeat("कर्मचारी अवकाश नीति ", 60)

	chunks := service.Chunk("Leave Policy", text, "leave-hi.txt")
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk.Content),
			"chunk %d is not valid UTF-8", chunk.ChunkIndex)
		assert.LessOrEqual(t, len(chunk.Content), 600)
	}
}

func TestChunk_EmptyAndWhitespace(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewService(500, 100, logger)

	assert.Empty(t, service.Chunk("Empty", "", "empty.txt"))
	assert.Empty(t, service.Chunk("Blank", "   \n\n  \n", "blank.txt"))
}

func TestChunk_Metadata(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewService(500, 100, logger)

	chunks := service.Chunk("Handbook", "First paragraph.\n\nSecond paragraph.", "handbook.md")
	require.Len(t, chunks, 1)

	chunk := chunks[0]
	assert.True(t, strings.HasPrefix(chunk.ID, "chunk_"))
	assert.Equal(t, "Handbook", chunk.Title)
	assert.Equal(t, "handbook.md", chunk.SourceFile)
	assert.Equal(t, 0, chunk.ChunkIndex)
	assert.False(t, chunk.CreatedAt.IsZero())
}
