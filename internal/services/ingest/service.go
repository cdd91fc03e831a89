// Package ingest composes extraction, chunking, embedding, and indexing
// over a documents directory. Files are processed by a bounded worker pool;
// within a file, chunk batches run sequentially to cap peak memory. One
// file's failure never aborts its siblings.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// Service implements the IngestService interface
type Service struct {
	extractor interfaces.ExtractorService
	chunker   interfaces.ChunkerService
	embedder  interfaces.EmbeddingService
	index     interfaces.VectorIndex
	versions  interfaces.VersionService
	chunks    interfaces.ChunkStorage
	markers   interfaces.MarkerStorage
	status    interfaces.StatusService
	config    *common.DocumentsConfig
	logger    arbor.ILogger

	// Serializes whole-directory runs so scheduled and manual ingestion
	// cannot interleave
	runMu sync.Mutex
}

// NewService creates an ingestion service
func NewService(
	extractor interfaces.ExtractorService,
	chunker interfaces.ChunkerService,
	embedder interfaces.EmbeddingService,
	index interfaces.VectorIndex,
	versions interfaces.VersionService,
	chunks interfaces.ChunkStorage,
	markers interfaces.MarkerStorage,
	status interfaces.StatusService,
	config *common.DocumentsConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		versions:  versions,
		chunks:    chunks,
		markers:   markers,
		status:    status,
		config:    config,
		logger:    logger,
	}
}

// ProcessDirectory ingests every supported file under dir with a bounded
// worker pool, then persists the index. Unmodified files with a valid
// processed marker are skipped unless forceReprocess is set.
func (s *Service) ProcessDirectory(ctx context.Context, dir string, forceReprocess bool) (*models.IngestResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	startTime := time.Now()
	paths, err := s.discoverFiles(dir)
	if err != nil {
		return nil, err
	}

	if s.status != nil {
		s.status.SetState(interfaces.StateIngesting, map[string]interface{}{"files": len(paths)})
		defer s.status.SetState(interfaces.StateIdle, nil)
	}

	s.logger.Info().
		Str("dir", dir).
		Int("files", len(paths)).
		Bool("force", forceReprocess).
		Msg("Directory ingestion starting")

	workers := s.workerCount()
	jobs := make(chan string)
	fileResults := make(chan models.FileResult)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				fileResults <- s.processOne(ctx, path, forceReprocess)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, path := range paths {
			select {
			case <-ctx.Done():
				return
			case jobs <- path:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(fileResults)
	}()

	result := &models.IngestResult{}
	for fileResult := range fileResults {
		result.Files = append(result.Files, fileResult)
		switch {
		case fileResult.Err != "":
			result.Failed++
		case fileResult.Skipped:
			result.Skipped++
		default:
			result.Processed++
		}
	}
	result.Duration = time.Since(startTime)

	if result.Processed > 0 {
		if err := s.index.Save(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to persist vector index after ingestion")
		}
	}

	s.logger.Info().
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("Directory ingestion completed")

	return result, nil
}

// ProcessFile ingests a single file
func (s *Service) ProcessFile(ctx context.Context, path string, forceReprocess bool) (*models.FileResult, error) {
	result := s.processOne(ctx, path, forceReprocess)
	if result.Err != "" {
		return &result, fmt.Errorf("failed to ingest %s: %s", path, result.Err)
	}
	return &result, nil
}

// processOne runs the per-file pipeline, converting panics and errors into
// a failed FileResult so sibling files keep processing.
func (s *Service) processOne(ctx context.Context, path string, forceReprocess bool) (result models.FileResult) {
	startTime := time.Now()
	fileName := filepath.Base(path)
	result.FileName = fileName

	defer func() {
		result.Duration = time.Since(startTime)
		if r := recover(); r != nil {
			result.Err = fmt.Sprintf("panic: %v", r)
			s.logger.Error().
				Str("file", fileName).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("File ingestion panicked")
		}
	}()

	info, err := os.Stat(path)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	if !forceReprocess && s.skipUnchanged(fileName, path, info.ModTime()) {
		result.Skipped = true
		return result
	}

	if err := s.retireStaleChunks(fileName); err != nil {
		result.Err = err.Error()
		return result
	}

	extraction := s.extractor.Extract(path)
	title := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	chunks := s.chunker.Chunk(title, extraction.Text, fileName)
	if len(chunks) == 0 {
		s.logger.Warn().Str("file", fileName).Msg("File produced no chunks")
	}

	embedded, err := s.persistAndIndex(ctx, chunks)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	if _, err := s.versions.Update(path, nil); err != nil {
		result.Err = err.Error()
		return result
	}

	chunkSize, chunkOverlap := s.chunker.Parameters()
	marker := &models.ProcessedMarker{
		FileName:       fileName,
		ChunkCount:     len(chunks),
		EmbeddingCount: embedded,
		ChunkSize:      chunkSize,
		ChunkOverlap:   chunkOverlap,
		SourceModTime:  info.ModTime(),
		ProcessedAt:    time.Now(),
	}
	if err := s.markers.SaveMarker(marker); err != nil {
		result.Err = err.Error()
		return result
	}

	result.Chunks = len(chunks)
	result.Embeddings = embedded

	s.logger.Info().
		Str("file", fileName).
		Int("chunks", result.Chunks).
		Int("embeddings", result.Embeddings).
		Dur("duration", time.Since(startTime)).
		Msg("File ingested")

	return result
}

// persistAndIndex saves, embeds, and indexes chunks in sequential batches.
// A chunk whose persistence fails is dropped from its batch with a log
// line; embedding or indexing failure fails the file.
func (s *Service) persistAndIndex(ctx context.Context, chunks []*models.Chunk) (int, error) {
	batchSize := s.config.ChunkBatch
	if batchSize <= 0 {
		batchSize = 10
	}

	embedded := 0
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := make([]*models.Chunk, 0, end-start)
		for _, chunk := range chunks[start:end] {
			if err := s.chunks.SaveChunk(chunk); err != nil {
				s.logger.Warn().
					Err(err).
					Str("chunk_id", chunk.ID).
					Str("file", chunk.SourceFile).
					Msg("Failed to persist chunk, skipping")
				continue
			}
			batch = append(batch, chunk)
		}
		if len(batch) == 0 {
			continue
		}

		vectors, err := s.embedder.EmbedChunks(ctx, batch)
		if err != nil {
			return embedded, fmt.Errorf("embedding failed: %w", err)
		}

		ids := make([]string, len(batch))
		for i, chunk := range batch {
			ids[i] = chunk.ID
		}
		if err := s.index.Add(vectors, ids); err != nil {
			return embedded, fmt.Errorf("indexing failed: %w", err)
		}
		embedded += len(batch)
	}

	return embedded, nil
}

// skipUnchanged reports whether a valid marker still covers the file. The
// cheap modification-time check runs first; a touched file falls through to
// the content hash, and when the bytes are identical the marker's recorded
// time is refreshed so the next pass skips without hashing.
func (s *Service) skipUnchanged(fileName, path string, modTime time.Time) bool {
	marker, err := s.markers.GetMarker(fileName)
	if err != nil {
		return false
	}

	chunkSize, chunkOverlap := s.chunker.Parameters()
	if marker.ChunkSize != chunkSize || marker.ChunkOverlap != chunkOverlap {
		return false
	}

	if !modTime.After(marker.SourceModTime) {
		s.logger.Debug().Str("file", fileName).Msg("File unchanged, skipping")
		return true
	}

	needsReindex, err := s.versions.NeedsReindex(path)
	if err != nil || needsReindex {
		return false
	}

	marker.SourceModTime = modTime
	if err := s.markers.SaveMarker(marker); err != nil {
		s.logger.Warn().Err(err).Str("file", fileName).Msg("Failed to refresh processed marker")
	}
	s.logger.Debug().Str("file", fileName).Msg("Content hash unchanged, skipping touched file")
	return true
}

// retireStaleChunks removes a previously ingested file's chunks from both
// the chunk store and the vector index before new content lands
func (s *Service) retireStaleChunks(fileName string) error {
	stale, err := s.chunks.GetChunksBySource(fileName)
	if err != nil {
		return fmt.Errorf("failed to look up existing chunks: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	ids := make([]string, len(stale))
	for i, chunk := range stale {
		ids[i] = chunk.ID
	}
	if err := s.index.Remove(ids); err != nil {
		return fmt.Errorf("failed to retire indexed vectors: %w", err)
	}

	removed, err := s.chunks.DeleteChunksBySource(fileName)
	if err != nil {
		return fmt.Errorf("failed to delete stale chunks: %w", err)
	}

	s.logger.Debug().
		Str("file", fileName).
		Int("chunks", removed).
		Msg("Retired stale chunks before re-ingestion")

	return nil
}

// discoverFiles lists regular files under dir, skipping hidden entries
func (s *Service) discoverFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan documents directory %s: %w", dir, err)
	}
	return paths, nil
}

// workerCount returns the configured pool size, defaulting to half the CPUs
func (s *Service) workerCount() int {
	if s.config.Workers > 0 {
		return s.config.Workers
	}
	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	return workers
}

// Ensure Service implements the interface
var _ interfaces.IngestService = (*Service)(nil)
