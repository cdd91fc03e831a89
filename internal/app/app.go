// Package app wires storage and services together in dependency order and
// owns their shutdown sequence.
package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/services/analysis"
	"github.com/ternarybob/respondeo/internal/services/cache"
	"github.com/ternarybob/respondeo/internal/services/chat"
	"github.com/ternarybob/respondeo/internal/services/chunker"
	"github.com/ternarybob/respondeo/internal/services/contextbuilder"
	"github.com/ternarybob/respondeo/internal/services/embeddings"
	"github.com/ternarybob/respondeo/internal/services/extract"
	"github.com/ternarybob/respondeo/internal/services/history"
	"github.com/ternarybob/respondeo/internal/services/ingest"
	"github.com/ternarybob/respondeo/internal/services/llm"
	"github.com/ternarybob/respondeo/internal/services/notify"
	"github.com/ternarybob/respondeo/internal/services/retriever"
	"github.com/ternarybob/respondeo/internal/services/scheduler"
	"github.com/ternarybob/respondeo/internal/services/status"
	"github.com/ternarybob/respondeo/internal/services/vectorindex"
	"github.com/ternarybob/respondeo/internal/services/versions"
	"github.com/ternarybob/respondeo/internal/storage"
)

// App holds the wired application graph
type App struct {
	Config  *common.Config
	Logger  arbor.ILogger
	Storage interfaces.StorageManager

	ChatLLM  interfaces.LLMService
	EmbedLLM interfaces.LLMService

	Index *vectorindex.Index

	CacheService   interfaces.CacheService
	StatusService  interfaces.StatusService
	HistoryService interfaces.HistoryService
	IngestService  interfaces.IngestService
	ChatService    interfaces.ChatService
	Scheduler      interfaces.SchedulerService
}

// New constructs the full service graph. Construction order follows the
// dependency chain: storage, providers, index, ingestion, retrieval,
// conversation, scheduling.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a := &App{
		Config:  config,
		Logger:  logger,
		Storage: storageManager,
	}

	// Second config phase: resolve {key-name} references now that the
	// key/value store is available
	common.ApplyKeyReplacements(config, storageManager.KeyValueStorage(), logger)

	chatLLM, embedLLM, err := llm.NewLLMServices(config, storageManager.KeyValueStorage(), logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize LLM providers: %w", err)
	}
	a.ChatLLM = chatLLM
	a.EmbedLLM = embedLLM

	cacheService := cache.NewService(storageManager.CacheStorage(), &config.Cache, logger)
	a.CacheService = cacheService

	embedder, err := embeddings.NewService(embedLLM, cacheService, &config.Embeddings, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize embedding service: %w", err)
	}

	index, err := vectorindex.NewIndex(config.Embeddings.Dimension, &config.Index, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	a.Index = index

	// Load treats a missing index file as a cold start
	if err := index.Load(); err != nil {
		logger.Warn().Err(err).Msg("Failed to load persisted vector index, starting empty")
	}

	statusService := status.NewService(chatLLM, config.Cache.HealthTTL, logger)
	a.StatusService = statusService

	extractor := extract.NewService(config.Documents.MaxFileSizeMB, logger)
	chunkerService := chunker.NewService(config.Documents.ChunkSize, config.Documents.ChunkOverlap, logger)
	versionService := versions.NewService(storageManager.VersionStorage(), config.Documents.BackupsDir, logger)

	ingestService := ingest.NewService(
		extractor,
		chunkerService,
		embedder,
		index,
		versionService,
		storageManager.ChunkStorage(),
		storageManager.MarkerStorage(),
		statusService,
		&config.Documents,
		logger,
	)
	a.IngestService = ingestService

	retrieverService := retriever.NewService(index, embedder, storageManager.ChunkStorage(), &config.Retrieval, logger)
	contextService := contextbuilder.NewService(retrieverService, &config.Context, logger)
	historyService := history.NewService(storageManager.HistoryStorage(), config.History.Window, logger)
	a.HistoryService = historyService

	a.ChatService = chat.NewService(
		chatLLM,
		analysis.NewService(logger),
		historyService,
		contextService,
		cacheService,
		statusService,
		notify.NewService(&config.Escalation, logger),
		ingestService,
		config,
		logger,
	)

	a.Scheduler = scheduler.NewService(&config.Scheduler, config.Documents.Dir, ingestService, statusService, logger)

	logger.Info().
		Str("documents_dir", config.Documents.Dir).
		Int("index_count", index.Count()).
		Str("provider", string(config.LLM.DefaultProvider)).
		Msg("Application services initialized")

	return a, nil
}

// Close shuts the graph down in reverse dependency order
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	if a.Index != nil {
		if err := a.Index.Save(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to persist vector index on shutdown")
		}
	}

	if a.ChatLLM != nil {
		if err := a.ChatLLM.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close chat provider")
		}
	}
	if a.EmbedLLM != nil && a.EmbedLLM != a.ChatLLM {
		if err := a.EmbedLLM.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close embedding provider")
		}
	}

	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to close storage")
			return err
		}
	}

	return nil
}
