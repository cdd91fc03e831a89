package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Service     ServiceConfig    `toml:"service"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Documents   DocumentsConfig  `toml:"documents"`
	Embeddings  EmbeddingsConfig `toml:"embeddings"`
	Index       IndexConfig      `toml:"index"`
	Retrieval   RetrievalConfig  `toml:"retrieval"`
	Context     ContextConfig    `toml:"context"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	LLM         LLMConfig        `toml:"llm"`
	Cache       CacheConfig      `toml:"cache"`
	History     HistoryConfig    `toml:"history"`
	Escalation  EscalationConfig `toml:"escalation"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
}

type ServiceConfig struct {
	Name string `toml:"name"` // Service name used in logs and the startup banner
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// DocumentsConfig contains configuration for the source document corpus
type DocumentsConfig struct {
	Dir           string `toml:"dir"`             // Directory containing source documents
	BackupsDir    string `toml:"backups_dir"`     // Directory for pre-overwrite document backups
	MaxFileSizeMB int    `toml:"max_file_size_mb" validate:"min=1"` // Files above this size are rejected with a sentinel
	ChunkSize     int    `toml:"chunk_size" validate:"min=100"`     // Target chunk size in characters
	ChunkOverlap  int    `toml:"chunk_overlap" validate:"min=0"`    // Overlap carried between adjacent chunks
	ChunkBatch    int    `toml:"chunk_batch" validate:"min=1"`      // Chunks persisted/embedded per batch within a file
	Workers       int    `toml:"workers"`                           // Ingestion worker count (0 = NumCPU/2)
}

// EmbeddingsConfig contains configuration for the embedding service
type EmbeddingsConfig struct {
	Dimension int    `toml:"dimension" validate:"min=1"` // Embedding vector dimension
	Model     string `toml:"model"`                      // Embedding model name
	RateLimit string `toml:"rate_limit"`                 // Minimum interval between embedding API calls
}

// IndexConfig contains configuration for the vector index
type IndexConfig struct {
	Type      string `toml:"type" validate:"oneof=flat ivf"` // "flat" (exact) or "ivf" (clustered)
	NList     int    `toml:"nlist"`                          // Cluster count for ivf indexes
	NProbe    int    `toml:"nprobe"`                         // Clusters probed per ivf search
	IndexPath string `toml:"index_path"`                     // Persisted vectors file
	IDMapPath string `toml:"id_map_path"`                    // Persisted slot-to-chunk-id map
}

// RetrievalConfig contains configuration for similarity search behavior
type RetrievalConfig struct {
	TopK            int     `toml:"top_k" validate:"min=1"`     // Results returned per query
	SimilarityFloor float64 `toml:"similarity_floor"`           // Static minimum similarity score
	CandidateCap    int     `toml:"candidate_cap" validate:"min=1"` // Hard cap on raw candidates fetched
	PriorityBoost   float64 `toml:"priority_boost"`             // Score multiplier for prioritized source files
}

// ContextConfig contains configuration for evidence context assembly
type ContextConfig struct {
	MaxTokens    int    `toml:"max_tokens" validate:"min=50"` // Token budget for the assembled context
	MaxDocuments int    `toml:"max_documents"`                // Max chunks considered per context
	TopicMapPath string `toml:"topic_map_path"`               // YAML keyword-to-topic map for query rewriting
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Chat model (default: "gemini-3-flash-preview")
	EmbedModel  string  `toml:"embed_model"` // Embedding model (default: "gemini-embedding-001")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Chat completion temperature (default: 0.7)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Chat model (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 1024)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for generation providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude" (default: "gemini")
	MaxRetries      int         `toml:"max_retries"`      // Full-turn retries on transient generation errors
}

// CacheConfig contains TTLs for the namespaced response/embedding caches
type CacheConfig struct {
	Enabled      bool `toml:"enabled"`
	ResponseTTL  int  `toml:"response_ttl"`  // Seconds (default: 86400)
	EmbeddingTTL int  `toml:"embedding_ttl"` // Seconds (default: 86400)
	QueryTTL     int  `toml:"query_ttl"`     // Seconds (default: 3600)
	HealthTTL    int  `toml:"health_ttl"`    // Seconds a health probe result stays fresh (default: 300)
}

// HistoryConfig contains configuration for conversation history retention
type HistoryConfig struct {
	Window int `toml:"window" validate:"min=1"` // Turns retained per device (default: 5)
}

// EscalationConfig contains configuration for human-escalation notification
type EscalationConfig struct {
	Enabled    bool     `toml:"enabled"`
	SMTPHost   string   `toml:"smtp_host"`
	SMTPPort   int      `toml:"smtp_port"`
	Username   string   `toml:"username"`
	Password   string   `toml:"password"`
	From       string   `toml:"from"`
	Recipients []string `toml:"recipients"` // Escalation destination addresses
}

// SchedulerConfig contains configuration for scheduled re-ingestion
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format (default: every 6 hours)
}

// NewDefaultConfig creates a configuration with default values
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in respondeo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Service: ServiceConfig{
			Name: "respondeo",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Documents: DocumentsConfig{
			Dir:           "./documents",
			BackupsDir:    "./documents/backups",
			MaxFileSizeMB: 50,
			ChunkSize:     1200,
			ChunkOverlap:  300,
			ChunkBatch:    10,
			Workers:       0, // 0 resolves to NumCPU/2 at pipeline construction
		},
		Embeddings: EmbeddingsConfig{
			Dimension: 768,
			Model:     "gemini-embedding-001",
			RateLimit: "100ms",
		},
		Index: IndexConfig{
			Type:      "flat",
			NList:     64,
			NProbe:    8,
			IndexPath: "./data/index/vectors.bin",
			IDMapPath: "./data/index/id_map.json",
		},
		Retrieval: RetrievalConfig{
			TopK:            5,
			SimilarityFloor: 0.45,
			CandidateCap:    20,
			PriorityBoost:   1.2,
		},
		Context: ContextConfig{
			MaxTokens:    1500,
			MaxDocuments: 5,
			TopicMapPath: "", // Built-in map used when unset
		},
		Gemini: GeminiConfig{
			APIKey:      "", // User must provide API key (no fallback)
			Model:       "gemini-3-flash-preview",
			EmbedModel:  "gemini-embedding-001",
			Timeout:     "2m",
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   1024,
			Timeout:     "2m",
			Temperature: 0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			MaxRetries:      2,
		},
		Cache: CacheConfig{
			Enabled:      true,
			ResponseTTL:  86400,
			EmbeddingTTL: 86400,
			QueryTTL:     3600,
			HealthTTL:    300,
		},
		History: HistoryConfig{
			Window: 5,
		},
		Escalation: EscalationConfig{
			Enabled:  false, // Disabled by default - user must explicitly opt-in
			SMTPPort: 587,
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "0 0 */6 * * *", // Every 6 hours (cron format)
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
// kvStorage can be nil (API key resolution falls back to env/config)
func LoadFromFile(kvStorage interfaces.KeyValueStorage, path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles(kvStorage)
	}
	return LoadFromFiles(kvStorage, path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(kvStorage interfaces.KeyValueStorage, paths ...string) (*Config, error) {
	// Start with defaults
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyKeyReplacements resolves {key-name} references in config string
// fields from the key/value store. Runs after storage initialization, so
// config files can reference stored secrets without embedding them.
func ApplyKeyReplacements(config *Config, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) {
	if kvStorage == nil {
		return
	}

	kvMap, err := kvStorage.GetAll(context.Background())
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load key/value pairs for config replacement")
		return
	}
	if len(kvMap) == 0 {
		return
	}

	if err := ReplaceInStruct(config, kvMap, logger); err != nil {
		logger.Warn().Err(err).Msg("Key reference replacement failed")
	}
}

// Validate checks structural constraints on the loaded configuration
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Documents.ChunkOverlap >= c.Documents.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Documents.ChunkOverlap, c.Documents.ChunkSize)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: RESPONDEO_ENV, fallback: GO_ENV)
	if env := os.Getenv("RESPONDEO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Storage configuration
	if badgerPath := os.Getenv("RESPONDEO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("RESPONDEO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("RESPONDEO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("RESPONDEO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Documents configuration
	if dir := os.Getenv("RESPONDEO_DOCUMENTS_DIR"); dir != "" {
		config.Documents.Dir = dir
	}
	if backups := os.Getenv("RESPONDEO_DOCUMENTS_BACKUPS_DIR"); backups != "" {
		config.Documents.BackupsDir = backups
	}
	if chunkSize := os.Getenv("RESPONDEO_CHUNK_SIZE"); chunkSize != "" {
		if cs, err := strconv.Atoi(chunkSize); err == nil {
			config.Documents.ChunkSize = cs
		}
	}
	if chunkOverlap := os.Getenv("RESPONDEO_CHUNK_OVERLAP"); chunkOverlap != "" {
		if co, err := strconv.Atoi(chunkOverlap); err == nil {
			config.Documents.ChunkOverlap = co
		}
	}
	if workers := os.Getenv("RESPONDEO_INGEST_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Documents.Workers = w
		}
	}

	// Embeddings configuration
	if dimension := os.Getenv("RESPONDEO_EMBED_DIMENSION"); dimension != "" {
		if d, err := strconv.Atoi(dimension); err == nil {
			config.Embeddings.Dimension = d
		}
	}
	if model := os.Getenv("RESPONDEO_EMBED_MODEL"); model != "" {
		config.Embeddings.Model = model
	}
	if rateLimit := os.Getenv("RESPONDEO_EMBED_RATE_LIMIT"); rateLimit != "" {
		if _, err := time.ParseDuration(rateLimit); err == nil {
			config.Embeddings.RateLimit = rateLimit
		}
	}

	// Index configuration
	if indexType := os.Getenv("RESPONDEO_INDEX_TYPE"); indexType != "" {
		config.Index.Type = indexType
	}
	if indexPath := os.Getenv("RESPONDEO_INDEX_PATH"); indexPath != "" {
		config.Index.IndexPath = indexPath
	}
	if idMapPath := os.Getenv("RESPONDEO_INDEX_ID_MAP_PATH"); idMapPath != "" {
		config.Index.IDMapPath = idMapPath
	}

	// Retrieval configuration
	if topK := os.Getenv("RESPONDEO_RETRIEVAL_TOP_K"); topK != "" {
		if tk, err := strconv.Atoi(topK); err == nil {
			config.Retrieval.TopK = tk
		}
	}
	if floor := os.Getenv("RESPONDEO_SIMILARITY_FLOOR"); floor != "" {
		if f, err := strconv.ParseFloat(floor, 64); err == nil {
			config.Retrieval.SimilarityFloor = f
		}
	}

	// Context configuration
	if maxTokens := os.Getenv("RESPONDEO_CONTEXT_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Context.MaxTokens = mt
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("RESPONDEO_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("RESPONDEO_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if embedModel := os.Getenv("RESPONDEO_GEMINI_EMBED_MODEL"); embedModel != "" {
		config.Gemini.EmbedModel = embedModel
	}
	if timeout := os.Getenv("RESPONDEO_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if temperature := os.Getenv("RESPONDEO_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("RESPONDEO_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // RESPONDEO_ prefix takes priority
	}
	if model := os.Getenv("RESPONDEO_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("RESPONDEO_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("RESPONDEO_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}

	// LLM provider configuration
	if provider := os.Getenv("RESPONDEO_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
	if maxRetries := os.Getenv("RESPONDEO_LLM_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.LLM.MaxRetries = mr
		}
	}

	// Cache configuration
	if enabled := os.Getenv("RESPONDEO_CACHE_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Cache.Enabled = e
		}
	}
	if ttl := os.Getenv("RESPONDEO_CACHE_RESPONSE_TTL"); ttl != "" {
		if t, err := strconv.Atoi(ttl); err == nil {
			config.Cache.ResponseTTL = t
		}
	}

	// History configuration
	if window := os.Getenv("RESPONDEO_HISTORY_WINDOW"); window != "" {
		if w, err := strconv.Atoi(window); err == nil && w > 0 {
			config.History.Window = w
		}
	}

	// Escalation configuration
	if enabled := os.Getenv("RESPONDEO_ESCALATION_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Escalation.Enabled = e
		}
	}
	if host := os.Getenv("RESPONDEO_SMTP_HOST"); host != "" {
		config.Escalation.SMTPHost = host
	}
	if port := os.Getenv("RESPONDEO_SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Escalation.SMTPPort = p
		}
	}

	// Scheduler configuration
	if enabled := os.Getenv("RESPONDEO_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if schedule := os.Getenv("RESPONDEO_SCHEDULER_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, documentsDir string, logLevel string) {
	// Command-line flags have highest priority
	if documentsDir != "" {
		config.Documents.Dir = documentsDir
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority
// Resolution order: environment variables → KV store → config fallback → error
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"RESPONDEO_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"google_api_key":    {"RESPONDEO_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"anthropic_api_key": {"RESPONDEO_CLAUDE_API_KEY"},
		"claude_api_key":    {"RESPONDEO_CLAUDE_API_KEY"},
	}

	// For Claude, also check the standard ANTHROPIC_API_KEY env var
	if name == "anthropic_api_key" || name == "claude_api_key" {
		if envValue := os.Getenv("ANTHROPIC_API_KEY"); envValue != "" {
			return envValue, nil
		}
	}

	// Check environment variables (highest priority)
	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	// Try to resolve from KV store (medium priority - file-based variables)
	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	// Fallback to config value (lowest priority)
	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ValidateSchedule validates a cron schedule expression for the re-ingestion scheduler
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
