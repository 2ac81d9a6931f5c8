// Package config provides configuration management for the hippos memory
// engine.
//   - Environment-specific settings
//   - Validation with struct tags
//   - Sensible defaults with overrides
//   - Type safety and documentation
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ============================================================================
// MAIN CONFIGURATION STRUCTURE
// ============================================================================

// Config represents the complete engine configuration: the retrieval and
// maintenance knobs that shape recall and upkeep, plus the ambient stack
// (logging, tracing, circuit breaking, storage, embedding) the engine
// needs to run.
type Config struct {
	Environment Environment `validate:"required,oneof=development staging production test"`

	Retrieval   RetrievalConfig
	Maintenance MaintenanceConfig
	Ingestion   IngestionConfig
	Pagination  PaginationConfig

	Storage   StorageConfig
	Embedding EmbeddingConfig
	Logging   LoggingConfig
	Tracing   TracingConfig
	Breaker   BreakerConfig
}

// Environment identifies the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
	Test        Environment = "test"
)

// RetrievalConfig configures MemoryRecall's hybrid fusion.
type RetrievalConfig struct {
	// RRFK is the RRF rank-damping constant (spec default 60).
	RRFK int `validate:"min=1"`

	// SemanticWeight, LexicalWeight and TemporalWeight are the default
	// fusion weights per channel, used when a caller does not override
	// them. They need not sum to 1.
	SemanticWeight float64 `validate:"min=0"`
	LexicalWeight  float64 `validate:"min=0"`
	TemporalWeight float64 `validate:"min=0"`

	// PerCallDeadline is read from HIPPOS_RECALL_DEADLINE and validated;
	// nothing passes it to the recall engine, so it does not bound a
	// recall invocation.
	PerCallDeadline time.Duration `validate:"min=0"`
}

// MaintenanceConfig configures MemoryIntegrator's periodic sweep.
type MaintenanceConfig struct {
	// DecayWindow is the interval since a memory's last update (UpdatedAt)
	// after which importance begins decaying. A recorded recall access is
	// an update, but so is any other mutation: a memory changed within the
	// window is not decayed even if nothing has read it.
	DecayWindow time.Duration `validate:"min=0"`

	// DecayFactor multiplies importance once per DecayWindow elapsed.
	DecayFactor float64 `validate:"min=0,max=1"`

	// ArchiveThreshold is the importance floor below which an Active
	// memory transitions to Archived.
	ArchiveThreshold float64 `validate:"min=0,max=1"`

	// PurgeWindow is how long an Archived memory may sit before the
	// integrator transitions it to Deleted and removes it from both
	// indices.
	PurgeWindow time.Duration `validate:"min=0"`

	// MergeThreshold is the cosine-similarity floor above which two
	// memories are considered redundant and merged.
	MergeThreshold float64 `validate:"min=0,max=1"`

	// StrengthPrune is the relationship-strength floor below which a
	// relationship is pruned during the refresh pass.
	StrengthPrune float64 `validate:"min=0,max=1"`

	// Interval is how often the integrator sweep runs.
	Interval time.Duration `validate:"min=0"`
}

// IngestionConfig configures MemoryBuilder.
type IngestionConfig struct {
	// MaxContentLength bounds the content MemoryBuilder will accept.
	MaxContentLength int `validate:"min=1"`

	// EntityExtractionThreshold is the content length above which
	// MemoryBuilder runs entity extraction on ingest.
	EntityExtractionThreshold int `validate:"min=0"`

	// PatternCandidateImportance is the importance floor at or above which
	// an ingested memory is flagged as a pattern candidate.
	PatternCandidateImportance float64 `validate:"min=0,max=1"`

	// GistWordLimit bounds the dehydrated gist produced on ingest.
	GistWordLimit int `validate:"min=1"`

	// MaxTopics bounds the number of topics dehydration will assign.
	MaxTopics int `validate:"min=0"`

	// MaxTags bounds the number of tags dehydration will assign.
	MaxTags int `validate:"min=0"`

	// MaxKeywords bounds the salient-keyword bag dehydration will assign.
	MaxKeywords int `validate:"min=0"`
}

// PaginationConfig bounds list/recall page sizes.
type PaginationConfig struct {
	DefaultLimit int `validate:"min=1"`
	MaxLimit     int `validate:"min=1"`
}

// StorageConfig configures the persistence backend.
type StorageConfig struct {
	// Backend selects the MemoryRepository implementation: "memory"
	// (in-process, non-durable) or "bbolt" (embedded, durable).
	Backend string `validate:"required,oneof=memory bbolt"`

	// BoltPath is the database file path when Backend is "bbolt".
	BoltPath string `validate:"required_if=Backend bbolt"`

	// MaxCacheSize bounds the LRU cache fronting repeated reads.
	MaxCacheSize int `validate:"min=0"`
}

// EmbeddingConfig configures the EmbeddingProvider.
type EmbeddingConfig struct {
	// Provider selects the implementation: "hash" (deterministic,
	// dependency-free) or "openai" (real embeddings, requires APIKey).
	Provider string `validate:"required,oneof=hash openai"`

	Dimension int    `validate:"min=1"`
	APIKey    string `validate:"required_if=Provider openai"`
	BaseURL   string
	Model     string
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `validate:"required,oneof=debug info warn error"`
	Development bool
}

// TracingConfig configures OpenTelemetry sampling.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	SampleRate  float64 `validate:"min=0,max=1"`
}

// BreakerConfig configures the circuit breaker wrapping outbound calls
// to repositories, indices, and embedding providers.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64 `validate:"min=0,max=1"`
	MinRequests      uint32
	PerCallDeadline  time.Duration
}

// ============================================================================
// LOADING
// ============================================================================

// LoadConfig builds a Config from environment variables, applying
// environment-specific defaults for anything left unset.
func LoadConfig() Config {
	env := Environment(getEnvString("HIPPOS_ENV", string(Development)))

	cfg := Config{
		Environment: env,
		Retrieval: RetrievalConfig{
			RRFK:            getEnvInt("HIPPOS_RRF_K", 60),
			SemanticWeight:  getEnvFloat("HIPPOS_RRF_WEIGHT_SEMANTIC", 0.6),
			LexicalWeight:   getEnvFloat("HIPPOS_RRF_WEIGHT_LEXICAL", 0.3),
			TemporalWeight:  getEnvFloat("HIPPOS_RRF_WEIGHT_TEMPORAL", 0.1),
			PerCallDeadline: getEnvDuration("HIPPOS_RECALL_DEADLINE", 2*time.Second),
		},
		Maintenance: MaintenanceConfig{
			DecayWindow:      getEnvDuration("HIPPOS_DECAY_WINDOW", 30*24*time.Hour),
			DecayFactor:      getEnvFloat("HIPPOS_DECAY_FACTOR", 0.95),
			ArchiveThreshold: getEnvFloat("HIPPOS_ARCHIVE_THRESHOLD", 0.05),
			PurgeWindow:      getEnvDuration("HIPPOS_PURGE_WINDOW", 180*24*time.Hour),
			MergeThreshold:   getEnvFloat("HIPPOS_MERGE_THRESHOLD", 0.95),
			StrengthPrune:    getEnvFloat("HIPPOS_STRENGTH_PRUNE", 0.05),
			Interval:         getEnvDuration("HIPPOS_MAINTENANCE_INTERVAL", time.Hour),
		},
		Ingestion: IngestionConfig{
			MaxContentLength:           getEnvInt("HIPPOS_MAX_CONTENT_LENGTH", 100_000),
			EntityExtractionThreshold:  getEnvInt("HIPPOS_ENTITY_EXTRACTION_THRESHOLD", 200),
			PatternCandidateImportance: getEnvFloat("HIPPOS_PATTERN_CANDIDATE_IMPORTANCE", 0.7),
			GistWordLimit:              getEnvInt("HIPPOS_GIST_WORD_LIMIT", 100),
			MaxTopics:                  getEnvInt("HIPPOS_MAX_TOPICS", 5),
			MaxTags:                    getEnvInt("HIPPOS_MAX_TAGS", 10),
			MaxKeywords:                getEnvInt("HIPPOS_MAX_KEYWORDS", 25),
		},
		Pagination: PaginationConfig{
			DefaultLimit: getEnvInt("HIPPOS_PAGE_DEFAULT", 20),
			MaxLimit:     getEnvInt("HIPPOS_PAGE_MAX", 100),
		},
		Storage: StorageConfig{
			Backend:      getEnvString("HIPPOS_STORAGE_BACKEND", "memory"),
			BoltPath:     getEnvString("HIPPOS_BOLT_PATH", "./hippos.db"),
			MaxCacheSize: getEnvInt("HIPPOS_MAX_CACHE_SIZE", 10_000),
		},
		Embedding: EmbeddingConfig{
			Provider:  getEnvString("HIPPOS_EMBEDDING_PROVIDER", "hash"),
			Dimension: getEnvInt("HIPPOS_EMBEDDING_DIMENSION", 384),
			APIKey:    getEnvString("OPENAI_API_KEY", ""),
			BaseURL:   getEnvString("HIPPOS_OPENAI_BASE_URL", ""),
			Model:     getEnvString("HIPPOS_OPENAI_MODEL", "text-embedding-3-small"),
		},
		Logging: LoggingConfig{
			Level:       getEnvString("HIPPOS_LOG_LEVEL", "info"),
			Development: env == Development,
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("HIPPOS_TRACING_ENABLED", env != Test),
			ServiceName: getEnvString("HIPPOS_SERVICE_NAME", "hippos"),
			SampleRate:  getEnvFloat("HIPPOS_TRACE_SAMPLE_RATE", defaultSampleRate(env)),
		},
		Breaker: BreakerConfig{
			MaxRequests:      uint32(getEnvInt("HIPPOS_BREAKER_MAX_REQUESTS", 3)),
			Interval:         getEnvDuration("HIPPOS_BREAKER_INTERVAL", 10*time.Second),
			Timeout:          getEnvDuration("HIPPOS_BREAKER_TIMEOUT", 30*time.Second),
			FailureThreshold: getEnvFloat("HIPPOS_BREAKER_FAILURE_THRESHOLD", 0.6),
			MinRequests:      uint32(getEnvInt("HIPPOS_BREAKER_MIN_REQUESTS", 3)),
			PerCallDeadline:  getEnvDuration("HIPPOS_BREAKER_DEADLINE", 5*time.Second),
		},
	}

	cfg.applyEnvironmentDefaults()
	return cfg
}

func defaultSampleRate(env Environment) float64 {
	switch env {
	case Production:
		return 0.05
	case Staging:
		return 0.25
	default:
		return 1.0
	}
}

// applyEnvironmentDefaults tightens or relaxes settings the environment
// has an opinion about, after explicit env vars have already applied.
func (c *Config) applyEnvironmentDefaults() {
	switch c.Environment {
	case Production:
		if c.Storage.Backend == "" {
			c.Storage.Backend = "bbolt"
		}
	case Test:
		c.Storage.Backend = "memory"
		c.Embedding.Provider = "hash"
		c.Tracing.Enabled = false
	}
}

// ============================================================================
// VALIDATION
// ============================================================================

var validate = validator.New()

// Validate checks the configuration's struct constraints plus the
// business rules struct tags can't express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return formatValidationError(verrs)
		}
		return err
	}
	return c.validateBusinessRules()
}

func (c *Config) validateBusinessRules() error {
	if c.Maintenance.ArchiveThreshold >= 1.0 {
		return fmt.Errorf("maintenance.archive_threshold must be less than 1.0, got %f", c.Maintenance.ArchiveThreshold)
	}
	if c.Retrieval.SemanticWeight+c.Retrieval.LexicalWeight+c.Retrieval.TemporalWeight <= 0 {
		return fmt.Errorf("retrieval rrf weights must sum to a positive value")
	}
	if c.Pagination.DefaultLimit > c.Pagination.MaxLimit {
		return fmt.Errorf("pagination.default_limit (%d) must not exceed pagination.max_limit (%d)", c.Pagination.DefaultLimit, c.Pagination.MaxLimit)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	return nil
}

func formatValidationError(errs validator.ValidationErrors) error {
	var messages []string
	for _, e := range errs {
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", e.Namespace()))
		case "required_if":
			messages = append(messages, fmt.Sprintf("%s is required given its sibling field's value", e.Namespace()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of [%s], got %v", e.Namespace(), e.Param(), e.Value()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be >= %s, got %v", e.Namespace(), e.Param(), e.Value()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be <= %s, got %v", e.Namespace(), e.Param(), e.Value()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation %q", e.Namespace(), e.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
}

// ============================================================================
// ENV HELPERS
// ============================================================================

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid int for %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("config: invalid float for %s=%q, using default %f", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("config: invalid bool for %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: invalid duration for %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}
