// Package di is the engine's composition root: it turns a config.Config
// into a fully wired Container holding every repository, index,
// embedding provider, and service the engine exposes. One struct holding
// every dependency, built in staged, logged phases, scoped to the
// engine's actual call graph: no AWS clients, no HTTP router, no
// Lambda cold-start tracking, since the engine runs in-process with no
// transport layer of its own.
package di

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hippos/internal/config"
	"hippos/internal/domain/ids"
	"hippos/internal/domain/memory"
	"hippos/internal/domain/profile"
	"hippos/internal/infrastructure/boltstore"
	"hippos/internal/infrastructure/breaker"
	"hippos/internal/infrastructure/cachedstore"
	"hippos/internal/infrastructure/embedding"
	"hippos/internal/infrastructure/eventbus"
	"hippos/internal/infrastructure/lexicalindex"
	"hippos/internal/infrastructure/memstore"
	"hippos/internal/infrastructure/observability"
	"hippos/internal/infrastructure/tenantregistry"
	"hippos/internal/infrastructure/vectorindex"
	"hippos/internal/ports"
	"hippos/internal/service/dehydration"
	"hippos/internal/service/entitymanager"
	"hippos/internal/service/integrator"
	"hippos/internal/service/memorybuilder"
	"hippos/internal/service/patternmanager"
	"hippos/internal/service/profilemanager"
	"hippos/internal/service/recall"
	pkgobservability "hippos/pkg/observability"
)

// Container holds every dependency the engine needs, wired according to
// cfg. It is the single object an embedding application constructs.
type Container struct {
	Config config.Config

	// Cross-cutting concerns.
	Logger         *zap.Logger
	Metrics        *pkgobservability.Metrics
	TracerProvider *observability.TracerProvider
	Tenants        *tenantregistry.Registry

	// Repository layer.
	Memories      ports.MemoryRepository
	Profiles      ports.ProfileRepository
	Patterns      ports.PatternRepository
	Entities      ports.EntityRepository
	Relationships ports.RelationshipRepository

	// Index and embedding layer.
	VectorIndex  ports.VectorIndex
	LexicalIndex ports.LexicalIndex
	Embeddings   ports.EmbeddingProvider
	Events       ports.EventPublisher

	// Service layer -- the engine's public surface.
	Dehydrator     dehydration.Dehydrator
	MemoryBuilder  *memorybuilder.Builder
	Recall         *recall.Engine
	Integrator     *integrator.Integrator
	ProfileManager *profilemanager.Manager
	PatternManager *patternmanager.Manager
	EntityManager  *entitymanager.Manager

	boltHandle ioCloser
}

// ioCloser is the one method of io.Closer the container needs; declared
// locally so a bbolt-backed repository's Close method satisfies it
// without importing io for a single field's type.
type ioCloser interface{ Close() error }

// Build wires a Container from cfg. It logs the start and the end of
// wiring, fails fast on the first unrecoverable error, and degrades
// gracefully where it safely can (a tracing backend that fails to start
// is logged as a warning and never blocks startup).
func Build(cfg config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("di: invalid configuration: %w", err)
	}

	logger, err := observability.NewLogger(observability.LoggerConfig{
		Environment: string(cfg.Environment),
		Level:       zapLevel(cfg.Logging.Level),
	})
	if err != nil {
		return nil, fmt.Errorf("di: building logger: %w", err)
	}
	logger.Info("initializing hippos container", zap.String("environment", string(cfg.Environment)))

	registry := prometheus.NewRegistry()
	metrics := pkgobservability.NewMetrics("hippos", registry)

	var tracerProvider *observability.TracerProvider
	var tracer trace.Tracer
	if cfg.Tracing.Enabled {
		tp, err := observability.InitTracing(observability.TracingConfig{
			ServiceName: cfg.Tracing.ServiceName,
			Environment: string(cfg.Environment),
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			logger.Warn("tracing init failed, continuing without spans", zap.Error(err))
		} else {
			tracerProvider = tp
			tracer = tp.Tracer()
		}
	}

	memories, closer, err := buildMemoryRepository(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("di: building memory repository: %w", err)
	}
	if tracer != nil {
		memories = observability.TraceMemoryRepository(memories, tracer)
	}
	memories = observability.NewMetricsMemoryRepository(memories, metrics)

	profiles := memstore.NewProfileRepository()
	patterns := memstore.NewPatternRepository()
	entities := memstore.NewEntityRepository()
	relationships := memstore.NewRelationshipRepository()

	vectorIdx := vectorindex.New()
	lexicalIdx := lexicalindex.New()
	embedder := buildEmbeddingProvider(cfg.Embedding)

	events := eventbus.New(logger)
	tenants := tenantregistry.New()

	indexBreaker := breaker.New(breaker.Config{
		Name:             "memorybuilder-index-write",
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		MinRequests:      cfg.Breaker.MinRequests,
		PerCallDeadline:  cfg.Breaker.PerCallDeadline,
	}, logger)

	dehydrator := dehydration.New(dehydration.Config{
		GistWordLimit: cfg.Ingestion.GistWordLimit,
		MaxTopics:     cfg.Ingestion.MaxTopics,
		MaxTags:       cfg.Ingestion.MaxTags,
		MaxKeywords:   cfg.Ingestion.MaxKeywords,
	})

	entityMgr := entitymanager.New(entities, relationships, embedder, logger, entitymanager.DefaultConfig())

	builder := memorybuilder.New(
		memories, vectorIdx, lexicalIdx, embedder, dehydrator, entityMgr, events, indexBreaker, logger,
		memorybuilder.Config{
			MaxContentLength:           cfg.Ingestion.MaxContentLength,
			EntityExtractionThreshold:  cfg.Ingestion.EntityExtractionThreshold,
			PatternCandidateImportance: cfg.Ingestion.PatternCandidateImportance,
		},
	)

	recallEngine := recall.New(memories, vectorIdx, lexicalIdx, embedder, recall.Config{
		RRFK:             cfg.Retrieval.RRFK,
		SemanticWeight:   cfg.Retrieval.SemanticWeight,
		LexicalWeight:    cfg.Retrieval.LexicalWeight,
		TemporalWeight:   cfg.Retrieval.TemporalWeight,
		DecayWindow:      cfg.Maintenance.DecayWindow,
		DecayFactor:      cfg.Maintenance.DecayFactor,
		ArchiveThreshold: cfg.Maintenance.ArchiveThreshold,
	})

	integratorSvc := integrator.New(memories, entities, relationships, vectorIdx, lexicalIdx, logger, integrator.Config{
		DecayWindow:      cfg.Maintenance.DecayWindow,
		DecayFactor:      cfg.Maintenance.DecayFactor,
		ArchiveThreshold: cfg.Maintenance.ArchiveThreshold,
		PurgeWindow:      cfg.Maintenance.PurgeWindow,
		MergeThreshold:   cfg.Maintenance.MergeThreshold,
		StrengthPrune:    cfg.Maintenance.StrengthPrune,
		Interval:         cfg.Maintenance.Interval,
	})

	profileMgr := profilemanager.New(profiles, profilemanager.DefaultConfig())
	patternMgr := patternmanager.New(patterns, nil, patternmanager.DefaultConfig())

	logger.Info("hippos container initialized")

	return &Container{
		Config:         cfg,
		Logger:         logger,
		Metrics:        metrics,
		TracerProvider: tracerProvider,
		Tenants:        tenants,
		Memories:       memories,
		Profiles:       profiles,
		Patterns:       patterns,
		Entities:       entities,
		Relationships:  relationships,
		VectorIndex:    vectorIdx,
		LexicalIndex:   lexicalIdx,
		Embeddings:     embedder,
		Events:         events,
		Dehydrator:     dehydrator,
		MemoryBuilder:  builder,
		Recall:         recallEngine,
		Integrator:     integratorSvc,
		ProfileManager: profileMgr,
		PatternManager: patternMgr,
		EntityManager:  entityMgr,
		boltHandle:     closer,
	}, nil
}

// buildMemoryRepository picks and wraps the backend named by
// cfg.Backend. The returned closer is non-nil only for the bbolt
// backend, which holds a file handle Close must release.
func buildMemoryRepository(cfg config.StorageConfig) (ports.MemoryRepository, ioCloser, error) {
	var base ports.MemoryRepository
	var closer ioCloser

	switch cfg.Backend {
	case "bbolt":
		store, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		base = store
		closer = store
	default:
		base = memstore.NewMemoryRepository()
	}

	return cachedstore.New(base, cfg.MaxCacheSize), closer, nil
}

func buildEmbeddingProvider(cfg config.EmbeddingConfig) ports.EmbeddingProvider {
	if cfg.Provider == "openai" {
		return embedding.NewOpenAIEmbedder(embedding.OpenAIEmbedderConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     openai.EmbeddingModel(cfg.Model),
			Dimension: cfg.Dimension,
		})
	}
	return embedding.NewHashEmbedder(cfg.Dimension)
}

func zapLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Close releases resources the container owns (currently just a bbolt
// file handle, when the bbolt backend is selected).
func (c *Container) Close() error {
	if c.boltHandle != nil {
		return c.boltHandle.Close()
	}
	return nil
}

// Ingest is the composition root's convenience wrapper over
// MemoryBuilder.Ingest: it also records the tenant in the registry the
// maintenance sweep's TenantLister reads from, since the engine has no
// separate tenant-provisioning step.
func (c *Container) Ingest(ctx context.Context, req memorybuilder.Request) (*memory.Memory, error) {
	c.Tenants.Observe(req.TenantID)
	return c.MemoryBuilder.Ingest(ctx, req)
}

// RecallMemories is a thin pass-through to Recall.Recall, named to avoid
// a stutter with the Container field of the same underlying engine.
func (c *Container) RecallMemories(ctx context.Context, req recall.Request) ([]recall.Result, error) {
	return c.Recall.Recall(ctx, req)
}

// GetOrCreateProfile is a thin pass-through to ProfileManager.GetOrCreate.
func (c *Container) GetOrCreateProfile(ctx context.Context, tenantID ids.TenantID, userID string) (*profile.Profile, error) {
	return c.ProfileManager.GetOrCreate(ctx, tenantID, userID)
}

// RunMaintenance starts the integrator's periodic sweep against every
// tenant the registry has observed, blocking until ctx is cancelled.
func (c *Container) RunMaintenance(ctx context.Context) {
	c.Integrator.Run(ctx, c.Tenants.List)
}
