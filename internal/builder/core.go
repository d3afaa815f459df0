package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/futig/safeguard-backend/internal/chunker"
	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/guard"
	"github.com/futig/safeguard-backend/internal/integration/asr"
	"github.com/futig/safeguard-backend/internal/integration/common"
	"github.com/futig/safeguard-backend/internal/integration/docstore"
	"github.com/futig/safeguard-backend/internal/integration/embedding"
	"github.com/futig/safeguard-backend/internal/integration/image"
	"github.com/futig/safeguard-backend/internal/integration/llm"
	"github.com/futig/safeguard-backend/internal/pipeline"
	"github.com/futig/safeguard-backend/internal/pkg/extractor"
	"github.com/futig/safeguard-backend/internal/pkg/formatter"
	"github.com/futig/safeguard-backend/internal/pkg/logger"
	"github.com/futig/safeguard-backend/internal/pkg/validator"
	"github.com/futig/safeguard-backend/internal/repository"
	"github.com/futig/safeguard-backend/internal/retriever"
	"github.com/futig/safeguard-backend/internal/router"
	"github.com/futig/safeguard-backend/internal/usecase/assistant"
	"github.com/futig/safeguard-backend/internal/usecase/document"
	"github.com/futig/safeguard-backend/internal/vectorindex"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Core holds the components shared by the API, the Telegram bot and the CLI
type Core struct {
	Config    *config.Config
	Logger    *zap.Logger
	Documents *document.DocumentUsecase
	Assistant *assistant.AssistantUsecase
	Validator *validator.Validator

	db      *pgxpool.Pool
	closers []func()
}

// Close releases the index backend and the database pool
func (c *Core) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	if c.db != nil {
		c.db.Close()
	}
}

type llmConnector interface {
	pipeline.LLM
	assistant.ChatConnector
}

// loadConfig reads the configuration and creates the root logger
func loadConfig(environment string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(environment)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("setup logger: %w", err)
	}
	return cfg, log, nil
}

// BuildCore connects to the database, runs migrations and wires the document and assistant use cases
func BuildCore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Core, error) {
	db, err := setupDatabase(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}
	core := &Core{Config: cfg, Logger: log, db: db}

	log.Info("Running database migrations")
	if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
		core.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("Database migrations completed successfully")

	documentRepo := repository.NewDocumentPostgres(db)
	conversationRepo := repository.NewConversationPostgres(db)

	index, err := setupIndex(ctx, cfg, db, core)
	if err != nil {
		core.Close()
		return nil, fmt.Errorf("setup vector index: %w", err)
	}
	log.Info("Vector index ready", zap.String("backend", index.Backend()))

	var (
		embedder     document.Embedder
		llmConn      llmConnector
		imageConn    pipeline.ImageGenerator
		asrConn      assistant.ASRConnector
		docStoreConn document.DocumentStore
	)
	if cfg.EnableMocks {
		log.Info("Using mock connectors for external services")
		embedder = embedding.NewMockConnector(cfg.OpenAICfg.EmbeddingDimension, log)
		llmConn = llm.NewMockConnector(log)
		imageConn = image.NewMockConnector(log)
		asrConn = asr.NewMockConnector(log)
		docStoreConn = docstore.NewMockConnector(log)
	} else {
		log.Info("Using real connectors for external services")
		openaiClient := common.NewOpenAIClient(cfg.OpenAICfg)
		embedder = embedding.NewConnector(cfg.OpenAICfg, openaiClient, log)
		llmConn = llm.NewConnector(cfg.OpenAICfg, openaiClient, log)
		imageConn = image.NewConnector(cfg.OpenAICfg, openaiClient, log)
		asrConn = asr.NewConnector(cfg.ASRConnectorCfg, log)
		docStoreConn = docstore.NewConnector(cfg.DocStoreConnectorCfg, log)
	}

	chunks, err := chunker.New(cfg.RAGCfg.ChunkSize, cfg.RAGCfg.ChunkOverlap)
	if err != nil {
		core.Close()
		return nil, fmt.Errorf("create chunker: %w", err)
	}

	extractors, err := extractor.NewRegistry(cfg.UnidocLicenseKey)
	if err != nil {
		core.Close()
		return nil, fmt.Errorf("create text extractors: %w", err)
	}

	core.Validator = validator.NewFileValidator(cfg.FileUploadCfg)

	core.Documents = document.NewUsecase(
		documentRepo,
		index,
		chunks,
		embedder,
		docStoreConn,
		extractors,
		core.Validator,
		log,
	)

	reconciled, err := core.Documents.Reconcile(ctxzap.ToContext(ctx, log))
	if err != nil {
		core.Close()
		return nil, fmt.Errorf("reconcile document registry: %w", err)
	}
	log.Info("Document registry checked against index",
		zap.String("backend", index.Backend()),
		zap.Int("active_documents", reconciled.Checked),
		zap.Int("reindexed", reconciled.Reindexed),
		zap.Int("deactivated", reconciled.Deactivated),
	)

	f, err := formatter.NewFactory().Create(cfg.PipelineCfg.Channel)
	if err != nil {
		core.Close()
		return nil, fmt.Errorf("create formatter: %w", err)
	}

	g, err := guard.New(cfg.GuardCfg, cfg.Rules.Injection)
	if err != nil {
		core.Close()
		return nil, fmt.Errorf("create guard: %w", err)
	}

	classifier := router.NewClassifier(cfg.Rules)

	r := retriever.New(embedder, index, retriever.Config{
		TopK:            cfg.RAGCfg.TopK,
		SimilarityFloor: cfg.RAGCfg.SimilarityFloor,
	})

	p := pipeline.New(llmConn, imageConn, classifier, f, pipeline.Config{
		HardMaxChars:          cfg.PipelineCfg.MaxMessageLength,
		ImageDescriptionChars: cfg.PipelineCfg.ImageDescriptionChars,
		TopicHints:            cfg.Rules.TopicHints,
	})

	core.Assistant = assistant.NewUsecase(
		g,
		classifier,
		r,
		p,
		llmConn,
		asrConn,
		f,
		conversationRepo,
		assistant.Config{
			RateLimit:            cfg.GuardCfg.RateLimit,
			RateWindow:           cfg.GuardCfg.RateWindow,
			GeneralReplyMaxChars: cfg.PipelineCfg.GeneralReplyMaxChars,
			FollowUpWindow:       cfg.PipelineCfg.FollowUpWindow,
			FollowUpMaxChars:     cfg.PipelineCfg.FollowUpMaxChars,
		},
		log,
	)

	log.Info("Use cases initialized",
		zap.String("channel", f.Channel()),
		zap.Int("top_k", cfg.RAGCfg.TopK),
		zap.Float64("similarity_floor", cfg.RAGCfg.SimilarityFloor),
	)
	return core, nil
}

func setupIndex(ctx context.Context, cfg *config.Config, db *pgxpool.Pool, core *Core) (vectorindex.Index, error) {
	dimension := cfg.OpenAICfg.EmbeddingDimension

	switch cfg.RAGCfg.IndexBackend {
	case vectorindex.BackendPGVector:
		return vectorindex.NewPGVectorIndex(ctx, db, dimension)

	case vectorindex.BackendQdrant:
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		q := cfg.RAGCfg.QdrantCfg
		idx, err := vectorindex.NewQdrantIndex(connectCtx, vectorindex.QdrantConfig{
			Host:        q.Host,
			Port:        q.Port,
			APIKey:      q.APIKey,
			UseTLS:      q.UseTLS,
			Collection:  q.Collection,
			Dimension:   dimension,
			RetireGrace: q.RetireGrace,
		})
		if err != nil {
			return nil, err
		}
		core.closers = append(core.closers, func() {
			if err := idx.Close(); err != nil {
				core.Logger.Warn("failed to close qdrant client", zap.Error(err))
			}
		})
		return idx, nil

	default:
		return vectorindex.NewMemoryIndex(dimension), nil
	}
}
