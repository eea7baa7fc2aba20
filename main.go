package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/jewelry-concierge/server/internal/agent/graph"
	"github.com/jewelry-concierge/server/internal/agent/graph/classifier"
	"github.com/jewelry-concierge/server/internal/agent/graph/conversations"
	"github.com/jewelry-concierge/server/internal/agent/graph/tools"
	"github.com/jewelry-concierge/server/internal/agent/handlers"
	"github.com/jewelry-concierge/server/internal/agent/llm"
	"github.com/jewelry-concierge/server/internal/agent/model"
	"github.com/jewelry-concierge/server/internal/agent/retrieval"
	"github.com/jewelry-concierge/server/internal/core"
	"github.com/jewelry-concierge/server/internal/repo"
	"github.com/jewelry-concierge/server/internal/server"
	logx "github.com/jewelry-concierge/server/pkg/logger"
	pkgpostgres "github.com/jewelry-concierge/server/pkg/postgres"
	pkgredis "github.com/jewelry-concierge/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the service, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Env         core.Environment `envconfig:"APP_ENV" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`
	CatalogFile string           `envconfig:"CATALOG_FILE"`

	// Infrastructure; both optional, in-memory stores are used otherwise
	Redis pkgredis.Config
	DB    pkgpostgres.Config
	HTTP  server.Config

	LLM model.LLMConfig

	// Agent configs
	Graph        model.GraphConfig
	Stream       model.StreamConfig
	Retrieval    model.RetrievalConfig
	Conversation model.ConversationConfig
	Consultant   model.ConsultantConfig
	Companion    model.CompanionConfig
	Quiz         model.QuizConfig
	Analytics    model.AnalyticsConfig
}

// stores groups the storage collaborators picked at startup.
type stores struct {
	profiles      model.ProfileStore
	records       model.InteractionStore
	catalog       model.CatalogStore
	products      repo.ProductSaver
	conversations model.ConversationRepository
	quiz          model.QuizProgressStore
	index         model.SimilarityIndex
	closers       []func() error
}

func main() {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Env, Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		provider   llm.Provider
		routing    llm.Provider
		embedder   embedding.Embedder
		horoscopes *tools.HoroscopeClient
	)
	if cfg.LLM.Enabled() {
		client, err := llm.NewGeminiClient(ctx, cfg.LLM)
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to create gemini client")
		}
		registry := llm.NewRegistry(llm.NewGeminiFactory(client, cfg.LLM), cfg.LLM.ClientTTL)
		provider = registry.Lazy(cfg.LLM.Model)
		routing = registry.Lazy(cfg.LLM.ClassifierModel)
		embedder = llm.NewGeminiEmbedder(client, cfg.LLM.EmbeddingModel, cfg.LLM.MaxRetries)
	} else {
		logx.Warn().Msg("GEMINI_API_KEY not set; running with rule-based routing and fallback replies")
	}
	if cfg.Companion.HoroscopeURL != "" {
		horoscopes = tools.NewHoroscopeClient(cfg.Companion)
	}

	st, err := buildStores(ctx, cfg, embedder)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise storage")
	}
	defer st.close()

	if cfg.CatalogFile != "" {
		products, err := repo.LoadCatalogFile(cfg.CatalogFile)
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to load catalog")
		}
		if err := repo.SeedCatalog(ctx, products, st.products, st.index); err != nil {
			logx.Fatal().Err(err).Msg("failed to seed catalog")
		}
	}

	pipeline := retrieval.NewPipeline(st.index, st.catalog, cfg.Retrieval)

	analytics, err := handlers.NewAnalytics(ctx, handlers.AnalyticsDeps{
		Provider: provider,
		Profiles: st.profiles,
		Records:  st.records,
	}, cfg.Analytics, cfg.Retrieval.Currency)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build analytics graph")
	}

	set := handlers.NewSet(
		handlers.NewConsultant(handlers.ConsultantDeps{
			Provider:  provider,
			Retriever: pipeline,
			Catalog:   st.catalog,
			Profiles:  st.profiles,
			Records:   st.records,
		}, cfg.Consultant, cfg.Retrieval),
		handlers.NewCompanion(provider, horoscopes, cfg.Companion, cfg.Graph.HistoryTurns),
		handlers.NewQuiz(provider, cfg.Quiz),
		handlers.NewTrend(provider),
		analytics,
	)

	var taskClassifier classifier.Classifier = classifier.RuleBased{}
	if routing != nil && cfg.Graph.ModelClassifier {
		taskClassifier = classifier.NewModelBased(routing)
	}

	orchestrator, err := graph.New(ctx, graph.Config{
		Classifier:    taskClassifier,
		Handlers:      set,
		Conversations: conversations.NewManager(st.conversations, st.quiz, cfg.Conversation),
		Graph:         cfg.Graph,
		Stream:        cfg.Stream,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build orchestrator graph")
	}

	srv := server.New(cfg.HTTP, orchestrator, pipeline)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			logx.Error().Err(err).Msg("http server stopped")
		}
	case <-ctx.Done():
		logx.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logx.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}

func buildStores(ctx context.Context, cfg AppConfig, embedder embedding.Embedder) (*stores, error) {
	mem := repo.NewMemoryStore(cfg.Conversation.TTL)
	st := &stores{
		profiles:      mem,
		records:       mem,
		catalog:       mem,
		products:      mem,
		conversations: mem,
		quiz:          mem,
	}
	if embedder != nil {
		st.index = repo.NewMemoryIndex(embedder)
	}

	if cfg.DB.Enabled() {
		db, err := cfg.DB.New()
		if err != nil {
			return nil, err
		}
		if err := repo.Migrate(ctx, db); err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			st.closers = append(st.closers, sqlDB.Close)
		}
		pg := repo.NewPostgresStore(db)
		st.profiles, st.records, st.catalog, st.products = pg, pg, pg, pg
		if embedder != nil {
			st.index = repo.NewPgVectorIndex(db, embedder)
		}
		logx.Info().Msg("using postgres storage")
	}

	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New()
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, rdb.Close)
		st.conversations = repo.NewRedisConversationRepository(rdb, cfg.Conversation.TTL)
		st.quiz = repo.NewRedisQuizProgressStore(rdb, cfg.Conversation.TTL)
		logx.Info().Msg("using redis conversation storage")
	}
	return st, nil
}

func (s *stores) close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			logx.Warn().Err(err).Msg("close failed")
		}
	}
}
