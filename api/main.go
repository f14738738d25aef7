package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DeafMist/agentic-voice/backend/internal/completion"
	"github.com/DeafMist/agentic-voice/backend/internal/config"
	"github.com/DeafMist/agentic-voice/backend/internal/elasticsearch"
	"github.com/DeafMist/agentic-voice/backend/internal/events"
	"github.com/DeafMist/agentic-voice/backend/internal/exa"
	"github.com/DeafMist/agentic-voice/backend/internal/keywords"
	"github.com/DeafMist/agentic-voice/backend/internal/logger"
	"github.com/DeafMist/agentic-voice/backend/internal/rag"
)

func main() {
	// .env is optional; real environment wins.
	_ = godotenv.Load()

	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	table, err := keywords.Load(cfg.KeywordsFile)
	if err != nil {
		log.Error("load keyword table", slog.Any("err", err), slog.String("path", cfg.KeywordsFile))
		os.Exit(1)
	}

	var llm completion.Completer
	if cfg.OpenAIKey == "" {
		log.Warn("OPENAI_API_KEY not set, using mock completer")
		llm = completion.Mock{}
	} else {
		llm = completion.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.PublishingEnabled() {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		log.Info("publishing retrieval events", slog.String("topic", cfg.KafkaTopic))
	}
	defer publisher.Close()

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	search := exa.New(cfg.ExaBaseURL, cfg.ExaKey, cfg.ExaTimeout, log)
	pipeline := rag.New(table, search, llm, publisher, log, rag.Options{
		NumResults:  cfg.NumResults,
		Concurrency: cfg.SearchConcurrency,
	})

	srv := &server{
		log:      log,
		cfg:      cfg,
		pipeline: pipeline,
		archive:  esClient,
		table:    table,
		model:    llm.Model(),
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.String("model", srv.model),
			slog.Int("categories", len(table.Names())),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}
