package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scalarai/helpdesk/api"
	dbfs "github.com/scalarai/helpdesk/db"
	"github.com/scalarai/helpdesk/internal/assignment"
	"github.com/scalarai/helpdesk/internal/autoresponder"
	"github.com/scalarai/helpdesk/internal/chat"
	"github.com/scalarai/helpdesk/internal/config"
	"github.com/scalarai/helpdesk/internal/db"
	"github.com/scalarai/helpdesk/internal/faq"
	"github.com/scalarai/helpdesk/internal/jobs"
	"github.com/scalarai/helpdesk/internal/repository/sqlite"
	"github.com/scalarai/helpdesk/internal/routing"
	"github.com/scalarai/helpdesk/internal/scraper"
	"github.com/scalarai/helpdesk/internal/summarizer"
	"github.com/scalarai/helpdesk/pkg/llm"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const scrapeTimeout = 10 * time.Second

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)
	llm.SetLogger(logger)

	logger.Info("starting helpdesk server", "version", version, "build_time", buildTime)

	ctx := context.Background()

	// Open database connection and apply migrations
	database, err := db.New(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
		log.Fatalf("Failed to migrate DB: %v", err)
	}

	// LLM client + gateway
	llmClient, err := llm.NewDefaultClient(cfg.LLM.Ollama)
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}
	gateway := llm.NewOllamaGateway(llmClient, cfg.LLM.Model, cfg.LLM.Enabled)

	// Repository
	repo := sqlite.New(database, logger)

	// Routing
	cache := routing.NewProfileCache(repo.ListProfilesWithBio, routing.DefaultCacheTTL)
	bioStrategy := routing.NewBioStrategy(gateway, cache, repo, repo, logger)
	summaryStrategy := routing.NewSummaryStrategy(gateway, repo, logger)

	// Services
	dispatcher := jobs.NewDispatcher(repo, logger)
	chatService := chat.NewService(repo, repo, repo, dispatcher, logger)
	assignmentService := assignment.NewService(repo, dispatcher, logger)
	responder := autoresponder.New(gateway, repo, repo, repo, repo, chatService, logger)
	convSummarizer := summarizer.NewConversationSummarizer(gateway, repo, repo, logger)
	expSummarizer := summarizer.NewExpertiseSummarizer(gateway, repo, repo, repo, repo, repo, logger)
	pageScraper := scraper.New(scrapeTimeout, logger)
	faqGenerator := faq.NewGenerator(gateway, pageScraper, repo, repo, logger)

	// Background workers
	handlers := jobs.NewHandlers(jobs.HandlerDeps{
		Convs:        repo,
		Msgs:         repo,
		BioRouter:    bioStrategy,
		SummRouter:   summaryStrategy,
		Assignments:  assignmentService,
		Responder:    responder,
		ConvSummary:  convSummarizer,
		ExpSummary:   expSummarizer,
		FAQGenerator: faqGenerator,
		Logger:       logger,
	})
	pool := jobs.NewWorkerPool(repo, handlers, logger, cfg.Workers)
	pool.Start(ctx)

	handler, err := api.SetupRoutes(cfg, version, buildTime, api.Deps{
		Users:       repo,
		Profiles:    repo,
		Assignments: repo,
		Chat:        chatService,
		Assignment:  assignmentService,
		Cache:       cache,
		Dispatcher:  dispatcher,
	})
	if err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	pool.Stop()

	if err := llmClient.Close(); err != nil {
		logger.Error("error closing LLM client", "err", err)
	}
	if err := database.Close(); err != nil {
		logger.Error("error closing DB", "err", err)
	}

	logger.Info("server exited")
}
