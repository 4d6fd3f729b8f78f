package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/hivemind/internal/adapters/driven/ai"
	openaiembed "github.com/custodia-labs/hivemind/internal/adapters/driven/ai/embedding/openai"
	openaillm "github.com/custodia-labs/hivemind/internal/adapters/driven/ai/llm/openai"
	"github.com/custodia-labs/hivemind/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/hivemind/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/hivemind/internal/adapters/driving/api"
	"github.com/custodia-labs/hivemind/internal/config"
	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
	"github.com/custodia-labs/hivemind/internal/core/services"
	"github.com/custodia-labs/hivemind/internal/logger"
	"github.com/custodia-labs/hivemind/internal/queue"
	"github.com/custodia-labs/hivemind/internal/workers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server, sync workers and scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Verbose {
		logger.SetVerbose(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage: postgres when configured, in-memory for development.
	var (
		items        driven.ItemStore
		vectors      driven.VectorStore
		integrations driven.IntegrationStore
		creds        driven.CredentialStore
	)
	if cfg.Database.URL != "" {
		store, err := postgres.NewStore(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer store.Close()
		items = store.ItemStore()
		vectors = store.VectorStore()
		integrations = store.IntegrationStore()
		creds = store.CredentialStore()
	} else {
		logger.Warn("no database configured, using in-memory stores; nothing survives a restart")
		memItems := memory.NewItemStore()
		memIntegrations := memory.NewIntegrationStore()
		items = memItems
		vectors = memory.NewVectorStore(memItems)
		integrations = memIntegrations
		creds = memIntegrations
	}

	// AI collaborators. Missing credentials degrade search to lexical
	// and answers to their canned fallback instead of failing startup.
	var embedder driven.EmbeddingService = ai.UnavailableEmbedding{}
	var llm driven.LLMService = ai.UnavailableLLM{}
	if cfg.OpenAI.APIKey != "" {
		embedder, err = openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.EmbeddingModel,
		})
		if err != nil {
			return fmt.Errorf("creating embedding service: %w", err)
		}
		llm, err = openaillm.NewLLMService(openaillm.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.ChatModel,
		})
		if err != nil {
			return fmt.Errorf("creating llm service: %w", err)
		}
	} else {
		logger.Warn("no OpenAI API key configured, embeddings and answers are disabled")
	}

	// Embedding pipeline.
	embedWorker := workers.NewEmbeddingWorker(items, vectors, embedder)
	embedQueue := queue.NewEmbeddingQueue(embedWorker.Handler(), queue.Options{})
	embedQueue.Start(ctx)
	defer embedQueue.Stop()

	// One worker and queue per provider.
	codeHost := workers.NewCodeHostWorker(items, integrations, creds, embedQueue, nil)
	chat := workers.NewChatWorker(items, integrations, creds, embedQueue, nil)
	docs := workers.NewDocsWorker(items, integrations, creds, embedQueue, nil)

	queues := map[domain.Provider]driven.SyncQueue{}
	for provider, handler := range map[domain.Provider]queue.Handler[domain.SyncJob]{
		domain.ProviderGitHub: codeHost.Handler(),
		domain.ProviderSlack:  chat.Handler(),
		domain.ProviderNotion: docs.Handler(),
	} {
		q := queue.NewSyncQueue(provider, handler, queue.Options{})
		q.Start(ctx)
		defer q.Stop()
		queues[provider] = q
	}

	coordinator := services.NewCoordinator(queues, integrations)
	search := services.NewSearch(items, vectors, embedder, llm)

	scheduler := services.NewScheduler(coordinator, integrations)
	incremental := cfg.Scheduler.IncrementalEvery.Duration()
	if incremental <= 0 {
		incremental = services.DefaultIncrementalEvery
	}
	full := cfg.Scheduler.FullEvery.Duration()
	if full <= 0 {
		full = services.DefaultFullEvery
	}
	scheduler.SetCadence(incremental, full)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	app := api.NewApp(coordinator, search, items, embedQueue)

	logger.Info("hivemind listening on %s", cfg.Server.Addr)
	return app.Listen(cfg.Server.Addr, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	})
}
