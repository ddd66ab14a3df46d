// justifyd runs the justification pipeline server: it serves the HTTP API
// (pkg/api), polls for pending justify_runs with a worker pool (pkg/queue),
// and periodically purges old runs and stale clarifications (pkg/cleanup).
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codegraph-labs/justify/pkg/api"
	"github.com/codegraph-labs/justify/pkg/batcher"
	"github.com/codegraph-labs/justify/pkg/cleanup"
	"github.com/codegraph-labs/justify/pkg/config"
	"github.com/codegraph-labs/justify/pkg/events"
	"github.com/codegraph-labs/justify/pkg/graphstore"
	"github.com/codegraph-labs/justify/pkg/justify"
	"github.com/codegraph-labs/justify/pkg/llmtransport"
	"github.com/codegraph-labs/justify/pkg/masking"
	"github.com/codegraph-labs/justify/pkg/queue"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	podID := flag.String("pod-id", getEnv("POD_ID", ""), "Unique identifier for this pod/replica")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	gin.SetMode(getEnv("GIN_MODE", "release"))

	pod := *podID
	if pod == "" {
		pod = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Starting justifyd (pod %s)", pod)
	log.Printf("Config Directory: %s", *configDir)

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}
	stats := cfg.Stats()
	log.Printf("Configuration initialized (llm_providers=%d)", stats.LLMProviders)

	adapter, err := graphstore.NewPostgresAdapter(graphstore.PostgresConfig{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := adapter.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()
	log.Println("Connected to PostgreSQL, schema migrated")

	redactor := masking.NewService(cfg.Defaults.Masking)

	llmClient, model := buildLLMClient(cfg)

	registry := prometheus.NewRegistry()
	metrics := justify.NewMetrics(registry)
	pipeline := justify.New(adapter, llmClient, redactor, metrics, model, cfg.Queue.WorkerCount)

	broadcaster := events.NewBroadcaster()
	executor := queue.NewPipelineExecutor(pipeline, broadcaster)
	pool := queue.NewWorkerPool(pod, adapter.DB(), cfg.Queue, executor)
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}
	defer pool.Stop()

	cleanupSvc := cleanup.NewService(cfg.Retention, adapter.DB(), adapter)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	server := api.NewServer(cfg, adapter.DB(), pipeline, pool, broadcaster, registry)

	addr := ":" + getEnv("HTTP_PORT", "8080")
	if cfg.Server.Port != 0 {
		addr = ":" + strconv.Itoa(cfg.Server.Port)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.Start(addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		log.Fatalf("HTTP server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.GracefulShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during HTTP shutdown: %v", err)
	}
}

// buildLLMClient constructs the llmtransport.Client for cfg.Defaults.LLMProvider
// and a batcher.ModelDescriptor sized from that provider's configured context
// budget. Every provider type currently resolves to the OpenAI-compatible
// transport (pkg/llmtransport's only concrete Client besides the test fake):
// the non-OpenAI provider types in config.LLMProviderType describe gateways
// that are, in practice, OpenAI protocol-compatible once pointed at their
// own BaseURL, and this module carries no provider-specific SDKs beyond
// github.com/sashabaranov/go-openai.
func buildLLMClient(cfg *config.Config) (llmtransport.Client, batcher.ModelDescriptor) {
	providerName := cfg.Defaults.LLMProvider
	provider, err := cfg.GetLLMProvider(providerName)
	if err != nil {
		slog.Warn("No active LLM provider configured, running skip_llm-only", "error", err)
		return nil, batcher.DefaultModelDescriptor
	}

	if provider.Type != config.LLMProviderTypeOpenAI {
		slog.Info("Provider type uses the OpenAI-compatible transport", "type", provider.Type, "provider", providerName)
	}

	client := llmtransport.NewOpenAIClient(llmtransport.OpenAIConfig{
		APIKey:  os.Getenv(provider.APIKeyEnv),
		BaseURL: provider.BaseURL,
		Model:   provider.Model,
	})

	model := batcher.ModelDescriptor{
		ID:              provider.Model,
		ContextWindow:   provider.MaxContextTokens,
		MaxOutputTokens: batcher.DefaultModelDescriptor.MaxOutputTokens,
		Provider:        string(provider.Type),
	}
	return client, model
}
