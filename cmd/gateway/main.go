// Command gateway boots the unified LLM provider proxy: it loads
// configuration, wires the Counter Store, Catalogue Store, Rate
// Limiter, Model Manager, provider adapter registry, and Request
// Pipeline, then serves §6's HTTP surface with graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/relayforge/gateway/catalogstore"
	"github.com/relayforge/gateway/config"
	"github.com/relayforge/gateway/counterstore"
	"github.com/relayforge/gateway/handler"
	"github.com/relayforge/gateway/logging"
	"github.com/relayforge/gateway/metrics"
	"github.com/relayforge/gateway/modelmanager"
	"github.com/relayforge/gateway/pipeline"
	"github.com/relayforge/gateway/provider"
	"github.com/relayforge/gateway/ratelimit"
	"github.com/relayforge/gateway/redisclient"
	"github.com/relayforge/gateway/router"
)

const xaiBaseURL = "https://api.x.ai/v1"

func main() {
	cfg := config.Load()
	log := logging.New(cfg)

	redisClient, err := redisclient.New(cfg.CounterStoreURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure counter store")
	}
	if err := redisclient.Ping(redisClient); err != nil {
		log.Fatal().Err(err).Msg("counter store unreachable")
	}
	counters := counterstore.NewRedisStore(redisClient)

	sqlDB, err := sql.Open("pgx", cfg.CatalogueStoreURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open catalogue store")
	}
	if err := catalogstore.Migrate(sqlDB); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate catalogue store")
	}
	sqlDB.Close()

	pool, err := pgxpool.New(context.Background(), cfg.CatalogueStoreURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect catalogue store pool")
	}
	defer pool.Close()
	catalogue := catalogstore.NewPostgresStore(pool)

	models := modelmanager.New(catalogue)
	if err := models.Seed(context.Background(), cfg.AdminAPIKey); err != nil {
		log.Fatal().Err(err).Msg("failed to seed catalogue store")
	}

	registry := provider.NewRegistry()
	registry.Register("openai", provider.NewOpenAIAdapter("", cfg.ProviderAPIKeys["openai"], cfg.ProviderTimeout("openai")))
	registry.Register("anthropic", provider.NewAnthropicAdapter("", cfg.ProviderAPIKeys["anthropic"], cfg.ProviderTimeout("anthropic")))
	registry.Register("google", provider.NewGeminiAdapter("", cfg.ProviderAPIKeys["google"], cfg.ProviderTimeout("google")))
	registry.Register("mistral", provider.NewMistralAdapter(cfg.ProviderAPIKeys["mistral"], cfg.ProviderTimeout("mistral")))
	registry.Register("xai", provider.NewOpenAIAdapter(xaiBaseURL, cfg.ProviderAPIKeys["xai"], cfg.ProviderTimeout("xai")))

	limiter := ratelimit.New(counters)
	p := pipeline.New(catalogue, limiter, models, registry, log).WithMetrics(metrics.NewPipelineMetrics())

	proxyHandler := handler.NewProxyHandler(log, p, models)
	mux := router.NewRouter(cfg, log, proxyHandler)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	_ = redisClient.Close()
}
