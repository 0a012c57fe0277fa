package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/penny-newsletter-go/internal/config"
	"github.com/boddenberg/penny-newsletter-go/internal/handler"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/market"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/nessie"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/news"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/observability"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/openai"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/resend"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/resilience"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/supabase"
	"github.com/boddenberg/penny-newsletter-go/internal/port"
	"github.com/boddenberg/penny-newsletter-go/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_supabase", cfg.UseSupabase),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Strings("market_tickers", cfg.MarketTickers),
		zap.Float64("batch_rate_per_sec", cfg.BatchRatePerSec),
		zap.Int("batch_concurrency", cfg.BatchConcurrency),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(context.Background(), cfg.OTLPEndpoint, "penny-newsletter")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	bank := nessie.NewClient(httpClient, cfg.NessieAPIURL, cfg.NessieAPIKey,
		resilience.NewCircuitBreaker("nessie", logger), resilienceCfg, logger)
	if cfg.NessieAPIKey == "" {
		logger.Warn("NESSIE_API_KEY not set, banking sandbox calls will be rejected")
	}

	var llm port.Completer
	if cfg.OpenAIAPIKey != "" {
		llm = openai.NewClient(httpClient, cfg.OpenAIAPIURL, cfg.OpenAIAPIKey, cfg.OpenAIModel,
			resilience.NewCircuitBreaker("openai", logger), resilienceCfg, metrics)
	} else {
		logger.Warn("OPENAI_API_KEY not set, narratives and news summaries use static text")
	}

	quotes := market.NewClient(httpClient, cfg.MarketAPIURL, resilience.NewCircuitBreaker("market", logger), resilienceCfg)

	var headlines port.NewsFetcher
	if cfg.NewsAPIKey != "" {
		headlines = news.NewClient(httpClient, cfg.NewsAPIURL, cfg.NewsAPIKey, resilience.NewCircuitBreaker("news", logger), resilienceCfg)
	} else {
		logger.Warn("NEWS_API_KEY not set, news section uses static text")
	}

	var sender port.EmailSender
	if cfg.ResendAPIKey != "" {
		sender = resend.NewClient(httpClient, cfg.ResendAPIURL, cfg.ResendAPIKey, resilience.NewCircuitBreaker("resend", logger))
	} else {
		logger.Warn("RESEND_API_KEY not set, newsletters cannot be delivered")
	}

	var store port.SubscriberStore
	if cfg.UseSupabase && cfg.SupabaseURL != "" {
		logger.Info("using Supabase as subscriber store",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		store = supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase", logger),
			resilienceCfg,
			logger,
		)
	} else {
		logger.Warn("Supabase not configured, registration, cron and unsubscribe routes unavailable")
	}

	// --- Services ---
	reports := service.NewReportService(
		service.NewSnapshotLoader(bank, metrics, logger, cfg.MaxConcurrency),
		service.NewNarrator(llm, cfg.LLMTimeout, metrics, logger),
		service.NewMarketEnricher(quotes, cfg.MarketTickers, cfg.CacheTTL, metrics, logger),
		service.NewNewsEnricher(headlines, llm, cfg.NewsTopic, cfg.LLMTimeout, cfg.CacheTTL, metrics, logger),
		metrics,
		logger,
	)

	if cfg.DefaultSecret() {
		logger.Warn("UNSUBSCRIBE_SECRET not set, unsubscribe links are signed with the development default")
	}
	unsubscribe := service.NewUnsubscribeService(store, cfg.UnsubscribeSecret, cfg.UnsubscribeTTL, cfg.PublicBaseURL, logger)

	newsletters := service.NewNewsletterService(reports, store, sender, unsubscribe,
		service.NewsletterConfig{
			From:        cfg.EmailFrom,
			Concurrency: cfg.BatchConcurrency,
			RatePerSec:  cfg.BatchRatePerSec,
		},
		metrics, logger)

	seeder := service.NewSeeder(bank, cfg.SeedRatePerSec, nil, metrics, logger)
	registration := service.NewRegistrationService(bank, store, seeder, newsletters, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Reports:      reports,
		Newsletters:  newsletters,
		Registration: registration,
		Unsubscribe:  unsubscribe,
		Store:        store,
		CronSecret:   cfg.CronSecret,
	}, metrics, logger)

	// --- Server ---
	// WriteTimeout covers inline seeding and batch sends
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
