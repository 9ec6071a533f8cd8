// Command debateforged wires every component of the debate orchestrator
// core into a running process: it loads configuration, constructs the model
// pool, resilience layer, analyzer, round manager, orchestrator, and the
// Session lifecycle API, then serves both the HTTP boundary and a Prometheus
// metrics endpoint. Grounded on the teacher's cmd/helixagent/main.go
// server-lifecycle shape (background listener, signal-driven graceful
// shutdown).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/vasicdigital/debateforge/internal/analyzer"
	debateapi "github.com/vasicdigital/debateforge/internal/api"
	"github.com/vasicdigital/debateforge/internal/config"
	"github.com/vasicdigital/debateforge/internal/httpapi"
	"github.com/vasicdigital/debateforge/internal/llmclient"
	"github.com/vasicdigital/debateforge/internal/modelpool"
	"github.com/vasicdigital/debateforge/internal/observer"
	"github.com/vasicdigital/debateforge/internal/orchestrator"
	"github.com/vasicdigital/debateforge/internal/resilience"
	"github.com/vasicdigital/debateforge/internal/roundmanager"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := run(logger); err != nil {
		logger.WithError(err).Fatal("debateforged exited with error")
	}
}

func run(logger *logrus.Logger) error {
	configPath := os.Getenv("DEBATEFORGE_CONFIG")
	if configPath == "" {
		configPath = "config/debateforge.yaml"
	}

	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		logger.WithError(err).Warn("falling back to built-in default configuration")
		cfg = config.Default()
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	pool := buildModelPool(cfg)
	client := buildRoutingClient(cfg)

	manager := resilience.NewManager(client, buildBreakerConfig(cfg), buildRetryConfig(cfg))
	for primary, secondary := range cfg.Fallbacks {
		manager.SetFallback(primary, secondary)
	}

	promObs := observer.NewPromObserver()
	promObs.WatchBreakers(manager.Breakers)

	dispatcher := observer.NewDispatcher()
	dispatcher.Subscribe(promObs)

	deps := orchestrator.Deps{
		Pool:       pool,
		Rotation:   modelpool.NewEngine(pool, cfg.ToDebateConfig().TurnDeadline),
		Resilience: manager,
		Analyzer:   analyzer.New(cfg.ToDebateConfig().StrengthWeights),
		Rounds:     roundmanager.New(roundmanager.DefaultWeights(), cfg.MinRounds, cfg.MaxRounds),
		Observers:  dispatcher,
		Logger:     logger,
	}
	orc := orchestrator.New(deps)

	svc := debateapi.New(orc, nil, cfg.ToDebateConfig(), logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "healthy"}) })
	httpapi.NewHandler(svc, logger).Register(router.Group("/v1"))

	metricsRouter := http.NewServeMux()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsRouter,
	}

	serverErr := make(chan error, 2)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("starting HTTP API server")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		logger.WithField("addr", cfg.MetricsAddr).Info("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case <-quit:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("api server shutdown did not complete cleanly")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("metrics server shutdown did not complete cleanly")
	}
	return nil
}

func buildModelPool(cfg config.Config) *modelpool.Pool {
	pool := modelpool.NewPool()
	for _, m := range cfg.Models {
		pool.Register(modelpool.ModelInfo{ID: m.ID, Provider: m.Provider, Tags: m.Tags})
	}
	return pool
}

func buildRoutingClient(cfg config.Config) *llmclient.RoutingClient {
	router := llmclient.NewRoutingClient()
	for _, m := range cfg.Models {
		router.Register(m.ID, llmclient.NewRESTClient(m.BaseURL, m.APIKey))
	}
	return router
}

func buildBreakerConfig(cfg config.Config) resilience.BreakerConfig {
	dc := cfg.ToDebateConfig()
	return resilience.BreakerConfig{
		Window:      dc.BreakerWindow,
		TripRate:    dc.BreakerTripRate,
		MinFailures: resilience.DefaultBreakerConfig().MinFailures,
		Cooldown:    dc.BreakerCooldown,
		CooldownMax: dc.BreakerCooldownMax,
	}
}

func buildRetryConfig(cfg config.Config) resilience.RetryConfig {
	dc := cfg.ToDebateConfig()
	return resilience.RetryConfig{
		MaxAttempts: dc.RetryMaxAttempts,
		BaseDelay:   dc.RetryBaseDelay,
		CapDelay:    dc.RetryCapDelay,
	}
}
