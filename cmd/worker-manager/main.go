// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"banking-command-workers/internal/common/camunda"
	"banking-command-workers/internal/common/config"
	"banking-command-workers/internal/common/conversation"
	"banking-command-workers/internal/common/database"
	"banking-command-workers/internal/common/genai"
	"banking-command-workers/internal/common/logger"
	"banking-command-workers/internal/common/observability"
	"banking-command-workers/internal/derivation/timerange"
	"banking-command-workers/internal/derivation/visualization"
	"banking-command-workers/pkg/registry"

	ea "banking-command-workers/internal/workers/analytics/enrich-analytics"
	pt "banking-command-workers/internal/workers/nlp/process-text"
	rb "banking-command-workers/internal/workers/transfer/resolve-beneficiary"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func genaiConfig(purpose string, g config.GenAIConfig) genai.Config {
	return genai.Config{
		Purpose:     purpose,
		BaseURL:     g.BaseURL,
		APIKey:      g.APIKey,
		Model:       g.Model,
		Temperature: g.Temperature,
		Timeout:     config.GetDuration(g.Timeout),
		MaxRetries:  g.MaxRetries,
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog, err := logger.Build(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Fields: map[string]interface{}{
			"service":     cfg.App.Name,
			"version":     cfg.App.Version,
			"environment": cfg.App.Environment,
		},
	})
	if err != nil {
		zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting worker manager...")

	obs, err := observability.New(cfg.App.Name, prometheus.DefaultRegisterer)
	if err != nil {
		zapLog.Warn("OpenTelemetry metrics disabled", zap.Error(err))
	}

	ctx := context.Background()

	// --- Zeebe ---
	zeebe, err := camunda.NewClient(ctx, camunda.ConfigFrom(cfg.Camunda))
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Elasticsearch ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Redis ---
	redisClient := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Module registry ---
	reg, err := registry.LoadModules(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("module registry load failed", zap.String("path", cfg.Registry.Path), zap.Error(err))
	}
	zapLog.Info("Module registry loaded", zap.Strings("modules", reg.Codes()))

	resolver := timerange.NewResolver(nil)

	// --- Workers ---
	var workers []*camunda.CamundaWorker
	start := func(taskType string, handler camunda.JobHandler) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), camunda.WorkerOptions{
			TaskType:      taskType,
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       config.GetDuration(wcfg.Timeout),
		}, handler, obs, zapLog))
	}
	handlerTimeout := func(taskType string) time.Duration {
		return config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout)
	}

	if config.IsWorkerEnabled(cfg, pt.TaskType) {
		ptCfg := pt.LoadConfig()
		ptCfg.Timeout = handlerTimeout(pt.TaskType)
		ptCfg.UseConversation = cfg.Conversation.Enabled

		var store pt.TurnStore
		if cfg.Conversation.Enabled {
			store = conversation.NewStore(redisClient.Client, cfg.Conversation.KeyPrefix, time.Duration(cfg.Conversation.TTL)*time.Second)
		}
		extractor := pt.NewExtractor(genai.NewClient(genaiConfig("extraction", cfg.APIs.Extraction)), reg)
		handler := pt.NewHandler(ptCfg, extractor, pt.NewRouter(resolver), store, log).WithFlowRecorder(obs)
		start(pt.TaskType, handler)
	}

	if config.IsWorkerEnabled(cfg, ea.TaskType) {
		eaCfg := ea.LoadConfig()
		eaCfg.Timeout = handlerTimeout(ea.TaskType)

		generator := ea.NewChartGenerator(genai.NewClient(genaiConfig("visualization", cfg.APIs.Visualization)))
		handler := ea.NewHandler(eaCfg, ea.NewPostgresRepository(pg.DB, eaCfg.RowLimit), visualization.NewBuilder(generator), log)
		start(ea.TaskType, handler)
	}

	if config.IsWorkerEnabled(cfg, rb.TaskType) {
		rbCfg := rb.LoadConfig()
		rbCfg.Timeout = handlerTimeout(rb.TaskType)
		rbCfg.Index = cfg.Database.Elasticsearch.BeneficiaryIndex
		rbCfg.MaxResults = cfg.Database.Elasticsearch.MaxBeneficiaries

		searcher := rb.NewElasticsearchSearcher(esClient.Client, rbCfg.Index, rbCfg.MaxResults)
		start(rb.TaskType, rb.NewHandler(rbCfg, searcher, log))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	deps := map[string]database.Pinger{
		"zeebe":         zeebe,
		"postgres":      pg,
		"redis":         redisClient,
		"elasticsearch": esClient,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if failed := database.CheckAll(r.Context(), 3*time.Second, deps); len(failed) > 0 {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  database.Summary(failed),
				"time":   time.Now().Format(time.RFC3339),
			})
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping metrics provider", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
