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

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appaws "itinerary-workers/internal/common/aws"
	"itinerary-workers/internal/common/backoff"
	"itinerary-workers/internal/common/camunda"
	"itinerary-workers/internal/common/config"
	"itinerary-workers/internal/common/database"
	"itinerary-workers/internal/common/genai"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/observability"
	"itinerary-workers/internal/common/websearch"
	"itinerary-workers/internal/pipeline/workflow"
	"itinerary-workers/internal/store"
	"itinerary-workers/pkg/registry"

	ei "itinerary-workers/internal/workers/itinerary/export-itinerary"
	gi "itinerary-workers/internal/workers/itinerary/generate-itinerary"
	ni "itinerary-workers/internal/workers/itinerary/notify-itinerary"
	ri "itinerary-workers/internal/workers/itinerary/refine-itinerary"
)

// retryWithBackoff runs operation until it succeeds, waiting delay × attempt between tries.
func retryWithBackoff(ctx context.Context, operation func() error, attempts int, delay time.Duration, log *zap.Logger, operationName string) error {
	err := backoff.Retry(ctx, attempts, delay, backoff.Sleep, func(attempt int) error {
		err := operation()
		if err != nil && attempt < attempts {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Int("maxRetries", attempts),
				zap.Duration("nextRetryIn", delay*time.Duration(attempt)),
			)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, err)
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Service: cfg.App.Name,
	})
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err == nil {
		err = reg.Check()
	}
	if err != nil {
		zapLog.Fatal("task registry invalid", zap.String("path", cfg.Registry.Path), zap.Error(err))
	}

	// --- PostgreSQL: itinerary archive ---
	var pg *database.PostgresClient
	err = retryWithBackoff(ctx, func() error {
		var err error
		if pg == nil {
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	archive := store.NewArchive(pg.DB, log)
	if err := archive.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("archive schema setup failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Elasticsearch: venue index (optional) ---
	var venueIndex *store.VenueIndex
	if cfg.Database.Elasticsearch.Enabled {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err == nil {
			err = retryWithBackoff(ctx, func() error { return esClient.Ping(ctx) }, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		}
		if err != nil {
			zapLog.Warn("venue index disabled", zap.Error(err))
		} else {
			venueIndex = store.NewVenueIndex(esClient.Client, cfg.Database.Elasticsearch.VenueIndex, log)
			zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Database.Elasticsearch.VenueIndex))
		}
	}

	// --- Discovery service, cached in Redis when available ---
	var discovery websearch.Discovery = websearch.NewClient(cfg.APIs.WebSearch, log)
	if cfg.Database.Redis.Enabled {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err == nil {
			err = retryWithBackoff(ctx, func() error { return rdb.Ping(ctx) }, 5, 2*time.Second, zapLog, "Redis connection")
		}
		if err != nil {
			zapLog.Warn("discovery cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			ttl := time.Duration(cfg.APIs.WebSearch.CacheTTL) * time.Second
			discovery = websearch.NewCachedDiscovery(discovery, rdb.Client, ttl, log)
			zapLog.Info("Redis connected successfully", zap.Duration("cacheTTL", ttl))
		}
	}

	// --- Pipeline ---
	completer := genai.NewClient(cfg.APIs.GenAI, log)
	settings := cfg.Pipeline.Settings()
	service := workflow.NewService(
		workflow.NewStages(completer, discovery, settings, log),
		settings,
		log,
		workflow.WithObservability(obs),
		workflow.WithObserver(func(tr workflow.Transition) {
			zapLog.Debug("pipeline progress",
				zap.String("state", string(tr.To)),
				zap.Int("progress", tr.Progress),
				zap.String("step", tr.Step),
			)
		}),
	)

	// --- AWS: notification delivery (optional) ---
	var sesClient ni.SESService
	var snsClient ni.SNSService
	notifyCfg := cfg.Notifications
	if notifyCfg.Email.Enabled || notifyCfg.SMS.Enabled {
		clients, err := appaws.NewClients(ctx, notifyCfg.AWS.Region)
		if err != nil {
			zapLog.Warn("notifications disabled", zap.Error(err))
			notifyCfg.Email.Enabled = false
			notifyCfg.SMS.Enabled = false
		} else {
			sesClient = clients.SES
			snsClient = clients.SNS
		}
	}

	// --- Zeebe ---
	zc, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		ConnectAttempts:        10,
		ConnectBackoff:         2 * time.Second,
	}, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// Disabled venue deps must reach the handlers as untyped nil.
	var indexer gi.VenueIndexer
	var searcher ri.VenueSearcher
	if venueIndex != nil {
		indexer = venueIndex
		searcher = venueIndex
	}

	var workers []worker.JobWorker
	register := func(taskType string, handler worker.JobHandler) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if a, ok := reg.Find(taskType); !ok || !a.Enabled {
			wcfg.Enabled = false
		}
		jw := camunda.Register(zc.GetClient(), camunda.Registration{
			TaskType:  taskType,
			Config:    wcfg,
			Handler:   handler,
			Validator: reg,
			Obs:       obs,
		}, log)
		if jw != nil {
			workers = append(workers, jw)
		}
	}
	timeout := func(taskType string) time.Duration {
		return config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout)
	}

	genCfg := gi.LoadConfig()
	genCfg.Timeout = timeout(gi.TaskType)
	register(gi.TaskType, gi.NewHandler(genCfg, service, archive, indexer, log).Handle)

	refCfg := ri.LoadConfig()
	refCfg.Timeout = timeout(ri.TaskType)
	register(ri.TaskType, ri.NewHandler(refCfg, service, archive, searcher, log).Handle)

	expCfg := ei.LoadConfig()
	expCfg.Timeout = timeout(ei.TaskType)
	register(ei.TaskType, ei.NewHandler(expCfg, service, archive, log).Handle)

	notCfg := ni.LoadConfig()
	notCfg.Timeout = timeout(ni.TaskType)
	notCfg.EmailEnabled = notifyCfg.Email.Enabled
	notCfg.FromEmail = notifyCfg.Email.FromEmail
	notCfg.SMSEnabled = notifyCfg.SMS.Enabled
	notCfg.SenderID = notifyCfg.SMS.SenderID
	notCfg.AWSRegion = notifyCfg.AWS.Region
	register(ni.TaskType, ni.NewHandler(notCfg, archive, sesClient, snsClient, log).Handle)

	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		checks := map[string]string{"postgres": "ok", "zeebe": "ok"}
		status := http.StatusOK
		if err := pg.Ping(checkCtx); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := zc.HealthCheck(checkCtx); err != nil {
			checks["zeebe"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		label := "ready"
		if status != http.StatusOK {
			label = "not ready"
		}
		writeStatus(w, status, label, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.HTTPPort),
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
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, jw := range workers {
		jw.Close()
		jw.AwaitClose()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	if err := zc.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string, checks map[string]string) {
	body := map[string]interface{}{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if checks != nil {
		body["checks"] = checks
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
