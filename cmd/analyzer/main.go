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

	app_service "aml-graph-analyzer/internal/application/service"
	"aml-graph-analyzer/internal/domain/repository"
	domain_service "aml-graph-analyzer/internal/domain/service"
	"aml-graph-analyzer/internal/infrastructure/config"
	"aml-graph-analyzer/internal/infrastructure/database"
	"aml-graph-analyzer/internal/infrastructure/graph"
	"aml-graph-analyzer/internal/infrastructure/logger"
	"aml-graph-analyzer/internal/infrastructure/messaging"
	"aml-graph-analyzer/internal/infrastructure/metrics"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.NewLogger(cfg.App.LogLevel)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	// Create FX application
	app := fx.New(
		// Provide dependencies
		fx.Supply(cfg),
		fx.Supply(log),
		fx.Supply(&cfg.NATS),
		fx.Supply(&cfg.Neo4J),
		fx.Supply(&cfg.Analysis),
		fx.Supply(&cfg.Heuristics),
		fx.Provide(func() *zap.Logger { return log.Logger }),

		// Infrastructure providers
		fx.Provide(
			database.NewNeo4JClient,
			provideGraphStore,
			graph.NewCentralityCalculator,
			messaging.NewNATSConsumer,
		),

		// Domain services
		fx.Provide(
			domain_service.NewHeuristics,
			domain_service.NewEntityClassifier,
			domain_service.NewKeywordScreening,
			domain_service.NewCompositeScorer,
			provideFactorCalculator,
			provideRiskFactorEngine,
			provideProfileBuilder,
			provideDetectors,
		),

		// Application providers
		fx.Provide(
			app_service.NewAnalysisOrchestrator,
			provideRequestProcessor,
		),

		// Lifecycle hooks
		fx.Invoke(startAnalyzer),
		fx.Invoke(startHealthServer),

		// Configure logging
		fx.WithLogger(func() fxevent.Logger {
			return fxevent.NopLogger
		}),
	)

	// Start the application
	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Error("Failed to start application", zap.Error(err))
		os.Exit(1)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down application...")

	// Stop the application
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Stop(stopCtx); err != nil {
		log.Error("Failed to stop application gracefully", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Application stopped successfully")
}

// provideGraphStore selects the graph backend and wraps it with the per-call timeout
func provideGraphStore(cfg *config.Config, client *database.Neo4JClient, log *logger.Logger) (repository.GraphStore, error) {
	var store repository.GraphStore
	switch cfg.Graph.Backend {
	case "memory":
		if cfg.Graph.SeedFile != "" {
			mem, err := database.LoadMemoryGraphStore(cfg.Graph.SeedFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load memory graph: %w", err)
			}
			store = mem
		} else {
			store = database.NewMemoryGraphStore()
		}
	case "neo4j", "":
		store = database.NewNeo4JGraphStore(client, log)
	default:
		return nil, fmt.Errorf("unknown graph backend: %s", cfg.Graph.Backend)
	}
	return database.NewTimeoutGraphStore(store, cfg.Graph.CallTimeout, log), nil
}

func provideFactorCalculator(
	h *domain_service.Heuristics,
	classifier *domain_service.EntityClassifier,
	centrality domain_service.CentralityCalculator,
	cfg *config.AnalysisConfig,
) *domain_service.FactorCalculator {
	return domain_service.NewFactorCalculator(h, classifier, centrality, cfg.ReportingThresholds)
}

func provideRiskFactorEngine(
	calculator *domain_service.FactorCalculator,
	scorer *domain_service.CompositeScorer,
	store repository.GraphStore,
	cfg *config.AnalysisConfig,
	log *logger.Logger,
) *domain_service.RiskFactorEngine {
	return domain_service.NewRiskFactorEngine(calculator, scorer, store, cfg.NeighborhoodLimit, log)
}

func provideProfileBuilder(
	store repository.GraphStore,
	classifier *domain_service.EntityClassifier,
	screening domain_service.ScreeningService,
	cfg *config.AnalysisConfig,
	log *logger.Logger,
) *domain_service.ProfileBuilder {
	return domain_service.NewProfileBuilder(store, classifier, screening, cfg.HistoryLimit, log)
}

func provideDetectors(
	store repository.GraphStore,
	h *domain_service.Heuristics,
	classifier *domain_service.EntityClassifier,
	cfg *config.AnalysisConfig,
	log *logger.Logger,
) app_service.Detectors {
	return app_service.Detectors{
		Cycles:      domain_service.NewCycleDetector(store, cfg, log),
		Shells:      domain_service.NewShellNetworkDetector(store, h, cfg, log),
		Structuring: domain_service.NewStructuringDetector(store, cfg, log),
		Offshore:    domain_service.NewOffshorePatternDetector(store, classifier, cfg, log),
		Flow:        domain_service.NewFlowTracer(store, classifier, h, cfg, log),
	}
}

func provideRequestProcessor(
	analysis domain_service.AnalysisService,
	consumer *messaging.NATSConsumer,
	cfg *config.Config,
	log *logger.Logger,
) *app_service.RequestProcessor {
	return app_service.NewRequestProcessor(analysis, consumer, cfg.App.WorkerPoolSize, log)
}

// startAnalyzer connects the graph backend and NATS and starts the worker pool
func startAnalyzer(
	lifecycle fx.Lifecycle,
	consumer *messaging.NATSConsumer,
	processor *app_service.RequestProcessor,
	log *zap.Logger,
	cfg *config.Config,
	neo4jClient *database.Neo4JClient,
) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting analyzer...")

			if cfg.Graph.Backend != "memory" {
				log.Info("Connecting to Neo4J database")
				if err := neo4jClient.Connect(ctx); err != nil {
					return fmt.Errorf("failed to connect to Neo4J: %w", err)
				}
				log.Info("Successfully connected to Neo4J database")
			}

			log.Info("NATS Configuration",
				zap.String("url", cfg.NATS.URL),
				zap.String("stream_name", cfg.NATS.StreamName),
				zap.String("subject_prefix", cfg.NATS.SubjectPrefix),
				zap.Bool("enabled", cfg.NATS.Enabled),
			)

			if err := consumer.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}

			go func() {
				defer close(done)
				processor.Run(runCtx, consumer.GetMessageChannel())
			}()
			if cfg.Health.Interval > 0 {
				go metrics.StartRuntimeCollector(runCtx, cfg.Health.Interval)
			}

			log.Info("Analyzer started successfully",
				zap.String("graph_backend", cfg.Graph.Backend),
				zap.Int("workers", cfg.App.WorkerPoolSize))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping analyzer...")
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				log.Warn("Timed out waiting for analysis workers")
			}
			if err := neo4jClient.Close(ctx); err != nil {
				log.Error("Failed to close Neo4J connection", zap.Error(err))
			}
			return consumer.Disconnect()
		},
	})
}

// startHealthServer starts the health check and metrics server
func startHealthServer(
	lifecycle fx.Lifecycle,
	cfg *config.Config,
	store repository.GraphStore,
	consumer *messaging.NATSConsumer,
	logger *logger.Logger,
) {
	var server *http.Server

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting health server...", zap.Int("port", cfg.App.HTTPPort))

			mux := http.NewServeMux()
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				checkCtx, cancel := context.WithTimeout(r.Context(), cfg.Health.Timeout)
				defer cancel()

				status := map[string]string{"status": "ok", "graph": "ok", "nats": "disabled"}
				code := http.StatusOK
				if err := store.Ping(checkCtx); err != nil {
					status["status"] = "degraded"
					status["graph"] = err.Error()
					code = http.StatusServiceUnavailable
				}
				if cfg.NATS.Enabled {
					status["nats"] = "ok"
					if !consumer.IsConnected() {
						status["status"] = "degraded"
						status["nats"] = "disconnected"
						code = http.StatusServiceUnavailable
					}
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(code)
				json.NewEncoder(w).Encode(status)
			})
			if cfg.Metrics.Enabled {
				mux.Handle("/metrics", metrics.Handler())
			}

			server = &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.App.HTTPPort),
				Handler: mux,
			}

			// Start server in background
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("Health server error", zap.Error(err))
				}
			}()

			logger.Info("Health server started successfully")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping health server...")
			if server == nil {
				return nil
			}
			return server.Shutdown(ctx)
		},
	})
}
