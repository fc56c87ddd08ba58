//go:build ignore

package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	app_service "aml-graph-analyzer/internal/application/service"
	"aml-graph-analyzer/internal/domain/entity"
	domain_service "aml-graph-analyzer/internal/domain/service"
	"aml-graph-analyzer/internal/infrastructure/config"
	"aml-graph-analyzer/internal/infrastructure/database"
	"aml-graph-analyzer/internal/infrastructure/logger"

	"go.uber.org/zap"
)

func main() {
	// Setup logger
	log, err := logger.NewLogger("info")
	if err != nil {
		panic(err)
	}
	log = log.WithComponent("scan-patterns-script")

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	// Create Neo4j client
	neo4jClient := database.NewNeo4JClient(&cfg.Neo4J, log)

	ctx := context.Background()
	if err := neo4jClient.Connect(ctx); err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer neo4jClient.Close(ctx)

	// Global scans run longer queries than per-account analysis
	store := database.NewTimeoutGraphStore(database.NewNeo4JGraphStore(neo4jClient, log), 2*time.Minute, log)
	analysis := app_service.BuildAnalysisService(store, cfg, log)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	summary, err := analysis.GraphSummary(ctxWithTimeout)
	if err != nil {
		log.Fatal("Failed to get graph summary", zap.Error(err))
	}
	log.Info("Scanning graph",
		zap.Int64("accounts", summary.TotalAccounts),
		zap.Int64("transactions", summary.TotalTransactions))

	scan := analysis.ScanPatterns(ctxWithTimeout)

	suspects, err := analysis.HighRiskAccounts(ctxWithTimeout)
	if err != nil {
		log.Warn("Failed to rank high risk accounts", zap.Error(err))
		suspects = []entity.SuspectAccount{}
	}

	log.Info("Scan complete",
		zap.Int("cycles", len(scan.Cycles)),
		zap.Int("shell_networks", len(scan.ShellNetworks)),
		zap.Int("structuring", len(scan.Structuring)),
		zap.Int("offshore_flows", len(scan.OffshoreFlows)),
		zap.Int("suspects", len(suspects)),
		zap.Int("failed_detectors", len(scan.Errors)))

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	report := struct {
		*domain_service.PatternScan
		Suspects []entity.SuspectAccount `json:"suspects"`
	}{scan, suspects}
	if err := encoder.Encode(report); err != nil {
		log.Fatal("Failed to encode scan", zap.Error(err))
	}
}
