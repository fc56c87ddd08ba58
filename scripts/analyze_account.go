//go:build ignore

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	app_service "aml-graph-analyzer/internal/application/service"
	"aml-graph-analyzer/internal/infrastructure/config"
	"aml-graph-analyzer/internal/infrastructure/database"
	"aml-graph-analyzer/internal/infrastructure/logger"

	"go.uber.org/zap"
)

func main() {
	accountID := flag.String("account", "", "account id to analyze")
	depth := flag.Int("depth", 0, "flow trace depth override")
	flag.Parse()

	// Setup logger
	log, err := logger.NewLogger("info")
	if err != nil {
		panic(err)
	}
	log = log.WithComponent("analyze-account-script")

	if *accountID == "" {
		log.Fatal("Missing -account flag")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}
	if *depth > 0 {
		cfg.Analysis.FlowMaxDepth = *depth
	}

	// Create Neo4j client
	neo4jClient := database.NewNeo4JClient(&cfg.Neo4J, log)

	ctx := context.Background()
	if err := neo4jClient.Connect(ctx); err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer neo4jClient.Close(ctx)

	store := database.NewTimeoutGraphStore(database.NewNeo4JGraphStore(neo4jClient, log), cfg.Graph.CallTimeout, log)
	analysis := app_service.BuildAnalysisService(store, cfg, log)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	log.Info("Running comprehensive analysis", zap.String("account_id", *accountID))
	result := analysis.ComprehensiveAnalysis(ctxWithTimeout, *accountID)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		log.Fatal("Failed to encode analysis", zap.Error(err))
	}

	fmt.Fprintf(os.Stderr, "status=%s risk_level=%s risk_score=%.3f\n",
		result.Status, result.OverallAssessment.RiskLevel, result.OverallAssessment.RiskScore)
}
