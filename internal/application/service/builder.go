package service

import (
	"aml-graph-analyzer/internal/domain/repository"
	"aml-graph-analyzer/internal/domain/service"
	"aml-graph-analyzer/internal/infrastructure/config"
	"aml-graph-analyzer/internal/infrastructure/graph"
	"aml-graph-analyzer/internal/infrastructure/logger"
)

// BuildAnalysisService wires the analytics core over a graph store without a DI container.
// Operator scripts and tests use it; the service binary wires the same graph through fx.
func BuildAnalysisService(store repository.GraphStore, cfg *config.Config, log *logger.Logger) service.AnalysisService {
	heuristics := service.NewHeuristics(&cfg.Heuristics)
	classifier := service.NewEntityClassifier(heuristics)
	screening := service.NewKeywordScreening(heuristics)

	calculator := service.NewFactorCalculator(heuristics, classifier, graph.NewCentralityCalculator(), cfg.Analysis.ReportingThresholds)
	engine := service.NewRiskFactorEngine(calculator, service.NewCompositeScorer(), store, cfg.Analysis.NeighborhoodLimit, log)
	profiles := service.NewProfileBuilder(store, classifier, screening, cfg.Analysis.HistoryLimit, log)

	detectors := Detectors{
		Cycles:      service.NewCycleDetector(store, &cfg.Analysis, log),
		Shells:      service.NewShellNetworkDetector(store, heuristics, &cfg.Analysis, log),
		Structuring: service.NewStructuringDetector(store, &cfg.Analysis, log),
		Offshore:    service.NewOffshorePatternDetector(store, classifier, &cfg.Analysis, log),
		Flow:        service.NewFlowTracer(store, classifier, heuristics, &cfg.Analysis, log),
	}

	return NewAnalysisOrchestrator(store, profiles, engine, detectors, &cfg.Analysis, log)
}
