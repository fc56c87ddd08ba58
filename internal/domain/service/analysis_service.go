package service

import (
	"context"

	"aml-graph-analyzer/internal/domain/entity"

	"github.com/shopspring/decimal"
)

// PatternScan holds the results of the graph-wide pattern detectors
type PatternScan struct {
	Cycles        []entity.CycleFinding        `json:"cycles"`
	ShellNetworks []entity.ShellNetworkFinding `json:"shell_networks"`
	Structuring   []entity.StructuringFinding  `json:"structuring"`
	OffshoreFlows []entity.OffshoreFinding     `json:"offshore_flows"`
	Errors        map[string]string            `json:"errors"`
}

// AnalysisService defines the interface for account risk analysis
type AnalysisService interface {
	// ComprehensiveAnalysis runs scoring, pattern detection and flow tracing for one account.
	// It never fails; degraded branches are reported in the result status.
	ComprehensiveAnalysis(ctx context.Context, accountID string) *entity.ComprehensiveAnalysis

	// AssessRisk computes the seven-factor risk assessment of an account
	AssessRisk(ctx context.Context, accountID string) (*entity.RiskAssessment, error)

	// TraceFlow follows money forward from an account
	TraceFlow(ctx context.Context, accountID string, maxDepth int, threshold decimal.Decimal) (*entity.FlowTrace, error)

	// ScanPatterns runs the cycle, shell network, structuring and offshore detectors over the whole graph
	ScanPatterns(ctx context.Context) *PatternScan

	// GraphSummary returns dashboard-level counts
	GraphSummary(ctx context.Context) (*entity.GraphAggregate, error)

	// HighRiskAccounts ranks accounts by high-value outflow and fraud-labelled transactions
	HighRiskAccounts(ctx context.Context) ([]entity.SuspectAccount, error)
}
