package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/repository"
	domain_service "aml-graph-analyzer/internal/domain/service"
	"aml-graph-analyzer/internal/infrastructure/config"
	"aml-graph-analyzer/internal/infrastructure/database"
	"aml-graph-analyzer/internal/infrastructure/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(sender, receiver string, txType entity.TransactionType, amount int64, ts int64) entity.Transaction {
	return entity.Transaction{
		Sender:    sender,
		Receiver:  receiver,
		Type:      txType,
		Amount:    decimal.NewFromInt(amount),
		Timestamp: ts,
	}
}

// 2024-01-01 00:00:00 UTC
const t0 = int64(1704067200)

func launderingGraph() *database.MemoryGraphStore {
	return database.NewMemoryGraphStore(
		// circular flow through A
		tx("A", "B", entity.TransactionTypeTransfer, 20000, t0),
		tx("B", "C", entity.TransactionTypeTransfer, 15000, t0+3600),
		tx("C", "A", entity.TransactionTypeTransfer, 12000, t0+7200),
		// layering onward from C
		tx("C", "D", entity.TransactionTypeTransfer, 11000, t0+7300),
		// offshore and shell hops
		tx("A", "KY_HOLDING_1", entity.TransactionTypeTransfer, 120000, t0+8000),
		tx("KY_HOLDING_1", "E", entity.TransactionTypeTransfer, 110000, t0+9000),
		// cash structuring
		tx("A", "M_ATM", entity.TransactionTypeCashOut, 9500, t0+10000),
		tx("A", "M_ATM", entity.TransactionTypeCashOut, 9600, t0+20000),
		tx("A", "M_ATM", entity.TransactionTypeCashOut, 9700, t0+30000),
	)
}

func newTestAnalysisService(store repository.GraphStore, mutate func(cfg *config.Config)) domain_service.AnalysisService {
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	return BuildAnalysisService(store, cfg, logger.NewNop())
}

// flakyStore fails or stalls selected calls of an otherwise working store
type flakyStore struct {
	repository.GraphStore
	historyErr error
	cyclesErr  error
	stallShell <-chan struct{}
}

func (s *flakyStore) GetAccountHistory(ctx context.Context, accountID string, limit int) ([]entity.Transaction, error) {
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	return s.GraphStore.GetAccountHistory(ctx, accountID, limit)
}

func (s *flakyStore) FindCycles(ctx context.Context, accountID string, minAmount decimal.Decimal, maxLength, limit int) ([]entity.Path, error) {
	if s.cyclesErr != nil {
		return nil, s.cyclesErr
	}
	return s.GraphStore.FindCycles(ctx, accountID, minAmount, maxLength, limit)
}

func (s *flakyStore) FindChains2Hop(ctx context.Context, q repository.ChainQuery) ([]entity.Path, error) {
	if s.stallShell != nil {
		select {
		case <-s.stallShell:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.GraphStore.FindChains2Hop(ctx, q)
}

func assertFullyPopulated(t *testing.T, a *entity.ComprehensiveAnalysis) {
	t.Helper()
	assert.NotEmpty(t, a.AnalysisID)
	assert.NotNil(t, a.Profile)
	require.NotNil(t, a.Assessment)
	assert.Len(t, a.Assessment.Factors, len(entity.FactorOrder))
	assert.NotNil(t, a.Cycles)
	assert.NotNil(t, a.ShellNetworks)
	assert.NotNil(t, a.Structuring)
	assert.NotNil(t, a.OffshoreFlows)
	require.NotNil(t, a.FlowTrace)
	assert.NotNil(t, a.FlowTrace.Paths)
	assert.NotNil(t, a.OverallAssessment.KeyConcerns)
	assert.NotEmpty(t, a.OverallAssessment.RecommendedActions)
	assert.Len(t, a.Branches, 6)
}

func TestComprehensiveAnalysis_Complete(t *testing.T) {
	analysis := newTestAnalysisService(launderingGraph(), nil)

	result := analysis.ComprehensiveAnalysis(context.Background(), "A")

	assertFullyPopulated(t, result)
	assert.Equal(t, entity.AnalysisStatusComplete, result.Status)
	for branch, status := range result.Branches {
		assert.Equal(t, entity.BranchStatusOK, status, branch)
	}

	require.Len(t, result.Cycles, 1)
	assert.Equal(t, []string{"A", "B", "C", "A"}, result.Cycles[0].Accounts)

	// A->KY_HOLDING_1->E and C->A->KY_HOLDING_1
	require.Len(t, result.ShellNetworks, 2)
	assert.Equal(t, "KY_HOLDING_1", result.ShellNetworks[0].Intermediary)
	assert.Equal(t, "A", result.ShellNetworks[1].Intermediary)

	assert.True(t, result.Structuring.IsStructuring)
	assert.Equal(t, 3, result.Structuring.CashOutCount)

	require.Len(t, result.OffshoreFlows, 1)
	assert.Equal(t, entity.OffshoreFlowOutbound, result.OffshoreFlows[0].FlowType)

	assert.NotEmpty(t, result.FlowTrace.Paths)
	for _, p := range result.FlowTrace.Paths {
		assert.GreaterOrEqual(t, p.Depth, 2)
		assert.Equal(t, "A", p.Accounts[0])
	}

	assert.Equal(t, result.Assessment.RiskLevel, result.OverallAssessment.RiskLevel)
	assert.Contains(t, result.OverallAssessment.KeyConcerns, "Circular transaction flows detected: 1")
	assert.Contains(t, result.OverallAssessment.KeyConcerns, "Cash structuring behavior detected")
}

func TestComprehensiveAnalysis_Unavailable(t *testing.T) {
	store := launderingGraph()
	store.SetUnavailable(true)
	analysis := newTestAnalysisService(store, nil)

	result := analysis.ComprehensiveAnalysis(context.Background(), "A")

	assertFullyPopulated(t, result)
	assert.Equal(t, entity.AnalysisStatusUnavailable, result.Status)
	for branch, status := range result.Branches {
		assert.Equal(t, entity.BranchStatusUnavailable, status, branch)
	}
	assert.Equal(t, entity.RiskLevelLow, result.Assessment.RiskLevel)
	assert.Equal(t, 0.0, result.Assessment.CompositeScore)
	assert.Contains(t, result.OverallAssessment.RecommendedActions, "Re-run analysis once all data sources are available")

	data, err := json.Marshal(result)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"profile", "risk_assessment", "cycles", "shell_networks", "structuring", "offshore_flows", "flow_trace", "overall_assessment"} {
		assert.NotNil(t, fields[key], key)
	}
}

func TestComprehensiveAnalysis_DetectorFailure(t *testing.T) {
	store := &flakyStore{GraphStore: launderingGraph(), cyclesErr: errors.New("query failed")}
	analysis := newTestAnalysisService(store, nil)

	result := analysis.ComprehensiveAnalysis(context.Background(), "A")

	assertFullyPopulated(t, result)
	assert.Equal(t, entity.AnalysisStatusDegraded, result.Status)
	assert.Equal(t, entity.BranchStatusFailed, result.Branches[entity.BranchCycles])
	assert.Equal(t, entity.BranchStatusOK, result.Branches[entity.BranchShellNetworks])
	assert.Empty(t, result.Cycles)
	assert.NotEmpty(t, result.ShellNetworks)
}

func TestComprehensiveAnalysis_HistoryFailure(t *testing.T) {
	store := &flakyStore{GraphStore: launderingGraph(), historyErr: repository.ErrUnavailable}
	analysis := newTestAnalysisService(store, nil)

	result := analysis.ComprehensiveAnalysis(context.Background(), "A")

	assertFullyPopulated(t, result)
	assert.Equal(t, entity.AnalysisStatusDegraded, result.Status)
	assert.Equal(t, entity.BranchStatusFailed, result.Branches[entity.BranchRiskScore])
	assert.Equal(t, entity.BranchStatusFailed, result.Branches[entity.BranchStructuring])
	assert.Equal(t, entity.BranchStatusFailed, result.Branches[entity.BranchOffshore])
	assert.Equal(t, entity.BranchStatusOK, result.Branches[entity.BranchCycles])
	assert.Equal(t, 0, result.Profile.TransactionCount)
}

func TestComprehensiveAnalysis_Deadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	store := &flakyStore{GraphStore: launderingGraph(), stallShell: release}
	analysis := newTestAnalysisService(store, func(cfg *config.Config) {
		cfg.Analysis.RequestTimeout = 200 * time.Millisecond
	})

	start := time.Now()
	result := analysis.ComprehensiveAnalysis(context.Background(), "A")

	assert.Less(t, time.Since(start), 5*time.Second)
	assertFullyPopulated(t, result)
	assert.Equal(t, entity.AnalysisStatusDegraded, result.Status)
	assert.Equal(t, entity.BranchStatusUnavailable, result.Branches[entity.BranchShellNetworks])
	assert.Empty(t, result.ShellNetworks)
}

func TestAssessRisk(t *testing.T) {
	analysis := newTestAnalysisService(launderingGraph(), nil)

	assessment, err := analysis.AssessRisk(context.Background(), "A")
	require.NoError(t, err)
	assert.Len(t, assessment.Factors, len(entity.FactorOrder))
	assert.Equal(t, domain_service.DetermineRiskLevel(assessment.CompositeScore), assessment.RiskLevel)

	store := launderingGraph()
	store.SetUnavailable(true)
	_, err = newTestAnalysisService(store, nil).AssessRisk(context.Background(), "A")
	assert.ErrorIs(t, err, repository.ErrUnavailable)
}

// historyCounter counts history fetches of an otherwise working store
type historyCounter struct {
	repository.GraphStore
	mu    sync.Mutex
	calls int
}

func (s *historyCounter) GetAccountHistory(ctx context.Context, accountID string, limit int) ([]entity.Transaction, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.GraphStore.GetAccountHistory(ctx, accountID, limit)
}

func TestAssessRisk_ProfileAndFactorsShareHistory(t *testing.T) {
	store := &historyCounter{GraphStore: launderingGraph()}

	assessment, err := newTestAnalysisService(store, nil).AssessRisk(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)
	require.NotNil(t, assessment.Profile)
	assert.Equal(t, 6, assessment.Profile.TransactionCount)
}

func TestTraceFlow(t *testing.T) {
	analysis := newTestAnalysisService(launderingGraph(), nil)

	trace, err := analysis.TraceFlow(context.Background(), "A", 3, decimal.NewFromInt(10000))
	require.NoError(t, err)
	assert.Equal(t, 3, trace.MaxDepth)
	for _, p := range trace.Paths {
		assert.LessOrEqual(t, p.Depth, 3)
		for _, e := range p.Edges {
			assert.True(t, e.Amount.GreaterThanOrEqual(decimal.NewFromInt(10000)))
		}
	}
}

func TestScanPatterns(t *testing.T) {
	store := &flakyStore{GraphStore: launderingGraph(), cyclesErr: errors.New("query failed")}
	scan := newTestAnalysisService(store, nil).ScanPatterns(context.Background())

	assert.Empty(t, scan.Cycles)
	assert.Contains(t, scan.Errors, entity.BranchCycles)
	assert.Len(t, scan.ShellNetworks, 2)
	assert.NotEmpty(t, scan.OffshoreFlows)
	assert.NotNil(t, scan.Structuring)
}

func TestScanPatterns_UnavailableStoreCancelsRemainingScans(t *testing.T) {
	store := &flakyStore{
		GraphStore: launderingGraph(),
		cyclesErr:  fmt.Errorf("%w: connection refused", repository.ErrUnavailable),
		stallShell: make(chan struct{}),
	}
	analysis := newTestAnalysisService(store, nil)

	done := make(chan *domain_service.PatternScan, 1)
	go func() { done <- analysis.ScanPatterns(context.Background()) }()

	select {
	case scan := <-done:
		assert.Contains(t, scan.Errors, entity.BranchCycles)
		assert.Contains(t, scan.Errors, entity.BranchShellNetworks)
		assert.Empty(t, scan.ShellNetworks)
	case <-time.After(5 * time.Second):
		t.Fatal("shell scan was not cancelled after the store became unavailable")
	}
}

func TestGraphSummary(t *testing.T) {
	agg, err := newTestAnalysisService(launderingGraph(), nil).GraphSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), agg.TotalTransactions)
	assert.Equal(t, int64(7), agg.TotalAccounts)
}

func TestHighRiskAccounts(t *testing.T) {
	suspects, err := newTestAnalysisService(launderingGraph(), nil).HighRiskAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, suspects, 4)
	assert.Equal(t, "A", suspects[0].AccountID)
	assert.True(t, decimal.NewFromInt(140000).Equal(suspects[0].TotalAmount))
	assert.Equal(t, "KY_HOLDING_1", suspects[1].AccountID)
	assert.Equal(t, "C", suspects[2].AccountID)
	assert.Equal(t, "B", suspects[3].AccountID)

	store := launderingGraph()
	store.SetUnavailable(true)
	_, err = newTestAnalysisService(store, nil).HighRiskAccounts(context.Background())
	assert.ErrorIs(t, err, repository.ErrUnavailable)
}
