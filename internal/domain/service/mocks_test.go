package service

import (
	"context"
	"time"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/repository"
	"aml-graph-analyzer/internal/infrastructure/config"
	"aml-graph-analyzer/internal/infrastructure/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

type MockGraphStore struct {
	mock.Mock
}

func (m *MockGraphStore) GetAccountHistory(ctx context.Context, accountID string, limit int) ([]entity.Transaction, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Transaction), args.Error(1)
}

func (m *MockGraphStore) GetNeighborhood(ctx context.Context, accountID string, limit int) (*entity.Neighborhood, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Neighborhood), args.Error(1)
}

func (m *MockGraphStore) FindCycles(ctx context.Context, accountID string, minAmount decimal.Decimal, maxLength int, limit int) ([]entity.Path, error) {
	args := m.Called(ctx, accountID, minAmount, maxLength, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Path), args.Error(1)
}

func (m *MockGraphStore) FindChains2Hop(ctx context.Context, q repository.ChainQuery) ([]entity.Path, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Path), args.Error(1)
}

func (m *MockGraphStore) FindHighRiskAccounts(ctx context.Context, minAmount decimal.Decimal, limit int) ([]entity.SuspectAccount, error) {
	args := m.Called(ctx, minAmount, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.SuspectAccount), args.Error(1)
}

func (m *MockGraphStore) FindLargeTransfers(ctx context.Context, minAmount decimal.Decimal, limit int) ([]entity.Transaction, error) {
	args := m.Called(ctx, minAmount, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Transaction), args.Error(1)
}

func (m *MockGraphStore) FindCashIntensiveAccounts(ctx context.Context, minOperations int, limit int) ([]string, error) {
	args := m.Called(ctx, minOperations, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGraphStore) GetOutgoing(ctx context.Context, accountID string, minAmount decimal.Decimal, limit int) ([]entity.Transaction, error) {
	args := m.Called(ctx, accountID, minAmount, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Transaction), args.Error(1)
}

func (m *MockGraphStore) Aggregate(ctx context.Context) (*entity.GraphAggregate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.GraphAggregate), args.Error(1)
}

func (m *MockGraphStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type stubCentrality struct {
	scores CentralityScores
	panics bool
}

func (s stubCentrality) Compute(_ *entity.Neighborhood, _ string) (CentralityScores, bool) {
	if s.panics {
		panic("centrality blew up")
	}
	return s.scores, true
}

// --- Helpers ---

// 2024-01-01 00:00:00 UTC, a Monday
var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()

func newTx(sender, receiver string, txType entity.TransactionType, amount int64, ts int64) entity.Transaction {
	return entity.Transaction{
		Sender:    sender,
		Receiver:  receiver,
		Type:      txType,
		Amount:    decimal.NewFromInt(amount),
		Timestamp: ts,
	}
}

func transfer(sender, receiver string, amount int64, ts int64) entity.Transaction {
	return newTx(sender, receiver, entity.TransactionTypeTransfer, amount, ts)
}

func path(edges ...entity.Transaction) entity.Path {
	p := entity.Path{Edges: edges}
	if len(edges) > 0 {
		p.Accounts = append(p.Accounts, edges[0].Sender)
	}
	for _, e := range edges {
		p.Accounts = append(p.Accounts, e.Receiver)
	}
	return p
}

func testAnalysisConfig() *config.AnalysisConfig {
	cfg := config.Default().Analysis
	return &cfg
}

func newTestCalculator(centrality CentralityCalculator) *FactorCalculator {
	h := DefaultHeuristics()
	return NewFactorCalculator(h, NewEntityClassifier(h), centrality, []float64{10000, 5000, 3000})
}

func nopLogger() *logger.Logger {
	return logger.NewNop()
}

func evidenceKinds(f entity.RiskFactor) []entity.EvidenceKind {
	kinds := make([]entity.EvidenceKind, 0, len(f.Evidence))
	for _, ev := range f.Evidence {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}
