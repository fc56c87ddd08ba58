package repository

import (
	"context"
	"errors"

	"aml-graph-analyzer/internal/domain/entity"

	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when the graph store cannot be reached or timed out
var ErrUnavailable = errors.New("graph store unavailable")

// ChainQuery selects A->B->C chains where at least one hop exceeds MinAmount
// and both hops happen within MaxTimeGap seconds of each other
type ChainQuery struct {
	// AccountID keeps chains the account takes part in; empty searches the whole graph
	AccountID string
	// Keywords are upper-case; when set, at least one account id on the chain must contain one
	Keywords   []string
	MinAmount  decimal.Decimal
	MaxTimeGap int64
	Limit      int
}

// GraphStore defines the read-only graph queries consumed by the analytics core.
// Every method returns an empty, non-nil result when nothing matches.
type GraphStore interface {
	// GetAccountHistory retrieves the most recent transactions touching an account, newest first
	GetAccountHistory(ctx context.Context, accountID string, limit int) ([]entity.Transaction, error)

	// GetNeighborhood retrieves the local subgraph around an account
	GetNeighborhood(ctx context.Context, accountID string, limit int) (*entity.Neighborhood, error)

	// FindCycles finds directed cycles of 2..maxLength hops where every edge meets minAmount.
	// An empty accountID searches the whole graph.
	FindCycles(ctx context.Context, accountID string, minAmount decimal.Decimal, maxLength int, limit int) ([]entity.Path, error)

	// FindChains2Hop finds two-hop chains matching q, largest total first
	FindChains2Hop(ctx context.Context, q ChainQuery) ([]entity.Path, error)

	// FindLargeTransfers retrieves transactions whose amount exceeds minAmount, largest first
	FindLargeTransfers(ctx context.Context, minAmount decimal.Decimal, limit int) ([]entity.Transaction, error)

	// FindCashIntensiveAccounts retrieves accounts with at least minOperations cash operations
	FindCashIntensiveAccounts(ctx context.Context, minOperations int, limit int) ([]string, error)

	// FindHighRiskAccounts ranks senders of transactions above minAmount or labelled as fraud
	// by total/1e6 + 0.5 per fraud-labelled transaction, highest first
	FindHighRiskAccounts(ctx context.Context, minAmount decimal.Decimal, limit int) ([]entity.SuspectAccount, error)

	// GetOutgoing retrieves outgoing transactions of an account whose amount meets minAmount
	GetOutgoing(ctx context.Context, accountID string, minAmount decimal.Decimal, limit int) ([]entity.Transaction, error)

	// Aggregate retrieves dashboard-level counts
	Aggregate(ctx context.Context) (*entity.GraphAggregate, error)

	// Ping checks connectivity
	Ping(ctx context.Context) error
}
