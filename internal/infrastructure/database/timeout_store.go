package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/repository"
	"aml-graph-analyzer/internal/infrastructure/logger"
	"aml-graph-analyzer/internal/infrastructure/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TimeoutGraphStore bounds every call to the wrapped store with a timeout and records call metrics.
// A call that exceeds its own timeout is reported as repository.ErrUnavailable.
type TimeoutGraphStore struct {
	next    repository.GraphStore
	timeout time.Duration
	logger  *logger.Logger
}

// NewTimeoutGraphStore wraps a graph store with a per-call timeout
func NewTimeoutGraphStore(next repository.GraphStore, timeout time.Duration, logger *logger.Logger) repository.GraphStore {
	return &TimeoutGraphStore{
		next:    next,
		timeout: timeout,
		logger:  logger.WithComponent("graph-store"),
	}
}

// call runs fn under the per-call timeout and maps the outcome to metrics
func (s *TimeoutGraphStore) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	metrics.GraphCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}

	reason := "error"
	switch {
	case errors.Is(err, repository.ErrUnavailable):
		reason = "unavailable"
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil:
		reason = "timeout"
		err = fmt.Errorf("%w: %s timed out after %s", repository.ErrUnavailable, op, s.timeout)
	}
	metrics.GraphCallErrorsTotal.WithLabelValues(op, reason).Inc()
	s.logger.Debug("Graph store call failed",
		zap.String("operation", op),
		zap.String("reason", reason),
		zap.Error(err))
	return err
}

// GetAccountHistory returns the most recent transactions in either direction
func (s *TimeoutGraphStore) GetAccountHistory(ctx context.Context, accountID string, limit int) (txs []entity.Transaction, err error) {
	err = s.call(ctx, "get_account_history", func(ctx context.Context) error {
		txs, err = s.next.GetAccountHistory(ctx, accountID, limit)
		return err
	})
	return txs, err
}

// GetNeighborhood returns the bounded subgraph around an account
func (s *TimeoutGraphStore) GetNeighborhood(ctx context.Context, accountID string, limit int) (nb *entity.Neighborhood, err error) {
	err = s.call(ctx, "get_neighborhood", func(ctx context.Context) error {
		nb, err = s.next.GetNeighborhood(ctx, accountID, limit)
		return err
	})
	return nb, err
}

// FindCycles returns closed paths whose every hop meets minAmount
func (s *TimeoutGraphStore) FindCycles(ctx context.Context, accountID string, minAmount decimal.Decimal, maxLength, limit int) (paths []entity.Path, err error) {
	err = s.call(ctx, "find_cycles", func(ctx context.Context) error {
		paths, err = s.next.FindCycles(ctx, accountID, minAmount, maxLength, limit)
		return err
	})
	return paths, err
}

// FindChains2Hop returns candidate two-hop chains
func (s *TimeoutGraphStore) FindChains2Hop(ctx context.Context, q repository.ChainQuery) (paths []entity.Path, err error) {
	err = s.call(ctx, "find_chains_2hop", func(ctx context.Context) error {
		paths, err = s.next.FindChains2Hop(ctx, q)
		return err
	})
	return paths, err
}

// FindLargeTransfers returns the largest transactions above minAmount
func (s *TimeoutGraphStore) FindLargeTransfers(ctx context.Context, minAmount decimal.Decimal, limit int) (txs []entity.Transaction, err error) {
	err = s.call(ctx, "find_large_transfers", func(ctx context.Context) error {
		txs, err = s.next.FindLargeTransfers(ctx, minAmount, limit)
		return err
	})
	return txs, err
}

// FindCashIntensiveAccounts returns accounts with at least minOperations cash operations
func (s *TimeoutGraphStore) FindCashIntensiveAccounts(ctx context.Context, minOperations, limit int) (accounts []string, err error) {
	err = s.call(ctx, "find_cash_intensive_accounts", func(ctx context.Context) error {
		accounts, err = s.next.FindCashIntensiveAccounts(ctx, minOperations, limit)
		return err
	})
	return accounts, err
}

// FindHighRiskAccounts returns suspect accounts ranked by suspicion score
func (s *TimeoutGraphStore) FindHighRiskAccounts(ctx context.Context, minAmount decimal.Decimal, limit int) (accounts []entity.SuspectAccount, err error) {
	err = s.call(ctx, "find_high_risk_accounts", func(ctx context.Context) error {
		accounts, err = s.next.FindHighRiskAccounts(ctx, minAmount, limit)
		return err
	})
	return accounts, err
}

// GetOutgoing returns the outgoing transactions of an account that meet minAmount
func (s *TimeoutGraphStore) GetOutgoing(ctx context.Context, accountID string, minAmount decimal.Decimal, limit int) (txs []entity.Transaction, err error) {
	err = s.call(ctx, "get_outgoing", func(ctx context.Context) error {
		txs, err = s.next.GetOutgoing(ctx, accountID, minAmount, limit)
		return err
	})
	return txs, err
}

// Aggregate returns dashboard-level counts
func (s *TimeoutGraphStore) Aggregate(ctx context.Context) (agg *entity.GraphAggregate, err error) {
	err = s.call(ctx, "aggregate", func(ctx context.Context) error {
		agg, err = s.next.Aggregate(ctx)
		return err
	})
	return agg, err
}

// Ping verifies connectivity
func (s *TimeoutGraphStore) Ping(ctx context.Context) error {
	return s.call(ctx, "ping", s.next.Ping)
}
