package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/repository"

	"github.com/shopspring/decimal"
)

// MemoryGraphStore is an in-process GraphStore over a transaction list
type MemoryGraphStore struct {
	mu          sync.RWMutex
	edges       []entity.Transaction
	outgoing    map[string][]int
	incoming    map[string][]int
	accounts    map[string]struct{}
	unavailable bool
}

// NewMemoryGraphStore creates an in-memory graph store holding the given transactions
func NewMemoryGraphStore(txs ...entity.Transaction) *MemoryGraphStore {
	s := &MemoryGraphStore{
		outgoing: make(map[string][]int),
		incoming: make(map[string][]int),
		accounts: make(map[string]struct{}),
	}
	s.Add(txs...)
	return s
}

// LoadMemoryGraphStore creates an in-memory graph store from a JSON array of transactions
func LoadMemoryGraphStore(path string) (*MemoryGraphStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var txs []entity.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}
	return NewMemoryGraphStore(txs...), nil
}

// Add appends transactions to the graph
func (s *MemoryGraphStore) Add(txs ...entity.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		idx := len(s.edges)
		s.edges = append(s.edges, tx)
		s.outgoing[tx.Sender] = append(s.outgoing[tx.Sender], idx)
		s.incoming[tx.Receiver] = append(s.incoming[tx.Receiver], idx)
		s.accounts[tx.Sender] = struct{}{}
		s.accounts[tx.Receiver] = struct{}{}
	}
}

// SetUnavailable simulates a connectivity outage
func (s *MemoryGraphStore) SetUnavailable(unavailable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = unavailable
}

func (s *MemoryGraphStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.unavailable {
		return repository.ErrUnavailable
	}
	return nil
}

// touching returns the edges incident to an account, self-loops once
func (s *MemoryGraphStore) touching(accountID string) []entity.Transaction {
	txs := make([]entity.Transaction, 0, len(s.outgoing[accountID])+len(s.incoming[accountID]))
	for _, idx := range s.outgoing[accountID] {
		txs = append(txs, s.edges[idx])
	}
	for _, idx := range s.incoming[accountID] {
		if s.edges[idx].Sender == accountID {
			continue
		}
		txs = append(txs, s.edges[idx])
	}
	return txs
}

// GetAccountHistory returns the most recent transactions in either direction
func (s *MemoryGraphStore) GetAccountHistory(ctx context.Context, accountID string, limit int) ([]entity.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	txs := s.touching(accountID)
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Timestamp > txs[j].Timestamp })
	return truncate(txs, limit), nil
}

// GetNeighborhood returns the one-hop subgraph around an account
func (s *MemoryGraphStore) GetNeighborhood(ctx context.Context, accountID string, limit int) (*entity.Neighborhood, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	edges := truncate(s.touching(accountID), limit)
	neighborhood := &entity.Neighborhood{Nodes: make([]string, 0), Edges: edges}
	seen := make(map[string]struct{})
	for _, e := range edges {
		for _, id := range []string{e.Sender, e.Receiver} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				neighborhood.Nodes = append(neighborhood.Nodes, id)
			}
		}
	}
	return neighborhood, nil
}

// FindCycles enumerates simple cycles of 2..maxLength hops whose every edge meets minAmount.
// Global searches report each cycle once, starting at its smallest account id.
func (s *MemoryGraphStore) FindCycles(ctx context.Context, accountID string, minAmount decimal.Decimal, maxLength, limit int) ([]entity.Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	starts := []string{accountID}
	if accountID == "" {
		starts = s.sortedAccounts()
	}

	var cycles []entity.Path
	for _, start := range starts {
		visited := map[string]bool{start: true}
		accounts := []string{start}
		var edges []entity.Transaction

		var walk func(current string)
		walk = func(current string) {
			for _, idx := range s.outgoing[current] {
				tx := s.edges[idx]
				if tx.Amount.LessThan(minAmount) {
					continue
				}
				if tx.Receiver == start {
					if len(edges)+1 >= 2 {
						cycles = append(cycles, entity.Path{
							Accounts: append(append([]string(nil), accounts...), start),
							Edges:    append(append([]entity.Transaction(nil), edges...), tx),
						})
					}
					continue
				}
				if visited[tx.Receiver] || len(edges)+1 >= maxLength {
					continue
				}
				// global search: only walk through accounts ordered after the start
				if accountID == "" && tx.Receiver < start {
					continue
				}
				visited[tx.Receiver] = true
				accounts = append(accounts, tx.Receiver)
				edges = append(edges, tx)
				walk(tx.Receiver)
				edges = edges[:len(edges)-1]
				accounts = accounts[:len(accounts)-1]
				delete(visited, tx.Receiver)
			}
		}
		walk(start)
	}

	sort.SliceStable(cycles, func(i, j int) bool {
		return cycles[i].TotalAmount().GreaterThan(cycles[j].TotalAmount())
	})
	return truncate(cycles, limit), nil
}

// FindChains2Hop returns A->B->C chains with A != C, at least one hop above the minimum,
// both hops within the time gap, restricted to the query's account and keywords
func (s *MemoryGraphStore) FindChains2Hop(ctx context.Context, q repository.ChainQuery) ([]entity.Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var chains []entity.Path
	for _, first := range s.edges {
		for _, idx := range s.outgoing[first.Receiver] {
			second := s.edges[idx]
			if second.Receiver == first.Sender {
				continue
			}
			accounts := []string{first.Sender, first.Receiver, second.Receiver}
			if q.AccountID != "" && !contains(accounts, q.AccountID) {
				continue
			}
			if len(q.Keywords) > 0 && !anyKeyword(accounts, q.Keywords) {
				continue
			}
			if !first.Amount.GreaterThan(q.MinAmount) && !second.Amount.GreaterThan(q.MinAmount) {
				continue
			}
			gap := second.Timestamp - first.Timestamp
			if gap < 0 {
				gap = -gap
			}
			if gap > q.MaxTimeGap {
				continue
			}
			chains = append(chains, entity.Path{
				Accounts: accounts,
				Edges:    []entity.Transaction{first, second},
			})
		}
	}

	sort.SliceStable(chains, func(i, j int) bool {
		return chains[i].TotalAmount().GreaterThan(chains[j].TotalAmount())
	})
	return truncate(chains, q.Limit), nil
}

func contains(accounts []string, accountID string) bool {
	for _, a := range accounts {
		if a == accountID {
			return true
		}
	}
	return false
}

func anyKeyword(accounts []string, keywords []string) bool {
	for _, a := range accounts {
		upper := strings.ToUpper(a)
		for _, kw := range keywords {
			if strings.Contains(upper, kw) {
				return true
			}
		}
	}
	return false
}

// FindLargeTransfers returns the largest transactions above minAmount
func (s *MemoryGraphStore) FindLargeTransfers(ctx context.Context, minAmount decimal.Decimal, limit int) ([]entity.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var txs []entity.Transaction
	for _, tx := range s.edges {
		if tx.Amount.GreaterThan(minAmount) {
			txs = append(txs, tx)
		}
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Amount.GreaterThan(txs[j].Amount) })
	return truncate(txs, limit), nil
}

// FindCashIntensiveAccounts returns accounts with at least minOperations cash operations
func (s *MemoryGraphStore) FindCashIntensiveAccounts(ctx context.Context, minOperations, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, account := range s.sortedAccounts() {
		for _, tx := range s.touching(account) {
			if tx.Type.IsCash() {
				counts[account]++
			}
		}
	}

	accounts := make([]string, 0)
	for account, n := range counts {
		if n >= minOperations {
			accounts = append(accounts, account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		if counts[accounts[i]] != counts[accounts[j]] {
			return counts[accounts[i]] > counts[accounts[j]]
		}
		return accounts[i] < accounts[j]
	})
	return truncate(accounts, limit), nil
}

// FindHighRiskAccounts ranks senders of transactions above minAmount or labelled as fraud
func (s *MemoryGraphStore) FindHighRiskAccounts(ctx context.Context, minAmount decimal.Decimal, limit int) ([]entity.SuspectAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	bySender := make(map[string]*entity.SuspectAccount)
	for _, tx := range s.edges {
		if !tx.Amount.GreaterThan(minAmount) && !tx.IsFraud {
			continue
		}
		suspect, ok := bySender[tx.Sender]
		if !ok {
			suspect = &entity.SuspectAccount{AccountID: tx.Sender, TotalAmount: decimal.Zero}
			bySender[tx.Sender] = suspect
		}
		suspect.TotalAmount = suspect.TotalAmount.Add(tx.Amount)
		suspect.TransactionCount++
		if tx.IsFraud {
			suspect.FraudCount++
		}
	}

	suspects := make([]entity.SuspectAccount, 0, len(bySender))
	for _, suspect := range bySender {
		if !suspect.TotalAmount.GreaterThan(minAmount) && suspect.FraudCount == 0 {
			continue
		}
		suspect.SuspicionScore = entity.SuspicionScore(suspect.TotalAmount, suspect.FraudCount)
		suspects = append(suspects, *suspect)
	}
	sort.Slice(suspects, func(i, j int) bool {
		if suspects[i].SuspicionScore != suspects[j].SuspicionScore {
			return suspects[i].SuspicionScore > suspects[j].SuspicionScore
		}
		return suspects[i].AccountID < suspects[j].AccountID
	})
	return truncate(suspects, limit), nil
}

// GetOutgoing returns the outgoing transactions of an account that meet minAmount
func (s *MemoryGraphStore) GetOutgoing(ctx context.Context, accountID string, minAmount decimal.Decimal, limit int) ([]entity.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var txs []entity.Transaction
	for _, idx := range s.outgoing[accountID] {
		if tx := s.edges[idx]; !tx.Amount.LessThan(minAmount) {
			txs = append(txs, tx)
		}
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Amount.GreaterThan(txs[j].Amount) })
	return truncate(txs, limit), nil
}

// Aggregate returns the account and transaction counts
func (s *MemoryGraphStore) Aggregate(ctx context.Context) (*entity.GraphAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return &entity.GraphAggregate{
		TotalAccounts:     int64(len(s.accounts)),
		TotalTransactions: int64(len(s.edges)),
	}, nil
}

// Ping reports whether the store is available
func (s *MemoryGraphStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check(ctx)
}

func (s *MemoryGraphStore) sortedAccounts() []string {
	accounts := make([]string, 0, len(s.accounts))
	for a := range s.accounts {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)
	return accounts
}

func truncate[T any](items []T, limit int) []T {
	if items == nil {
		items = []T{}
	}
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
