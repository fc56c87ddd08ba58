package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/repository"
	"aml-graph-analyzer/internal/infrastructure/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// edgeProjection returns a relationship r as flat transaction columns
const edgeProjection = `
	startNode(r).id AS sender,
	endNode(r).id AS receiver,
	type(r) AS type,
	r.amount AS amount,
	r.timestamp AS timestamp,
	coalesce(r.isFraud, false) AS is_fraud`

// pathProjection returns a path p as an account list and a list of edge maps
const pathProjection = `
	[n IN nodes(p) | n.id] AS accounts,
	[r IN relationships(p) | {
		sender: startNode(r).id,
		receiver: endNode(r).id,
		type: type(r),
		amount: r.amount,
		timestamp: r.timestamp,
		is_fraud: coalesce(r.isFraud, false)
	}] AS edges`

// Neo4JGraphStore implements GraphStore over (:Account)-[:TYPE {amount, timestamp, isFraud}]->(:Account)
type Neo4JGraphStore struct {
	client *Neo4JClient
	logger *logger.Logger
}

// NewNeo4JGraphStore creates a new Neo4J graph store
func NewNeo4JGraphStore(client *Neo4JClient, logger *logger.Logger) repository.GraphStore {
	return &Neo4JGraphStore{
		client: client,
		logger: logger.WithComponent("neo4j-graph-store"),
	}
}

// read runs a read query and returns all records collected inside the transaction
func (s *Neo4JGraphStore) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	driver := s.client.GetDriver()
	if driver == nil {
		return nil, repository.ErrUnavailable
	}

	session := driver.NewSession(ctx, s.client.SessionConfig(neo4j.AccessModeRead))
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return records.Collect(ctx)
	})
	if err != nil {
		if neo4j.IsConnectivityError(err) {
			return nil, fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
		}
		return nil, err
	}

	return result.([]*neo4j.Record), nil
}

// GetAccountHistory returns the most recent transactions in either direction
func (s *Neo4JGraphStore) GetAccountHistory(ctx context.Context, accountID string, limit int) ([]entity.Transaction, error) {
	query := `
		MATCH (a:Account {id: $account_id})-[r]-(:Account)
		RETURN ` + edgeProjection + `
		ORDER BY r.timestamp DESC
		LIMIT $limit
	`

	records, err := s.read(ctx, query, map[string]any{
		"account_id": accountID,
		"limit":      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account history: %w", err)
	}

	return s.decodeEdgeRecords(records), nil
}

// GetNeighborhood returns the one-hop subgraph around an account
func (s *Neo4JGraphStore) GetNeighborhood(ctx context.Context, accountID string, limit int) (*entity.Neighborhood, error) {
	query := `
		MATCH (a:Account {id: $account_id})-[r]-(:Account)
		RETURN ` + edgeProjection + `
		LIMIT $limit
	`

	records, err := s.read(ctx, query, map[string]any{
		"account_id": accountID,
		"limit":      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get neighborhood: %w", err)
	}

	edges := s.decodeEdgeRecords(records)
	neighborhood := &entity.Neighborhood{
		Nodes: make([]string, 0),
		Edges: edges,
	}
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

// FindCycles returns closed paths whose every hop meets minAmount.
// An empty accountID searches the whole graph.
func (s *Neo4JGraphStore) FindCycles(ctx context.Context, accountID string, minAmount decimal.Decimal, maxLength, limit int) ([]entity.Path, error) {
	params := map[string]any{
		"min_amount": minAmount.InexactFloat64(),
		"limit":      limit,
	}
	if accountID != "" {
		params["account_id"] = accountID
	}

	records, err := s.read(ctx, cyclesQuery(accountID != "", maxLength), params)
	if err != nil {
		return nil, fmt.Errorf("failed to find cycles: %w", err)
	}

	return s.decodePathRecords(records), nil
}

// cyclesQuery builds the cycle search. A global search binds each cycle once,
// at its smallest account id, so rotations do not consume the row limit.
func cyclesQuery(scoped bool, maxLength int) string {
	start := "(a:Account)"
	canonical := "\n\t\t  AND all(n IN nodes(p) WHERE a.id <= n.id)"
	if scoped {
		start = "(a:Account {id: $account_id})"
		canonical = ""
	}

	// Variable-length bounds cannot be parameterized
	return fmt.Sprintf(`
		MATCH p = %s-[*2..%d]->(a)
		WHERE all(r IN relationships(p) WHERE r.amount >= $min_amount)
		  AND all(n IN nodes(p)[..-1] WHERE single(m IN nodes(p)[..-1] WHERE m = n))%s
		WITH p, reduce(total = 0.0, r IN relationships(p) | total + r.amount) AS total
		ORDER BY total DESC
		LIMIT $limit
		RETURN %s
	`, start, maxLength, canonical, pathProjection)
}

// FindChains2Hop returns A->B->C chains with A != C, at least one hop above the minimum,
// both hops within the time gap, restricted to the query's account and keywords
func (s *Neo4JGraphStore) FindChains2Hop(ctx context.Context, q repository.ChainQuery) ([]entity.Path, error) {
	params := map[string]any{
		"min_amount":   q.MinAmount.InexactFloat64(),
		"max_time_gap": q.MaxTimeGap,
		"limit":        q.Limit,
	}
	if q.AccountID != "" {
		params["account_id"] = q.AccountID
	}
	if len(q.Keywords) > 0 {
		params["keywords"] = q.Keywords
	}

	records, err := s.read(ctx, chainsQuery(q.AccountID != "", len(q.Keywords) > 0), params)
	if err != nil {
		return nil, fmt.Errorf("failed to find two-hop chains: %w", err)
	}

	return s.decodePathRecords(records), nil
}

// chainsQuery builds the two-hop chain search; account scope and keyword
// predicates run inside the query so that LIMIT applies to matching chains only
func chainsQuery(scoped, keywords bool) string {
	var filters strings.Builder
	if scoped {
		filters.WriteString("\n\t\t  AND (a.id = $account_id OR b.id = $account_id OR c.id = $account_id)")
	}
	if keywords {
		filters.WriteString("\n\t\t  AND any(k IN $keywords WHERE toUpper(a.id) CONTAINS k OR toUpper(b.id) CONTAINS k OR toUpper(c.id) CONTAINS k)")
	}

	return `
		MATCH p = (a:Account)-[r1]->(b:Account)-[r2]->(c:Account)
		WHERE a <> c
		  AND (r1.amount > $min_amount OR r2.amount > $min_amount)
		  AND abs(r2.timestamp - r1.timestamp) <= $max_time_gap` + filters.String() + `
		WITH p, r1.amount + r2.amount AS total
		ORDER BY total DESC
		LIMIT $limit
		RETURN ` + pathProjection
}

// FindLargeTransfers returns the largest transactions above minAmount
func (s *Neo4JGraphStore) FindLargeTransfers(ctx context.Context, minAmount decimal.Decimal, limit int) ([]entity.Transaction, error) {
	query := `
		MATCH (:Account)-[r]->(:Account)
		WHERE r.amount > $min_amount
		RETURN ` + edgeProjection + `
		ORDER BY r.amount DESC
		LIMIT $limit
	`

	records, err := s.read(ctx, query, map[string]any{
		"min_amount": minAmount.InexactFloat64(),
		"limit":      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find large transfers: %w", err)
	}

	return s.decodeEdgeRecords(records), nil
}

// FindCashIntensiveAccounts returns accounts with at least minOperations cash operations
func (s *Neo4JGraphStore) FindCashIntensiveAccounts(ctx context.Context, minOperations, limit int) ([]string, error) {
	query := `
		MATCH (a:Account)-[r:CASH_IN|CASH_OUT]-(:Account)
		WITH a.id AS account_id, count(r) AS operations
		WHERE operations >= $min_operations
		RETURN account_id
		ORDER BY operations DESC
		LIMIT $limit
	`

	records, err := s.read(ctx, query, map[string]any{
		"min_operations": minOperations,
		"limit":          limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find cash intensive accounts: %w", err)
	}

	accounts := make([]string, 0, len(records))
	for _, record := range records {
		id, ok := record.Values[0].(string)
		if !ok {
			s.logger.Warn("Skipping malformed account record", zap.Any("value", record.Values[0]))
			continue
		}
		accounts = append(accounts, id)
	}
	return accounts, nil
}

// FindHighRiskAccounts ranks senders of transactions above minAmount or labelled as fraud
func (s *Neo4JGraphStore) FindHighRiskAccounts(ctx context.Context, minAmount decimal.Decimal, limit int) ([]entity.SuspectAccount, error) {
	query := `
		MATCH (a:Account)-[r]->(:Account)
		WHERE r.amount > $min_amount OR r.isFraud = true
		WITH a.id AS account_id,
		     sum(r.amount) AS total_amount,
		     count(r) AS transaction_count,
		     sum(CASE WHEN r.isFraud THEN 1 ELSE 0 END) AS fraud_count
		WHERE total_amount > $min_amount OR fraud_count > 0
		RETURN account_id, total_amount, transaction_count, fraud_count
		ORDER BY total_amount / 1000000.0 + fraud_count * 0.5 DESC, account_id
		LIMIT $limit
	`

	records, err := s.read(ctx, query, map[string]any{
		"min_amount": minAmount.InexactFloat64(),
		"limit":      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find high risk accounts: %w", err)
	}

	suspects := make([]entity.SuspectAccount, 0, len(records))
	for _, record := range records {
		suspect, err := decodeSuspect(record.AsMap())
		if err != nil {
			s.logger.Warn("Skipping malformed suspect record", zap.Error(err))
			continue
		}
		suspects = append(suspects, suspect)
	}
	return suspects, nil
}

// GetOutgoing returns the outgoing transactions of an account that meet minAmount
func (s *Neo4JGraphStore) GetOutgoing(ctx context.Context, accountID string, minAmount decimal.Decimal, limit int) ([]entity.Transaction, error) {
	query := `
		MATCH (a:Account {id: $account_id})-[r]->(:Account)
		WHERE r.amount >= $min_amount
		RETURN ` + edgeProjection + `
		ORDER BY r.amount DESC
		LIMIT $limit
	`

	records, err := s.read(ctx, query, map[string]any{
		"account_id": accountID,
		"min_amount": minAmount.InexactFloat64(),
		"limit":      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get outgoing transactions: %w", err)
	}

	return s.decodeEdgeRecords(records), nil
}

// Aggregate returns the account and transaction counts of the whole graph
func (s *Neo4JGraphStore) Aggregate(ctx context.Context) (*entity.GraphAggregate, error) {
	query := `
		CALL { MATCH (a:Account) RETURN count(a) AS accounts }
		CALL { MATCH ()-[r]->() RETURN count(r) AS transactions }
		RETURN accounts, transactions
	`

	records, err := s.read(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate graph: %w", err)
	}
	if len(records) == 0 {
		return &entity.GraphAggregate{}, nil
	}

	accounts, _ := records[0].Values[0].(int64)
	transactions, _ := records[0].Values[1].(int64)
	return &entity.GraphAggregate{
		TotalAccounts:     accounts,
		TotalTransactions: transactions,
	}, nil
}

// Ping verifies connectivity to the database
func (s *Neo4JGraphStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *Neo4JGraphStore) decodeEdgeRecords(records []*neo4j.Record) []entity.Transaction {
	txs := make([]entity.Transaction, 0, len(records))
	for _, record := range records {
		tx, err := decodeEdge(record.AsMap())
		if err != nil {
			s.logger.Warn("Skipping malformed transaction record", zap.Error(err))
			continue
		}
		txs = append(txs, tx)
	}
	return txs
}

func (s *Neo4JGraphStore) decodePathRecords(records []*neo4j.Record) []entity.Path {
	paths := make([]entity.Path, 0, len(records))
	for _, record := range records {
		path, err := decodePath(record.AsMap())
		if err != nil {
			s.logger.Warn("Skipping malformed path record", zap.Error(err))
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

func decodePath(row map[string]any) (entity.Path, error) {
	rawAccounts, ok := row["accounts"].([]any)
	if !ok {
		return entity.Path{}, errors.New("path has no account list")
	}
	rawEdges, ok := row["edges"].([]any)
	if !ok {
		return entity.Path{}, errors.New("path has no edge list")
	}

	path := entity.Path{
		Accounts: make([]string, 0, len(rawAccounts)),
		Edges:    make([]entity.Transaction, 0, len(rawEdges)),
	}
	for _, raw := range rawAccounts {
		id, ok := raw.(string)
		if !ok {
			return entity.Path{}, fmt.Errorf("account id is %T, not a string", raw)
		}
		path.Accounts = append(path.Accounts, id)
	}
	for _, raw := range rawEdges {
		m, ok := raw.(map[string]any)
		if !ok {
			return entity.Path{}, fmt.Errorf("edge is %T, not a map", raw)
		}
		tx, err := decodeEdge(m)
		if err != nil {
			return entity.Path{}, err
		}
		path.Edges = append(path.Edges, tx)
	}
	return path, nil
}

// decodeEdge coerces a row into a transaction; a non-numeric amount or timestamp is an error
func decodeEdge(row map[string]any) (entity.Transaction, error) {
	sender, ok := row["sender"].(string)
	if !ok {
		return entity.Transaction{}, fmt.Errorf("sender is %T, not a string", row["sender"])
	}
	receiver, ok := row["receiver"].(string)
	if !ok {
		return entity.Transaction{}, fmt.Errorf("receiver is %T, not a string", row["receiver"])
	}
	amount, err := toDecimal(row["amount"])
	if err != nil {
		return entity.Transaction{}, fmt.Errorf("invalid amount for %s->%s: %w", sender, receiver, err)
	}
	if amount.IsNegative() {
		return entity.Transaction{}, fmt.Errorf("negative amount for %s->%s", sender, receiver)
	}
	timestamp, err := toInt64(row["timestamp"])
	if err != nil {
		return entity.Transaction{}, fmt.Errorf("invalid timestamp for %s->%s: %w", sender, receiver, err)
	}
	txType, _ := row["type"].(string)
	isFraud, _ := row["is_fraud"].(bool)

	return entity.Transaction{
		Sender:    sender,
		Receiver:  receiver,
		Type:      entity.ParseTransactionType(txType),
		Amount:    amount,
		Timestamp: timestamp,
		IsFraud:   isFraud,
	}, nil
}

func decodeSuspect(row map[string]any) (entity.SuspectAccount, error) {
	id, ok := row["account_id"].(string)
	if !ok {
		return entity.SuspectAccount{}, fmt.Errorf("account_id is %T, not a string", row["account_id"])
	}
	total, err := toDecimal(row["total_amount"])
	if err != nil {
		return entity.SuspectAccount{}, fmt.Errorf("invalid total for %s: %w", id, err)
	}
	count, err := toInt64(row["transaction_count"])
	if err != nil {
		return entity.SuspectAccount{}, fmt.Errorf("invalid transaction count for %s: %w", id, err)
	}
	fraud, err := toInt64(row["fraud_count"])
	if err != nil {
		return entity.SuspectAccount{}, fmt.Errorf("invalid fraud count for %s: %w", id, err)
	}
	return entity.SuspectAccount{
		AccountID:        id,
		TotalAmount:      total,
		TransactionCount: count,
		FraudCount:       fraud,
		SuspicionScore:   entity.SuspicionScore(total, fraud),
	}, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case string:
		return decimal.NewFromString(n)
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %T", v)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
