package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memTx(sender, receiver string, txType entity.TransactionType, amount int64, ts int64) entity.Transaction {
	return entity.Transaction{
		Sender:    sender,
		Receiver:  receiver,
		Type:      txType,
		Amount:    decimal.NewFromInt(amount),
		Timestamp: ts,
	}
}

func sampleGraph() *MemoryGraphStore {
	return NewMemoryGraphStore(
		memTx("A", "B", entity.TransactionTypeTransfer, 10000, 100),
		memTx("B", "C", entity.TransactionTypeTransfer, 9000, 200),
		memTx("C", "A", entity.TransactionTypeTransfer, 8000, 300),
		memTx("C", "D", entity.TransactionTypeTransfer, 60000, 400),
		memTx("D", "E", entity.TransactionTypeTransfer, 55000, 500),
		memTx("E", "A", entity.TransactionTypeCashOut, 100, 600),
		memTx("A", "A", entity.TransactionTypeTransfer, 7000, 700),
	)
}

func TestMemoryGraphStore_GetAccountHistory(t *testing.T) {
	store := sampleGraph()
	ctx := context.Background()

	history, err := store.GetAccountHistory(ctx, "A", 0)
	require.NoError(t, err)
	require.Len(t, history, 4)
	// newest first, self-loop once
	assert.Equal(t, int64(700), history[0].Timestamp)
	assert.Equal(t, int64(100), history[3].Timestamp)

	history, err = store.GetAccountHistory(ctx, "A", 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	history, err = store.GetAccountHistory(ctx, "missing", 10)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestMemoryGraphStore_GetNeighborhood(t *testing.T) {
	nb, err := sampleGraph().GetNeighborhood(context.Background(), "B", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, nb.Nodes)
	assert.Len(t, nb.Edges, 2)
}

func TestMemoryGraphStore_FindCycles(t *testing.T) {
	store := sampleGraph()
	ctx := context.Background()

	t.Run("through an account", func(t *testing.T) {
		cycles, err := store.FindCycles(ctx, "A", decimal.NewFromInt(5000), 6, 10)
		require.NoError(t, err)
		require.Len(t, cycles, 1)
		assert.Equal(t, []string{"A", "B", "C", "A"}, cycles[0].Accounts)
	})

	t.Run("floor drops the cash-out hop", func(t *testing.T) {
		cycles, err := store.FindCycles(ctx, "D", decimal.NewFromInt(5000), 6, 10)
		require.NoError(t, err)
		assert.Empty(t, cycles)

		cycles, err = store.FindCycles(ctx, "D", decimal.NewFromInt(100), 6, 10)
		require.NoError(t, err)
		require.Len(t, cycles, 1)
		assert.Equal(t, []string{"D", "E", "A", "B", "C", "D"}, cycles[0].Accounts)
	})

	t.Run("length bound", func(t *testing.T) {
		cycles, err := store.FindCycles(ctx, "A", decimal.NewFromInt(100), 3, 10)
		require.NoError(t, err)
		require.Len(t, cycles, 1)
		assert.Equal(t, 3, cycles[0].Hops())
	})

	t.Run("whole graph reports each cycle once", func(t *testing.T) {
		cycles, err := store.FindCycles(ctx, "", decimal.NewFromInt(100), 6, 10)
		require.NoError(t, err)
		require.Len(t, cycles, 2)
		for _, c := range cycles {
			assert.Equal(t, "A", c.Accounts[0])
			assert.True(t, c.IsClosed())
		}
	})
}

func TestMemoryGraphStore_FindChains2Hop(t *testing.T) {
	ctx := context.Background()
	query := func(gap int64) repository.ChainQuery {
		return repository.ChainQuery{MinAmount: decimal.NewFromInt(50000), MaxTimeGap: gap, Limit: 10}
	}

	chains, err := sampleGraph().FindChains2Hop(ctx, query(250))
	require.NoError(t, err)
	require.Len(t, chains, 3)
	assert.Equal(t, []string{"C", "D", "E"}, chains[0].Accounts)
	assert.Equal(t, []string{"B", "C", "D"}, chains[1].Accounts)
	assert.Equal(t, []string{"D", "E", "A"}, chains[2].Accounts)

	chains, err = sampleGraph().FindChains2Hop(ctx, query(150))
	require.NoError(t, err)
	assert.Len(t, chains, 2)

	t.Run("account scope", func(t *testing.T) {
		q := query(250)
		q.AccountID = "B"
		chains, err := sampleGraph().FindChains2Hop(ctx, q)
		require.NoError(t, err)
		require.Len(t, chains, 1)
		assert.Equal(t, []string{"B", "C", "D"}, chains[0].Accounts)
	})

	t.Run("keywords", func(t *testing.T) {
		q := query(250)
		q.Keywords = []string{"E"}
		chains, err := sampleGraph().FindChains2Hop(ctx, q)
		require.NoError(t, err)
		require.Len(t, chains, 2)
		assert.Equal(t, []string{"C", "D", "E"}, chains[0].Accounts)
		assert.Equal(t, []string{"D", "E", "A"}, chains[1].Accounts)
	})

	t.Run("limit applies after filtering", func(t *testing.T) {
		store := sampleGraph()
		for i := 0; i < 20; i++ {
			store.Add(
				memTx(fmt.Sprintf("X%d", i), fmt.Sprintf("Y%d", i), entity.TransactionTypeTransfer, 900000, 0),
				memTx(fmt.Sprintf("Y%d", i), fmt.Sprintf("Z%d", i), entity.TransactionTypeTransfer, 900000, 10),
			)
		}
		q := query(250)
		q.Limit = 1
		q.AccountID = "D"
		chains, err := store.FindChains2Hop(ctx, q)
		require.NoError(t, err)
		require.Len(t, chains, 1)
		assert.Contains(t, chains[0].Accounts, "D")
	})
}

func TestMemoryGraphStore_FindLargeTransfers(t *testing.T) {
	txs, err := sampleGraph().FindLargeTransfers(context.Background(), decimal.NewFromInt(9000), 10)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromInt(60000)))
	assert.True(t, txs[2].Amount.Equal(decimal.NewFromInt(10000)))
}

func TestMemoryGraphStore_FindCashIntensiveAccounts(t *testing.T) {
	store := sampleGraph()
	for i := int64(0); i < 4; i++ {
		store.Add(memTx("E", "M", entity.TransactionTypeCashOut, 900, 1000+i))
	}

	accounts, err := store.FindCashIntensiveAccounts(context.Background(), 5, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"E"}, accounts)
}

func TestMemoryGraphStore_GetOutgoing(t *testing.T) {
	txs, err := sampleGraph().GetOutgoing(context.Background(), "C", decimal.NewFromInt(8000), 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "D", txs[0].Receiver)
	assert.Equal(t, "A", txs[1].Receiver)
}

func TestMemoryGraphStore_Aggregate(t *testing.T) {
	agg, err := sampleGraph().Aggregate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), agg.TotalAccounts)
	assert.Equal(t, int64(7), agg.TotalTransactions)
}

func TestMemoryGraphStore_Unavailable(t *testing.T) {
	store := sampleGraph()
	store.SetUnavailable(true)

	assert.ErrorIs(t, store.Ping(context.Background()), repository.ErrUnavailable)
	_, err := store.GetAccountHistory(context.Background(), "A", 10)
	assert.ErrorIs(t, err, repository.ErrUnavailable)

	store.SetUnavailable(false)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestLoadMemoryGraphStore(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`[
		{"sender": "C1", "receiver": "M1", "type": "PAYMENT", "amount": "9839.64", "timestamp": 3600, "is_fraud": false},
		{"sender": "C2", "receiver": "C3", "type": "TRANSFER", "amount": "181", "timestamp": 3600, "is_fraud": true}
	]`), 0o600))

	store, err := LoadMemoryGraphStore(seed)
	require.NoError(t, err)

	history, err := store.GetAccountHistory(context.Background(), "C1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entity.TransactionTypePayment, history[0].Type)
	assert.True(t, history[0].Amount.Equal(decimal.RequireFromString("9839.64")))

	_, err = LoadMemoryGraphStore(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestMemoryGraphStore_FindHighRiskAccounts(t *testing.T) {
	store := NewMemoryGraphStore(
		memTx("BIG", "X", entity.TransactionTypeTransfer, 2000000, 10),
		memTx("BIG", "Y", entity.TransactionTypeTransfer, 500, 20),
		memTx("FRAUD", "X", entity.TransactionTypeCashOut, 400, 30),
		memTx("FRAUD", "Y", entity.TransactionTypeCashOut, 600, 40),
		memTx("MID", "X", entity.TransactionTypeTransfer, 20000, 50),
		memTx("SMALL", "X", entity.TransactionTypeTransfer, 9000, 60),
	)
	fraud := memTx("FRAUD", "Z", entity.TransactionTypeTransfer, 300, 70)
	fraud.IsFraud = true
	store.Add(fraud)
	fraud = memTx("FRAUD", "Z", entity.TransactionTypeTransfer, 700, 80)
	fraud.IsFraud = true
	store.Add(fraud)

	suspects, err := store.FindHighRiskAccounts(context.Background(), decimal.NewFromInt(10000), 10)
	require.NoError(t, err)
	require.Len(t, suspects, 3)

	assert.Equal(t, "BIG", suspects[0].AccountID)
	assert.True(t, decimal.NewFromInt(2000000).Equal(suspects[0].TotalAmount))
	assert.Equal(t, int64(1), suspects[0].TransactionCount)
	assert.InDelta(t, 2.0, suspects[0].SuspicionScore, 1e-9)

	// only the two fraud-labelled transfers count; the small cash-outs are neither large nor fraud
	assert.Equal(t, "FRAUD", suspects[1].AccountID)
	assert.Equal(t, int64(2), suspects[1].FraudCount)
	assert.True(t, decimal.NewFromInt(1000).Equal(suspects[1].TotalAmount))
	assert.InDelta(t, 1.001, suspects[1].SuspicionScore, 1e-9)

	assert.Equal(t, "MID", suspects[2].AccountID)
	assert.InDelta(t, 0.02, suspects[2].SuspicionScore, 1e-9)

	suspects, err = store.FindHighRiskAccounts(context.Background(), decimal.NewFromInt(10000), 1)
	require.NoError(t, err)
	require.Len(t, suspects, 1)
	assert.Equal(t, "BIG", suspects[0].AccountID)
}
