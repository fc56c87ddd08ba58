package service

import (
	"context"
	"testing"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func cashOut(account string, amount int64, ts int64) entity.Transaction {
	return newTx(account, "M_ATM", entity.TransactionTypeCashOut, amount, ts)
}

func cashIn(account string, amount int64, ts int64) entity.Transaction {
	return newTx("M_DEPOSIT", account, entity.TransactionTypeCashIn, amount, ts)
}

func TestStructuringDetector_AnalyzeAccount(t *testing.T) {
	detector := NewStructuringDetector(new(MockGraphStore), testAnalysisConfig(), nopLogger())

	t.Run("cash-outs just below the threshold", func(t *testing.T) {
		var history []entity.Transaction
		for i := 0; i < 4; i++ {
			history = append(history, cashOut("A", 9500, baseTime+int64(i)*12*3600))
		}

		f := detector.AnalyzeAccount("A", history)
		assert.True(t, f.IsStructuring)
		assert.Equal(t, []string{"near_threshold_10000", IndicatorOutflowHeavy}, f.Indicators)
		assert.Equal(t, 4, f.CashOutCount)
		assert.Equal(t, 4, f.NearThreshold)
		assert.True(t, decimal.NewFromInt(38000).Equal(f.TotalVolume))
		assert.InDelta(t, 0.3, f.RiskScore, 1e-9)
		assert.Equal(t, baseTime, f.FirstOperation)
		assert.Equal(t, baseTime+36*3600, f.LastOperation)
	})

	t.Run("small cash-outs", func(t *testing.T) {
		var history []entity.Transaction
		for i := 0; i < 4; i++ {
			history = append(history, cashOut("A", 500, baseTime+int64(i)*12*3600))
		}

		f := detector.AnalyzeAccount("A", history)
		assert.False(t, f.IsStructuring)
		assert.NotContains(t, f.Indicators, "near_threshold_10000")
	})

	t.Run("rapid cash-out within a week", func(t *testing.T) {
		history := []entity.Transaction{cashIn("A", 20000, baseTime)}
		for i := 0; i < 5; i++ {
			history = append(history, cashOut("A", 1000, baseTime+int64(i+1)*86400))
		}

		f := detector.AnalyzeAccount("A", history)
		assert.True(t, f.IsStructuring)
		assert.Equal(t, []string{IndicatorRapidCashOut}, f.Indicators)
		assert.Equal(t, 1, f.CashInCount)
		assert.Equal(t, 6, f.OperationsCount)
	})

	t.Run("cash-outs spread over months", func(t *testing.T) {
		var history []entity.Transaction
		for i := 0; i < 5; i++ {
			history = append(history, cashOut("A", 1000, baseTime+int64(i)*30*86400))
		}
		f := detector.AnalyzeAccount("A", history)
		assert.NotContains(t, f.Indicators, IndicatorRapidCashOut)
	})

	t.Run("no cash operations", func(t *testing.T) {
		f := detector.AnalyzeAccount("A", []entity.Transaction{transfer("A", "B", 9500, baseTime)})
		assert.False(t, f.IsStructuring)
		assert.NotNil(t, f.Indicators)
		assert.Empty(t, f.Indicators)
		assert.Equal(t, 0, f.OperationsCount)
		assert.True(t, f.TotalVolume.IsZero())
	})
}

func TestStructuringDetector_Scan(t *testing.T) {
	var structured []entity.Transaction
	for i := 0; i < 5; i++ {
		structured = append(structured, cashOut("A", 9500, baseTime+int64(i)*3600))
	}
	var clean []entity.Transaction
	for i := 0; i < 5; i++ {
		clean = append(clean, cashIn("C", 100, baseTime+int64(i)*30*86400))
	}

	store := new(MockGraphStore)
	store.On("FindCashIntensiveAccounts", mock.Anything, 5, 100).Return([]string{"A", "B", "C"}, nil)
	store.On("GetAccountHistory", mock.Anything, "A", mock.Anything).Return(structured, nil)
	store.On("GetAccountHistory", mock.Anything, "B", mock.Anything).Return(nil, repository.ErrUnavailable)
	store.On("GetAccountHistory", mock.Anything, "C", mock.Anything).Return(clean, nil)

	detector := NewStructuringDetector(store, testAnalysisConfig(), nopLogger())
	findings, err := detector.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "A", findings[0].AccountID)
	store.AssertExpectations(t)
}

func TestMaxInWindow(t *testing.T) {
	assert.Equal(t, 0, maxInWindow(nil, 10))
	assert.Equal(t, 3, maxInWindow([]int64{0, 5, 10, 30, 100}, 10))
	assert.Equal(t, 1, maxInWindow([]int64{0, 100, 200}, 10))
}
