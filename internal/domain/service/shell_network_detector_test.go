package service

import (
	"context"
	"fmt"
	"testing"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/repository"
	"aml-graph-analyzer/internal/infrastructure/database"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestShellDetector(store *MockGraphStore) *ShellNetworkDetector {
	return NewShellNetworkDetector(store, DefaultHeuristics(), testAnalysisConfig(), nopLogger())
}

func TestShellNetworkDetector_Evaluate(t *testing.T) {
	detector := newTestShellDetector(new(MockGraphStore))

	t.Run("routed through a holding", func(t *testing.T) {
		finding, ok := detector.Evaluate(path(
			transfer("C1", "HOLDING_X", 60000, baseTime+3600),
			transfer("HOLDING_X", "C2", 55000, baseTime),
		))
		require.True(t, ok)
		assert.Equal(t, "C1", finding.Source)
		assert.Equal(t, "HOLDING_X", finding.Intermediary)
		assert.Equal(t, "C2", finding.Destination)
		assert.True(t, decimal.NewFromInt(115000).Equal(finding.TotalFlow))
		assert.Equal(t, int64(3600), finding.TimeSpanSeconds)
		assert.Equal(t, []string{"intermediary_keyword:HOLDING"}, finding.ShellIndicators)
	})

	tests := []struct {
		name  string
		chain entity.Path
	}{
		{
			name:  "no shell keywords",
			chain: path(transfer("C1", "C3", 60000, baseTime), transfer("C3", "C2", 55000, baseTime+60)),
		},
		{
			name:  "hops too far apart",
			chain: path(transfer("C1", "HOLDING_X", 60000, baseTime), transfer("HOLDING_X", "C2", 55000, baseTime+2*86400)),
		},
		{
			name:  "both hops below the floor",
			chain: path(transfer("C1", "HOLDING_X", 40000, baseTime), transfer("HOLDING_X", "C2", 30000, baseTime+60)),
		},
		{
			name:  "returns to the source",
			chain: path(transfer("C1", "HOLDING_X", 60000, baseTime), transfer("HOLDING_X", "C1", 55000, baseTime+60)),
		},
		{
			name:  "three hops",
			chain: path(transfer("C1", "HOLDING_X", 60000, baseTime), transfer("HOLDING_X", "C2", 55000, baseTime+60), transfer("C2", "C3", 55000, baseTime+120)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := detector.Evaluate(tt.chain)
			assert.False(t, ok)
		})
	}
}

func TestShellNetworkDetector_Detect(t *testing.T) {
	store := new(MockGraphStore)
	globalQuery := mock.MatchedBy(func(q repository.ChainQuery) bool {
		return q.AccountID == "" && q.MaxTimeGap == 86400 && q.Limit == 100 &&
			assert.ObjectsAreEqual([]string{"SHELL", "HOLDING", "SPV", "INVEST", "CAPITAL", "MANAGEMENT"}, q.Keywords)
	})
	store.On("FindChains2Hop", mock.Anything, globalQuery).Return([]entity.Path{
		path(transfer("SPV_1", "C4", 90000, baseTime), transfer("C4", "INVEST_9", 85000, baseTime+60)),
		path(transfer("C1", "HOLDING_X", 60000, baseTime), transfer("HOLDING_X", "C2", 55000, baseTime+60)),
	}, nil)
	scopedQuery := mock.MatchedBy(func(q repository.ChainQuery) bool { return q.AccountID == "C2" })
	store.On("FindChains2Hop", mock.Anything, scopedQuery).Return([]entity.Path{
		path(transfer("C1", "HOLDING_X", 60000, baseTime), transfer("HOLDING_X", "C2", 55000, baseTime+60)),
	}, nil)

	detector := newTestShellDetector(store)

	findings, err := detector.Detect(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "SPV_1", findings[0].Source)
	assert.Equal(t, []string{"source_keyword:SPV", "destination_keyword:INVEST"}, findings[0].ShellIndicators)

	findings, err = detector.Detect(context.Background(), "C2")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "HOLDING_X", findings[0].Intermediary)
	store.AssertExpectations(t)
}

func TestShellNetworkDetector_DetectAmongLargerChains(t *testing.T) {
	store := database.NewMemoryGraphStore()
	for i := 0; i < 1000; i++ {
		p, q, r := fmt.Sprintf("P_%d", i), fmt.Sprintf("Q_%d", i), fmt.Sprintf("R_%d", i)
		store.Add(transfer(p, q, 900000, baseTime), transfer(q, r, 900000, baseTime+60))
	}
	store.Add(
		transfer("TARGET", "SHELL_HOLDING_1", 60000, baseTime),
		transfer("SHELL_HOLDING_1", "DEST", 60000, baseTime+600),
	)

	detector := NewShellNetworkDetector(store, DefaultHeuristics(), testAnalysisConfig(), nopLogger())

	findings, err := detector.Detect(context.Background(), "TARGET")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "SHELL_HOLDING_1", findings[0].Intermediary)

	findings, err = detector.Detect(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "TARGET", findings[0].Source)
}
