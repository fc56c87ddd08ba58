package service

import (
	"context"
	"testing"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestProfileBuilder(store repository.GraphStore) *ProfileBuilder {
	h := DefaultHeuristics()
	return NewProfileBuilder(store, NewEntityClassifier(h), NewKeywordScreening(h), 1000, nopLogger())
}

func TestProfileBuilder_FromHistory(t *testing.T) {
	builder := newTestProfileBuilder(new(MockGraphStore))

	profile := builder.FromHistory("KY_HOLDING_1", []entity.Transaction{
		transfer("KY_HOLDING_1", "B", 100, baseTime),
		transfer("C", "KY_HOLDING_1", 50, baseTime+1),
		transfer("B", "KY_HOLDING_1", 30, baseTime+2),
	})

	assert.Equal(t, "KY", profile.JurisdictionCode)
	assert.Equal(t, entity.EntityTypeShellCompany, profile.EntityType)
	assert.True(t, decimal.NewFromInt(100).Equal(profile.TotalOutflow))
	assert.True(t, decimal.NewFromInt(80).Equal(profile.TotalInflow))
	assert.Equal(t, 3, profile.TransactionCount)
	assert.Equal(t, 2, profile.UniqueCounterparties)
	assert.False(t, profile.IsPEP)
	assert.False(t, profile.IsSanctioned)
}

func TestProfileBuilder_BuildProfile(t *testing.T) {
	t.Run("history available", func(t *testing.T) {
		store := new(MockGraphStore)
		store.On("GetAccountHistory", mock.Anything, "A1", 1000).Return([]entity.Transaction{
			transfer("A1", "B", 100, baseTime),
		}, nil)

		profile := newTestProfileBuilder(store).BuildProfile(context.Background(), "A1")
		assert.Equal(t, 1, profile.TransactionCount)
		store.AssertExpectations(t)
	})

	t.Run("store unavailable", func(t *testing.T) {
		store := new(MockGraphStore)
		store.On("GetAccountHistory", mock.Anything, "A1", 1000).Return(nil, repository.ErrUnavailable)

		profile := newTestProfileBuilder(store).BuildProfile(context.Background(), "A1")
		assert.Equal(t, "A1", profile.AccountID)
		assert.Equal(t, 0, profile.TransactionCount)
		assert.True(t, profile.TotalInflow.IsZero())
		assert.True(t, profile.TotalOutflow.IsZero())
	})
}

func TestProfileBuilder_LoadProfile(t *testing.T) {
	t.Run("returns the window it scored", func(t *testing.T) {
		history := []entity.Transaction{
			transfer("A1", "B", 100, baseTime),
			transfer("C", "A1", 40, baseTime+1),
		}
		store := new(MockGraphStore)
		store.On("GetAccountHistory", mock.Anything, "A1", 1000).Return(history, nil).Once()

		profile, window, err := newTestProfileBuilder(store).LoadProfile(context.Background(), "A1")
		assert.NoError(t, err)
		assert.Equal(t, history, window)
		assert.Equal(t, 2, profile.TransactionCount)
		store.AssertExpectations(t)
	})

	t.Run("history failure", func(t *testing.T) {
		store := new(MockGraphStore)
		store.On("GetAccountHistory", mock.Anything, "A1", 1000).Return(nil, repository.ErrUnavailable)

		profile, window, err := newTestProfileBuilder(store).LoadProfile(context.Background(), "A1")
		assert.ErrorIs(t, err, repository.ErrUnavailable)
		assert.Empty(t, window)
		assert.Equal(t, "A1", profile.AccountID)
		assert.Equal(t, 0, profile.TransactionCount)
		assert.True(t, profile.TotalInflow.IsZero())
		assert.True(t, profile.TotalOutflow.IsZero())
	})
}
