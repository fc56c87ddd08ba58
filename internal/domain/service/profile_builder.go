package service

import (
	"context"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/repository"
	"aml-graph-analyzer/internal/infrastructure/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxHistoryWindow bounds the number of transactions pulled for a profile
const MaxHistoryWindow = 1000

// ProfileBuilder assembles account profiles from graph history and lexical classification
type ProfileBuilder struct {
	store      repository.GraphStore
	classifier *EntityClassifier
	screening  ScreeningService
	limit      int
	logger     *logger.Logger
}

// NewProfileBuilder creates a new profile builder
func NewProfileBuilder(
	store repository.GraphStore,
	classifier *EntityClassifier,
	screening ScreeningService,
	historyLimit int,
	logger *logger.Logger,
) *ProfileBuilder {
	if historyLimit <= 0 || historyLimit > MaxHistoryWindow {
		historyLimit = MaxHistoryWindow
	}
	return &ProfileBuilder{
		store:      store,
		classifier: classifier,
		screening:  screening,
		limit:      historyLimit,
		logger:     logger.WithComponent("profile-builder"),
	}
}

// BuildProfile fetches the account history and builds a profile from it.
// A failed or empty history yields a zero-valued profile, never an error.
func (b *ProfileBuilder) BuildProfile(ctx context.Context, accountID string) *entity.AccountProfile {
	profile, _, _ := b.LoadProfile(ctx, accountID)
	return profile
}

// LoadProfile builds the profile and also returns the history window it was built from,
// so callers that score the same window fetch it once. The profile is never nil; err
// reports a failed history fetch, in which case the history is empty.
func (b *ProfileBuilder) LoadProfile(ctx context.Context, accountID string) (*entity.AccountProfile, []entity.Transaction, error) {
	history, err := b.store.GetAccountHistory(ctx, accountID, b.limit)
	if err != nil {
		b.logger.Warn("Failed to get account history, using empty profile",
			zap.String("account_id", accountID),
			zap.Error(err))
		return b.FromHistory(accountID, nil), nil, err
	}
	return b.FromHistory(accountID, history), history, nil
}

// FromHistory builds a profile from an already fetched transaction window
func (b *ProfileBuilder) FromHistory(accountID string, history []entity.Transaction) *entity.AccountProfile {
	jurisdiction, entityType := b.classifier.Classify(accountID)

	profile := &entity.AccountProfile{
		AccountID:        accountID,
		JurisdictionCode: jurisdiction,
		EntityType:       entityType,
		IsPEP:            b.screening.IsPEP(accountID),
		IsSanctioned:     b.screening.IsSanctioned(accountID),
		TotalInflow:      decimal.Zero,
		TotalOutflow:     decimal.Zero,
	}

	if len(history) > b.limit {
		history = history[:b.limit]
	}

	counterparties := make(map[string]struct{})
	for _, tx := range history {
		if tx.IsOutgoing(accountID) {
			profile.TotalOutflow = profile.TotalOutflow.Add(tx.Amount)
		} else {
			profile.TotalInflow = profile.TotalInflow.Add(tx.Amount)
		}
		counterparties[tx.Counterparty(accountID)] = struct{}{}
	}
	profile.TransactionCount = len(history)
	profile.UniqueCounterparties = len(counterparties)

	return profile
}
