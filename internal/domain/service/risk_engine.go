package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/repository"
	"aml-graph-analyzer/internal/infrastructure/logger"

	"go.uber.org/zap"
)

// FactorInput carries the read-only views shared by the factor calculators
type FactorInput struct {
	AccountID string
	History   []entity.Transaction
	Profile   *entity.AccountProfile
}

// RiskFactorEngine runs the seven factor calculators concurrently for one account
type RiskFactorEngine struct {
	calculator        *FactorCalculator
	scorer            *CompositeScorer
	store             repository.GraphStore
	neighborhoodLimit int
	logger            *logger.Logger
}

// NewRiskFactorEngine creates a new risk factor engine
func NewRiskFactorEngine(
	calculator *FactorCalculator,
	scorer *CompositeScorer,
	store repository.GraphStore,
	neighborhoodLimit int,
	logger *logger.Logger,
) *RiskFactorEngine {
	if neighborhoodLimit <= 0 {
		neighborhoodLimit = 500
	}
	return &RiskFactorEngine{
		calculator:        calculator,
		scorer:            scorer,
		store:             store,
		neighborhoodLimit: neighborhoodLimit,
		logger:            logger.WithComponent("risk-factor-engine"),
	}
}

// Calculate returns all seven factors in FactorOrder. A calculator that fails or panics
// contributes a zero-scored factor carrying an analysis_failed evidence note.
func (e *RiskFactorEngine) Calculate(ctx context.Context, in FactorInput) []entity.RiskFactor {
	if len(in.History) == 0 {
		factors := make([]entity.RiskFactor, 0, len(entity.FactorOrder))
		for _, name := range entity.FactorOrder {
			factors = append(factors, EmptyFactor(name, descNoTransactions))
		}
		return factors
	}

	profile := in.Profile
	if profile == nil {
		profile = &entity.AccountProfile{AccountID: in.AccountID}
	}

	jobs := map[string]func() (entity.RiskFactor, error){
		entity.FactorVelocity: func() (entity.RiskFactor, error) {
			return e.calculator.Velocity(in.History), nil
		},
		entity.FactorAmountPattern: func() (entity.RiskFactor, error) {
			return e.calculator.AmountPattern(in.History), nil
		},
		entity.FactorNetworkCentrality: func() (entity.RiskFactor, error) {
			neighborhood, err := e.store.GetNeighborhood(ctx, in.AccountID, e.neighborhoodLimit)
			if err != nil {
				return entity.RiskFactor{}, fmt.Errorf("failed to get neighborhood: %w", err)
			}
			return e.calculator.NetworkCentrality(in.AccountID, neighborhood), nil
		},
		entity.FactorGeographic: func() (entity.RiskFactor, error) {
			return e.calculator.Geographic(profile, in.History), nil
		},
		entity.FactorStructural: func() (entity.RiskFactor, error) {
			return e.calculator.Structural(profile), nil
		},
		entity.FactorTemporal: func() (entity.RiskFactor, error) {
			return e.calculator.Temporal(in.History), nil
		},
		entity.FactorCounterparty: func() (entity.RiskFactor, error) {
			return e.calculator.Counterparty(in.AccountID, in.History), nil
		},
	}

	// A failed calculator degrades only its own factor, so every job runs to completion
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]entity.RiskFactor, len(jobs))
	)
	for name, job := range jobs {
		name, job := name, job
		wg.Add(1)
		go func() {
			defer wg.Done()
			factor := e.runCalculator(in.AccountID, name, job)
			mu.Lock()
			results[name] = factor
			mu.Unlock()
		}()
	}
	wg.Wait()

	factors := make([]entity.RiskFactor, 0, len(entity.FactorOrder))
	for _, name := range entity.FactorOrder {
		factors = append(factors, results[name])
	}
	return factors
}

func (e *RiskFactorEngine) runCalculator(accountID, name string, job func() (entity.RiskFactor, error)) (factor entity.RiskFactor) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Risk factor calculator panicked",
				zap.String("account_id", accountID),
				zap.String("factor", name),
				zap.Any("panic", r))
			factor = FailedFactor(name, fmt.Errorf("panic: %v", r))
		}
	}()

	factor, err := job()
	if err != nil {
		e.logger.Warn("Risk factor calculation failed",
			zap.String("account_id", accountID),
			zap.String("factor", name),
			zap.Error(err))
		return FailedFactor(name, err)
	}
	return factor
}

// Assess calculates the factors and combines them into a risk assessment
func (e *RiskFactorEngine) Assess(ctx context.Context, in FactorInput) *entity.RiskAssessment {
	factors := e.Calculate(ctx, in)
	score, level := e.scorer.Score(factors)

	return &entity.RiskAssessment{
		AccountID:      in.AccountID,
		CompositeScore: score,
		RiskLevel:      level,
		Factors:        factors,
		Profile:        in.Profile,
		Timestamp:      time.Now().UTC(),
	}
}

// IsFailed reports whether a factor degraded because its calculator failed
func IsFailed(factor entity.RiskFactor) bool {
	for _, ev := range factor.Evidence {
		if ev.Kind == entity.EvidenceAnalysisFailed {
			return true
		}
	}
	return false
}
