package service

import (
	"aml-graph-analyzer/internal/domain/entity"
)

// Risk level thresholds, inclusive lower bounds
const (
	CriticalThreshold = 0.8
	HighThreshold     = 0.6
	MediumThreshold   = 0.3
)

// CompositeScorer combines weighted risk factors into a composite score and level
type CompositeScorer struct{}

// NewCompositeScorer creates a new composite scorer
func NewCompositeScorer() *CompositeScorer {
	return &CompositeScorer{}
}

// Score returns the weighted sum of factor scores clamped to [0,1] and its risk level
func (s *CompositeScorer) Score(factors []entity.RiskFactor) (float64, entity.RiskLevel) {
	total := 0.0
	for _, f := range factors {
		total += f.Score * f.Weight
	}
	total = clamp01(total)
	return total, DetermineRiskLevel(total)
}

// DetermineRiskLevel maps a composite score to its risk level
func DetermineRiskLevel(score float64) entity.RiskLevel {
	switch {
	case score >= CriticalThreshold:
		return entity.RiskLevelCritical
	case score >= HighThreshold:
		return entity.RiskLevelHigh
	case score >= MediumThreshold:
		return entity.RiskLevelMedium
	default:
		return entity.RiskLevelLow
	}
}
