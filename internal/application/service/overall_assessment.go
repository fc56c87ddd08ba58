package service

import (
	"fmt"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/service"
)

// concernFactorScore is the factor score from which a factor is reported as a key concern
const concernFactorScore = 0.5

// BuildOverallAssessment summarizes an analysis into key concerns and recommended actions
func BuildOverallAssessment(a *entity.ComprehensiveAnalysis) entity.OverallAssessment {
	overall := entity.OverallAssessment{
		RiskLevel:          entity.RiskLevelLow,
		KeyConcerns:        []string{},
		RecommendedActions: []string{},
	}

	if a.Assessment != nil {
		overall.RiskLevel = a.Assessment.RiskLevel
		overall.RiskScore = a.Assessment.CompositeScore
		for _, f := range a.Assessment.Factors {
			if f.Score >= concernFactorScore {
				overall.KeyConcerns = append(overall.KeyConcerns,
					fmt.Sprintf("High %s risk (%.2f)", f.Name, f.Score))
			}
		}
	}

	if n := len(a.Cycles); n > 0 {
		overall.KeyConcerns = append(overall.KeyConcerns,
			fmt.Sprintf("Circular transaction flows detected: %d", n))
	}
	if n := len(a.ShellNetworks); n > 0 {
		overall.KeyConcerns = append(overall.KeyConcerns,
			fmt.Sprintf("Involvement in potential shell company networks: %d", n))
	}
	if a.Structuring != nil && a.Structuring.IsStructuring {
		overall.KeyConcerns = append(overall.KeyConcerns, "Cash structuring behavior detected")
	}
	if n := len(a.OffshoreFlows); n > 0 {
		overall.KeyConcerns = append(overall.KeyConcerns,
			fmt.Sprintf("High-value offshore transfers: %d", n))
	}
	if a.FlowTrace != nil {
		for _, p := range a.FlowTrace.SuspiciousPatterns {
			if p.Indicator == service.IndicatorRapidValueDecrease {
				overall.KeyConcerns = append(overall.KeyConcerns,
					fmt.Sprintf("Layering indicators in %d traced flow paths", p.PathCount))
			}
		}
	}
	if a.Profile != nil {
		if a.Profile.IsSanctioned {
			overall.KeyConcerns = append(overall.KeyConcerns, "Account matches sanctions list")
		}
		if a.Profile.IsPEP {
			overall.KeyConcerns = append(overall.KeyConcerns, "Politically exposed person")
		}
	}

	switch overall.RiskLevel {
	case entity.RiskLevelCritical:
		overall.RecommendedActions = append(overall.RecommendedActions,
			"File suspicious activity report",
			"Immediate manual review required",
			"Consider account restrictions")
	case entity.RiskLevelHigh:
		overall.RecommendedActions = append(overall.RecommendedActions,
			"Enhanced due diligence required",
			"Review transaction history manually")
	case entity.RiskLevelMedium:
		overall.RecommendedActions = append(overall.RecommendedActions,
			"Enhanced monitoring required")
	default:
		overall.RecommendedActions = append(overall.RecommendedActions,
			"Continued automated monitoring")
	}

	if a.Profile != nil && a.Profile.IsSanctioned {
		overall.RecommendedActions = append(overall.RecommendedActions, "Block transactions pending sanctions review")
	}
	if a.Profile != nil && a.Profile.IsPEP {
		overall.RecommendedActions = append(overall.RecommendedActions, "Apply PEP enhanced due diligence")
	}
	if a.Status != entity.AnalysisStatusComplete {
		overall.RecommendedActions = append(overall.RecommendedActions, "Re-run analysis once all data sources are available")
	}

	return overall
}
