package entity

import (
	"time"
)

// RiskLevel represents the discrete risk band of a composite score
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// Risk factor names
const (
	FactorVelocity          = "velocity"
	FactorAmountPattern     = "amount_pattern"
	FactorNetworkCentrality = "network_centrality"
	FactorGeographic        = "geographic"
	FactorStructural        = "structural"
	FactorTemporal          = "temporal"
	FactorCounterparty      = "counterparty"
)

// FactorWeights holds the fixed weight of every risk factor. The weights sum to 1.0.
var FactorWeights = map[string]float64{
	FactorVelocity:          0.15,
	FactorAmountPattern:     0.20,
	FactorNetworkCentrality: 0.15,
	FactorGeographic:        0.10,
	FactorStructural:        0.15,
	FactorTemporal:          0.10,
	FactorCounterparty:      0.15,
}

// FactorOrder is the order factors are reported in
var FactorOrder = []string{
	FactorVelocity,
	FactorAmountPattern,
	FactorNetworkCentrality,
	FactorGeographic,
	FactorStructural,
	FactorTemporal,
	FactorCounterparty,
}

// EvidenceKind tags a structured finding
type EvidenceKind string

const (
	EvidenceHighDailyAverage      EvidenceKind = "high_daily_average"
	EvidencePeakDailyCount        EvidenceKind = "peak_daily_count"
	EvidenceTransactionBurst      EvidenceKind = "transaction_burst"
	EvidenceNearThreshold         EvidenceKind = "near_threshold"
	EvidenceRoundAmounts          EvidenceKind = "round_amounts"
	EvidenceAmountVolatility      EvidenceKind = "amount_volatility"
	EvidenceSmurfing              EvidenceKind = "smurfing"
	EvidenceHighBetweenness       EvidenceKind = "high_betweenness"
	EvidenceHighCloseness         EvidenceKind = "high_closeness"
	EvidenceHighDegree            EvidenceKind = "high_degree"
	EvidenceOffshoreJurisdiction  EvidenceKind = "offshore_jurisdiction"
	EvidenceHighRiskJurisdiction  EvidenceKind = "high_risk_jurisdiction"
	EvidenceOffshoreCounterparty  EvidenceKind = "offshore_counterparties"
	EvidenceHighRiskCounterparty  EvidenceKind = "high_risk_counterparties"
	EvidenceShellCompany          EvidenceKind = "shell_company"
	EvidenceOffshoreEntity        EvidenceKind = "offshore_entity"
	EvidenceCorporateName         EvidenceKind = "corporate_name"
	EvidenceHighValueLowFrequency EvidenceKind = "high_value_low_frequency"
	EvidencePassThrough           EvidenceKind = "pass_through"
	EvidenceNightActivity         EvidenceKind = "night_activity"
	EvidenceWeekendActivity       EvidenceKind = "weekend_activity"
	EvidenceRapidSequence         EvidenceKind = "rapid_sequence"
	EvidenceRegularTiming         EvidenceKind = "regular_timing"
	EvidenceShellCounterparties   EvidenceKind = "shell_counterparties"
	EvidenceCryptoCounterparties  EvidenceKind = "crypto_counterparties"
	EvidenceConcentration         EvidenceKind = "counterparty_concentration"
	EvidenceAnalysisFailed        EvidenceKind = "analysis_failed"
)

// Evidence is a structured, human-readable finding attached to a risk factor
type Evidence struct {
	Kind   EvidenceKind   `json:"kind"`
	Params map[string]any `json:"params,omitempty"`
	Text   string         `json:"text"`
}

// RiskFactor is the scored output of a single factor calculator.
// Score is always within [0, 1].
type RiskFactor struct {
	Name        string     `json:"name"`
	Score       float64    `json:"score"`
	Weight      float64    `json:"weight"`
	Description string     `json:"description"`
	Evidence    []Evidence `json:"evidence"`
}

// RiskAssessment is the composite result of scoring an account
type RiskAssessment struct {
	AccountID      string          `json:"account_id"`
	CompositeScore float64         `json:"risk_score"`
	RiskLevel      RiskLevel       `json:"risk_level"`
	Factors        []RiskFactor    `json:"risk_factors"`
	Profile        *AccountProfile `json:"profile"`
	Timestamp      time.Time       `json:"timestamp"`
}
