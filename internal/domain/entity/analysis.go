package entity

import (
	"time"
)

// AnalysisStatus describes how complete a comprehensive analysis is
type AnalysisStatus string

const (
	AnalysisStatusComplete    AnalysisStatus = "complete"
	AnalysisStatusDegraded    AnalysisStatus = "degraded"
	AnalysisStatusUnavailable AnalysisStatus = "unavailable"
)

// BranchStatus describes the outcome of a single analysis branch
type BranchStatus string

const (
	BranchStatusOK          BranchStatus = "ok"
	BranchStatusFailed      BranchStatus = "failed"
	BranchStatusUnavailable BranchStatus = "unavailable"
)

// Analysis branch names
const (
	BranchRiskScore     = "risk_score"
	BranchCycles        = "cycles"
	BranchShellNetworks = "shell_networks"
	BranchStructuring   = "structuring"
	BranchOffshore      = "offshore"
	BranchFlowTrace     = "flow_trace"
)

// OverallAssessment is the analyst-facing summary of a comprehensive analysis
type OverallAssessment struct {
	RiskLevel          RiskLevel `json:"risk_level"`
	RiskScore          float64   `json:"risk_score"`
	KeyConcerns        []string  `json:"key_concerns"`
	RecommendedActions []string  `json:"recommended_actions"`
}

// ComprehensiveAnalysis is the single structured result handed to the API layer.
// All slices are non-nil so the JSON form always carries every field.
type ComprehensiveAnalysis struct {
	AnalysisID        string                  `json:"analysis_id"`
	AccountID         string                  `json:"account_id"`
	Status            AnalysisStatus          `json:"status"`
	Branches          map[string]BranchStatus `json:"branches"`
	Profile           *AccountProfile         `json:"profile"`
	Assessment        *RiskAssessment         `json:"risk_assessment"`
	Cycles            []CycleFinding          `json:"cycles"`
	ShellNetworks     []ShellNetworkFinding   `json:"shell_networks"`
	Structuring       *StructuringFinding     `json:"structuring"`
	OffshoreFlows     []OffshoreFinding       `json:"offshore_flows"`
	FlowTrace         *FlowTrace              `json:"flow_trace"`
	OverallAssessment OverallAssessment       `json:"overall_assessment"`
	Timestamp         time.Time               `json:"timestamp"`
}

// AnalysisRequest is a request to analyze a single account, as received over messaging
type AnalysisRequest struct {
	RequestID string `json:"request_id"`
	AccountID string `json:"account_id"`
	ReplyTo   string `json:"reply_to,omitempty"`
}
