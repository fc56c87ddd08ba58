package entity

import (
	"github.com/shopspring/decimal"
)

// Path is an ordered chain of accounts connected by transactions.
// len(Accounts) == len(Edges)+1 for a well-formed path.
type Path struct {
	Accounts []string      `json:"accounts"`
	Edges    []Transaction `json:"edges"`
}

// Hops returns the number of edges on the path
func (p Path) Hops() int {
	return len(p.Edges)
}

// IsClosed reports whether the path starts and ends at the same account
func (p Path) IsClosed() bool {
	return len(p.Accounts) > 1 && p.Accounts[0] == p.Accounts[len(p.Accounts)-1]
}

// TotalAmount sums all edge amounts on the path
func (p Path) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, e := range p.Edges {
		total = total.Add(e.Amount)
	}
	return total
}

// CycleFinding is a circular flow returning to its origin
type CycleFinding struct {
	Accounts           []string        `json:"accounts"`
	Edges              []Transaction   `json:"edges"`
	Length             int             `json:"length"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	ValueLossPercent   float64         `json:"value_loss_percent"`
	RapidValueDecrease bool            `json:"rapid_value_decrease"`
	AutomatedBehavior  bool            `json:"automated_behavior"`
	RegularTiming      bool            `json:"regular_timing"`
	Indicators         []string        `json:"suspicious_indicators"`
}

// ShellNetworkFinding is a two-hop chain routed through an intermediary
type ShellNetworkFinding struct {
	Source          string          `json:"source"`
	Intermediary    string          `json:"intermediary"`
	Destination     string          `json:"destination"`
	TotalFlow       decimal.Decimal `json:"total_flow"`
	TimeSpanSeconds int64           `json:"time_span_seconds"`
	ShellIndicators []string        `json:"shell_indicators"`
}

// StructuringFinding summarizes the cash behavior of a single account
type StructuringFinding struct {
	AccountID       string          `json:"account_id"`
	CashInCount     int             `json:"cash_in_count"`
	CashOutCount    int             `json:"cash_out_count"`
	CashInVolume    decimal.Decimal `json:"cash_in_volume"`
	CashOutVolume   decimal.Decimal `json:"cash_out_volume"`
	TotalVolume     decimal.Decimal `json:"total_volume"`
	NearThreshold   int             `json:"near_threshold_count"`
	IsStructuring   bool            `json:"is_structuring"`
	Indicators      []string        `json:"indicators"`
	RiskScore       float64         `json:"risk_score"`
	FirstOperation  int64           `json:"first_operation"`
	LastOperation   int64           `json:"last_operation"`
	OperationsCount int             `json:"operations_count"`
}

// OffshoreFlowType classifies a cross-jurisdiction edge
type OffshoreFlowType string

const (
	OffshoreFlowOutbound           OffshoreFlowType = "outbound_offshore"
	OffshoreFlowInbound            OffshoreFlowType = "inbound_offshore"
	OffshoreFlowOffshoreToOffshore OffshoreFlowType = "offshore_to_offshore"
	OffshoreFlowDomestic           OffshoreFlowType = "domestic_to_domestic"
)

// OffshoreFinding is a single classified high-value edge touching an offshore account
type OffshoreFinding struct {
	Sender               string           `json:"sender"`
	Receiver             string           `json:"receiver"`
	SenderJurisdiction   string           `json:"sender_jurisdiction"`
	ReceiverJurisdiction string           `json:"receiver_jurisdiction"`
	Amount               decimal.Decimal  `json:"amount"`
	Timestamp            int64            `json:"timestamp"`
	FlowType             OffshoreFlowType `json:"flow_type"`
	RiskIndicators       []string         `json:"risk_indicators"`
}

// FlowPath is a single traced forward path with its annotations
type FlowPath struct {
	Accounts    []string        `json:"accounts"`
	Edges       []Transaction   `json:"edges"`
	Depth       int             `json:"depth"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Indicators  []string        `json:"suspicious_indicators"`
}

// SuspiciousFlowPattern aggregates one indicator over all traced paths
type SuspiciousFlowPattern struct {
	Indicator string `json:"indicator"`
	PathCount int    `json:"path_count"`
}

// FlowEntitySummary counts the accounts touched by a trace by entity type and jurisdiction
type FlowEntitySummary struct {
	EntityTypes            map[EntityType]int `json:"entity_types"`
	Jurisdictions          map[string]int     `json:"jurisdictions"`
	OffshoreJurisdictions  []string           `json:"offshore_jurisdictions"`
	HighRiskJurisdictions  []string           `json:"high_risk_jurisdictions"`
	DistinctAccountsTraced int                `json:"distinct_accounts_traced"`
}

// FlowTrace is the result of tracing forward money flows from a seed account
type FlowTrace struct {
	SourceAccount      string                  `json:"source_account"`
	MaxDepth           int                     `json:"max_depth"`
	Threshold          decimal.Decimal         `json:"threshold"`
	Paths              []FlowPath              `json:"flow_paths"`
	SuspiciousPatterns []SuspiciousFlowPattern `json:"suspicious_patterns"`
	Entities           FlowEntitySummary       `json:"entity_analysis"`
}

// SuspectAccount ranks an account by high-value outflow and fraud-labelled transactions
type SuspectAccount struct {
	AccountID        string          `json:"account_id"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	TransactionCount int64           `json:"transaction_count"`
	FraudCount       int64           `json:"fraud_count"`
	SuspicionScore   float64         `json:"suspicion_score"`
}

// SuspicionScore is total amount in millions plus 0.5 per fraud-labelled transaction
func SuspicionScore(total decimal.Decimal, fraudCount int64) float64 {
	return total.Div(decimal.NewFromInt(1000000)).InexactFloat64() + float64(fraudCount)*0.5
}
