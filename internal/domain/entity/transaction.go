package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of money movement on an edge
type TransactionType string

const (
	TransactionTypeTransfer TransactionType = "TRANSFER"
	TransactionTypeCashIn   TransactionType = "CASH_IN"
	TransactionTypeCashOut  TransactionType = "CASH_OUT"
	TransactionTypePayment  TransactionType = "PAYMENT"
	TransactionTypeDebit    TransactionType = "DEBIT"
)

// IsCash reports whether the transaction type is a cash operation
func (t TransactionType) IsCash() bool {
	return t == TransactionTypeCashIn || t == TransactionTypeCashOut
}

// ParseTransactionType maps a relationship type to a TransactionType.
// Unknown types fall back to TRANSFER.
func ParseTransactionType(s string) TransactionType {
	switch TransactionType(s) {
	case TransactionTypeCashIn, TransactionTypeCashOut, TransactionTypePayment, TransactionTypeDebit:
		return TransactionType(s)
	default:
		return TransactionTypeTransfer
	}
}

// Transaction represents a directed, timestamped money movement between two accounts.
// Timestamp is in epoch seconds.
type Transaction struct {
	Sender    string          `json:"sender"`
	Receiver  string          `json:"receiver"`
	Type      TransactionType `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp int64           `json:"timestamp"`
	IsFraud   bool            `json:"is_fraud"`
}

// AmountFloat returns the amount as float64 for statistics
func (t Transaction) AmountFloat() float64 {
	f, _ := t.Amount.Float64()
	return f
}

// Time returns the transaction timestamp in UTC
func (t Transaction) Time() time.Time {
	return time.Unix(t.Timestamp, 0).UTC()
}

// IsOutgoing reports whether the transaction was sent by accountID
func (t Transaction) IsOutgoing(accountID string) bool {
	return t.Sender == accountID
}

// Counterparty returns the other side of the transaction from accountID's point of view
func (t Transaction) Counterparty(accountID string) string {
	if t.Sender == accountID {
		return t.Receiver
	}
	return t.Sender
}

// Neighborhood is the bounded local subgraph around an account
type Neighborhood struct {
	Nodes []string      `json:"nodes"`
	Edges []Transaction `json:"edges"`
}

// IsEmpty reports whether the neighborhood carries no usable edges
func (n *Neighborhood) IsEmpty() bool {
	return n == nil || len(n.Nodes) == 0 || len(n.Edges) == 0
}

// GraphAggregate represents dashboard-level counts over the whole graph
type GraphAggregate struct {
	TotalAccounts     int64 `json:"total_accounts"`
	TotalTransactions int64 `json:"total_transactions"`
}
