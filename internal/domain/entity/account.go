package entity

import (
	"github.com/shopspring/decimal"
)

// EntityType represents the lexical classification of an account holder
type EntityType string

const (
	EntityTypeIndividual           EntityType = "INDIVIDUAL"
	EntityTypeCorporate            EntityType = "CORPORATE"
	EntityTypeShellCompany         EntityType = "SHELL_COMPANY"
	EntityTypeOffshoreEntity       EntityType = "OFFSHORE_ENTITY"
	EntityTypeFinancialInstitution EntityType = "FINANCIAL_INSTITUTION"
	EntityTypeCryptoExchange       EntityType = "CRYPTOCURRENCY_EXCHANGE"
	EntityTypeUnknown              EntityType = "UNKNOWN"
)

// UnknownJurisdiction is used when no jurisdiction can be derived from an identifier
const UnknownJurisdiction = "XX"

// AccountProfile is a request-scoped snapshot of an account built from graph aggregates
type AccountProfile struct {
	AccountID            string          `json:"account_id"`
	JurisdictionCode     string          `json:"country_code"`
	EntityType           EntityType      `json:"entity_type"`
	IsPEP                bool            `json:"is_pep"`
	IsSanctioned         bool            `json:"is_sanctioned"`
	TotalInflow          decimal.Decimal `json:"total_inflow"`
	TotalOutflow         decimal.Decimal `json:"total_outflow"`
	TransactionCount     int             `json:"transaction_count"`
	UniqueCounterparties int             `json:"unique_counterparties"`
}

// InflowFloat returns the total inflow as float64
func (p *AccountProfile) InflowFloat() float64 {
	f, _ := p.TotalInflow.Float64()
	return f
}

// OutflowFloat returns the total outflow as float64
func (p *AccountProfile) OutflowFloat() float64 {
	f, _ := p.TotalOutflow.Float64()
	return f
}
