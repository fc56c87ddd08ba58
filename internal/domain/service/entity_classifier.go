package service

import (
	"strings"

	"aml-graph-analyzer/internal/domain/entity"
)

// entityRule maps a keyword list to an entity type. Rules are checked in order.
type entityRule struct {
	keywords   []string
	entityType entity.EntityType
}

// EntityClassifier derives a jurisdiction code and an entity type from an account identifier.
//
// The jurisdiction is the first two characters of the identifier. This is a lexical
// approximation and is not backed by any registry.
type EntityClassifier struct {
	heuristics *Heuristics
	rules      []entityRule
}

// NewEntityClassifier creates a new entity classifier
func NewEntityClassifier(h *Heuristics) *EntityClassifier {
	return &EntityClassifier{
		heuristics: h,
		rules: []entityRule{
			{keywords: h.shellKeywords, entityType: entity.EntityTypeShellCompany},
			{keywords: h.offshoreKeywords, entityType: entity.EntityTypeOffshoreEntity},
			{keywords: h.financialKeywords, entityType: entity.EntityTypeFinancialInstitution},
			{keywords: h.corporateKeywords, entityType: entity.EntityTypeCorporate},
			{keywords: h.cryptoKeywords, entityType: entity.EntityTypeCryptoExchange},
		},
	}
}

// Classify returns the jurisdiction code and entity type of an account identifier
func (c *EntityClassifier) Classify(accountID string) (string, entity.EntityType) {
	return c.Jurisdiction(accountID), c.EntityType(accountID)
}

// Jurisdiction returns the upper-cased first two runes, or XX for shorter identifiers
func (c *EntityClassifier) Jurisdiction(accountID string) string {
	runes := []rune(accountID)
	if len(runes) < 2 {
		return entity.UnknownJurisdiction
	}
	return strings.ToUpper(string(runes[:2]))
}

// EntityType returns the first matching entity type, Individual when nothing matches
func (c *EntityClassifier) EntityType(accountID string) entity.EntityType {
	if accountID == "" {
		return entity.EntityTypeUnknown
	}
	for _, rule := range c.rules {
		if containsAny(accountID, rule.keywords) {
			return rule.entityType
		}
	}
	return entity.EntityTypeIndividual
}

// IsOffshore reports whether an account is offshore-flagged by jurisdiction or entity type
func (c *EntityClassifier) IsOffshore(accountID string) bool {
	jurisdiction, entityType := c.Classify(accountID)
	return c.heuristics.IsOffshoreJurisdiction(jurisdiction) || entityType == entity.EntityTypeOffshoreEntity
}
