package service

import (
	"sort"
	"strings"

	"aml-graph-analyzer/internal/infrastructure/config"
)

// Heuristics holds the jurisdiction sets and keyword lists used by lexical classification.
// The lists come from configuration and are known approximations, not registry lookups.
type Heuristics struct {
	offshore map[string]struct{}
	highRisk map[string]struct{}

	shellKeywords      []string
	offshoreKeywords   []string
	financialKeywords  []string
	corporateKeywords  []string
	cryptoKeywords     []string
	corporateStructure []string
	shellLikeKeywords  []string
	cryptoCounterparty []string
	pepKeywords        []string
	sanctioned         map[string]struct{}
}

// NewHeuristics builds the heuristic lookup tables from configuration
func NewHeuristics(cfg *config.HeuristicsConfig) *Heuristics {
	return &Heuristics{
		offshore:           toSet(cfg.OffshoreJurisdictions, true),
		highRisk:           toSet(cfg.HighRiskJurisdictions, true),
		shellKeywords:      upperAll(cfg.ShellKeywords),
		offshoreKeywords:   upperAll(cfg.OffshoreKeywords),
		financialKeywords:  upperAll(cfg.FinancialKeywords),
		corporateKeywords:  upperAll(cfg.CorporateKeywords),
		cryptoKeywords:     upperAll(cfg.CryptoKeywords),
		corporateStructure: upperAll(cfg.CorporateStructure),
		shellLikeKeywords:  upperAll(cfg.ShellLikeKeywords),
		cryptoCounterparty: upperAll(cfg.CryptoCounterparty),
		pepKeywords:        upperAll(cfg.PEPKeywords),
		sanctioned:         toSet(cfg.SanctionedAccounts, false),
	}
}

// DefaultHeuristics builds heuristics from the built-in defaults
func DefaultHeuristics() *Heuristics {
	return NewHeuristics(&config.Default().Heuristics)
}

// IsOffshoreJurisdiction reports whether code is in the offshore set
func (h *Heuristics) IsOffshoreJurisdiction(code string) bool {
	_, ok := h.offshore[code]
	return ok
}

// IsHighRiskJurisdiction reports whether code is in the high-risk set
func (h *Heuristics) IsHighRiskJurisdiction(code string) bool {
	_, ok := h.highRisk[code]
	return ok
}

// IsShellLike reports whether an identifier carries shell-company keywords
func (h *Heuristics) IsShellLike(accountID string) bool {
	return containsAny(accountID, h.shellLikeKeywords)
}

// IsCryptoCounterparty reports whether an identifier carries crypto-exchange keywords
func (h *Heuristics) IsCryptoCounterparty(accountID string) bool {
	return containsAny(accountID, h.cryptoCounterparty)
}

// HasCorporateStructure reports whether an identifier suggests a corporate structure
func (h *Heuristics) HasCorporateStructure(accountID string) bool {
	return containsAny(accountID, h.corporateStructure)
}

// ShellKeywords returns the upper-case shell-like keywords
func (h *Heuristics) ShellKeywords() []string {
	return append([]string(nil), h.shellLikeKeywords...)
}

// ShellKeywordsIn returns the shell-like keywords found in an identifier
func (h *Heuristics) ShellKeywordsIn(accountID string) []string {
	upper := strings.ToUpper(accountID)
	var found []string
	for _, kw := range h.shellLikeKeywords {
		if strings.Contains(upper, kw) {
			found = append(found, kw)
		}
	}
	return found
}

func containsAny(accountID string, keywords []string) bool {
	upper := strings.ToUpper(accountID)
	for _, kw := range keywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

func toSet(values []string, upper bool) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if upper {
			v = strings.ToUpper(v)
		}
		set[v] = struct{}{}
	}
	return set
}

func upperAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToUpper(v))
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
