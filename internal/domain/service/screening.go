package service

// ScreeningService checks an account against PEP and sanctions sources
type ScreeningService interface {
	// IsPEP reports whether the account belongs to a politically exposed person
	IsPEP(accountID string) bool

	// IsSanctioned reports whether the account is on a sanctions list
	IsSanctioned(accountID string) bool
}

// KeywordScreening screens PEPs by identifier keywords and sanctions by a configured id list.
// Neither check consults a real PEP database or sanctions feed.
type KeywordScreening struct {
	heuristics *Heuristics
}

// NewKeywordScreening creates a new keyword-based screening service
func NewKeywordScreening(h *Heuristics) ScreeningService {
	return &KeywordScreening{heuristics: h}
}

// IsPEP reports whether the identifier carries a PEP keyword
func (s *KeywordScreening) IsPEP(accountID string) bool {
	return containsAny(accountID, s.heuristics.pepKeywords)
}

// IsSanctioned reports whether the identifier is on the configured sanctions list
func (s *KeywordScreening) IsSanctioned(accountID string) bool {
	_, ok := s.heuristics.sanctioned[accountID]
	return ok
}
