package service

import (
	"fmt"
	"sort"
	"time"

	"aml-graph-analyzer/internal/domain/entity"

	"github.com/shopspring/decimal"
)

const (
	descNoTransactions      = "No transactions"
	descInsufficientNetwork = "Insufficient network data"
	descAnalysisFailed      = "Analysis failed"
)

// CentralityScores holds the centrality measures of one node in a bounded subgraph
type CentralityScores struct {
	Betweenness float64
	Closeness   float64
	Degree      int
}

// CentralityCalculator computes centrality measures for an account over its neighborhood.
// The boolean result is false when the account is not part of the subgraph.
type CentralityCalculator interface {
	Compute(neighborhood *entity.Neighborhood, accountID string) (CentralityScores, bool)
}

// FactorCalculator computes the seven risk factors from a transaction window, a local
// subgraph and a profile. Every method is a pure function of its arguments.
type FactorCalculator struct {
	heuristics *Heuristics
	classifier *EntityClassifier
	centrality CentralityCalculator
	thresholds []float64
}

// NewFactorCalculator creates a new factor calculator
func NewFactorCalculator(h *Heuristics, classifier *EntityClassifier, centrality CentralityCalculator, thresholds []float64) *FactorCalculator {
	if len(thresholds) == 0 {
		thresholds = []float64{10000, 5000, 3000}
	}
	return &FactorCalculator{
		heuristics: h,
		classifier: classifier,
		centrality: centrality,
		thresholds: thresholds,
	}
}

func newFactor(name string, score float64, description string, evidence []entity.Evidence) entity.RiskFactor {
	if evidence == nil {
		evidence = []entity.Evidence{}
	}
	return entity.RiskFactor{
		Name:        name,
		Score:       clamp01(score),
		Weight:      entity.FactorWeights[name],
		Description: description,
		Evidence:    evidence,
	}
}

// EmptyFactor returns a zero-scored factor with no evidence
func EmptyFactor(name, description string) entity.RiskFactor {
	return newFactor(name, 0, description, nil)
}

// FailedFactor returns a zero-scored factor carrying an analysis-failed note
func FailedFactor(name string, cause error) entity.RiskFactor {
	text := "analysis failed"
	params := map[string]any{}
	if cause != nil {
		text = fmt.Sprintf("analysis failed: %v", cause)
		params["error"] = cause.Error()
	}
	return newFactor(name, 0, descAnalysisFailed, []entity.Evidence{{
		Kind:   entity.EvidenceAnalysisFailed,
		Params: params,
		Text:   text,
	}})
}

// Velocity scores transaction frequency per day
func (c *FactorCalculator) Velocity(txs []entity.Transaction) entity.RiskFactor {
	if len(txs) == 0 {
		return EmptyFactor(entity.FactorVelocity, descNoTransactions)
	}

	daily := make(map[string]int)
	for _, tx := range txs {
		daily[tx.Time().Format(time.DateOnly)]++
	}
	counts := make([]float64, 0, len(daily))
	maxDaily := 0
	for _, n := range daily {
		counts = append(counts, float64(n))
		if n > maxDaily {
			maxDaily = n
		}
	}
	avgDaily := mean(counts)

	var evidence []entity.Evidence
	score := 0.0

	if avgDaily > 50 {
		score += 0.4
		evidence = append(evidence, entity.Evidence{
			Kind:   entity.EvidenceHighDailyAverage,
			Params: map[string]any{"average_daily": avgDaily},
			Text:   fmt.Sprintf("High average daily transactions: %.1f", avgDaily),
		})
	}
	if maxDaily > 100 {
		score += 0.3
		evidence = append(evidence, entity.Evidence{
			Kind:   entity.EvidencePeakDailyCount,
			Params: map[string]any{"max_daily": maxDaily},
			Text:   fmt.Sprintf("Peak daily transactions: %d", maxDaily),
		})
	}
	if float64(maxDaily) > avgDaily*5 {
		score += 0.3
		evidence = append(evidence, entity.Evidence{
			Kind:   entity.EvidenceTransactionBurst,
			Params: map[string]any{"max_daily": maxDaily, "average_daily": avgDaily},
			Text:   "Unusual transaction bursts detected",
		})
	}

	return newFactor(entity.FactorVelocity, score, "Transaction frequency and velocity patterns", evidence)
}

// AmountPattern scores structuring, round amounts, volatility and smurfing
func (c *FactorCalculator) AmountPattern(txs []entity.Transaction) entity.RiskFactor {
	if len(txs) == 0 {
		return EmptyFactor(entity.FactorAmountPattern, descNoTransactions)
	}

	amounts := make([]float64, 0, len(txs))
	round := 0
	thousand := decimal.NewFromInt(1000)
	for _, tx := range txs {
		amounts = append(amounts, tx.AmountFloat())
		if tx.Amount.Mod(thousand).IsZero() {
			round++
		}
	}
	n := float64(len(amounts))

	var evidence []entity.Evidence
	score := 0.0

	for _, threshold := range c.thresholds {
		near := 0
		for _, a := range amounts {
			if a >= threshold*0.9 && a < threshold {
				near++
			}
		}
		if near > 5 {
			score += 0.3
			evidence = append(evidence, entity.Evidence{
				Kind:   entity.EvidenceNearThreshold,
				Params: map[string]any{"threshold": threshold, "count": near},
				Text:   fmt.Sprintf("%d transactions near $%.0f threshold", near, threshold),
			})
		}
	}

	if float64(round)/n > 0.5 {
		score += 0.2
		evidence = append(evidence, entity.Evidence{
			Kind:   entity.EvidenceRoundAmounts,
			Params: map[string]any{"fraction": float64(round) / n},
			Text:   fmt.Sprintf("High percentage of round amounts: %.1f%%", float64(round)/n*100),
		})
	}

	if variance(amounts) > mean(amounts)*100 {
		score += 0.2
		evidence = append(evidence, entity.Evidence{
			Kind:   entity.EvidenceAmountVolatility,
			Params: map[string]any{"variance": variance(amounts), "mean": mean(amounts)},
			Text:   "High variance in transaction amounts",
		})
	}

	if largest := maxInt(histogram(amounts, 50)); float64(largest) > n*0.3 {
		score += 0.3
		evidence = append(evidence, entity.Evidence{
			Kind:   entity.EvidenceSmurfing,
			Params: map[string]any{"largest_bin": largest},
			Text:   "Potential smurfing pattern detected",
		})
	}

	return newFactor(entity.FactorAmountPattern, score, "Analysis of transaction amount patterns for structuring", evidence)
}

// NetworkCentrality scores the account's position in its local subgraph
func (c *FactorCalculator) NetworkCentrality(accountID string, neighborhood *entity.Neighborhood) entity.RiskFactor {
	if neighborhood.IsEmpty() || c.centrality == nil {
		return EmptyFactor(entity.FactorNetworkCentrality, descInsufficientNetwork)
	}

	var evidence []entity.Evidence
	score := 0.0

	scores, ok := c.centrality.Compute(neighborhood, accountID)
	if ok {
		if scores.Betweenness > 0.1 {
			score += 0.4
			evidence = append(evidence, entity.Evidence{
				Kind:   entity.EvidenceHighBetweenness,
				Params: map[string]any{"betweenness": scores.Betweenness},
				Text:   fmt.Sprintf("High betweenness centrality: %.3f", scores.Betweenness),
			})
		}
		if scores.Closeness > 0.5 {
			score += 0.3
			evidence = append(evidence, entity.Evidence{
				Kind:   entity.EvidenceHighCloseness,
				Params: map[string]any{"closeness": scores.Closeness},
				Text:   fmt.Sprintf("High closeness centrality: %.3f", scores.Closeness),
			})
		}
		if scores.Degree > 20 {
			score += 0.3
			evidence = append(evidence, entity.Evidence{
				Kind:   entity.EvidenceHighDegree,
				Params: map[string]any{"degree": scores.Degree},
				Text:   fmt.Sprintf("High degree centrality: %d", scores.Degree),
			})
		}
	}

	return newFactor(entity.FactorNetworkCentrality, score, "Position and influence in transaction network", evidence)
}

// Geographic scores the account's and its counterparties' jurisdictions
func (c *FactorCalculator) Geographic(profile *entity.AccountProfile, txs []entity.Transaction) entity.RiskFactor {
	var evidence []entity.Evidence
	score := 0.0

	if c.heuristics.IsOffshoreJurisdiction(profile.JurisdictionCode) {
		score += 0.5
		evidence = append(evidence, entity.Evidence{
			Kind:   entity.EvidenceOffshoreJurisdiction,
			Params: map[string]any{"jurisdiction": profile.JurisdictionCode},
			Text:   fmt.Sprintf("Account in offshore jurisdiction: %s", profile.JurisdictionCode),
		})
	}
	if c.heuristics.IsHighRiskJurisdiction(profile.JurisdictionCode) {
		score += 0.7
		evidence = append(evidence, entity.Evidence{
			Kind:   entity.EvidenceHighRiskJurisdiction,
			Params: map[string]any{"jurisdiction": profile.JurisdictionCode},
			Text:   fmt.Sprintf("Account in high-risk country: %s", profile.JurisdictionCode),
		})
	}

	if len(txs) > 0 {
		jurisdictions := make(map[string]struct{})
		offshore := make(map[string]struct{})
		highRisk := make(map[string]struct{})
		for _, tx := range txs {
			code := c.classifier.Jurisdiction(tx.Counterparty(profile.AccountID))
			jurisdictions[code] = struct{}{}
			if c.heuristics.IsOffshoreJurisdiction(code) {
				offshore[code] = struct{}{}
			}
			if c.heuristics.IsHighRiskJurisdiction(code) {
				highRisk[code] = struct{}{}
			}
		}
		total := float64(len(jurisdictions))

		if len(offshore) > 0 {
			score += 0.3 * float64(len(offshore)) / total
			codes := sortedKeys(offshore)
			evidence = append(evidence, entity.Evidence{
				Kind:   entity.EvidenceOffshoreCounterparty,
				Params: map[string]any{"jurisdictions": codes},
				Text:   fmt.Sprintf("Transactions with offshore entities: %v", codes),
			})
		}
		if len(highRisk) > 0 {
			score += 0.4 * float64(len(highRisk)) / total
			codes := sortedKeys(highRisk)
			evidence = append(evidence, entity.Evidence{
				Kind:   entity.EvidenceHighRiskCounterparty,
				Params: map[string]any{"jurisdictions": codes},
				Text:   fmt.Sprintf("Transactions with high-risk countries: %v", codes),
			})
		}
	}

	return newFactor(entity.FactorGeographic, score, "Geographic risk based on jurisdictions involved", evidence)
}

// Structural scores shell-company and pass-through indicators
func (c *FactorCalculator) Structural(profile *entity.AccountProfile) entity.RiskFactor {
	var evidence []entity.Evidence
	score := 0.0

	switch profile.EntityType {
	case entity.EntityTypeShellCompany:
		score += 0.8
		evidence = append(evidence, entity.Evidence{Kind: entity.EvidenceShellCompany, Text: "Identified as shell company"})
	case entity.EntityTypeOffshoreEntity:
		score += 0.6
		evidence = append(evidence, entity.Evidence{Kind: entity.EvidenceOffshoreEntity, Text: "Identified as offshore entity"})
	}

	if c.heuristics.HasCorporateStructure(profile.AccountID) {
		score += 0.3
		evidence = append(evidence, entity.Evidence{Kind: entity.EvidenceCorporateName, Text: "Account name suggests corporate structure"})
	}

	inflow, outflow := profile.InflowFloat(), profile.OutflowFloat()

	if profile.TransactionCount < 10 && outflow > 100000 {
		score += 0.4
		evidence = append(evidence, entity.Evidence{
			Kind:   entity.EvidenceHighValueLowFrequency,
			Params: map[string]any{"transaction_count": profile.TransactionCount, "total_outflow": outflow},
			Text:   "High-value, low-frequency transaction pattern",
		})
	}

	if inflow > 0 && outflow > 0 {
		lo, hi := inflow, outflow
		if lo > hi {
			lo, hi = hi, lo
		}
		if ratio := lo / hi; ratio > 0.9 {
			score += 0.5
			evidence = append(evidence, entity.Evidence{
				Kind:   entity.EvidencePassThrough,
				Params: map[string]any{"ratio": ratio},
				Text:   "Pass-through transaction pattern detected",
			})
		}
	}

	return newFactor(entity.FactorStructural, score, "Structural indicators of shell companies and pass-through entities", evidence)
}

// Temporal scores night, weekend, rapid-sequence and automated timing patterns
func (c *FactorCalculator) Temporal(txs []entity.Transaction) entity.RiskFactor {
	if len(txs) == 0 {
		return EmptyFactor(entity.FactorTemporal, descNoTransactions)
	}

	n := float64(len(txs))
	night, weekend := 0, 0
	hours := make([]float64, 24)
	timestamps := make([]int64, 0, len(txs))
	for _, tx := range txs {
		t := tx.Time()
		if t.Hour() >= 22 || t.Hour() <= 6 {
			night++
		}
		if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
			weekend++
		}
		hours[t.Hour()]++
		timestamps = append(timestamps, tx.Timestamp)
	}

	var evidence []entity.Evidence
	score := 0.0

	if float64(night)/n > 0.3 {
		score += 0.3
		evidence = append(evidence, entity.Evidence{
			Kind:   entity.EvidenceNightActivity,
			Params: map[string]any{"fraction": float64(night) / n},
			Text:   fmt.Sprintf("High percentage of night transactions: %.1f%%", float64(night)/n*100),
		})
	}
	if float64(weekend)/n > 0.4 {
		score += 0.2
		evidence = append(evidence, entity.Evidence{
			Kind:   entity.EvidenceWeekendActivity,
			Params: map[string]any{"fraction": float64(weekend) / n},
			Text:   fmt.Sprintf("High weekend activity: %.1f%%", float64(weekend)/n*100),
		})
	}

	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	rapid := 0
	for _, gap := range timeGaps(timestamps) {
		if gap < 60 {
			rapid++
		}
	}
	if rapid > 10 {
		score += 0.4
		evidence = append(evidence, entity.Evidence{
			Kind:   entity.EvidenceRapidSequence,
			Params: map[string]any{"count": rapid},
			Text:   fmt.Sprintf("Rapid transaction sequences detected: %d", rapid),
		})
	}

	if len(txs) > 50 {
		if v := variance(hours); v < 2 {
			score += 0.3
			evidence = append(evidence, entity.Evidence{
				Kind:   entity.EvidenceRegularTiming,
				Params: map[string]any{"hourly_variance": v},
				Text:   "Highly regular transaction timing pattern",
			})
		}
	}

	return newFactor(entity.FactorTemporal, score, "Temporal patterns in transaction timing", evidence)
}

// Counterparty scores shell-like, crypto and concentrated counterparties
func (c *FactorCalculator) Counterparty(accountID string, txs []entity.Transaction) entity.RiskFactor {
	if len(txs) == 0 {
		return EmptyFactor(entity.FactorCounterparty, descNoTransactions)
	}

	counterparties := make(map[string]struct{})
	for _, tx := range txs {
		counterparties[tx.Counterparty(accountID)] = struct{}{}
	}

	shell, crypto := 0, 0
	for party := range counterparties {
		if c.heuristics.IsShellLike(party) {
			shell++
		}
		if c.heuristics.IsCryptoCounterparty(party) {
			crypto++
		}
	}

	var evidence []entity.Evidence
	score := 0.0

	if shell > 0 {
		score += 0.4 * float64(shell) / float64(len(counterparties))
		evidence = append(evidence, entity.Evidence{
			Kind:   entity.EvidenceShellCounterparties,
			Params: map[string]any{"count": shell, "distinct_counterparties": len(counterparties)},
			Text:   fmt.Sprintf("Transactions with potential shell companies: %d", shell),
		})
	}
	if crypto > 0 {
		score += 0.3
		evidence = append(evidence, entity.Evidence{
			Kind:   entity.EvidenceCryptoCounterparties,
			Params: map[string]any{"count": crypto},
			Text:   fmt.Sprintf("Cryptocurrency exchange transactions: %d", crypto),
		})
	}
	if len(counterparties) < 5 && len(txs) > 50 {
		score += 0.3
		evidence = append(evidence, entity.Evidence{
			Kind:   entity.EvidenceConcentration,
			Params: map[string]any{"distinct_counterparties": len(counterparties), "transactions": len(txs)},
			Text:   "High transaction concentration with few counterparties",
		})
	}

	return newFactor(entity.FactorCounterparty, score, "Risk assessment of transaction counterparties", evidence)
}
