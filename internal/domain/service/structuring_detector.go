package service

import (
	"context"
	"fmt"
	"sort"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/repository"
	"aml-graph-analyzer/internal/infrastructure/config"
	"aml-graph-analyzer/internal/infrastructure/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Structuring indicator tags
const (
	IndicatorRapidCashOut = "rapid_cash_out"
	IndicatorOutflowHeavy = "outflow_imbalance"
)

const (
	nearThresholdMinOps = 3
	rapidCashOutMinOps  = 5
	cashOutWindow       = 7 * 24 * 60 * 60
	highCashVolume      = 500000
	highCashOpsCount    = 20
)

// StructuringDetector analyzes cash-in and cash-out operations for threshold avoidance
type StructuringDetector struct {
	store        repository.GraphStore
	thresholds   []float64
	minOps       int
	limit        int
	historyLimit int
	logger       *logger.Logger
}

// NewStructuringDetector creates a new structuring detector
func NewStructuringDetector(store repository.GraphStore, cfg *config.AnalysisConfig, logger *logger.Logger) *StructuringDetector {
	thresholds := cfg.ReportingThresholds
	if len(thresholds) == 0 {
		thresholds = []float64{10000, 5000, 3000}
	}
	minOps := cfg.StructuringMinOps
	if minOps <= 0 {
		minOps = 5
	}
	limit := cfg.StructuringLimit
	if limit <= 0 {
		limit = 100
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 || historyLimit > MaxHistoryWindow {
		historyLimit = MaxHistoryWindow
	}
	return &StructuringDetector{
		store:        store,
		thresholds:   thresholds,
		minOps:       minOps,
		limit:        limit,
		historyLimit: historyLimit,
		logger:       logger.WithComponent("structuring-detector"),
	}
}

// AnalyzeAccount summarizes the cash operations in an account's history
func (d *StructuringDetector) AnalyzeAccount(accountID string, history []entity.Transaction) *entity.StructuringFinding {
	finding := &entity.StructuringFinding{
		AccountID:     accountID,
		CashInVolume:  decimal.Zero,
		CashOutVolume: decimal.Zero,
		TotalVolume:   decimal.Zero,
		Indicators:    []string{},
	}

	ops := make([]entity.Transaction, 0, len(history))
	for _, tx := range history {
		if tx.Type.IsCash() {
			ops = append(ops, tx)
		}
	}
	if len(ops) == 0 {
		return finding
	}
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Timestamp < ops[j].Timestamp })

	cashOutTimes := make([]int64, 0, len(ops))
	nearByThreshold := make(map[float64]int, len(d.thresholds))
	nearAny := 0
	for _, op := range ops {
		switch op.Type {
		case entity.TransactionTypeCashIn:
			finding.CashInCount++
			finding.CashInVolume = finding.CashInVolume.Add(op.Amount)
		case entity.TransactionTypeCashOut:
			finding.CashOutCount++
			finding.CashOutVolume = finding.CashOutVolume.Add(op.Amount)
			cashOutTimes = append(cashOutTimes, op.Timestamp)
		}

		amount := op.AmountFloat()
		near := false
		for _, t := range d.thresholds {
			if amount >= t*0.9 && amount < t {
				nearByThreshold[t]++
				near = true
			}
		}
		if near {
			nearAny++
		}
	}

	finding.TotalVolume = finding.CashInVolume.Add(finding.CashOutVolume)
	finding.NearThreshold = nearAny
	finding.OperationsCount = len(ops)
	finding.FirstOperation = ops[0].Timestamp
	finding.LastOperation = ops[len(ops)-1].Timestamp

	for _, t := range d.thresholds {
		if nearByThreshold[t] >= nearThresholdMinOps {
			finding.Indicators = append(finding.Indicators, fmt.Sprintf("near_threshold_%.0f", t))
		}
	}
	if maxInWindow(cashOutTimes, cashOutWindow) >= rapidCashOutMinOps {
		finding.Indicators = append(finding.Indicators, IndicatorRapidCashOut)
	}
	finding.IsStructuring = len(finding.Indicators) > 0

	score := 0.0
	if finding.TotalVolume.GreaterThan(decimal.NewFromInt(highCashVolume)) {
		score += 0.3
	}
	if finding.OperationsCount > highCashOpsCount {
		score += 0.2
	}
	score += 0.1 * float64(len(finding.Indicators))
	if finding.CashOutVolume.GreaterThan(finding.CashInVolume.Mul(decimal.NewFromInt(2))) {
		score += 0.2
		finding.Indicators = append(finding.Indicators, IndicatorOutflowHeavy)
	}
	finding.RiskScore = clamp01(score)

	return finding
}

// Scan analyzes every account with at least the configured number of cash operations
func (d *StructuringDetector) Scan(ctx context.Context) ([]entity.StructuringFinding, error) {
	accounts, err := d.store.FindCashIntensiveAccounts(ctx, d.minOps, d.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find cash intensive accounts: %w", err)
	}

	findings := make([]entity.StructuringFinding, 0, len(accounts))
	for _, accountID := range accounts {
		history, err := d.store.GetAccountHistory(ctx, accountID, d.historyLimit)
		if err != nil {
			d.logger.Warn("Failed to get account history, skipping account",
				zap.String("account_id", accountID),
				zap.Error(err))
			continue
		}
		finding := d.AnalyzeAccount(accountID, history)
		if finding.IsStructuring {
			findings = append(findings, *finding)
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].RiskScore > findings[j].RiskScore
	})
	return findings, nil
}

// maxInWindow returns the largest number of sorted timestamps within any window of the given width
func maxInWindow(timestamps []int64, window int64) int {
	best, start := 0, 0
	for end := range timestamps {
		for timestamps[end]-timestamps[start] > window {
			start++
		}
		if n := end - start + 1; n > best {
			best = n
		}
	}
	return best
}
