package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/repository"
	"aml-graph-analyzer/internal/infrastructure/config"
	"aml-graph-analyzer/internal/infrastructure/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cycle indicator tags
const (
	IndicatorRapidValueDecrease = "rapid_value_decrease"
	IndicatorAutomatedBehavior  = "automated_behavior"
	IndicatorRegularTiming      = "regular_timing"
	IndicatorValueLoss          = "value_loss"
)

const (
	minCycleHops         = 2
	automatedCVThreshold = 0.05
	regularTimingRatio   = 0.2
)

// CycleDetector finds circular flows where every hop meets an amount floor
type CycleDetector struct {
	store     repository.GraphStore
	minAmount decimal.Decimal
	maxLength int
	limit     int
	logger    *logger.Logger
}

// NewCycleDetector creates a new cycle detector
func NewCycleDetector(store repository.GraphStore, cfg *config.AnalysisConfig, logger *logger.Logger) *CycleDetector {
	maxLength := cfg.CycleMaxLength
	if maxLength < minCycleHops {
		maxLength = 6
	}
	limit := cfg.CycleLimit
	if limit <= 0 {
		limit = 50
	}
	return &CycleDetector{
		store:     store,
		minAmount: decimal.NewFromFloat(cfg.CycleMinAmount),
		maxLength: maxLength,
		limit:     limit,
		logger:    logger.WithComponent("cycle-detector"),
	}
}

// Detect returns cycles ranked by total amount. An empty accountID scans the whole graph;
// otherwise only cycles through the account are returned, rotated to start at it.
func (d *CycleDetector) Detect(ctx context.Context, accountID string) ([]entity.CycleFinding, error) {
	paths, err := d.store.FindCycles(ctx, accountID, d.minAmount, d.maxLength, d.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find cycles: %w", err)
	}

	seen := make(map[string]struct{}, len(paths))
	findings := make([]entity.CycleFinding, 0, len(paths))
	for _, p := range paths {
		if !d.valid(p) {
			d.logger.Debug("Skipping path that is not a qualifying cycle",
				zap.Strings("accounts", p.Accounts))
			continue
		}
		if accountID != "" {
			var ok bool
			if p, ok = rotateTo(p, accountID); !ok {
				continue
			}
		}
		key := cycleKey(p)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		findings = append(findings, AnnotateCycle(p))
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].TotalAmount.GreaterThan(findings[j].TotalAmount)
	})
	if len(findings) > d.limit {
		findings = findings[:d.limit]
	}
	return findings, nil
}

// valid checks length bounds, closure, simplicity and the amount floor on every hop
func (d *CycleDetector) valid(p entity.Path) bool {
	hops := p.Hops()
	if hops < minCycleHops || hops > d.maxLength || len(p.Accounts) != hops+1 || !p.IsClosed() {
		return false
	}
	visited := make(map[string]struct{}, hops)
	for i, e := range p.Edges {
		if e.Amount.LessThan(d.minAmount) {
			return false
		}
		if e.Sender != p.Accounts[i] || e.Receiver != p.Accounts[i+1] {
			return false
		}
		if _, dup := visited[p.Accounts[i]]; dup {
			return false
		}
		visited[p.Accounts[i]] = struct{}{}
	}
	return true
}

// AnnotateCycle computes the value-loss, automation and timing annotations of a cycle
func AnnotateCycle(p entity.Path) entity.CycleFinding {
	finding := entity.CycleFinding{
		Accounts:    p.Accounts,
		Edges:       p.Edges,
		Length:      p.Hops(),
		TotalAmount: p.TotalAmount(),
		Indicators:  []string{},
	}
	if len(p.Edges) == 0 {
		return finding
	}

	first := p.Edges[0].AmountFloat()
	last := p.Edges[len(p.Edges)-1].AmountFloat()
	if first > 0 {
		finding.ValueLossPercent = (first - last) / first * 100
	}
	finding.RapidValueDecrease = IsRapidValueDecrease(first, last)

	amounts := make([]float64, 0, len(p.Edges))
	timestamps := make([]int64, 0, len(p.Edges))
	for _, e := range p.Edges {
		amounts = append(amounts, e.AmountFloat())
		timestamps = append(timestamps, e.Timestamp)
	}
	if m := mean(amounts); m > 0 {
		finding.AutomatedBehavior = stddev(amounts)/m < automatedCVThreshold
	}
	if gaps := timeGaps(timestamps); len(gaps) >= 2 {
		if m := mean(gaps); m > 0 {
			finding.RegularTiming = stddev(gaps) < regularTimingRatio*m
		}
	}

	if finding.ValueLossPercent > 0 {
		finding.Indicators = append(finding.Indicators, IndicatorValueLoss)
	}
	if finding.RapidValueDecrease {
		finding.Indicators = append(finding.Indicators, IndicatorRapidValueDecrease)
	}
	if finding.AutomatedBehavior {
		finding.Indicators = append(finding.Indicators, IndicatorAutomatedBehavior)
	}
	if finding.RegularTiming {
		finding.Indicators = append(finding.Indicators, IndicatorRegularTiming)
	}
	return finding
}

// IsRapidValueDecrease reports a layering signal: the first hop carries more than twice the last
func IsRapidValueDecrease(first, last float64) bool {
	return first > 2*last
}

// rotateTo rotates a closed path so that it starts and ends at accountID
func rotateTo(p entity.Path, accountID string) (entity.Path, bool) {
	hops := p.Hops()
	for i := 0; i < hops; i++ {
		if p.Accounts[i] != accountID {
			continue
		}
		if i == 0 {
			return p, true
		}
		rotated := entity.Path{
			Accounts: make([]string, 0, hops+1),
			Edges:    make([]entity.Transaction, 0, hops),
		}
		for k := 0; k < hops; k++ {
			rotated.Accounts = append(rotated.Accounts, p.Accounts[(i+k)%hops])
			rotated.Edges = append(rotated.Edges, p.Edges[(i+k)%hops])
		}
		rotated.Accounts = append(rotated.Accounts, accountID)
		return rotated, true
	}
	return p, false
}

// cycleKey identifies a cycle independently of its starting point
func cycleKey(p entity.Path) string {
	hops := p.Hops()
	keys := make([]string, hops)
	for i, e := range p.Edges {
		keys[i] = fmt.Sprintf("%s>%s@%d:%s", e.Sender, e.Receiver, e.Timestamp, e.Amount.String())
	}
	start := 0
	for i := 1; i < hops; i++ {
		if keys[i] < keys[start] {
			start = i
		}
	}
	ordered := append(keys[start:], keys[:start]...)
	return strings.Join(ordered, "|")
}
