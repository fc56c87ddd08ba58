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

// ShellNetworkDetector finds two-hop chains routed through shell-like accounts
type ShellNetworkDetector struct {
	store      repository.GraphStore
	heuristics *Heuristics
	minAmount  decimal.Decimal
	maxTimeGap int64
	limit      int
	logger     *logger.Logger
}

// NewShellNetworkDetector creates a new shell network detector
func NewShellNetworkDetector(store repository.GraphStore, h *Heuristics, cfg *config.AnalysisConfig, logger *logger.Logger) *ShellNetworkDetector {
	limit := cfg.ShellLimit
	if limit <= 0 {
		limit = 100
	}
	gap := int64(cfg.ShellMaxTimeGap.Seconds())
	if gap <= 0 {
		gap = 24 * 60 * 60
	}
	return &ShellNetworkDetector{
		store:      store,
		heuristics: h,
		minAmount:  decimal.NewFromFloat(cfg.ShellMinAmount),
		maxTimeGap: gap,
		limit:      limit,
		logger:     logger.WithComponent("shell-network-detector"),
	}
}

// Detect scans the graph for shell networks. A non-empty accountID keeps only chains it takes part in.
// Account scope and shell keywords are part of the store query, so the cap applies to matching chains.
func (d *ShellNetworkDetector) Detect(ctx context.Context, accountID string) ([]entity.ShellNetworkFinding, error) {
	chains, err := d.store.FindChains2Hop(ctx, repository.ChainQuery{
		AccountID:  accountID,
		Keywords:   d.heuristics.ShellKeywords(),
		MinAmount:  d.minAmount,
		MaxTimeGap: d.maxTimeGap,
		Limit:      d.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find two-hop chains: %w", err)
	}

	findings := make([]entity.ShellNetworkFinding, 0, len(chains))
	for _, chain := range chains {
		finding, ok := d.Evaluate(chain)
		if !ok {
			continue
		}
		findings = append(findings, finding)
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].TotalFlow.GreaterThan(findings[j].TotalFlow)
	})
	if len(findings) > d.limit {
		findings = findings[:d.limit]
	}

	d.logger.Debug("Shell network scan finished",
		zap.Int("candidates", len(chains)),
		zap.Int("findings", len(findings)))
	return findings, nil
}

// Evaluate checks a two-hop chain against the shell network rules
func (d *ShellNetworkDetector) Evaluate(chain entity.Path) (entity.ShellNetworkFinding, bool) {
	if chain.Hops() != 2 || len(chain.Accounts) != 3 {
		return entity.ShellNetworkFinding{}, false
	}
	source, intermediary, destination := chain.Accounts[0], chain.Accounts[1], chain.Accounts[2]
	if source == destination {
		return entity.ShellNetworkFinding{}, false
	}

	first, second := chain.Edges[0], chain.Edges[1]
	if !first.Amount.GreaterThan(d.minAmount) && !second.Amount.GreaterThan(d.minAmount) {
		return entity.ShellNetworkFinding{}, false
	}
	span := second.Timestamp - first.Timestamp
	if span < 0 {
		span = -span
	}
	if span > d.maxTimeGap {
		return entity.ShellNetworkFinding{}, false
	}

	indicators := make([]string, 0)
	roles := []struct {
		name    string
		account string
	}{
		{"source", source},
		{"intermediary", intermediary},
		{"destination", destination},
	}
	for _, role := range roles {
		for _, kw := range d.heuristics.ShellKeywordsIn(role.account) {
			indicators = append(indicators, fmt.Sprintf("%s_keyword:%s", role.name, kw))
		}
	}
	if len(indicators) == 0 {
		return entity.ShellNetworkFinding{}, false
	}

	return entity.ShellNetworkFinding{
		Source:          source,
		Intermediary:    intermediary,
		Destination:     destination,
		TotalFlow:       first.Amount.Add(second.Amount),
		TimeSpanSeconds: span,
		ShellIndicators: indicators,
	}, true
}
