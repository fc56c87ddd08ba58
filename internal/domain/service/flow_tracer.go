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

// Flow path indicator tags
const (
	IndicatorRoundAmounts    = "round_amounts"
	IndicatorRapidSequential = "rapid_sequential"
)

const (
	// MaxTraceDepth bounds the number of hops a trace may follow
	MaxTraceDepth = 10

	minReportedDepth   = 2
	roundFractionLimit = 0.7
	rapidHopGapSeconds = 3600

	// flowPathBudgetFactor caps completed paths collected per trace at limit times this factor
	flowPathBudgetFactor = 10
)

// FlowTracer follows money forward from a seed account over hops that meet a threshold
type FlowTracer struct {
	store       repository.GraphStore
	classifier  *EntityClassifier
	heuristics  *Heuristics
	limit       int
	branchLimit int
	logger      *logger.Logger
}

// NewFlowTracer creates a new flow tracer
func NewFlowTracer(store repository.GraphStore, classifier *EntityClassifier, h *Heuristics, cfg *config.AnalysisConfig, logger *logger.Logger) *FlowTracer {
	limit := cfg.FlowLimit
	if limit <= 0 {
		limit = 100
	}
	branchLimit := cfg.FlowBranchLimit
	if branchLimit <= 0 {
		branchLimit = 50
	}
	return &FlowTracer{
		store:       store,
		classifier:  classifier,
		heuristics:  h,
		limit:       limit,
		branchLimit: branchLimit,
		logger:      logger.WithComponent("flow-tracer"),
	}
}

// traceState holds the per-call traversal state
type traceState struct {
	ctx       context.Context
	threshold decimal.Decimal
	maxDepth  int
	outgoing  map[string][]entity.Transaction
	visited   map[string]bool
	accounts  []string
	edges     []entity.Transaction
	paths     []entity.FlowPath
	budget    int
}

// Trace returns the maximal simple forward paths of at least two hops from accountID,
// ranked by total amount. maxDepth is clamped to [1, MaxTraceDepth].
func (t *FlowTracer) Trace(ctx context.Context, accountID string, maxDepth int, threshold decimal.Decimal) (*entity.FlowTrace, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}
	if maxDepth > MaxTraceDepth {
		maxDepth = MaxTraceDepth
	}

	state := &traceState{
		ctx:       ctx,
		threshold: threshold,
		maxDepth:  maxDepth,
		outgoing:  make(map[string][]entity.Transaction),
		visited:   map[string]bool{accountID: true},
		accounts:  []string{accountID},
		budget:    t.limit * flowPathBudgetFactor,
	}
	if err := t.walk(state, accountID); err != nil {
		return nil, err
	}

	paths := state.paths
	sort.SliceStable(paths, func(i, j int) bool {
		return paths[i].TotalAmount.GreaterThan(paths[j].TotalAmount)
	})
	if len(paths) > t.limit {
		paths = paths[:t.limit]
	}
	if paths == nil {
		paths = []entity.FlowPath{}
	}

	t.logger.Debug("Flow trace finished",
		zap.String("account_id", accountID),
		zap.Int("max_depth", maxDepth),
		zap.Int("paths", len(paths)),
		zap.Bool("budget_exhausted", state.exhausted()))

	return &entity.FlowTrace{
		SourceAccount:      accountID,
		MaxDepth:           maxDepth,
		Threshold:          threshold,
		Paths:              paths,
		SuspiciousPatterns: summarizeIndicators(paths),
		Entities:           t.summarizeEntities(paths),
	}, nil
}

func (t *FlowTracer) walk(s *traceState, current string) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	if s.exhausted() {
		return nil
	}

	extended := false
	if len(s.edges) < s.maxDepth {
		next, err := t.outgoing(s, current)
		if err != nil {
			return err
		}
		for _, tx := range next {
			if tx.Amount.LessThan(s.threshold) || s.visited[tx.Receiver] {
				continue
			}
			extended = true
			s.visited[tx.Receiver] = true
			s.accounts = append(s.accounts, tx.Receiver)
			s.edges = append(s.edges, tx)

			if err := t.walk(s, tx.Receiver); err != nil {
				return err
			}

			s.edges = s.edges[:len(s.edges)-1]
			s.accounts = s.accounts[:len(s.accounts)-1]
			delete(s.visited, tx.Receiver)

			if s.exhausted() {
				return nil
			}
		}
	}

	if !extended && len(s.edges) >= minReportedDepth {
		s.paths = append(s.paths, AnnotateFlowPath(s.accounts, s.edges))
	}
	return nil
}

func (s *traceState) exhausted() bool {
	return len(s.paths) >= s.budget
}

func (t *FlowTracer) outgoing(s *traceState, accountID string) ([]entity.Transaction, error) {
	if txs, ok := s.outgoing[accountID]; ok {
		return txs, nil
	}
	txs, err := t.store.GetOutgoing(s.ctx, accountID, s.threshold, t.branchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get outgoing transactions for %s: %w", accountID, err)
	}
	s.outgoing[accountID] = txs
	return txs, nil
}

// AnnotateFlowPath copies a traversal path and attaches its layering indicators
func AnnotateFlowPath(accounts []string, edges []entity.Transaction) entity.FlowPath {
	path := entity.FlowPath{
		Accounts:    append([]string(nil), accounts...),
		Edges:       append([]entity.Transaction(nil), edges...),
		Depth:       len(edges),
		TotalAmount: decimal.Zero,
		Indicators:  []string{},
	}
	if len(edges) == 0 {
		return path
	}

	thousand := decimal.NewFromInt(1000)
	round := 0
	timestamps := make([]int64, 0, len(edges))
	for _, e := range edges {
		path.TotalAmount = path.TotalAmount.Add(e.Amount)
		if e.Amount.Mod(thousand).IsZero() {
			round++
		}
		timestamps = append(timestamps, e.Timestamp)
	}

	if IsRapidValueDecrease(edges[0].AmountFloat(), edges[len(edges)-1].AmountFloat()) {
		path.Indicators = append(path.Indicators, IndicatorRapidValueDecrease)
	}
	if float64(round)/float64(len(edges)) > roundFractionLimit {
		path.Indicators = append(path.Indicators, IndicatorRoundAmounts)
	}
	if gaps := timeGaps(timestamps); len(gaps) > 0 && mean(gaps) < rapidHopGapSeconds {
		path.Indicators = append(path.Indicators, IndicatorRapidSequential)
	}
	return path
}

func summarizeIndicators(paths []entity.FlowPath) []entity.SuspiciousFlowPattern {
	counts := make(map[string]int)
	for _, p := range paths {
		for _, ind := range p.Indicators {
			counts[ind]++
		}
	}
	patterns := make([]entity.SuspiciousFlowPattern, 0, len(counts))
	for ind, n := range counts {
		patterns = append(patterns, entity.SuspiciousFlowPattern{Indicator: ind, PathCount: n})
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].PathCount != patterns[j].PathCount {
			return patterns[i].PathCount > patterns[j].PathCount
		}
		return patterns[i].Indicator < patterns[j].Indicator
	})
	return patterns
}

func (t *FlowTracer) summarizeEntities(paths []entity.FlowPath) entity.FlowEntitySummary {
	summary := entity.FlowEntitySummary{
		EntityTypes:           make(map[entity.EntityType]int),
		Jurisdictions:         make(map[string]int),
		OffshoreJurisdictions: []string{},
		HighRiskJurisdictions: []string{},
	}

	seen := make(map[string]struct{})
	offshore := make(map[string]struct{})
	highRisk := make(map[string]struct{})
	for _, p := range paths {
		for _, account := range p.Accounts {
			if _, ok := seen[account]; ok {
				continue
			}
			seen[account] = struct{}{}

			jurisdiction, entityType := t.classifier.Classify(account)
			summary.EntityTypes[entityType]++
			summary.Jurisdictions[jurisdiction]++
			if t.heuristics.IsOffshoreJurisdiction(jurisdiction) {
				offshore[jurisdiction] = struct{}{}
			}
			if t.heuristics.IsHighRiskJurisdiction(jurisdiction) {
				highRisk[jurisdiction] = struct{}{}
			}
		}
	}

	summary.DistinctAccountsTraced = len(seen)
	summary.OffshoreJurisdictions = sortedKeys(offshore)
	summary.HighRiskJurisdictions = sortedKeys(highRisk)
	return summary
}
