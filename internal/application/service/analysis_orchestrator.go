package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/repository"
	"aml-graph-analyzer/internal/domain/service"
	"aml-graph-analyzer/internal/infrastructure/config"
	"aml-graph-analyzer/internal/infrastructure/logger"
	"aml-graph-analyzer/internal/infrastructure/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Detectors groups the pattern detectors and the flow tracer used by the orchestrator
type Detectors struct {
	Cycles      *service.CycleDetector
	Shells      *service.ShellNetworkDetector
	Structuring *service.StructuringDetector
	Offshore    *service.OffshorePatternDetector
	Flow        *service.FlowTracer
}

// AnalysisOrchestrator implements AnalysisService interface
type AnalysisOrchestrator struct {
	store          repository.GraphStore
	profiles       *service.ProfileBuilder
	engine         *service.RiskFactorEngine
	detectors      Detectors
	requestTimeout time.Duration
	flowDepth      int
	flowThreshold  decimal.Decimal
	suspectMin     decimal.Decimal
	suspectLimit   int
	logger         *logger.Logger
}

// NewAnalysisOrchestrator creates a new analysis orchestrator
func NewAnalysisOrchestrator(
	store repository.GraphStore,
	profiles *service.ProfileBuilder,
	engine *service.RiskFactorEngine,
	detectors Detectors,
	cfg *config.AnalysisConfig,
	logger *logger.Logger,
) service.AnalysisService {
	suspectLimit := cfg.SuspectLimit
	if suspectLimit <= 0 {
		suspectLimit = 100
	}
	return &AnalysisOrchestrator{
		store:          store,
		profiles:       profiles,
		engine:         engine,
		detectors:      detectors,
		requestTimeout: cfg.RequestTimeout,
		flowDepth:      cfg.FlowMaxDepth,
		flowThreshold:  decimal.NewFromFloat(cfg.FlowThreshold),
		suspectMin:     decimal.NewFromFloat(cfg.SuspectMinAmount),
		suspectLimit:   suspectLimit,
		logger:         logger.WithComponent("analysis-orchestrator"),
	}
}

// branchResult carries one finished branch back to the collecting goroutine
type branchResult struct {
	name  string
	err   error
	apply func(*entity.ComprehensiveAnalysis)
}

var analysisBranches = []string{
	entity.BranchRiskScore,
	entity.BranchCycles,
	entity.BranchShellNetworks,
	entity.BranchStructuring,
	entity.BranchOffshore,
	entity.BranchFlowTrace,
}

// ComprehensiveAnalysis runs every analysis branch concurrently and merges what finished
// before the request deadline. Unfinished branches are reported as unavailable.
func (s *AnalysisOrchestrator) ComprehensiveAnalysis(ctx context.Context, accountID string) *entity.ComprehensiveAnalysis {
	start := time.Now()
	log := s.logger.WithAccount(accountID)

	result := s.emptyAnalysis(ctx, accountID)
	defer func() {
		metrics.AnalysesTotal.WithLabelValues(string(result.Status)).Inc()
		metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
		for branch, status := range result.Branches {
			metrics.BranchOutcomesTotal.WithLabelValues(branch, string(status)).Inc()
		}
	}()

	if err := s.store.Ping(ctx); err != nil {
		log.Error("Graph store unavailable, returning empty analysis", zap.Error(err))
		result.Status = entity.AnalysisStatusUnavailable
		return result
	}

	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	profile, history, historyErr := s.profiles.LoadProfile(ctx, accountID)
	if historyErr != nil {
		log.Warn("Continuing with empty history", zap.Error(historyErr))
	}
	result.Profile = profile

	results := make(chan branchResult, len(analysisBranches))
	s.launch(ctx, results, accountID, history, historyErr, profile)

	pending := len(analysisBranches)
collect:
	for pending > 0 {
		select {
		case r := <-results:
			pending--
			if r.err != nil {
				log.Warn("Analysis branch failed",
					zap.String("branch", r.name),
					zap.Error(r.err))
				result.Branches[r.name] = entity.BranchStatusFailed
			} else {
				result.Branches[r.name] = entity.BranchStatusOK
			}
			if r.apply != nil {
				r.apply(result)
			}
		case <-ctx.Done():
			log.Warn("Analysis deadline reached, returning partial results",
				zap.Int("unfinished_branches", pending))
			break collect
		}
	}

	result.Status = entity.AnalysisStatusComplete
	for _, status := range result.Branches {
		if status != entity.BranchStatusOK {
			result.Status = entity.AnalysisStatusDegraded
			break
		}
	}
	result.OverallAssessment = BuildOverallAssessment(result)

	metrics.RiskLevelsTotal.WithLabelValues(string(result.Assessment.RiskLevel)).Inc()
	log.Info("Comprehensive analysis finished",
		zap.String("analysis_id", result.AnalysisID),
		zap.String("status", string(result.Status)),
		zap.Float64("risk_score", result.Assessment.CompositeScore),
		zap.Duration("duration", time.Since(start)))

	return result
}

// launch starts one goroutine per branch; each sends exactly one result on the buffered channel
func (s *AnalysisOrchestrator) launch(
	ctx context.Context,
	results chan<- branchResult,
	accountID string,
	history []entity.Transaction,
	historyErr error,
	profile *entity.AccountProfile,
) {
	run := func(name string, fn func() (func(*entity.ComprehensiveAnalysis), error)) {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					results <- branchResult{name: name, err: fmt.Errorf("panic: %v", r)}
				}
			}()
			apply, err := fn()
			results <- branchResult{name: name, err: err, apply: apply}
		}()
	}

	run(entity.BranchRiskScore, func() (func(*entity.ComprehensiveAnalysis), error) {
		assessment := s.engine.Assess(ctx, service.FactorInput{
			AccountID: accountID,
			History:   history,
			Profile:   profile,
		})
		var err error
		for _, f := range assessment.Factors {
			if service.IsFailed(f) {
				metrics.FactorFailuresTotal.WithLabelValues(f.Name).Inc()
				err = fmt.Errorf("risk factor %s degraded", f.Name)
			}
		}
		if historyErr != nil {
			err = fmt.Errorf("failed to get account history: %w", historyErr)
		}
		return func(a *entity.ComprehensiveAnalysis) { a.Assessment = assessment }, err
	})

	run(entity.BranchCycles, func() (func(*entity.ComprehensiveAnalysis), error) {
		cycles, err := s.detectors.Cycles.Detect(ctx, accountID)
		if err != nil {
			return nil, err
		}
		metrics.FindingsTotal.WithLabelValues(entity.BranchCycles).Add(float64(len(cycles)))
		return func(a *entity.ComprehensiveAnalysis) { a.Cycles = cycles }, nil
	})

	run(entity.BranchShellNetworks, func() (func(*entity.ComprehensiveAnalysis), error) {
		networks, err := s.detectors.Shells.Detect(ctx, accountID)
		if err != nil {
			return nil, err
		}
		metrics.FindingsTotal.WithLabelValues(entity.BranchShellNetworks).Add(float64(len(networks)))
		return func(a *entity.ComprehensiveAnalysis) { a.ShellNetworks = networks }, nil
	})

	run(entity.BranchStructuring, func() (func(*entity.ComprehensiveAnalysis), error) {
		finding := s.detectors.Structuring.AnalyzeAccount(accountID, history)
		if finding.IsStructuring {
			metrics.FindingsTotal.WithLabelValues(entity.BranchStructuring).Inc()
		}
		var err error
		if historyErr != nil {
			err = fmt.Errorf("failed to get account history: %w", historyErr)
		}
		return func(a *entity.ComprehensiveAnalysis) { a.Structuring = finding }, err
	})

	run(entity.BranchOffshore, func() (func(*entity.ComprehensiveAnalysis), error) {
		flows := s.detectors.Offshore.Classify(history)
		metrics.FindingsTotal.WithLabelValues(entity.BranchOffshore).Add(float64(len(flows)))
		var err error
		if historyErr != nil {
			err = fmt.Errorf("failed to get account history: %w", historyErr)
		}
		return func(a *entity.ComprehensiveAnalysis) { a.OffshoreFlows = flows }, err
	})

	run(entity.BranchFlowTrace, func() (func(*entity.ComprehensiveAnalysis), error) {
		trace, err := s.detectors.Flow.Trace(ctx, accountID, s.flowDepth, s.flowThreshold)
		if err != nil {
			return nil, err
		}
		metrics.FindingsTotal.WithLabelValues(entity.BranchFlowTrace).Add(float64(len(trace.Paths)))
		return func(a *entity.ComprehensiveAnalysis) { a.FlowTrace = trace }, nil
	})
}

// emptyAnalysis returns a fully populated zero result with every branch unavailable
func (s *AnalysisOrchestrator) emptyAnalysis(ctx context.Context, accountID string) *entity.ComprehensiveAnalysis {
	profile := s.profiles.FromHistory(accountID, nil)
	branches := make(map[string]entity.BranchStatus, len(analysisBranches))
	for _, name := range analysisBranches {
		branches[name] = entity.BranchStatusUnavailable
	}

	result := &entity.ComprehensiveAnalysis{
		AnalysisID: uuid.New().String(),
		AccountID:  accountID,
		Status:     entity.AnalysisStatusUnavailable,
		Branches:   branches,
		Profile:    profile,
		Assessment: s.engine.Assess(ctx, service.FactorInput{
			AccountID: accountID,
			Profile:   profile,
		}),
		Cycles:        []entity.CycleFinding{},
		ShellNetworks: []entity.ShellNetworkFinding{},
		Structuring:   s.detectors.Structuring.AnalyzeAccount(accountID, nil),
		OffshoreFlows: []entity.OffshoreFinding{},
		FlowTrace: &entity.FlowTrace{
			SourceAccount:      accountID,
			MaxDepth:           s.flowDepth,
			Threshold:          s.flowThreshold,
			Paths:              []entity.FlowPath{},
			SuspiciousPatterns: []entity.SuspiciousFlowPattern{},
			Entities: entity.FlowEntitySummary{
				EntityTypes:           map[entity.EntityType]int{},
				Jurisdictions:         map[string]int{},
				OffshoreJurisdictions: []string{},
				HighRiskJurisdictions: []string{},
			},
		},
		Timestamp: time.Now().UTC(),
	}
	result.OverallAssessment = BuildOverallAssessment(result)
	return result
}

// AssessRisk computes the seven-factor risk assessment of an account
func (s *AnalysisOrchestrator) AssessRisk(ctx context.Context, accountID string) (*entity.RiskAssessment, error) {
	if err := s.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach graph store: %w", err)
	}
	// A failed history fetch scores the empty window
	profile, history, _ := s.profiles.LoadProfile(ctx, accountID)
	return s.engine.Assess(ctx, service.FactorInput{
		AccountID: accountID,
		History:   history,
		Profile:   profile,
	}), nil
}

// TraceFlow follows money forward from an account
func (s *AnalysisOrchestrator) TraceFlow(ctx context.Context, accountID string, maxDepth int, threshold decimal.Decimal) (*entity.FlowTrace, error) {
	trace, err := s.detectors.Flow.Trace(ctx, accountID, maxDepth, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to trace flow: %w", err)
	}
	return trace, nil
}

// ScanPatterns runs the graph-wide detectors; a failed detector leaves its list empty
func (s *AnalysisOrchestrator) ScanPatterns(ctx context.Context) *service.PatternScan {
	scan := &service.PatternScan{
		Cycles:        []entity.CycleFinding{},
		ShellNetworks: []entity.ShellNetworkFinding{},
		Structuring:   []entity.StructuringFinding{},
		OffshoreFlows: []entity.OffshoreFinding{},
		Errors:        map[string]string{},
	}

	var mu sync.Mutex
	// fail records a detector error. Only an unreachable store or a cancelled request is
	// returned to the group, which then cancels the scans still running.
	fail := func(branch string, err error) error {
		mu.Lock()
		scan.Errors[branch] = err.Error()
		mu.Unlock()
		if errors.Is(err, repository.ErrUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cycles, err := s.detectors.Cycles.Detect(gctx, "")
		if err != nil {
			return fail(entity.BranchCycles, err)
		}
		scan.Cycles = cycles
		return nil
	})
	g.Go(func() error {
		networks, err := s.detectors.Shells.Detect(gctx, "")
		if err != nil {
			return fail(entity.BranchShellNetworks, err)
		}
		scan.ShellNetworks = networks
		return nil
	})
	g.Go(func() error {
		structuring, err := s.detectors.Structuring.Scan(gctx)
		if err != nil {
			return fail(entity.BranchStructuring, err)
		}
		scan.Structuring = structuring
		return nil
	})
	g.Go(func() error {
		flows, err := s.detectors.Offshore.Scan(gctx)
		if err != nil {
			return fail(entity.BranchOffshore, err)
		}
		scan.OffshoreFlows = flows
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("Pattern scan aborted", zap.Error(err))
	}

	for branch, msg := range scan.Errors {
		s.logger.Warn("Pattern scan failed",
			zap.String("detector", branch),
			zap.String("error", msg))
	}
	return scan
}

// GraphSummary returns dashboard-level counts
func (s *AnalysisOrchestrator) GraphSummary(ctx context.Context) (*entity.GraphAggregate, error) {
	agg, err := s.store.Aggregate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate graph: %w", err)
	}
	return agg, nil
}

// HighRiskAccounts returns the suspect ranking for the dashboard
func (s *AnalysisOrchestrator) HighRiskAccounts(ctx context.Context) ([]entity.SuspectAccount, error) {
	suspects, err := s.store.FindHighRiskAccounts(ctx, s.suspectMin, s.suspectLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to find high risk accounts: %w", err)
	}
	return suspects, nil
}
