package service

import (
	"context"
	"sync"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/domain/service"
	"aml-graph-analyzer/internal/infrastructure/logger"
	"aml-graph-analyzer/internal/infrastructure/metrics"

	"go.uber.org/zap"
)

// ResultPublisher delivers a finished analysis to whoever asked for it
type ResultPublisher interface {
	PublishResult(req *entity.AnalysisRequest, result any) error
}

// AnalysisResponse is the message published for every processed request
type AnalysisResponse struct {
	RequestID string                        `json:"request_id"`
	AccountID string                        `json:"account_id"`
	Analysis  *entity.ComprehensiveAnalysis `json:"analysis"`
}

// RequestProcessor runs comprehensive analyses for queued requests on a fixed worker pool
type RequestProcessor struct {
	analysis  service.AnalysisService
	publisher ResultPublisher
	workers   int
	logger    *logger.Logger
}

// NewRequestProcessor creates a new request processor
func NewRequestProcessor(
	analysis service.AnalysisService,
	publisher ResultPublisher,
	workers int,
	logger *logger.Logger,
) *RequestProcessor {
	if workers <= 0 {
		workers = 1
	}
	return &RequestProcessor{
		analysis:  analysis,
		publisher: publisher,
		workers:   workers,
		logger:    logger.WithComponent("request-processor"),
	}
}

// Run dispatches requests to the worker pool until ctx is done or requests is closed,
// then waits for in-flight analyses to finish
func (p *RequestProcessor) Run(ctx context.Context, requests <-chan *entity.AnalysisRequest) {
	jobChan := make(chan *entity.AnalysisRequest, p.workers)
	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.logger.Info("Starting analysis worker", zap.Int("worker_id", workerID))

			for req := range jobChan {
				p.Process(ctx, req, workerID)
			}
		}(i)
	}

	defer func() {
		close(jobChan)
		wg.Wait()
		p.logger.Info("Analysis workers stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			metrics.QueueDepth.Set(float64(len(requests)))
			select {
			case jobChan <- req:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Process runs one analysis and publishes the response
func (p *RequestProcessor) Process(ctx context.Context, req *entity.AnalysisRequest, workerID int) {
	log := p.logger.WithRequest(req.RequestID, req.AccountID)
	analysis := p.analysis.ComprehensiveAnalysis(ctx, req.AccountID)

	response := AnalysisResponse{
		RequestID: req.RequestID,
		AccountID: req.AccountID,
		Analysis:  analysis,
	}
	if err := p.publisher.PublishResult(req, response); err != nil {
		log.Error("Failed to publish analysis result", zap.Int("worker_id", workerID), zap.Error(err))
		metrics.RequestsTotal.WithLabelValues("publish_failed").Inc()
		return
	}

	metrics.RequestsTotal.WithLabelValues("completed").Inc()
	log.Info("Processed analysis request",
		zap.Int("worker_id", workerID),
		zap.String("status", string(analysis.Status)),
		zap.String("risk_level", string(analysis.OverallAssessment.RiskLevel)))
}
