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

// Offshore indicator tags
const (
	IndicatorHighValue          = "high_value"
	IndicatorOffshoreToOffshore = "offshore_to_offshore"
)

// offshoreCandidateFactor widens the transfer query since the offshore filter runs after it
const offshoreCandidateFactor = 5

// OffshorePatternDetector classifies high-value edges touching offshore-flagged accounts
type OffshorePatternDetector struct {
	store      repository.GraphStore
	classifier *EntityClassifier
	minAmount  decimal.Decimal
	highValue  decimal.Decimal
	limit      int
	logger     *logger.Logger
}

// NewOffshorePatternDetector creates a new offshore pattern detector
func NewOffshorePatternDetector(store repository.GraphStore, classifier *EntityClassifier, cfg *config.AnalysisConfig, logger *logger.Logger) *OffshorePatternDetector {
	limit := cfg.OffshoreLimit
	if limit <= 0 {
		limit = 100
	}
	return &OffshorePatternDetector{
		store:      store,
		classifier: classifier,
		minAmount:  decimal.NewFromFloat(cfg.OffshoreMinAmount),
		highValue:  decimal.NewFromFloat(cfg.OffshoreHighValue),
		limit:      limit,
		logger:     logger.WithComponent("offshore-detector"),
	}
}

// Scan classifies the largest transfers in the graph
func (d *OffshorePatternDetector) Scan(ctx context.Context) ([]entity.OffshoreFinding, error) {
	transfers, err := d.store.FindLargeTransfers(ctx, d.minAmount, d.limit*offshoreCandidateFactor)
	if err != nil {
		return nil, fmt.Errorf("failed to find large transfers: %w", err)
	}
	findings := d.Classify(transfers)
	d.logger.Debug("Offshore scan finished",
		zap.Int("transfers", len(transfers)),
		zap.Int("findings", len(findings)))
	return findings, nil
}

// Classify keeps the qualifying edges, classifies them and ranks them by amount
func (d *OffshorePatternDetector) Classify(txs []entity.Transaction) []entity.OffshoreFinding {
	findings := make([]entity.OffshoreFinding, 0)
	for _, tx := range txs {
		if !tx.Amount.GreaterThan(d.minAmount) {
			continue
		}
		senderOffshore := d.classifier.IsOffshore(tx.Sender)
		receiverOffshore := d.classifier.IsOffshore(tx.Receiver)
		if !senderOffshore && !receiverOffshore {
			continue
		}

		flowType := ClassifyOffshoreFlow(senderOffshore, receiverOffshore)
		indicators := make([]string, 0, 2)
		if tx.Amount.GreaterThan(d.highValue) {
			indicators = append(indicators, IndicatorHighValue)
		}
		if flowType == entity.OffshoreFlowOffshoreToOffshore {
			indicators = append(indicators, IndicatorOffshoreToOffshore)
		}

		findings = append(findings, entity.OffshoreFinding{
			Sender:               tx.Sender,
			Receiver:             tx.Receiver,
			SenderJurisdiction:   d.classifier.Jurisdiction(tx.Sender),
			ReceiverJurisdiction: d.classifier.Jurisdiction(tx.Receiver),
			Amount:               tx.Amount,
			Timestamp:            tx.Timestamp,
			FlowType:             flowType,
			RiskIndicators:       indicators,
		})
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Amount.GreaterThan(findings[j].Amount)
	})
	if len(findings) > d.limit {
		findings = findings[:d.limit]
	}
	return findings
}

// ClassifyOffshoreFlow maps the offshore flags of both endpoints to a flow type
func ClassifyOffshoreFlow(senderOffshore, receiverOffshore bool) entity.OffshoreFlowType {
	switch {
	case senderOffshore && receiverOffshore:
		return entity.OffshoreFlowOffshoreToOffshore
	case receiverOffshore:
		return entity.OffshoreFlowOutbound
	case senderOffshore:
		return entity.OffshoreFlowInbound
	default:
		return entity.OffshoreFlowDomestic
	}
}
