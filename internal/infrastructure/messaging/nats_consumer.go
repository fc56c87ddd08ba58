package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/infrastructure/config"
	"aml-graph-analyzer/internal/infrastructure/logger"
	"aml-graph-analyzer/internal/infrastructure/metrics"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSConsumer receives analysis requests over NATS and publishes analysis results
type NATSConsumer struct {
	conn      *nats.Conn
	js        nats.JetStreamContext
	sub       *nats.Subscription
	config    *config.NATSConfig
	logger    *logger.Logger
	msgChan   chan *entity.AnalysisRequest
	isRunning atomic.Bool
}

// NewNATSConsumer creates a new NATS consumer
func NewNATSConsumer(cfg *config.NATSConfig, logger *logger.Logger) *NATSConsumer {
	return &NATSConsumer{
		config:  cfg,
		logger:  logger.WithComponent("nats-consumer"),
		msgChan: make(chan *entity.AnalysisRequest, cfg.MaxPendingMessages),
	}
}

// RequestSubject is the subject analysis requests arrive on
func (n *NATSConsumer) RequestSubject() string {
	return fmt.Sprintf("%s.requests", n.config.SubjectPrefix)
}

// ResultSubject is the subject results are published on when a request names no reply subject
func (n *NATSConsumer) ResultSubject() string {
	return fmt.Sprintf("%s.results", n.config.SubjectPrefix)
}

// Connect connects to NATS server and sets up consumer
func (n *NATSConsumer) Connect(ctx context.Context) error {
	if !n.config.Enabled {
		n.logger.Info("NATS is disabled, skipping connection")
		return nil
	}

	n.logger.Info("Connecting to NATS server", zap.String("url", n.config.URL))

	opts := []nats.Option{
		nats.Name("aml-graph-analyzer"),
		nats.Timeout(n.config.ConnectTimeout),
		nats.ReconnectWait(n.config.ReconnectDelay),
		nats.MaxReconnects(n.config.ReconnectAttempts),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			n.logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			n.logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			n.logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(n.config.URL, opts...)
	if err != nil {
		n.logger.Error("Failed to connect to NATS", zap.Error(err))
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	n.conn = conn

	// Try JetStream first, if not available fall back to core NATS
	js, err := conn.JetStream()
	if err != nil {
		n.logger.Warn("JetStream not available, using core NATS", zap.Error(err))
		return n.setupCoreNATSSubscription()
	}

	n.js = js
	return n.setupJetStreamSubscription()
}

// setupJetStreamSubscription sets up a durable pull subscription on the request stream
func (n *NATSConsumer) setupJetStreamSubscription() error {
	subject := n.RequestSubject()

	n.logger.Info("Setting up JetStream subscription",
		zap.String("subject", subject),
		zap.String("stream", n.config.StreamName),
		zap.String("durable", n.config.DurableName))

	if err := n.ensureStream(); err != nil {
		n.logger.Warn("Request stream unavailable, falling back to core NATS", zap.Error(err))
		return n.setupCoreNATSSubscription()
	}

	sub, err := n.js.PullSubscribe(subject, n.config.DurableName,
		nats.BindStream(n.config.StreamName),
		nats.AckExplicit(),
	)
	if err != nil {
		n.logger.Warn("Failed to create pull subscription, falling back to core NATS", zap.Error(err))
		return n.setupCoreNATSSubscription()
	}

	n.sub = sub
	n.isRunning.Store(true)

	go n.processJetStreamMessages(sub)

	n.logger.Info("Successfully connected to NATS JetStream",
		zap.String("subject", subject),
		zap.String("durable", n.config.DurableName))

	return nil
}

// ensureStream creates the request stream when it does not exist yet
func (n *NATSConsumer) ensureStream() error {
	_, err := n.js.StreamInfo(n.config.StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", n.config.StreamName, err)
	}

	_, err = n.js.AddStream(&nats.StreamConfig{
		Name:      n.config.StreamName,
		Subjects:  []string{n.RequestSubject()},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", n.config.StreamName, err)
	}
	n.logger.Info("Created request stream",
		zap.String("stream", n.config.StreamName),
		zap.String("subject", n.RequestSubject()))
	return nil
}

// processJetStreamMessages processes messages from JetStream pull subscription
func (n *NATSConsumer) processJetStreamMessages(sub *nats.Subscription) {
	n.logger.Info("Starting JetStream message processing")

	for n.isRunning.Load() {
		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				n.logger.Debug("No messages available, continuing...")
				continue
			}
			if !n.isRunning.Load() {
				break
			}
			n.logger.Error("Failed to fetch messages", zap.Error(err))
			continue
		}

		n.logger.Debug("Fetched messages from JetStream", zap.Int("count", len(msgs)))

		for _, msg := range msgs {
			n.handleMessage(msg, true)
		}
	}

	n.logger.Info("Stopped JetStream message processing")
}

// setupCoreNATSSubscription sets up core NATS subscription
func (n *NATSConsumer) setupCoreNATSSubscription() error {
	subject := n.RequestSubject()
	queueGroup := n.config.ConsumerGroup

	n.logger.Info("Setting up core NATS subscription",
		zap.String("subject", subject),
		zap.String("queue_group", queueGroup))

	sub, err := n.conn.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
		n.handleMessage(msg, false)
	})
	if err != nil {
		n.logger.Error("Failed to subscribe to subject", zap.Error(err))
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	n.sub = sub
	n.isRunning.Store(true)

	n.logger.Info("Successfully connected to core NATS",
		zap.String("subject", subject),
		zap.String("queue_group", queueGroup))

	return nil
}

// DecodeRequest parses an analysis request and fills in a request id when missing
func DecodeRequest(data []byte) (*entity.AnalysisRequest, error) {
	var req entity.AnalysisRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis request: %w", err)
	}
	if req.AccountID == "" {
		return nil, errors.New("analysis request has no account_id")
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	return &req, nil
}

// handleMessage handles incoming NATS messages
func (n *NATSConsumer) handleMessage(msg *nats.Msg, isJetStream bool) {
	req, err := DecodeRequest(msg.Data)
	if err != nil {
		n.logger.Error("Rejecting analysis request", zap.Error(err))
		metrics.RequestsTotal.WithLabelValues("rejected").Inc()
		if isJetStream {
			msg.Term()
		} else if msg.Reply != "" {
			msg.Respond([]byte("ERROR: " + err.Error()))
		}
		return
	}

	// Core request-reply: answer on the inbox of the requester
	if !isJetStream && req.ReplyTo == "" && msg.Reply != "" {
		req.ReplyTo = msg.Reply
	}

	n.logger.Debug("Received analysis request",
		zap.String("request_id", req.RequestID),
		zap.String("account_id", req.AccountID))

	select {
	case n.msgChan <- req:
		metrics.RequestsTotal.WithLabelValues("accepted").Inc()
		metrics.QueueDepth.Set(float64(len(n.msgChan)))
		if isJetStream {
			msg.Ack()
		}
	default:
		n.logger.Warn("Message channel is full, dropping request",
			zap.String("request_id", req.RequestID))
		metrics.RequestsTotal.WithLabelValues("dropped").Inc()
		if isJetStream {
			msg.Nak()
		}
	}
}

// PublishResult publishes an analysis result to the request's reply subject or the result subject
func (n *NATSConsumer) PublishResult(req *entity.AnalysisRequest, result any) error {
	if n.conn == nil {
		return errors.New("NATS is not connected")
	}

	subject := req.ReplyTo
	if subject == "" {
		subject = n.ResultSubject()
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis result: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("Request-Id", req.RequestID)
	msg.Header.Set("Account-Id", req.AccountID)

	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish analysis result: %w", err)
	}
	return nil
}

// Disconnect disconnects from NATS server
func (n *NATSConsumer) Disconnect() error {
	n.isRunning.Store(false)

	if n.sub != nil {
		n.sub.Unsubscribe()
		n.sub = nil
	}
	if n.conn != nil {
		n.conn.Drain()
		n.conn = nil
	}
	close(n.msgChan)
	n.logger.Info("Disconnected from NATS")
	return nil
}

// IsConnected checks if connected to NATS
func (n *NATSConsumer) IsConnected() bool {
	return n.isRunning.Load() && n.conn != nil && n.conn.IsConnected()
}

// GetMessageChannel returns the message channel
func (n *NATSConsumer) GetMessageChannel() <-chan *entity.AnalysisRequest {
	return n.msgChan
}
