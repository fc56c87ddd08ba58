package messaging

import (
	"context"
	"testing"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/infrastructure/config"
	"aml-graph-analyzer/internal/infrastructure/logger"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(maxPending int) *NATSConsumer {
	cfg := config.Default().NATS
	cfg.MaxPendingMessages = maxPending
	return NewNATSConsumer(&cfg, logger.NewNop())
}

func TestDecodeRequest(t *testing.T) {
	t.Run("generates request id", func(t *testing.T) {
		req, err := DecodeRequest([]byte(`{"account_id":"C123"}`))
		require.NoError(t, err)
		assert.Equal(t, "C123", req.AccountID)
		_, err = uuid.Parse(req.RequestID)
		assert.NoError(t, err)
	})

	t.Run("keeps request id", func(t *testing.T) {
		req, err := DecodeRequest([]byte(`{"request_id":"r-1","account_id":"C123","reply_to":"inbox"}`))
		require.NoError(t, err)
		assert.Equal(t, "r-1", req.RequestID)
		assert.Equal(t, "inbox", req.ReplyTo)
	})

	t.Run("missing account", func(t *testing.T) {
		_, err := DecodeRequest([]byte(`{"request_id":"r-1"}`))
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := DecodeRequest([]byte(`{"account_id":`))
		assert.Error(t, err)
	})
}

func TestSubjects(t *testing.T) {
	c := newTestConsumer(1)
	assert.Equal(t, "aml.analysis.requests", c.RequestSubject())
	assert.Equal(t, "aml.analysis.results", c.ResultSubject())
}

func TestHandleMessage_CoreReplyInbox(t *testing.T) {
	c := newTestConsumer(1)

	c.handleMessage(&nats.Msg{Data: []byte(`{"account_id":"C123"}`), Reply: "_INBOX.abc"}, false)

	var req *entity.AnalysisRequest
	select {
	case req = <-c.GetMessageChannel():
	default:
		t.Fatal("request was not queued")
	}
	assert.Equal(t, "C123", req.AccountID)
	assert.Equal(t, "_INBOX.abc", req.ReplyTo)
}

func TestHandleMessage_DropsWhenFull(t *testing.T) {
	c := newTestConsumer(1)

	c.handleMessage(&nats.Msg{Data: []byte(`{"account_id":"A"}`)}, false)
	c.handleMessage(&nats.Msg{Data: []byte(`{"account_id":"B"}`)}, false)
	c.handleMessage(&nats.Msg{Data: []byte(`not json`)}, false)

	assert.Len(t, c.GetMessageChannel(), 1)
	req := <-c.GetMessageChannel()
	assert.Equal(t, "A", req.AccountID)
}

func TestPublishResult_NotConnected(t *testing.T) {
	c := newTestConsumer(1)
	err := c.PublishResult(&entity.AnalysisRequest{RequestID: "r-1", AccountID: "A"}, map[string]string{})
	assert.Error(t, err)
}

func TestConnect_Disabled(t *testing.T) {
	cfg := config.Default().NATS
	cfg.Enabled = false
	c := NewNATSConsumer(&cfg, logger.NewNop())

	require.NoError(t, c.Connect(context.Background()))
	assert.False(t, c.IsConnected())
}
