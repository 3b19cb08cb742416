package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jredh-dev/order-notify/internal/delivery"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func testPublisher() (*Publisher, *fakeWriter, *fakeWriter) {
	out, dlq := &fakeWriter{}, &fakeWriter{}
	return newPublisher(out, dlq, slog.New(slog.NewTextHandler(io.Discard, nil))), out, dlq
}

func TestPublishFailedOutcome(t *testing.T) {
	p, out, _ := testPublisher()
	at := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)

	err := p.Publish(context.Background(), delivery.Outcome{
		NotificationID: "n-1",
		Recipient:      "94771234567@c.us",
		Mode:           delivery.ModeQueued,
		Attempt:        3,
		Err:            delivery.ErrTransport,
		At:             at,
		Duration:       12 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Len(t, out.msgs, 1)

	msg := out.msgs[0]
	assert.Equal(t, "n-1", string(msg.Key))

	var e Event
	require.NoError(t, json.Unmarshal(msg.Value, &e))
	assert.Equal(t, "queued", e.Mode)
	assert.Equal(t, 3, e.Attempt)
	assert.Equal(t, "failed", e.Status)
	assert.Equal(t, delivery.ErrTransport.Error(), e.Error)
	assert.Equal(t, int64(12), e.DurationMS)
	assert.True(t, e.At.Equal(at))
}

func TestObserveSwallowsBrokerErrors(t *testing.T) {
	p, out, _ := testPublisher()
	out.err = errors.New("broker down")

	assert.NotPanics(t, func() {
		p.Observe(context.Background(), delivery.Outcome{NotificationID: "n-2", Mode: delivery.ModeImmediate, Attempt: 1})
	})
	assert.Empty(t, out.msgs)
}

func TestDeadLetter(t *testing.T) {
	p, out, dlq := testPublisher()
	n := delivery.NewNotification("94771234567@c.us", "Hello Amal")

	require.NoError(t, p.DeadLetter(context.Background(), n, "removed by admin"))
	assert.Empty(t, out.msgs)
	require.Len(t, dlq.msgs, 1)

	var got map[string]any
	require.NoError(t, json.Unmarshal(dlq.msgs[0].Value, &got))
	assert.Equal(t, n.ID, got["id"])
	assert.Equal(t, "Hello Amal", got["body"])
	assert.Equal(t, "removed by admin", got["reason"])
}

func TestCloseClosesBothWriters(t *testing.T) {
	p, out, dlq := testPublisher()
	require.NoError(t, p.Close())
	assert.True(t, out.closed)
	assert.True(t, dlq.closed)
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"kafka:9092", "kafka2:9092"}, ParseBrokers(" kafka:9092, ,kafka2:9092 "))
	assert.Nil(t, ParseBrokers(""))
}

func TestNewPublisherRequiresBrokers(t *testing.T) {
	_, err := NewPublisher(nil, "", nil)
	assert.Error(t, err)
}
