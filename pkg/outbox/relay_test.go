package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	events []Event
	sent   []int64
	failed map[int64]string
}

func (m *memStore) LockBatch(_ context.Context, _ string, batchSize int, _ time.Duration) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) > batchSize {
		out := m.events[:batchSize]
		m.events = m.events[batchSize:]
		return out, nil
	}
	out := m.events
	m.events = nil
	return out, nil
}

func (m *memStore) MarkSent(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, ids...)
	return nil
}

func (m *memStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed == nil {
		m.failed = map[int64]string{}
	}
	m.failed[id] = errMsg
	return nil
}

type fakeProducer struct {
	msgs   []kafka.Message
	failOn string
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if string(m.Key) == p.failOn {
			return errors.New("broker unavailable")
		}
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRelayTickDispatchesAndMarks(t *testing.T) {
	store := &memStore{events: []Event{
		{ID: 1, AggregateID: "o-1", Type: "OrderCreated", Payload: []byte(`{}`), Traceparent: "00-abc-def-01"},
		{ID: 2, AggregateID: "o-2", Type: "OrderCancelled", Payload: []byte(`{}`)},
	}}
	producer := &fakeProducer{failOn: "o-2"}
	relay := NewRelay(discard(), store, NewDispatcher(discard(), producer, "order.events"), "test")

	require.NoError(t, relay.tick(context.Background()))

	assert.Equal(t, []int64{1}, store.sent)
	assert.Equal(t, "broker unavailable", store.failed[2])
	require.Len(t, producer.msgs, 1)
	msg := producer.msgs[0]
	assert.Equal(t, "order.events", msg.Topic)
	assert.Equal(t, "OrderCreated", HeaderValue(msg.Headers, EventTypeHeader))
	assert.Equal(t, "00-abc-def-01", HeaderValue(msg.Headers, "traceparent"))
}

func TestNewEventMarshalsPayload(t *testing.T) {
	ev, err := NewEvent("order", "o-1", "OrderCreated", map[string]int{"total": 5000}, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":5000}`, string(ev.Payload))
	assert.Equal(t, StatusPending, ev.Status)
}
