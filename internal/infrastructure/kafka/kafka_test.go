package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type typedEvent struct {
	OrderID string `json:"order_id"`
}

func (typedEvent) Type() string { return "OrderCommitted" }

// ============================================
// Producer Tests
// ============================================

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducerWithWriter(w)

	err := p.Publish(context.Background(), "1714557600000-Trave", typedEvent{OrderID: "1714557600000-Trave"})

	require.NoError(t, err)
	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "1714557600000-Trave", string(msg.Key))
	assert.JSONEq(t, `{"order_id":"1714557600000-Trave"}`, string(msg.Value))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "OrderCommitted", string(msg.Headers[0].Value))
}

func TestProducer_Publish_Untyped(t *testing.T) {
	w := &fakeWriter{}
	p := newProducerWithWriter(w)

	require.NoError(t, p.Publish(context.Background(), "k", map[string]int{"a": 1}))

	assert.Empty(t, w.messages[0].Headers)
}

func TestProducer_Publish_Errors(t *testing.T) {
	p := newProducerWithWriter(&fakeWriter{err: errors.New("leader not available")})

	assert.ErrorContains(t, p.Publish(context.Background(), "k", "v"), "leader not available")
	assert.Error(t, p.Publish(context.Background(), "k", make(chan int)))
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}

	require.NoError(t, newProducerWithWriter(w).Close())
	assert.True(t, w.closed)
}

// ============================================
// Consumer Tests
// ============================================

type fakeReader struct {
	messages []kafka.Message
	errs     []error
	cancel   context.CancelFunc
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.messages) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumer_Consume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{
		messages: []kafka.Message{{Key: []byte("a"), Value: []byte("1")}, {Key: []byte("b"), Value: []byte("2")}},
		errs:     []error{errors.New("transient")},
		cancel:   cancel,
	}
	c := newConsumerWithReader(r, time.Millisecond)

	var seen []string
	err := c.Consume(ctx, func(ctx context.Context, key, value []byte) error {
		seen = append(seen, string(key))
		return errors.New("handler failure is logged")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a", "b"}, seen)
}
