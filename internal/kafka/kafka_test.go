package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, nil)
	p.Start()

	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, p.Publish(ctx, []byte(k), []byte("v")))
	}
	p.Close()
	p.WaitClosed()

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.msgs, 3)
	assert.Equal(t, "a", string(w.msgs[0].Key))
	assert.True(t, w.closed)

	assert.ErrorIs(t, p.Publish(ctx, []byte("late"), nil), ErrProducerClosed)
	p.Close()
}

func TestProducerPublishHonoursContext(t *testing.T) {
	p := newProducer(&fakeWriter{}, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, []byte("k"), nil), context.Canceled)
}

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		m := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestConsumerCommitsOnlySuccessfulMessages(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}
	c := newConsumer(r, 2, nil)
	c.backoff = time.Millisecond

	var (
		mu   sync.Mutex
		seen int
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			mu.Lock()
			seen++
			mu.Unlock()
			if m.Offset == 2 {
				return errors.New("boom")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen == 2+defaultAttempts
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.committed) == 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.ElementsMatch(t, []int64{1, 3}, r.committed)
	assert.True(t, r.closed)
}

func TestConsumerRetriesTransientFailure(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{{Offset: 7}}}
	c := newConsumer(r, 1, nil)
	c.backoff = time.Millisecond

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(context.Context, kafka.Message) error {
			if calls.Add(1) < 3 {
				return errors.New("dedup store unavailable")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.committed) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []int64{7}, r.committed)
}

func TestConsumerRetryStopsOnCancel(t *testing.T) {
	c := newConsumer(&fakeReader{}, 1, nil)
	c.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("boom")
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	err := c.handle(ctx, func(context.Context, kafka.Message) error { return boom }, kafka.Message{})
	assert.ErrorIs(t, err, boom)
	assert.Less(t, time.Since(start), time.Second)
}

type stuckWriter struct{}

func (stuckWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stuckWriter) Close() error { return nil }

func TestPublishReturnsWhenBufferStaysFull(t *testing.T) {
	p := newProducer(stuckWriter{}, 1, nil)
	p.Start()

	// The first message is taken by the writer loop and stalls there; the
	// second fills the buffer.
	require.NoError(t, p.Publish(context.Background(), []byte("a"), nil))
	require.Eventually(t, func() bool { return len(p.inbox) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, p.Publish(context.Background(), []byte("b"), nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.ErrorIs(t, p.Publish(ctx, []byte("c"), nil), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := orders.Envelope{
		EventID:      "ev-1",
		EventType:    orders.EventOrderCreated,
		EventVersion: 1,
		Payload:      MustMarshal(orders.OrderCreatedPayload{OrderID: "o-1", TotalCents: 2800}),
	}
	headers := EventHeaders(env)
	require.Len(t, headers, 2)
	assert.Equal(t, orders.EventOrderCreated, string(headers[0].Value))
	assert.Equal(t, "1", string(headers[1].Value))

	got, err := DecodeEnvelope(kafka.Message{Value: MustMarshal(env)})
	require.NoError(t, err)
	assert.Equal(t, "ev-1", got.EventID)

	p, err := UnwrapPayload[orders.OrderCreatedPayload](got.Payload)
	require.NoError(t, err)
	assert.Equal(t, 2800, p.TotalCents)

	_, err = DecodeEnvelope(kafka.Message{Value: []byte("{")})
	assert.Error(t, err)
}
