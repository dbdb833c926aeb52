// Package notify carries order confirmations from the API to the mailer:
// KafkaSink publishes OrderCreated events and Worker consumes them.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"

	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

// KafkaSink implements orders.Notifier on top of a Kafka producer.
type KafkaSink struct {
	pub      Publisher
	producer string
	now      func() time.Time
	newID    func() string
}

func NewKafkaSink(pub Publisher, producer string) *KafkaSink {
	return &KafkaSink{
		pub:      pub,
		producer: producer,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (s *KafkaSink) NotifyOrderCreated(ctx context.Context, o orders.Order, products []orders.Product, userID string) error {
	env := orders.Envelope{
		EventID:       s.newID(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    s.now(),
		Producer:      s.producer,
		CorrelationID: o.ID,
		Payload:       kafkax.MustMarshal(orders.NewOrderCreatedPayload(o, products, userID)),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	return s.pub.Publish(ctx, orders.PartitionKey(o.ID), kafkax.MustMarshal(env), kafkax.EventHeaders(env)...)
}

var _ orders.Notifier = (*KafkaSink)(nil)
