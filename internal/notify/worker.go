package notify

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/logging"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

type Worker struct {
	dedup  Deduper
	mailer Mailer
	log    *zap.Logger
}

// NewWorker builds the consumer side. dedup may be nil, in which case
// redelivered events are mailed again.
func NewWorker(dedup Deduper, mailer Mailer, log *zap.Logger) *Worker {
	return &Worker{dedup: dedup, mailer: mailer, log: logging.OrNop(log)}
}

// HandleOrderCreated is installed as the kafka consumer handler. Undecodable
// messages are logged and skipped; mail failures are returned so the offset
// is not committed.
func (w *Worker) HandleOrderCreated(ctx context.Context, m kafka.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		w.log.Error("drop message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderCreated {
		return nil
	}
	log := w.log.With(
		zap.String("event_id", env.EventID),
		zap.String("order_id", env.CorrelationID),
		zap.String("trace_id", env.TraceID),
	)

	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		log.Error("drop event", zap.Error(err))
		return nil
	}

	if w.dedup != nil {
		first, err := w.dedup.Claim(ctx, env.EventID)
		if err != nil {
			return err
		}
		if !first {
			log.Debug("duplicate event skipped")
			return nil
		}
	}

	mail, err := RenderConfirmation(p)
	if err != nil {
		log.Error("render confirmation", zap.Error(err))
		return nil
	}
	if err := w.mailer.Send(ctx, mail); err != nil {
		if w.dedup != nil {
			if rerr := w.dedup.Release(ctx, env.EventID); rerr != nil {
				log.Warn("release dedup key", zap.Error(rerr))
			}
		}
		return err
	}
	log.Info("order confirmation sent", zap.String("user_id", p.UserID))
	return nil
}

// LogMailer writes mails to the log instead of delivering them.
type LogMailer struct {
	Log *zap.Logger
}

func (l LogMailer) Send(_ context.Context, m Mail) error {
	logging.OrNop(l.Log).Info("mail",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.Int("body_bytes", len(m.HTML)),
	)
	return nil
}
