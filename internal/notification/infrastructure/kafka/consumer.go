package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	order "github.com/dmehra2102/furniture-store/internal/order/domain"
	"github.com/dmehra2102/furniture-store/pkg/outbox"
	"github.com/dmehra2102/furniture-store/pkg/tracing"
)

type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
}

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, ev order.OrderCreated) error
}

// Consumer mails order confirmations for OrderCreated events. Delivery is
// best effort: a failed send is logged and the message is still committed.
type Consumer struct {
	log      *slog.Logger
	reader   *kafka.Reader
	notifier Notifier
	idem     Deduper
	tracer   trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, notifier Notifier, idem Deduper) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:      log,
		reader:   r,
		notifier: notifier,
		idem:     idem,
		tracer:   otel.Tracer("notification-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.Handle(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

// Handle processes one message. It never fails: anything that goes wrong is
// logged so the consumer keeps moving.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) {
	eventType := outbox.HeaderValue(msg.Headers, outbox.EventTypeHeader)
	if eventType != order.EventOrderCreated {
		c.log.Debug("event ignored", "type", eventType, "offset", msg.Offset)
		return
	}

	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		c.log.Error("idempotency check failed", "err", err)
	} else if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderCreated")
	defer span.End()

	var ev order.OrderCreated
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.log.Error("unmarshal failed", "err", err)
		return
	}
	if err := c.notifier.SendOrderConfirmation(msgCtx, ev); err != nil {
		c.log.Warn("order confirmation not sent", "order_id", ev.OrderID, "err", err)
	}
}
