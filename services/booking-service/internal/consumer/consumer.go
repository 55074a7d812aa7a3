package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/iris/libs/kafkax"
	otelx "github.com/md-rashed-zaman/iris/libs/otel"
)

var tracer = otelx.Tracer("booking-service/consumer")

type Handler func(ctx context.Context, msg kafka.Message) error

// Dedup reports whether an event should be processed.
type Dedup interface {
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
}

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader  MessageReader
	logger  *slog.Logger
	dedup   Dedup
	handler Handler
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
	// Reader overrides the Kafka reader built from the fields above.
	Reader MessageReader
}

func New(logger *slog.Logger, dedup Dedup, cfg Config, handler Handler) *Consumer {
	reader := cfg.Reader
	if reader == nil {
		reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  kafkax.SplitBrokers(cfg.Brokers),
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
	}
	return &Consumer{reader: reader, logger: logger, dedup: dedup, handler: handler}
}

func (c *Consumer) Run(ctx context.Context) {
	defer func() { _ = c.reader.Close() }()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.Handle(ctx, msg)
	}
}

// Handle processes one message. Failures are logged; the offset is
// committed regardless so a poison message cannot stall the partition.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) {
	ctxSpan, span := kafkax.StartConsumeSpan(ctx, tracer, msg)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	if c.dedup != nil {
		ok, err := c.dedup.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
			return
		}
		if !ok {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			return
		}
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID, "event_type", meta.EventType)
		span.RecordError(err)
	}
}
