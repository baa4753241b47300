package event

import (
	"context"
	"log/slog"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/kafka"
)

// Publisher is the transport the dispatcher publishes through.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// Dispatcher publishes domain events collected by core operations. Dispatch
// runs after the primary write has committed and never returns an error:
// publish failures are logged and swallowed so side-effect delivery can never
// fail an already-durable operation.
type Dispatcher struct {
	producer Publisher
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher on top of the given publisher.
func NewDispatcher(producer Publisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{producer: producer, logger: logger}
}

// Dispatch publishes each event in order, log-and-continue on failure.
func (d *Dispatcher) Dispatch(ctx context.Context, events []DomainEvent) {
	for _, ev := range events {
		envelope, err := kafka.NewEvent(ev.Type, ev.AggregateID, "order", Source, ev.Payload)
		if err != nil {
			d.logger.ErrorContext(ctx, "failed to build event envelope",
				slog.String("event_type", ev.Type),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := d.producer.Publish(ctx, ev.Topic, envelope); err != nil {
			d.logger.ErrorContext(ctx, "failed to dispatch event",
				slog.String("topic", ev.Topic),
				slog.String("event_type", ev.Type),
				slog.String("aggregate_id", ev.AggregateID),
				slog.String("error", err.Error()),
			)
		}
	}
}
