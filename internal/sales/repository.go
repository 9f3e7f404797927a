// internal/sales/repository.go
package sales

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Repository is the persistence gateway for sales.
//
// After every successful Save or SaveWithReplacedItems the gateway drains the
// sale's pending events and forwards them, in order, to its EventSink.
// Sink failures never fail the save.
type Repository interface {
	Load(ctx context.Context, id uuid.UUID) (*Sale, error)
	// LoadReadOnly returns an instance the caller does not intend to save back.
	LoadReadOnly(ctx context.Context, id uuid.UUID) (*Sale, error)
	Save(ctx context.Context, sale *Sale) error
	// SaveWithReplacedItems persists the header and replaces the stored item set.
	SaveWithReplacedItems(ctx context.Context, sale *Sale) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListAll(ctx context.Context) ([]*Sale, error)
	History(ctx context.Context, id uuid.UUID) ([]Event, error)
}

// EventSink receives domain events after a successful commit.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

// publisher forwards drained events to a sink on behalf of a gateway.
type publisher struct {
	sink       EventSink
	logger     *zap.Logger
	dispatched metric.Int64Counter
	failed     metric.Int64Counter
}

func newPublisher(sink EventSink, logger *zap.Logger) *publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := otel.Meter("salesnexus/sales")
	dispatched, err := meter.Int64Counter("sales.events.dispatched",
		metric.WithDescription("Domain events forwarded to the event sink"))
	if err != nil {
		logger.Warn("create dispatched counter", zap.Error(err))
	}
	failed, err := meter.Int64Counter("sales.events.failed",
		metric.WithDescription("Domain events the event sink rejected"))
	if err != nil {
		logger.Warn("create failed counter", zap.Error(err))
	}

	return &publisher{
		sink:       sink,
		logger:     logger,
		dispatched: dispatched,
		failed:     failed,
	}
}

// publish drains the sale and forwards each event once.
func (p *publisher) publish(ctx context.Context, sale *Sale) {
	events := sale.DrainEvents()
	if p.sink == nil {
		return
	}

	for _, event := range events {
		attrs := metric.WithAttributes(attribute.String("event.kind", string(event.Kind)))
		if err := p.sink.Publish(ctx, event); err != nil {
			p.logger.Warn("event sink rejected event",
				zap.String("kind", string(event.Kind)),
				zap.Stringer("sale_id", event.SaleID),
				zap.Error(err),
			)
			if p.failed != nil {
				p.failed.Add(ctx, 1, attrs)
			}
			continue
		}
		if p.dispatched != nil {
			p.dispatched.Add(ctx, 1, attrs)
		}
	}
}
