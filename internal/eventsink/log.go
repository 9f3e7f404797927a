// internal/eventsink/log.go
package eventsink

import (
	"context"

	"salesnexus/internal/sales"

	"go.uber.org/zap"
)

var messages = map[sales.EventKind]string{
	sales.SaleCreated:   "sale created",
	sales.SaleModified:  "sale modified",
	sales.SaleCancelled: "sale cancelled",
}

// LogSink writes one log line per event.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("events")}
}

func (s *LogSink) Publish(ctx context.Context, event sales.Event) error {
	msg, ok := messages[event.Kind]
	if !ok {
		msg = "sale event"
	}
	s.logger.Info(msg,
		zap.String("kind", string(event.Kind)),
		zap.Stringer("sale_id", event.SaleID),
		zap.Time("occurred_on", event.OccurredOn),
	)
	return nil
}
