// internal/eventsink/fanout.go
package eventsink

import (
	"context"
	"errors"
	"fmt"

	"salesnexus/internal/sales"
)

// FanOut publishes every event to each child sink. A failing child does not
// stop the others; their errors are joined.
type FanOut []sales.EventSink

func (f FanOut) Publish(ctx context.Context, event sales.Event) error {
	var errs []error
	for i, sink := range f {
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
