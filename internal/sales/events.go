// internal/sales/events.go
package sales

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names a sale domain event.
type EventKind string

const (
	SaleCreated   EventKind = "SaleCreated"
	SaleModified  EventKind = "SaleModified"
	SaleCancelled EventKind = "SaleCancelled"
)

// Event is a domain event recorded by a Sale.
type Event struct {
	Kind       EventKind `json:"kind"`
	SaleID     uuid.UUID `json:"sale_id"`
	OccurredOn time.Time `json:"occurred_on"`
}

// eventBuffer holds events recorded since the last drain, in append order.
type eventBuffer struct {
	events []Event
}

func (b *eventBuffer) record(e Event) {
	b.events = append(b.events, e)
}

func (b *eventBuffer) pending() []Event {
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

func (b *eventBuffer) clear() {
	b.events = nil
}

func (b *eventBuffer) drain() []Event {
	out := b.events
	b.events = nil
	return out
}

// now is swapped in tests.
var now = func() time.Time {
	return time.Now().UTC()
}
