// internal/chaos/faults.go
package chaos

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"salesnexus/internal/sales"

	"github.com/google/uuid"
)

var ErrInjectedOutage = errors.New("injected event sink outage")

// FlakySink wraps an event sink and rejects every event while the outage is on.
type FlakySink struct {
	next     sales.EventSink
	down     atomic.Bool
	rejected atomic.Int64
}

func NewFlakySink(next sales.EventSink) *FlakySink {
	return &FlakySink{next: next}
}

func (s *FlakySink) SetOutage(down bool) { s.down.Store(down) }

// Rejected counts events refused during outages.
func (s *FlakySink) Rejected() int64 { return s.rejected.Load() }

func (s *FlakySink) Publish(ctx context.Context, event sales.Event) error {
	if s.down.Load() {
		s.rejected.Add(1)
		return ErrInjectedOutage
	}
	if s.next == nil {
		return nil
	}
	return s.next.Publish(ctx, event)
}

// LatentRepository delays every gateway call by the injected latency.
type LatentRepository struct {
	next    sales.Repository
	latency atomic.Int64
}

func NewLatentRepository(next sales.Repository) *LatentRepository {
	return &LatentRepository{next: next}
}

func (r *LatentRepository) SetLatency(d time.Duration) { r.latency.Store(int64(d)) }

func (r *LatentRepository) wait(ctx context.Context) error {
	d := time.Duration(r.latency.Load())
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *LatentRepository) Load(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Load(ctx, id)
}

func (r *LatentRepository) LoadReadOnly(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.LoadReadOnly(ctx, id)
}

func (r *LatentRepository) Save(ctx context.Context, sale *sales.Sale) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.Save(ctx, sale)
}

func (r *LatentRepository) SaveWithReplacedItems(ctx context.Context, sale *sales.Sale) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.SaveWithReplacedItems(ctx, sale)
}

func (r *LatentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.Delete(ctx, id)
}

func (r *LatentRepository) ListAll(ctx context.Context) ([]*sales.Sale, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.ListAll(ctx)
}

func (r *LatentRepository) History(ctx context.Context, id uuid.UUID) ([]sales.Event, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.History(ctx, id)
}
