// internal/sales/memory_repository.go
package sales

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MemoryRepository keeps sales in process memory. Stored sales are deep copies,
// so callers never share state with the store.
type MemoryRepository struct {
	mu        sync.RWMutex
	sales     map[uuid.UUID]*Sale
	order     []uuid.UUID
	history   map[uuid.UUID][]Event
	publisher *publisher
}

// NewMemoryRepository creates an empty in-memory gateway publishing to sink.
func NewMemoryRepository(sink EventSink, logger *zap.Logger) *MemoryRepository {
	return &MemoryRepository{
		sales:     make(map[uuid.UUID]*Sale),
		history:   make(map[uuid.UUID][]Event),
		publisher: newPublisher(sink, logger),
	}
}

func (r *MemoryRepository) Load(ctx context.Context, id uuid.UUID) (*Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.sales[id]
	if !ok {
		return nil, ErrSaleNotFound
	}
	return stored.clone(), nil
}

func (r *MemoryRepository) LoadReadOnly(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return r.Load(ctx, id)
}

func (r *MemoryRepository) Save(ctx context.Context, sale *Sale) error {
	if err := r.store(sale); err != nil {
		return err
	}
	r.publisher.publish(ctx, sale)
	return nil
}

// SaveWithReplacedItems is the same as Save here: the stored copy always mirrors the sale's items.
func (r *MemoryRepository) SaveWithReplacedItems(ctx context.Context, sale *Sale) error {
	return r.Save(ctx, sale)
}

func (r *MemoryRepository) store(sale *Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.sales[sale.id]
	switch {
	case !exists && sale.version > 0:
		// Saved before but gone now: it was deleted.
		return ErrSaleNotFound
	case exists && stored.version != sale.version:
		return ErrConcurrentModification
	}

	pending := sale.PendingEvents()
	sale.markPersisted()
	r.sales[sale.id] = sale.clone()
	r.history[sale.id] = append(r.history[sale.id], pending...)
	if !exists {
		r.order = append(r.order, sale.id)
	}
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sales[id]; !ok {
		return ErrSaleNotFound
	}
	delete(r.sales, id)
	delete(r.history, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListAll returns sales ordered by sale date, then by insertion.
func (r *MemoryRepository) ListAll(ctx context.Context) ([]*Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Sale, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sales[id].clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].header.Date.Before(out[j].header.Date)
	})
	return out, nil
}

func (r *MemoryRepository) History(ctx context.Context, id uuid.UUID) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.sales[id]; !ok {
		return nil, ErrSaleNotFound
	}
	out := make([]Event, len(r.history[id]))
	copy(out, r.history[id])
	return out, nil
}
