// internal/sales/implementation.go
package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// service implements the Service interface.
type service struct {
	repo   Repository
	logger *zap.Logger
	tracer trace.Tracer
}

// NewService creates a new sales service instance.
func NewService(repo Repository, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		repo:   repo,
		logger: logger,
		tracer: otel.Tracer("salesnexus/sales"),
	}
}

// CreateSale builds a sale with its lines and persists it.
func (s *service) CreateSale(ctx context.Context, cmd CreateSaleCommand) (*Sale, error) {
	ctx, span := s.tracer.Start(ctx, "sales.create",
		trace.WithAttributes(
			attribute.String("sale.number", cmd.Number),
			attribute.Int("items.count", len(cmd.Items)),
		))
	defer span.End()

	sale, err := NewSale(cmd.header())
	if err != nil {
		return nil, fail(span, err)
	}

	for i, in := range cmd.Items {
		item, err := NewSaleItem(in.ProductID, in.ProductName, in.Quantity, in.UnitPrice)
		if err != nil {
			return nil, fail(span, fmt.Errorf("item %d: %w", i, err))
		}
		if err := sale.AddItem(item); err != nil {
			return nil, fail(span, fmt.Errorf("item %d: %w", i, err))
		}
	}

	if err := s.repo.Save(ctx, sale); err != nil {
		return nil, fail(span, fmt.Errorf("failed to save sale: %w", err))
	}

	span.SetAttributes(attribute.String("sale.id", sale.ID().String()))
	s.logger.Info("sale created",
		zap.Stringer("sale_id", sale.ID()),
		zap.String("number", sale.Number()),
		zap.Stringer("total", sale.Total()),
	)
	return sale, nil
}

func (s *service) GetSale(ctx context.Context, id uuid.UUID) (*Sale, error) {
	ctx, span := s.tracer.Start(ctx, "sales.get",
		trace.WithAttributes(attribute.String("sale.id", id.String())))
	defer span.End()

	if id == uuid.Nil {
		return nil, fail(span, ErrSaleIDRequired)
	}

	sale, err := s.repo.LoadReadOnly(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	return sale, nil
}

func (s *service) ListSales(ctx context.Context) ([]*Sale, error) {
	ctx, span := s.tracer.Start(ctx, "sales.list")
	defer span.End()

	sales, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to list sales: %w", err))
	}
	span.SetAttributes(attribute.Int("sales.count", len(sales)))
	return sales, nil
}

// UpdateSale replaces the header and the full line set. Lines are validated before the
// header is touched, so a bad line leaves the stored sale unchanged.
func (s *service) UpdateSale(ctx context.Context, cmd UpdateSaleCommand) (*Sale, error) {
	ctx, span := s.tracer.Start(ctx, "sales.update",
		trace.WithAttributes(
			attribute.String("sale.id", cmd.ID.String()),
			attribute.Int("items.count", len(cmd.Items)),
		))
	defer span.End()

	if cmd.ID == uuid.Nil {
		return nil, fail(span, ErrSaleIDRequired)
	}

	sale, err := s.repo.Load(ctx, cmd.ID)
	if err != nil {
		return nil, fail(span, err)
	}
	if sale.IsCancelled() {
		return nil, fail(span, ErrSaleCancelled)
	}

	items, err := rebuildItems(sale, cmd.Items)
	if err != nil {
		return nil, fail(span, err)
	}

	if err := sale.UpdateHeader(cmd.header()); err != nil {
		return nil, fail(span, err)
	}
	if err := sale.ReplaceItems(items); err != nil {
		return nil, fail(span, err)
	}

	if err := s.repo.SaveWithReplacedItems(ctx, sale); err != nil {
		return nil, fail(span, fmt.Errorf("failed to save sale: %w", err))
	}

	s.logger.Info("sale updated",
		zap.Stringer("sale_id", sale.ID()),
		zap.Int("items", len(items)),
		zap.Stringer("total", sale.Total()),
	)
	return sale, nil
}

// rebuildItems turns the command lines into sale items. A line whose id and product match an
// existing line keeps that line's identity.
func rebuildItems(sale *Sale, inputs []ItemInput) ([]*SaleItem, error) {
	existing := make(map[uuid.UUID]*SaleItem, len(sale.items))
	for _, item := range sale.items {
		existing[item.id] = item
	}

	items := make([]*SaleItem, 0, len(inputs))
	for i, in := range inputs {
		current, ok := existing[in.ID]
		if in.ID == uuid.Nil || !ok || current.productID != in.ProductID {
			item, err := NewSaleItem(in.ProductID, in.ProductName, in.Quantity, in.UnitPrice)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, item)
			continue
		}

		item := current.clone()
		if err := item.SetQuantity(in.Quantity); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if err := item.SetUnitPrice(in.UnitPrice); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		item.productName = in.ProductName
		// Reused once only; a duplicate id in the same command becomes a new line.
		delete(existing, in.ID)
		items = append(items, item)
	}
	return items, nil
}

func (s *service) CancelSale(ctx context.Context, id uuid.UUID) (*Sale, error) {
	ctx, span := s.tracer.Start(ctx, "sales.cancel",
		trace.WithAttributes(attribute.String("sale.id", id.String())))
	defer span.End()

	if id == uuid.Nil {
		return nil, fail(span, ErrSaleIDRequired)
	}

	sale, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := sale.Cancel(); err != nil {
		return nil, fail(span, err)
	}
	if err := s.repo.Save(ctx, sale); err != nil {
		return nil, fail(span, fmt.Errorf("failed to save sale: %w", err))
	}

	s.logger.Info("sale cancelled", zap.Stringer("sale_id", id))
	return sale, nil
}

func (s *service) DeleteSale(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "sales.delete",
		trace.WithAttributes(attribute.String("sale.id", id.String())))
	defer span.End()

	if id == uuid.Nil {
		return fail(span, ErrSaleIDRequired)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fail(span, err)
	}

	s.logger.Info("sale deleted", zap.Stringer("sale_id", id))
	return nil
}

func (s *service) SaleHistory(ctx context.Context, id uuid.UUID) ([]Event, error) {
	ctx, span := s.tracer.Start(ctx, "sales.history",
		trace.WithAttributes(attribute.String("sale.id", id.String())))
	defer span.End()

	if id == uuid.Nil {
		return nil, fail(span, ErrSaleIDRequired)
	}
	events, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	return events, nil
}

// fail records err on the span and returns it. Expected business outcomes keep the span status unset.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	if !errors.Is(err, ErrValidation) && !errors.Is(err, ErrInvalidState) && !errors.Is(err, ErrSaleNotFound) {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
