// internal/sales/postgres_repository.go
package sales

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"salesnexus/pkg/eventstore"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const aggregateType = "sale"

// Schema creates the sales read model. The events table comes from eventstore.Schema.
const Schema = `
CREATE TABLE IF NOT EXISTS sales (
	id UUID PRIMARY KEY,
	number TEXT NOT NULL,
	sale_date TIMESTAMPTZ NOT NULL,
	customer_id UUID NOT NULL,
	customer_name TEXT NOT NULL,
	branch_id UUID NOT NULL,
	branch_name TEXT NOT NULL,
	cancelled BOOLEAN NOT NULL DEFAULT FALSE,
	version INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sale_items (
	id UUID PRIMARY KEY,
	sale_id UUID NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
	position INT NOT NULL,
	product_id UUID NOT NULL,
	product_name TEXT NOT NULL,
	quantity INT NOT NULL CHECK (quantity BETWEEN 1 AND 20),
	unit_price NUMERIC NOT NULL CHECK (unit_price > 0)
);

CREATE INDEX IF NOT EXISTS idx_sale_items_sale_id ON sale_items(sale_id);

ALTER TABLE sale_items ALTER COLUMN unit_price TYPE NUMERIC;
`

// PostgresRepository persists sales in PostgreSQL and records their events
// in the event store within the same transaction.
type PostgresRepository struct {
	db         *sql.DB
	eventStore *eventstore.EventStore
	publisher  *publisher
	tracer     trace.Tracer
}

func NewPostgresRepository(db *sql.DB, es *eventstore.EventStore, sink EventSink, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:         db,
		eventStore: es,
		publisher:  newPublisher(sink, logger),
		tracer:     otel.Tracer("salesnexus/sales/postgres"),
	}
}

// Migrate creates the tables used by the gateway.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, eventstore.Schema); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create sales tables: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Load(ctx context.Context, id uuid.UUID) (*Sale, error) {
	ctx, span := r.tracer.Start(ctx, "sales.postgres.load",
		trace.WithAttributes(attribute.String("sale.id", id.String())))
	defer span.End()

	sale, err := r.loadSale(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return sale, nil
}

// LoadReadOnly reads the same rows as Load. The caller must not save the result back.
func (r *PostgresRepository) LoadReadOnly(ctx context.Context, id uuid.UUID) (*Sale, error) {
	ctx, span := r.tracer.Start(ctx, "sales.postgres.load_read_only",
		trace.WithAttributes(attribute.String("sale.id", id.String())))
	defer span.End()

	return r.loadSale(ctx, id)
}

func (r *PostgresRepository) loadSale(ctx context.Context, id uuid.UUID) (*Sale, error) {
	query := `
		SELECT number, sale_date, customer_id, customer_name, branch_id, branch_name, cancelled, version
		FROM sales
		WHERE id = $1
	`
	var h Header
	var cancelled bool
	var version int
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&h.Number, &h.Date, &h.CustomerID, &h.CustomerName, &h.BranchID, &h.BranchName, &cancelled, &version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sale: %w", err)
	}

	items, err := r.loadItems(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	return RestoreSale(id, h, cancelled, version, items[id]), nil
}

// loadItems returns the lines of the given sales grouped by sale id, in position order.
func (r *PostgresRepository) loadItems(ctx context.Context, saleIDs []uuid.UUID) (map[uuid.UUID][]*SaleItem, error) {
	ids := make([]string, len(saleIDs))
	for i, id := range saleIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price
		FROM sale_items
		WHERE sale_id = ANY($1::uuid[])
		ORDER BY sale_id, position
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query sale items: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]*SaleItem, len(saleIDs))
	for rows.Next() {
		var (
			id, saleID, productID uuid.UUID
			productName           string
			quantity              int
			unitPrice             decimal.Decimal
		)
		if err := rows.Scan(&id, &saleID, &productID, &productName, &quantity, &unitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan sale item: %w", err)
		}
		item, err := RestoreSaleItem(id, saleID, productID, productName, quantity, unitPrice)
		if err != nil {
			return nil, fmt.Errorf("stored item %s is invalid: %w", id, err)
		}
		out[saleID] = append(out[saleID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sale items: %w", err)
	}
	return out, nil
}

// Save upserts the header and every current line. Lines removed from the sale are left in place;
// use SaveWithReplacedItems for that.
func (r *PostgresRepository) Save(ctx context.Context, sale *Sale) error {
	return r.save(ctx, sale, false)
}

func (r *PostgresRepository) SaveWithReplacedItems(ctx context.Context, sale *Sale) error {
	return r.save(ctx, sale, true)
}

func (r *PostgresRepository) save(ctx context.Context, sale *Sale, replaceItems bool) error {
	ctx, span := r.tracer.Start(ctx, "sales.postgres.save",
		trace.WithAttributes(
			attribute.String("sale.id", sale.id.String()),
			attribute.Int("sale.version", sale.version),
			attribute.Bool("items.replaced", replaceItems),
		))
	defer span.End()

	pending := sale.PendingEvents()
	stored, err := toStoredEvents(sale.id, pending)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkVersion(ctx, tx, sale); err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrConcurrentModification) {
			span.SetStatus(codes.Error, "concurrent modification")
		}
		return err
	}

	if len(stored) > 0 {
		// The sales row lock serializes writers, so the stream head read here is stable.
		streamVersion, err := r.eventStore.GetCurrentVersionTx(ctx, tx, sale.id)
		if err != nil {
			return fmt.Errorf("failed to read event stream version: %w", err)
		}
		if err := r.eventStore.AppendEventsTx(ctx, tx, sale.id, aggregateType, streamVersion, stored); err != nil {
			span.RecordError(err)
			if errors.Is(err, eventstore.ErrConcurrencyConflict) {
				span.SetStatus(codes.Error, "concurrent modification")
				return ErrConcurrentModification
			}
			return fmt.Errorf("failed to append events: %w", err)
		}
	}

	if err := upsertHeader(ctx, tx, sale, sale.version+1); err != nil {
		return err
	}

	if replaceItems {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, sale.id); err != nil {
			return fmt.Errorf("failed to delete sale items: %w", err)
		}
	}
	if err := upsertItems(ctx, tx, sale); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	sale.markPersisted()
	r.publisher.publish(ctx, sale)
	return nil
}

// checkVersion locks the sale row and compares its version with the loaded one. A sale that was
// saved before but has no row any more was deleted.
func checkVersion(ctx context.Context, tx *sql.Tx, sale *Sale) error {
	var current int
	err := tx.QueryRowContext(ctx, `SELECT version FROM sales WHERE id = $1 FOR UPDATE`, sale.id).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if sale.version > 0 {
			return ErrSaleNotFound
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to lock sale: %w", err)
	case current != sale.version:
		return ErrConcurrentModification
	}
	return nil
}

func upsertHeader(ctx context.Context, tx *sql.Tx, sale *Sale, version int) error {
	query := `
		INSERT INTO sales (id, number, sale_date, customer_id, customer_name, branch_id, branch_name, cancelled, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			number = EXCLUDED.number,
			sale_date = EXCLUDED.sale_date,
			customer_id = EXCLUDED.customer_id,
			customer_name = EXCLUDED.customer_name,
			branch_id = EXCLUDED.branch_id,
			branch_name = EXCLUDED.branch_name,
			cancelled = EXCLUDED.cancelled,
			version = EXCLUDED.version,
			updated_at = NOW()
	`
	h := sale.header
	_, err := tx.ExecContext(ctx, query,
		sale.id, h.Number, h.Date, h.CustomerID, h.CustomerName, h.BranchID, h.BranchName, sale.cancelled, version)
	if err != nil {
		return fmt.Errorf("failed to upsert sale: %w", err)
	}
	return nil
}

func upsertItems(ctx context.Context, tx *sql.Tx, sale *Sale) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sale_items (id, sale_id, position, product_id, product_name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			position = EXCLUDED.position,
			product_id = EXCLUDED.product_id,
			product_name = EXCLUDED.product_name,
			quantity = EXCLUDED.quantity,
			unit_price = EXCLUDED.unit_price
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare item upsert: %w", err)
	}
	defer stmt.Close()

	for pos, item := range sale.items {
		if _, err := stmt.ExecContext(ctx,
			item.id, sale.id, pos, item.productID, item.productName, item.quantity, item.unitPrice,
		); err != nil {
			return fmt.Errorf("failed to upsert sale item %s: %w", item.id, err)
		}
	}
	return nil
}

func toStoredEvents(saleID uuid.UUID, events []Event) ([]eventstore.Event, error) {
	stored := make([]eventstore.Event, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s event: %w", e.Kind, err)
		}
		stored = append(stored, eventstore.Event{
			AggregateID:   saleID,
			AggregateType: aggregateType,
			EventType:     string(e.Kind),
			EventData:     data,
			CreatedAt:     e.OccurredOn,
		})
	}
	return stored, nil
}

// Delete removes the sale and, by cascade, its lines. The event log is kept.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := r.tracer.Start(ctx, "sales.postgres.delete",
		trace.WithAttributes(attribute.String("sale.id", id.String())))
	defer span.End()

	res, err := r.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrSaleNotFound
	}
	return nil
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*Sale, error) {
	ctx, span := r.tracer.Start(ctx, "sales.postgres.list_all")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, number, sale_date, customer_id, customer_name, branch_id, branch_name, cancelled, version
		FROM sales
		ORDER BY sale_date, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	type row struct {
		id        uuid.UUID
		header    Header
		cancelled bool
		version   int
	}
	var headers []row
	for rows.Next() {
		var s row
		if err := rows.Scan(&s.id, &s.header.Number, &s.header.Date, &s.header.CustomerID, &s.header.CustomerName,
			&s.header.BranchID, &s.header.BranchName, &s.cancelled, &s.version); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		headers = append(headers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sales: %w", err)
	}

	if len(headers) == 0 {
		return []*Sale{}, nil
	}

	ids := make([]uuid.UUID, len(headers))
	for i, h := range headers {
		ids[i] = h.id
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	sales := make([]*Sale, 0, len(headers))
	for _, h := range headers {
		sales = append(sales, RestoreSale(h.id, h.header, h.cancelled, h.version, items[h.id]))
	}
	span.SetAttributes(attribute.Int("sales.count", len(sales)))
	return sales, nil
}

// History reads the sale's persisted events from the event store.
func (r *PostgresRepository) History(ctx context.Context, id uuid.UUID) ([]Event, error) {
	ctx, span := r.tracer.Start(ctx, "sales.postgres.history",
		trace.WithAttributes(attribute.String("sale.id", id.String())))
	defer span.End()

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check sale: %w", err)
	}
	if !exists {
		return nil, ErrSaleNotFound
	}

	stored, err := r.eventStore.LoadEvents(ctx, id, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	history := make([]Event, 0, len(stored))
	for _, s := range stored {
		var e Event
		if err := json.Unmarshal(s.EventData, &e); err != nil {
			return nil, fmt.Errorf("failed to decode event %d: %w", s.ID, err)
		}
		history = append(history, e)
	}
	return history, nil
}
