package sales

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"salesnexus/pkg/eventstore"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRepository connects to the PostgreSQL named by the PG* variables.
// It skips the test if the connection cannot be established.
func setupTestRepository(t *testing.T, sink EventSink) *PostgresRepository {
	t.Helper()

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		envOr("PGHOST", "localhost"),
		envOr("PGPORT", "5432"),
		envOr("PGUSER", "user"),
		envOr("PGPASSWORD", "password"),
		envOr("PGDATABASE", "testdb"),
	)
	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: could not connect to postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewPostgresRepository(db, eventstore.NewEventStore(db), sink, nil)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestPostgresRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	repo := setupTestRepository(t, sink)

	s := newTestSale(t)
	require.NoError(t, s.AddItem(newTestItem(t, 5, "10")))
	require.NoError(t, s.AddItem(newTestItem(t, 12, "2.50")))
	require.NoError(t, repo.Save(ctx, s))
	t.Cleanup(func() { repo.Delete(ctx, s.ID()) })

	assert.Equal(t, []EventKind{SaleCreated}, sink.kinds())
	assert.Equal(t, 1, s.Version())

	loaded, err := repo.Load(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, s.Number(), loaded.Number())
	assert.True(t, s.Date().Equal(loaded.Date()))
	require.Len(t, loaded.Items(), 2)
	assert.Equal(t, s.Items()[0].ID(), loaded.Items()[0].ID())
	assert.Equal(t, s.Items()[1].ID(), loaded.Items()[1].ID())
	assert.Equal(t, "69.00", loaded.Total().StringFixed(2))
	assert.Equal(t, 1, loaded.Version())
}

func TestPostgresRepositoryReplacesItems(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t, nil)

	s := newTestSale(t)
	require.NoError(t, s.AddItem(newTestItem(t, 1, "1")))
	require.NoError(t, s.AddItem(newTestItem(t, 2, "2")))
	require.NoError(t, repo.Save(ctx, s))
	t.Cleanup(func() { repo.Delete(ctx, s.ID()) })

	loaded, err := repo.Load(ctx, s.ID())
	require.NoError(t, err)
	require.NoError(t, loaded.UpdateHeader(testHeader()))
	require.NoError(t, loaded.ReplaceItems([]*SaleItem{newTestItem(t, 4, "10")}))
	require.NoError(t, repo.SaveWithReplacedItems(ctx, loaded))

	reloaded, err := repo.LoadReadOnly(ctx, s.ID())
	require.NoError(t, err)
	require.Len(t, reloaded.Items(), 1)
	assert.Equal(t, "36.00", reloaded.Total().StringFixed(2))
	assert.Equal(t, 2, reloaded.Version())
}

func TestPostgresRepositoryConcurrentModification(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t, nil)

	s := newTestSale(t)
	require.NoError(t, repo.Save(ctx, s))
	t.Cleanup(func() { repo.Delete(ctx, s.ID()) })

	first, err := repo.Load(ctx, s.ID())
	require.NoError(t, err)
	second, err := repo.Load(ctx, s.ID())
	require.NoError(t, err)

	require.NoError(t, first.Cancel())
	require.NoError(t, repo.Save(ctx, first))

	require.NoError(t, second.UpdateHeader(testHeader()))
	assert.ErrorIs(t, repo.Save(ctx, second), ErrConcurrentModification)

	history, err := repo.History(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, []EventKind{SaleCreated, SaleCancelled}, eventKinds(history))
}

func TestPostgresRepositoryDeleteAndList(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t, nil)

	s := newTestSale(t)
	require.NoError(t, s.AddItem(newTestItem(t, 3, "3")))
	require.NoError(t, repo.Save(ctx, s))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	found := false
	for _, listed := range all {
		if listed.ID() == s.ID() {
			found = true
			assert.Len(t, listed.Items(), 1)
		}
	}
	assert.True(t, found)

	require.NoError(t, repo.Delete(ctx, s.ID()))
	assert.ErrorIs(t, repo.Delete(ctx, s.ID()), ErrSaleNotFound)
	_, err = repo.Load(ctx, s.ID())
	assert.ErrorIs(t, err, ErrSaleNotFound)
	_, err = repo.History(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSaleNotFound)
}

func TestPostgresRepositoryDeletedSaleStaysDeleted(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t, nil)

	s := newTestSale(t)
	require.NoError(t, repo.Save(ctx, s))
	stale, err := repo.Load(ctx, s.ID())
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, s.ID()))

	require.NoError(t, stale.UpdateHeader(testHeader()))
	assert.ErrorIs(t, repo.Save(ctx, stale), ErrSaleNotFound)
	_, err = repo.Load(ctx, s.ID())
	assert.ErrorIs(t, err, ErrSaleNotFound)
}

func TestPostgresRepositoryDetectsConflictWithoutEvents(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t, nil)

	s := newTestSale(t)
	require.NoError(t, repo.Save(ctx, s))
	t.Cleanup(func() { repo.Delete(ctx, s.ID()) })

	first, err := repo.Load(ctx, s.ID())
	require.NoError(t, err)
	second, err := repo.Load(ctx, s.ID())
	require.NoError(t, err)

	require.NoError(t, first.ReplaceItems([]*SaleItem{newTestItem(t, 4, "10")}))
	require.NoError(t, repo.SaveWithReplacedItems(ctx, first))
	assert.Equal(t, 2, first.Version())

	require.NoError(t, second.ReplaceItems([]*SaleItem{newTestItem(t, 1, "1")}))
	assert.ErrorIs(t, repo.SaveWithReplacedItems(ctx, second), ErrConcurrentModification)

	history, err := repo.History(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, []EventKind{SaleCreated}, eventKinds(history))
}

func TestPostgresRepositoryKeepsUnitPricePrecision(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t, nil)

	s := newTestSale(t)
	require.NoError(t, s.AddItem(newTestItem(t, 7, "1.23456")))
	require.NoError(t, repo.Save(ctx, s))
	t.Cleanup(func() { repo.Delete(ctx, s.ID()) })

	loaded, err := repo.LoadReadOnly(ctx, s.ID())
	require.NoError(t, err)
	require.Len(t, loaded.Items(), 1)
	assert.True(t, dec("1.23456").Equal(loaded.Items()[0].UnitPrice()))
	assert.Equal(t, s.Total().StringFixed(2), loaded.Total().StringFixed(2))
}
