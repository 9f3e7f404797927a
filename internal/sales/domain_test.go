package sales

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testHeader() Header {
	return Header{
		Number:       "S-0001",
		Date:         time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
		CustomerID:   uuid.New(),
		CustomerName: "Ada Lovelace",
		BranchID:     uuid.New(),
		BranchName:   "Downtown",
	}
}

func newTestSale(t *testing.T) *Sale {
	t.Helper()
	s, err := NewSale(testHeader())
	require.NoError(t, err)
	return s
}

func newTestItem(t *testing.T, qty int, price string) *SaleItem {
	t.Helper()
	item, err := NewSaleItem(uuid.New(), "Widget", qty, dec(price))
	require.NoError(t, err)
	return item
}

func eventKinds(events []Event) []EventKind {
	kinds := make([]EventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func TestDiscountTiers(t *testing.T) {
	tests := []struct {
		quantity int
		want     string
	}{
		{1, "0"}, {3, "0"},
		{4, "10"}, {9, "10"},
		{10, "20"}, {20, "20"},
	}
	for _, tt := range tests {
		item, err := NewSaleItem(uuid.New(), "Widget", tt.quantity, dec("1"))
		require.NoError(t, err)
		assert.True(t, item.DiscountPercent().Equal(dec(tt.want)), "quantity %d: got %s", tt.quantity, item.DiscountPercent())
	}
}

func TestNewSaleItemRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		price    string
		want     error
	}{
		{"zero quantity", 0, "10", ErrQuantityNotPositive},
		{"negative quantity", -3, "10", ErrQuantityNotPositive},
		{"above limit", 21, "10", ErrQuantityAboveLimit},
		{"zero price", 1, "0", ErrUnitPriceNotPositive},
		{"negative price", 1, "-0.01", ErrUnitPriceNotPositive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := NewSaleItem(uuid.New(), "Widget", tt.quantity, dec(tt.price))
			assert.Nil(t, item)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestSaleItemSettersAreAtomic(t *testing.T) {
	item := newTestItem(t, 5, "10")

	assert.ErrorIs(t, item.SetQuantity(25), ErrValidation)
	assert.Equal(t, 5, item.Quantity())
	assert.True(t, item.DiscountPercent().Equal(dec("10")))

	assert.ErrorIs(t, item.SetUnitPrice(dec("0")), ErrValidation)
	assert.True(t, item.UnitPrice().Equal(dec("10")))

	require.NoError(t, item.SetQuantity(12))
	assert.True(t, item.DiscountPercent().Equal(dec("20")))
	assert.True(t, item.Total().Equal(dec("96")))

	require.NoError(t, item.SetQuantity(2))
	assert.True(t, item.DiscountPercent().IsZero())

	require.NoError(t, item.SetUnitPrice(dec("7.5")))
	assert.True(t, item.Total().Equal(dec("15")))
}

func TestItemTotalRoundsToCents(t *testing.T) {
	// 3 × 3.333 = 9.999
	item := newTestItem(t, 3, "3.333")
	assert.Equal(t, "10.00", item.Total().StringFixed(2))

	// 4 × 0.125 × 0.9 = 0.45
	item = newTestItem(t, 4, "0.125")
	assert.Equal(t, "0.45", item.Total().StringFixed(2))

	// 1 × 0.125 = 0.125, rounds half to even
	item = newTestItem(t, 1, "0.125")
	assert.Equal(t, "0.12", item.Total().StringFixed(2))
}

func TestNewSaleRecordsCreated(t *testing.T) {
	s := newTestSale(t)

	assert.NotEqual(t, uuid.Nil, s.ID())
	assert.False(t, s.IsCancelled())
	assert.Empty(t, s.Items())
	assert.True(t, s.Total().IsZero())

	events := s.PendingEvents()
	require.Len(t, events, 1)
	assert.Equal(t, SaleCreated, events[0].Kind)
	assert.Equal(t, s.ID(), events[0].SaleID)
	assert.False(t, events[0].OccurredOn.IsZero())
}

func TestNewSaleRequiresNumber(t *testing.T) {
	for _, number := range []string{"", "   ", "\t"} {
		h := testHeader()
		h.Number = number
		s, err := NewSale(h)
		assert.Nil(t, s)
		assert.ErrorIs(t, err, ErrSaleNumberRequired)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestSaleTotalWithoutDiscounts(t *testing.T) {
	s := newTestSale(t)
	require.NoError(t, s.AddItem(newTestItem(t, 2, "10")))
	require.NoError(t, s.AddItem(newTestItem(t, 1, "20")))

	assert.Equal(t, "40.00", s.Total().StringFixed(2))
	for _, item := range s.Items() {
		assert.True(t, item.DiscountPercent().IsZero())
	}
}

func TestSaleTotalWithMidTierDiscount(t *testing.T) {
	s := newTestSale(t)
	item := newTestItem(t, 5, "10")
	require.NoError(t, s.AddItem(item))

	assert.True(t, item.DiscountPercent().Equal(dec("10")))
	assert.Equal(t, "45.00", item.Total().StringFixed(2))
	assert.Equal(t, "45.00", s.Total().StringFixed(2))
}

func TestAddItemWithHighTierDiscount(t *testing.T) {
	s := newTestSale(t)
	item := newTestItem(t, 15, "10")
	require.NoError(t, s.AddItem(item))

	assert.True(t, item.DiscountPercent().Equal(dec("20")))
	assert.Equal(t, "120.00", item.Total().StringFixed(2))
	assert.Equal(t, s.ID(), item.SaleID())
}

func TestAddItemAndReplaceItemsRecordNoEvents(t *testing.T) {
	s := newTestSale(t)
	s.ClearEvents()

	require.NoError(t, s.AddItem(newTestItem(t, 1, "5")))
	require.NoError(t, s.ReplaceItems([]*SaleItem{newTestItem(t, 2, "5")}))

	assert.Empty(t, s.PendingEvents())
}

func TestItemsKeepInsertionOrder(t *testing.T) {
	s := newTestSale(t)
	first := newTestItem(t, 1, "1")
	second := newTestItem(t, 2, "2")
	third := newTestItem(t, 3, "3")
	for _, item := range []*SaleItem{first, second, third} {
		require.NoError(t, s.AddItem(item))
	}

	items := s.Items()
	require.Len(t, items, 3)
	assert.Equal(t, first.ID(), items[0].ID())
	assert.Equal(t, second.ID(), items[1].ID())
	assert.Equal(t, third.ID(), items[2].ID())
}

func TestItemsReturnsCopyOfCollection(t *testing.T) {
	s := newTestSale(t)
	require.NoError(t, s.AddItem(newTestItem(t, 1, "1")))

	items := s.Items()
	items[0] = nil
	assert.NotNil(t, s.Items()[0])
}

func TestAddItemRejectsForeignItem(t *testing.T) {
	owner := newTestSale(t)
	other := newTestSale(t)
	item := newTestItem(t, 1, "1")
	require.NoError(t, owner.AddItem(item))

	assert.ErrorIs(t, other.AddItem(item), ErrItemOwnedElsewhere)
	assert.ErrorIs(t, other.AddItem(nil), ErrNilItem)
	assert.Empty(t, other.Items())
}

func TestReplaceItemsWithEmptyList(t *testing.T) {
	s := newTestSale(t)
	require.NoError(t, s.AddItem(newTestItem(t, 4, "10")))

	require.NoError(t, s.ReplaceItems(nil))
	assert.Empty(t, s.Items())
	assert.True(t, s.Total().IsZero())
}

func TestReplaceItemsIsAllOrNothing(t *testing.T) {
	s := newTestSale(t)
	kept := newTestItem(t, 1, "1")
	require.NoError(t, s.AddItem(kept))

	err := s.ReplaceItems([]*SaleItem{newTestItem(t, 2, "2"), nil})
	assert.ErrorIs(t, err, ErrNilItem)
	require.Len(t, s.Items(), 1)
	assert.Equal(t, kept.ID(), s.Items()[0].ID())
}

func TestUpdateHeader(t *testing.T) {
	s := newTestSale(t)
	s.ClearEvents()

	h := testHeader()
	h.Number = "S-0002"
	h.BranchName = "Uptown"
	require.NoError(t, s.UpdateHeader(h))

	assert.Equal(t, h, s.Header())
	assert.Equal(t, []EventKind{SaleModified}, eventKinds(s.PendingEvents()))
}

func TestUpdateHeaderValidatesBeforeMutating(t *testing.T) {
	s := newTestSale(t)
	s.ClearEvents()
	before := s.Header()

	h := testHeader()
	h.Number = " "
	h.CustomerName = "Someone Else"
	assert.ErrorIs(t, s.UpdateHeader(h), ErrValidation)

	assert.Equal(t, before, s.Header())
	assert.Empty(t, s.PendingEvents())
}

func TestCancelIsOneWay(t *testing.T) {
	s := newTestSale(t)
	s.ClearEvents()

	require.NoError(t, s.Cancel())
	assert.True(t, s.IsCancelled())
	assert.Equal(t, []EventKind{SaleCancelled}, eventKinds(s.PendingEvents()))

	err := s.Cancel()
	assert.ErrorIs(t, err, ErrSaleAlreadyCancelled)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Len(t, s.PendingEvents(), 1)
}

func TestCancelledSaleIsFrozen(t *testing.T) {
	s := newTestSale(t)
	item := newTestItem(t, 3, "10")
	require.NoError(t, s.AddItem(item))
	require.NoError(t, s.Cancel())
	s.ClearEvents()
	header := s.Header()

	h := testHeader()
	h.Number = "S-9999"
	assert.ErrorIs(t, s.UpdateHeader(h), ErrInvalidState)
	assert.ErrorIs(t, s.AddItem(newTestItem(t, 1, "1")), ErrInvalidState)
	assert.ErrorIs(t, s.ReplaceItems(nil), ErrInvalidState)
	assert.ErrorIs(t, s.Cancel(), ErrInvalidState)

	assert.True(t, s.IsCancelled())
	assert.Equal(t, header, s.Header())
	require.Len(t, s.Items(), 1)
	assert.Equal(t, item.ID(), s.Items()[0].ID())
	assert.Empty(t, s.PendingEvents())
}

func TestCancelledSaleItemsCannotBeChanged(t *testing.T) {
	s := newTestSale(t)
	item := newTestItem(t, 2, "10")
	require.NoError(t, s.AddItem(item))
	require.NoError(t, s.Cancel())
	before := s.Total()

	require.NoError(t, s.Items()[0].SetQuantity(15))
	require.NoError(t, s.Items()[0].SetUnitPrice(dec("99")))
	require.NoError(t, item.SetQuantity(15))

	assert.True(t, before.Equal(s.Total()), "total changed from %s to %s", before, s.Total())
	assert.Equal(t, 2, s.Items()[0].Quantity())
}

func TestAddItemRejectsSameItemTwice(t *testing.T) {
	s := newTestSale(t)
	item := newTestItem(t, 2, "10")
	require.NoError(t, s.AddItem(item))

	err := s.AddItem(item)
	assert.ErrorIs(t, err, ErrDuplicateItem)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, s.AddItem(s.Items()[0]), ErrDuplicateItem)

	require.Len(t, s.Items(), 1)
	assert.Equal(t, "20.00", s.Total().StringFixed(2))
}

func TestReplaceItemsRejectsRepeatedItem(t *testing.T) {
	s := newTestSale(t)
	kept := newTestItem(t, 1, "5")
	require.NoError(t, s.AddItem(kept))

	repeated := newTestItem(t, 2, "10")
	assert.ErrorIs(t, s.ReplaceItems([]*SaleItem{repeated, repeated}), ErrDuplicateItem)
	require.Len(t, s.Items(), 1)
	assert.Equal(t, kept.ID(), s.Items()[0].ID())

	// The current lines may be passed back as the replacement.
	require.NoError(t, s.ReplaceItems(append(s.Items(), repeated)))
	assert.Len(t, s.Items(), 2)
}

func TestDrainEventsEmptiesBuffer(t *testing.T) {
	s := newTestSale(t)
	require.NoError(t, s.UpdateHeader(testHeader()))
	require.NoError(t, s.Cancel())

	drained := s.DrainEvents()
	assert.Equal(t, []EventKind{SaleCreated, SaleModified, SaleCancelled}, eventKinds(drained))
	assert.Empty(t, s.PendingEvents())
	assert.Empty(t, s.DrainEvents())
}

func TestPendingEventsIsReadOnlyView(t *testing.T) {
	s := newTestSale(t)
	view := s.PendingEvents()
	view[0].Kind = SaleCancelled

	assert.Equal(t, SaleCreated, s.PendingEvents()[0].Kind)
}

func TestRestoreSaleRecordsNoEvents(t *testing.T) {
	id := uuid.New()
	item, err := RestoreSaleItem(uuid.New(), uuid.Nil, uuid.New(), "Widget", 10, dec("2.50"))
	require.NoError(t, err)

	s := RestoreSale(id, testHeader(), true, 3, []*SaleItem{item})
	assert.Equal(t, id, s.ID())
	assert.True(t, s.IsCancelled())
	assert.Equal(t, 3, s.Version())
	assert.Equal(t, id, item.SaleID())
	assert.Equal(t, "20.00", s.Total().StringFixed(2))
	assert.Empty(t, s.PendingEvents())
}

func TestDiscountTierProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q := rapid.IntRange(-50, 50).Draw(t, "quantity")
		item, err := NewSaleItem(uuid.New(), "Widget", q, dec("1"))

		switch {
		case q <= 0 || q > MaxQuantityPerItem:
			if err == nil || item != nil {
				t.Fatalf("quantity %d accepted", q)
			}
		case q <= 3:
			if !item.DiscountPercent().IsZero() {
				t.Fatalf("quantity %d: discount %s, want 0", q, item.DiscountPercent())
			}
		case q <= 9:
			if !item.DiscountPercent().Equal(decimal.NewFromInt(10)) {
				t.Fatalf("quantity %d: discount %s, want 10", q, item.DiscountPercent())
			}
		default:
			if !item.DiscountPercent().Equal(decimal.NewFromInt(20)) {
				t.Fatalf("quantity %d: discount %s, want 20", q, item.DiscountPercent())
			}
		}
	})
}

func TestTotalsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s, err := NewSale(testHeader())
		if err != nil {
			t.Fatal(err)
		}

		n := rapid.IntRange(0, 8).Draw(t, "items")
		want := decimal.Zero
		for i := 0; i < n; i++ {
			q := rapid.IntRange(1, MaxQuantityPerItem).Draw(t, "quantity")
			cents := rapid.Int64Range(1, 1_000_000).Draw(t, "cents")
			price := decimal.New(cents, -2)

			item, err := NewSaleItem(uuid.New(), "Widget", q, price)
			if err != nil {
				t.Fatal(err)
			}
			factor := decimal.NewFromInt(1).Sub(DiscountFor(q).Div(decimal.NewFromInt(100)))
			line := decimal.NewFromInt(int64(q)).Mul(price).Mul(factor).RoundBank(2)
			if !item.Total().Equal(line) {
				t.Fatalf("item total %s, want %s", item.Total(), line)
			}
			if err := s.AddItem(item); err != nil {
				t.Fatal(err)
			}
			want = want.Add(line)
		}

		if !s.Total().Equal(want.RoundBank(2)) {
			t.Fatalf("sale total %s, want %s", s.Total(), want)
		}
	})
}
