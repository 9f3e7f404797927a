// internal/sales/domain.go
package sales

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxQuantityPerItem is the largest quantity a single line may carry.
const MaxQuantityPerItem = 20

var (
	hundred          = decimal.NewFromInt(100)
	discountNone     = decimal.Zero
	discountMidTier  = decimal.NewFromInt(10)
	discountHighTier = decimal.NewFromInt(20)
)

// DiscountFor returns the discount percent granted for a line quantity.
func DiscountFor(quantity int) decimal.Decimal {
	switch {
	case quantity >= 10:
		return discountHighTier
	case quantity >= 4:
		return discountMidTier
	default:
		return discountNone
	}
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

func validateQuantity(quantity int) error {
	if quantity <= 0 {
		return ErrQuantityNotPositive
	}
	if quantity > MaxQuantityPerItem {
		return ErrQuantityAboveLimit
	}
	return nil
}

func validateUnitPrice(unitPrice decimal.Decimal) error {
	if !unitPrice.IsPositive() {
		return ErrUnitPriceNotPositive
	}
	return nil
}

// SaleItem represents one product line of a sale.
type SaleItem struct {
	id              uuid.UUID
	saleID          uuid.UUID
	productID       uuid.UUID
	productName     string
	quantity        int
	unitPrice       decimal.Decimal
	discountPercent decimal.Decimal
}

// NewSaleItem creates a line with its discount tier already applied.
func NewSaleItem(productID uuid.UUID, productName string, quantity int, unitPrice decimal.Decimal) (*SaleItem, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	if err := validateUnitPrice(unitPrice); err != nil {
		return nil, err
	}

	return &SaleItem{
		id:              uuid.New(),
		productID:       productID,
		productName:     productName,
		quantity:        quantity,
		unitPrice:       unitPrice,
		discountPercent: DiscountFor(quantity),
	}, nil
}

// RestoreSaleItem rebuilds a persisted line. The discount is derived again from the quantity.
func RestoreSaleItem(id, saleID, productID uuid.UUID, productName string, quantity int, unitPrice decimal.Decimal) (*SaleItem, error) {
	item, err := NewSaleItem(productID, productName, quantity, unitPrice)
	if err != nil {
		return nil, err
	}
	item.id = id
	item.saleID = saleID
	return item, nil
}

func (i *SaleItem) ID() uuid.UUID                    { return i.id }
func (i *SaleItem) SaleID() uuid.UUID                { return i.saleID }
func (i *SaleItem) ProductID() uuid.UUID             { return i.productID }
func (i *SaleItem) ProductName() string              { return i.productName }
func (i *SaleItem) Quantity() int                    { return i.quantity }
func (i *SaleItem) UnitPrice() decimal.Decimal       { return i.unitPrice }
func (i *SaleItem) DiscountPercent() decimal.Decimal { return i.discountPercent }

// Total is quantity × unit price less the discount, rounded to cents.
func (i *SaleItem) Total() decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(i.discountPercent.Div(hundred))
	return roundMoney(decimal.NewFromInt(int64(i.quantity)).Mul(i.unitPrice).Mul(factor))
}

// SetQuantity changes the quantity and re-evaluates the discount tier.
func (i *SaleItem) SetQuantity(quantity int) error {
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	i.quantity = quantity
	i.discountPercent = DiscountFor(quantity)
	return nil
}

// SetUnitPrice changes the unit price.
func (i *SaleItem) SetUnitPrice(unitPrice decimal.Decimal) error {
	if err := validateUnitPrice(unitPrice); err != nil {
		return err
	}
	i.unitPrice = unitPrice
	return nil
}

func (i *SaleItem) clone() *SaleItem {
	c := *i
	return &c
}

// Header groups the descriptive fields of a sale.
type Header struct {
	Number       string
	Date         time.Time
	CustomerID   uuid.UUID
	CustomerName string
	BranchID     uuid.UUID
	BranchName   string
}

func (h Header) validate() error {
	if strings.TrimSpace(h.Number) == "" {
		return ErrSaleNumberRequired
	}
	return nil
}

// Sale is the aggregate root. It owns its items and records domain events
// until the persistence gateway drains them.
type Sale struct {
	id        uuid.UUID
	header    Header
	cancelled bool
	items     []*SaleItem
	version   int

	events eventBuffer
}

// NewSale creates an active sale with no items and records SaleCreated.
func NewSale(h Header) (*Sale, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}

	s := &Sale{
		id:     uuid.New(),
		header: h,
	}
	s.events.record(Event{Kind: SaleCreated, SaleID: s.id, OccurredOn: now()})
	return s, nil
}

// RestoreSale rebuilds a persisted sale without recording events.
func RestoreSale(id uuid.UUID, h Header, cancelled bool, version int, items []*SaleItem) *Sale {
	s := &Sale{
		id:        id,
		header:    h,
		cancelled: cancelled,
		version:   version,
		items:     make([]*SaleItem, 0, len(items)),
	}
	for _, item := range items {
		item.saleID = id
		s.items = append(s.items, item.clone())
	}
	return s
}

func (s *Sale) ID() uuid.UUID         { return s.id }
func (s *Sale) Header() Header        { return s.header }
func (s *Sale) Number() string        { return s.header.Number }
func (s *Sale) Date() time.Time       { return s.header.Date }
func (s *Sale) CustomerID() uuid.UUID { return s.header.CustomerID }
func (s *Sale) CustomerName() string  { return s.header.CustomerName }
func (s *Sale) BranchID() uuid.UUID   { return s.header.BranchID }
func (s *Sale) BranchName() string    { return s.header.BranchName }
func (s *Sale) IsCancelled() bool     { return s.cancelled }
func (s *Sale) Version() int          { return s.version }

// Items returns copies of the lines in insertion order. Changing them does not change the sale.
func (s *Sale) Items() []*SaleItem {
	out := make([]*SaleItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.clone())
	}
	return out
}

// Total is the sum of the line totals, rounded to cents.
func (s *Sale) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range s.items {
		sum = sum.Add(item.Total())
	}
	return roundMoney(sum)
}

// UpdateHeader replaces all header fields and records SaleModified.
func (s *Sale) UpdateHeader(h Header) error {
	if s.cancelled {
		return ErrSaleCancelled
	}
	if err := h.validate(); err != nil {
		return err
	}

	s.header = h
	s.events.record(Event{Kind: SaleModified, SaleID: s.id, OccurredOn: now()})
	return nil
}

// AddItem appends a copy of item as a new line. No event is recorded.
func (s *Sale) AddItem(item *SaleItem) error {
	if s.cancelled {
		return ErrSaleCancelled
	}
	if err := s.checkOwnership(item); err != nil {
		return err
	}
	for _, existing := range s.items {
		if existing.id == item.id {
			return ErrDuplicateItem
		}
	}

	item.saleID = s.id
	s.items = append(s.items, item.clone())
	return nil
}

// ReplaceItems swaps the whole line collection for copies of items. No event is recorded.
func (s *Sale) ReplaceItems(items []*SaleItem) error {
	if s.cancelled {
		return ErrSaleCancelled
	}
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		if err := s.checkOwnership(item); err != nil {
			return err
		}
		if _, dup := seen[item.id]; dup {
			return ErrDuplicateItem
		}
		seen[item.id] = struct{}{}
	}

	replaced := make([]*SaleItem, 0, len(items))
	for _, item := range items {
		item.saleID = s.id
		replaced = append(replaced, item.clone())
	}
	s.items = replaced
	return nil
}

// Cancel freezes the sale and records SaleCancelled. It cannot be undone.
func (s *Sale) Cancel() error {
	if s.cancelled {
		return ErrSaleAlreadyCancelled
	}

	s.cancelled = true
	s.events.record(Event{Kind: SaleCancelled, SaleID: s.id, OccurredOn: now()})
	return nil
}

// PendingEvents returns a copy of the events recorded since the last drain.
func (s *Sale) PendingEvents() []Event {
	return s.events.pending()
}

// ClearEvents discards the pending events.
func (s *Sale) ClearEvents() {
	s.events.clear()
}

// DrainEvents returns the pending events and clears the buffer.
func (s *Sale) DrainEvents() []Event {
	return s.events.drain()
}

func (s *Sale) checkOwnership(item *SaleItem) error {
	if item == nil {
		return ErrNilItem
	}
	if item.saleID != uuid.Nil && item.saleID != s.id {
		return ErrItemOwnedElsewhere
	}
	return nil
}

// markPersisted advances the version after a successful save, with or without events.
func (s *Sale) markPersisted() {
	s.version++
}

// clone copies the sale and its items. Pending events are not copied.
func (s *Sale) clone() *Sale {
	c := &Sale{
		id:        s.id,
		header:    s.header,
		cancelled: s.cancelled,
		version:   s.version,
		items:     make([]*SaleItem, 0, len(s.items)),
	}
	for _, item := range s.items {
		c.items = append(c.items, item.clone())
	}
	return c
}
