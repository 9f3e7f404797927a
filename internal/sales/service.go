// internal/sales/service.go
package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service defines the interface for the sales service.
type Service interface {
	CreateSale(ctx context.Context, cmd CreateSaleCommand) (*Sale, error)
	GetSale(ctx context.Context, id uuid.UUID) (*Sale, error)
	ListSales(ctx context.Context) ([]*Sale, error)
	UpdateSale(ctx context.Context, cmd UpdateSaleCommand) (*Sale, error)
	CancelSale(ctx context.Context, id uuid.UUID) (*Sale, error)
	DeleteSale(ctx context.Context, id uuid.UUID) error
	SaleHistory(ctx context.Context, id uuid.UUID) ([]Event, error)
}

// ItemInput describes a line in a create or update command.
// ID is only consulted on update, to keep the identity of an existing line.
type ItemInput struct {
	ID          uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

type CreateSaleCommand struct {
	Number       string
	Date         time.Time
	CustomerID   uuid.UUID
	CustomerName string
	BranchID     uuid.UUID
	BranchName   string
	Items        []ItemInput
}

type UpdateSaleCommand struct {
	ID           uuid.UUID
	Number       string
	Date         time.Time
	CustomerID   uuid.UUID
	CustomerName string
	BranchID     uuid.UUID
	BranchName   string
	Items        []ItemInput
}

func (c CreateSaleCommand) header() Header {
	return Header{
		Number:       c.Number,
		Date:         c.Date,
		CustomerID:   c.CustomerID,
		CustomerName: c.CustomerName,
		BranchID:     c.BranchID,
		BranchName:   c.BranchName,
	}
}

func (c UpdateSaleCommand) header() Header {
	return Header{
		Number:       c.Number,
		Date:         c.Date,
		CustomerID:   c.CustomerID,
		CustomerName: c.CustomerName,
		BranchID:     c.BranchID,
		BranchName:   c.BranchName,
	}
}
