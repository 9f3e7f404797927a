// internal/sales/dto.go
package sales

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ItemRequest struct {
	ID          uuid.UUID       `json:"id,omitempty"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// SaleRequest is the body of POST /sales and PUT /sales/{id}.
type SaleRequest struct {
	Number       string        `json:"number"`
	Date         time.Time     `json:"date"`
	CustomerID   uuid.UUID     `json:"customer_id"`
	CustomerName string        `json:"customer_name"`
	BranchID     uuid.UUID     `json:"branch_id"`
	BranchName   string        `json:"branch_name"`
	Items        []ItemRequest `json:"items"`
}

// Validate checks the request shape before it reaches the domain. It reports every problem at once.
func (r SaleRequest) Validate() error {
	var problems []string
	check := func(ok bool, msg string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(msg, args...))
		}
	}

	check(lengthBetween(r.Number, 1, 50), "number must have between 1 and 50 characters")
	check(!r.Date.IsZero(), "date is required")
	check(r.CustomerID != uuid.Nil, "customer_id is required")
	check(lengthBetween(r.CustomerName, 2, 100), "customer_name must have between 2 and 100 characters")
	check(r.BranchID != uuid.Nil, "branch_id is required")
	check(lengthBetween(r.BranchName, 2, 100), "branch_name must have between 2 and 100 characters")
	check(len(r.Items) > 0, "at least one item is required")

	for i, item := range r.Items {
		check(item.ProductID != uuid.Nil, "items[%d].product_id is required", i)
		check(lengthBetween(item.ProductName, 2, 150), "items[%d].product_name must have between 2 and 150 characters", i)
		check(item.Quantity > 0, "items[%d].quantity must be greater than zero", i)
		check(item.Quantity <= MaxQuantityPerItem, "items[%d].quantity cannot exceed %d", i, MaxQuantityPerItem)
		check(item.UnitPrice.IsPositive(), "items[%d].unit_price must be greater than zero", i)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func lengthBetween(s string, min, max int) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= min && n <= max
}

func (r SaleRequest) itemInputs() []ItemInput {
	inputs := make([]ItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		inputs = append(inputs, ItemInput{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return inputs
}

func (r SaleRequest) createCommand() CreateSaleCommand {
	return CreateSaleCommand{
		Number:       r.Number,
		Date:         r.Date,
		CustomerID:   r.CustomerID,
		CustomerName: r.CustomerName,
		BranchID:     r.BranchID,
		BranchName:   r.BranchName,
		Items:        r.itemInputs(),
	}
}

func (r SaleRequest) updateCommand(id uuid.UUID) UpdateSaleCommand {
	return UpdateSaleCommand{
		ID:           id,
		Number:       r.Number,
		Date:         r.Date,
		CustomerID:   r.CustomerID,
		CustomerName: r.CustomerName,
		BranchID:     r.BranchID,
		BranchName:   r.BranchName,
		Items:        r.itemInputs(),
	}
}

type ItemResponse struct {
	ID              uuid.UUID       `json:"id"`
	ProductID       uuid.UUID       `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Total           decimal.Decimal `json:"total"`
}

type SaleResponse struct {
	ID           uuid.UUID       `json:"id"`
	Number       string          `json:"number"`
	Date         time.Time       `json:"date"`
	CustomerID   uuid.UUID       `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	BranchID     uuid.UUID       `json:"branch_id"`
	BranchName   string          `json:"branch_name"`
	Cancelled    bool            `json:"cancelled"`
	Total        decimal.Decimal `json:"total"`
	Version      int             `json:"version"`
	Items        []ItemResponse  `json:"items"`
}

func NewSaleResponse(s *Sale) SaleResponse {
	items := make([]ItemResponse, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, ItemResponse{
			ID:              item.ID(),
			ProductID:       item.ProductID(),
			ProductName:     item.ProductName(),
			Quantity:        item.Quantity(),
			UnitPrice:       item.UnitPrice(),
			DiscountPercent: item.DiscountPercent(),
			Total:           item.Total(),
		})
	}
	return SaleResponse{
		ID:           s.ID(),
		Number:       s.Number(),
		Date:         s.Date(),
		CustomerID:   s.CustomerID(),
		CustomerName: s.CustomerName(),
		BranchID:     s.BranchID(),
		BranchName:   s.BranchName(),
		Cancelled:    s.IsCancelled(),
		Total:        s.Total(),
		Version:      s.Version(),
		Items:        items,
	}
}
