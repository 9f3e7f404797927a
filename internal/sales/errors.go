// internal/sales/errors.go
package sales

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain failure wraps exactly one of them.
var (
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("invalid sale state")
)

var (
	ErrSaleNumberRequired   = fmt.Errorf("%w: sale number is required", ErrValidation)
	ErrQuantityNotPositive  = fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	ErrQuantityAboveLimit   = fmt.Errorf("%w: cannot sell more than %d units of the same product", ErrValidation, MaxQuantityPerItem)
	ErrUnitPriceNotPositive = fmt.Errorf("%w: unit price must be greater than zero", ErrValidation)
	ErrNilItem              = fmt.Errorf("%w: sale item is required", ErrValidation)
	ErrItemOwnedElsewhere   = fmt.Errorf("%w: sale item belongs to another sale", ErrValidation)
	ErrDuplicateItem        = fmt.Errorf("%w: sale item appears on more than one line", ErrValidation)
	ErrSaleIDRequired       = fmt.Errorf("%w: sale id must be provided", ErrValidation)

	ErrSaleCancelled        = fmt.Errorf("%w: cannot modify a cancelled sale", ErrInvalidState)
	ErrSaleAlreadyCancelled = fmt.Errorf("%w: sale is already cancelled", ErrInvalidState)
)

var (
	ErrSaleNotFound           = errors.New("sale not found")
	ErrConcurrentModification = errors.New("sale was modified concurrently")
)
