// internal/chaos/probe.go
package chaos

import (
	"context"
	"fmt"
	"time"

	"salesnexus/internal/sales"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Probe drives synthetic sale creations against a service and measures how many succeed.
type Probe struct {
	service sales.Service
	batch   int
	timeout time.Duration
	seq     int
}

// NewProbe creates a probe issuing batch creations per sample, each bounded by timeout.
func NewProbe(service sales.Service, batch int, timeout time.Duration) *Probe {
	if batch <= 0 {
		batch = 1
	}
	return &Probe{service: service, batch: batch, timeout: timeout}
}

// CreationSuccessRate creates one batch of sales and returns the percentage that succeeded.
func (p *Probe) CreationSuccessRate(ctx context.Context) (float64, error) {
	succeeded := 0
	for i := 0; i < p.batch; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if p.createOne(ctx) == nil {
			succeeded++
		}
	}
	return float64(succeeded) / float64(p.batch) * 100, nil
}

func (p *Probe) createOne(ctx context.Context) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	p.seq++
	_, err := p.service.CreateSale(ctx, sales.CreateSaleCommand{
		Number:       fmt.Sprintf("CHAOS-%06d", p.seq),
		Date:         time.Now().UTC(),
		CustomerID:   uuid.New(),
		CustomerName: "Chaos Probe",
		BranchID:     uuid.New(),
		BranchName:   "Chaos Branch",
		Items: []sales.ItemInput{{
			ProductID:   uuid.New(),
			ProductName: "Probe Widget",
			Quantity:    5,
			UnitPrice:   decimal.NewFromInt(10),
		}},
	})
	return err
}
