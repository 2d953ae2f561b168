package utils

import (
	"github.com/shopspring/decimal"
)

// AllocationItem is one invoice line as seen by the cost allocator.
type AllocationItem struct {
	Quantity  int
	UnitCost  decimal.Decimal
	TotalCost decimal.Decimal
}

// InvoiceExtras are the invoice-level adjustments spread across units.
type InvoiceExtras struct {
	Shipping      decimal.Decimal
	Discount      decimal.Decimal
	CreditCardFee decimal.Decimal
	Tax           decimal.Decimal
	OtherFee      decimal.Decimal
}

func (e InvoiceExtras) Total() decimal.Decimal {
	return e.Shipping.Add(e.CreditCardFee).Add(e.Tax).Add(e.OtherFee).Sub(e.Discount)
}

// AllocateCosts distributes the invoice extras evenly across every unit and
// returns the per-unit allocated (landed) cost for each line, in line order.
//
// Per-unit rounding accumulates error, so the last line's cost is recomputed
// as a balancing figure. The result satisfies, exactly to the cent:
//
//	sum(allocated_i * qty_i) == sum(total_cost_i) + extras.Total()
func AllocateCosts(items []AllocationItem, extras InvoiceExtras) ([]decimal.Decimal, error) {
	totalUnits := 0
	totalCost := decimal.Zero
	for _, item := range items {
		totalUnits += item.Quantity
		totalCost = totalCost.Add(item.TotalCost)
	}
	if totalUnits == 0 {
		return nil, NewValidationError("cannot allocate costs: total unit count is zero")
	}

	totalExtras := extras.Total()
	extraPerUnit := totalExtras.DivRound(decimal.NewFromInt(int64(totalUnits)), 2)

	allocated := make([]decimal.Decimal, len(items))
	for i, item := range items {
		allocated[i] = item.UnitCost.Add(extraPerUnit).Round(2)
	}

	// Recompute the last line so the grand total balances to the cent.
	last := len(items) - 1
	if items[last].Quantity > 0 {
		expectedGrandTotal := totalCost.Add(totalExtras)
		priorTotal := decimal.Zero
		for i := 0; i < last; i++ {
			priorTotal = priorTotal.Add(allocated[i].Mul(decimal.NewFromInt(int64(items[i].Quantity))))
		}
		allocated[last] = expectedGrandTotal.Sub(priorTotal).
			DivRound(decimal.NewFromInt(int64(items[last].Quantity)), 2)
	}

	return allocated, nil
}
