package utils_test

import (
	"testing"

	"github.com/pedalhouse/bikestock_backend/utils"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestAllocateCosts_SpreadsExtrasPerUnit(t *testing.T) {
	items := []utils.AllocationItem{
		{Quantity: 2, UnitCost: d("500"), TotalCost: d("1000")},
		{Quantity: 1, UnitCost: d("800"), TotalCost: d("800")},
	}
	extras := utils.InvoiceExtras{Shipping: d("90")}

	allocated, err := utils.AllocateCosts(items, extras)
	if err != nil {
		t.Fatalf("AllocateCosts: %v", err)
	}
	if len(allocated) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(allocated))
	}
	if !allocated[0].Equal(d("530.00")) {
		t.Errorf("item 0: expected 530.00, got %s", allocated[0])
	}
	if !allocated[1].Equal(d("830.00")) {
		t.Errorf("item 1: expected 830.00, got %s", allocated[1])
	}
}

func TestAllocateCosts_LastItemAbsorbsRounding(t *testing.T) {
	// 100 / 3 units does not divide evenly; the last item's allocation must
	// make the weighted sum land exactly on the grand total.
	items := []utils.AllocationItem{
		{Quantity: 1, UnitCost: d("100"), TotalCost: d("100")},
		{Quantity: 1, UnitCost: d("100"), TotalCost: d("100")},
		{Quantity: 1, UnitCost: d("100"), TotalCost: d("100")},
	}
	extras := utils.InvoiceExtras{Shipping: d("100")}

	allocated, err := utils.AllocateCosts(items, extras)
	if err != nil {
		t.Fatalf("AllocateCosts: %v", err)
	}

	sum := decimal.Zero
	for i, a := range allocated {
		sum = sum.Add(a.Mul(decimal.NewFromInt(int64(items[i].Quantity))))
	}
	if !sum.Equal(d("400.00")) {
		t.Errorf("weighted sum: expected 400.00, got %s", sum)
	}
}

func TestAllocateCosts_ExactnessWithMixedQuantities(t *testing.T) {
	items := []utils.AllocationItem{
		{Quantity: 3, UnitCost: d("649.99"), TotalCost: d("1949.97")},
		{Quantity: 2, UnitCost: d("1299.50"), TotalCost: d("2599.00")},
		{Quantity: 2, UnitCost: d("85.25"), TotalCost: d("170.50")},
	}
	extras := utils.InvoiceExtras{
		Shipping:      d("125.37"),
		Discount:      d("50.00"),
		CreditCardFee: d("93.11"),
		Tax:           d("412.08"),
		OtherFee:      d("7.77"),
	}

	allocated, err := utils.AllocateCosts(items, extras)
	if err != nil {
		t.Fatalf("AllocateCosts: %v", err)
	}

	expected := d("1949.97").Add(d("2599.00")).Add(d("170.50")).
		Add(d("125.37")).Sub(d("50.00")).Add(d("93.11")).Add(d("412.08")).Add(d("7.77"))
	sum := decimal.Zero
	for i, a := range allocated {
		sum = sum.Add(a.Mul(decimal.NewFromInt(int64(items[i].Quantity))))
	}
	if !sum.Equal(expected) {
		t.Errorf("weighted sum: expected %s, got %s", expected, sum)
	}
}

func TestAllocateCosts_DiscountReducesAllocation(t *testing.T) {
	items := []utils.AllocationItem{
		{Quantity: 1, UnitCost: d("1000"), TotalCost: d("1000")},
	}
	extras := utils.InvoiceExtras{Discount: d("100")}

	allocated, err := utils.AllocateCosts(items, extras)
	if err != nil {
		t.Fatalf("AllocateCosts: %v", err)
	}
	if !allocated[0].Equal(d("900.00")) {
		t.Errorf("expected 900.00, got %s", allocated[0])
	}
}

func TestAllocateCosts_ZeroUnitsFails(t *testing.T) {
	_, err := utils.AllocateCosts(nil, utils.InvoiceExtras{Shipping: d("10")})
	if err == nil {
		t.Fatal("expected error for zero units")
	}
	appErr := utils.AsAppError(err)
	if appErr.Kind != utils.ErrorKindValidation {
		t.Errorf("expected validation error, got %s", appErr.Kind)
	}
}
