package reports

import (
	"context"

	"github.com/pedalhouse/bikestock_backend/config"
	"github.com/pedalhouse/bikestock_backend/utils"
	"github.com/shopspring/decimal"
)

type InventorySummaryRow struct {
	ProductId       int             `json:"product_id"`
	Sku             string          `json:"sku"`
	Brand           string          `json:"brand"`
	Model           string          `json:"model"`
	InTransitCount  int             `json:"in_transit_count"`
	AvailableCount  int             `json:"available_count"`
	SoldCount       int             `json:"sold_count"`
	ReturnedCount   int             `json:"returned_count"`
	DamagedCount    int             `json:"damaged_count"`
	StockValue      decimal.Decimal `json:"stock_value"`
	TotalSalesValue decimal.Decimal `json:"total_sales_value"`
}

// GetInventorySummaryReport aggregates per-product unit counts by lifecycle
// status. Stock value counts only units still on hand.
func GetInventorySummaryReport(ctx context.Context) ([]*InventorySummaryRow, error) {
	sql := `
SELECT
    products.id AS product_id,
    products.sku,
    products.brand,
    products.model,
    SUM(CASE WHEN bikes.status = 'in_transit' THEN 1 ELSE 0 END) AS in_transit_count,
    SUM(CASE WHEN bikes.status = 'available' THEN 1 ELSE 0 END) AS available_count,
    SUM(CASE WHEN bikes.status = 'sold' THEN 1 ELSE 0 END) AS sold_count,
    SUM(CASE WHEN bikes.status = 'returned' THEN 1 ELSE 0 END) AS returned_count,
    SUM(CASE WHEN bikes.status = 'damaged' THEN 1 ELSE 0 END) AS damaged_count,
    COALESCE(SUM(CASE WHEN bikes.status IN ('in_transit', 'available', 'returned') THEN bikes.actual_cost ELSE 0 END), 0) AS stock_value,
    COALESCE(SUM(CASE WHEN bikes.status = 'sold' THEN bikes.sale_price ELSE 0 END), 0) AS total_sales_value
FROM
    products
    LEFT JOIN bikes ON bikes.product_id = products.id
GROUP BY
    products.id, products.sku, products.brand, products.model
ORDER BY
    products.brand, products.model;
`

	var records []*InventorySummaryRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql).Scan(&records).Error; err != nil {
		return nil, utils.NewInternalError("inventory summary report", err)
	}
	return records, nil
}
