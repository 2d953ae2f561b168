package reports

import (
	"context"
	"time"

	"github.com/pedalhouse/bikestock_backend/config"
	"github.com/pedalhouse/bikestock_backend/utils"
	"github.com/shopspring/decimal"
)

type ProfitReportRow struct {
	SerialNumber string          `json:"serial_number"`
	Sku          string          `json:"sku"`
	Brand        string          `json:"brand"`
	Model        string          `json:"model"`
	ActualCost   decimal.Decimal `json:"actual_cost"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	Profit       decimal.Decimal `json:"profit"`
	DateSold     *time.Time      `json:"date_sold"`
}

type ProfitSummary struct {
	UnitsSold   int             `json:"units_sold"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	TotalSales  decimal.Decimal `json:"total_sales"`
	TotalProfit decimal.Decimal `json:"total_profit"`
}

// GetProfitReport lists every sold unit with its landed cost against its
// sale price, newest sale first. Date bounds are optional.
func GetProfitReport(ctx context.Context, fromDate, toDate *time.Time) ([]*ProfitReportRow, error) {
	sql := `
SELECT
    bikes.serial_number,
    products.sku,
    products.brand,
    products.model,
    bikes.actual_cost,
    COALESCE(bikes.sale_price, 0) AS sale_price,
    COALESCE(bikes.sale_price, 0) - bikes.actual_cost AS profit,
    bikes.date_sold
FROM
    bikes
    LEFT JOIN products ON products.id = bikes.product_id
WHERE
    bikes.status = 'sold'`

	db := config.GetDB()
	query := db.WithContext(ctx)
	args := []interface{}{}
	if fromDate != nil {
		sql += " AND bikes.date_sold >= ?"
		args = append(args, *fromDate)
	}
	if toDate != nil {
		sql += " AND bikes.date_sold <= ?"
		args = append(args, *toDate)
	}
	sql += " ORDER BY bikes.date_sold DESC;"

	var records []*ProfitReportRow
	if err := query.Raw(sql, args...).Scan(&records).Error; err != nil {
		return nil, utils.NewInternalError("profit report", err)
	}
	return records, nil
}

func GetProfitSummary(ctx context.Context, fromDate, toDate *time.Time) (*ProfitSummary, error) {
	rows, err := GetProfitReport(ctx, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	summary := ProfitSummary{
		TotalCost:   decimal.Zero,
		TotalSales:  decimal.Zero,
		TotalProfit: decimal.Zero,
	}
	for _, row := range rows {
		summary.UnitsSold++
		summary.TotalCost = summary.TotalCost.Add(row.ActualCost)
		summary.TotalSales = summary.TotalSales.Add(row.SalePrice)
		summary.TotalProfit = summary.TotalProfit.Add(row.Profit)
	}
	return &summary, nil
}
