package reports

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pedalhouse/bikestock_backend/utils"
	"github.com/xuri/excelize/v2"
)

// ExportInventorySummaryExcel streams the inventory summary as an xlsx
// workbook to w.
func ExportInventorySummaryExcel(ctx context.Context, w io.Writer) error {
	data, err := GetInventorySummaryReport(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := []string{"SKU", "Brand", "Model", "InTransit", "Available", "Sold", "Returned", "Damaged", "StockValue", "SalesValue"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, d := range data {
		row := i + 2
		f.SetCellValue(sheet, "A"+fmt.Sprint(row), d.Sku)
		f.SetCellValue(sheet, "B"+fmt.Sprint(row), d.Brand)
		f.SetCellValue(sheet, "C"+fmt.Sprint(row), d.Model)
		f.SetCellValue(sheet, "D"+fmt.Sprint(row), d.InTransitCount)
		f.SetCellValue(sheet, "E"+fmt.Sprint(row), d.AvailableCount)
		f.SetCellValue(sheet, "F"+fmt.Sprint(row), d.SoldCount)
		f.SetCellValue(sheet, "G"+fmt.Sprint(row), d.ReturnedCount)
		f.SetCellValue(sheet, "H"+fmt.Sprint(row), d.DamagedCount)
		f.SetCellValue(sheet, "I"+fmt.Sprint(row), d.StockValue.InexactFloat64())
		f.SetCellValue(sheet, "J"+fmt.Sprint(row), d.TotalSalesValue.InexactFloat64())
	}

	if err := f.Write(w); err != nil {
		return utils.NewInternalError("write inventory summary workbook", err)
	}
	return nil
}

// ExportProfitReportExcel streams the per-unit profit report as an xlsx
// workbook to w.
func ExportProfitReportExcel(ctx context.Context, w io.Writer, fromDate, toDate *time.Time) error {
	data, err := GetProfitReport(ctx, fromDate, toDate)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := []string{"SerialNumber", "SKU", "Brand", "Model", "ActualCost", "SalePrice", "Profit", "DateSold"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, d := range data {
		row := i + 2
		f.SetCellValue(sheet, "A"+fmt.Sprint(row), d.SerialNumber)
		f.SetCellValue(sheet, "B"+fmt.Sprint(row), d.Sku)
		f.SetCellValue(sheet, "C"+fmt.Sprint(row), d.Brand)
		f.SetCellValue(sheet, "D"+fmt.Sprint(row), d.Model)
		f.SetCellValue(sheet, "E"+fmt.Sprint(row), d.ActualCost.InexactFloat64())
		f.SetCellValue(sheet, "F"+fmt.Sprint(row), d.SalePrice.InexactFloat64())
		f.SetCellValue(sheet, "G"+fmt.Sprint(row), d.Profit.InexactFloat64())
		if d.DateSold != nil {
			f.SetCellValue(sheet, "H"+fmt.Sprint(row), d.DateSold.Format("2006-01-02"))
		}
	}

	if err := f.Write(w); err != nil {
		return utils.NewInternalError("write profit report workbook", err)
	}
	return nil
}
