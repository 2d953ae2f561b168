package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pedalhouse/bikestock_backend/brandimport"
	"github.com/pedalhouse/bikestock_backend/config"
	"github.com/pedalhouse/bikestock_backend/docparse"
	"github.com/pedalhouse/bikestock_backend/models"
	"github.com/pedalhouse/bikestock_backend/models/reports"
	"github.com/pedalhouse/bikestock_backend/shopsync"
	"github.com/pedalhouse/bikestock_backend/utils"
	"github.com/sirupsen/logrus"
)

const maxInvoiceUploadBytes int64 = 20 * 1024 * 1024

// respondError maps the error taxonomy onto HTTP statuses and keeps the
// conflict remediation details in the body.
func respondError(c *gin.Context, err error) {
	appErr := utils.AsAppError(err)
	body := gin.H{"error": appErr.Message}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	c.JSON(appErr.StatusCode(), body)
}

// bindingError turns a ShouldBindJSON failure into a validation error,
// carrying the per-field rule violations as details when the binding layer
// reported them.
func bindingError(what string, err error) *utils.AppError {
	appErr := utils.NewValidationError("invalid %s: %v", what, err)
	if fields := utils.ProcessValidationErrors(err); len(fields) > 0 {
		appErr.Message = "invalid " + what
		appErr.Details = make(map[string]any, len(fields))
		for field, rule := range fields {
			appErr.Details[field] = rule
		}
	}
	return appErr
}

func pathInt(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v < 1 {
		respondError(c, utils.NewValidationError("invalid %s: %s", name, c.Param(name)))
		return 0, false
	}
	return v, true
}

// --- invoices ---

func createInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, bindingError("invoice payload", err))
			return
		}
		overwrite := strings.EqualFold(c.Query("overwrite"), "true")

		invoice, err := models.CreateInvoice(c.Request.Context(), &input, overwrite)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func uploadInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			respondError(c, utils.NewValidationError("missing invoice file: %v", err))
			return
		}
		if fileHeader.Size > maxInvoiceUploadBytes {
			respondError(c, utils.NewValidationError("invoice file exceeds %d bytes", maxInvoiceUploadBytes))
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			respondError(c, utils.NewInternalError("open upload", err))
			return
		}
		defer file.Close()
		document, err := io.ReadAll(file)
		if err != nil {
			respondError(c, utils.NewInternalError("read upload", err))
			return
		}

		// Keep the original document for audit.
		uploadDir := config.GetInvoiceUploadDir()
		if err := os.MkdirAll(uploadDir, 0o755); err != nil {
			respondError(c, utils.NewInternalError("create upload dir", err))
			return
		}
		storedName := uuid.NewString() + filepath.Ext(fileHeader.Filename)
		storedPath := filepath.Join(uploadDir, storedName)
		if err := os.WriteFile(storedPath, document, 0o644); err != nil {
			respondError(c, utils.NewInternalError("store upload", err))
			return
		}

		extractor, err := docparse.NewHTTPExtractor()
		if err != nil {
			respondError(c, err)
			return
		}
		parsed, err := docparse.ExtractWithRetry(c.Request.Context(), extractor, fileHeader.Filename, document)
		if err != nil {
			respondError(c, err)
			return
		}

		input := models.NewInvoice{
			Supplier:         parsed.Supplier,
			InvoiceReference: parsed.InvoiceReference,
			ShippingCost:     parsed.ShippingCost,
			Discount:         parsed.Discount,
			CreditCardFee:    parsed.CreditCardFee,
			Tax:              parsed.Tax,
			OtherFee:         parsed.OtherFee,
			SourceFile:       storedName,
		}
		if parsed.InvoiceDate != "" {
			if t, err := time.Parse("2006-01-02", parsed.InvoiceDate); err == nil {
				input.InvoiceDate = &t
			}
		}
		for _, item := range parsed.Items {
			input.LineItems = append(input.LineItems, &models.NewInvoiceLineItem{
				Quantity:  item.Quantity,
				UnitCost:  item.UnitCost,
				TotalCost: item.TotalCost,
				RawBrand:  item.Brand,
				RawModel:  item.Model,
				RawColor:  item.Color,
				RawSize:   item.Size,
			})
		}

		overwrite := strings.EqualFold(c.Query("overwrite"), "true")
		invoice, err := models.CreateInvoice(c.Request.Context(), &input, overwrite)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func listInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.InvoiceFilter
		if v := c.Query("status"); v != "" {
			status := models.InvoiceStatus(v)
			if !status.Valid() {
				respondError(c, utils.NewValidationError("invalid status: %s", v))
				return
			}
			filter.Status = &status
		}
		if v := c.Query("supplier"); v != "" {
			filter.Supplier = &v
		}
		filter.Limit, _ = strconv.Atoi(c.Query("limit"))
		filter.Offset, _ = strconv.Atoi(c.Query("offset"))

		invoices, err := models.ListInvoices(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"invoices": invoices})
	}
}

func getInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		invoice, err := models.GetInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func updateInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		var input models.UpdateInvoiceInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, bindingError("invoice payload", err))
			return
		}
		invoice, err := models.UpdateInvoice(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func updateInvoiceLineItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		itemId, ok := pathInt(c, "itemId")
		if !ok {
			return
		}
		var input models.UpdateInvoiceLineItemInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, bindingError("line item payload", err))
			return
		}
		invoice, err := models.UpdateInvoiceLineItem(c.Request.Context(), id, itemId, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func approveInvoiceHandler(platform *shopsync.Client) gin.HandlerFunc {
	logger := config.GetLogger()
	return func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		var body struct {
			ApprovedBy string `json:"approved_by" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, utils.NewValidationError("approved_by is required"))
			return
		}

		result, err := models.ApproveInvoice(c.Request.Context(), id, body.ApprovedBy)
		if err != nil {
			respondError(c, err)
			return
		}

		// Best-effort: make sure remote products exist for the approved
		// stock. Variant push waits until physical receipt.
		var warnings []string
		if platform.Configured() {
			seen := map[int]bool{}
			for _, bike := range result.Bikes {
				if seen[bike.ProductId] {
					continue
				}
				seen[bike.ProductId] = true
				product, err := models.GetProduct(c.Request.Context(), bike.ProductId)
				if err != nil {
					warnings = append(warnings, err.Error())
					continue
				}
				if _, err := platform.EnsureProduct(c.Request.Context(), product); err != nil {
					logger.WithFields(logrus.Fields{"product": product.Sku}).
						Warn("platform product sync failed: " + err.Error())
					warnings = append(warnings, fmt.Sprintf("product sync for %s: %v", product.Sku, err))
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"invoice":  result.Invoice,
			"bikes":    result.Bikes,
			"warnings": warnings,
		})
	}
}

func rejectInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		invoice, err := models.RejectInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

// --- products ---

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, bindingError("product payload", err))
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := models.ListProducts(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products})
	}
}

func getProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		product, err := models.GetProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// getProductBySkuHandler resolves a scanned or typed SKU to its product.
func getProductBySkuHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sku := strings.TrimSpace(c.Param("sku"))
		if sku == "" {
			respondError(c, utils.NewValidationError("sku is required"))
			return
		}
		product, err := models.GetProductBySku(c.Request.Context(), sku)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func updateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		var input models.UpdateProductInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, bindingError("product payload", err))
			return
		}
		product, err := models.UpdateProduct(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func deleteProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		if err := models.DeleteProduct(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// importBrandCatalogHandler scrapes a brand storefront and creates any
// products not already in the catalog.
func importBrandCatalogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			BrandName string `json:"brand_name" binding:"required"`
			StoreURL  string `json:"store_url" binding:"required,url"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, utils.NewValidationError("brand_name and store_url are required"))
			return
		}

		importer := brandimport.NewShopifyJSONImporter()
		result, err := brandimport.ImportWithRetry(c.Request.Context(), importer, body.BrandName, body.StoreURL)
		if err != nil {
			respondError(c, err)
			return
		}

		var created, skipped int
		for _, scraped := range result.Products {
			_, err := models.CreateProduct(c.Request.Context(), &models.NewProduct{
				Brand:       scraped.Brand,
				Model:       scraped.Model,
				Color:       scraped.Color,
				Size:        scraped.Size,
				RetailPrice: scraped.RetailPrice,
			})
			if err != nil {
				if appErr := utils.AsAppError(err); appErr.Kind == utils.ErrorKindConflict {
					skipped++
					continue
				}
				respondError(c, err)
				return
			}
			created++
		}

		c.JSON(http.StatusOK, gin.H{
			"strategy": result.Strategy,
			"scraped":  len(result.Products),
			"created":  created,
			"skipped":  skipped,
		})
	}
}

// --- bikes ---

func createBikeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewBike
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, bindingError("bike payload", err))
			return
		}
		bike, err := models.CreateBike(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, bike)
	}
}

func listBikesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.BikeFilter
		if v := c.Query("product_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				respondError(c, utils.NewValidationError("invalid product_id: %s", v))
				return
			}
			filter.ProductId = &id
		}
		if v := c.Query("invoice_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				respondError(c, utils.NewValidationError("invalid invoice_id: %s", v))
				return
			}
			filter.InvoiceId = &id
		}
		if v := c.Query("status"); v != "" {
			status := models.BikeStatus(v)
			if !status.Valid() {
				respondError(c, utils.NewValidationError("invalid status: %s", v))
				return
			}
			filter.Status = &status
		}
		filter.Limit, _ = strconv.Atoi(c.Query("limit"))
		filter.Offset, _ = strconv.Atoi(c.Query("offset"))

		bikes, err := models.ListBikes(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"bikes": bikes})
	}
}

func getBikeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		bike, err := models.GetBike(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bike)
	}
}

// getBikeBySerialHandler resolves a scanned frame serial to its stock unit.
func getBikeBySerialHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		serial := strings.TrimSpace(c.Param("serial"))
		if serial == "" {
			respondError(c, utils.NewValidationError("serial is required"))
			return
		}
		bike, err := models.GetBikeBySerial(c.Request.Context(), serial)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bike)
	}
}

func updateBikeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		var input models.UpdateBikeInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, bindingError("bike payload", err))
			return
		}
		bike, err := models.UpdateBike(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bike)
	}
}

func receiveBikesHandler(platform *shopsync.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			BikeIds []int `json:"bike_ids" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, utils.NewValidationError("bike_ids is required"))
			return
		}

		bikes, err := models.ReceiveBikes(c.Request.Context(), body.BikeIds)
		if err != nil {
			respondError(c, err)
			return
		}

		// Received stock becomes sellable: push variants best-effort.
		var results []*shopsync.SyncResult
		if platform.Configured() {
			results = platform.PushBikes(c.Request.Context(), bikes)
		}

		c.JSON(http.StatusOK, gin.H{"bikes": bikes, "sync": results})
	}
}

// --- serials ---

func peekSerialsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		count := 1
		if v := c.Query("count"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				respondError(c, utils.NewValidationError("invalid count: %s", v))
				return
			}
			count = n
		}
		serials, err := models.PeekSerials(c.Request.Context(), count)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"serials": serials})
	}
}

func setSerialCounterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			NextSerial int64 `json:"next_serial" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, utils.NewValidationError("next_serial must be at least 1"))
			return
		}
		if err := models.SetSerialCounter(c.Request.Context(), body.NextSerial); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"next_serial": body.NextSerial})
	}
}

// --- reports ---

func inventorySummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := reports.GetInventorySummaryReport(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"summary": rows})
	}
}

func inventorySummaryExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=inventory-summary.xlsx")
		if err := reports.ExportInventorySummaryExcel(c.Request.Context(), c.Writer); err != nil {
			respondError(c, err)
		}
	}
}

func parseDateQuery(c *gin.Context, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, utils.NewValidationError("invalid %s: %s", name, v)
	}
	return &t, nil
}

func profitReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fromDate, err := parseDateQuery(c, "from")
		if err != nil {
			respondError(c, err)
			return
		}
		toDate, err := parseDateQuery(c, "to")
		if err != nil {
			respondError(c, err)
			return
		}

		rows, err := reports.GetProfitReport(c.Request.Context(), fromDate, toDate)
		if err != nil {
			respondError(c, err)
			return
		}
		summary, err := reports.GetProfitSummary(c.Request.Context(), fromDate, toDate)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rows": rows, "summary": summary})
	}
}

func profitReportExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fromDate, err := parseDateQuery(c, "from")
		if err != nil {
			respondError(c, err)
			return
		}
		toDate, err := parseDateQuery(c, "to")
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=profit-report.xlsx")
		if err := reports.ExportProfitReportExcel(c.Request.Context(), c.Writer, fromDate, toDate); err != nil {
			respondError(c, err)
		}
	}
}

// --- platform ops ---

func reconcileHandler(platform *shopsync.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		mismatches, err := platform.ReconcileInventory(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"mismatches": mismatches})
	}
}

func archiveSoldVariantsHandler(platform *shopsync.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			ProductId int `json:"product_id" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, utils.NewValidationError("product_id is required"))
			return
		}
		deleted, err := platform.ArchiveSoldVariants(c.Request.Context(), body.ProductId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	}
}
