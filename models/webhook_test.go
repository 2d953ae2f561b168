package models_test

import (
	"fmt"
	"testing"

	"github.com/pedalhouse/bikestock_backend/config"
	"github.com/pedalhouse/bikestock_backend/models"
	"github.com/shopspring/decimal"
)

func TestOrderWebhookIdempotency(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Brand:       "Trek",
		Model:       "Verve 3",
		Color:       "Red",
		Size:        "Large",
		RetailPrice: decimal.RequireFromString("899.99"),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	bike, err := models.CreateBike(ctx, &models.NewBike{
		ProductId:  product.ID,
		ActualCost: decimal.RequireFromString("520.00"),
	})
	if err != nil {
		t.Fatalf("CreateBike: %v", err)
	}

	payload := fmt.Sprintf(`{
		"id": 987654321,
		"line_items": [
			{"sku": %q, "price": "899.99"},
			{"sku": "HELMET-001", "price": "79.99"},
			{"sku": "BIKE-99999", "price": "500.00"}
		]
	}`, bike.SerialNumber)

	outcome, err := models.ProcessOrderCreated(ctx, "wh-1", "orders/create", payload)
	if err != nil {
		t.Fatalf("ProcessOrderCreated: %v", err)
	}
	if outcome.Duplicate {
		t.Fatalf("first delivery flagged duplicate")
	}
	if len(outcome.SoldSerials) != 1 || outcome.SoldSerials[0] != bike.SerialNumber {
		t.Errorf("sold = %v, want [%s]", outcome.SoldSerials, bike.SerialNumber)
	}
	// Non-prefixed SKUs are ignored outright; prefixed-but-unknown serials
	// are recorded as skipped.
	if len(outcome.Skipped) != 1 || outcome.Skipped[0] != "BIKE-99999" {
		t.Errorf("skipped = %v, want [BIKE-99999]", outcome.Skipped)
	}

	sold, err := models.GetBike(ctx, bike.ID)
	if err != nil {
		t.Fatalf("GetBike: %v", err)
	}
	if sold.Status != models.BikeStatusSold {
		t.Errorf("bike status = %s, want sold", sold.Status)
	}
	if sold.SalePrice == nil || !sold.SalePrice.Equal(decimal.RequireFromString("899.99")) {
		t.Errorf("sale price = %v, want 899.99", sold.SalePrice)
	}
	if sold.ShopifyOrderId == nil || *sold.ShopifyOrderId != "987654321" {
		t.Errorf("order id = %v, want 987654321", sold.ShopifyOrderId)
	}
	if sold.DateSold == nil {
		t.Errorf("date_sold not stamped")
	}

	// Redelivery with the same webhook id is a no-op.
	again, err := models.ProcessOrderCreated(ctx, "wh-1", "orders/create", payload)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !again.Duplicate {
		t.Fatalf("redelivery not flagged duplicate")
	}

	db := config.GetDB()
	var logCount int64
	if err := db.Model(&models.WebhookLogEntry{}).Where("webhook_id = ?", "wh-1").Count(&logCount).Error; err != nil {
		t.Fatalf("count webhook logs: %v", err)
	}
	if logCount != 1 {
		t.Errorf("webhook log rows = %d, want 1", logCount)
	}
	var entry models.WebhookLogEntry
	if err := db.Where("webhook_id = ?", "wh-1").First(&entry).Error; err != nil {
		t.Fatalf("load webhook log: %v", err)
	}
	if entry.Status != models.WebhookStatusProcessed {
		t.Errorf("webhook log status = %s, want processed", entry.Status)
	}

	// The duplicate short-circuits before any write, so the sale recorded by
	// the first delivery is untouched.
	final, err := models.GetBike(ctx, bike.ID)
	if err != nil {
		t.Fatalf("GetBike after redelivery: %v", err)
	}
	if final.ShopifyOrderId == nil || *final.ShopifyOrderId != "987654321" {
		t.Errorf("order id changed on redelivery: %v", final.ShopifyOrderId)
	}
}

func TestOrderWebhookMalformedPayloadRecordedAsFailed(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	_, err := models.ProcessOrderCreated(ctx, "wh-bad", "orders/create", "{not json")
	if err == nil {
		t.Fatalf("malformed payload processed without error")
	}

	db := config.GetDB()
	var entry models.WebhookLogEntry
	if err := db.Where("webhook_id = ?", "wh-bad").First(&entry).Error; err != nil {
		t.Fatalf("load webhook log: %v", err)
	}
	if entry.Status != models.WebhookStatusFailed {
		t.Errorf("status = %s, want failed", entry.Status)
	}
	if entry.Error == nil || *entry.Error == "" {
		t.Errorf("failure reason not recorded")
	}

	// The failed delivery id stays logged, so a literal redelivery of the
	// same broken payload is treated as a duplicate rather than reprocessed.
	outcome, err := models.ProcessOrderCreated(ctx, "wh-bad", "orders/create", "{not json")
	if err != nil {
		t.Fatalf("redelivery of failed webhook: %v", err)
	}
	if !outcome.Duplicate {
		t.Errorf("failed delivery id not deduplicated")
	}
}
