package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/pedalhouse/bikestock_backend/config"
	"github.com/pedalhouse/bikestock_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// WebhookLogEntry records every webhook delivery before it is processed, so
// a crash mid-processing still leaves an auditable trail. The webhook id is
// unique: redeliveries are absorbed by the dedup check.
type WebhookLogEntry struct {
	ID        int           `gorm:"primary_key" json:"id"`
	WebhookId string        `gorm:"size:128;not null;uniqueIndex" json:"webhook_id"`
	Topic     string        `gorm:"size:128;not null" json:"topic"`
	Payload   string        `gorm:"type:mediumtext" json:"payload"`
	Status    WebhookStatus `gorm:"type:enum('received','processed','failed');not null;default:received" json:"status"`
	Error     *string       `gorm:"type:text;default:null" json:"error"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type orderCreatedPayload struct {
	ID        json.Number `json:"id"`
	LineItems []struct {
		Sku   string `json:"sku"`
		Price string `json:"price"`
	} `json:"line_items"`
}

// OrderProcessOutcome summarizes one delivery for logging. Processing errors
// never reach the webhook sender; they live here and in the log entry.
type OrderProcessOutcome struct {
	Duplicate   bool     `json:"duplicate"`
	SoldSerials []string `json:"sold_serials"`
	Skipped     []string `json:"skipped"`
}

// ProcessOrderCreated handles one orders/create delivery: dedup on the
// delivery id, persist a received entry, then mark every matching serial
// sold in a single transaction. Unknown serials are skipped, not failed:
// the store sells more than bikes. Errors are recorded on the entry and
// never returned to the sender.
func ProcessOrderCreated(ctx context.Context, webhookId, topic, payload string) (*OrderProcessOutcome, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	var existing WebhookLogEntry
	err := db.WithContext(ctx).Where("webhook_id = ?", webhookId).First(&existing).Error
	if err == nil {
		logger.WithFields(logrus.Fields{"webhook_id": webhookId, "status": existing.Status}).
			Info("duplicate webhook delivery ignored")
		return &OrderProcessOutcome{Duplicate: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewInternalError("check webhook dedup", err)
	}

	entry := WebhookLogEntry{
		WebhookId: webhookId,
		Topic:     topic,
		Payload:   payload,
		Status:    WebhookStatusReceived,
	}
	if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
		// A concurrent delivery of the same id can win the insert race.
		if isDuplicateKeyErr(err) {
			return &OrderProcessOutcome{Duplicate: true}, nil
		}
		return nil, utils.NewInternalError("log webhook delivery", err)
	}

	outcome, procErr := processOrderPayload(ctx, payload)
	if procErr != nil {
		msg := procErr.Error()
		if err := db.WithContext(ctx).Model(&WebhookLogEntry{}).
			Where("id = ?", entry.ID).
			Updates(map[string]interface{}{"status": WebhookStatusFailed, "error": msg}).Error; err != nil {
			config.LogError(logger, "models", "ProcessOrderCreated", "mark webhook failed", webhookId, err)
		}
		config.LogError(logger, "models", "ProcessOrderCreated", "process order payload", webhookId, procErr)
		return nil, procErr
	}

	if err := db.WithContext(ctx).Model(&WebhookLogEntry{}).
		Where("id = ?", entry.ID).
		Update("status", WebhookStatusProcessed).Error; err != nil {
		config.LogError(logger, "models", "ProcessOrderCreated", "mark webhook processed", webhookId, err)
	}

	logger.WithFields(logrus.Fields{
		"webhook_id": webhookId,
		"sold":       outcome.SoldSerials,
		"skipped":    outcome.Skipped,
	}).Info("order webhook processed")
	return outcome, nil
}

func processOrderPayload(ctx context.Context, payload string) (*OrderProcessOutcome, error) {
	var order orderCreatedPayload
	if err := json.Unmarshal([]byte(payload), &order); err != nil {
		return nil, utils.NewValidationError("malformed order payload: %v", err)
	}
	orderId := order.ID.String()
	prefix := config.GetSerialPrefix() + "-"

	outcome := &OrderProcessOutcome{}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range order.LineItems {
			if !strings.HasPrefix(item.Sku, prefix) {
				continue
			}
			salePrice, err := decimal.NewFromString(item.Price)
			if err != nil {
				salePrice = decimal.Zero
			}
			err = markBikeSoldTx(tx, item.Sku, salePrice, orderId)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome.Skipped = append(outcome.Skipped, item.Sku)
				continue
			}
			if err != nil {
				return fmt.Errorf("mark %s sold: %w", item.Sku, err)
			}
			outcome.SoldSerials = append(outcome.SoldSerials, item.Sku)
		}
		return nil
	})
	if err != nil {
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, utils.NewInternalError("process order", err)
	}
	return outcome, nil
}
