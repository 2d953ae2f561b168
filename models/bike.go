package models

import (
	"context"
	"errors"
	"time"

	"github.com/pedalhouse/bikestock_backend/config"
	"github.com/pedalhouse/bikestock_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bike is one physical serialized unit. The serial number is globally unique
// and immutable after creation; no update path touches it.
type Bike struct {
	ID               int              `gorm:"primary_key" json:"id"`
	SerialNumber     string           `gorm:"size:64;not null;uniqueIndex" json:"serial_number"`
	ProductId        int              `gorm:"index;not null" json:"product_id"`
	Product          *Product         `json:"product,omitempty"`
	InvoiceId        *int             `gorm:"index;default:null" json:"invoice_id"`
	ShopifyVariantId *string          `gorm:"size:64;default:null" json:"shopify_variant_id"`
	ActualCost       decimal.Decimal  `gorm:"type:decimal(20,2);default:0" json:"actual_cost"`
	Status           BikeStatus       `gorm:"type:enum('in_transit','available','sold','returned','damaged');not null;default:available" json:"status"`
	SalePrice        *decimal.Decimal `gorm:"type:decimal(20,2);default:null" json:"sale_price"`
	ShopifyOrderId   *string          `gorm:"size:64;default:null" json:"shopify_order_id"`
	DateReceived     *time.Time       `gorm:"default:null" json:"date_received"`
	DateSold         *time.Time       `gorm:"default:null" json:"date_sold"`
	Notes            string           `gorm:"type:text;default:null" json:"notes"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewBike is a manual stock entry: one physical unit added outside the
// invoice pipeline. Its serial comes from the same sequencer as approvals.
type NewBike struct {
	ProductId  int             `json:"product_id" binding:"required"`
	ActualCost decimal.Decimal `json:"actual_cost"`
	Notes      string          `json:"notes"`
}

// UpdateBikeInput enumerates the correction-path fields. Nil leaves a field
// unchanged. The serial number is deliberately absent.
type UpdateBikeInput struct {
	Status           *BikeStatus      `json:"status"`
	ActualCost       *decimal.Decimal `json:"actual_cost"`
	SalePrice        *decimal.Decimal `json:"sale_price"`
	ShopifyOrderId   *string          `json:"shopify_order_id"`
	ShopifyVariantId *string          `json:"shopify_variant_id"`
	Notes            *string          `json:"notes"`
}

type BikeFilter struct {
	ProductId *int
	InvoiceId *int
	Status    *BikeStatus
	Limit     int
	Offset    int
}

// CreateBike records a manually entered unit. It reserves its serial through
// the locked sequencer path, never by hand.
func CreateBike(ctx context.Context, input *NewBike) (*Bike, error) {
	if _, err := GetProduct(ctx, input.ProductId); err != nil {
		return nil, err
	}

	serials, err := ReserveSerials(ctx, 1)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	bike := Bike{
		SerialNumber: serials[0],
		ProductId:    input.ProductId,
		ActualCost:   input.ActualCost,
		Status:       BikeStatusAvailable,
		DateReceived: &now,
		Notes:        input.Notes,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&bike).Error; err != nil {
		return nil, utils.NewInternalError("create bike", err)
	}
	return &bike, nil
}

func GetBike(ctx context.Context, id int) (*Bike, error) {
	db := config.GetDB()
	var bike Bike
	err := db.WithContext(ctx).Preload("Product").First(&bike, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("bike %d not found", id)
	}
	if err != nil {
		return nil, utils.NewInternalError("get bike", err)
	}
	return &bike, nil
}

func GetBikeBySerial(ctx context.Context, serialNumber string) (*Bike, error) {
	db := config.GetDB()
	var bike Bike
	err := db.WithContext(ctx).Preload("Product").Where("serial_number = ?", serialNumber).First(&bike).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("bike with serial %s not found", serialNumber)
	}
	if err != nil {
		return nil, utils.NewInternalError("get bike by serial", err)
	}
	return &bike, nil
}

func ListBikes(ctx context.Context, filter BikeFilter) ([]*Bike, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Preload("Product").Order("id")

	if filter.ProductId != nil {
		query = query.Where("product_id = ?", *filter.ProductId)
	}
	if filter.InvoiceId != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceId)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query = query.Limit(limit)
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var bikes []*Bike
	if err := query.Find(&bikes).Error; err != nil {
		return nil, utils.NewInternalError("list bikes", err)
	}
	return bikes, nil
}

// ReceiveBikes transitions in_transit units to available once physically
// received. All-or-nothing: if any id is unknown or not in transit, nothing
// changes. Returns the updated bikes (the caller pushes them to the platform
// best-effort afterwards).
func ReceiveBikes(ctx context.Context, bikeIds []int) ([]*Bike, error) {
	if len(bikeIds) == 0 {
		return nil, utils.NewValidationError("at least one bike id is required")
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bikes []*Bike
		if err := tx.Where("id IN ?", bikeIds).Find(&bikes).Error; err != nil {
			return err
		}
		if len(bikes) != len(bikeIds) {
			return utils.NewNotFoundError("one or more bikes not found")
		}
		var notInTransit []int
		for _, b := range bikes {
			if b.Status != BikeStatusInTransit {
				notInTransit = append(notInTransit, b.ID)
			}
		}
		if len(notInTransit) > 0 {
			return utils.NewValidationError("bikes %v are not in transit", notInTransit)
		}

		now := time.Now().UTC()
		return tx.Model(&Bike{}).
			Where("id IN ? AND status = ?", bikeIds, BikeStatusInTransit).
			Updates(map[string]interface{}{
				"status":        BikeStatusAvailable,
				"date_received": now,
			}).Error
	})
	if err != nil {
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, utils.NewInternalError("receive bikes", err)
	}

	var bikes []*Bike
	if err := db.WithContext(ctx).Preload("Product").Where("id IN ?", bikeIds).Order("id").Find(&bikes).Error; err != nil {
		return nil, utils.NewInternalError("receive bikes", err)
	}
	return bikes, nil
}

// UpdateBike applies corrections/reconciliation fixes to a bike.
func UpdateBike(ctx context.Context, id int, input *UpdateBikeInput) (*Bike, error) {
	bike, err := GetBike(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, utils.NewValidationError("invalid bike status: %s", *input.Status)
		}
		updates["status"] = *input.Status
		if *input.Status == BikeStatusSold && bike.DateSold == nil {
			updates["date_sold"] = time.Now().UTC()
		}
	}
	if input.ActualCost != nil {
		updates["actual_cost"] = *input.ActualCost
	}
	if input.SalePrice != nil {
		updates["sale_price"] = *input.SalePrice
	}
	if input.ShopifyOrderId != nil {
		updates["shopify_order_id"] = *input.ShopifyOrderId
	}
	if input.ShopifyVariantId != nil {
		updates["shopify_variant_id"] = *input.ShopifyVariantId
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if len(updates) == 0 {
		return bike, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Bike{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, utils.NewInternalError("update bike", err)
	}
	return GetBike(ctx, id)
}

// SetBikeVariantId persists the platform variant id once a unit is pushed.
func SetBikeVariantId(ctx context.Context, bikeId int, variantId string) error {
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&Bike{}).
		Where("id = ?", bikeId).
		Update("shopify_variant_id", variantId).Error
	if err != nil {
		return utils.NewInternalError("set bike variant id", err)
	}
	return nil
}

// markBikeSoldTx flips one bike to sold inside the caller's transaction.
// Returns gorm.ErrRecordNotFound when no bike carries the serial.
func markBikeSoldTx(tx *gorm.DB, serialNumber string, salePrice decimal.Decimal, orderId string) error {
	var bike Bike
	if err := tx.Where("serial_number = ?", serialNumber).First(&bike).Error; err != nil {
		return err
	}
	now := time.Now().UTC()
	return tx.Model(&Bike{}).Where("id = ?", bike.ID).Updates(map[string]interface{}{
		"status":           BikeStatusSold,
		"sale_price":       salePrice,
		"shopify_order_id": orderId,
		"date_sold":        now,
	}).Error
}
