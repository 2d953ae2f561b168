package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pedalhouse/bikestock_backend/config"
	"github.com/pedalhouse/bikestock_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invoice is a supplier invoice driving stock intake. Mutable only while
// pending; approved and rejected are terminal.
type Invoice struct {
	ID               int                `gorm:"primary_key" json:"id"`
	Supplier         string             `gorm:"size:255;not null" json:"supplier"`
	InvoiceReference string             `gorm:"size:128;not null;uniqueIndex" json:"invoice_reference"`
	InvoiceDate      *time.Time         `gorm:"default:null" json:"invoice_date"`
	Status           InvoiceStatus      `gorm:"type:enum('pending','approved','rejected');not null;default:pending" json:"status"`
	ShippingCost     decimal.Decimal    `gorm:"type:decimal(20,2);default:0" json:"shipping_cost"`
	Discount         decimal.Decimal    `gorm:"type:decimal(20,2);default:0" json:"discount"`
	CreditCardFee    decimal.Decimal    `gorm:"type:decimal(20,2);default:0" json:"credit_card_fee"`
	Tax              decimal.Decimal    `gorm:"type:decimal(20,2);default:0" json:"tax"`
	OtherFee         decimal.Decimal    `gorm:"type:decimal(20,2);default:0" json:"other_fee"`
	SourceFile       string             `gorm:"size:512;default:null" json:"source_file"`
	ApprovedBy       *string            `gorm:"size:255;default:null" json:"approved_by"`
	ApprovedAt       *time.Time         `gorm:"default:null" json:"approved_at"`
	LineItems        []*InvoiceLineItem `gorm:"foreignKey:InvoiceId" json:"line_items,omitempty"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// InvoiceLineItem keeps the raw parsed attributes for audit and re-matching
// even after a product has been matched.
type InvoiceLineItem struct {
	ID            int              `gorm:"primary_key" json:"id"`
	InvoiceId     int              `gorm:"index;not null" json:"invoice_id"`
	ProductId     *int             `gorm:"index;default:null" json:"product_id"`
	Product       *Product         `json:"product,omitempty"`
	Quantity      int              `gorm:"not null" json:"quantity"`
	UnitCost      decimal.Decimal  `gorm:"type:decimal(20,2);default:0" json:"unit_cost"`
	TotalCost     decimal.Decimal  `gorm:"type:decimal(20,2);default:0" json:"total_cost"`
	AllocatedCost *decimal.Decimal `gorm:"type:decimal(20,2);default:null" json:"allocated_cost"`
	RawBrand      string           `gorm:"size:255;default:null" json:"raw_brand"`
	RawModel      string           `gorm:"size:255;default:null" json:"raw_model"`
	RawColor      string           `gorm:"size:64;default:null" json:"raw_color"`
	RawSize       string           `gorm:"size:64;default:null" json:"raw_size"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInvoiceLineItem struct {
	ProductId *int            `json:"product_id"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	TotalCost decimal.Decimal `json:"total_cost"`
	RawBrand  string          `json:"raw_brand"`
	RawModel  string          `json:"raw_model"`
	RawColor  string          `json:"raw_color"`
	RawSize   string          `json:"raw_size"`
}

type NewInvoice struct {
	Supplier         string                `json:"supplier" binding:"required"`
	InvoiceReference string                `json:"invoice_reference" binding:"required"`
	InvoiceDate      *time.Time            `json:"invoice_date"`
	ShippingCost     decimal.Decimal       `json:"shipping_cost"`
	Discount         decimal.Decimal       `json:"discount"`
	CreditCardFee    decimal.Decimal       `json:"credit_card_fee"`
	Tax              decimal.Decimal       `json:"tax"`
	OtherFee         decimal.Decimal       `json:"other_fee"`
	SourceFile       string                `json:"source_file"`
	LineItems        []*NewInvoiceLineItem `json:"line_items" binding:"required,min=1,dive"`
}

// UpdateInvoiceInput covers the pending-only header corrections. Nil leaves a
// field unchanged.
type UpdateInvoiceInput struct {
	Supplier      *string          `json:"supplier"`
	InvoiceDate   *time.Time       `json:"invoice_date"`
	ShippingCost  *decimal.Decimal `json:"shipping_cost"`
	Discount      *decimal.Decimal `json:"discount"`
	CreditCardFee *decimal.Decimal `json:"credit_card_fee"`
	Tax           *decimal.Decimal `json:"tax"`
	OtherFee      *decimal.Decimal `json:"other_fee"`
}

type UpdateInvoiceLineItemInput struct {
	ProductId *int             `json:"product_id"`
	Quantity  *int             `json:"quantity"`
	UnitCost  *decimal.Decimal `json:"unit_cost"`
	TotalCost *decimal.Decimal `json:"total_cost"`
	RawBrand  *string          `json:"raw_brand"`
	RawModel  *string          `json:"raw_model"`
	RawColor  *string          `json:"raw_color"`
	RawSize   *string          `json:"raw_size"`
}

type InvoiceFilter struct {
	Status   *InvoiceStatus
	Supplier *string
	Limit    int
	Offset   int
}

// ApprovalResult carries everything the caller needs after approval; the
// platform push happens outside this package using the bikes returned here.
type ApprovalResult struct {
	Invoice *Invoice `json:"invoice"`
	Bikes   []*Bike  `json:"bikes"`
}

// CreateInvoice inserts a pending invoice with its line items, pre-matching
// each unmatched item against the product catalog. A duplicate reference on
// a pending invoice conflicts unless overwrite is set, in which case the old
// pending invoice is deleted first. Terminal invoices are never overwritable.
func CreateInvoice(ctx context.Context, input *NewInvoice, overwrite bool) (*Invoice, error) {
	if len(input.LineItems) == 0 {
		return nil, utils.NewValidationError("invoice must have at least one line item")
	}
	for i, item := range input.LineItems {
		if item.Quantity < 1 {
			return nil, utils.NewValidationError("line item %d has non-positive quantity", i+1)
		}
	}

	db := config.GetDB()

	var existing Invoice
	err := db.WithContext(ctx).Where("invoice_reference = ?", input.InvoiceReference).First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewInternalError("check invoice reference", err)
	}
	if err == nil {
		if existing.Status != InvoiceStatusPending {
			return nil, utils.NewConflictError(
				fmt.Sprintf("invoice reference %s already exists with status %s", input.InvoiceReference, existing.Status),
				map[string]any{"existing_id": existing.ID, "can_overwrite": false},
			)
		}
		if !overwrite {
			return nil, utils.NewConflictError(
				fmt.Sprintf("pending invoice with reference %s already exists", input.InvoiceReference),
				map[string]any{"existing_id": existing.ID, "can_overwrite": true},
			)
		}
	}

	catalog, err := ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	invoice := Invoice{
		Supplier:         input.Supplier,
		InvoiceReference: input.InvoiceReference,
		InvoiceDate:      input.InvoiceDate,
		Status:           InvoiceStatusPending,
		ShippingCost:     input.ShippingCost,
		Discount:         input.Discount,
		CreditCardFee:    input.CreditCardFee,
		Tax:              input.Tax,
		OtherFee:         input.OtherFee,
		SourceFile:       input.SourceFile,
	}
	for _, item := range input.LineItems {
		li := InvoiceLineItem{
			ProductId: item.ProductId,
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
			TotalCost: item.TotalCost,
			RawBrand:  item.RawBrand,
			RawModel:  item.RawModel,
			RawColor:  item.RawColor,
			RawSize:   item.RawSize,
		}
		if li.ProductId == nil {
			match := MatchProduct(MatchAttributes{
				Brand: item.RawBrand,
				Model: item.RawModel,
				Color: item.RawColor,
				Size:  item.RawSize,
			}, catalog)
			if match != nil {
				li.ProductId = &match.ID
			}
		}
		invoice.LineItems = append(invoice.LineItems, &li)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if existing.ID != 0 && overwrite {
			// Only a still-pending invoice may be replaced.
			res := tx.Where("id = ? AND status = ?", existing.ID, InvoiceStatusPending).Delete(&Invoice{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return utils.NewConflictError(
					fmt.Sprintf("invoice %d is no longer pending", existing.ID),
					map[string]any{"existing_id": existing.ID, "can_overwrite": false},
				)
			}
			if err := tx.Where("invoice_id = ?", existing.ID).Delete(&InvoiceLineItem{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(&invoice).Error
	})
	if err != nil {
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		// A concurrent upload of the same reference can win the insert race.
		if isDuplicateKeyErr(err) {
			return nil, utils.NewConflictError(
				fmt.Sprintf("invoice with reference %s was created concurrently", input.InvoiceReference),
				map[string]any{"invoice_reference": input.InvoiceReference},
			)
		}
		return nil, utils.NewInternalError("create invoice", err)
	}

	return GetInvoice(ctx, invoice.ID)
}

func GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	db := config.GetDB()
	var invoice Invoice
	err := db.WithContext(ctx).
		Preload("LineItems").
		Preload("LineItems.Product").
		First(&invoice, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("invoice %d not found", id)
	}
	if err != nil {
		return nil, utils.NewInternalError("get invoice", err)
	}
	return &invoice, nil
}

func ListInvoices(ctx context.Context, filter InvoiceFilter) ([]*Invoice, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Preload("LineItems").Order("id DESC")
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Supplier != nil {
		query = query.Where("supplier = ?", *filter.Supplier)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query = query.Limit(limit)
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var invoices []*Invoice
	if err := query.Find(&invoices).Error; err != nil {
		return nil, utils.NewInternalError("list invoices", err)
	}
	return invoices, nil
}

// UpdateInvoice applies header corrections to a pending invoice.
func UpdateInvoice(ctx context.Context, id int, input *UpdateInvoiceInput) (*Invoice, error) {
	invoice, err := GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != InvoiceStatusPending {
		return nil, utils.NewValidationError("only pending invoices can be edited")
	}

	updates := map[string]interface{}{}
	if input.Supplier != nil {
		updates["supplier"] = *input.Supplier
	}
	if input.InvoiceDate != nil {
		updates["invoice_date"] = *input.InvoiceDate
	}
	if input.ShippingCost != nil {
		updates["shipping_cost"] = *input.ShippingCost
	}
	if input.Discount != nil {
		updates["discount"] = *input.Discount
	}
	if input.CreditCardFee != nil {
		updates["credit_card_fee"] = *input.CreditCardFee
	}
	if input.Tax != nil {
		updates["tax"] = *input.Tax
	}
	if input.OtherFee != nil {
		updates["other_fee"] = *input.OtherFee
	}
	if len(updates) == 0 {
		return invoice, nil
	}

	db := config.GetDB()
	res := db.WithContext(ctx).Model(&Invoice{}).
		Where("id = ? AND status = ?", id, InvoiceStatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, utils.NewInternalError("update invoice", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewValidationError("only pending invoices can be edited")
	}
	return GetInvoice(ctx, id)
}

// UpdateInvoiceLineItem corrects one line of a pending invoice, typically to
// fix a bad match or a mis-parsed quantity before approval.
func UpdateInvoiceLineItem(ctx context.Context, invoiceId, lineItemId int, input *UpdateInvoiceLineItemInput) (*Invoice, error) {
	invoice, err := GetInvoice(ctx, invoiceId)
	if err != nil {
		return nil, err
	}
	if invoice.Status != InvoiceStatusPending {
		return nil, utils.NewValidationError("only pending invoices can be edited")
	}

	var found bool
	for _, li := range invoice.LineItems {
		if li.ID == lineItemId {
			found = true
			break
		}
	}
	if !found {
		return nil, utils.NewNotFoundError("line item %d not found on invoice %d", lineItemId, invoiceId)
	}

	updates := map[string]interface{}{}
	if input.ProductId != nil {
		if _, err := GetProduct(ctx, *input.ProductId); err != nil {
			return nil, err
		}
		updates["product_id"] = *input.ProductId
	}
	if input.Quantity != nil {
		if *input.Quantity < 1 {
			return nil, utils.NewValidationError("quantity must be at least 1")
		}
		updates["quantity"] = *input.Quantity
	}
	if input.UnitCost != nil {
		updates["unit_cost"] = *input.UnitCost
	}
	if input.TotalCost != nil {
		updates["total_cost"] = *input.TotalCost
	}
	if input.RawBrand != nil {
		updates["raw_brand"] = *input.RawBrand
	}
	if input.RawModel != nil {
		updates["raw_model"] = *input.RawModel
	}
	if input.RawColor != nil {
		updates["raw_color"] = *input.RawColor
	}
	if input.RawSize != nil {
		updates["raw_size"] = *input.RawSize
	}
	if len(updates) == 0 {
		return invoice, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&InvoiceLineItem{}).Where("id = ?", lineItemId).Updates(updates).Error; err != nil {
		return nil, utils.NewInternalError("update invoice line item", err)
	}
	return GetInvoice(ctx, invoiceId)
}

// ApproveInvoice drives a pending invoice to approved: allocates landed
// costs, reserves serials, creates one in-transit bike per unit, and stamps
// the approver. All writes happen in one transaction; serial reservation
// runs in its own locked transaction just before it, so a failed approval
// burns the reserved range rather than reusing it.
func ApproveInvoice(ctx context.Context, id int, approvedBy string) (*ApprovalResult, error) {
	invoice, err := GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != InvoiceStatusPending {
		return nil, utils.NewValidationError("only pending invoices can be approved")
	}

	var unmatched []int
	for _, li := range invoice.LineItems {
		if li.ProductId == nil {
			unmatched = append(unmatched, li.ID)
		}
	}
	if len(unmatched) > 0 {
		return nil, utils.NewValidationError("line items %v have no matched product", unmatched)
	}

	allocItems := make([]utils.AllocationItem, len(invoice.LineItems))
	for i, li := range invoice.LineItems {
		allocItems[i] = utils.AllocationItem{
			Quantity:  li.Quantity,
			UnitCost:  li.UnitCost,
			TotalCost: li.TotalCost,
		}
	}
	allocated, err := utils.AllocateCosts(allocItems, utils.InvoiceExtras{
		Shipping:      invoice.ShippingCost,
		Discount:      invoice.Discount,
		CreditCardFee: invoice.CreditCardFee,
		Tax:           invoice.Tax,
		OtherFee:      invoice.OtherFee,
	})
	if err != nil {
		return nil, err
	}

	totalUnits := 0
	for _, li := range invoice.LineItems {
		totalUnits += li.Quantity
	}
	serials, err := ReserveSerials(ctx, totalUnits)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var bikes []*Bike

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Status-conditioned update guards against a concurrent approve
		// or reject racing past the read above.
		res := tx.Model(&Invoice{}).
			Where("id = ? AND status = ?", id, InvoiceStatusPending).
			Updates(map[string]interface{}{
				"status":      InvoiceStatusApproved,
				"approved_by": approvedBy,
				"approved_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.NewValidationError("only pending invoices can be approved")
		}

		serialIdx := 0
		for i, li := range invoice.LineItems {
			cost := allocated[i]
			if err := tx.Model(&InvoiceLineItem{}).
				Where("id = ?", li.ID).
				Update("allocated_cost", cost).Error; err != nil {
				return err
			}
			for u := 0; u < li.Quantity; u++ {
				bike := &Bike{
					SerialNumber: serials[serialIdx],
					ProductId:    *li.ProductId,
					InvoiceId:    &invoice.ID,
					ActualCost:   cost,
					Status:       BikeStatusInTransit,
				}
				serialIdx++
				if err := tx.Create(bike).Error; err != nil {
					return err
				}
				bikes = append(bikes, bike)
			}
		}
		return nil
	})
	if err != nil {
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, utils.NewInternalError("approve invoice", err)
	}

	updated, err := GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ApprovalResult{Invoice: updated, Bikes: bikes}, nil
}

// RejectInvoice flips a pending invoice to rejected. No bikes are touched.
func RejectInvoice(ctx context.Context, id int) (*Invoice, error) {
	if _, err := GetInvoice(ctx, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	res := db.WithContext(ctx).Model(&Invoice{}).
		Where("id = ? AND status = ?", id, InvoiceStatusPending).
		Update("status", InvoiceStatusRejected)
	if res.Error != nil {
		return nil, utils.NewInternalError("reject invoice", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewValidationError("only pending invoices can be rejected")
	}
	return GetInvoice(ctx, id)
}
