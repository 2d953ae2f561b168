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

const productCatalogCacheKey = "ProductCatalog"

type Product struct {
	ID               int             `gorm:"primary_key" json:"id"`
	Sku              string          `gorm:"size:255;not null;uniqueIndex" json:"sku"`
	Brand            string          `gorm:"size:100;not null" json:"brand"`
	Model            string          `gorm:"size:100;not null" json:"model"`
	Color            string          `gorm:"size:100;default:null" json:"color"`
	Size             string          `gorm:"size:100;default:null" json:"size"`
	RetailPrice      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"retail_price"`
	ShopifyProductId *string         `gorm:"size:64;default:null" json:"shopify_product_id"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Brand       string          `json:"brand" binding:"required"`
	Model       string          `json:"model" binding:"required"`
	Color       string          `json:"color"`
	Size        string          `json:"size"`
	RetailPrice decimal.Decimal `json:"retail_price"`
}

// UpdateProductInput enumerates the only fields that are legitimately mutable
// on a product. Nil means "leave unchanged".
type UpdateProductInput struct {
	Brand       *string          `json:"brand"`
	Model       *string          `json:"model"`
	Color       *string          `json:"color"`
	Size        *string          `json:"size"`
	RetailPrice *decimal.Decimal `json:"retail_price"`
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	db := config.GetDB()

	sku := utils.GenerateSku(input.Brand, input.Model, input.Color, input.Size)
	if sku == "" {
		return nil, utils.NewValidationError("brand and model are required to derive a sku")
	}

	var count int64
	if err := db.WithContext(ctx).Model(&Product{}).Where("sku = ?", sku).Count(&count).Error; err != nil {
		return nil, utils.NewInternalError("check duplicate sku", err)
	}
	if count > 0 {
		return nil, utils.NewConflictError("product with sku "+sku+" already exists", map[string]any{
			"sku": sku,
		})
	}

	// Siblings (same brand+model) share one platform product id once any of
	// them has established it.
	var shopifyProductId *string
	siblings, err := GetSiblingProducts(ctx, input.Brand, input.Model)
	if err == nil {
		for _, sib := range siblings {
			if sib.ShopifyProductId != nil {
				shopifyProductId = sib.ShopifyProductId
				break
			}
		}
	}

	product := Product{
		Sku:              sku,
		Brand:            input.Brand,
		Model:            input.Model,
		Color:            input.Color,
		Size:             input.Size,
		RetailPrice:      input.RetailPrice,
		ShopifyProductId: shopifyProductId,
	}
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, utils.NewConflictError("product with sku "+sku+" already exists", map[string]any{
				"sku": sku,
			})
		}
		return nil, utils.NewInternalError("create product", err)
	}

	invalidateProductCatalogCache()
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	db := config.GetDB()
	var product Product
	err := db.WithContext(ctx).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("product %d not found", id)
	}
	if err != nil {
		return nil, utils.NewInternalError("get product", err)
	}
	return &product, nil
}

func GetProductBySku(ctx context.Context, sku string) (*Product, error) {
	db := config.GetDB()
	var product Product
	err := db.WithContext(ctx).Where("sku = ?", sku).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("product with sku %s not found", sku)
	}
	if err != nil {
		return nil, utils.NewInternalError("get product by sku", err)
	}
	return &product, nil
}

// ListProducts returns the whole catalog ordered by brand, model. The result
// is cached in redis; any product write invalidates the cache.
func ListProducts(ctx context.Context) ([]*Product, error) {
	var products []*Product

	found, err := config.GetRedisObject(productCatalogCacheKey, &products)
	if err == nil && found {
		return products, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Order("brand, model").Find(&products).Error; err != nil {
		return nil, utils.NewInternalError("list products", err)
	}

	if err := config.SetRedisObject(productCatalogCacheKey, products, utils.GetCacheLifespan()); err != nil {
		config.LogError(config.GetLogger(), "product.go", "ListProducts", "cache catalog", nil, err)
	}
	return products, nil
}

// GetSiblingProducts returns products sharing the same brand+model
// (the colour/size variants of one platform product).
func GetSiblingProducts(ctx context.Context, brand, model string) ([]*Product, error) {
	db := config.GetDB()
	var products []*Product
	err := db.WithContext(ctx).Where("brand = ? AND model = ?", brand, model).Find(&products).Error
	if err != nil {
		return nil, utils.NewInternalError("get sibling products", err)
	}
	return products, nil
}

func UpdateProduct(ctx context.Context, id int, input *UpdateProductInput) (*Product, error) {
	product, err := GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Brand != nil {
		product.Brand = *input.Brand
	}
	if input.Model != nil {
		product.Model = *input.Model
	}
	if input.Color != nil {
		product.Color = *input.Color
	}
	if input.Size != nil {
		product.Size = *input.Size
	}
	if input.RetailPrice != nil {
		product.RetailPrice = *input.RetailPrice
	}

	// Identity fields changed; the sku is derived, so keep it in sync.
	product.Sku = utils.GenerateSku(product.Brand, product.Model, product.Color, product.Size)
	if product.Sku == "" {
		return nil, utils.NewValidationError("brand and model are required to derive a sku")
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Product{}).
		Where("sku = ? AND id <> ?", product.Sku, id).Count(&count).Error; err != nil {
		return nil, utils.NewInternalError("check duplicate sku", err)
	}
	if count > 0 {
		return nil, utils.NewConflictError("product with sku "+product.Sku+" already exists", map[string]any{
			"sku": product.Sku,
		})
	}

	if err := db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, utils.NewInternalError("update product", err)
	}

	invalidateProductCatalogCache()
	return product, nil
}

// SetShopifyProductId persists the platform product id onto every listed
// product (used to propagate one id across siblings).
func SetShopifyProductId(ctx context.Context, productIds []int, shopifyProductId string) error {
	if len(productIds) == 0 {
		return nil
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&Product{}).
		Where("id IN ?", productIds).
		Update("shopify_product_id", shopifyProductId).Error
	if err != nil {
		return utils.NewInternalError("set shopify product id", err)
	}
	invalidateProductCatalogCache()
	return nil
}

func DeleteProduct(ctx context.Context, id int) error {
	db := config.GetDB()

	var bikeCount int64
	if err := db.WithContext(ctx).Model(&Bike{}).Where("product_id = ?", id).Count(&bikeCount).Error; err != nil {
		return utils.NewInternalError("count bikes for product", err)
	}
	if bikeCount > 0 {
		return utils.NewConflictError("product has stock records and cannot be deleted", map[string]any{
			"bike_count": bikeCount,
		})
	}

	result := db.WithContext(ctx).Delete(&Product{}, id)
	if result.Error != nil {
		return utils.NewInternalError("delete product", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.NewNotFoundError("product %d not found", id)
	}

	invalidateProductCatalogCache()
	return nil
}

func invalidateProductCatalogCache() {
	if err := config.RemoveRedisKey(productCatalogCacheKey); err != nil {
		config.LogError(config.GetLogger(), "product.go", "invalidateProductCatalogCache", "remove key", nil, err)
	}
}
