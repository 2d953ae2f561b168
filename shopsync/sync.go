package shopsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/pedalhouse/bikestock_backend/config"
	"github.com/pedalhouse/bikestock_backend/models"
	"github.com/pedalhouse/bikestock_backend/utils"
	"github.com/sirupsen/logrus"
)

// SyncResult separates the local outcome from remote warnings: a failed push
// never rolls back local state, it only shows up here.
type SyncResult struct {
	ProductId        int      `json:"product_id"`
	ShopifyProductId string   `json:"shopify_product_id,omitempty"`
	PushedVariants   []string `json:"pushed_variants,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}

func (r *SyncResult) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

func joinUserErrors(errs []userError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

type CreatedVariant struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Sku   string `json:"sku"`
}

// EnsureProduct makes sure a remote product exists for the brand+model and
// returns its id. Siblings (same brand+model, different color/size) share
// one remote product; a known id on any sibling is propagated to the rest.
// Otherwise the store is searched by title, and only then is a new product
// created with Color/Size/Serial options. A redis lock keyed on the title
// keeps two concurrent approvals from creating the product twice; if the
// lock cannot be taken the ensure proceeds unguarded.
func (c *Client) EnsureProduct(ctx context.Context, product *models.Product) (string, error) {
	if !c.Configured() {
		return "", errSkipped
	}
	title := strings.TrimSpace(product.Brand + " " + product.Model)
	if title == "" {
		return "", utils.NewValidationError("product has no brand or model for platform sync")
	}

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "shopsync:ensure:"+strings.ToLower(title), 30*time.Second, &redislock.Options{
			RetryStrategy: redislock.LinearBackoff(500 * time.Millisecond),
		})
		if err == nil {
			defer lock.Release(context.WithoutCancel(ctx))
		}
	}

	siblings, err := models.GetSiblingProducts(ctx, product.Brand, product.Model)
	if err != nil {
		return "", err
	}
	if len(siblings) == 0 {
		siblings = []*models.Product{product}
	}

	var siblingIds []int
	for _, sib := range siblings {
		siblingIds = append(siblingIds, sib.ID)
	}
	for _, sib := range siblings {
		if sib.ShopifyProductId != nil && *sib.ShopifyProductId != "" {
			if err := models.SetShopifyProductId(ctx, siblingIds, *sib.ShopifyProductId); err != nil {
				return "", err
			}
			return *sib.ShopifyProductId, nil
		}
	}

	var search struct {
		Products struct {
			Edges []struct {
				Node struct {
					ID    string `json:"id"`
					Title string `json:"title"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"products"`
	}
	err = c.graphql(ctx, searchProductsQuery, map[string]interface{}{
		"query": fmt.Sprintf("title:'%s'", title),
	}, &search)
	if err != nil {
		return "", utils.NewUpstreamError(fmt.Sprintf("product search failed for %q", title), err)
	}
	for _, edge := range search.Products.Edges {
		if strings.EqualFold(edge.Node.Title, title) {
			if err := models.SetShopifyProductId(ctx, siblingIds, edge.Node.ID); err != nil {
				return "", err
			}
			return edge.Node.ID, nil
		}
	}

	var created struct {
		ProductCreate struct {
			UserErrors []userError `json:"userErrors"`
			Product    struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"product"`
		} `json:"productCreate"`
	}
	err = c.graphql(ctx, createProductMutation, map[string]interface{}{
		"input": map[string]interface{}{
			"title":  title,
			"status": "ACTIVE",
			"productOptions": []map[string]interface{}{
				{"name": "Color", "values": []map[string]string{{"name": "Default"}}},
				{"name": "Size", "values": []map[string]string{{"name": "Default"}}},
				{"name": "Serial", "values": []map[string]string{{"name": "Default"}}},
			},
		},
	}, &created)
	if err != nil {
		return "", utils.NewUpstreamError(fmt.Sprintf("failed to create product %q", title), err)
	}
	if len(created.ProductCreate.UserErrors) > 0 {
		return "", utils.NewUpstreamError(
			fmt.Sprintf("product creation errors for %q: %s", title, joinUserErrors(created.ProductCreate.UserErrors)), nil)
	}

	remoteId := created.ProductCreate.Product.ID
	if err := models.SetShopifyProductId(ctx, siblingIds, remoteId); err != nil {
		return "", err
	}

	c.publishAllChannels(ctx, remoteId)
	return remoteId, nil
}

// publishAllChannels publishes the product to every sales channel. Failures
// are logged, never returned.
func (c *Client) publishAllChannels(ctx context.Context, productGid string) {
	pubIds, err := c.getPublicationIds(ctx)
	if err != nil {
		config.LogError(c.logger, "shopsync", "publishAllChannels", "fetch publications", productGid, err)
		return
	}
	if len(pubIds) == 0 {
		c.logger.WithFields(logrus.Fields{"product": productGid}).Warn("no publications found, skipping channel publish")
		return
	}

	input := make([]map[string]string, len(pubIds))
	for i, id := range pubIds {
		input[i] = map[string]string{"publicationId": id}
	}
	var data struct {
		PublishablePublish struct {
			UserErrors []userError `json:"userErrors"`
		} `json:"publishablePublish"`
	}
	err = c.graphql(ctx, publishablePublishMutation, map[string]interface{}{
		"id": productGid, "input": input,
	}, &data)
	if err != nil {
		config.LogError(c.logger, "shopsync", "publishAllChannels", "publish product", productGid, err)
		return
	}
	if len(data.PublishablePublish.UserErrors) > 0 {
		c.logger.WithFields(logrus.Fields{
			"product": productGid,
			"errors":  joinUserErrors(data.PublishablePublish.UserErrors),
		}).Warn("channel publish had errors")
	}
}

// CreateVariantsForBikes pushes each bike as a sellable variant under the
// product's remote id. Each variant carries Color/Size/Serial option values,
// the retail price, and a quantity of one at the store location. Local bikes
// are stamped with their variant ids, and the placeholder default variant is
// cleaned up after the first real variant lands.
func (c *Client) CreateVariantsForBikes(ctx context.Context, bikes []*models.Bike, product *models.Product) ([]CreatedVariant, error) {
	if !c.Configured() {
		return nil, errSkipped
	}
	if product.ShopifyProductId == nil || *product.ShopifyProductId == "" {
		return nil, utils.NewValidationError("product %d has no platform product id", product.ID)
	}
	if len(bikes) == 0 {
		return nil, nil
	}

	locationId, err := c.getLocationId(ctx)
	if err != nil {
		return nil, err
	}

	color := product.Color
	if color == "" {
		color = "Default"
	}
	size := product.Size
	if size == "" {
		size = "Default"
	}
	prefix := config.GetSerialPrefix() + "-"

	variantsInput := make([]map[string]interface{}, len(bikes))
	for i, bike := range bikes {
		variantsInput[i] = map[string]interface{}{
			"optionValues": []map[string]string{
				{"optionName": "Color", "name": color},
				{"optionName": "Size", "name": size},
				{"optionName": "Serial", "name": bike.SerialNumber},
			},
			"price":   product.RetailPrice.String(),
			"barcode": strings.TrimPrefix(bike.SerialNumber, prefix),
			"inventoryItem": map[string]interface{}{
				"cost":    bike.ActualCost.String(),
				"sku":     bike.SerialNumber,
				"tracked": true,
			},
			"inventoryQuantities": []map[string]interface{}{
				{"locationId": locationId, "availableQuantity": 1},
			},
		}
	}

	var data struct {
		ProductVariantsBulkCreate struct {
			UserErrors      []userError      `json:"userErrors"`
			ProductVariants []CreatedVariant `json:"productVariants"`
		} `json:"productVariantsBulkCreate"`
	}
	err = c.graphql(ctx, createVariantsMutation, map[string]interface{}{
		"productId": *product.ShopifyProductId,
		"variants":  variantsInput,
	}, &data)
	if err != nil {
		return nil, utils.NewUpstreamError("variant creation request failed", err)
	}
	if len(data.ProductVariantsBulkCreate.UserErrors) > 0 {
		c.logger.WithFields(logrus.Fields{
			"product": *product.ShopifyProductId,
			"errors":  joinUserErrors(data.ProductVariantsBulkCreate.UserErrors),
		}).Warn("variant creation had errors")
		// A stale location or publication id is the usual culprit; drop the
		// cached ids so the next push re-fetches them.
		c.Invalidate()
	}

	created := data.ProductVariantsBulkCreate.ProductVariants
	variantBySku := make(map[string]CreatedVariant, len(created))
	for _, v := range created {
		variantBySku[v.Sku] = v
	}
	for _, bike := range bikes {
		if v, ok := variantBySku[bike.SerialNumber]; ok {
			if err := models.SetBikeVariantId(ctx, bike.ID, v.ID); err != nil {
				config.LogError(c.logger, "shopsync", "CreateVariantsForBikes", "stamp variant id", bike.SerialNumber, err)
			}
		}
	}

	if len(created) > 0 {
		c.deleteDefaultVariant(ctx, *product.ShopifyProductId)
	}
	return created, nil
}

// deleteDefaultVariant removes the Default/Default/Default placeholder that
// a freshly created product carries. Best effort.
func (c *Client) deleteDefaultVariant(ctx context.Context, shopifyProductId string) {
	var data struct {
		Product struct {
			Variants struct {
				Edges []struct {
					Node struct {
						ID              string `json:"id"`
						SelectedOptions []struct {
							Name  string `json:"name"`
							Value string `json:"value"`
						} `json:"selectedOptions"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"variants"`
		} `json:"product"`
	}
	err := c.graphql(ctx, getProductVariantsQuery, map[string]interface{}{"id": shopifyProductId}, &data)
	if err != nil {
		config.LogError(c.logger, "shopsync", "deleteDefaultVariant", "fetch variants", shopifyProductId, err)
		return
	}

	var defaultIds []string
	for _, edge := range data.Product.Variants.Edges {
		allDefault := len(edge.Node.SelectedOptions) > 0
		for _, opt := range edge.Node.SelectedOptions {
			if opt.Value != "Default" {
				allDefault = false
				break
			}
		}
		if allDefault {
			defaultIds = append(defaultIds, edge.Node.ID)
		}
	}
	if len(defaultIds) == 0 {
		return
	}

	var del struct {
		ProductVariantsBulkDelete struct {
			UserErrors []userError `json:"userErrors"`
		} `json:"productVariantsBulkDelete"`
	}
	err = c.graphql(ctx, deleteVariantsMutation, map[string]interface{}{
		"productId": shopifyProductId, "variantsIds": defaultIds,
	}, &del)
	if err != nil {
		config.LogError(c.logger, "shopsync", "deleteDefaultVariant", "delete variants", shopifyProductId, err)
		return
	}
	c.logger.WithFields(logrus.Fields{
		"product": shopifyProductId,
		"count":   len(defaultIds),
	}).Info("deleted default placeholder variants")
}

// ArchiveSoldVariants deletes remote variants for a product's sold bikes and
// clears the local references. Returns the number of variants removed.
func (c *Client) ArchiveSoldVariants(ctx context.Context, productId int) (int, error) {
	if !c.Configured() {
		return 0, errSkipped
	}

	status := models.BikeStatusSold
	soldBikes, err := models.ListBikes(ctx, models.BikeFilter{ProductId: &productId, Status: &status})
	if err != nil {
		return 0, err
	}
	var toDelete []*models.Bike
	for _, b := range soldBikes {
		if b.ShopifyVariantId != nil && *b.ShopifyVariantId != "" {
			toDelete = append(toDelete, b)
		}
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	product, err := models.GetProduct(ctx, productId)
	if err != nil {
		return 0, err
	}
	if product.ShopifyProductId == nil || *product.ShopifyProductId == "" {
		return 0, nil
	}

	variantIds := make([]string, len(toDelete))
	for i, b := range toDelete {
		variantIds[i] = *b.ShopifyVariantId
	}

	var data struct {
		ProductVariantsBulkDelete struct {
			UserErrors []userError `json:"userErrors"`
		} `json:"productVariantsBulkDelete"`
	}
	err = c.graphql(ctx, deleteVariantsMutation, map[string]interface{}{
		"productId": *product.ShopifyProductId, "variantsIds": variantIds,
	}, &data)
	if err != nil {
		return 0, utils.NewUpstreamError("variant deletion request failed", err)
	}
	if len(data.ProductVariantsBulkDelete.UserErrors) > 0 {
		c.logger.WithFields(logrus.Fields{
			"product": *product.ShopifyProductId,
			"errors":  joinUserErrors(data.ProductVariantsBulkDelete.UserErrors),
		}).Warn("variant deletion had errors")
	}

	empty := ""
	for _, b := range toDelete {
		if _, err := models.UpdateBike(ctx, b.ID, &models.UpdateBikeInput{ShopifyVariantId: &empty}); err != nil {
			config.LogError(c.logger, "shopsync", "ArchiveSoldVariants", "clear variant id", b.SerialNumber, err)
		}
	}
	return len(toDelete), nil
}

// PushBikes is the post-receive path: group bikes by product, ensure each
// remote product, and create one variant per bike. Remote failures become
// warnings on the result, never errors.
func (c *Client) PushBikes(ctx context.Context, bikes []*models.Bike) []*SyncResult {
	byProduct := map[int][]*models.Bike{}
	for _, b := range bikes {
		byProduct[b.ProductId] = append(byProduct[b.ProductId], b)
	}

	var results []*SyncResult
	for productId, group := range byProduct {
		result := &SyncResult{ProductId: productId}
		results = append(results, result)

		product, err := models.GetProduct(ctx, productId)
		if err != nil {
			result.warnf("load product %d: %v", productId, err)
			continue
		}

		remoteId, err := c.EnsureProduct(ctx, product)
		if err != nil {
			result.warnf("ensure product %q: %v", product.Sku, err)
			continue
		}
		result.ShopifyProductId = remoteId
		product.ShopifyProductId = &remoteId

		created, err := c.CreateVariantsForBikes(ctx, group, product)
		if err != nil {
			result.warnf("push variants for %q: %v", product.Sku, err)
			continue
		}
		for _, v := range created {
			result.PushedVariants = append(result.PushedVariants, v.Sku)
		}
	}
	return results
}
