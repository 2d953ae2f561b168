package shopsync

import (
	"context"
	"sort"
	"strings"

	"github.com/pedalhouse/bikestock_backend/config"
	"github.com/pedalhouse/bikestock_backend/models"
)

// ReconcileMismatch reports one product whose remote variants disagree with
// local available stock.
type ReconcileMismatch struct {
	ProductId         int      `json:"product_id"`
	Sku               string   `json:"sku"`
	Brand             string   `json:"brand"`
	Model             string   `json:"model"`
	InShopifyNotLocal []string `json:"in_shopify_not_local,omitempty"`
	InLocalNotShopify []string `json:"in_local_not_shopify,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// ReconcileInventory compares local available bikes against remote variants
// for every product that has been pushed. Only serial-prefixed SKUs are
// considered on the remote side; the store sells other goods too.
func (c *Client) ReconcileInventory(ctx context.Context) ([]*ReconcileMismatch, error) {
	if !c.Configured() {
		return nil, errSkipped
	}

	products, err := models.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	prefix := config.GetSerialPrefix() + "-"

	var results []*ReconcileMismatch
	for _, product := range products {
		if product.ShopifyProductId == nil || *product.ShopifyProductId == "" {
			continue
		}

		var data struct {
			Product struct {
				Variants struct {
					Edges []struct {
						Node struct {
							ID  string `json:"id"`
							Sku string `json:"sku"`
						} `json:"node"`
					} `json:"edges"`
				} `json:"variants"`
			} `json:"product"`
		}
		err := c.graphql(ctx, reconcileVariantsQuery, map[string]interface{}{"id": *product.ShopifyProductId}, &data)
		if err != nil {
			config.LogError(c.logger, "shopsync", "ReconcileInventory", "fetch remote variants", product.Sku, err)
			results = append(results, &ReconcileMismatch{
				ProductId: product.ID,
				Sku:       product.Sku,
				Brand:     product.Brand,
				Model:     product.Model,
				Error:     err.Error(),
			})
			continue
		}

		remoteSkus := map[string]bool{}
		for _, edge := range data.Product.Variants.Edges {
			if strings.HasPrefix(edge.Node.Sku, prefix) {
				remoteSkus[edge.Node.Sku] = true
			}
		}

		status := models.BikeStatusAvailable
		localBikes, err := models.ListBikes(ctx, models.BikeFilter{ProductId: &product.ID, Status: &status})
		if err != nil {
			return nil, err
		}
		localSerials := map[string]bool{}
		for _, b := range localBikes {
			localSerials[b.SerialNumber] = true
		}

		var remoteOnly, localOnly []string
		for sku := range remoteSkus {
			if !localSerials[sku] {
				remoteOnly = append(remoteOnly, sku)
			}
		}
		for serial := range localSerials {
			if !remoteSkus[serial] {
				localOnly = append(localOnly, serial)
			}
		}
		sort.Strings(remoteOnly)
		sort.Strings(localOnly)

		if len(remoteOnly) > 0 || len(localOnly) > 0 {
			results = append(results, &ReconcileMismatch{
				ProductId:         product.ID,
				Sku:               product.Sku,
				Brand:             product.Brand,
				Model:             product.Model,
				InShopifyNotLocal: remoteOnly,
				InLocalNotShopify: localOnly,
			})
		}
	}
	return results, nil
}
