package brandimport

import (
	"context"
	"time"

	"github.com/pedalhouse/bikestock_backend/utils"
	"github.com/shopspring/decimal"
)

// ScrapedProduct is one product variant pulled from a brand's storefront.
type ScrapedProduct struct {
	Brand       string          `json:"brand"`
	Model       string          `json:"model"`
	Color       string          `json:"color"`
	Size        string          `json:"size"`
	RetailPrice decimal.Decimal `json:"retail_price"`
}

type ScrapeResult struct {
	BrandName string            `json:"brand_name"`
	SourceURL string            `json:"source_url"`
	Strategy  string            `json:"strategy"`
	Products  []*ScrapedProduct `json:"products"`
}

// Importer pulls a brand's catalog from its storefront.
type Importer interface {
	Import(ctx context.Context, brandName, storeURL string) (*ScrapeResult, error)
}

// ImportWithRetry wraps Import with the bounded backoff policy shared by
// all upstream catalog calls.
func ImportWithRetry(ctx context.Context, importer Importer, brandName, storeURL string) (*ScrapeResult, error) {
	var result *ScrapeResult
	err := utils.RetryWithBackoff(ctx, 3, time.Second, func() error {
		scraped, err := importer.Import(ctx, brandName, storeURL)
		if err != nil {
			return err
		}
		result = scraped
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
