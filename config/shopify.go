package config

import (
	"os"
	"strconv"
	"strings"
)

// ShopifySettings groups the commerce-platform credentials and the serial
// numbering knobs that the sync and webhook paths share.
//
// Set via env:
// - SHOPIFY_STORE_URL (e.g. "my-shop.myshopify.com")
// - SHOPIFY_CLIENT_ID + SHOPIFY_CLIENT_SECRET (client-credentials grant), or
// - SHOPIFY_ACCESS_TOKEN (legacy static token)
// - SHOPIFY_API_VERSION (default "2025-10")
// - SHOPIFY_WEBHOOK_SECRET
// - SERIAL_PREFIX (default "BIKE")
// - STARTING_SERIAL (default 1)
type ShopifySettings struct {
	StoreURL      string
	ClientID      string
	ClientSecret  string
	AccessToken   string
	APIVersion    string
	WebhookSecret string
}

func GetShopifySettings() ShopifySettings {
	apiVersion := strings.TrimSpace(os.Getenv("SHOPIFY_API_VERSION"))
	if apiVersion == "" {
		apiVersion = "2025-10"
	}
	return ShopifySettings{
		StoreURL:      strings.TrimSpace(os.Getenv("SHOPIFY_STORE_URL")),
		ClientID:      strings.TrimSpace(os.Getenv("SHOPIFY_CLIENT_ID")),
		ClientSecret:  strings.TrimSpace(os.Getenv("SHOPIFY_CLIENT_SECRET")),
		AccessToken:   strings.TrimSpace(os.Getenv("SHOPIFY_ACCESS_TOKEN")),
		APIVersion:    apiVersion,
		WebhookSecret: strings.TrimSpace(os.Getenv("SHOPIFY_WEBHOOK_SECRET")),
	}
}

func GetSerialPrefix() string {
	prefix := strings.TrimSpace(os.Getenv("SERIAL_PREFIX"))
	if prefix == "" {
		prefix = "BIKE"
	}
	return prefix
}

func GetStartingSerial() int64 {
	v := strings.TrimSpace(os.Getenv("STARTING_SERIAL"))
	if v == "" {
		return 1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// GetInvoiceUploadDir is where uploaded supplier invoice PDFs are stored.
func GetInvoiceUploadDir() string {
	dir := strings.TrimSpace(os.Getenv("INVOICE_UPLOAD_DIR"))
	if dir == "" {
		dir = "data/invoices"
	}
	return dir
}
