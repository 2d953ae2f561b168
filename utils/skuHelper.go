package utils

import (
	"regexp"
	"strings"
)

var skuCleanup = regexp.MustCompile(`[^A-Z0-9]+`)

// GenerateSku derives the catalog key for a product from its attributes.
// Format: BRAND-MODEL-COLOR-SIZE, uppercased, empty parts omitted, any run of
// non-alphanumeric characters collapsed into a single dash.
func GenerateSku(brand, model, color, size string) string {
	var parts []string
	for _, p := range []string{brand, model, color, size} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	sku := strings.ToUpper(strings.Join(parts, "-"))
	sku = skuCleanup.ReplaceAllString(sku, "-")
	return strings.Trim(sku, "-")
}
