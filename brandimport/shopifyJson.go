package brandimport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/pedalhouse/bikestock_backend/utils"
	"github.com/shopspring/decimal"
)

// Storefront option names that map onto Color or Size.
var (
	colorOptionNames = map[string]bool{"color": true, "colour": true, "colorway": true}
	sizeOptionNames  = map[string]bool{"size": true, "frame size": true, "frame_size": true}
)

// Product types checked with substring matching so "Electric Bikes"
// matches "bike".
var bikeTypeKeywords = []string{"bike", "bicycle", "ebike", "e-bike", "scooter", "moped"}

// Virtually all bikes retail above this; accessories rarely do.
var minBikePrice = decimal.NewFromInt(200)

// Recognized size labels in canonical form, multi-word entries first so
// "Extra Small" matches before "Small", single letters last.
var knownSizes = []struct {
	keyword   string
	canonical string
}{
	{"extra small", "Extra Small"},
	{"x-small", "Extra Small"},
	{"extra large", "Extra Large"},
	{"x-large", "Extra Large"},
	{"xx-large", "XXL"},
	{"xxx-large", "XXXL"},
	{"step-thru", "Step-Thru"},
	{"step-through", "Step-Thru"},
	{"step thru", "Step-Thru"},
	{"step through", "Step-Thru"},
	{"low-step", "Low-Step"},
	{"low step", "Low-Step"},
	{"high-step", "High-Step"},
	{"high step", "High-Step"},
	{"xxxl", "XXXL"},
	{"xxl", "XXL"},
	{"xl", "XL"},
	{"xs", "XS"},
	{"small", "Small"},
	{"medium", "Medium"},
	{"large", "Large"},
	{"s", "S"},
	{"m", "M"},
	{"l", "L"},
}

var titleStripSuffixes = []string{
	"electric bicycle", "electric bike", "e-bicycle", "e-bike",
	"ebicycle", "ebike", "bicycle", "bike",
}

var parenPattern = regexp.MustCompile(`\s*\(.*?\)`)
var leadingSeparatorPattern = regexp.MustCompile(`^[\s\-|/]+`)

type storefrontOption struct {
	Name     string   `json:"name"`
	Position int      `json:"position"`
	Values   []string `json:"values"`
}

type storefrontVariant struct {
	Price   string `json:"price"`
	Option1 string `json:"option1"`
	Option2 string `json:"option2"`
	Option3 string `json:"option3"`
}

func (v storefrontVariant) option(position int) string {
	switch position {
	case 1:
		return v.Option1
	case 2:
		return v.Option2
	case 3:
		return v.Option3
	}
	return ""
}

type storefrontProduct struct {
	Title       string              `json:"title"`
	ProductType string              `json:"product_type"`
	Tags        json.RawMessage     `json:"tags"`
	Options     []storefrontOption  `json:"options"`
	Variants    []storefrontVariant `json:"variants"`
}

// ShopifyJSONImporter reads a storefront's public products.json pages. Fast
// and structured, no browser needed, but only works for stores that expose
// the endpoint.
type ShopifyJSONImporter struct {
	http *http.Client
}

func NewShopifyJSONImporter() *ShopifyJSONImporter {
	return &ShopifyJSONImporter{http: &http.Client{Timeout: 30 * time.Second}}
}

func (s *ShopifyJSONImporter) Import(ctx context.Context, brandName, storeURL string) (*ScrapeResult, error) {
	base := strings.TrimRight(strings.TrimSpace(storeURL), "/")
	if base == "" {
		return nil, utils.NewValidationError("store url is required")
	}

	var all []*ScrapedProduct
	for page := 1; ; page++ {
		products, err := s.fetchPage(ctx, base, page)
		if err != nil {
			return nil, err
		}
		if len(products) == 0 {
			break
		}
		for _, product := range products {
			all = append(all, extractVariants(product, brandName)...)
		}
	}

	if len(all) == 0 {
		return nil, utils.NewUpstreamError(fmt.Sprintf("no bike products found at %s", base), nil)
	}

	return &ScrapeResult{
		BrandName: brandName,
		SourceURL: base,
		Strategy:  "shopify json",
		Products:  deduplicateProducts(all),
	}, nil
}

func (s *ShopifyJSONImporter) fetchPage(ctx context.Context, base string, page int) ([]storefrontProduct, error) {
	params := url.Values{"limit": {"250"}, "page": {fmt.Sprint(page)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/products.json?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, utils.NewUpstreamError("storefront request", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return nil, utils.NewUpstreamError("storefront does not expose products.json", nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, utils.NewUpstreamError(
			fmt.Sprintf("storefront returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var parsed struct {
		Products []storefrontProduct `json:"products"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, utils.NewUpstreamError("decode storefront response", err)
	}
	return parsed.Products, nil
}

func extractVariants(product storefrontProduct, brandName string) []*ScrapedProduct {
	title := strings.TrimSpace(product.Title)
	if title == "" {
		return nil
	}
	model := cleanModelName(title, brandName)
	if model == "" {
		return nil
	}
	if !isBikeProduct(product) {
		return nil
	}

	colorPos, sizePos := 0, 0
	for _, opt := range product.Options {
		name := strings.ToLower(strings.TrimSpace(opt.Name))
		if colorOptionNames[name] {
			colorPos = opt.Position
		} else if sizeOptionNames[name] && len(opt.Values) > 1 {
			// A single value like "One Size" means no real size option.
			sizePos = opt.Position
		}
	}

	var out []*ScrapedProduct
	for _, variant := range product.Variants {
		price, err := decimal.NewFromString(variant.Price)
		if err != nil {
			price = decimal.Zero
		}
		var color, size string
		if colorPos > 0 {
			color = variant.option(colorPos)
		}
		if sizePos > 0 {
			size = cleanSize(variant.option(sizePos))
		}
		out = append(out, &ScrapedProduct{
			Brand:       brandName,
			Model:       model,
			Color:       color,
			Size:        size,
			RetailPrice: price,
		})
	}
	return out
}

// isBikeProduct decides allowlist-first: a categorized product must carry a
// bike keyword in its type; an uncategorized one must clear the price floor
// and, when tags exist, carry a bike keyword there.
func isBikeProduct(product storefrontProduct) bool {
	productType := strings.ToLower(strings.TrimSpace(product.ProductType))
	if productType != "" {
		for _, kw := range bikeTypeKeywords {
			if strings.Contains(productType, kw) {
				return true
			}
		}
		return false
	}

	if maxVariantPrice(product).LessThan(minBikePrice) {
		return false
	}

	var tags string
	if err := json.Unmarshal(product.Tags, &tags); err == nil && tags != "" {
		lower := strings.ToLower(tags)
		for _, kw := range bikeTypeKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		return false
	}
	return true
}

func maxVariantPrice(product storefrontProduct) decimal.Decimal {
	best := decimal.Zero
	for _, v := range product.Variants {
		if price, err := decimal.NewFromString(v.Price); err == nil && price.GreaterThan(best) {
			best = price
		}
	}
	return best
}

// cleanSize returns a canonical size label found in raw, or "". Numbers,
// height ranges, "One Size" and the like yield "".
func cleanSize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.Trim(s, "\"' \t")
	s = strings.TrimSpace(parenPattern.ReplaceAllString(s, ""))
	lower := strings.ToLower(s)

	for _, entry := range knownSizes {
		// Word-boundary match so the "s" in "uesta" is not a size.
		pattern := `(?:^|[^a-z])` + regexp.QuoteMeta(entry.keyword) + `(?:[^a-z]|$)`
		if matched, _ := regexp.MatchString(pattern, lower); matched {
			return entry.canonical
		}
	}
	return ""
}

// cleanModelName strips the brand prefix and trailing descriptors like
// "e-bike" from a storefront title.
func cleanModelName(title, brandName string) string {
	model := strings.TrimSpace(title)

	if brandName != "" && strings.HasPrefix(strings.ToLower(model), strings.ToLower(brandName)) {
		after := model[len(brandName):]
		if after == "" || !isLetter(rune(after[0])) {
			model = strings.TrimSpace(after)
			model = leadingSeparatorPattern.ReplaceAllString(model, "")
		}
	}

	lower := strings.TrimRight(strings.ToLower(model), " ")
	for _, suffix := range titleStripSuffixes {
		if strings.HasSuffix(lower, suffix) {
			model = strings.TrimRight(model[:len(model)-len(suffix)], " -|/")
			break
		}
	}
	return strings.TrimSpace(model)
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func deduplicateProducts(products []*ScrapedProduct) []*ScrapedProduct {
	seen := map[string]bool{}
	var out []*ScrapedProduct
	for _, p := range products {
		key := strings.ToLower(strings.Join([]string{p.Brand, p.Model, p.Color, p.Size}, "|"))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
