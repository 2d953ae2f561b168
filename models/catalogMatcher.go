package models

import (
	"strings"
)

// MatchAttributes are the free-text attributes extracted from a supplier
// invoice line, possibly partial, used to find the matching catalog product.
type MatchAttributes struct {
	Brand string
	Model string
	Color string
	Size  string
}

// A candidate needs at least a model-level match to be considered at all.
const minimumMatchScore = 3

// Scoring weights. Model similarity dominates; brand/colour/size refine the
// pick between variants of the same model.
const (
	scoreModelExact     = 5
	scoreModelPartial   = 3
	scoreBrandExact     = 3
	scoreColorExact     = 2
	scoreSizeExact      = 2
	tokenOverlapMinimum = 0.5
)

// Supplier invoices abbreviate sizes and colours inconsistently; expand the
// common ones before comparing.
var attributeAbbreviations = map[string]string{
	"sm":  "small",
	"med": "medium",
	"md":  "medium",
	"lg":  "large",
	"xl":  "extra large",
	"blk": "black",
	"wht": "white",
	"blu": "blue",
	"rd":  "red",
	"grn": "green",
	"gry": "grey",
	"gray": "grey",
	"yel": "yellow",
	"org": "orange",
}

// MatchProduct scores every catalog product against the parsed attributes and
// returns the best match, or nil when nothing reaches the minimum bar.
// Products whose model does not match at all are skipped outright, so a high
// brand/colour/size score can never produce an unrelated-model match.
//
// Tie-break between equal top scores: the lowest product id wins. That makes
// the result deterministic regardless of catalog ordering.
func MatchProduct(attrs MatchAttributes, catalog []*Product) *Product {
	var best *Product
	bestScore := 0

	for _, product := range catalog {
		if strings.TrimSpace(product.Model) == "" {
			continue
		}
		score := scoreMatch(attrs, product)
		if score < minimumMatchScore {
			continue
		}
		if score > bestScore || (score == bestScore && best != nil && product.ID < best.ID) {
			best = product
			bestScore = score
		}
	}

	return best
}

func scoreMatch(attrs MatchAttributes, product *Product) int {
	itemModel := normalizeAttribute(attrs.Model)
	productModel := normalizeAttribute(product.Model)
	if itemModel == "" || productModel == "" {
		return 0
	}

	score := 0
	switch {
	case itemModel == productModel:
		score += scoreModelExact
	case strings.Contains(itemModel, productModel) || strings.Contains(productModel, itemModel):
		score += scoreModelPartial
	case tokenOverlapRatio(itemModel, productModel) >= tokenOverlapMinimum:
		score += scoreModelPartial
	default:
		// Unrelated model: the product is out of the running entirely.
		return 0
	}

	if attrs.Brand != "" && normalizeAttribute(attrs.Brand) == normalizeAttribute(product.Brand) {
		score += scoreBrandExact
	}
	if attrs.Color != "" && normalizeAttribute(attrs.Color) == normalizeAttribute(product.Color) {
		score += scoreColorExact
	}
	if attrs.Size != "" && normalizeAttribute(attrs.Size) == normalizeAttribute(product.Size) {
		score += scoreSizeExact
	}

	return score
}

// normalizeAttribute lowercases, collapses whitespace, and expands known
// abbreviations token by token.
func normalizeAttribute(s string) string {
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for i, tok := range tokens {
		if full, ok := attributeAbbreviations[tok]; ok {
			tokens[i] = full
		}
	}
	return strings.Join(tokens, " ")
}

// tokenOverlapRatio is |shared tokens| over the larger token-set size, so a
// one-word overlap against a long model name scores low.
func tokenOverlapRatio(a, b string) float64 {
	aTokens := strings.Fields(a)
	bTokens := strings.Fields(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}

	seen := make(map[string]bool, len(aTokens))
	for _, tok := range aTokens {
		seen[tok] = true
	}
	shared := 0
	for _, tok := range bTokens {
		if seen[tok] {
			shared++
			seen[tok] = false
		}
	}

	larger := len(aTokens)
	if len(bTokens) > larger {
		larger = len(bTokens)
	}
	return float64(shared) / float64(larger)
}
