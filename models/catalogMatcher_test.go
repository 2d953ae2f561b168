package models_test

import (
	"testing"

	"github.com/pedalhouse/bikestock_backend/models"
)

func catalogOf(products ...*models.Product) []*models.Product {
	return products
}

func TestMatchProduct_PrefersFullAttributeMatch(t *testing.T) {
	blueMedium := &models.Product{ID: 1, Brand: "Trek", Model: "Verve 3", Color: "Blue", Size: "Medium"}
	redLarge := &models.Product{ID: 2, Brand: "Trek", Model: "Verve 3", Color: "Red", Size: "Large"}

	match := models.MatchProduct(models.MatchAttributes{
		Brand: "Trek", Model: "Verve 3", Color: "Red", Size: "Large",
	}, catalogOf(blueMedium, redLarge))

	if match == nil {
		t.Fatal("expected a match")
	}
	if match.ID != redLarge.ID {
		t.Errorf("expected Red/Large (id %d), got id %d", redLarge.ID, match.ID)
	}
}

func TestMatchProduct_ModelSubstring(t *testing.T) {
	product := &models.Product{ID: 1, Brand: "Specialized", Model: "Rockhopper"}

	match := models.MatchProduct(models.MatchAttributes{
		Model: "Rockhopper Comp 29",
	}, catalogOf(product))

	if match == nil || match.ID != product.ID {
		t.Fatalf("expected substring model match, got %+v", match)
	}
}

func TestMatchProduct_BelowMinimumReturnsNil(t *testing.T) {
	// Matching brand alone scores 3 but the model gate fails first, so an
	// unrelated model never matches no matter the other attributes.
	product := &models.Product{ID: 1, Brand: "Trek", Model: "Domane AL 2", Color: "Red", Size: "Large"}

	match := models.MatchProduct(models.MatchAttributes{
		Brand: "Trek", Model: "Marlin 5", Color: "Red", Size: "Large",
	}, catalogOf(product))

	if match != nil {
		t.Errorf("expected no match for unrelated model, got %s", match.Model)
	}
}

func TestMatchProduct_EmptyModelNeverMatches(t *testing.T) {
	product := &models.Product{ID: 1, Brand: "Trek", Model: "Verve 3"}

	if match := models.MatchProduct(models.MatchAttributes{Brand: "Trek"}, catalogOf(product)); match != nil {
		t.Errorf("expected no match without a model, got %s", match.Model)
	}
}

func TestMatchProduct_TieBreaksOnLowestId(t *testing.T) {
	// Identical products except id; the lower id must win regardless of
	// catalog order.
	first := &models.Product{ID: 3, Brand: "Giant", Model: "Escape 3", Color: "Black"}
	second := &models.Product{ID: 7, Brand: "Giant", Model: "Escape 3", Color: "Black"}

	match := models.MatchProduct(models.MatchAttributes{
		Brand: "Giant", Model: "Escape 3", Color: "Black",
	}, catalogOf(second, first))

	if match == nil || match.ID != 3 {
		t.Fatalf("expected id 3 to win the tie, got %+v", match)
	}
}

func TestMatchProduct_ExpandsAbbreviations(t *testing.T) {
	product := &models.Product{ID: 1, Brand: "Aventon", Model: "Level 2", Color: "Black", Size: "Large"}

	match := models.MatchProduct(models.MatchAttributes{
		Brand: "Aventon", Model: "Level 2", Color: "Blk", Size: "Lg",
	}, catalogOf(product))

	if match == nil || match.ID != product.ID {
		t.Fatalf("expected abbreviation-expanded match, got %+v", match)
	}
}

func TestMatchProduct_TokenOverlap(t *testing.T) {
	product := &models.Product{ID: 1, Brand: "Cannondale", Model: "Trail 8 29er"}

	// "trail 8" shares 2 of 3 tokens with "trail 8 29er".
	match := models.MatchProduct(models.MatchAttributes{
		Model: "29er Trail",
	}, catalogOf(product))

	if match == nil || match.ID != product.ID {
		t.Fatalf("expected token-overlap match, got %+v", match)
	}
}

func TestFormatSerial(t *testing.T) {
	cases := []struct {
		prefix string
		n      int64
		want   string
	}{
		{"BIKE", 1, "BIKE-00001"},
		{"BIKE", 42, "BIKE-00042"},
		{"BIKE", 99999, "BIKE-99999"},
		{"BIKE", 100000, "BIKE-100000"},
		{"EBIKE", 7, "EBIKE-00007"},
	}
	for _, tc := range cases {
		if got := models.FormatSerial(tc.prefix, tc.n); got != tc.want {
			t.Errorf("FormatSerial(%q, %d) = %q, want %q", tc.prefix, tc.n, got, tc.want)
		}
	}
}
