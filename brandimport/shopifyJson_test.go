package brandimport

import (
	"encoding/json"
	"testing"
)

func TestCleanSize(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Large", "Large"},
		{"large", "Large"},
		{"Extra Small", "Extra Small"},
		{"X-Large", "Extra Large"},
		{"Step-Through", "Step-Thru"},
		{`Medium (5'6" - 5'10")`, "Medium"},
		{"M", "M"},
		{"One Size", ""},
		{"Regular", ""},
		{"Default Title", ""},
		{"54cm", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := cleanSize(tc.raw); got != tc.want {
			t.Errorf("cleanSize(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestCleanModelName(t *testing.T) {
	cases := []struct {
		title, brand, want string
	}{
		{"Aventon Level.2 Ebike", "Aventon", "Level.2"},
		{"Aventon - Pace 500", "Aventon", "Pace 500"},
		{"Sinch Step-Through Electric Bike", "Aventon", "Sinch Step-Through"},
		{"RadRunner 2", "Rad Power", "RadRunner 2"},
		{"Aventure", "Aventon", "Aventure"},
	}
	for _, tc := range cases {
		if got := cleanModelName(tc.title, tc.brand); got != tc.want {
			t.Errorf("cleanModelName(%q, %q) = %q, want %q", tc.title, tc.brand, got, tc.want)
		}
	}
}

func TestIsBikeProduct(t *testing.T) {
	bike := storefrontProduct{
		ProductType: "Electric Bikes",
	}
	if !isBikeProduct(bike) {
		t.Error("typed bike product excluded")
	}

	accessory := storefrontProduct{
		ProductType: "Accessories",
		Variants:    []storefrontVariant{{Price: "1999.00"}},
	}
	if isBikeProduct(accessory) {
		t.Error("typed accessory included despite price")
	}

	untypedCheap := storefrontProduct{
		Variants: []storefrontVariant{{Price: "49.99"}},
	}
	if isBikeProduct(untypedCheap) {
		t.Error("cheap untyped product included")
	}

	untypedTagged := storefrontProduct{
		Tags:     json.RawMessage(`"commuter, e-bike, sale"`),
		Variants: []storefrontVariant{{Price: "1499.00"}},
	}
	if !isBikeProduct(untypedTagged) {
		t.Error("tagged expensive product excluded")
	}

	untypedWrongTags := storefrontProduct{
		Tags:     json.RawMessage(`"helmet, safety"`),
		Variants: []storefrontVariant{{Price: "899.00"}},
	}
	if isBikeProduct(untypedWrongTags) {
		t.Error("expensive accessory with non-bike tags included")
	}

	untypedNoMeta := storefrontProduct{
		Variants: []storefrontVariant{{Price: "1299.00"}},
	}
	if !isBikeProduct(untypedNoMeta) {
		t.Error("expensive metadata-free product excluded")
	}
}

func TestExtractVariants_OptionPositions(t *testing.T) {
	product := storefrontProduct{
		Title:       "Aventon Level.2 Ebike",
		ProductType: "Electric Bikes",
		Options: []storefrontOption{
			{Name: "Color", Position: 1, Values: []string{"Clay", "Glacier"}},
			{Name: "Size", Position: 2, Values: []string{"Regular", "Large"}},
		},
		Variants: []storefrontVariant{
			{Price: "1799.00", Option1: "Clay", Option2: "Large"},
			{Price: "1799.00", Option1: "Glacier", Option2: "Regular"},
		},
	}

	out := extractVariants(product, "Aventon")
	if len(out) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(out))
	}
	if out[0].Model != "Level.2" {
		t.Errorf("model: got %q", out[0].Model)
	}
	if out[0].Color != "Clay" || out[0].Size != "Large" {
		t.Errorf("variant 0: got color %q size %q", out[0].Color, out[0].Size)
	}
	// "Regular" is not a recognized size label.
	if out[1].Size != "" {
		t.Errorf("variant 1: expected empty size, got %q", out[1].Size)
	}
}

func TestExtractVariants_SingleValueSizeIgnored(t *testing.T) {
	product := storefrontProduct{
		Title:       "Pace 500",
		ProductType: "Ebike",
		Options: []storefrontOption{
			{Name: "Size", Position: 1, Values: []string{"One Size"}},
		},
		Variants: []storefrontVariant{{Price: "1399.00", Option1: "One Size"}},
	}

	out := extractVariants(product, "Aventon")
	if len(out) != 1 {
		t.Fatalf("expected 1 variant, got %d", len(out))
	}
	if out[0].Size != "" {
		t.Errorf("single-value size option should be ignored, got %q", out[0].Size)
	}
}

func TestDeduplicateProducts(t *testing.T) {
	in := []*ScrapedProduct{
		{Brand: "Aventon", Model: "Level.2", Color: "Clay", Size: "Large"},
		{Brand: "Aventon", Model: "Level.2", Color: "clay", Size: "large"},
		{Brand: "Aventon", Model: "Level.2", Color: "Glacier", Size: "Large"},
	}
	out := deduplicateProducts(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 unique products, got %d", len(out))
	}
}
