package utils_test

import (
	"testing"

	"github.com/pedalhouse/bikestock_backend/utils"
)

func TestGenerateSku(t *testing.T) {
	cases := []struct {
		brand, model, color, size string
		want                      string
	}{
		{"Trek", "Verve 3", "Red", "Large", "TREK-VERVE-3-RED-LARGE"},
		{"Trek", "Verve 3", "", "", "TREK-VERVE-3"},
		{"Aventon", "Level.2", "Slate Gray", "", "AVENTON-LEVEL-2-SLATE-GRAY"},
		{"", "Escape 3", "", "", "ESCAPE-3"},
		{"Rad Power", "RadRunner 2", "Black", "One Size", "RAD-POWER-RADRUNNER-2-BLACK-ONE-SIZE"},
	}
	for _, tc := range cases {
		got := utils.GenerateSku(tc.brand, tc.model, tc.color, tc.size)
		if got != tc.want {
			t.Errorf("GenerateSku(%q, %q, %q, %q) = %q, want %q",
				tc.brand, tc.model, tc.color, tc.size, got, tc.want)
		}
	}
}

func TestGenerateSku_Empty(t *testing.T) {
	if got := utils.GenerateSku("", "", "", ""); got != "" {
		t.Errorf("expected empty sku, got %q", got)
	}
}
