package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		text     string
		amount   int
		currency string
	}{
		{"U$S 45.000", 45000, "USD"},
		{"US$ 120.000", 120000, "USD"},
		{"USD 89.500", 89500, "USD"},
		{"$ 1.200.000", 1200000, "UYU"},
		{"UYU 350.000", 350000, "UYU"},
		{"Precio: U$S 45.000 por todo el campo", 45000, "USD"},
		{"U$S 45.000,50", 45000, "USD"},
		{"Consultar precio", 0, ""},
		{"", 0, ""},
	}

	for _, tc := range cases {
		amount, currency := ParsePrice(tc.text)
		assert.Equal(t, tc.amount, amount, "amount for %q", tc.text)
		assert.Equal(t, tc.currency, currency, "currency for %q", tc.text)
	}
}

func TestParseArea(t *testing.T) {
	cases := []struct {
		text string
		area int
		unit string
	}{
		{"5.000 m²", 5000, "sqm"},
		{"5000 m2", 5000, "sqm"},
		{"450 metros", 450, "sqm"},
		{"2 ha", 20000, "sqm"},
		{"3 hectáreas", 30000, "sqm"},
		{"1 hectarea", 10000, "sqm"},
		{"Campo de 120 hás en Tacuarembó", 1200000, "sqm"},
		{"sin superficie", 0, ""},
	}

	for _, tc := range cases {
		area, unit := ParseArea(tc.text)
		assert.Equal(t, tc.area, area, "area for %q", tc.text)
		assert.Equal(t, tc.unit, unit, "unit for %q", tc.text)
	}
}
