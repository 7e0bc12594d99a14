package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	priceRe = regexp.MustCompile(`(?i)(U\$S|US\$|USD|UYU|\$)\s*([\d][\d.,]*)`)
	areaRe  = regexp.MustCompile(`(?i)([\d][\d.,]*)\s*(m²|m2|metros|ha|hás|hect[áa]reas?)`)
)

// ParsePrice extracts an amount and ISO-like currency tag from strings such
// as "U$S 45.000" or "$ 1.200.000". Uruguayan sites use dots as thousands
// separators. Returns (0, "") when no price is recognized.
func ParsePrice(text string) (int, string) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0, ""
	}

	currency := "UYU"
	switch strings.ToUpper(m[1]) {
	case "U$S", "US$", "USD":
		currency = "USD"
	}

	digits := strings.ReplaceAll(m[2], ".", "")
	// A trailing decimal part after a comma is cents; drop it.
	if idx := strings.Index(digits, ","); idx != -1 {
		digits = digits[:idx]
	}

	amount, err := strconv.Atoi(digits)
	if err != nil {
		return 0, ""
	}
	return amount, currency
}

// ParseArea extracts an area in square meters from strings such as
// "5.000 m²" or "2 ha" (hectares are normalized to m²). Returns (0, "")
// when no area is recognized.
func ParseArea(text string) (int, string) {
	m := areaRe.FindStringSubmatch(text)
	if m == nil {
		return 0, ""
	}

	digits := strings.ReplaceAll(m[1], ".", "")
	if idx := strings.Index(digits, ","); idx != -1 {
		digits = digits[:idx]
	}

	value, err := strconv.Atoi(digits)
	if err != nil {
		return 0, ""
	}

	unit := strings.ToLower(m[2])
	if strings.HasPrefix(unit, "h") {
		return value * 10000, "sqm"
	}
	return value, "sqm"
}
