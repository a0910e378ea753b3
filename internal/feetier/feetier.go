// Package feetier classifies and formats pool fee rates.
//
// Rates use the on-chain convention where 1e6 equals 100%: the standard
// tiers 100, 500, 2500 and 10000 correspond to 0.01%, 0.05%, 0.25% and 1%.
package feetier

import (
	"fmt"
	"strconv"
	"strings"
)

// Standard fee tiers.
const (
	TierUltraLow = 100
	TierLow      = 500
	TierMedium   = 2500
	TierHigh     = 10000
)

const rateScale = 1_000_000

// Format renders a fee rate as a percentage, e.g. 2500 -> "0.25%".
func Format(rate int) string {
	if rate <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", float64(rate)/10000)
}

// Category names the tier band a fee rate falls into.
func Category(rate int) string {
	switch {
	case rate <= 0:
		return "Unknown"
	case rate == TierUltraLow, rate < TierLow:
		return "Ultra Low"
	case rate == TierLow, rate < TierMedium:
		return "Low"
	case rate == TierMedium, rate < TierHigh:
		return "Medium"
	default:
		return "High"
	}
}

// Describe returns the percentage with its category and typical pair class,
// e.g. "0.25% (Medium - Standard)".
func Describe(rate int) string {
	category := Category(rate)
	percentage := Format(rate)

	class := map[string]string{
		"Ultra Low": "Stablecoins",
		"Low":       "Correlated",
		"Medium":    "Standard",
		"High":      "Exotic",
	}[category]

	if class == "" {
		return fmt.Sprintf("%s (%s)", percentage, category)
	}
	return fmt.Sprintf("%s (%s - %s)", percentage, category, class)
}

// FeesFromVolume estimates 24h fees in USD from traded volume and the
// pool fee rate.
func FeesFromVolume(volume24h float64, rate int) float64 {
	if rate <= 0 || volume24h <= 0 {
		return 0
	}
	return volume24h * float64(rate) / rateScale
}

// ParsePercent converts a percentage string such as "0.05%" into a fee
// rate (500). Returns 0 when the input does not parse.
func ParsePercent(s string) int {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0
	}
	pct, err := strconv.ParseFloat(s, 64)
	if err != nil || pct <= 0 {
		return 0
	}
	return int(pct*10000 + 0.5)
}

// Normalize maps source-specific fee encodings onto the rate convention.
// Values below 100 are treated as bare percentages (0.05 -> 500).
func Normalize(raw float64) int {
	if raw <= 0 {
		return 0
	}
	if raw < 100 {
		return int(raw*10000 + 0.5)
	}
	return int(raw + 0.5)
}
