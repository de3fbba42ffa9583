package extractor

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const amountPattern = `(\d+(?:,\d+)*(?:\.\d{2})?)`

var (
	minBarePrice = decimal.RequireFromString("0.01")
	maxBarePrice = decimal.NewFromInt(10000000)
)

// priceRule is one way of locating an amount inside a text fragment.
type priceRule struct {
	name    string
	pattern *regexp.Regexp
	bounded bool
}

// priceRules are tried in order. The first rule whose pattern matches
// decides the outcome for the fragment.
var priceRules = []priceRule{
	{name: "currency", pattern: regexp.MustCompile(`(?i)(?:\brs\.?|₹|\binr)\s*` + amountPattern)},
	{name: "label", pattern: regexp.MustCompile(`(?i)\b(?:amount|price|rate|value)\s*:?\s*(?:rs\.?|₹)?\s*` + amountPattern)},
	{name: "total", pattern: regexp.MustCompile(`(?i)\b(?:sub\s*total|total)\s*:?\s*(?:rs\.?|₹)?\s*` + amountPattern)},
	{name: "bare", pattern: regexp.MustCompile(`\b` + amountPattern + `\b`), bounded: true},
}

// ExtractPrice finds the first amount in text. A zero amount, or a bare
// number outside [0.01, 10,000,000], yields no price.
func ExtractPrice(text string) (decimal.Decimal, bool) {
	for _, rule := range priceRules {
		match := rule.pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}

		value, err := decimal.NewFromString(strings.ReplaceAll(match[1], ",", ""))
		if err != nil {
			continue
		}
		if rule.bounded && (value.LessThan(minBarePrice) || value.GreaterThan(maxBarePrice)) {
			return decimal.Zero, false
		}
		if value.IsZero() {
			return decimal.Zero, false
		}
		return value, true
	}
	return decimal.Zero, false
}
