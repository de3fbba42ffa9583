// Package normalizer canonicalizes item names for comparison.
package normalizer

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var nonWordPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

// NormalizeName lower-cases s, removes every character that is not a
// letter, digit, underscore or whitespace, and collapses whitespace runs.
// Two names are considered equal exactly when their normalized forms are.
func NormalizeName(s string) string {
	if s == "" {
		return ""
	}
	// A Caser keeps state and is not safe for concurrent use.
	lowered := cases.Lower(language.Und).String(s)
	stripped := nonWordPattern.ReplaceAllString(lowered, "")
	return strings.Join(strings.Fields(stripped), " ")
}

// WordSet returns the distinct words of a normalized name.
func WordSet(normalized string) map[string]struct{} {
	words := strings.Fields(normalized)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b| over the word sets of two normalized
// names. It is zero when either side has no words.
func Jaccard(a, b string) decimal.Decimal {
	setA, setB := WordSet(a), WordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return decimal.Zero
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return decimal.NewFromInt(int64(intersection)).Div(decimal.NewFromInt(int64(union)))
}
