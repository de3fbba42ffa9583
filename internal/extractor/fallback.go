package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"bill-reconciliation-service/internal/models"
)

var (
	// Labelled serial patterns, tried before the generic code pattern.
	serialLabelPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:serial\s*(?:no|number)\b\.?|sr\.?\s*no\b\.?|s\.?\s*no\b\.?|s\.?n\b\.?)\s*:?\s*([A-Z0-9-]+)`),
		regexp.MustCompile(`(?i)\b(?:item|product)\s*code\s*:?\s*([A-Z0-9-]+)`),
	}
	genericSerialPattern = regexp.MustCompile(`(?i)\b([A-Z]{2,}\d{2,}|\d{2,}[A-Z]{2,})\b`)

	hsnPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bhsn(?:\s*/\s*sac)?(?:\s*code)?\s*[:\-]?\s*(\d{4,8})\b`),
		regexp.MustCompile(`(?i)\bhsn[:/\s]*(\d{4,8})\b`),
	}

	quantityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:qty|quantity|units?|pcs?|pieces?|nos)\b\.?\s*:?\s*(\d+)`),
		regexp.MustCompile(`(?i)\b(\d+)\s*(?:qty|units?|pcs?|pieces?|nos)\b`),
	}

	leadingLabelPattern = regexp.MustCompile(`(?i)^(?:item\s*name|item|product\s*name|product|description|particulars?|name)\b\s*[:\-]?\s*`)

	// Fragments removed from a line before what remains is taken as a name.
	nameNoisePatterns = []*regexp.Regexp{
		serialLabelPatterns[0],
		serialLabelPatterns[1],
		hsnPatterns[0],
		quantityPatterns[0],
		quantityPatterns[1],
		priceRules[1].pattern,
		priceRules[2].pattern,
		priceRules[0].pattern,
	}
)

const minNameLength = 3

// lineRule pulls one field out of a line. Fields already set on the
// candidate are never overwritten. The price rule sees the whole line, so
// the first number of a block may be a labelled code or count.
type lineRule struct {
	name  string
	apply func(c *candidate, line string)
}

// lineRules run in this order on every non-blank line.
var lineRules = []lineRule{
	{
		name: "serial",
		apply: func(c *candidate, line string) {
			if c.record.SerialNumber == "" {
				c.record.SerialNumber = extractSerial(line)
			}
		},
	},
	{
		name: "hsn",
		apply: func(c *candidate, line string) {
			if c.record.HSNCode == "" {
				c.record.HSNCode = extractHSN(line)
			}
		},
	},
	{
		name: "name",
		apply: func(c *candidate, line string) {
			if c.record.ItemName == "" {
				c.record.ItemName = extractItemName(line)
			}
		},
	},
	{
		name: "quantity",
		apply: func(c *candidate, line string) {
			if c.hasQty {
				return
			}
			if qty, ok := extractQuantity(line); ok {
				c.record.Quantity = qty
				c.hasQty = true
			}
		},
	},
	{
		name: "price",
		apply: func(c *candidate, line string) {
			if c.record.Price(c.role) != nil {
				return
			}
			if price, ok := ExtractPrice(line); ok {
				c.record.SetPrice(c.role, price)
			}
		},
	},
}

// parseLines treats blank lines as record separators and keeps the first
// occurrence of every field within a record.
func parseLines(lines []string, role models.Role) []*models.Record {
	var records []*models.Record
	c := newCandidate(role)

	flush := func() {
		if c.valid() {
			records = append(records, c.record)
		}
		c = newCandidate(role)
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			flush()
			continue
		}
		for _, rule := range lineRules {
			rule.apply(c, line)
		}
	}
	flush()

	return records
}

func extractSerial(line string) string {
	for _, pattern := range serialLabelPatterns {
		if match := pattern.FindStringSubmatch(line); match != nil {
			return strings.ToUpper(match[1])
		}
	}
	if match := genericSerialPattern.FindStringSubmatch(line); match != nil {
		return strings.ToUpper(match[1])
	}
	return ""
}

func extractHSN(line string) string {
	for _, pattern := range hsnPatterns {
		if match := pattern.FindStringSubmatch(line); match != nil {
			return match[1]
		}
	}
	return ""
}

func extractQuantity(line string) (int, bool) {
	for _, pattern := range quantityPatterns {
		match := pattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		qty, err := strconv.Atoi(match[1])
		if err != nil || qty < models.MinQuantity || qty > models.MaxQuantity {
			continue
		}
		return qty, true
	}
	return 0, false
}

func extractItemName(line string) string {
	text := leadingLabelPattern.ReplaceAllString(line, "")
	for _, pattern := range nameNoisePatterns {
		text = pattern.ReplaceAllString(text, " ")
	}
	text = strings.Join(strings.Fields(text), " ")
	text = strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
	})

	if len(text) < minNameLength || !strings.ContainsFunc(text, unicode.IsLetter) {
		return ""
	}
	return text
}
