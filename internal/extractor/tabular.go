package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"bill-reconciliation-service/internal/models"
)

var (
	headerKeywords    = []string{"item", "description", "particular", "product"}
	cellSeparator     = regexp.MustCompile(`\s{2,}|\t`)
	codeTokenPattern  = regexp.MustCompile(`^[A-Z0-9-]+$`)
	hsnTokenPattern   = regexp.MustCompile(`^\d{4,8}$`)
	qtyTokenPattern   = regexp.MustCompile(`^\d{1,3}$`)
	digitsOnlyPattern = regexp.MustCompile(`^\d+$`)
)

const (
	maxSerialTokenLength = 15
	maxTableQuantity     = 999
)

// candidate accumulates fields for one record while a strategy runs.
type candidate struct {
	record *models.Record
	role   models.Role
	hasQty bool
}

func newCandidate(role models.Role) *candidate {
	return &candidate{record: models.NewRecord(), role: role}
}

func (c *candidate) valid() bool {
	return c.record.IsValid(c.role)
}

// tokenRule classifies one table cell. Returning true ends the cascade
// for that cell.
type tokenRule struct {
	name  string
	apply func(c *candidate, token string) bool
}

// tableRules run in order on every cell of a data row.
var tableRules = []tokenRule{
	{
		name: "serial",
		apply: func(c *candidate, token string) bool {
			if c.record.SerialNumber == "" && len(token) <= maxSerialTokenLength && codeTokenPattern.MatchString(token) {
				c.record.SerialNumber = token
			}
			return false
		},
	},
	{
		name: "hsn",
		apply: func(c *candidate, token string) bool {
			if hsnTokenPattern.MatchString(token) {
				c.record.HSNCode = token
			}
			return false
		},
	},
	{
		name: "quantity",
		apply: func(c *candidate, token string) bool {
			if c.hasQty || !qtyTokenPattern.MatchString(token) {
				return false
			}
			qty, err := strconv.Atoi(token)
			if err != nil || qty < models.MinQuantity || qty > maxTableQuantity {
				return false
			}
			c.record.Quantity = qty
			c.hasQty = true
			return true
		},
	},
	{
		name: "price",
		apply: func(c *candidate, token string) bool {
			price, ok := ExtractPrice(token)
			if !ok {
				return false
			}
			c.record.SetPrice(c.role, price)
			return true
		},
	},
	{
		name: "name",
		apply: func(c *candidate, token string) bool {
			if c.record.ItemName == "" && len(token) > 3 && !digitsOnlyPattern.MatchString(token) && !codeTokenPattern.MatchString(token) {
				c.record.ItemName = token
			}
			return true
		},
	},
}

func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	for _, keyword := range headerKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// parseTable reads rows after the first header-looking line. Each
// non-empty row yields at most one record.
func parseTable(lines []string, role models.Role) []*models.Record {
	var records []*models.Record
	headerFound := false

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if !headerFound {
			headerFound = isHeaderLine(line)
			continue
		}

		c := parseTableRow(line, role)
		if c.valid() {
			records = append(records, c.record)
		}
	}

	return records
}

func parseTableRow(line string, role models.Role) *candidate {
	c := newCandidate(role)

	for _, cell := range cellSeparator.Split(line, -1) {
		token := strings.TrimSpace(cell)
		if token == "" {
			continue
		}
		for _, rule := range tableRules {
			if rule.apply(c, token) {
				break
			}
		}
	}

	return c
}
