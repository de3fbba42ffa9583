package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"bill-reconciliation-service/pkg/errors"
)

// Role identifies which side of a trade a bill belongs to
type Role string

const (
	// RolePurchase marks records taken from purchase bills
	RolePurchase Role = "purchase"
	// RoleSale marks records taken from sale bills
	RoleSale Role = "sale"
)

// String returns the string representation of Role
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the known roles
func (r Role) IsValid() bool {
	return r == RolePurchase || r == RoleSale
}

// Opposite returns the other side of the trade
func (r Role) Opposite() Role {
	if r == RolePurchase {
		return RoleSale
	}
	return RolePurchase
}

// ParseRole converts user input into a Role. Unknown values are rejected,
// never coerced.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.IsValid() {
		return "", errors.ValidationError(errors.CodeInvalidRole, "role", value, nil)
	}
	return role, nil
}

// Quantity bounds for a single line item
const (
	MinQuantity = 1
	MaxQuantity = 99999
)

// Placeholders used when neither side of a result carries an identifier
const (
	PlaceholderCode = "N/A"
	PlaceholderName = "Unknown"
)

// ClampQuantity returns q when it lies within the accepted range, else 1.
func ClampQuantity(q int) int {
	if q < MinQuantity || q > MaxQuantity {
		return MinQuantity
	}
	return q
}

// Record is one line item extracted from a bill. Empty identifier strings
// mean the field is absent. A record built for a role carries only that
// role's price.
type Record struct {
	SerialNumber  string           `json:"serial_number,omitempty"`
	HSNCode       string           `json:"hsn_code,omitempty"`
	ItemName      string           `json:"item_name,omitempty"`
	Quantity      int              `json:"quantity"`
	PurchasePrice *decimal.Decimal `json:"purchase_price,omitempty"`
	SalePrice     *decimal.Decimal `json:"sale_price,omitempty"`
	SourceFile    string           `json:"source_file,omitempty"`
}

// NewRecord creates an empty record with the default quantity
func NewRecord() *Record {
	return &Record{Quantity: MinQuantity}
}

// Price returns the price for the given role, or nil when absent
func (r *Record) Price(role Role) *decimal.Decimal {
	if role == RoleSale {
		return r.SalePrice
	}
	return r.PurchasePrice
}

// SetPrice stores a price on the field belonging to role
func (r *Record) SetPrice(role Role, price decimal.Decimal) {
	p := price
	if role == RoleSale {
		r.SalePrice = &p
		return
	}
	r.PurchasePrice = &p
}

// PriceOrZero returns the role price, treating an absent price as zero
func (r *Record) PriceOrZero(role Role) decimal.Decimal {
	if p := r.Price(role); p != nil {
		return *p
	}
	return decimal.Zero
}

// HasIdentifier reports whether serial, HSN or name is present
func (r *Record) HasIdentifier() bool {
	return present(r.SerialNumber) || present(r.HSNCode) || present(r.ItemName)
}

// IsValid reports whether the record may leave the extractor for the
// given role: some identifier and the role price must be present.
func (r *Record) IsValid(role Role) bool {
	return r.HasIdentifier() && r.Price(role) != nil
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	c := *r
	if r.PurchasePrice != nil {
		p := *r.PurchasePrice
		c.PurchasePrice = &p
	}
	if r.SalePrice != nil {
		p := *r.SalePrice
		c.SalePrice = &p
	}
	return &c
}

// String returns a string representation of the Record
func (r *Record) String() string {
	price := "-"
	if r.PurchasePrice != nil {
		price = "purchase " + r.PurchasePrice.String()
	} else if r.SalePrice != nil {
		price = "sale " + r.SalePrice.String()
	}
	return fmt.Sprintf("Record{SN: %s, HSN: %s, Name: %s, Qty: %d, Price: %s}",
		r.SerialNumber, r.HSNCode, r.ItemName, r.Quantity, price)
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

func firstPresent(placeholder string, values ...string) string {
	for _, v := range values {
		if present(v) {
			return v
		}
	}
	return placeholder
}

// ItemStatus is the outcome of linkage for a result row
type ItemStatus string

const (
	StatusMatched           ItemStatus = "matched"
	StatusUnmatchedPurchase ItemStatus = "unmatched_purchase"
	StatusUnmatchedSale     ItemStatus = "unmatched_sale"
)

var hundred = decimal.NewFromInt(100)

// MatchedItem is a purchase linked to a sale together with the financial
// delta between them.
type MatchedItem struct {
	SerialNumber         string          `json:"serial_number"`
	ItemName             string          `json:"item_name"`
	HSNCode              string          `json:"hsn_code"`
	Quantity             int             `json:"quantity"`
	PurchaseQuantity     int             `json:"purchase_quantity"`
	SaleQuantity         int             `json:"sale_quantity"`
	QuantityMismatch     bool            `json:"quantity_mismatch"`
	PurchasePrice        decimal.Decimal `json:"purchase_price"`
	SalePrice            decimal.Decimal `json:"sale_price"`
	ProfitLoss           decimal.Decimal `json:"profit_loss"`
	ProfitLossPercentage decimal.Decimal `json:"profit_loss_percentage"`
	Score                decimal.Decimal `json:"match_score"`
	Reasons              []string        `json:"match_reasons,omitempty"`
	Status               ItemStatus      `json:"status"`
}

// NewMatchedItem builds the result row for a linked pair. Identifiers are
// taken from the purchase first, then the sale, then a placeholder.
func NewMatchedItem(purchase, sale *Record, score decimal.Decimal, reasons []string) *MatchedItem {
	purchasePrice := purchase.PriceOrZero(RolePurchase)
	salePrice := sale.PriceOrZero(RoleSale)
	profit := salePrice.Sub(purchasePrice)

	quantity := purchase.Quantity
	if sale.Quantity != 0 {
		quantity = sale.Quantity
	}

	return &MatchedItem{
		SerialNumber:         firstPresent(PlaceholderCode, purchase.SerialNumber, sale.SerialNumber),
		ItemName:             firstPresent(PlaceholderName, purchase.ItemName, sale.ItemName),
		HSNCode:              firstPresent(PlaceholderCode, purchase.HSNCode, sale.HSNCode),
		Quantity:             quantity,
		PurchaseQuantity:     purchase.Quantity,
		SaleQuantity:         sale.Quantity,
		QuantityMismatch:     purchase.Quantity != sale.Quantity,
		PurchasePrice:        purchasePrice,
		SalePrice:            salePrice,
		ProfitLoss:           profit,
		ProfitLossPercentage: Percentage(profit, purchasePrice),
		Score:                score,
		Reasons:              reasons,
		Status:               StatusMatched,
	}
}

// IsProfit reports a strictly positive delta
func (m *MatchedItem) IsProfit() bool {
	return m.ProfitLoss.IsPositive()
}

// IsLoss reports a strictly negative delta
func (m *MatchedItem) IsLoss() bool {
	return m.ProfitLoss.IsNegative()
}

// UnmatchedItem is a record that found no counterpart. The price of the
// missing side and the profit fields are always zero.
type UnmatchedItem struct {
	SerialNumber         string          `json:"serial_number"`
	ItemName             string          `json:"item_name"`
	HSNCode              string          `json:"hsn_code"`
	Quantity             int             `json:"quantity"`
	PurchasePrice        decimal.Decimal `json:"purchase_price"`
	SalePrice            decimal.Decimal `json:"sale_price"`
	ProfitLoss           decimal.Decimal `json:"profit_loss"`
	ProfitLossPercentage decimal.Decimal `json:"profit_loss_percentage"`
	Status               ItemStatus      `json:"status"`
}

// NewUnmatchedItem builds the result row for a record of the given role
func NewUnmatchedItem(record *Record, role Role) *UnmatchedItem {
	item := &UnmatchedItem{
		SerialNumber:         firstPresent(PlaceholderCode, record.SerialNumber),
		ItemName:             firstPresent(PlaceholderName, record.ItemName),
		HSNCode:              firstPresent(PlaceholderCode, record.HSNCode),
		Quantity:             ClampQuantity(record.Quantity),
		PurchasePrice:        decimal.Zero,
		SalePrice:            decimal.Zero,
		ProfitLoss:           decimal.Zero,
		ProfitLossPercentage: decimal.Zero,
	}

	if role == RoleSale {
		item.SalePrice = record.PriceOrZero(RoleSale)
		item.Status = StatusUnmatchedSale
	} else {
		item.PurchasePrice = record.PriceOrZero(RolePurchase)
		item.Status = StatusUnmatchedPurchase
	}
	return item
}

// Price returns the price of the side that is present
func (u *UnmatchedItem) Price() decimal.Decimal {
	if u.Status == StatusUnmatchedSale {
		return u.SalePrice
	}
	return u.PurchasePrice
}

// Summary aggregates a reconciliation outcome
type Summary struct {
	TotalMatchedItems           int             `json:"total_matched_items"`
	TotalUnmatchedPurchases     int             `json:"total_unmatched_purchases"`
	TotalUnmatchedSales         int             `json:"total_unmatched_sales"`
	ProfitItemsCount            int             `json:"profit_items_count"`
	LossItemsCount              int             `json:"loss_items_count"`
	TotalPurchaseValue          decimal.Decimal `json:"total_purchase_value"`
	TotalSaleValue              decimal.Decimal `json:"total_sale_value"`
	TotalProfitLoss             decimal.Decimal `json:"total_profit_loss"`
	TotalProfitLossPercentage   decimal.Decimal `json:"total_profit_loss_percentage"`
	TotalUnmatchedPurchaseValue decimal.Decimal `json:"total_unmatched_purchase_value"`
	TotalUnmatchedSaleValue     decimal.Decimal `json:"total_unmatched_sale_value"`
}

// Percentage returns part/whole*100, or zero when whole is not positive
func Percentage(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole)
}
