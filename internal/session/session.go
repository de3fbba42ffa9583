// Package session accumulates extracted bill records between uploads and
// keeps the last reconciliation outcome.
package session

import (
	"time"

	"github.com/shopspring/decimal"

	"bill-reconciliation-service/internal/matcher"
	"bill-reconciliation-service/internal/models"
)

// Status is the lifecycle stage of a session
type Status string

const (
	// StatusCreated is a session without any bill
	StatusCreated Status = "created"
	// StatusProcessing is a session that received at least one bill
	StatusProcessing Status = "processing"
	// StatusCompleted is a session that has been reconciled
	StatusCompleted Status = "completed"
)

// Session holds the records of one reconciliation workspace
type Session struct {
	ID            string               `json:"session_id"`
	Status        Status               `json:"status"`
	PurchaseItems []*models.Record     `json:"purchase_items"`
	SaleItems     []*models.Record     `json:"sale_items"`
	PurchaseFiles []string             `json:"purchase_files"`
	SaleFiles     []string             `json:"sale_files"`
	Result        *matcher.MatchResult `json:"matched_results,omitempty"`
	Summary       *models.Summary      `json:"summary,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// Items returns the records for the given role
func (s *Session) Items(role models.Role) []*models.Record {
	if role == models.RoleSale {
		return s.SaleItems
	}
	return s.PurchaseItems
}

// Files returns the bill file names received for the given role
func (s *Session) Files(role models.Role) []string {
	if role == models.RoleSale {
		return s.SaleFiles
	}
	return s.PurchaseFiles
}

func (s *Session) setItems(role models.Role, items []*models.Record) {
	if role == models.RoleSale {
		s.SaleItems = items
		return
	}
	s.PurchaseItems = items
}

func (s *Session) addFile(role models.Role, file string) {
	if role == models.RoleSale {
		s.SaleFiles = append(s.SaleFiles, file)
		return
	}
	s.PurchaseFiles = append(s.PurchaseFiles, file)
}

// clone returns a copy that shares no record or slice storage with s.
// The match result and summary are never mutated after being stored and
// are shared.
func (s *Session) clone() *Session {
	c := *s
	c.PurchaseItems = cloneRecords(s.PurchaseItems)
	c.SaleItems = cloneRecords(s.SaleItems)
	c.PurchaseFiles = append([]string{}, s.PurchaseFiles...)
	c.SaleFiles = append([]string{}, s.SaleFiles...)
	return &c
}

func cloneRecords(records []*models.Record) []*models.Record {
	out := make([]*models.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// ItemUpdate lists the editable fields of a stored record. Nil fields are
// left untouched.
type ItemUpdate struct {
	SerialNumber *string
	ItemName     *string
	HSNCode      *string
	Quantity     *int
	Price        *decimal.Decimal
}

func (u ItemUpdate) apply(r *models.Record, role models.Role) {
	if u.SerialNumber != nil {
		r.SerialNumber = *u.SerialNumber
	}
	if u.ItemName != nil {
		r.ItemName = *u.ItemName
	}
	if u.HSNCode != nil {
		r.HSNCode = *u.HSNCode
	}
	if u.Quantity != nil {
		r.Quantity = models.ClampQuantity(*u.Quantity)
	}
	if u.Price != nil {
		r.SetPrice(role, *u.Price)
	}
}
