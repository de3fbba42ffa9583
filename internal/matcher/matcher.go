package matcher

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"bill-reconciliation-service/internal/models"
	"bill-reconciliation-service/internal/normalizer"
	"bill-reconciliation-service/pkg/logger"
)

// MatchingEngine links purchase records to sale records
type MatchingEngine struct {
	Config *MatchingConfig
	w      weights
}

// MatchResult is the partition produced by one Match call. Every purchase
// lands in exactly one of Matched or UnmatchedPurchases, every sale in
// exactly one of Matched or UnmatchedSales.
type MatchResult struct {
	Matched            []*models.MatchedItem   `json:"matched_items"`
	UnmatchedPurchases []*models.UnmatchedItem `json:"unmatched_purchases"`
	UnmatchedSales     []*models.UnmatchedItem `json:"unmatched_sales"`
}

// NameTier classifies how two item names relate
type NameTier int

const (
	NameNone NameTier = iota
	NameExact
	NameSubstring
	NameSimilar
)

// String returns the string representation of NameTier
func (nt NameTier) String() string {
	switch nt {
	case NameExact:
		return "exact"
	case NameSubstring:
		return "substring"
	case NameSimilar:
		return "similar"
	default:
		return "none"
	}
}

// ScoreBreakdown explains the score of one purchase/sale pair
type ScoreBreakdown struct {
	Serial   decimal.Decimal
	HSN      decimal.Decimal
	Name     decimal.Decimal
	NameTier NameTier
	Total    decimal.Decimal
	Reasons  []string
}

// NewMatchingEngine creates a new matching engine with the specified configuration
func NewMatchingEngine(config *MatchingConfig) *MatchingEngine {
	if config == nil {
		config = DefaultMatchingConfig()
	}

	return &MatchingEngine{
		Config: config,
		w:      config.decimals(),
	}
}

// candidate caches the normalized name of a record for repeated scoring
type candidate struct {
	record *models.Record
	name   string
}

func newCandidate(record *models.Record) candidate {
	if record == nil {
		record = models.NewRecord()
	}
	return candidate{record: record, name: normalizer.NormalizeName(record.ItemName)}
}

// Match pairs purchases with sales greedily in purchase order. For each
// purchase the first sale with the strictly highest score among those not
// yet claimed is taken, provided that score reaches the threshold. Inputs
// are never modified.
func (me *MatchingEngine) Match(purchases, sales []*models.Record) *MatchResult {
	log := logger.GetGlobalLogger().WithComponent("matcher")

	result := &MatchResult{
		Matched:            make([]*models.MatchedItem, 0),
		UnmatchedPurchases: make([]*models.UnmatchedItem, 0),
		UnmatchedSales:     make([]*models.UnmatchedItem, 0),
	}

	pool := make([]candidate, 0, len(sales))
	for _, sale := range sales {
		pool = append(pool, newCandidate(sale))
	}

	for _, purchase := range purchases {
		p := newCandidate(purchase)

		bestIdx := -1
		var best ScoreBreakdown
		for i, s := range pool {
			score := me.score(p, s)
			if bestIdx == -1 || score.Total.GreaterThan(best.Total) {
				bestIdx = i
				best = score
			}
		}

		if bestIdx == -1 || best.Total.LessThan(me.w.minimum) {
			result.UnmatchedPurchases = append(result.UnmatchedPurchases,
				models.NewUnmatchedItem(p.record, models.RolePurchase))
			continue
		}

		sale := pool[bestIdx].record
		result.Matched = append(result.Matched,
			models.NewMatchedItem(p.record, sale, best.Total, best.Reasons))
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)

		log.WithFields(logger.Fields{
			"purchase": p.record.ItemName,
			"sale":     sale.ItemName,
			"score":    best.Total.String(),
		}).Debug("Linked purchase to sale")
	}

	for _, s := range pool {
		result.UnmatchedSales = append(result.UnmatchedSales,
			models.NewUnmatchedItem(s.record, models.RoleSale))
	}

	log.WithFields(logger.Fields{
		"purchases":           len(purchases),
		"sales":               len(sales),
		"matched":             len(result.Matched),
		"unmatched_purchases": len(result.UnmatchedPurchases),
		"unmatched_sales":     len(result.UnmatchedSales),
	}).Info("Matching completed")

	return result
}

// ScorePair returns the score of a single purchase/sale pair with the
// contribution of every field.
func (me *MatchingEngine) ScorePair(purchase, sale *models.Record) ScoreBreakdown {
	return me.score(newCandidate(purchase), newCandidate(sale))
}

func (me *MatchingEngine) score(purchase, sale candidate) ScoreBreakdown {
	b := ScoreBreakdown{
		Serial: decimal.Zero,
		HSN:    decimal.Zero,
		Name:   decimal.Zero,
	}

	if equalCodes(purchase.record.SerialNumber, sale.record.SerialNumber) {
		b.Serial = me.w.serial
		b.Reasons = append(b.Reasons, "Serial number match")
	}

	if equalCodes(purchase.record.HSNCode, sale.record.HSNCode) {
		b.HSN = me.w.hsn
		b.Reasons = append(b.Reasons, "HSN code match")
	}

	b.NameTier = me.nameTier(purchase.name, sale.name)
	switch b.NameTier {
	case NameExact:
		b.Name = me.w.name
		b.Reasons = append(b.Reasons, "Exact name match")
	case NameSubstring:
		b.Name = me.w.name.Mul(me.w.substring)
		b.Reasons = append(b.Reasons, "Partial name match")
	case NameSimilar:
		b.Name = me.w.name.Mul(me.w.jaccard)
		b.Reasons = append(b.Reasons, "Similar name")
	}

	b.Total = b.Serial.Add(b.HSN).Add(b.Name)
	return b
}

// nameTier compares two normalized names. Names that normalize to the
// empty string never match.
func (me *MatchingEngine) nameTier(a, b string) NameTier {
	if a == "" || b == "" {
		return NameNone
	}
	if a == b {
		return NameExact
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return NameSubstring
	}
	if normalizer.Jaccard(a, b).GreaterThan(me.w.jaccardThreshold) {
		return NameSimilar
	}
	return NameNone
}

// equalCodes reports exact equality of two present identifiers
func equalCodes(a, b string) bool {
	return a != "" && a == b
}

// ValidateConfiguration validates the matching engine configuration
func (me *MatchingEngine) ValidateConfiguration() error {
	return me.Config.Validate()
}

// GetConfiguration returns a copy of the current configuration
func (me *MatchingEngine) GetConfiguration() *MatchingConfig {
	return me.Config.Clone()
}

// UpdateConfiguration updates the matching configuration
func (me *MatchingEngine) UpdateConfiguration(config *MatchingConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	me.Config = config.Clone()
	me.w = me.Config.decimals()
	return nil
}
