package reconciler

import (
	"fmt"
	"strings"

	"bill-reconciliation-service/internal/models"
	"bill-reconciliation-service/internal/normalizer"
)

// DataPreprocessor normalizes session records before linkage
type DataPreprocessor struct {
	config *PreprocessingConfig
}

// PreprocessingConfig contains configuration for record preprocessing
type PreprocessingConfig struct {
	// String normalization options
	TrimWhitespace   bool `mapstructure:"trim_whitespace"`
	UppercaseSerials bool `mapstructure:"uppercase_serials"`

	// Validation options
	ClampQuantities bool `mapstructure:"clamp_quantities"`
	DropInvalid     bool `mapstructure:"drop_invalid"`

	// Data cleaning options
	RemoveDuplicates bool `mapstructure:"remove_duplicates"`
}

// DefaultPreprocessingConfig returns a default preprocessing configuration.
// Duplicates are kept since a bill may list the same item twice.
func DefaultPreprocessingConfig() *PreprocessingConfig {
	return &PreprocessingConfig{
		TrimWhitespace:   true,
		UppercaseSerials: true,
		ClampQuantities:  true,
		DropInvalid:      true,
		RemoveDuplicates: false,
	}
}

// PreprocessingStats contains statistics about preprocessing operations
type PreprocessingStats struct {
	TotalRecordsProcessed int `json:"total_records_processed"`
	RecordsFixed          int `json:"records_fixed"`
	RecordsRemoved        int `json:"records_removed"`
	DuplicatesRemoved     int `json:"duplicates_removed"`
}

// Merge returns the sum of two statistics
func (ps *PreprocessingStats) Merge(other *PreprocessingStats) *PreprocessingStats {
	merged := *ps
	if other != nil {
		merged.TotalRecordsProcessed += other.TotalRecordsProcessed
		merged.RecordsFixed += other.RecordsFixed
		merged.RecordsRemoved += other.RecordsRemoved
		merged.DuplicatesRemoved += other.DuplicatesRemoved
	}
	return &merged
}

// NewDataPreprocessor creates a new data preprocessor
func NewDataPreprocessor(config *PreprocessingConfig) *DataPreprocessor {
	if config == nil {
		config = DefaultPreprocessingConfig()
	}

	return &DataPreprocessor{
		config: config,
	}
}

// PreprocessRecords returns normalized copies of the records of one role.
// The input records are never modified and their order is kept.
func (dp *DataPreprocessor) PreprocessRecords(records []*models.Record, role models.Role) ([]*models.Record, *PreprocessingStats) {
	stats := &PreprocessingStats{TotalRecordsProcessed: len(records)}
	processed := make([]*models.Record, 0, len(records))
	seen := make(map[string]bool)

	for _, r := range records {
		if r == nil {
			stats.RecordsRemoved++
			continue
		}

		c := r.Clone()
		changed := dp.normalize(c)

		if dp.config.DropInvalid && !c.IsValid(role) {
			stats.RecordsRemoved++
			continue
		}

		if dp.config.RemoveDuplicates {
			key := duplicateKey(c, role)
			if seen[key] {
				stats.DuplicatesRemoved++
				continue
			}
			seen[key] = true
		}

		if changed {
			stats.RecordsFixed++
		}
		processed = append(processed, c)
	}

	return processed, stats
}

// normalize cleans r in place and reports whether anything changed
func (dp *DataPreprocessor) normalize(r *models.Record) bool {
	before := *r

	if dp.config.TrimWhitespace {
		r.SerialNumber = strings.TrimSpace(r.SerialNumber)
		r.HSNCode = strings.TrimSpace(r.HSNCode)
		r.ItemName = strings.Join(strings.Fields(r.ItemName), " ")
	}

	if dp.config.UppercaseSerials {
		r.SerialNumber = strings.ToUpper(r.SerialNumber)
	}

	if dp.config.ClampQuantities {
		r.Quantity = models.ClampQuantity(r.Quantity)
	}

	return before.SerialNumber != r.SerialNumber ||
		before.HSNCode != r.HSNCode ||
		before.ItemName != r.ItemName ||
		before.Quantity != r.Quantity
}

func duplicateKey(r *models.Record, role models.Role) string {
	return fmt.Sprintf("%s_%s_%s_%d_%s",
		r.SerialNumber,
		r.HSNCode,
		normalizer.NormalizeName(r.ItemName),
		r.Quantity,
		r.PriceOrZero(role).String())
}
