// Package matcher links purchase records to sale records.
//
// Every purchase is scored against the sales that are still unclaimed,
// in input order. The best scoring sale is claimed when its score reaches
// the confidence threshold. The score is a weighted sum of three field
// comparisons:
//   - serial number equality
//   - HSN code equality
//   - item name similarity, in tiers: exact, substring, word overlap
//
// Example usage:
//
//	engine := matcher.NewMatchingEngine(matcher.DefaultMatchingConfig())
//	result := engine.Match(purchases, sales)
package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MatchingConfig holds the weights and thresholds used for linkage.
// Use the provided factory functions for common scenarios:
//   - DefaultMatchingConfig(): the standard heuristic
//   - StrictMatchingConfig(): requires serial and HSN agreement
//   - RelaxedMatchingConfig(): a serial number alone is enough
type MatchingConfig struct {
	// MinConfidenceScore is the inclusive score a pair needs to be linked
	MinConfidenceScore float64 `json:"min_confidence_score" mapstructure:"threshold"`

	// NameSubstringFactor scales the name weight when one normalized name
	// contains the other
	NameSubstringFactor float64 `json:"name_substring_factor" mapstructure:"name_substring_factor"`

	// NameJaccardFactor scales the name weight when word overlap exceeds
	// NameJaccardThreshold
	NameJaccardFactor    float64 `json:"name_jaccard_factor" mapstructure:"name_jaccard_factor"`
	NameJaccardThreshold float64 `json:"name_jaccard_threshold" mapstructure:"name_jaccard_threshold"`

	Weights MatchingWeights `json:"weights" mapstructure:"weights"`
}

// MatchingWeights defines the contribution of each field to the score
type MatchingWeights struct {
	SerialWeight float64 `json:"serial_weight" mapstructure:"serial"`
	HSNWeight    float64 `json:"hsn_weight" mapstructure:"hsn"`
	NameWeight   float64 `json:"name_weight" mapstructure:"name"`
}

// DefaultMatchingConfig returns a configuration with sensible defaults
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		MinConfidenceScore:   0.7,
		NameSubstringFactor:  0.7,
		NameJaccardFactor:    0.5,
		NameJaccardThreshold: 0.8,
		Weights: MatchingWeights{
			SerialWeight: 0.5,
			HSNWeight:    0.3,
			NameWeight:   0.2,
		},
	}
}

// StrictMatchingConfig returns a configuration for strict matching
func StrictMatchingConfig() *MatchingConfig {
	config := DefaultMatchingConfig()
	config.MinConfidenceScore = 0.8
	return config
}

// RelaxedMatchingConfig returns a configuration for relaxed matching
func RelaxedMatchingConfig() *MatchingConfig {
	config := DefaultMatchingConfig()
	config.MinConfidenceScore = 0.5
	config.NameJaccardThreshold = 0.6
	return config
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if mc.MinConfidenceScore <= 0.0 || mc.MinConfidenceScore > 1.0 {
		return fmt.Errorf("minimum confidence score must be in (0.0, 1.0]: %f", mc.MinConfidenceScore)
	}

	if mc.NameSubstringFactor < 0.0 || mc.NameSubstringFactor > 1.0 {
		return fmt.Errorf("name substring factor must be between 0.0 and 1.0: %f", mc.NameSubstringFactor)
	}

	if mc.NameJaccardFactor < 0.0 || mc.NameJaccardFactor > 1.0 {
		return fmt.Errorf("name jaccard factor must be between 0.0 and 1.0: %f", mc.NameJaccardFactor)
	}

	if mc.NameJaccardThreshold < 0.0 || mc.NameJaccardThreshold >= 1.0 {
		return fmt.Errorf("name jaccard threshold must be in [0.0, 1.0): %f", mc.NameJaccardThreshold)
	}

	if err := mc.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}

	return nil
}

// Validate checks if the matching weights are valid
func (mw *MatchingWeights) Validate() error {
	if mw.SerialWeight < 0.0 || mw.SerialWeight > 1.0 {
		return fmt.Errorf("serial weight must be between 0.0 and 1.0: %f", mw.SerialWeight)
	}

	if mw.HSNWeight < 0.0 || mw.HSNWeight > 1.0 {
		return fmt.Errorf("hsn weight must be between 0.0 and 1.0: %f", mw.HSNWeight)
	}

	if mw.NameWeight < 0.0 || mw.NameWeight > 1.0 {
		return fmt.Errorf("name weight must be between 0.0 and 1.0: %f", mw.NameWeight)
	}

	// Weights should sum to approximately 1.0 (allow some tolerance)
	total := mw.SerialWeight + mw.HSNWeight + mw.NameWeight
	if total < 0.99 || total > 1.01 {
		return fmt.Errorf("weights should sum to 1.0, got %f", total)
	}

	return nil
}

// Clone creates a deep copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}

	clone := *mc
	return &clone
}

// weights holds the configuration converted to exact decimals
type weights struct {
	serial, hsn, name         decimal.Decimal
	substring, jaccard        decimal.Decimal
	jaccardThreshold, minimum decimal.Decimal
}

func (mc *MatchingConfig) decimals() weights {
	return weights{
		serial:           decimal.NewFromFloat(mc.Weights.SerialWeight),
		hsn:              decimal.NewFromFloat(mc.Weights.HSNWeight),
		name:             decimal.NewFromFloat(mc.Weights.NameWeight),
		substring:        decimal.NewFromFloat(mc.NameSubstringFactor),
		jaccard:          decimal.NewFromFloat(mc.NameJaccardFactor),
		jaccardThreshold: decimal.NewFromFloat(mc.NameJaccardThreshold),
		minimum:          decimal.NewFromFloat(mc.MinConfidenceScore),
	}
}
