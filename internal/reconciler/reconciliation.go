// Package reconciler drives bills from raw pages to a reconciled result.
//
// The Service coordinates the workflow of one session:
//   - page extraction through the field extractor or a vision provider
//   - accumulation of records in the session store
//   - record preprocessing before linkage
//   - matching and summary calculation
//
// Example usage:
//
//	service, err := reconciler.NewService(session.NewStore(), provider, reconciler.DefaultConfig())
//	sess, _ := service.Store().Create(ctx)
//	_, err = service.ProcessBill(ctx, sess.ID, models.RolePurchase, "purchase.txt", pages)
//	_, err = service.ProcessBill(ctx, sess.ID, models.RoleSale, "sale.txt", pages)
//	result, err := service.Reconcile(ctx, sess.ID)
package reconciler

import (
	"context"
	"fmt"
	"time"

	"bill-reconciliation-service/internal/extractor"
	"bill-reconciliation-service/internal/matcher"
	"bill-reconciliation-service/internal/models"
	"bill-reconciliation-service/internal/session"
	"bill-reconciliation-service/internal/summary"
	"bill-reconciliation-service/internal/vision"
	"bill-reconciliation-service/pkg/errors"
	"bill-reconciliation-service/pkg/logger"
)

// Config holds configuration options for the reconciliation service
type Config struct {
	// MaxConcurrentPages bounds the pages of one bill extracted at once
	MaxConcurrentPages int `mapstructure:"max_concurrent_pages"`

	// MaxFileSize is the largest bill file LoadBill accepts, in bytes
	MaxFileSize int64 `mapstructure:"max_file_size"`

	Matching      *matcher.MatchingConfig
	Preprocessing *PreprocessingConfig
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrentPages: extractor.DefaultMaxConcurrentPages,
		MaxFileSize:        16 * 1024 * 1024,
		Matching:           matcher.DefaultMatchingConfig(),
		Preprocessing:      DefaultPreprocessingConfig(),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MaxConcurrentPages <= 0 {
		return fmt.Errorf("max concurrent pages must be positive, got %d", c.MaxConcurrentPages)
	}

	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive, got %d", c.MaxFileSize)
	}

	if c.Matching != nil {
		if err := c.Matching.Validate(); err != nil {
			return fmt.Errorf("invalid matching configuration: %w", err)
		}
	}

	return nil
}

// Service orchestrates extraction, accumulation and reconciliation
type Service struct {
	store        *session.Store
	provider     vision.Provider
	engine       *matcher.MatchingEngine
	preprocessor *DataPreprocessor
	config       *Config
	logger       logger.Logger
}

// Result contains the complete outcome of one reconciliation
type Result struct {
	SessionID string `json:"session_id,omitempty"`

	*matcher.MatchResult

	Summary            *models.Summary     `json:"summary"`
	Preprocessing      *PreprocessingStats `json:"preprocessing,omitempty"`
	ProcessedAt        time.Time           `json:"processed_at"`
	ProcessingDuration time.Duration       `json:"processing_duration"`
}

// NewService creates a reconciliation service. The provider may be nil,
// in which case image pages fail with a configuration error.
func NewService(store *session.Store, provider vision.Provider, config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciler", config, err)
	}

	if store == nil {
		store = session.NewStore()
	}

	return &Service{
		store:        store,
		provider:     provider,
		engine:       matcher.NewMatchingEngine(config.Matching),
		preprocessor: NewDataPreprocessor(config.Preprocessing),
		config:       config,
		logger:       logger.GetGlobalLogger().WithComponent("reconciler"),
	}, nil
}

// Store returns the session store used by the service
func (s *Service) Store() *session.Store {
	return s.store
}

// Reconcile matches every record held by the session and stores the
// outcome on it. Both sides must hold at least one record.
func (s *Service) Reconcile(ctx context.Context, sessionID string) (*Result, error) {
	var result *Result

	err := logger.TimedOperation("reconcile", s.logger.WithField("session_id", sessionID), func() error {
		sess, err := s.store.Get(ctx, sessionID)
		if err != nil {
			return err
		}

		if len(sess.PurchaseItems) == 0 {
			return errors.ReconciliationError(errors.CodeMissingPurchases, "reconcile", nil).
				WithContext("session_id", sessionID)
		}
		if len(sess.SaleItems) == 0 {
			return errors.ReconciliationError(errors.CodeMissingSales, "reconcile", nil).
				WithContext("session_id", sessionID)
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		result = s.ReconcileRecords(sess.PurchaseItems, sess.SaleItems)
		result.SessionID = sessionID

		return s.store.SaveResult(ctx, sessionID, result.MatchResult, result.Summary)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ReconcileRecords preprocesses, matches and summarizes two record lists
// without touching any session. Empty inputs are valid.
func (s *Service) ReconcileRecords(purchases, sales []*models.Record) *Result {
	start := time.Now()

	purchases, purchaseStats := s.preprocessor.PreprocessRecords(purchases, models.RolePurchase)
	sales, saleStats := s.preprocessor.PreprocessRecords(sales, models.RoleSale)

	matches := s.engine.Match(purchases, sales)

	return &Result{
		MatchResult:        matches,
		Summary:            summary.Calculate(matches),
		Preprocessing:      purchaseStats.Merge(saleStats),
		ProcessedAt:        start,
		ProcessingDuration: time.Since(start),
	}
}

// GetConfiguration returns the current configuration
func (s *Service) GetConfiguration() *Config {
	return s.config
}

// GetMatchingConfig returns the matching configuration in use
func (s *Service) GetMatchingConfig() *matcher.MatchingConfig {
	return s.engine.GetConfiguration()
}
