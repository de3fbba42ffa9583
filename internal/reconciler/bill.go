package reconciler

import (
	"context"

	"bill-reconciliation-service/internal/extractor"
	"bill-reconciliation-service/internal/models"
	"bill-reconciliation-service/pkg/errors"
	"bill-reconciliation-service/pkg/logger"
)

// BillResult describes the outcome of extracting one bill file
type BillResult struct {
	SessionID  string               `json:"session_id,omitempty"`
	Role       models.Role          `json:"role"`
	File       string               `json:"file"`
	Pages      int                  `json:"pages"`
	Records    []*models.Record     `json:"items"`
	TotalItems int                  `json:"total_items"`
	Failures   *errors.ErrorSummary `json:"failures,omitempty"`
}

// HasFailures reports whether any page of the bill could not be read
func (br *BillResult) HasFailures() bool {
	return br.Failures != nil && br.Failures.Total > 0
}

// ExtractBill reads the records of one bill. Pages are extracted
// concurrently and joined in page order. Pages that fail are reported in
// the result and do not discard the records of the other pages.
func (s *Service) ExtractBill(ctx context.Context, role models.Role, file string, pages []extractor.Page) (*BillResult, error) {
	if !role.IsValid() {
		return nil, errors.ValidationError(errors.CodeInvalidRole, "role", role, nil)
	}

	log := s.logger.WithFields(logger.Fields{"role": role, "file": file})

	records, failures, err := extractor.ExtractPages(ctx, pages, s.pageFunc(role), extractor.PageOptions{
		Bill:          file,
		MaxConcurrent: s.config.MaxConcurrentPages,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}

	for _, r := range records {
		r.SourceFile = file
	}

	result := &BillResult{
		Role:       role,
		File:       file,
		Pages:      len(pages),
		Records:    records,
		TotalItems: len(records),
	}
	if len(failures) > 0 {
		result.Failures = errors.NewErrorSummary(failures)
	}

	log.WithFields(logger.Fields{
		"pages":   len(pages),
		"records": len(records),
		"failed":  len(failures),
	}).Info("Bill extracted")

	return result, nil
}

// ProcessBill extracts one bill and appends its records to the session.
// TotalItems in the result counts every record the session now holds for
// the role.
func (s *Service) ProcessBill(ctx context.Context, sessionID string, role models.Role, file string, pages []extractor.Page) (*BillResult, error) {
	if _, err := s.store.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	result, err := s.ExtractBill(ctx, role, file, pages)
	if err != nil {
		return nil, err
	}

	total, err := s.store.AddRecords(ctx, sessionID, role, file, result.Records)
	if err != nil {
		return nil, err
	}

	result.SessionID = sessionID
	result.TotalItems = total
	return result, nil
}

// pageFunc routes text pages to the field extractor and image pages
// through the vision provider first.
func (s *Service) pageFunc(role models.Role) extractor.PageFunc {
	return func(ctx context.Context, page extractor.Page) ([]*models.Record, error) {
		if !page.IsImage() {
			return extractor.ExtractText(page.Text, role)
		}

		if s.provider == nil {
			return nil, errors.ConfigurationError(errors.CodeMissingConfig, "vision.api_key", "", nil).
				WithSuggestion("set BILLRECON_VISION_API_KEY to read image bills")
		}

		raw, err := s.provider.ExtractPage(ctx, page.Image, page.MIMEType)
		if err != nil {
			return nil, err
		}

		return extractor.ExtractText(raw, role)
	}
}
