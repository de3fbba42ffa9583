package reconciler

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"bill-reconciliation-service/internal/extractor"
	"bill-reconciliation-service/internal/vision"
	"bill-reconciliation-service/pkg/errors"
	"bill-reconciliation-service/pkg/logger"
)

// pageBreak separates pages in text exported from PDF bills
const pageBreak = "\f"

// LoadBill reads a bill file into pages. Images and PDFs become a single
// page for the vision provider. Any other file must be UTF-8 text; it is
// split into pages on form feeds.
func LoadBill(path string, maxSize int64) ([]extractor.Page, error) {
	log := logger.GetGlobalLogger().WithComponent("loader").WithField("file_path", path)
	log.Debug("Opening bill file")

	info, err := os.Stat(path)
	if err != nil {
		return nil, fileError(path, err)
	}
	if info.IsDir() {
		return nil, errors.FileError(errors.CodeUnsupportedFile, path, fmt.Errorf("is a directory"))
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, errors.FileError(errors.CodeFileTooLarge, path, nil).
			WithContext("size", info.Size()).
			WithContext("max_size", maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fileError(path, err)
	}

	if mimeType, ok := vision.MIMETypeFor(path); ok {
		log.WithField("mime", mimeType).Debug("Loaded image bill")
		return []extractor.Page{{Index: 0, Image: data, MIMEType: mimeType}}, nil
	}

	if !utf8.Valid(data) {
		return nil, errors.FileError(errors.CodeUnsupportedFile, path, fmt.Errorf("invalid UTF-8 encoding detected")).
			WithSuggestion("save the bill as UTF-8 text or pass the image instead")
	}

	parts := strings.Split(string(data), pageBreak)
	pages := make([]extractor.Page, 0, len(parts))
	for i, text := range parts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, extractor.Page{Index: i, Text: text})
	}

	log.WithField("pages", len(pages)).Debug("Loaded text bill")
	return pages, nil
}

// LoadBill reads a bill file with the configured size limit
func (s *Service) LoadBill(path string) ([]extractor.Page, error) {
	return LoadBill(path, s.config.MaxFileSize)
}

func fileError(path string, err error) *errors.BillError {
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, path, err)
	}
	if os.IsPermission(err) {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	return errors.FileError(errors.CodeUnsupportedFile, path, err)
}
