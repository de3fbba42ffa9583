// Package extractor turns bill text into line-item records.
//
// Two strategies are tried in order. The tabular strategy looks for a
// header row and classifies the cells of every following row. When it
// yields nothing, the line strategy reads blank-line separated blocks.
// Structured provider payloads are handled by ParseProviderResponse.
package extractor

import (
	"strings"

	"bill-reconciliation-service/internal/models"
	"bill-reconciliation-service/internal/normalizer"
	"bill-reconciliation-service/pkg/errors"
	"bill-reconciliation-service/pkg/logger"
)

// Parse extracts records from free text for the given role. Malformed
// lines never fail the call; the only error is an invalid role.
func Parse(text string, role models.Role) ([]*models.Record, error) {
	if !role.IsValid() {
		return nil, errors.ValidationError(errors.CodeInvalidRole, "role", role, nil)
	}

	log := logger.GetGlobalLogger().WithComponent("extractor")
	lines := splitLines(text)

	if records := parseTable(lines, role); len(records) > 0 {
		log.WithFields(logger.Fields{
			"strategy": "table",
			"role":     role,
			"records":  len(records),
		}).Debug("Extracted records")
		return records, nil
	}

	records := parseLines(lines, role)
	log.WithFields(logger.Fields{
		"strategy": "lines",
		"role":     role,
		"records":  len(records),
	}).Debug("Extracted records")

	return records, nil
}

// ExtractText handles provider output of unknown shape. Text carrying a
// JSON array is decoded as a structured payload; anything else, or a
// payload that yields no records, goes through Parse.
func ExtractText(text string, role models.Role) ([]*models.Record, error) {
	if !role.IsValid() {
		return nil, errors.ValidationError(errors.CodeInvalidRole, "role", role, nil)
	}

	if looksLikePayload(text) {
		records, err := ParseProviderResponse(text, role)
		if err == nil && len(records) > 0 {
			return records, nil
		}
		logger.GetGlobalLogger().WithComponent("extractor").
			WithError(err).
			Debug("Payload yielded no records, reading as plain text")
	}

	return Parse(text, role)
}

// NormalizeName is the canonical name form used for matching.
func NormalizeName(name string) string {
	return normalizer.NormalizeName(name)
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}
