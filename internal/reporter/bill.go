package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bill-reconciliation-service/internal/models"
	"bill-reconciliation-service/internal/reconciler"
	"bill-reconciliation-service/pkg/errors"
)

var billHeaders = []string{
	"S.No",
	"Serial Number",
	"Item Name",
	"HSN Code",
	"Quantity",
	"Price",
	"Source File",
}

// GenerateBillReport writes the records extracted from a single bill
func (rg *ReportGenerator) GenerateBillReport(bill *reconciler.BillResult, writer io.Writer) error {
	if bill == nil {
		return errors.ValidationError(errors.CodeMissingField, "bill", nil, nil)
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateBillConsole(bill, writer)
	case FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(bill)
	case FormatCSV:
		return rg.generateBillCSV(bill, writer)
	default:
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output.format", rg.config.Format, nil)
	}
}

func (rg *ReportGenerator) generateBillConsole(bill *reconciler.BillResult, writer io.Writer) error {
	w := &errWriter{w: writer}

	w.printf("%s BILL: %s\n", strings.ToUpper(bill.Role.String()), bill.File)
	if bill.SessionID != "" {
		w.printf("Session: %s\n", bill.SessionID)
	}
	w.printf("Pages: %d, Items: %d\n\n", bill.Pages, bill.TotalItems)

	for i, record := range bill.Records {
		if rg.truncated(i, len(bill.Records), w) {
			break
		}
		w.printf("  %d. %s\n", i+1, rg.clip(fmt.Sprintf("%s (SN: %s, HSN: %s, Qty: %d, Price: %s)",
			orPlaceholder(record.ItemName, models.PlaceholderName),
			orPlaceholder(record.SerialNumber, models.PlaceholderCode),
			orPlaceholder(record.HSNCode, models.PlaceholderCode),
			record.Quantity,
			money(record.PriceOrZero(bill.Role)))))
	}

	if bill.HasFailures() {
		w.printf("\n=== PAGE FAILURES ===\n")
		for _, failure := range bill.Failures.Errors {
			w.printf("  - %s\n", rg.clip(failure.Error()))
		}
	}

	return w.err
}

func (rg *ReportGenerator) generateBillCSV(bill *reconciler.BillResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(billHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for i, record := range bill.Records {
		row := []string{
			strconv.Itoa(i + 1),
			record.SerialNumber,
			record.ItemName,
			record.HSNCode,
			strconv.Itoa(record.Quantity),
			money(record.PriceOrZero(bill.Role)),
			record.SourceFile,
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write bill record: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func orPlaceholder(value, placeholder string) string {
	if strings.TrimSpace(value) == "" {
		return placeholder
	}
	return value
}
