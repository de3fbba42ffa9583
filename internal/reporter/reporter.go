// Package reporter renders reconciliation results and extracted bills.
//
// Supported output formats:
//   - Console: human-readable sections for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: flat rows for spreadsheet applications, using the same columns
//     as the bill export (S.No, Serial Number, Item Name, HSN Code, ...)
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{
//		Format:              reporter.FormatCSV,
//		IncludeMatchedItems: true,
//		CSVDelimiter:        ',',
//		CSVHeaders:          true,
//		TableMaxWidth:       120,
//	})
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bill-reconciliation-service/internal/matcher"
	"bill-reconciliation-service/internal/models"
	"bill-reconciliation-service/internal/reconciler"
	"bill-reconciliation-service/internal/summary"
	"bill-reconciliation-service/pkg/errors"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ParseOutputFormat converts user input into an OutputFormat
func ParseOutputFormat(value string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(value)))
	if !format.IsValid() {
		return "", errors.ConfigurationError(errors.CodeInvalidConfig, "output.format", value, nil).
			WithSuggestion("Use one of: console, json, csv")
	}
	return format, nil
}

// Column headers shared by the CSV reports
var itemHeaders = []string{
	"Section",
	"S.No",
	"Serial Number",
	"Item Name",
	"HSN Code",
	"Quantity",
	"Purchase Price",
	"Sale Price",
	"Profit/Loss",
	"Profit/Loss %",
	"Match Score",
	"Reasons",
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	IncludeMatchedItems       bool `json:"include_matched_items"`
	IncludeUnmatchedPurchases bool `json:"include_unmatched_purchases"`
	IncludeUnmatchedSales     bool `json:"include_unmatched_sales"`
	IncludeMatchReasons       bool `json:"include_match_reasons"`
	IncludeSummary            bool `json:"include_summary"`
	IncludePreprocessingStats bool `json:"include_preprocessing_stats"`

	// Console formatting options
	TableMaxWidth int `json:"table_max_width"`
	MaxListItems  int `json:"max_list_items"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`

	SortByProfit bool `json:"sort_by_profit"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                    FormatConsole,
		IncludeMatchedItems:       true,
		IncludeUnmatchedPurchases: true,
		IncludeUnmatchedSales:     true,
		IncludeMatchReasons:       true,
		IncludeSummary:            true,
		IncludePreprocessingStats: false,
		TableMaxWidth:             120,
		MaxListItems:              10,
		CSVDelimiter:              ',',
		CSVHeaders:                true,
		SortByProfit:              false,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output.format", c.Format, nil)
	}

	if c.TableMaxWidth < 50 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output.table_max_width", c.TableMaxWidth,
			fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth))
	}

	if c.MaxListItems < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output.max_list_items", c.MaxListItems,
			fmt.Errorf("max list items cannot be negative"))
	}

	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n' || c.CSVDelimiter == '\r') {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output.csv_delimiter", string(c.CSVDelimiter),
			fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter))
	}

	return nil
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport writes a report of a reconciliation result to writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.Result, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(errors.CodeMissingField, "result", nil, nil)
	}

	view := newResultView(result, rg.config.SortByProfit)

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, view, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, view, writer)
	case FormatCSV:
		return rg.generateCSVReport(view, writer)
	default:
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output.format", rg.config.Format, nil)
	}
}

// resultView is a read-only projection of a result that tolerates a
// missing match result or summary.
type resultView struct {
	matched            []*models.MatchedItem
	unmatchedPurchases []*models.UnmatchedItem
	unmatchedSales     []*models.UnmatchedItem
	summary            *models.Summary
}

func newResultView(result *reconciler.Result, sortByProfit bool) *resultView {
	match := result.MatchResult
	if match == nil {
		match = &matcher.MatchResult{}
	}

	view := &resultView{
		matched:            append([]*models.MatchedItem(nil), match.Matched...),
		unmatchedPurchases: match.UnmatchedPurchases,
		unmatchedSales:     match.UnmatchedSales,
		summary:            result.Summary,
	}
	if view.summary == nil {
		view.summary = summary.Calculate(match)
	}

	if sortByProfit {
		sort.SliceStable(view.matched, func(i, j int) bool {
			return view.matched[i].ProfitLoss.GreaterThan(view.matched[j].ProfitLoss)
		})
	}
	return view
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *reconciler.Result, view *resultView, writer io.Writer) error {
	w := &errWriter{w: writer}

	w.printf("BILL RECONCILIATION REPORT\n")
	if result.SessionID != "" {
		w.printf("Session: %s\n", result.SessionID)
	}
	if !result.ProcessedAt.IsZero() {
		w.printf("Generated: %s\n", result.ProcessedAt.Format(time.RFC3339))
	}
	if result.ProcessingDuration > 0 {
		w.printf("Processing Duration: %v\n", result.ProcessingDuration)
	}
	w.printf("\n")

	if rg.config.IncludeSummary {
		w.printf("=== SUMMARY ===\n")
		rg.printSummaryTable(view.summary, w)
		w.printf("\n")

		w.printf("=== FINANCIAL SUMMARY ===\n")
		rg.printFinancialSummary(view.summary, w)
		w.printf("\n")
	}

	if rg.config.IncludeMatchedItems && len(view.matched) > 0 {
		w.printf("=== MATCHED ITEMS ===\n")
		rg.printMatchedItems(view.matched, w)
		w.printf("\n")
	}

	if rg.config.IncludeUnmatchedPurchases && len(view.unmatchedPurchases) > 0 {
		w.printf("=== UNMATCHED PURCHASES ===\n")
		rg.printUnmatchedItems(view.unmatchedPurchases, w)
		w.printf("\n")
	}

	if rg.config.IncludeUnmatchedSales && len(view.unmatchedSales) > 0 {
		w.printf("=== UNMATCHED SALES ===\n")
		rg.printUnmatchedItems(view.unmatchedSales, w)
		w.printf("\n")
	}

	if rg.config.IncludePreprocessingStats && result.Preprocessing != nil {
		w.printf("=== PREPROCESSING STATISTICS ===\n")
		rg.printPreprocessingStats(result.Preprocessing, w)
	}

	return w.err
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *reconciler.Result, view *resultView, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(rg.filterResultForOutput(result, view))
}

// generateCSVReport writes one row per result item followed by a summary block
func (rg *ReportGenerator) generateCSVReport(view *resultView, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(itemHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	if rg.config.IncludeMatchedItems {
		for i, item := range view.matched {
			record := []string{
				"Matched",
				strconv.Itoa(i + 1),
				item.SerialNumber,
				item.ItemName,
				item.HSNCode,
				strconv.Itoa(item.Quantity),
				money(item.PurchasePrice),
				money(item.SalePrice),
				money(item.ProfitLoss),
				money(item.ProfitLossPercentage),
				item.Score.String(),
				rg.reasons(item),
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write matched item record: %w", err)
			}
		}
	}

	sections := []struct {
		include bool
		label   string
		items   []*models.UnmatchedItem
	}{
		{rg.config.IncludeUnmatchedPurchases, "Unmatched Purchase", view.unmatchedPurchases},
		{rg.config.IncludeUnmatchedSales, "Unmatched Sale", view.unmatchedSales},
	}
	for _, section := range sections {
		if !section.include {
			continue
		}
		for i, item := range section.items {
			record := []string{
				section.label,
				strconv.Itoa(i + 1),
				item.SerialNumber,
				item.ItemName,
				item.HSNCode,
				strconv.Itoa(item.Quantity),
				money(item.PurchasePrice),
				money(item.SalePrice),
				money(item.ProfitLoss),
				money(item.ProfitLossPercentage),
				"",
				"",
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write unmatched item record: %w", err)
			}
		}
	}

	if rg.config.IncludeSummary {
		if err := csvWriter.Write(nil); err != nil {
			return fmt.Errorf("failed to write CSV separator: %w", err)
		}
		if rg.config.CSVHeaders {
			if err := csvWriter.Write([]string{"Metric", "Value"}); err != nil {
				return fmt.Errorf("failed to write CSV summary headers: %w", err)
			}
		}
		for _, row := range summaryRows(view.summary) {
			if err := csvWriter.Write(row); err != nil {
				return fmt.Errorf("failed to write summary record: %w", err)
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func summaryRows(s *models.Summary) [][]string {
	return [][]string{
		{"Total Matched Items", strconv.Itoa(s.TotalMatchedItems)},
		{"Total Unmatched Purchases", strconv.Itoa(s.TotalUnmatchedPurchases)},
		{"Total Unmatched Sales", strconv.Itoa(s.TotalUnmatchedSales)},
		{"Profit Items", strconv.Itoa(s.ProfitItemsCount)},
		{"Loss Items", strconv.Itoa(s.LossItemsCount)},
		{"Total Purchase Value", money(s.TotalPurchaseValue)},
		{"Total Sale Value", money(s.TotalSaleValue)},
		{"Total Profit/Loss", money(s.TotalProfitLoss)},
		{"Total Profit/Loss %", money(s.TotalProfitLossPercentage)},
		{"Unmatched Purchase Value", money(s.TotalUnmatchedPurchaseValue)},
		{"Unmatched Sale Value", money(s.TotalUnmatchedSaleValue)},
	}
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printSummaryTable(s *models.Summary, w *errWriter) {
	purchases := s.TotalMatchedItems + s.TotalUnmatchedPurchases
	sales := s.TotalMatchedItems + s.TotalUnmatchedSales

	w.printf("Purchases:\n")
	w.printf("  Total:     %d\n", purchases)
	w.printf("  Matched:   %d (%.1f%%)\n", s.TotalMatchedItems,
		rg.calculatePercentage(s.TotalMatchedItems, purchases))
	w.printf("  Unmatched: %d (%.1f%%)\n", s.TotalUnmatchedPurchases,
		rg.calculatePercentage(s.TotalUnmatchedPurchases, purchases))

	w.printf("\nSales:\n")
	w.printf("  Total:     %d\n", sales)
	w.printf("  Matched:   %d (%.1f%%)\n", s.TotalMatchedItems,
		rg.calculatePercentage(s.TotalMatchedItems, sales))
	w.printf("  Unmatched: %d (%.1f%%)\n", s.TotalUnmatchedSales,
		rg.calculatePercentage(s.TotalUnmatchedSales, sales))

	w.printf("\nMatched Outcome:\n")
	w.printf("  Profit Items:        %d\n", s.ProfitItemsCount)
	w.printf("  Loss Items:          %d\n", s.LossItemsCount)
	w.printf("  Break-even Items:    %d\n", s.TotalMatchedItems-s.ProfitItemsCount-s.LossItemsCount)
}

func (rg *ReportGenerator) printFinancialSummary(s *models.Summary, w *errWriter) {
	w.printf("Total Purchase Value:     %s\n", money(s.TotalPurchaseValue))
	w.printf("Total Sale Value:         %s\n", money(s.TotalSaleValue))
	w.printf("Total Profit/Loss:        %s (%s%%)\n", money(s.TotalProfitLoss), money(s.TotalProfitLossPercentage))
	w.printf("Unmatched Purchase Value: %s\n", money(s.TotalUnmatchedPurchaseValue))
	w.printf("Unmatched Sale Value:     %s\n", money(s.TotalUnmatchedSaleValue))
}

func (rg *ReportGenerator) printMatchedItems(items []*models.MatchedItem, w *errWriter) {
	w.printf("Total Matched Items: %d\n\n", len(items))

	for i, item := range items {
		if rg.truncated(i, len(items), w) {
			break
		}

		w.printf("  %d. %s\n", i+1, rg.clip(fmt.Sprintf("%s (SN: %s, HSN: %s, Qty: %d)",
			item.ItemName, item.SerialNumber, item.HSNCode, item.Quantity)))
		w.printf("     Purchase: %s, Sale: %s, Profit/Loss: %s (%s%%), Score: %s\n",
			money(item.PurchasePrice),
			money(item.SalePrice),
			money(item.ProfitLoss),
			money(item.ProfitLossPercentage),
			item.Score.String())
		if item.QuantityMismatch {
			w.printf("     Quantity differs: purchased %d, sold %d\n", item.PurchaseQuantity, item.SaleQuantity)
		}
		if reasons := rg.reasons(item); reasons != "" {
			w.printf("     %s\n", rg.clip("Reasons: "+reasons))
		}
	}
}

func (rg *ReportGenerator) printUnmatchedItems(items []*models.UnmatchedItem, w *errWriter) {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price())
	}
	w.printf("Total: %d items, value %s\n\n", len(items), money(total))

	for i, item := range items {
		if rg.truncated(i, len(items), w) {
			break
		}
		w.printf("  %d. %s\n", i+1, rg.clip(fmt.Sprintf("%s (SN: %s, HSN: %s, Qty: %d, Price: %s)",
			item.ItemName, item.SerialNumber, item.HSNCode, item.Quantity, money(item.Price()))))
	}
}

func (rg *ReportGenerator) printPreprocessingStats(stats *reconciler.PreprocessingStats, w *errWriter) {
	w.printf("Records Processed:  %d\n", stats.TotalRecordsProcessed)
	w.printf("Records Fixed:      %d\n", stats.RecordsFixed)
	w.printf("Records Removed:    %d\n", stats.RecordsRemoved)
	w.printf("Duplicates Removed: %d\n", stats.DuplicatesRemoved)
}

// truncated prints the overflow line once the list limit is reached
func (rg *ReportGenerator) truncated(i, total int, w *errWriter) bool {
	limit := rg.config.MaxListItems
	if limit == 0 || i < limit {
		return false
	}
	w.printf("  ... and %d more\n", total-limit)
	return true
}

func (rg *ReportGenerator) clip(line string) string {
	runes := []rune(line)
	if len(runes) <= rg.config.TableMaxWidth {
		return line
	}
	return string(runes[:rg.config.TableMaxWidth-3]) + "..."
}

func (rg *ReportGenerator) reasons(item *models.MatchedItem) string {
	if !rg.config.IncludeMatchReasons {
		return ""
	}
	return strings.Join(item.Reasons, "; ")
}

// Helper methods

func (rg *ReportGenerator) calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func (rg *ReportGenerator) filterResultForOutput(result *reconciler.Result, view *resultView) map[string]interface{} {
	output := map[string]interface{}{
		"processed_at": result.ProcessedAt,
	}

	if result.SessionID != "" {
		output["session_id"] = result.SessionID
	}

	if result.ProcessingDuration > 0 {
		output["processing_duration"] = result.ProcessingDuration.String()
	}

	if rg.config.IncludeSummary {
		output["summary"] = view.summary
	}

	if rg.config.IncludeMatchedItems {
		output["matched_items"] = nonNilMatched(view.matched)
	}

	if rg.config.IncludeUnmatchedPurchases {
		output["unmatched_purchases"] = nonNilUnmatched(view.unmatchedPurchases)
	}

	if rg.config.IncludeUnmatchedSales {
		output["unmatched_sales"] = nonNilUnmatched(view.unmatchedSales)
	}

	if rg.config.IncludePreprocessingStats && result.Preprocessing != nil {
		output["preprocessing"] = result.Preprocessing
	}

	return output
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if config == nil {
		return errors.ConfigurationError(errors.CodeMissingConfig, "output", nil, nil)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func nonNilMatched(items []*models.MatchedItem) []*models.MatchedItem {
	if items == nil {
		return []*models.MatchedItem{}
	}
	return items
}

func nonNilUnmatched(items []*models.UnmatchedItem) []*models.UnmatchedItem {
	if items == nil {
		return []*models.UnmatchedItem{}
	}
	return items
}

// errWriter keeps the first write error so console output can be written
// without checking every call.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
