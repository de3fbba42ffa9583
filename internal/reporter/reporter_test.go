package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bill-reconciliation-service/internal/matcher"
	"bill-reconciliation-service/internal/models"
	"bill-reconciliation-service/internal/reconciler"
	billerrors "bill-reconciliation-service/pkg/errors"
	"bill-reconciliation-service/pkg/logger"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func createTestResult() *reconciler.Result {
	tv := models.NewMatchedItem(
		&models.Record{SerialNumber: "SN12345", HSNCode: "8528", ItemName: "Samsung TV", Quantity: 1, PurchasePrice: dec("50000")},
		&models.Record{SerialNumber: "SN12345", ItemName: "Samsung LED TV", Quantity: 1, SalePrice: dec("55000")},
		decimal.RequireFromString("0.94"),
		[]string{"serial number match", "name overlap 0.4"},
	)
	cable := models.NewMatchedItem(
		&models.Record{HSNCode: "8544", ItemName: "HDMI Cable", Quantity: 2, PurchasePrice: dec("500")},
		&models.Record{HSNCode: "8544", ItemName: "HDMI Cable", Quantity: 2, SalePrice: dec("450")},
		decimal.RequireFromString("0.8"),
		[]string{"hsn code match", "exact name match"},
	)

	match := &matcher.MatchResult{
		Matched: []*models.MatchedItem{cable, tv},
		UnmatchedPurchases: []*models.UnmatchedItem{
			models.NewUnmatchedItem(&models.Record{ItemName: "Wall Mount", Quantity: 1, PurchasePrice: dec("1200")}, models.RolePurchase),
		},
		UnmatchedSales: []*models.UnmatchedItem{
			models.NewUnmatchedItem(&models.Record{SerialNumber: "KB9", ItemName: "Keyboard", Quantity: 1, SalePrice: dec("900")}, models.RoleSale),
		},
	}

	return &reconciler.Result{
		SessionID:          "session-1",
		MatchResult:        match,
		ProcessedAt:        time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		ProcessingDuration: 150 * time.Millisecond,
		Preprocessing:      &reconciler.PreprocessingStats{TotalRecordsProcessed: 6, RecordsFixed: 1},
	}
}

func TestNewReportGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      *ReportConfig
		expectError bool
	}{
		{
			name:        "default config",
			config:      nil,
			expectError: false,
		},
		{
			name:        "valid config",
			config:      DefaultReportConfig(),
			expectError: false,
		},
		{
			name: "invalid format",
			config: &ReportConfig{
				Format:        "invalid",
				TableMaxWidth: 120,
			},
			expectError: true,
		},
		{
			name: "table width too small",
			config: &ReportConfig{
				Format:        FormatConsole,
				TableMaxWidth: 30,
			},
			expectError: true,
		},
		{
			name: "negative list limit",
			config: &ReportConfig{
				Format:        FormatConsole,
				TableMaxWidth: 120,
				MaxListItems:  -1,
			},
			expectError: true,
		},
		{
			name: "csv without delimiter",
			config: &ReportConfig{
				Format:        FormatCSV,
				TableMaxWidth: 120,
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				if err != nil && !billerrors.IsCode(err, billerrors.CodeInvalidConfig) {
					t.Errorf("expected invalid_config code, got %v", err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if generator == nil {
					t.Errorf("expected generator but got nil")
				}
			}
		})
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		input string
		want  OutputFormat
		valid bool
	}{
		{"console", FormatConsole, true},
		{" JSON ", FormatJSON, true},
		{"csv", FormatCSV, true},
		{"xlsx", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.input)
			if (err == nil) != tt.valid {
				t.Fatalf("ParseOutputFormat(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestGenerateConsoleReport(t *testing.T) {
	config := DefaultReportConfig()
	config.IncludePreprocessingStats = true

	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(createTestResult(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	expected := []string{
		"BILL RECONCILIATION REPORT",
		"Session: session-1",
		"=== SUMMARY ===",
		"=== FINANCIAL SUMMARY ===",
		"Total Purchase Value:     50500.00",
		"Total Sale Value:         55450.00",
		"Total Profit/Loss:        4950.00 (9.80%)",
		"=== MATCHED ITEMS ===",
		"Samsung TV (SN: SN12345, HSN: 8528, Qty: 1)",
		"Reasons: serial number match; name overlap 0.4",
		"=== UNMATCHED PURCHASES ===",
		"Wall Mount (SN: N/A, HSN: N/A, Qty: 1, Price: 1200.00)",
		"=== UNMATCHED SALES ===",
		"Keyboard (SN: KB9, HSN: N/A, Qty: 1, Price: 900.00)",
		"=== PREPROCESSING STATISTICS ===",
		"Records Fixed:      1",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("console output missing %q\n%s", want, output)
		}
	}
}

func TestGenerateConsoleReport_Sections(t *testing.T) {
	config := DefaultReportConfig()
	config.IncludeMatchedItems = false
	config.IncludeUnmatchedSales = false
	config.IncludeMatchReasons = false

	generator, _ := NewReportGenerator(config)

	var buf bytes.Buffer
	if err := generator.GenerateReport(createTestResult(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, absent := range []string{"=== MATCHED ITEMS ===", "=== UNMATCHED SALES ===", "Reasons:", "=== PREPROCESSING"} {
		if strings.Contains(output, absent) {
			t.Errorf("console output should not contain %q", absent)
		}
	}
	if !strings.Contains(output, "=== UNMATCHED PURCHASES ===") {
		t.Error("unmatched purchases should still be reported")
	}
}

func TestGenerateConsoleReport_Truncation(t *testing.T) {
	result := createTestResult()
	for i := 0; i < 14; i++ {
		result.UnmatchedSales = append(result.UnmatchedSales,
			models.NewUnmatchedItem(&models.Record{ItemName: "Extra", Quantity: 1, SalePrice: dec("1")}, models.RoleSale))
	}

	generator, _ := NewReportGenerator(nil)

	var buf bytes.Buffer
	if err := generator.GenerateReport(result, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), "... and 5 more") {
		t.Errorf("expected truncation after 10 items, got:\n%s", buf.String())
	}
}

func TestGenerateJSONReport(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatJSON
	config.IncludeUnmatchedSales = false

	generator, _ := NewReportGenerator(config)

	var buf bytes.Buffer
	if err := generator.GenerateReport(createTestResult(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var output map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}

	for _, key := range []string{"session_id", "summary", "matched_items", "unmatched_purchases", "processed_at"} {
		if _, ok := output[key]; !ok {
			t.Errorf("expected key %q in JSON output", key)
		}
	}
	if _, ok := output["unmatched_sales"]; ok {
		t.Error("unmatched_sales should be filtered out")
	}

	var summary models.Summary
	if err := json.Unmarshal(output["summary"], &summary); err != nil {
		t.Fatalf("invalid summary: %v", err)
	}
	if summary.TotalMatchedItems != 2 || !summary.TotalProfitLoss.Equal(decimal.NewFromInt(4950)) {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestGenerateJSONReport_EmptyResult(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatJSON

	generator, _ := NewReportGenerator(config)

	var buf bytes.Buffer
	if err := generator.GenerateReport(&reconciler.Result{}, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), `"matched_items": []`) {
		t.Errorf("expected empty arrays rather than null, got %s", buf.String())
	}
}

func TestGenerateCSVReport(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatCSV
	config.SortByProfit = true

	generator, _ := NewReportGenerator(config)

	result := createTestResult()
	var buf bytes.Buffer
	if err := generator.GenerateReport(result, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reader := csv.NewReader(&buf)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV output: %v", err)
	}

	if strings.Join(rows[0], ",") != strings.Join(itemHeaders, ",") {
		t.Errorf("unexpected headers: %v", rows[0])
	}

	// header, two matched, one unmatched purchase, one unmatched sale
	first := rows[1]
	if first[0] != "Matched" || first[3] != "Samsung TV" || first[8] != "5000.00" || first[9] != "10.00" {
		t.Errorf("expected most profitable match first, got %v", first)
	}
	if rows[2][3] != "HDMI Cable" || rows[2][8] != "-50.00" {
		t.Errorf("unexpected second row: %v", rows[2])
	}
	if rows[3][0] != "Unmatched Purchase" || rows[3][6] != "1200.00" || rows[3][7] != "0.00" {
		t.Errorf("unexpected unmatched purchase row: %v", rows[3])
	}
	if rows[4][0] != "Unmatched Sale" || rows[4][7] != "900.00" {
		t.Errorf("unexpected unmatched sale row: %v", rows[4])
	}

	if result.Matched[0].ItemName != "HDMI Cable" {
		t.Error("sorting must not reorder the result itself")
	}

	var sawTotal bool
	for _, row := range rows {
		if len(row) == 2 && row[0] == "Total Profit/Loss" {
			sawTotal = true
			if row[1] != "4950.00" {
				t.Errorf("expected total 4950.00, got %s", row[1])
			}
		}
	}
	if !sawTotal {
		t.Error("expected summary block in CSV output")
	}
}

func TestGenerateCSVReport_Delimiter(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatCSV
	config.CSVDelimiter = ';'
	config.CSVHeaders = false
	config.IncludeSummary = false

	generator, _ := NewReportGenerator(config)

	var buf bytes.Buffer
	if err := generator.GenerateReport(createTestResult(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 item rows, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "Matched;1;") {
		t.Errorf("expected semicolon delimited rows, got %q", lines[0])
	}
}

func TestGenerateReport_NilResult(t *testing.T) {
	generator, _ := NewReportGenerator(nil)
	err := generator.GenerateReport(nil, &bytes.Buffer{})
	if !billerrors.IsCode(err, billerrors.CodeMissingField) {
		t.Errorf("expected missing_field error, got %v", err)
	}
}

func TestGenerateBillReport(t *testing.T) {
	bill := &reconciler.BillResult{
		Role:  models.RoleSale,
		File:  "sale.txt",
		Pages: 2,
		Records: []*models.Record{
			{SerialNumber: "A1", ItemName: "Widget", Quantity: 2, SalePrice: dec("150"), SourceFile: "sale.txt"},
			{HSNCode: "8471", Quantity: 1, SalePrice: dec("99.5"), SourceFile: "sale.txt"},
		},
		TotalItems: 2,
		Failures: billerrors.NewErrorSummary([]*billerrors.BillError{
			billerrors.ParseError(billerrors.CodeNoItems, "page 1", nil),
		}),
	}

	tests := []struct {
		format   OutputFormat
		expected []string
	}{
		{FormatConsole, []string{"SALE BILL: sale.txt", "Pages: 2, Items: 2", "Widget (SN: A1, HSN: N/A, Qty: 2, Price: 150.00)", "Unknown (SN: N/A, HSN: 8471", "=== PAGE FAILURES ==="}},
		{FormatJSON, []string{`"role": "sale"`, `"total_items": 2`, `"sale_price": "99.5"`}},
		{FormatCSV, []string{"S.No,Serial Number,Item Name,HSN Code,Quantity,Price,Source File", "1,A1,Widget,,2,150.00,sale.txt"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			config := DefaultReportConfig()
			config.Format = tt.format
			generator, _ := NewReportGenerator(config)

			var buf bytes.Buffer
			if err := generator.GenerateBillReport(bill, &buf); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, want := range tt.expected {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestUpdateConfiguration(t *testing.T) {
	generator, _ := NewReportGenerator(nil)

	if err := generator.UpdateConfiguration(&ReportConfig{Format: "xml", TableMaxWidth: 120}); err == nil {
		t.Error("expected invalid configuration to be rejected")
	}
	if generator.GetConfiguration().Format != FormatConsole {
		t.Error("rejected update must keep the previous configuration")
	}

	config := DefaultReportConfig()
	config.Format = FormatJSON
	if err := generator.UpdateConfiguration(config); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if generator.GetConfiguration().Format != FormatJSON {
		t.Error("expected updated format")
	}
}

// rejectJSONWriter fails any write that starts a JSON document
type rejectJSONWriter struct {
	bytes.Buffer
}

func (w *rejectJSONWriter) Write(p []byte) (int, error) {
	if len(p) > 0 && p[0] == '{' {
		return 0, errors.New("json not accepted")
	}
	return w.Buffer.Write(p)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func quietLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.ErrorLevel,
		Format: logger.TextFormat,
		Output: logger.StderrOutput,
		Writer: &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func TestSafeReportGenerator(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		_, err := NewSafeReportGenerator(&ReportConfig{Format: "xml", TableMaxWidth: 120}, quietLogger(t))
		if !billerrors.IsCode(err, billerrors.CodeInvalidConfig) {
			t.Errorf("expected invalid_config, got %v", err)
		}
	})

	t.Run("input validation", func(t *testing.T) {
		srg, _ := NewSafeReportGenerator(nil, quietLogger(t))
		if err := srg.GenerateReportSafely(nil, &bytes.Buffer{}); !billerrors.IsCode(err, billerrors.CodeMissingField) {
			t.Errorf("expected missing_field for nil result, got %v", err)
		}
		if err := srg.GenerateReportSafely(createTestResult(), nil); !billerrors.IsCode(err, billerrors.CodeMissingField) {
			t.Errorf("expected missing_field for nil writer, got %v", err)
		}
	})

	t.Run("format fallback", func(t *testing.T) {
		config := DefaultReportConfig()
		config.Format = FormatJSON
		srg, _ := NewSafeReportGenerator(config, quietLogger(t))

		writer := &rejectJSONWriter{}
		if err := srg.GenerateReportSafely(createTestResult(), writer); err != nil {
			t.Fatalf("expected console fallback to succeed, got %v", err)
		}
		output := writer.String()
		if !strings.Contains(output, "NOTE: Report generated in fallback format") || !strings.Contains(output, "BILL RECONCILIATION REPORT") {
			t.Errorf("unexpected fallback output:\n%s", output)
		}
	})

	t.Run("console failure is wrapped", func(t *testing.T) {
		srg, _ := NewSafeReportGenerator(nil, quietLogger(t))
		err := srg.GenerateReportSafely(createTestResult(), failingWriter{})
		if !billerrors.IsCode(err, billerrors.CodeProcessingError) {
			t.Errorf("expected processing_error, got %v", err)
		}
	})

	t.Run("bill report", func(t *testing.T) {
		srg, _ := NewSafeReportGenerator(nil, quietLogger(t))
		if err := srg.GenerateBillReportSafely(nil, &bytes.Buffer{}); !billerrors.IsCode(err, billerrors.CodeMissingField) {
			t.Errorf("expected missing_field for nil bill, got %v", err)
		}
	})
}

func TestGenerateBackupPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/tmp/report.csv", "/tmp/report_backup.csv"},
		{"out/report", "out/report_backup"},
	}

	for _, tt := range tests {
		if got := generateBackupPath(tt.in); got != tt.want {
			t.Errorf("generateBackupPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
