package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bill-reconciliation-service/cmd/billrecon/config"
	"bill-reconciliation-service/internal/models"
	"bill-reconciliation-service/internal/reconciler"
	"bill-reconciliation-service/internal/reporter"
	"bill-reconciliation-service/pkg/errors"
)

// Flags for the reconcile command
var (
	purchaseFiles []string
	saleFiles     []string
	outputFormat  string
	outputFile    string
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match purchase bills against sale bills",
	Long: `Reconcile extracts the items of every purchase and sale bill, links each
purchase to the best matching unclaimed sale, and reports profit and loss
per matched item along with the unmatched purchases and sales.

Items are scored on serial number, HSN code and item name. A pair is
linked when its score reaches the configured threshold (0.7 by default).

Examples:
  # Basic reconciliation
  billrecon reconcile --purchase-files purchase.txt --sale-files sale.txt

  # Several bills per side, scanned bills read through Gemini
  BILLRECON_VISION_API_KEY=... billrecon reconcile \
    --purchase-files p1.txt,p2.png --sale-files s1.pdf,s2.txt

  # Stricter matching and a CSV export
  billrecon reconcile --purchase-files p.txt --sale-files s.txt \
    --profile strict --output-format csv --output-file report.csv`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringSliceVarP(&purchaseFiles, "purchase-files", "p", []string{}, "comma-separated paths to purchase bills (required)")
	reconcileCmd.Flags().StringSliceVarP(&saleFiles, "sale-files", "s", []string{}, "comma-separated paths to sale bills (required)")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	reconcileCmd.Flags().Bool("sort-by-profit", false, "list matched items by descending profit")

	// Matching configuration flags
	reconcileCmd.Flags().String("profile", "default", "matching profile: default, strict, relaxed")
	reconcileCmd.Flags().Float64P("threshold", "t", 0.7, "minimum score for a purchase and sale to be linked")
	reconcileCmd.Flags().Bool("remove-duplicates", false, "drop identical records before matching")

	// Bind flags to viper
	viper.BindPFlag("purchase-files", reconcileCmd.Flags().Lookup("purchase-files"))
	viper.BindPFlag("sale-files", reconcileCmd.Flags().Lookup("sale-files"))
	viper.BindPFlag(config.KeyOutputSortByProfit, reconcileCmd.Flags().Lookup("sort-by-profit"))
	viper.BindPFlag(config.KeyMatchingProfile, reconcileCmd.Flags().Lookup("profile"))
	viper.BindPFlag(config.KeyMatchingThreshold, reconcileCmd.Flags().Lookup("threshold"))
	viper.BindPFlag(config.KeyRemoveDuplicates, reconcileCmd.Flags().Lookup("remove-duplicates"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	purchaseFiles = viper.GetStringSlice("purchase-files")
	saleFiles = viper.GetStringSlice("sale-files")

	if len(purchaseFiles) == 0 {
		return errors.ValidationError(errors.CodeMissingField, "purchase-files", nil, nil).
			WithSuggestion("pass at least one purchase bill with --purchase-files")
	}
	if len(saleFiles) == 0 {
		return errors.ValidationError(errors.CodeMissingField, "sale-files", nil, nil).
			WithSuggestion("pass at least one sale bill with --sale-files")
	}

	for i, file := range purchaseFiles {
		if err := validateFileExists(file, fmt.Sprintf("purchase bill %d", i+1)); err != nil {
			return err
		}
	}
	for i, file := range saleFiles {
		if err := validateFileExists(file, fmt.Sprintf("sale bill %d", i+1)); err != nil {
			return err
		}
	}

	if _, err := config.CreateReportConfig(viper.GetViper(), outputFormat); err != nil {
		return err
	}

	if _, err := config.CreateMatchingConfig(viper.GetViper()); err != nil {
		return err
	}

	return validateOutputFile(outputFile)
}

func validateFileExists(filePath, description string) error {
	if strings.TrimSpace(filePath) == "" {
		return errors.ValidationError(errors.CodeMissingField, description, filePath, nil)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err).
			WithContext("description", description)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err).
			WithContext("description", description)
	}

	if info.IsDir() {
		return errors.FileError(errors.CodeUnsupportedFile, filePath, fmt.Errorf("%s is a directory, expected a file", description))
	}

	file, err := os.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err).
			WithContext("description", description)
	}
	file.Close()

	return nil
}

func validateOutputFile(path string) error {
	if path == "" {
		return nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return errors.FileError(errors.CodeFileNotFound, dir, err).
				WithSuggestion("create the output directory first")
		}
	}

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Purchase bills: %s\n", strings.Join(purchaseFiles, ", "))
		fmt.Fprintf(os.Stderr, "Sale bills: %s\n", strings.Join(saleFiles, ", "))
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	service, err := newService(ctx)
	if err != nil {
		return err
	}

	sess, err := service.Store().Create(ctx)
	if err != nil {
		return err
	}
	defer service.Store().Delete(ctx, sess.ID)

	if err := processBills(ctx, service, sess.ID, models.RolePurchase, purchaseFiles); err != nil {
		return err
	}
	if err := processBills(ctx, service, sess.ID, models.RoleSale, saleFiles); err != nil {
		return err
	}

	result, err := service.Reconcile(ctx, sess.ID)
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(viper.GetViper(), outputFormat)
	if err != nil {
		return err
	}

	generator, err := reporter.NewSafeReportGenerator(reportConfig, nil)
	if err != nil {
		return err
	}

	output, closeOutput, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	defer closeReport(&err, outputFile, closeOutput)

	if err := generator.GenerateReportSafely(result, output); err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		s := result.Summary
		fmt.Fprintf(os.Stderr, "\nReconciliation completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Found %d matches, %d unmatched purchases, %d unmatched sales.\n",
			s.TotalMatchedItems, s.TotalUnmatchedPurchases, s.TotalUnmatchedSales)
		fmt.Fprintf(os.Stderr, "Total profit/loss: %s\n", s.TotalProfitLoss.StringFixed(2))
		fmt.Fprintf(os.Stderr, "Processing time: %v\n", result.ProcessingDuration)
	}

	return nil
}

// processBills loads and extracts each bill of one role into the session
func processBills(ctx context.Context, service *reconciler.Service, sessionID string, role models.Role, files []string) error {
	for _, file := range files {
		pages, err := service.LoadBill(file)
		if err != nil {
			return err
		}

		bill, err := service.ProcessBill(ctx, sessionID, role, file, pages)
		if err != nil {
			return err
		}
		warnPageFailures(bill)

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Read %s (%s): %d page(s), %d %s item(s) so far\n",
				file, role, bill.Pages, bill.TotalItems, role)
		}
	}
	return nil
}
