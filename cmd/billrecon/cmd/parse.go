package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bill-reconciliation-service/cmd/billrecon/config"
	"bill-reconciliation-service/internal/models"
	"bill-reconciliation-service/internal/reporter"
	"bill-reconciliation-service/pkg/logger"
)

// Flags for the parse command
var (
	parseRole         string
	parseFile         string
	parseOutputFormat string
	parseOutputFile   string
)

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Extract the line items of a single bill",
	Long: `Parse reads one purchase or sale bill and prints the items found in it.

Text bills are read directly. JSON returned by a vision model is accepted
as text. Images (PNG, JPEG, WebP) and PDFs are sent to the configured
Gemini model first.

Examples:
  billrecon parse --role purchase --file purchase.txt
  billrecon parse --role sale --file scan.png --output-format json`,
	PreRunE: validateParseFlags,
	RunE:    runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&parseRole, "role", "r", "", "bill role: purchase or sale (required)")
	parseCmd.Flags().StringVar(&parseFile, "file", "", "path to the bill (required)")
	parseCmd.Flags().StringVarP(&parseOutputFormat, "output-format", "f", "", "output format: console, json, csv")
	parseCmd.Flags().StringVarP(&parseOutputFile, "output-file", "o", "", "output file path (default: stdout)")

	parseCmd.MarkFlagRequired("role")
	parseCmd.MarkFlagRequired("file")
}

func validateParseFlags(cmd *cobra.Command, args []string) error {
	if _, err := models.ParseRole(parseRole); err != nil {
		return err
	}

	if err := validateFileExists(parseFile, "bill file"); err != nil {
		return err
	}

	if _, err := config.CreateReportConfig(viper.GetViper(), parseOutputFormat); err != nil {
		return err
	}

	return validateOutputFile(parseOutputFile)
}

func runParse(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	log := logger.GetGlobalLogger().WithComponent("cli")

	role, err := models.ParseRole(parseRole)
	if err != nil {
		return err
	}

	service, err := newService(ctx)
	if err != nil {
		return err
	}

	pages, err := service.LoadBill(parseFile)
	if err != nil {
		return err
	}

	bill, err := service.ExtractBill(ctx, role, parseFile, pages)
	if err != nil {
		return err
	}
	warnPageFailures(bill)

	log.WithFields(logger.Fields{
		"file":  parseFile,
		"items": bill.TotalItems,
	}).Info("Bill parsed")

	reportConfig, err := config.CreateReportConfig(viper.GetViper(), parseOutputFormat)
	if err != nil {
		return err
	}

	generator, err := reporter.NewSafeReportGenerator(reportConfig, nil)
	if err != nil {
		return err
	}

	output, closeOutput, err := openOutput(parseOutputFile)
	if err != nil {
		return err
	}
	defer closeReport(&err, parseOutputFile, closeOutput)

	return generator.GenerateBillReportSafely(bill, output)
}
