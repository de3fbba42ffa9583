package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bill-reconciliation-service/cmd/billrecon/config"
	"bill-reconciliation-service/pkg/errors"
	"bill-reconciliation-service/pkg/logger"
)

var (
	cfgFile string
	envFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "billrecon",
	Short: "Purchase and sale bill reconciliation tool",
	Long: `Billrecon extracts line items from purchase and sale bills and links
each purchase to the sale of the same item, reporting profit and loss per
item together with everything that could not be matched.

Bills may be plain text (pages separated by form feeds), JSON returned by
a vision model, or images and PDFs when a Gemini API key is configured.

Examples:
  billrecon parse --role purchase --file purchase.txt
  billrecon reconcile --purchase-files p1.txt,p2.png --sale-files s1.txt
  billrecon reconcile --purchase-files p.txt --sale-files s.txt --output-format csv --output-file report.csv`,
	Version:           getVersionString(),
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	config.SetDefaults(viper.GetViper())

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file, YAML/TOML/JSON (optional)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text, json")
	rootCmd.PersistentFlags().Int("max-concurrent-pages", 4, "pages of one bill extracted concurrently")
	rootCmd.PersistentFlags().String("vision-model", "", "Gemini model used for image and PDF bills")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag(config.KeyLogFormat, rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag(config.KeyMaxConcurrentPages, rootCmd.PersistentFlags().Lookup("max-concurrent-pages"))
	viper.BindPFlag(config.KeyVisionModel, rootCmd.PersistentFlags().Lookup("vision-model"))
}

// initConfig reads the dotenv file, the config file and ENV variables.
func initConfig() {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error reading env file %s: %s\n", envFile, err)
			os.Exit(errors.ConfigurationError(errors.CodeInvalidConfig, "env-file", envFile, err).GetExitCode())
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(errors.ConfigurationError(errors.CodeInvalidConfig, "config", cfgFile, err).GetExitCode())
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}
}

// setupLogging installs the global logger before any command runs
func setupLogging(cmd *cobra.Command, args []string) error {
	logConfig, err := config.CreateLoggerConfig(viper.GetViper(), viper.GetBool("verbose"))
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(logConfig)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log", nil, err)
	}
	logger.SetGlobalLogger(log)

	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
