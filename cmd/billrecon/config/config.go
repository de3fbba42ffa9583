// Package config turns viper settings (flags, config file, BILLRECON_*
// environment variables) into the configuration structs of each component.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"bill-reconciliation-service/internal/matcher"
	"bill-reconciliation-service/internal/reconciler"
	"bill-reconciliation-service/internal/reporter"
	"bill-reconciliation-service/internal/vision"
	"bill-reconciliation-service/pkg/errors"
	"bill-reconciliation-service/pkg/logger"
)

// EnvPrefix is the prefix of environment variables read by the CLI
const EnvPrefix = "BILLRECON"

// Configuration keys
const (
	KeyMatchingProfile   = "matching.profile"
	KeyMatchingThreshold = "matching.threshold"
	KeySerialWeight      = "matching.serial_weight"
	KeyHSNWeight         = "matching.hsn_weight"
	KeyNameWeight        = "matching.name_weight"

	KeyMaxConcurrentPages = "extraction.max_concurrent_pages"
	KeyMaxFileSize        = "extraction.max_file_size"
	KeyRemoveDuplicates   = "extraction.remove_duplicates"

	KeyVisionAPIKey          = "vision.api_key"
	KeyVisionModel           = "vision.model"
	KeyVisionTemperature     = "vision.temperature"
	KeyVisionMaxOutputTokens = "vision.max_output_tokens"
	KeyVisionTimeout         = "vision.timeout"

	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"
	KeyLogOutput = "log.output"
	KeyLogFile   = "log.file"

	KeyOutputFormat       = "output.format"
	KeyOutputFile         = "output.file"
	KeyOutputSortByProfit = "output.sort_by_profit"
	KeyOutputMaxListItems = "output.max_list_items"
)

// Matching profiles selectable through matching.profile
const (
	ProfileDefault = "default"
	ProfileStrict  = "strict"
	ProfileRelaxed = "relaxed"
)

// SetDefaults registers default values and environment bindings on v.
// Matching weights have no defaults so that only explicit settings
// override the selected profile.
func SetDefaults(v *viper.Viper) {
	defaults := reconciler.DefaultConfig()
	visionDefaults := vision.DefaultConfig()
	logDefaults := logger.DefaultConfig()

	v.SetDefault(KeyMatchingProfile, ProfileDefault)

	v.SetDefault(KeyMaxConcurrentPages, defaults.MaxConcurrentPages)
	v.SetDefault(KeyMaxFileSize, defaults.MaxFileSize)
	v.SetDefault(KeyRemoveDuplicates, defaults.Preprocessing.RemoveDuplicates)

	v.SetDefault(KeyVisionModel, visionDefaults.Model)
	v.SetDefault(KeyVisionTemperature, visionDefaults.Temperature)
	v.SetDefault(KeyVisionMaxOutputTokens, visionDefaults.MaxOutputTokens)
	v.SetDefault(KeyVisionTimeout, visionDefaults.Timeout)

	v.SetDefault(KeyLogLevel, string(logDefaults.Level))
	v.SetDefault(KeyLogFormat, string(logDefaults.Format))
	v.SetDefault(KeyLogOutput, string(logDefaults.Output))

	v.SetDefault(KeyOutputFormat, string(reporter.FormatConsole))
	v.SetDefault(KeyOutputMaxListItems, reporter.DefaultReportConfig().MaxListItems)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// The API key is also accepted under the name the Gemini tooling uses.
	_ = v.BindEnv(KeyVisionAPIKey, EnvPrefix+"_VISION_API_KEY", "GEMINI_API_KEY")
}

// CreateMatchingConfig creates the matching configuration for the selected
// profile with any explicit threshold or weight overrides applied.
func CreateMatchingConfig(v *viper.Viper) (*matcher.MatchingConfig, error) {
	var config *matcher.MatchingConfig

	profile := strings.ToLower(strings.TrimSpace(v.GetString(KeyMatchingProfile)))
	switch profile {
	case "", ProfileDefault:
		config = matcher.DefaultMatchingConfig()
	case ProfileStrict:
		config = matcher.StrictMatchingConfig()
	case ProfileRelaxed:
		config = matcher.RelaxedMatchingConfig()
	default:
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, KeyMatchingProfile, profile, nil).
			WithSuggestion("Use one of: default, strict, relaxed")
	}

	if v.IsSet(KeyMatchingThreshold) {
		config.MinConfidenceScore = v.GetFloat64(KeyMatchingThreshold)
	}
	if v.IsSet(KeySerialWeight) {
		config.Weights.SerialWeight = v.GetFloat64(KeySerialWeight)
	}
	if v.IsSet(KeyHSNWeight) {
		config.Weights.HSNWeight = v.GetFloat64(KeyHSNWeight)
	}
	if v.IsSet(KeyNameWeight) {
		config.Weights.NameWeight = v.GetFloat64(KeyNameWeight)
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", nil, err)
	}

	return config, nil
}

// CreateReconcilerConfig creates the reconciliation service configuration
func CreateReconcilerConfig(v *viper.Viper) (*reconciler.Config, error) {
	matching, err := CreateMatchingConfig(v)
	if err != nil {
		return nil, err
	}

	config := reconciler.DefaultConfig()
	config.Matching = matching
	config.MaxConcurrentPages = v.GetInt(KeyMaxConcurrentPages)
	config.MaxFileSize = v.GetInt64(KeyMaxFileSize)
	config.Preprocessing.RemoveDuplicates = v.GetBool(KeyRemoveDuplicates)

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "extraction", nil, err)
	}

	return config, nil
}

// CreateVisionConfig creates the vision provider configuration. The result
// is not validated; an empty API key means no provider is configured.
func CreateVisionConfig(v *viper.Viper) *vision.Config {
	config := vision.DefaultConfig()
	config.APIKey = strings.TrimSpace(v.GetString(KeyVisionAPIKey))
	config.Model = v.GetString(KeyVisionModel)
	config.Temperature = float32(v.GetFloat64(KeyVisionTemperature))
	config.MaxOutputTokens = v.GetInt32(KeyVisionMaxOutputTokens)
	config.Timeout = durationOr(v.GetDuration(KeyVisionTimeout), config.Timeout)
	return config
}

// CreateReportConfig creates a report configuration for the given format.
// An empty format falls back to output.format.
func CreateReportConfig(v *viper.Viper, format string) (*reporter.ReportConfig, error) {
	if strings.TrimSpace(format) == "" {
		format = v.GetString(KeyOutputFormat)
	}

	outputFormat, err := reporter.ParseOutputFormat(format)
	if err != nil {
		return nil, err
	}

	config := reporter.DefaultReportConfig()
	config.Format = outputFormat
	config.SortByProfit = v.GetBool(KeyOutputSortByProfit)
	config.MaxListItems = v.GetInt(KeyOutputMaxListItems)

	switch outputFormat {
	case reporter.FormatConsole:
		config.IncludePreprocessingStats = true
	case reporter.FormatJSON:
		config.IncludePreprocessingStats = true
	case reporter.FormatCSV:
		config.CSVHeaders = true
		config.CSVDelimiter = ','
		config.IncludePreprocessingStats = false
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// CreateLoggerConfig creates the logger configuration. Verbose forces
// debug level.
func CreateLoggerConfig(v *viper.Viper, verbose bool) (*logger.Config, error) {
	config := &logger.Config{
		Level:  logger.Level(strings.ToLower(v.GetString(KeyLogLevel))),
		Format: logger.Format(strings.ToLower(v.GetString(KeyLogFormat))),
		Output: logger.Output(strings.ToLower(v.GetString(KeyLogOutput))),
		File:   v.GetString(KeyLogFile),
	}
	if verbose {
		config.Level = logger.DebugLevel
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "log", nil, err)
	}

	return config, nil
}

// ValidateConfig validates the component configurations together. The
// vision configuration is only checked when an API key is present.
func ValidateConfig(reconcilerConfig *reconciler.Config, visionConfig *vision.Config) error {
	if reconcilerConfig == nil {
		return errors.ConfigurationError(errors.CodeMissingConfig, "extraction", nil, nil)
	}

	if err := reconcilerConfig.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "extraction", nil, err)
	}

	if visionConfig != nil && visionConfig.APIKey != "" {
		if err := visionConfig.Validate(); err != nil {
			return fmt.Errorf("invalid vision config: %w", err)
		}
	}

	return nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
