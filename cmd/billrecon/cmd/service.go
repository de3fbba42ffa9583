package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"

	"bill-reconciliation-service/cmd/billrecon/config"
	"bill-reconciliation-service/internal/reconciler"
	"bill-reconciliation-service/internal/vision"
	"bill-reconciliation-service/pkg/errors"
	"bill-reconciliation-service/pkg/logger"
)

// newService builds the reconciliation service from the current settings.
// A vision provider is only created when an API key is configured.
func newService(ctx context.Context) (*reconciler.Service, error) {
	v := viper.GetViper()
	log := logger.GetGlobalLogger().WithComponent("cli")

	reconcilerConfig, err := config.CreateReconcilerConfig(v)
	if err != nil {
		return nil, err
	}

	visionConfig := config.CreateVisionConfig(v)
	if err := config.ValidateConfig(reconcilerConfig, visionConfig); err != nil {
		return nil, err
	}

	var provider vision.Provider
	if visionConfig.APIKey != "" {
		gemini, err := vision.NewGeminiProvider(ctx, visionConfig)
		if err != nil {
			return nil, err
		}
		provider = gemini
		log.WithField("model", visionConfig.Model).Debug("Vision provider configured")
	} else {
		log.Debug("No vision API key configured, image bills will be rejected")
	}

	return reconciler.NewService(nil, provider, reconcilerConfig)
}

// openOutput returns the report destination and a function releasing it
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}

	file, err := os.Create(path)
	if err != nil {
		code := errors.CodeFilePermission
		if os.IsNotExist(err) {
			code = errors.CodeFileNotFound
		}
		return nil, nil, errors.FileError(code, path, err).
			WithSuggestion("check that the output directory exists and is writable")
	}
	return file, file.Close, nil
}

// closeReport releases the report destination. A close failure replaces a
// nil *errp so a report that was not flushed never exits cleanly.
func closeReport(errp *error, path string, closeOutput func() error) {
	if err := closeOutput(); err != nil && *errp == nil {
		*errp = errors.FileError(errors.CodeFilePermission, path, err).
			WithSuggestion("check free disk space and write access to the output file")
	}
}

// warnPageFailures reports pages of a bill that could not be read
func warnPageFailures(bill *reconciler.BillResult) {
	if !bill.HasFailures() {
		return
	}

	fmt.Fprintf(os.Stderr, "Warning: %d page(s) of %s could not be read\n", bill.Failures.Total, bill.File)
	if viper.GetBool("verbose") {
		for _, failure := range bill.Failures.Errors {
			fmt.Fprintf(os.Stderr, "  - %v\n", failure)
		}
	}
}
