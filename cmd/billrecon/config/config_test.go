package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"

	"bill-reconciliation-service/internal/reconciler"
	"bill-reconciliation-service/internal/reporter"
	"bill-reconciliation-service/internal/vision"
	"bill-reconciliation-service/pkg/errors"
	"bill-reconciliation-service/pkg/logger"
)

func newViper(values map[string]interface{}) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	for key, value := range values {
		v.Set(key, value)
	}
	return v
}

func TestCreateMatchingConfig(t *testing.T) {
	tests := []struct {
		name          string
		values        map[string]interface{}
		wantThreshold float64
		wantSerial    float64
		wantErr       bool
	}{
		{
			name:          "defaults",
			wantThreshold: 0.7,
			wantSerial:    0.5,
		},
		{
			name:          "strict profile",
			values:        map[string]interface{}{KeyMatchingProfile: "strict"},
			wantThreshold: 0.8,
			wantSerial:    0.5,
		},
		{
			name:          "relaxed profile with threshold override",
			values:        map[string]interface{}{KeyMatchingProfile: "Relaxed", KeyMatchingThreshold: 0.6},
			wantThreshold: 0.6,
			wantSerial:    0.5,
		},
		{
			name:          "weight override",
			values:        map[string]interface{}{KeySerialWeight: 0.6, KeyHSNWeight: 0.2},
			wantThreshold: 0.7,
			wantSerial:    0.6,
		},
		{
			name:    "unknown profile",
			values:  map[string]interface{}{KeyMatchingProfile: "fuzzy"},
			wantErr: true,
		},
		{
			name:    "threshold out of range",
			values:  map[string]interface{}{KeyMatchingThreshold: 1.5},
			wantErr: true,
		},
		{
			name:    "negative weight",
			values:  map[string]interface{}{KeyNameWeight: -0.2},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := CreateMatchingConfig(newViper(tt.values))

			if tt.wantErr {
				if !errors.IsCode(err, errors.CodeInvalidConfig) {
					t.Errorf("expected invalid_config error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if config.MinConfidenceScore != tt.wantThreshold {
				t.Errorf("expected threshold %v, got %v", tt.wantThreshold, config.MinConfidenceScore)
			}
			if config.Weights.SerialWeight != tt.wantSerial {
				t.Errorf("expected serial weight %v, got %v", tt.wantSerial, config.Weights.SerialWeight)
			}
		})
	}
}

func TestCreateReconcilerConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		config, err := CreateReconcilerConfig(newViper(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		defaults := reconciler.DefaultConfig()
		if config.MaxConcurrentPages != defaults.MaxConcurrentPages {
			t.Errorf("expected %d concurrent pages, got %d", defaults.MaxConcurrentPages, config.MaxConcurrentPages)
		}
		if config.MaxFileSize != 16*1024*1024 {
			t.Errorf("expected 16MB file limit, got %d", config.MaxFileSize)
		}
		if config.Matching == nil || config.Preprocessing == nil {
			t.Fatal("expected matching and preprocessing configs")
		}
		if config.Preprocessing.RemoveDuplicates {
			t.Error("duplicate removal should be off by default")
		}
	})

	t.Run("overrides", func(t *testing.T) {
		config, err := CreateReconcilerConfig(newViper(map[string]interface{}{
			KeyMaxConcurrentPages: 8,
			KeyRemoveDuplicates:   true,
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.MaxConcurrentPages != 8 || !config.Preprocessing.RemoveDuplicates {
			t.Errorf("overrides not applied: %+v", config)
		}
	})

	t.Run("invalid concurrency", func(t *testing.T) {
		_, err := CreateReconcilerConfig(newViper(map[string]interface{}{KeyMaxConcurrentPages: 0}))
		if !errors.IsCode(err, errors.CodeInvalidConfig) {
			t.Errorf("expected invalid_config error, got %v", err)
		}
	})
}

func TestCreateVisionConfig(t *testing.T) {
	config := CreateVisionConfig(newViper(map[string]interface{}{
		KeyVisionAPIKey:  "  key-123 ",
		KeyVisionModel:   "gemini-2.0-flash",
		KeyVisionTimeout: "30s",
	}))

	if config.APIKey != "key-123" {
		t.Errorf("expected trimmed API key, got %q", config.APIKey)
	}
	if config.Model != "gemini-2.0-flash" {
		t.Errorf("expected model override, got %q", config.Model)
	}
	if config.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", config.Timeout)
	}
	if config.MaxOutputTokens != vision.DefaultConfig().MaxOutputTokens {
		t.Errorf("expected default max output tokens, got %d", config.MaxOutputTokens)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid vision config: %v", err)
	}

	if empty := CreateVisionConfig(newViper(nil)); empty.APIKey != "" {
		t.Errorf("expected no API key by default, got %q", empty.APIKey)
	}
}

func TestCreateReportConfig(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]interface{}
		format  string
		want    reporter.OutputFormat
		wantErr bool
	}{
		{name: "console", format: "console", want: reporter.FormatConsole},
		{name: "json", format: "json", want: reporter.FormatJSON},
		{name: "csv", format: "CSV", want: reporter.FormatCSV},
		{name: "from config", values: map[string]interface{}{KeyOutputFormat: "json"}, want: reporter.FormatJSON},
		{name: "invalid", format: "xlsx", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := CreateReportConfig(newViper(tt.values), tt.format)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if config.Format != tt.want {
				t.Errorf("expected format %s, got %s", tt.want, config.Format)
			}
			if !config.IncludeMatchedItems || !config.IncludeUnmatchedPurchases || !config.IncludeUnmatchedSales {
				t.Error("all result sections should be included")
			}
		})
	}
}

func TestCreateLoggerConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		config, err := CreateLoggerConfig(newViper(nil), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Level != logger.WarnLevel || config.Format != logger.TextFormat || config.Output != logger.StderrOutput {
			t.Errorf("unexpected defaults: %+v", config)
		}
	})

	t.Run("verbose forces debug", func(t *testing.T) {
		config, err := CreateLoggerConfig(newViper(map[string]interface{}{KeyLogFormat: "JSON"}), true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Level != logger.DebugLevel || config.Format != logger.JSONFormat {
			t.Errorf("unexpected config: %+v", config)
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := CreateLoggerConfig(newViper(map[string]interface{}{KeyLogLevel: "trace"}), false)
		if !errors.IsCode(err, errors.CodeInvalidConfig) {
			t.Errorf("expected invalid_config error, got %v", err)
		}
	})

	t.Run("file output needs a path", func(t *testing.T) {
		_, err := CreateLoggerConfig(newViper(map[string]interface{}{KeyLogOutput: "file"}), false)
		if err == nil {
			t.Error("expected error for file output without path")
		}
	})
}

func TestValidateConfig(t *testing.T) {
	valid := reconciler.DefaultConfig()

	tests := []struct {
		name       string
		reconciler *reconciler.Config
		vision     *vision.Config
		wantErr    bool
	}{
		{name: "no vision", reconciler: valid, vision: nil},
		{name: "vision without key is skipped", reconciler: valid, vision: &vision.Config{}},
		{name: "valid vision", reconciler: valid, vision: &vision.Config{APIKey: "k", Model: "m", Temperature: 0.2, MaxOutputTokens: 10, Timeout: time.Second}},
		{name: "vision with bad timeout", reconciler: valid, vision: &vision.Config{APIKey: "k", Model: "m", MaxOutputTokens: 10}, wantErr: true},
		{name: "missing reconciler", wantErr: true},
		{name: "invalid reconciler", reconciler: &reconciler.Config{MaxConcurrentPages: 0, MaxFileSize: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.reconciler, tt.vision)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
