package vision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"bill-reconciliation-service/pkg/errors"
	"bill-reconciliation-service/pkg/logger"
)

const providerGemini = "gemini"

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.5-flash"

// Config holds the settings of the Gemini provider
type Config struct {
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	Temperature     float32       `mapstructure:"temperature"`
	MaxOutputTokens int32         `mapstructure:"max_output_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the provider defaults without an API key
func DefaultConfig() *Config {
	return &Config{
		Model:           DefaultModel,
		Temperature:     0.2,
		MaxOutputTokens: 4096,
		Timeout:         120 * time.Second,
	}
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "vision.api_key", "", nil)
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "vision.model", "", nil)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "vision.temperature", c.Temperature, nil)
	}
	if c.MaxOutputTokens <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "vision.max_output_tokens", c.MaxOutputTokens, nil)
	}
	if c.Timeout <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "vision.timeout", c.Timeout, nil)
	}
	return nil
}

// contentGenerator is the part of the genai client the provider uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider extracts bill items with a Gemini model
type GeminiProvider struct {
	models contentGenerator
	config *Config
	logger logger.Logger
}

// NewGeminiProvider creates a provider backed by the Gemini API
func NewGeminiProvider(ctx context.Context, config *Config) (*GeminiProvider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.ProviderError(errors.CodeProviderFailed, providerGemini, err).
			WithSuggestion("check the vision API key")
	}

	return newGeminiProvider(client.Models, config), nil
}

func newGeminiProvider(models contentGenerator, config *Config) *GeminiProvider {
	return &GeminiProvider{
		models: models,
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("vision").WithField("provider", providerGemini),
	}
}

// Name returns the provider name
func (g *GeminiProvider) Name() string {
	return providerGemini
}

// ExtractPage sends one page with the extraction prompt and returns the
// text of the answer.
func (g *GeminiProvider) ExtractPage(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", errors.ValidationError(errors.CodeMissingField, "page", "", nil)
	}
	if !IsSupported(mimeType) {
		return "", errors.FileError(errors.CodeUnsupportedFile, mimeType, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractionPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     data,
					},
				},
			},
		},
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.config.Model, contents, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.config.Temperature),
		MaxOutputTokens: g.config.MaxOutputTokens,
	})
	if err != nil {
		return "", errors.ProviderError(errors.CodeProviderFailed, providerGemini,
			fmt.Errorf("generate content: %w", err)).WithContext("model", g.config.Model)
	}

	text := ""
	if resp != nil {
		text = strings.TrimSpace(resp.Text())
	}
	if text == "" {
		return "", errors.ProviderError(errors.CodeEmptyResponse, providerGemini, nil).
			WithContext("model", g.config.Model)
	}

	g.logger.WithFields(logger.Fields{
		"model":    g.config.Model,
		"mime":     mimeType,
		"bytes":    len(data),
		"chars":    len(text),
		"duration": time.Since(start).String(),
	}).Debug("Page read by vision model")

	return text, nil
}

var _ Provider = (*GeminiProvider)(nil)
