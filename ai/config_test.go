package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, APITypeAzure, cfg.APIType)
	assert.Empty(t, cfg.Host)
	assert.Equal(t, "text-embedding-ada-002", cfg.Model)
	assert.Equal(t, "2023-05-15", cfg.APIVersion)
	assert.Equal(t, 1536, cfg.Dimensions)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, APITypeAzure, cfg.APIType)
		assert.Equal(t, 1536, cfg.Dimensions)
	})

	t.Run("with azure resource", func(t *testing.T) {
		cfg := NewConfig(
			WithHost("https://legal.openai.azure.com/"),
			WithAPIKey("secret"),
			WithModel("ada-prod"),
		)

		assert.Equal(t, "https://legal.openai.azure.com/", cfg.Host)
		assert.Equal(t, "secret", cfg.APIKey)
		assert.Equal(t, "ada-prod", cfg.Model)
	})

	t.Run("with openai compatible server", func(t *testing.T) {
		cfg := NewConfig(
			WithAPIType(APITypeOpenAI),
			WithHost("http://localhost:11434"),
			WithModel("nomic-embed-text"),
			WithDimensions(768),
			WithAPIVersion(""),
		)

		assert.Equal(t, APITypeOpenAI, cfg.APIType)
		assert.Equal(t, 768, cfg.Dimensions)
		assert.Empty(t, cfg.APIVersion)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		apiType  APIType
		host     string
		expected string
	}{
		{"openai adds v1", APITypeOpenAI, "http://localhost:11434", "http://localhost:11434/v1"},
		{"openai trailing slash", APITypeOpenAI, "http://localhost:11434/", "http://localhost:11434/v1"},
		{"openai keeps v1", APITypeOpenAI, "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"azure trims slash", APITypeAzure, "https://legal.openai.azure.com/", "https://legal.openai.azure.com"},
		{"azure untouched", APITypeAzure, "https://legal.openai.azure.com", "https://legal.openai.azure.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{APIType: tt.apiType, Host: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.expected, cfg.Host)
		})
	}

	t.Run("empty api type becomes azure", func(t *testing.T) {
		cfg := &Config{APIType: "AZURE"}
		cfg.Normalize()
		assert.Equal(t, APITypeAzure, cfg.APIType)

		cfg = &Config{}
		cfg.Normalize()
		assert.Equal(t, APITypeAzure, cfg.APIType)
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return NewConfig(WithHost("https://legal.openai.azure.com"), WithAPIKey("k"))
	}

	t.Run("valid azure config", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("valid openai config without key", func(t *testing.T) {
		cfg := NewConfig(WithAPIType(APITypeOpenAI), WithHost("http://localhost:11434"))
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown api type", func(c *Config) { c.APIType = "bedrock" }, "APIType"},
		{"missing host", func(c *Config) { c.Host = "" }, "Host is required"},
		{"missing model", func(c *Config) { c.Model = "" }, "Model is required"},
		{"missing azure key", func(c *Config) { c.APIKey = "" }, "APIKey is required"},
		{"missing azure version", func(c *Config) { c.APIVersion = "" }, "APIVersion is required"},
		{"zero dimensions", func(c *Config) { c.Dimensions = 0 }, "Dimensions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
