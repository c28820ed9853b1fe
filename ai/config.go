// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"strings"
)

// APIType selects the wire dialect of the embedding service.
type APIType string

const (
	// APITypeAzure targets an Azure OpenAI resource; Model names the deployment.
	APITypeAzure APIType = "azure"

	// APITypeOpenAI targets the OpenAI API or an OpenAI-compatible server.
	APITypeOpenAI APIType = "openai"
)

// Config holds configuration for the embedding service.
type Config struct {
	// APIType selects Azure OpenAI or an OpenAI-compatible API.
	// Default: azure
	APIType APIType

	// Host is the base URL for the embedding service API.
	// Example: "https://my-resource.openai.azure.com" or "http://localhost:11434/v1"
	Host string

	// APIKey authenticates against the service. Local OpenAI-compatible servers
	// accept any value; "none" is sent when empty.
	APIKey string

	// Model is the model identifier, or the deployment name for Azure.
	// Example: "text-embedding-ada-002"
	Model string

	// APIVersion is the Azure OpenAI REST API version. Ignored for openai.
	APIVersion string

	// Dimensions is the vector length the model produces. The index schema is
	// declared with it and every embedding is checked against it.
	// Default: 1536
	Dimensions int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithAPIType sets the wire dialect.
func WithAPIType(apiType APIType) ConfigOption {
	return func(c *Config) {
		c.APIType = apiType
	}
}

// WithHost sets the embedding service host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithModel sets the embedding model or Azure deployment name.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithAPIVersion sets the Azure OpenAI API version.
func WithAPIVersion(version string) ConfigOption {
	return func(c *Config) {
		c.APIVersion = version
	}
}

// WithDimensions sets the expected embedding dimension.
func WithDimensions(dimensions int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dimensions
	}
}

// DefaultConfig returns a Config for an Azure OpenAI ada-002 deployment.
// Host and APIKey have no defaults.
func DefaultConfig() *Config {
	return &Config{
		APIType:    APITypeAzure,
		Model:      "text-embedding-ada-002",
		APIVersion: "2023-05-15",
		Dimensions: 1536,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//   cfg := NewConfig(
//       WithHost("https://my-resource.openai.azure.com"),
//       WithAPIKey(os.Getenv("AZURE_OPENAI_API_KEY")),
//   )
//
// Example with a local OpenAI-compatible server:
//   cfg := NewConfig(
//       WithAPIType(APITypeOpenAI),
//       WithHost("http://localhost:11434"),
//       WithModel("nomic-embed-text"),
//       WithDimensions(768),
//   )
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// OpenAI-compatible hosts get the /v1 suffix most servers (Ollama, LocalAI, vLLM)
// require; Azure hosts lose any trailing slash.
func (c *Config) Normalize() {
	c.APIType = APIType(strings.ToLower(string(c.APIType)))
	if c.APIType == "" {
		c.APIType = APITypeAzure
	}
	if c.Host == "" {
		return
	}
	switch c.APIType {
	case APITypeOpenAI:
		if !strings.HasSuffix(c.Host, "/v1") {
			c.Host = strings.TrimSuffix(c.Host, "/") + "/v1"
		}
	case APITypeAzure:
		c.Host = strings.TrimRight(c.Host, "/")
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.APIType != APITypeAzure && c.APIType != APITypeOpenAI {
		return errors.New("ai config: APIType must be azure or openai")
	}
	if c.Host == "" {
		return errors.New("ai config: Host is required")
	}
	if c.Model == "" {
		return errors.New("ai config: Model is required")
	}
	if c.APIType == APITypeAzure {
		if c.APIKey == "" {
			return errors.New("ai config: APIKey is required for azure")
		}
		if c.APIVersion == "" {
			return errors.New("ai config: APIVersion is required for azure")
		}
	}
	if c.Dimensions <= 0 {
		return errors.New("ai config: Dimensions must be greater than 0")
	}
	return nil
}
