package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Index backends.
const (
	BackendAzure = "azure"
	BackendLocal = "local"
)

// Tokenizers.
const (
	TokenizerTiktoken = "tiktoken"
	TokenizerWords    = "words"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a time.Duration written as a string such as "1.5s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	CourtListener CourtListenerConfig `toml:"courtlistener"`
	Embedding     EmbeddingConfig     `toml:"embedding"`
	Index         IndexConfig         `toml:"index"`
	Chunking      ChunkingConfig      `toml:"chunking"`
	Storage       StorageConfig       `toml:"storage"`
}

type CourtListenerConfig struct {
	BaseURL           string   `toml:"base_url"`
	Token             string   `toml:"token"`
	PageSize          int      `toml:"page_size"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	Timeout           Duration `toml:"timeout"`
}

type EmbeddingConfig struct {
	APIType     string   `toml:"api_type"`
	Host        string   `toml:"host"`
	APIKey      string   `toml:"api_key"`
	Model       string   `toml:"model"`
	APIVersion  string   `toml:"api_version"`
	Dimensions  int      `toml:"dimensions"`
	BatchSize   int      `toml:"batch_size"`
	MaxAttempts int      `toml:"max_attempts"`
	RetryDelay  Duration `toml:"retry_delay"`
}

type IndexConfig struct {
	Backend         string `toml:"backend"`
	Endpoint        string `toml:"endpoint"`
	APIKey          string `toml:"api_key"`
	Name            string `toml:"name"`
	APIVersion      string `toml:"api_version"`
	UploadBatchSize int    `toml:"upload_batch_size"`
}

type ChunkingConfig struct {
	WindowSize int    `toml:"window_size"`
	Overlap    int    `toml:"overlap"`
	Tokenizer  string `toml:"tokenizer"`
	Encoding   string `toml:"encoding"`
}

type StorageConfig struct {
	// Path is the BadgerDB directory holding the run journal and the local index.
	// Empty disables the journal.
	Path string `toml:"path"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = os.TempDir()
	}
	return Config{
		CourtListener: CourtListenerConfig{
			BaseURL:           "https://www.courtlistener.com",
			PageSize:          20,
			RequestsPerSecond: 1,
			Burst:             3,
			Timeout:           Duration{30 * time.Second},
		},
		Embedding: EmbeddingConfig{
			APIType:     "azure",
			Model:       "text-embedding-ada-002",
			APIVersion:  "2023-05-15",
			Dimensions:  1536,
			BatchSize:   16,
			MaxAttempts: 3,
			RetryDelay:  Duration{time.Second},
		},
		Index: IndexConfig{
			Backend:         BackendAzure,
			Name:            "legal-cases-index",
			APIVersion:      "2023-11-01",
			UploadBatchSize: 100,
		},
		Chunking: ChunkingConfig{
			WindowSize: 512,
			Overlap:    50,
			Tokenizer:  TokenizerTiktoken,
			Encoding:   "cl100k_base",
		},
		Storage: StorageConfig{Path: filepath.Join(home, ".caseingest")},
	}
}

// Load reads defaults overlaid with the TOML file at path.
// An empty path returns the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return cfg, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations. Credentials are checked
// separately by MissingCredentials.
func (c *Config) Validate() error {
	switch {
	case c.CourtListener.PageSize <= 0:
		return invalid("courtlistener.page_size must be greater than 0")
	case c.CourtListener.Timeout.Duration <= 0:
		return invalid("courtlistener.timeout must be positive")
	case c.Embedding.APIType != "azure" && c.Embedding.APIType != "openai":
		return invalid("embedding.api_type must be azure or openai, got %q", c.Embedding.APIType)
	case c.Embedding.Dimensions <= 0:
		return invalid("embedding.dimensions must be greater than 0")
	case c.Embedding.BatchSize <= 0:
		return invalid("embedding.batch_size must be greater than 0")
	case c.Embedding.MaxAttempts <= 0:
		return invalid("embedding.max_attempts must be greater than 0")
	case c.Embedding.RetryDelay.Duration < 0:
		return invalid("embedding.retry_delay cannot be negative")
	case c.Index.Backend != BackendAzure && c.Index.Backend != BackendLocal:
		return invalid("index.backend must be %s or %s, got %q", BackendAzure, BackendLocal, c.Index.Backend)
	case c.Index.Name == "":
		return invalid("index.name is required")
	case c.Index.UploadBatchSize <= 0:
		return invalid("index.upload_batch_size must be greater than 0")
	case c.Index.Backend == BackendLocal && c.Storage.Path == "":
		return invalid("storage.path is required for the local index backend")
	case c.Chunking.WindowSize <= 0:
		return invalid("chunking.window_size must be greater than 0")
	case c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.WindowSize:
		return invalid("chunking.overlap must be in [0, window_size), got %d", c.Chunking.Overlap)
	case c.Chunking.Tokenizer != TokenizerTiktoken && c.Chunking.Tokenizer != TokenizerWords:
		return invalid("chunking.tokenizer must be %s or %s, got %q", TokenizerTiktoken, TokenizerWords, c.Chunking.Tokenizer)
	}
	return nil
}

// MissingCredentials names the environment variables whose values are
// required by the configured services but absent.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.CourtListener.Token == "" {
		missing = append(missing, "COURTLISTENER_API_TOKEN")
	}
	if c.Embedding.Host == "" {
		missing = append(missing, "AZURE_OPENAI_ENDPOINT")
	}
	if c.Embedding.APIType == "azure" && c.Embedding.APIKey == "" {
		missing = append(missing, "AZURE_OPENAI_API_KEY")
	}
	missing = append(missing, c.MissingIndexCredentials()...)
	return missing
}

// MissingIndexCredentials names the absent search service credentials.
func (c *Config) MissingIndexCredentials() []string {
	var missing []string
	if c.Index.Backend != BackendAzure {
		return nil
	}
	if c.Index.Endpoint == "" {
		missing = append(missing, "AZURE_SEARCH_ENDPOINT")
	}
	if c.Index.APIKey == "" {
		missing = append(missing, "AZURE_SEARCH_API_KEY")
	}
	return missing
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
