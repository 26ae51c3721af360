package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// MaxPageSize is the largest page the subscriptions endpoint accepts.
const MaxPageSize = 50

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	YouTube  YouTubeConfig  `toml:"youtube"`
	OAuth    OAuthConfig    `toml:"oauth"`
	Transfer TransferConfig `toml:"transfer"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// YouTubeConfig contains YouTube Data API credentials and file locations.
type YouTubeConfig struct {
	APIKeyFile       string   `toml:"api_key_file"`
	ClientSecretFile string   `toml:"client_secret_file"`
	TokenFile        string   `toml:"token_file"`
	Endpoint         string   `toml:"endpoint"`
	PageSize         int      `toml:"page_size"`
	Scopes           []string `toml:"scopes"`
}

// OAuthConfig controls the interactive consent flow.
type OAuthConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	OpenBrowser bool   `toml:"open_browser"`
	Console     bool   `toml:"console"`
}

// TransferConfig contains transfer pipeline settings.
type TransferConfig struct {
	SnapshotPath    string  `toml:"snapshot_path"`
	WritesPerSecond float64 `toml:"writes_per_second"`
}

// DatabaseConfig contains run history database settings.
type DatabaseConfig struct {
	Enabled      bool   `toml:"enabled"`
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads a TOML configuration file from the specified path.
//
// Keys absent from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate checks values that would otherwise fail later in the pipeline.
func (c *Config) Validate() error {
	switch {
	case c.YouTube.APIKeyFile == "":
		return fmt.Errorf("%w: youtube.api_key_file is empty", ErrConfiguration)
	case c.YouTube.ClientSecretFile == "":
		return fmt.Errorf("%w: youtube.client_secret_file is empty", ErrConfiguration)
	case c.YouTube.TokenFile == "":
		return fmt.Errorf("%w: youtube.token_file is empty", ErrConfiguration)
	case len(c.YouTube.Scopes) == 0:
		return fmt.Errorf("%w: youtube.scopes is empty", ErrConfiguration)
	case c.YouTube.PageSize < 0 || c.YouTube.PageSize > MaxPageSize:
		return fmt.Errorf("%w: youtube.page_size must be between 1 and %d", ErrConfiguration, MaxPageSize)
	case c.Transfer.WritesPerSecond < 0:
		return fmt.Errorf("%w: transfer.writes_per_second must not be negative", ErrConfiguration)
	case c.OAuth.Port < 0 || c.OAuth.Port > 65535:
		return fmt.Errorf("%w: oauth.port out of range", ErrConfiguration)
	}
	return nil
}

// PageSize returns the configured page size, defaulting to [MaxPageSize].
func (c *Config) PageSize() int64 {
	if c.YouTube.PageSize <= 0 {
		return MaxPageSize
	}
	return int64(c.YouTube.PageSize)
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
