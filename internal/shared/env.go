package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override file-based configuration.
const (
	EnvAPIKeyFile       = "SUBX_API_KEY_FILE"
	EnvClientSecretFile = "SUBX_CLIENT_SECRET_FILE"
	EnvTokenFile        = "SUBX_TOKEN_FILE"
	EnvSnapshotPath     = "SUBX_SNAPSHOT_PATH"
	EnvDatabasePath     = "SUBX_DATABASE_PATH"
	EnvEndpoint         = "SUBX_ENDPOINT"
	EnvLogLevel         = "SUBX_LOG_LEVEL"
	EnvWritesPerSecond  = "SUBX_WRITES_PER_SECOND"
)

// LoadDotEnv loads variables from the given .env files into the process environment.
//
// Missing files are skipped. Variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("%w: failed to load %s: %v", ErrConfiguration, p, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values with any SUBX_* variables found through lookup.
//
// lookup is usually [os.LookupEnv].
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	strs := map[string]*string{
		EnvAPIKeyFile:       &c.YouTube.APIKeyFile,
		EnvClientSecretFile: &c.YouTube.ClientSecretFile,
		EnvTokenFile:        &c.YouTube.TokenFile,
		EnvSnapshotPath:     &c.Transfer.SnapshotPath,
		EnvDatabasePath:     &c.Database.Path,
		EnvEndpoint:         &c.YouTube.Endpoint,
		EnvLogLevel:         &c.Log.Level,
	}
	for key, target := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*target = v
		}
	}

	if v, ok := lookup(EnvWritesPerSecond); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrConfiguration, EnvWritesPerSecond, v)
		}
		c.Transfer.WritesPerSecond = rps
	}

	return c.Validate()
}
