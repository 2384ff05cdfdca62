// Package config provides configuration management for the npd tools.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Nalog NalogConfig
	Paths PathsConfig
	Debug bool
}

// NalogConfig represents the tax service connection and credentials.
type NalogConfig struct {
	APIURL   string
	DeviceID string
	INN      string
	Password string
	Phone    string
}

// PathsConfig represents local storage locations. Empty fields are derived
// from Root by pathutil.
type PathsConfig struct {
	Root        string
	TokenPath   string
	DBPath      string
	LedgerRoot  string
	CatalogPath string
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	config := &Config{
		Nalog: NalogConfig{
			APIURL:   getEnvOrDefault("NALOG_API_URL", "https://lknpd.nalog.ru/api"),
			DeviceID: os.Getenv("NALOG_DEVICE_ID"),
			INN:      os.Getenv("NALOG_INN"),
			Password: os.Getenv("NALOG_PASSWORD"),
			Phone:    os.Getenv("NALOG_PHONE"),
		},
		Paths: PathsConfig{
			Root:        getEnvOrDefault("NPD_ROOT", defaultRoot()),
			TokenPath:   os.Getenv("NPD_TOKEN_PATH"),
			DBPath:      os.Getenv("NPD_DB_PATH"),
			LedgerRoot:  os.Getenv("NPD_LEDGER_ROOT"),
			CatalogPath: os.Getenv("NPD_CATALOG_PATH"),
		},
		Debug: os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate validates the configuration.
// It checks if all required fields are set, e.g. Validate([]string{"nalog", "inn"}).
func (c *Config) Validate(required ...[]string) error {
	var missing []string

	for _, path := range required {
		if len(path) < 2 {
			continue
		}

		var value string
		switch path[0] {
		case "nalog":
			switch path[1] {
			case "apiUrl":
				value = c.Nalog.APIURL
			case "deviceId":
				value = c.Nalog.DeviceID
			case "inn":
				value = c.Nalog.INN
			case "password":
				value = c.Nalog.Password
			case "phone":
				value = c.Nalog.Phone
			}
		case "paths":
			switch path[1] {
			case "root":
				value = c.Paths.Root
			case "tokenPath":
				value = c.Paths.TokenPath
			case "dbPath":
				value = c.Paths.DBPath
			case "ledgerRoot":
				value = c.Paths.LedgerRoot
			case "catalogPath":
				value = c.Paths.CatalogPath
			}
		}

		if value == "" {
			missing = append(missing, strings.Join(path, "."))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// defaultRoot returns ~/.npd, or .npd when the home directory is unknown.
func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".npd"
	}
	return filepath.Join(home, ".npd")
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
