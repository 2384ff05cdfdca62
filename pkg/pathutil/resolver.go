// Package pathutil provides centralized path management for the npd client's
// local state: token bundle, device id, issue history, ledger and catalog.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathResolver manages paths for the token bundle, database, ledger files and catalog.
type PathResolver struct {
	root         string
	tokenPath    string
	deviceIDPath string
	databasePath string
	ledgerRoot   string
	catalogPath  string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// Root is the state directory (e.g., ~/.npd)
	Root string
	// TokenPath is the path to the persisted token bundle
	TokenPath string
	// DatabasePath is the path to the SQLite database file for issue history
	DatabasePath string
	// LedgerRoot is the root directory for the monthly Beancount ledger
	LedgerRoot string
	// CatalogPath is the path to the YAML service catalog
	CatalogPath string
}

// New creates a new PathResolver with the given configuration.
// Empty paths default to token.json, history.db, ledger/ and services.yaml
// under Root. The device id is always kept next to the token bundle.
func New(config Config) *PathResolver {
	tokenPath := config.TokenPath
	if tokenPath == "" {
		tokenPath = filepath.Join(config.Root, "token.json")
	}

	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(config.Root, "history.db")
	}

	ledgerRoot := config.LedgerRoot
	if ledgerRoot == "" {
		ledgerRoot = filepath.Join(config.Root, "ledger")
	}

	catalogPath := config.CatalogPath
	if catalogPath == "" {
		catalogPath = filepath.Join(config.Root, "services.yaml")
	}

	return &PathResolver{
		root:         config.Root,
		tokenPath:    tokenPath,
		deviceIDPath: filepath.Join(filepath.Dir(tokenPath), "device-id"),
		databasePath: dbPath,
		ledgerRoot:   ledgerRoot,
		catalogPath:  catalogPath,
	}
}

// FromEnv creates a PathResolver from environment variables.
// Expected environment variables:
//   - NPD_ROOT: State directory (required)
//   - NPD_TOKEN_PATH: Token bundle path (optional)
//   - NPD_DB_PATH: Database file path (optional)
//   - NPD_LEDGER_ROOT: Ledger directory (optional)
//   - NPD_CATALOG_PATH: Service catalog path (optional)
func FromEnv() (*PathResolver, error) {
	root := os.Getenv("NPD_ROOT")
	if root == "" {
		return nil, fmt.Errorf("NPD_ROOT environment variable is required")
	}

	return New(Config{
		Root:         root,
		TokenPath:    os.Getenv("NPD_TOKEN_PATH"),
		DatabasePath: os.Getenv("NPD_DB_PATH"),
		LedgerRoot:   os.Getenv("NPD_LEDGER_ROOT"),
		CatalogPath:  os.Getenv("NPD_CATALOG_PATH"),
	}), nil
}

// GetRoot returns the state directory.
func (p *PathResolver) GetRoot() string {
	return p.root
}

// GetTokenPath returns the token bundle path.
func (p *PathResolver) GetTokenPath() string {
	return p.tokenPath
}

// GetDeviceIDPath returns the device id file path.
func (p *PathResolver) GetDeviceIDPath() string {
	return p.deviceIDPath
}

// GetDatabasePath returns the database file path.
func (p *PathResolver) GetDatabasePath() string {
	return p.databasePath
}

// GetLedgerRoot returns the ledger root directory.
func (p *PathResolver) GetLedgerRoot() string {
	return p.ledgerRoot
}

// GetCatalogPath returns the service catalog path.
func (p *PathResolver) GetCatalogPath() string {
	return p.catalogPath
}

// GetYearDir returns the ledger directory path for a year.
// Example: ~/.npd/ledger/2024
func (p *PathResolver) GetYearDir(year string) string {
	return filepath.Join(p.ledgerRoot, year)
}

// GetMonthFilePath returns the ledger file path for a month.
// yearMonth should be in YYYY-MM format.
// Example: ~/.npd/ledger/2024/2024-01.beancount
func (p *PathResolver) GetMonthFilePath(yearMonth string) (string, error) {
	parts := strings.Split(yearMonth, "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return "", fmt.Errorf("invalid year-month format: %s. Expected YYYY-MM", yearMonth)
	}

	year := parts[0]
	yearDir := p.GetYearDir(year)
	filename := fmt.Sprintf("%s.beancount", yearMonth)

	return filepath.Join(yearDir, filename), nil
}

// EnsureDir creates a directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureParentDir ensures the parent directory of a file exists.
func (p *PathResolver) EnsureParentDir(filePath string) error {
	dir := filepath.Dir(filePath)
	return p.EnsureDir(dir)
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
