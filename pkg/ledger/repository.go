package ledger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pigeonworks-llc/npd-client/pkg/pathutil"
)

// Repository stores ledger transactions in monthly Beancount files.
type Repository interface {
	// Append writes txn to the file of the month of txn.Date.
	Append(txn Transaction) error

	// HasEntry reports whether a month already holds a transaction
	// carrying the metadata key with the given value.
	HasEntry(yearMonth, key, value string) (bool, error)

	// ReadMonth returns the content of a month file, or "" if it is missing.
	ReadMonth(yearMonth string) (string, error)

	// Months lists the months of year that have a file.
	Months(year string) ([]string, error)
}

// Header describes the comment block that opens every new month file.
type Header struct {
	INN      string
	Accounts Accounts
}

// FileSystemRepository keeps one Beancount file per month under the
// ledger root: {root}/{YYYY}/{YYYY-MM}.beancount.
type FileSystemRepository struct {
	paths  *pathutil.PathResolver
	header Header
	now    func() time.Time

	mu sync.Mutex
}

// NewFileSystemRepository creates a repository writing under the ledger root
// of paths.
func NewFileSystemRepository(paths *pathutil.PathResolver, header Header) *FileSystemRepository {
	header.Accounts = header.Accounts.withDefaults()
	return &FileSystemRepository{
		paths:  paths,
		header: header,
		now:    time.Now,
	}
}

// Append writes txn to its month file, creating the file with a header first.
func (r *FileSystemRepository) Append(txn Transaction) error {
	date, err := time.Parse("2006-01-02", txn.Date)
	if err != nil {
		return fmt.Errorf("invalid transaction date %q: %w", txn.Date, err)
	}
	yearMonth := date.Format("2006-01")

	filePath, err := r.paths.GetMonthFilePath(yearMonth)
	if err != nil {
		return fmt.Errorf("failed to get month file path: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.createMonthFile(yearMonth, filePath); err != nil {
		return err
	}

	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open month file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatTransaction(txn) + "\n"); err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// HasEntry scans a month file for a `key: "value"` metadata line.
func (r *FileSystemRepository) HasEntry(yearMonth, key, value string) (bool, error) {
	filePath, err := r.paths.GetMonthFilePath(yearMonth)
	if err != nil {
		return false, fmt.Errorf("failed to get month file path: %w", err)
	}

	f, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to open month file: %w", err)
	}
	defer f.Close()

	want := fmt.Sprintf("%s: %s", key, quote(value))
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == want {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("failed to scan month file: %w", err)
	}

	return false, nil
}

// ReadMonth returns the content of a month file, or "" if it is missing.
func (r *FileSystemRepository) ReadMonth(yearMonth string) (string, error) {
	filePath, err := r.paths.GetMonthFilePath(yearMonth)
	if err != nil {
		return "", fmt.Errorf("failed to get month file path: %w", err)
	}

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read month file: %w", err)
	}

	return string(data), nil
}

// Months lists the months of year that have a file, e.g. ["2024-01", "2024-02"].
func (r *FileSystemRepository) Months(year string) ([]string, error) {
	entries, err := os.ReadDir(r.paths.GetYearDir(year))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read year directory: %w", err)
	}

	var months []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".beancount" {
			continue
		}
		months = append(months, strings.TrimSuffix(name, ".beancount"))
	}

	return months, nil
}

// createMonthFile writes the header of a month file that does not exist yet.
func (r *FileSystemRepository) createMonthFile(yearMonth, filePath string) error {
	if r.paths.FileExists(filePath) {
		return nil
	}
	if err := r.paths.EnsureParentDir(filePath); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	var header strings.Builder
	fmt.Fprintf(&header, "; NPD income for %s\n", yearMonth)
	if r.header.INN != "" {
		fmt.Fprintf(&header, "; Taxpayer INN: %s\n", r.header.INN)
	}
	a := r.header.Accounts
	fmt.Fprintf(&header, "; Accounts: %s, %s (%s)\n", a.Receivable, a.Income, a.Currency)
	fmt.Fprintf(&header, "; Generated at %s\n\n", r.now().Format(time.RFC3339))

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if os.IsExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create month file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(header.String()); err != nil {
		return fmt.Errorf("failed to write month header: %w", err)
	}
	return nil
}
