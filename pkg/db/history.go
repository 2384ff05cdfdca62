package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pigeonworks-llc/npd-client/pkg/money"
)

// ReceiptStatus represents the local status of an issued receipt.
type ReceiptStatus string

const (
	StatusIssued    ReceiptStatus = "issued"
	StatusCancelled ReceiptStatus = "cancelled"
)

// IssuedReceipt represents an issue history record.
type IssuedReceipt struct {
	UUID          string
	INN           string
	Name          string
	Total         money.Amount
	PaymentType   string
	OperationTime string
	Status        ReceiptStatus
	CancelComment sql.NullString
	CancelledAt   sql.NullTime
	CreatedAt     time.Time
	// IncomeAccount is the ledger account the receipt was booked to, or ""
	// for the default account.
	IncomeAccount string
}

// IssueHistory manages issue history operations.
type IssueHistory struct {
	conn *Connection
}

// NewIssueHistory creates a new IssueHistory instance.
func NewIssueHistory(conn *Connection) *IssueHistory {
	return &IssueHistory{conn: conn}
}

// RecordIncome records a registered receipt.
// Recording the same uuid again refreshes its details but keeps its status.
func (h *IssueHistory) RecordIncome(record IssuedReceipt) error {
	query := `
		INSERT INTO issued_receipts (uuid, inn, name, total, payment_type, operation_time, income_account)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			inn = excluded.inn,
			name = excluded.name,
			total = excluded.total,
			payment_type = excluded.payment_type,
			operation_time = excluded.operation_time,
			income_account = COALESCE(excluded.income_account, issued_receipts.income_account)
	`

	_, err := h.conn.Exec(query,
		record.UUID,
		record.INN,
		record.Name,
		record.Total.String(),
		record.PaymentType,
		record.OperationTime,
		sql.NullString{String: record.IncomeAccount, Valid: record.IncomeAccount != ""},
	)

	if err != nil {
		return fmt.Errorf("failed to record income: %w", err)
	}

	return nil
}

// RecordCancel marks a receipt as cancelled.
// It returns false if the receipt is unknown or was already cancelled locally.
func (h *IssueHistory) RecordCancel(uuid, comment string, at time.Time) (bool, error) {
	var changed bool

	err := h.conn.Transaction(func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRow(`SELECT status FROM issued_receipts WHERE uuid = ?`, uuid).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if ReceiptStatus(status) == StatusCancelled {
			return nil
		}

		_, err = tx.Exec(`
			UPDATE issued_receipts
			SET status = ?, cancel_comment = ?, cancelled_at = ?
			WHERE uuid = ?
		`, string(StatusCancelled), comment, at.UTC(), uuid)
		if err != nil {
			return err
		}
		changed = true
		return nil
	})

	if err != nil {
		return false, fmt.Errorf("failed to record cancel: %w", err)
	}

	return changed, nil
}

const receiptColumns = `uuid, inn, name, total, payment_type, operation_time, status, cancel_comment, cancelled_at, created_at, income_account`

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row scanner) (*IssuedReceipt, error) {
	var record IssuedReceipt
	var total, status string
	var account sql.NullString

	if err := row.Scan(
		&record.UUID,
		&record.INN,
		&record.Name,
		&total,
		&record.PaymentType,
		&record.OperationTime,
		&status,
		&record.CancelComment,
		&record.CancelledAt,
		&record.CreatedAt,
		&account,
	); err != nil {
		return nil, err
	}

	amount, err := money.ParseAmount(total)
	if err != nil {
		return nil, fmt.Errorf("invalid total for receipt %s: %w", record.UUID, err)
	}
	record.Total = amount
	record.Status = ReceiptStatus(status)
	record.IncomeAccount = account.String

	return &record, nil
}

// GetReceipt retrieves an issue record by uuid.
// It returns nil if the receipt is not in the history.
func (h *IssueHistory) GetReceipt(uuid string) (*IssuedReceipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM issued_receipts WHERE uuid = ?`

	record, err := scanReceipt(h.conn.QueryRow(query, uuid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	return record, nil
}

// ListReceipts retrieves issue records, newest operation first.
// An empty status lists every record.
func (h *IssueHistory) ListReceipts(status ReceiptStatus) ([]IssuedReceipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM issued_receipts`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY operation_time DESC`

	rows, err := h.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	var records []IssuedReceipt
	for rows.Next() {
		record, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}

	return records, nil
}

// Stats represents issue statistics.
type Stats struct {
	Issued      int
	Cancelled   int
	IssuedTotal money.Amount
	LastIssue   sql.NullString
}

// GetStats retrieves issue statistics.
// IssuedTotal sums receipts that are still active.
func (h *IssueHistory) GetStats() (*Stats, error) {
	stats := Stats{IssuedTotal: money.AmountFromInt(0)}

	err := h.conn.QueryRow(`SELECT COUNT(*) FROM issued_receipts WHERE status = ?`, string(StatusIssued)).Scan(&stats.Issued)
	if err != nil {
		return nil, fmt.Errorf("failed to get issued count: %w", err)
	}

	err = h.conn.QueryRow(`SELECT COUNT(*) FROM issued_receipts WHERE status = ?`, string(StatusCancelled)).Scan(&stats.Cancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to get cancelled count: %w", err)
	}

	// Totals are summed in Go; SQLite would round TEXT decimals through REAL.
	rows, err := h.conn.Query(`SELECT total FROM issued_receipts WHERE status = ?`, string(StatusIssued))
	if err != nil {
		return nil, fmt.Errorf("failed to get issued totals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var total string
		if err := rows.Scan(&total); err != nil {
			return nil, fmt.Errorf("failed to scan total: %w", err)
		}
		amount, err := money.ParseAmount(total)
		if err != nil {
			return nil, fmt.Errorf("invalid total %q: %w", total, err)
		}
		stats.IssuedTotal = stats.IssuedTotal.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get issued totals: %w", err)
	}

	err = h.conn.QueryRow(`SELECT MAX(operation_time) FROM issued_receipts`).Scan(&stats.LastIssue)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get last issue time: %w", err)
	}

	return &stats, nil
}

// GetMetadata retrieves a metadata value.
func (h *IssueHistory) GetMetadata(key string) (string, error) {
	query := `SELECT value FROM sync_metadata WHERE key = ?`

	var value string
	err := h.conn.QueryRow(query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}

	return value, nil
}

// SetMetadata sets a metadata value.
func (h *IssueHistory) SetMetadata(key, value string) error {
	query := `
		INSERT INTO sync_metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := h.conn.Exec(query, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}

	return nil
}
