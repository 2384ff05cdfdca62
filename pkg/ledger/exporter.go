package ledger

import (
	"fmt"
	"time"

	"github.com/pigeonworks-llc/npd-client/pkg/money"
)

const (
	DefaultIncomeAccount     = "Income:SelfEmployed"
	DefaultReceivableAccount = "Assets:Receivable:NPD"
	DefaultCurrency          = "RUB"
)

// Accounts names the accounts an Exporter posts to.
type Accounts struct {
	Income     string
	Receivable string
	Currency   string
}

// IncomeEntry describes a registered receipt.
type IncomeEntry struct {
	ReceiptUUID   string
	OperationTime time.Time
	Name          string
	Payer         string
	Total         money.Amount
	// IncomeAccount overrides Accounts.Income when set.
	IncomeAccount string
}

// CancelEntry describes a cancelled receipt. It is booked in the month of
// the cancellation, not of the original income.
type CancelEntry struct {
	ReceiptUUID   string
	CancelledAt   time.Time
	Name          string
	Comment       string
	Total         money.Amount
	IncomeAccount string
}

// withDefaults fills empty accounts with the package defaults.
func (a Accounts) withDefaults() Accounts {
	if a.Income == "" {
		a.Income = DefaultIncomeAccount
	}
	if a.Receivable == "" {
		a.Receivable = DefaultReceivableAccount
	}
	if a.Currency == "" {
		a.Currency = DefaultCurrency
	}
	return a
}

// Exporter appends income and cancellation transactions to the ledger.
// Each receipt is booked at most once, and so is its reversal.
type Exporter struct {
	repo     Repository
	accounts Accounts
}

// NewExporter creates an Exporter. Empty accounts fall back to the defaults.
func NewExporter(repo Repository, accounts Accounts) *Exporter {
	return &Exporter{repo: repo, accounts: accounts.withDefaults()}
}

// RecordIncome books the receipt total as receivable income. It reports
// false when the receipt is already in the ledger.
func (e *Exporter) RecordIncome(entry IncomeEntry) (bool, error) {
	txn := Transaction{
		Date:      entry.OperationTime.Format("2006-01-02"),
		Payee:     entry.Payer,
		Narration: entry.Name,
		Tags:      []string{"npd"},
		Metadata:  map[string]string{metaReceipt: entry.ReceiptUUID},
		Postings: []Posting{
			{Account: e.accounts.Receivable, Amount: entry.Total, Currency: e.accounts.Currency},
			{Account: e.incomeAccount(entry.IncomeAccount), Amount: entry.Total.Neg(), Currency: e.accounts.Currency},
		},
	}

	written, err := e.appendOnce(entry.OperationTime, metaReceipt, entry.ReceiptUUID, txn)
	if err != nil {
		return false, fmt.Errorf("failed to export receipt %s: %w", entry.ReceiptUUID, err)
	}
	return written, nil
}

// RecordCancel books a reversal of a previously exported receipt. It reports
// false when the reversal is already in the ledger.
func (e *Exporter) RecordCancel(entry CancelEntry) (bool, error) {
	txn := Transaction{
		Date:      entry.CancelledAt.Format("2006-01-02"),
		Narration: fmt.Sprintf("Аннулирование: %s", entry.Name),
		Tags:      []string{"npd", "cancelled"},
		Metadata:  map[string]string{metaCancels: entry.ReceiptUUID},
		Postings: []Posting{
			{Account: e.incomeAccount(entry.IncomeAccount), Amount: entry.Total, Currency: e.accounts.Currency},
			{Account: e.accounts.Receivable, Amount: entry.Total.Neg(), Currency: e.accounts.Currency, Comment: entry.Comment},
		},
	}

	written, err := e.appendOnce(entry.CancelledAt, metaCancels, entry.ReceiptUUID, txn)
	if err != nil {
		return false, fmt.Errorf("failed to export cancellation of %s: %w", entry.ReceiptUUID, err)
	}
	return written, nil
}

// Metadata keys linking ledger transactions to receipts.
const (
	metaReceipt = "receipt"
	metaCancels = "cancels"
)

func (e *Exporter) appendOnce(at time.Time, key, uuid string, txn Transaction) (bool, error) {
	exists, err := e.repo.HasEntry(at.Format("2006-01"), key, uuid)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := e.repo.Append(txn); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Exporter) incomeAccount(override string) string {
	if override != "" {
		return override
	}
	return e.accounts.Income
}
