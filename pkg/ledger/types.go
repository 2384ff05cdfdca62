// Package ledger exports issued income to monthly Beancount files.
package ledger

import "github.com/pigeonworks-llc/npd-client/pkg/money"

// Transaction represents a Beancount transaction.
type Transaction struct {
	Date      string            // YYYY-MM-DD
	Narration string            // Transaction description
	Payee     string            // Payee name (optional)
	Tags      []string          // Tags (e.g., ["npd"])
	Metadata  map[string]string // Metadata key-value pairs, written sorted by key
	Postings  []Posting         // Transaction postings
}

// Posting represents a posting in a Beancount transaction.
type Posting struct {
	Account  string       // Account name (e.g., "Income:SelfEmployed")
	Amount   money.Amount // Amount (positive for debit, negative for credit)
	Currency string       // Currency code (e.g., "RUB")
	Comment  string       // Posting comment (optional)
}
