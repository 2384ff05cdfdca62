package ledger

import (
	"fmt"
	"sort"
	"strings"
)

// FormatTransaction formats a Beancount transaction as a string.
func FormatTransaction(txn Transaction) string {
	var sb strings.Builder

	// Transaction header
	sb.WriteString(txn.Date)
	sb.WriteString(" *")
	if txn.Payee != "" {
		sb.WriteString(fmt.Sprintf(" %s", quote(txn.Payee)))
	}
	sb.WriteString(fmt.Sprintf(" %s", quote(txn.Narration)))
	if len(txn.Tags) > 0 {
		sb.WriteString(" #")
		sb.WriteString(strings.Join(txn.Tags, " #"))
	}
	sb.WriteString("\n")

	keys := make([]string, 0, len(txn.Metadata))
	for k := range txn.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %s: %s\n", k, quote(txn.Metadata[k])))
	}

	// Postings
	for _, posting := range txn.Postings {
		sb.WriteString("  ")
		sb.WriteString(posting.Account)

		// Right-align amount (typical Beancount style)
		spaces := max(1, 60-len(posting.Account))
		sb.WriteString(strings.Repeat(" ", spaces))

		sb.WriteString(fmt.Sprintf("%s %s", posting.Amount.StringFixed(), posting.Currency))

		if posting.Comment != "" {
			sb.WriteString(fmt.Sprintf(" ; %s", posting.Comment))
		}

		sb.WriteString("\n")
	}

	return sb.String()
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
