package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"
)

func receiptKey(inn, id string) string {
	return inn + "/" + id
}

// NewReceiptID returns a fresh receipt identifier in the service's
// 10-character format.
func NewReceiptID() string {
	return "200" + strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
}

// CreateReceipt stores a new receipt. ReceiptID is assigned when empty.
func (s *Store) CreateReceipt(r *Receipt) (*Receipt, error) {
	if r.INN == "" {
		return nil, fmt.Errorf("receipt INN is required")
	}
	if r.ReceiptID == "" {
		r.ReceiptID = NewReceiptID()
	}

	if err := s.Put(BucketReceipts, receiptKey(r.INN, r.ReceiptID), r); err != nil {
		return nil, fmt.Errorf("failed to save receipt: %w", err)
	}

	return r, nil
}

// GetReceipt retrieves a receipt of inn by ID.
func (s *Store) GetReceipt(inn, id string) (*Receipt, error) {
	var receipt Receipt
	if err := s.Get(BucketReceipts, receiptKey(inn, id), &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ListReceipts retrieves the receipts of inn ordered by operation time,
// optionally limited to those not cancelled.
func (s *Store) ListReceipts(inn string, activeOnly bool) ([]*Receipt, error) {
	results, err := s.List(BucketReceipts, inn+"/", nil)
	if err != nil {
		return nil, err
	}

	receipts := make([]*Receipt, 0, len(results))
	for _, data := range results {
		var receipt Receipt
		if err := json.Unmarshal(data, &receipt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal receipt: %w", err)
		}
		if activeOnly && receipt.Cancelled() {
			continue
		}
		receipts = append(receipts, &receipt)
	}

	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].OperationTime < receipts[j].OperationTime
	})

	return receipts, nil
}

// TotalIncome sums the active receipts of inn whose tax period starts
// with yearPrefix (e.g. "2026").
func (s *Store) TotalIncome(inn, yearPrefix string) (decimal.Decimal, error) {
	receipts, err := s.ListReceipts(inn, true)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, r := range receipts {
		if strings.HasPrefix(fmt.Sprint(r.TaxPeriodID), yearPrefix) {
			total = total.Add(r.TotalAmount)
		}
	}
	return total, nil
}

// CancelReceipt marks a receipt cancelled. Cancelling twice fails with
// ErrAlreadyCancelled and leaves the first cancellation intact.
func (s *Store) CancelReceipt(inn, id string, info CancellationInfo) (*Receipt, error) {
	var receipt Receipt
	err := s.db.Update(func(tx *bolt.Tx) error {
		key := receiptKey(inn, id)
		if err := getJSON(tx, BucketReceipts, key, &receipt); err != nil {
			return err
		}
		if receipt.Cancelled() {
			return ErrAlreadyCancelled
		}
		receipt.CancellationInfo = &info
		return putJSON(tx, BucketReceipts, key, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}
