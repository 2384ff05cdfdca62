package income

import (
	"encoding/json"
	"strings"

	"github.com/pigeonworks-llc/npd-client/pkg/money"
	"github.com/pigeonworks-llc/npd-client/pkg/nalogerr"
)

// ServiceItem is one billable line of a receipt.
type ServiceItem struct {
	name     string
	amount   money.Amount
	quantity money.Quantity
}

// NewServiceItem validates its arguments and returns an immutable item.
// The name is stored trimmed.
func NewServiceItem(name string, amount money.Amount, quantity money.Quantity) (ServiceItem, error) {
	item := ServiceItem{
		name:     strings.TrimSpace(name),
		amount:   amount,
		quantity: quantity,
	}
	if err := item.Validate(); err != nil {
		return ServiceItem{}, err
	}
	return item, nil
}

// Validate checks the item invariants. It only fails for the zero value or
// for values built outside NewServiceItem.
func (s ServiceItem) Validate() error {
	if s.name == "" {
		return nalogerr.Validation("name", "required", "service name must not be empty")
	}
	if !s.amount.IsPositive() {
		return nalogerr.Validation("amount", "positive", "amount must be greater than zero, got "+s.amount.String())
	}
	if !s.quantity.IsPositive() {
		return nalogerr.Validation("quantity", "positive", "quantity must be greater than zero, got "+s.quantity.String())
	}
	return nil
}

func (s ServiceItem) Name() string             { return s.name }
func (s ServiceItem) Amount() money.Amount     { return s.amount }
func (s ServiceItem) Quantity() money.Quantity { return s.quantity }

// Total returns amount × quantity.
func (s ServiceItem) Total() money.Amount {
	return s.amount.Mul(s.quantity)
}

type serviceItemJSON struct {
	Name     string         `json:"name"`
	Amount   money.Amount   `json:"amount"`
	Quantity money.Quantity `json:"quantity"`
}

// MarshalJSON encodes the item as the tax service expects it.
func (s ServiceItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(serviceItemJSON{Name: s.name, Amount: s.amount, Quantity: s.quantity})
}

// UnmarshalJSON decodes and validates an item.
func (s *ServiceItem) UnmarshalJSON(data []byte) error {
	var raw serviceItemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	item, err := NewServiceItem(raw.Name, raw.Amount, raw.Quantity)
	if err != nil {
		return err
	}
	*s = item
	return nil
}

// TotalAmount sums the totals of items.
func TotalAmount(items []ServiceItem) money.Amount {
	totals := make([]money.Amount, len(items))
	for i, item := range items {
		totals[i] = item.Total()
	}
	return money.Sum(totals...)
}

// ValidateItems checks a receipt's item list: at least one item, each valid.
func ValidateItems(items []ServiceItem) error {
	if len(items) == 0 {
		return nalogerr.Validation("services", "required", "at least one service item is required")
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}
