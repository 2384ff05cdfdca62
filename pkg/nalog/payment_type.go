package nalog

import (
	"context"
	"net/http"
)

// PaymentTypeAPI lists registered payment methods.
type PaymentTypeAPI struct {
	session *Session
}

type paymentTypeTable struct {
	Items []PaymentMethod `json:"items"`
}

// Table returns all registered payment methods.
func (a *PaymentTypeAPI) Table(ctx context.Context) ([]PaymentMethod, error) {
	var table paymentTypeTable
	if err := a.session.call(ctx, "payment_type.table", http.MethodGet, "/v1/payment-type/table", nil, &table); err != nil {
		return nil, err
	}
	return table.Items, nil
}

// Favorite returns the payment method marked as favorite, or nil.
func (a *PaymentTypeAPI) Favorite(ctx context.Context) (*PaymentMethod, error) {
	items, err := a.Table(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Favorite {
			return &items[i], nil
		}
	}
	return nil, nil
}
