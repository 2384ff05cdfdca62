package nalog

import (
	"context"
	"net/http"
)

// TaxAPI reads accrued taxes and payments.
type TaxAPI struct {
	session *Session
}

// Get returns the current tax summary.
func (a *TaxAPI) Get(ctx context.Context) (*TaxSummary, error) {
	var summary TaxSummary
	if err := a.session.call(ctx, "tax.get", http.MethodGet, "/v1/taxes", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// History returns accrued tax periods. An empty oktmo means all regions.
func (a *TaxAPI) History(ctx context.Context, oktmo string) (*TaxHistory, error) {
	body := map[string]any{"oktmo": nullable(oktmo)}

	var history TaxHistory
	if err := a.session.call(ctx, "tax.history", http.MethodPost, "/v1/taxes/history", body, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// Payments returns tax payments, optionally only completed ones.
func (a *TaxAPI) Payments(ctx context.Context, oktmo string, onlyPaid bool) (*TaxPayments, error) {
	body := map[string]any{
		"oktmo":    nullable(oktmo),
		"onlyPaid": onlyPaid,
	}

	var payments TaxPayments
	if err := a.session.call(ctx, "tax.payments", http.MethodPost, "/v1/taxes/payments", body, &payments); err != nil {
		return nil, err
	}
	return &payments, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
