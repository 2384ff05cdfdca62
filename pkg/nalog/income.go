package nalog

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pigeonworks-llc/npd-client/pkg/income"
	"github.com/pigeonworks-llc/npd-client/pkg/money"
	"github.com/pigeonworks-llc/npd-client/pkg/nalogerr"
)

// IncomeAPI registers income and obtains receipts for it.
type IncomeAPI struct {
	session *Session
}

// IncomeOption customizes an income registration.
type IncomeOption func(*incomeRequest)

// WithOperationTime sets when the service was paid for. Default: now.
func WithOperationTime(t time.Time) IncomeOption {
	return func(r *incomeRequest) { r.operationTime = t }
}

// WithPaymentType sets cash or bank transfer. Default: cash.
func WithPaymentType(p income.PaymentType) IncomeOption {
	return func(r *incomeRequest) { r.PaymentType = p }
}

// WithIgnoreMaxTotalIncomeRestriction asks the service to accept income
// above the yearly ceiling check.
func WithIgnoreMaxTotalIncomeRestriction() IncomeOption {
	return func(r *incomeRequest) { r.IgnoreMaxTotalIncomeRestriction = true }
}

type incomeRequest struct {
	OperationTime                   string               `json:"operationTime"`
	RequestTime                     string               `json:"requestTime"`
	Services                        []income.ServiceItem `json:"services"`
	TotalAmount                     string               `json:"totalAmount"`
	Client                          income.Client        `json:"client"`
	PaymentType                     income.PaymentType   `json:"paymentType"`
	IgnoreMaxTotalIncomeRestriction bool                 `json:"ignoreMaxTotalIncomeRestriction"`

	operationTime time.Time
}

// Create registers income for a single service. The item and client are
// validated before any network call.
func (a *IncomeAPI) Create(ctx context.Context, name string, amount money.Amount, quantity money.Quantity, client *income.Client, opts ...IncomeOption) (*IncomeResult, error) {
	item, err := income.NewServiceItem(name, amount, quantity)
	if err != nil {
		return nil, err
	}
	return a.CreateMultipleItems(ctx, []income.ServiceItem{item}, client, opts...)
}

// CreateMultipleItems registers income for several services on one receipt.
// A nil client means an anonymous private payer.
func (a *IncomeAPI) CreateMultipleItems(ctx context.Context, items []income.ServiceItem, client *income.Client, opts ...IncomeOption) (*IncomeResult, error) {
	const op = "income.create"

	if err := income.ValidateItems(items); err != nil {
		return nil, err
	}

	payer := income.AnonymousClient()
	if client != nil {
		if err := client.Validate(); err != nil {
			return nil, err
		}
		payer = *client
	}

	now := a.session.now()
	req := &incomeRequest{
		Services:      items,
		Client:        payer,
		PaymentType:   income.PaymentCash,
		operationTime: now,
	}
	for _, opt := range opts {
		opt(req)
	}

	if !req.PaymentType.Valid() {
		return nil, nalogerr.Validation("paymentType", "enum", "unknown payment type "+string(req.PaymentType))
	}
	if req.operationTime.IsZero() {
		return nil, nalogerr.Validation("operationTime", "required", "operation time must be set")
	}

	total := income.TotalAmount(items)
	req.TotalAmount = total.String()
	req.OperationTime = req.operationTime.Format(time.RFC3339)
	req.RequestTime = now.Format(time.RFC3339)

	var result IncomeResult
	if err := a.session.call(ctx, op, http.MethodPost, "/v1/income", req, &result); err != nil {
		return nil, err
	}
	if result.ApprovedReceiptUUID == "" {
		return nil, nalogerr.Transport(op, errors.New("response has no receipt uuid"))
	}

	result.TotalAmount = total
	a.session.logger.Info("income registered", "uuid", result.ApprovedReceiptUUID, "total", total.String(), "items", len(items))
	return &result, nil
}
