package nalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pigeonworks-llc/npd-client/pkg/income"
	"github.com/pigeonworks-llc/npd-client/pkg/nalogerr"
)

// ReceiptAPI reads and cancels issued receipts. Nothing is cached: every
// read goes to the service.
type ReceiptAPI struct {
	session *Session
}

// CancelOption customizes a cancellation.
type CancelOption func(*cancelRequest)

// WithCancelTime sets the cancellation operation time. Default: now.
func WithCancelTime(t time.Time) CancelOption {
	return func(r *cancelRequest) { r.operationTime = t }
}

type cancelRequest struct {
	OperationTime string              `json:"operationTime"`
	RequestTime   string              `json:"requestTime"`
	Comment       income.CancelReason `json:"comment"`
	ReceiptUUID   string              `json:"receiptUuid"`
	PartnerCode   *string             `json:"partnerCode"`

	operationTime time.Time
}

type cancelResponse struct {
	IncomeInfo IncomeInfo `json:"incomeInfo"`
}

// JSON fetches the receipt document.
func (a *ReceiptAPI) JSON(ctx context.Context, uuid string) (*Receipt, error) {
	const op = "receipt.json"

	path, err := a.receiptPath(op, uuid, "json")
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := a.session.call(ctx, op, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, nalogerr.Transport(op, fmt.Errorf("failed to decode receipt: %w", err))
	}
	receipt.Raw = raw

	return &receipt, nil
}

// PrintURL returns the address of the printable receipt. It needs the
// profile INN of an authenticated session but performs no request.
func (a *ReceiptAPI) PrintURL(uuid string) (string, error) {
	path, err := a.receiptPath("receipt.print", uuid, "print")
	if err != nil {
		return "", err
	}
	return a.session.baseURL + path, nil
}

// Cancel annuls a receipt. Cancelling an already cancelled receipt is not
// an error: the earlier cancellation is reported with AlreadyCancelled set.
func (a *ReceiptAPI) Cancel(ctx context.Context, uuid string, reason income.CancelReason, opts ...CancelOption) (*CancelResult, error) {
	const op = "receipt.cancel"

	if !reason.Valid() {
		return nil, nalogerr.Validation("comment", "enum", "unknown cancel reason "+string(reason))
	}

	existing, err := a.JSON(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if existing.Cancelled() {
		a.session.logger.Info("receipt already cancelled", "uuid", uuid)
		return alreadyCancelled(uuid, existing), nil
	}

	now := a.session.now()
	req := &cancelRequest{
		Comment:       reason,
		ReceiptUUID:   uuid,
		operationTime: now,
	}
	for _, opt := range opts {
		opt(req)
	}
	req.OperationTime = req.operationTime.Format(time.RFC3339)
	req.RequestTime = now.Format(time.RFC3339)

	var resp cancelResponse
	if err := a.session.call(ctx, op, http.MethodPost, "/v1/cancel", req, &resp); err != nil {
		if nalogerr.KindOf(err) != nalogerr.KindDomain {
			return nil, err
		}
		// Lost a race with another cancellation: report it if so.
		if current, ferr := a.JSON(ctx, uuid); ferr == nil && current.Cancelled() {
			return alreadyCancelled(uuid, current), nil
		}
		return nil, err
	}

	result := &CancelResult{
		ReceiptUUID: uuid,
		IncomeInfo:  &resp.IncomeInfo,
	}
	if resp.IncomeInfo.CancellationInfo != nil {
		result.CancellationInfo = *resp.IncomeInfo.CancellationInfo
	} else {
		result.CancellationInfo = CancellationInfo{OperationTime: req.OperationTime, Comment: string(reason)}
	}

	a.session.logger.Info("receipt cancelled", "uuid", uuid, "reason", string(reason))
	return result, nil
}

func alreadyCancelled(uuid string, r *Receipt) *CancelResult {
	return &CancelResult{
		ReceiptUUID:      uuid,
		CancellationInfo: *r.CancellationInfo,
		AlreadyCancelled: true,
	}
}

func (a *ReceiptAPI) receiptPath(op, uuid, kind string) (string, error) {
	uuid = strings.TrimSpace(uuid)
	if uuid == "" {
		return "", nalogerr.Validation("uuid", "required", "receipt uuid is required")
	}
	inn, err := a.session.profileINN(op)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/v1/receipt/%s/%s/%s", url.PathEscape(inn), url.PathEscape(uuid), kind), nil
}
