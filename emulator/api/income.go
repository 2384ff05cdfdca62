package api

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pigeonworks-llc/npd-client/emulator/store"
)

var (
	incomeTypes    = map[string]bool{"FROM_INDIVIDUAL": true, "FROM_LEGAL_ENTITY": true, "FROM_FOREIGN_AGENCY": true}
	paymentTypes   = map[string]bool{"CASH": true, "ACCOUNT": true}
	cancelComments = map[string]bool{"Чек сформирован ошибочно": true, "Возврат средств": true}
)

type incomeRequest struct {
	OperationTime string `json:"operationTime"`
	RequestTime   string `json:"requestTime"`
	Services      []struct {
		Name     string          `json:"name"`
		Amount   decimal.Decimal `json:"amount"`
		Quantity decimal.Decimal `json:"quantity"`
	} `json:"services"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Client      struct {
		ContactPhone *string `json:"contactPhone"`
		DisplayName  *string `json:"displayName"`
		IncomeType   string  `json:"incomeType"`
		INN          *string `json:"inn"`
	} `json:"client"`
	PaymentType                     string `json:"paymentType"`
	IgnoreMaxTotalIncomeRestriction bool   `json:"ignoreMaxTotalIncomeRestriction"`
}

func (req *incomeRequest) validate() (time.Time, error) {
	opTime, err := time.Parse(time.RFC3339, req.OperationTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("operationTime is not a valid date")
	}
	if len(req.Services) == 0 {
		return time.Time{}, fmt.Errorf("services must not be empty")
	}

	sum := decimal.Zero
	for i, svc := range req.Services {
		if strings.TrimSpace(svc.Name) == "" {
			return time.Time{}, fmt.Errorf("services[%d].name is required", i)
		}
		if !svc.Amount.IsPositive() || !svc.Quantity.IsPositive() {
			return time.Time{}, fmt.Errorf("services[%d] must have positive amount and quantity", i)
		}
		sum = sum.Add(svc.Amount.Mul(svc.Quantity))
	}
	if !sum.Equal(req.TotalAmount) {
		return time.Time{}, fmt.Errorf("totalAmount %s does not match services sum %s", req.TotalAmount, sum)
	}

	if !incomeTypes[req.Client.IncomeType] {
		return time.Time{}, fmt.Errorf("client.incomeType %q is not supported", req.Client.IncomeType)
	}
	if !paymentTypes[req.PaymentType] {
		return time.Time{}, fmt.Errorf("paymentType %q is not supported", req.PaymentType)
	}

	return opTime, nil
}

// HandleIncome handles POST /api/v1/income.
func (s *Server) HandleIncome(w http.ResponseWriter, r *http.Request) {
	token := tokenFromContext(r.Context())

	var req incomeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation.failed", "Failed to parse request body")
		return
	}

	opTime, err := req.validate()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation.failed", err.Error())
		return
	}

	if !req.IgnoreMaxTotalIncomeRestriction {
		year := fmt.Sprint(opTime.Year())
		earned, err := s.store.TotalIncome(token.INN, year)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to compute income")
			return
		}
		if earned.Add(req.TotalAmount).GreaterThan(s.config.MaxYearIncome) {
			writeJSONError(w, http.StatusNotAcceptable, "income.limit.exceeded",
				fmt.Sprintf("Превышен лимит дохода %s руб. за %s год", s.config.MaxYearIncome, year))
			return
		}
	}

	services := make([]store.Service, len(req.Services))
	for i, svc := range req.Services {
		services[i] = store.Service{Name: svc.Name, Quantity: svc.Quantity, ServiceNumber: i, Amount: svc.Amount}
	}

	receipt, err := s.store.CreateReceipt(&store.Receipt{
		Services:          services,
		OperationTime:     opTime.Format(time.RFC3339),
		RequestTime:       req.RequestTime,
		RegisterTime:      s.now().Format(timeLayout),
		TaxPeriodID:       taxPeriod(opTime),
		PaymentType:       req.PaymentType,
		IncomeType:        req.Client.IncomeType,
		TotalAmount:       req.TotalAmount,
		SourceDeviceID:    token.DeviceID,
		ClientINN:         req.Client.INN,
		ClientDisplayName: req.Client.DisplayName,
		INN:               token.INN,
		Description:       []string{},
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to create receipt")
		return
	}

	s.logger.Info("income registered", "inn", token.INN, "uuid", receipt.ReceiptID, "total", receipt.TotalAmount.String())
	writeJSON(w, http.StatusOK, map[string]string{"approvedReceiptUuid": receipt.ReceiptID})
}

// HandleCancel handles POST /api/v1/cancel.
func (s *Server) HandleCancel(w http.ResponseWriter, r *http.Request) {
	token := tokenFromContext(r.Context())

	var req struct {
		OperationTime string  `json:"operationTime"`
		RequestTime   string  `json:"requestTime"`
		Comment       string  `json:"comment"`
		ReceiptUUID   string  `json:"receiptUuid"`
		PartnerCode   *string `json:"partnerCode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation.failed", "Failed to parse request body")
		return
	}
	if !cancelComments[req.Comment] {
		writeJSONError(w, http.StatusBadRequest, "validation.failed", "comment is not an accepted cancellation reason")
		return
	}
	opTime, err := time.Parse(time.RFC3339, req.OperationTime)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation.failed", "operationTime is not a valid date")
		return
	}

	receipt, err := s.store.CancelReceipt(token.INN, req.ReceiptUUID, store.CancellationInfo{
		OperationTime: opTime.Format(time.RFC3339),
		RegisterTime:  s.now().Format(timeLayout),
		TaxPeriodID:   taxPeriod(opTime),
		Comment:       req.Comment,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "receipt.not.found", "Чек не найден")
		return
	case errors.Is(err, store.ErrAlreadyCancelled):
		writeJSONError(w, http.StatusBadRequest, "receipt.already.cancelled", "Чек уже аннулирован")
		return
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to cancel receipt")
		return
	}

	name := ""
	if len(receipt.Services) > 0 {
		name = receipt.Services[0].Name
	}

	s.logger.Info("receipt cancelled", "inn", token.INN, "uuid", receipt.ReceiptID)
	writeJSON(w, http.StatusOK, map[string]any{"incomeInfo": map[string]any{
		"approvedReceiptUuid": receipt.ReceiptID,
		"name":                name,
		"operationTime":       receipt.OperationTime,
		"requestTime":         receipt.RequestTime,
		"paymentType":         receipt.PaymentType,
		"partnerCode":         receipt.PartnerCode,
		"totalAmount":         receipt.TotalAmount,
		"cancellationInfo":    receipt.CancellationInfo,
		"sourceDeviceId":      receipt.SourceDeviceID,
	}})
}

// HandleReceiptJSON handles GET /api/v1/receipt/{inn}/{uuid}/json.
func (s *Server) HandleReceiptJSON(w http.ResponseWriter, r *http.Request) {
	token := tokenFromContext(r.Context())

	inn := chi.URLParam(r, "inn")
	if inn != token.INN {
		writeJSONError(w, http.StatusForbidden, "access.denied", "Нет доступа к чеку")
		return
	}

	receipt, ok := s.lookupReceipt(w, inn, chi.URLParam(r, "uuid"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

var printTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html lang="ru">
<head><meta charset="UTF-8"><title>Чек №{{.ReceiptID}}</title></head>
<body>
<h1>Чек №{{.ReceiptID}}{{if .CancellationInfo}} (аннулирован){{end}}</h1>
<p>{{.OperationTime}}</p>
<ol>{{range .Services}}<li>{{.Name}}: {{.Quantity}} × {{.Amount}}</li>{{end}}</ol>
<p>Итого: {{.TotalAmount}}</p>
<p>ИНН: {{.INN}}</p>
</body>
</html>
`))

// HandleReceiptPrint handles GET /api/v1/receipt/{inn}/{uuid}/print.
func (s *Server) HandleReceiptPrint(w http.ResponseWriter, r *http.Request) {
	receipt, ok := s.lookupReceipt(w, chi.URLParam(r, "inn"), chi.URLParam(r, "uuid"))
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := printTemplate.Execute(w, receipt); err != nil {
		s.logger.Error("failed to render receipt", "error", err)
	}
}

func (s *Server) lookupReceipt(w http.ResponseWriter, inn, id string) (*store.Receipt, bool) {
	receipt, err := s.store.GetReceipt(inn, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "receipt.not.found", "Чек не найден")
		} else {
			writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to get receipt")
		}
		return nil, false
	}
	return receipt, true
}

// taxPeriod returns the YYYYMM period of t.
func taxPeriod(t time.Time) int {
	return t.Year()*100 + int(t.Month())
}
