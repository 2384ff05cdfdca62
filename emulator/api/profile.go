package api

import (
	"net/http"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pigeonworks-llc/npd-client/emulator/store"
)

const (
	defaultOKTMO  = "45000000"
	defaultRegion = "г. Москва"
)

var (
	rateIndividual = decimal.RequireFromString("0.04")
	rateBusiness   = decimal.RequireFromString("0.06")
)

// HandleUser handles GET /api/v1/user.
func (s *Server) HandleUser(w http.ResponseWriter, r *http.Request) {
	token := tokenFromContext(r.Context())

	acc, err := s.store.GetAccount(token.INN)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to get account")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":                      1,
		"lastName":                nil,
		"displayName":             acc.DisplayName,
		"middleName":              nil,
		"email":                   acc.Email,
		"phone":                   acc.Phone,
		"inn":                     acc.INN,
		"snils":                   nil,
		"avatarExists":            false,
		"initialRegistrationDate": acc.RegistrationDate.Format(timeLayout),
		"registrationDate":        acc.RegistrationDate.Format(timeLayout),
		"hideCancelledReceipt":    false,
		"registerAvailable":       nil,
		"status":                  "ACTIVE",
		"restrictedMode":          false,
		"login":                   acc.INN,
	})
}

// HandlePaymentTypes handles GET /api/v1/payment-type/table.
func (s *Server) HandlePaymentTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{
		{
			"id":             1,
			"type":           "ACCOUNT",
			"bankName":       "АО «Эмулятор Банк»",
			"bankBik":        "044525000",
			"corrAccount":    "30101810000000000000",
			"favorite":       true,
			"phone":          nil,
			"bankId":         nil,
			"currentAccount": "40802810000000000001",
			"availableForPa": false,
		},
	}})
}

type periodTotals struct {
	base     decimal.Decimal
	tax      decimal.Decimal
	receipts int
}

// taxByPeriod accrues tax on the active receipts of inn: 4% on income from
// individuals, 6% on income from legal entities and foreign agencies.
func (s *Server) taxByPeriod(inn string) (map[int]*periodTotals, error) {
	receipts, err := s.store.ListReceipts(inn, true)
	if err != nil {
		return nil, err
	}

	periods := make(map[int]*periodTotals)
	for _, receipt := range receipts {
		p, ok := periods[receipt.TaxPeriodID]
		if !ok {
			p = &periodTotals{base: decimal.Zero, tax: decimal.Zero}
			periods[receipt.TaxPeriodID] = p
		}
		p.base = p.base.Add(receipt.TotalAmount)
		p.tax = p.tax.Add(receipt.TotalAmount.Mul(rate(receipt)).Round(2))
		p.receipts++
	}
	return periods, nil
}

func rate(r *store.Receipt) decimal.Decimal {
	if r.IncomeType == "FROM_INDIVIDUAL" {
		return rateIndividual
	}
	return rateBusiness
}

// HandleTaxes handles GET /api/v1/taxes.
func (s *Server) HandleTaxes(w http.ResponseWriter, r *http.Request) {
	token := tokenFromContext(r.Context())

	periods, err := s.taxByPeriod(token.INN)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to compute taxes")
		return
	}

	current := taxPeriod(s.now())
	total := decimal.Zero
	for _, p := range periods {
		total = total.Add(p.tax)
	}
	tax := decimal.Zero
	if p, ok := periods[current]; ok {
		tax = p.tax
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"totalForPayment":    total,
		"total":              total,
		"tax":                tax,
		"debt":               decimal.Zero,
		"overpayment":        decimal.Zero,
		"penalty":            decimal.Zero,
		"nominalTax":         tax,
		"nominalOverpayment": decimal.Zero,
		"taxPeriodId":        current,
		"lastPaymentAmount":  nil,
		"lastPaymentDate":    nil,
		"regions": []map[string]any{
			{"oktmo": defaultOKTMO, "regionName": defaultRegion, "total": total},
		},
	})
}

type oktmoRequest struct {
	OKTMO    *string `json:"oktmo"`
	OnlyPaid bool    `json:"onlyPaid"`
}

func (req *oktmoRequest) matches() bool {
	return req.OKTMO == nil || *req.OKTMO == "" || *req.OKTMO == defaultOKTMO
}

// HandleTaxHistory handles POST /api/v1/taxes/history.
func (s *Server) HandleTaxHistory(w http.ResponseWriter, r *http.Request) {
	token := tokenFromContext(r.Context())

	var req oktmoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation.failed", "Failed to parse request body")
		return
	}

	records := []map[string]any{}
	if req.matches() {
		periods, err := s.taxByPeriod(token.INN)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to compute taxes")
			return
		}

		ids := make([]int, 0, len(periods))
		for id := range periods {
			ids = append(ids, id)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(ids)))

		for _, id := range ids {
			p := periods[id]
			records = append(records, map[string]any{
				"taxPeriodId":   id,
				"taxAmount":     p.tax,
				"bonusAmount":   decimal.Zero,
				"paidAmount":    decimal.Zero,
				"taxBaseAmount": p.base,
				"oktmo":         defaultOKTMO,
				"regionName":    defaultRegion,
				"type":          "TAX",
				"receiptCount":  p.receipts,
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// HandleTaxPayments handles POST /api/v1/taxes/payments. The emulator
// accepts no payments, so the list is always empty.
func (s *Server) HandleTaxPayments(w http.ResponseWriter, r *http.Request) {
	var req oktmoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation.failed", "Failed to parse request body")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"records": []map[string]any{}})
}
