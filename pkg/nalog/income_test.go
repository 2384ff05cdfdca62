package nalog

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pigeonworks-llc/npd-client/pkg/income"
	"github.com/pigeonworks-llc/npd-client/pkg/money"
	"github.com/pigeonworks-llc/npd-client/pkg/nalogerr"
)

func TestIncomeCreate(t *testing.T) {
	requests := make(chan map[string]any, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/income", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		requests <- body
		writeJSON(w, http.StatusOK, map[string]string{"approvedReceiptUuid": "200abc1234"})
	})

	c := newTestClient(t, mux)
	authenticate(t, c)

	paidAt := time.Date(2026, 10, 1, 9, 30, 0, 0, time.FixedZone("MSK", 3*3600))
	result, err := c.Income().Create(context.Background(),
		"Консультация", money.MustAmount("25000.00"), money.QuantityFromInt(1), nil,
		WithOperationTime(paidAt), WithPaymentType(income.PaymentAccount))
	require.NoError(t, err)
	assert.Equal(t, "200abc1234", result.ApprovedReceiptUUID)
	assert.True(t, result.TotalAmount.Equal(money.MustAmount("25000")))

	body := <-requests
	assert.Equal(t, "2026-10-01T09:30:00+03:00", body["operationTime"])
	assert.Equal(t, "ACCOUNT", body["paymentType"])
	assert.Equal(t, false, body["ignoreMaxTotalIncomeRestriction"])

	total, err := decimal.NewFromString(body["totalAmount"].(string))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(25000)))

	services := body["services"].([]any)
	require.Len(t, services, 1)
	service := services[0].(map[string]any)
	assert.Equal(t, "Консультация", service["name"])
	assert.EqualValues(t, 25000, service["amount"])
	assert.EqualValues(t, 1, service["quantity"])

	client := body["client"].(map[string]any)
	assert.Equal(t, "FROM_INDIVIDUAL", client["incomeType"])
	assert.Nil(t, client["inn"])
	assert.Nil(t, client["displayName"])
	assert.Nil(t, client["contactPhone"])
}

func TestIncomeCreateMultipleItems(t *testing.T) {
	requests := make(chan map[string]any, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/income", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		requests <- body
		writeJSON(w, http.StatusOK, map[string]string{"approvedReceiptUuid": "200def5678"})
	})

	c := newTestClient(t, mux)
	authenticate(t, c)

	design, err := income.NewServiceItem("Дизайн", money.MustAmount("1500.50"), money.MustQuantity("2"))
	require.NoError(t, err)
	hosting, err := income.NewServiceItem("Хостинг", money.MustAmount("99.99"), money.MustQuantity("1.5"))
	require.NoError(t, err)
	payer, err := income.NewClient("ООО Ромашка", income.FromLegalEntity, "7707083893", "")
	require.NoError(t, err)

	result, err := c.Income().CreateMultipleItems(context.Background(),
		[]income.ServiceItem{design, hosting}, &payer, WithIgnoreMaxTotalIncomeRestriction())
	require.NoError(t, err)

	// 1500.50*2 + 99.99*1.5
	want := money.MustAmount("3150.985")
	assert.True(t, result.TotalAmount.Equal(want), "got %s", result.TotalAmount)

	body := <-requests
	total, err := decimal.NewFromString(body["totalAmount"].(string))
	require.NoError(t, err)
	assert.True(t, total.Equal(want.Decimal()))
	assert.Equal(t, "CASH", body["paymentType"])
	assert.Equal(t, true, body["ignoreMaxTotalIncomeRestriction"])

	client := body["client"].(map[string]any)
	assert.Equal(t, "FROM_LEGAL_ENTITY", client["incomeType"])
	assert.Equal(t, "7707083893", client["inn"])
	assert.Equal(t, "ООО Ромашка", client["displayName"])
}

func TestIncomeValidationHappensBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"approvedReceiptUuid": "x"})
	})

	c := newTestClient(t, mux)
	authenticate(t, c)
	ctx := context.Background()

	tests := []struct {
		name   string
		create func() error
		field  string
	}{
		{
			name: "negative amount",
			create: func() error {
				_, err := c.Income().Create(ctx, "Услуга", money.MustAmount("-1"), money.QuantityFromInt(1), nil)
				return err
			},
			field: "amount",
		},
		{
			name: "zero quantity",
			create: func() error {
				_, err := c.Income().Create(ctx, "Услуга", money.MustAmount("100"), money.QuantityFromInt(0), nil)
				return err
			},
			field: "quantity",
		},
		{
			name: "blank name",
			create: func() error {
				_, err := c.Income().Create(ctx, "  ", money.MustAmount("100"), money.QuantityFromInt(1), nil)
				return err
			},
			field: "name",
		},
		{
			name: "no items",
			create: func() error {
				_, err := c.Income().CreateMultipleItems(ctx, nil, nil)
				return err
			},
			field: "services",
		},
		{
			name: "zero value client",
			create: func() error {
				_, err := c.Income().Create(ctx, "Услуга", money.MustAmount("100"), money.QuantityFromInt(1), &income.Client{})
				return err
			},
			field: "incomeType",
		},
		{
			name: "unknown payment type",
			create: func() error {
				_, err := c.Income().Create(ctx, "Услуга", money.MustAmount("100"), money.QuantityFromInt(1), nil,
					WithPaymentType("CRYPTO"))
				return err
			},
			field: "paymentType",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.create()
			var nerr *nalogerr.Error
			require.ErrorAs(t, err, &nerr)
			assert.Equal(t, nalogerr.KindValidation, nerr.Kind)
			assert.Equal(t, tt.field, nerr.Field)
		})
	}

	assert.Zero(t, hits.Load())
}

func TestIncomeDomainRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/income", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotAcceptable, "income.limit", "Превышен лимит дохода")
	})

	c := newTestClient(t, mux)
	authenticate(t, c)

	_, err := c.Income().Create(context.Background(), "Услуга", money.MustAmount("100"), money.QuantityFromInt(1), nil)

	var nerr *nalogerr.Error
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, nalogerr.KindDomain, nerr.Kind)
	assert.Equal(t, http.StatusNotAcceptable, nerr.Status)
	assert.Equal(t, "income.limit", nerr.Code)
	assert.Equal(t, "income.create", nerr.Op)
}
