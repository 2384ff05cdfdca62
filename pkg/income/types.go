// Package income provides the income-receipt domain model: service items,
// payer descriptions and the enumerations the tax service accepts.
//
// Values are built through smart constructors that validate eagerly. Fields
// are unexported, so a value returned without error stays valid. The zero
// value is the only invalid instance callers can hold; Validate reports it.
package income

import (
	"encoding/json"
	"fmt"
)

// IncomeType classifies the payer on a receipt.
type IncomeType string

const (
	FromIndividual    IncomeType = "FROM_INDIVIDUAL"
	FromLegalEntity   IncomeType = "FROM_LEGAL_ENTITY"
	FromForeignAgency IncomeType = "FROM_FOREIGN_AGENCY"
)

// Valid reports whether t is a known income type.
func (t IncomeType) Valid() bool {
	switch t {
	case FromIndividual, FromLegalEntity, FromForeignAgency:
		return true
	}
	return false
}

// ParseIncomeType parses the wire name or a short alias
// ("individual", "legal", "foreign").
func ParseIncomeType(s string) (IncomeType, error) {
	switch s {
	case string(FromIndividual), "individual":
		return FromIndividual, nil
	case string(FromLegalEntity), "legal", "legal_entity":
		return FromLegalEntity, nil
	case string(FromForeignAgency), "foreign", "foreign_agency":
		return FromForeignAgency, nil
	}
	return "", fmt.Errorf("unknown income type: %s", s)
}

// PaymentType is how the payer settled: cash or bank transfer.
type PaymentType string

const (
	PaymentCash    PaymentType = "CASH"
	PaymentAccount PaymentType = "ACCOUNT"
)

// Valid reports whether p is a known payment type.
func (p PaymentType) Valid() bool {
	return p == PaymentCash || p == PaymentAccount
}

// CancelReason is the comment the tax service requires on cancellation.
type CancelReason string

const (
	CancelMistake CancelReason = "Чек сформирован ошибочно"
	CancelRefund  CancelReason = "Возврат средств"
)

// Valid reports whether r is one of the accepted reasons.
func (r CancelReason) Valid() bool {
	return r == CancelMistake || r == CancelRefund
}

// ParseCancelReason accepts "mistake"/"refund" or the literal comment.
func ParseCancelReason(s string) (CancelReason, error) {
	switch s {
	case "mistake", string(CancelMistake):
		return CancelMistake, nil
	case "refund", string(CancelRefund):
		return CancelRefund, nil
	}
	return "", fmt.Errorf("unknown cancel reason: %s", s)
}

// optional renders empty strings as JSON null.
func optional(s string) json.RawMessage {
	if s == "" {
		return json.RawMessage("null")
	}
	data, _ := json.Marshal(s)
	return data
}
