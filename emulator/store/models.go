package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a registered taxpayer.
type Account struct {
	INN              string    `json:"inn"`
	Password         string    `json:"password"`
	Phone            string    `json:"phone"`
	DisplayName      string    `json:"displayName"`
	Email            string    `json:"email"`
	RegistrationDate time.Time `json:"registrationDate"`
}

// AccessToken is an issued bearer token.
type AccessToken struct {
	INN       string    `json:"inn"`
	DeviceID  string    `json:"deviceId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RefreshToken is bound to the device it was issued to.
type RefreshToken struct {
	INN       string    `json:"inn"`
	DeviceID  string    `json:"deviceId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Challenge is a pending SMS challenge.
type Challenge struct {
	Token     string    `json:"token"`
	Phone     string    `json:"phone"`
	INN       string    `json:"inn"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service is one receipt line.
type Service struct {
	Name          string          `json:"name"`
	Quantity      decimal.Decimal `json:"quantity"`
	ServiceNumber int             `json:"serviceNumber"`
	Amount        decimal.Decimal `json:"amount"`
}

// CancellationInfo records a cancellation.
type CancellationInfo struct {
	OperationTime string `json:"operationTime"`
	RegisterTime  string `json:"registerTime"`
	TaxPeriodID   int    `json:"taxPeriodId"`
	Comment       string `json:"comment"`
}

// Receipt is an issued receipt in the shape the service returns it.
type Receipt struct {
	ReceiptID         string            `json:"receiptId"`
	Services          []Service         `json:"services"`
	OperationTime     string            `json:"operationTime"`
	RequestTime       string            `json:"requestTime"`
	RegisterTime      string            `json:"registerTime"`
	TaxPeriodID       int               `json:"taxPeriodId"`
	PaymentType       string            `json:"paymentType"`
	IncomeType        string            `json:"incomeType"`
	PartnerCode       *string           `json:"partnerCode"`
	TotalAmount       decimal.Decimal   `json:"totalAmount"`
	CancellationInfo  *CancellationInfo `json:"cancellationInfo"`
	SourceDeviceID    string            `json:"sourceDeviceId"`
	ClientINN         *string           `json:"clientInn"`
	ClientDisplayName *string           `json:"clientDisplayName"`
	INN               string            `json:"inn"`
	Profession        string            `json:"profession"`
	Description       []string          `json:"description"`
}

// Cancelled reports whether the receipt has been cancelled.
func (r *Receipt) Cancelled() bool {
	return r.CancellationInfo != nil
}
