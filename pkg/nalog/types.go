package nalog

import (
	"encoding/json"

	"github.com/pigeonworks-llc/npd-client/pkg/money"
)

// IncomeResult is the answer to a successful income registration.
type IncomeResult struct {
	ApprovedReceiptUUID string `json:"approvedReceiptUuid"`
	// TotalAmount is the locally computed receipt total.
	TotalAmount money.Amount `json:"-"`
}

// CancellationInfo describes a cancelled receipt.
type CancellationInfo struct {
	OperationTime string `json:"operationTime"`
	RegisterTime  string `json:"registerTime"`
	TaxPeriodID   int    `json:"taxPeriodId"`
	Comment       string `json:"comment"`
}

// ReceiptService is one line of a fetched receipt.
type ReceiptService struct {
	Name          string         `json:"name"`
	Quantity      money.Quantity `json:"quantity"`
	ServiceNumber int            `json:"serviceNumber"`
	Amount        money.Amount   `json:"amount"`
}

// Receipt is a receipt document as stored by the tax service.
type Receipt struct {
	ReceiptID         string            `json:"receiptId"`
	Services          []ReceiptService  `json:"services"`
	OperationTime     string            `json:"operationTime"`
	RequestTime       string            `json:"requestTime"`
	RegisterTime      string            `json:"registerTime"`
	TaxPeriodID       int               `json:"taxPeriodId"`
	PaymentType       string            `json:"paymentType"`
	IncomeType        string            `json:"incomeType"`
	TotalAmount       money.Amount      `json:"totalAmount"`
	CancellationInfo  *CancellationInfo `json:"cancellationInfo"`
	SourceDeviceID    string            `json:"sourceDeviceId"`
	ClientINN         *string           `json:"clientInn"`
	ClientDisplayName *string           `json:"clientDisplayName"`
	INN               string            `json:"inn"`
	Profession        string            `json:"profession"`

	// Raw is the document exactly as returned.
	Raw json.RawMessage `json:"-"`
}

// Cancelled reports whether the receipt has been cancelled.
func (r *Receipt) Cancelled() bool {
	return r.CancellationInfo != nil
}

// IncomeInfo is the income record returned by cancellation.
type IncomeInfo struct {
	ApprovedReceiptUUID string            `json:"approvedReceiptUuid"`
	Name                string            `json:"name"`
	OperationTime       string            `json:"operationTime"`
	RequestTime         string            `json:"requestTime"`
	PaymentType         string            `json:"paymentType"`
	PartnerCode         *string           `json:"partnerCode"`
	TotalAmount         money.Amount      `json:"totalAmount"`
	CancellationInfo    *CancellationInfo `json:"cancellationInfo"`
	SourceDeviceID      string            `json:"sourceDeviceId"`
}

// CancelResult is the outcome of a cancellation.
type CancelResult struct {
	ReceiptUUID      string
	CancellationInfo CancellationInfo
	// AlreadyCancelled is set when the receipt had been cancelled before
	// this call; CancellationInfo then describes the earlier cancellation.
	AlreadyCancelled bool
	// IncomeInfo is only set when this call performed the cancellation.
	IncomeInfo *IncomeInfo
}

// User is the taxpayer account.
type User struct {
	ID                       int64   `json:"id"`
	LastName                 *string `json:"lastName"`
	DisplayName              string  `json:"displayName"`
	MiddleName               *string `json:"middleName"`
	Email                    string  `json:"email"`
	Phone                    string  `json:"phone"`
	INN                      string  `json:"inn"`
	SNILS                    *string `json:"snils"`
	AvatarExists             bool    `json:"avatarExists"`
	InitialRegistrationDate  string  `json:"initialRegistrationDate"`
	RegistrationDate         string  `json:"registrationDate"`
	FirstReceiptRegisterTime *string `json:"firstReceiptRegisterTime"`
	FirstReceiptCancelTime   *string `json:"firstReceiptCancelTime"`
	HideCancelledReceipt     bool    `json:"hideCancelledReceipt"`
	RegisterAvailable        *bool   `json:"registerAvailable"`
	Status                   string  `json:"status"`
	RestrictedMode           bool    `json:"restrictedMode"`
	Login                    string  `json:"login"`
}

// PaymentMethod is a registered way to receive payment.
type PaymentMethod struct {
	ID             int64   `json:"id"`
	Type           string  `json:"type"`
	BankName       string  `json:"bankName"`
	BankBIK        string  `json:"bankBik"`
	CorrAccount    string  `json:"corrAccount"`
	Favorite       bool    `json:"favorite"`
	Phone          *string `json:"phone"`
	BankID         *string `json:"bankId"`
	CurrentAccount string  `json:"currentAccount"`
	AvailableForPA bool    `json:"availableForPa"`
}

// TaxRegion is the per-region part of the tax summary.
type TaxRegion struct {
	OKTMO      string       `json:"oktmo"`
	RegionName string       `json:"regionName"`
	Total      money.Amount `json:"total"`
}

// TaxSummary is the current tax position.
type TaxSummary struct {
	TotalForPayment    money.Amount  `json:"totalForPayment"`
	Total              money.Amount  `json:"total"`
	Tax                money.Amount  `json:"tax"`
	Debt               money.Amount  `json:"debt"`
	Overpayment        money.Amount  `json:"overpayment"`
	Penalty            money.Amount  `json:"penalty"`
	NominalTax         money.Amount  `json:"nominalTax"`
	NominalOverpayment money.Amount  `json:"nominalOverpayment"`
	TaxPeriodID        int           `json:"taxPeriodId"`
	LastPaymentAmount  *money.Amount `json:"lastPaymentAmount"`
	LastPaymentDate    *string       `json:"lastPaymentDate"`
	Regions            []TaxRegion   `json:"regions"`
}

// TaxCharge is one accrued tax period.
type TaxCharge struct {
	TaxPeriodID     int          `json:"taxPeriodId"`
	TaxAmount       money.Amount `json:"taxAmount"`
	BonusAmount     money.Amount `json:"bonusAmount"`
	PaidAmount      money.Amount `json:"paidAmount"`
	TaxBaseAmount   money.Amount `json:"taxBaseAmount"`
	ChargeDate      string       `json:"chargeDate"`
	DueDate         string       `json:"dueDate"`
	OKTMO           string       `json:"oktmo"`
	RegionName      string       `json:"regionName"`
	KBK             string       `json:"kbk"`
	TaxOrganCode    string       `json:"taxOrganCode"`
	Type            string       `json:"type"`
	KrsbTaxChargeID int64        `json:"krsbTaxChargeId"`
	ReceiptCount    int          `json:"receiptCount"`
}

// TaxHistory is the list of accrued tax periods.
type TaxHistory struct {
	Records []TaxCharge `json:"records"`
}

// TaxPayment is one tax payment.
type TaxPayment struct {
	SourceType       string       `json:"sourceType"`
	Type             string       `json:"type"`
	DocumentIndex    string       `json:"documentIndex"`
	Amount           money.Amount `json:"amount"`
	OperationDate    string       `json:"operationDate"`
	DueDate          string       `json:"dueDate"`
	OKTMO            string       `json:"oktmo"`
	KBK              string       `json:"kbk"`
	Status           string       `json:"status"`
	TaxPeriodID      int          `json:"taxPeriodId"`
	RegionName       string       `json:"regionName"`
	KrsbAcceptedDate string       `json:"krsbAcceptedDate"`
}

// TaxPayments is the list of tax payments.
type TaxPayments struct {
	Records []TaxPayment `json:"records"`
}
