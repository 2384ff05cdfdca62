package income

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pigeonworks-llc/npd-client/pkg/nalogerr"
)

var (
	phonePattern  = regexp.MustCompile(`^\+?[1-9]\d{10,14}$`)
	digitsPattern = regexp.MustCompile(`^\d+$`)
)

// IsValidPhone reports whether s looks like an international phone number:
// an optional leading plus, then 11 to 15 digits.
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// Client is the payer on a receipt.
type Client struct {
	displayName  string
	incomeType   IncomeType
	inn          string
	contactPhone string
}

// NewClient validates its arguments and returns an immutable payer.
//
// INN rules: 10 digits pairs with FromLegalEntity, 12 digits with
// FromIndividual. An individual may omit the INN. A foreign agency has no
// Russian INN. Legal entities and foreign agencies need a display name.
func NewClient(displayName string, incomeType IncomeType, inn, contactPhone string) (Client, error) {
	c := Client{
		displayName:  strings.TrimSpace(displayName),
		incomeType:   incomeType,
		inn:          strings.TrimSpace(inn),
		contactPhone: strings.TrimSpace(contactPhone),
	}
	if err := c.Validate(); err != nil {
		return Client{}, err
	}
	return c, nil
}

// Validate checks the payer invariants.
func (c Client) Validate() error {
	if !c.incomeType.Valid() {
		return nalogerr.Validation("incomeType", "enum", "unknown income type "+string(c.incomeType))
	}

	if err := validateINN(c.incomeType, c.inn); err != nil {
		return err
	}

	if c.incomeType != FromIndividual && c.displayName == "" {
		return nalogerr.Validation("displayName", "required", "display name is required for "+string(c.incomeType))
	}

	if c.contactPhone != "" && !IsValidPhone(c.contactPhone) {
		return nalogerr.Validation("contactPhone", "format", "invalid phone number "+c.contactPhone)
	}
	return nil
}

func validateINN(incomeType IncomeType, inn string) error {
	if inn == "" {
		switch incomeType {
		case FromIndividual, FromForeignAgency:
			return nil
		}
		return nalogerr.Validation("inn", "required", "INN is required for "+string(incomeType))
	}

	if incomeType == FromForeignAgency {
		return nalogerr.Validation("inn", "forbidden", "foreign agency must not carry an INN")
	}

	if !digitsPattern.MatchString(inn) {
		return nalogerr.Validation("inn", "digits", "INN must contain digits only")
	}

	switch len(inn) {
	case 10:
		if incomeType != FromLegalEntity {
			return nalogerr.Validation("inn", "type-mismatch", "10-digit INN belongs to a legal entity")
		}
	case 12:
		if incomeType != FromIndividual {
			return nalogerr.Validation("inn", "type-mismatch", "12-digit INN belongs to an individual")
		}
	default:
		return nalogerr.Validation("inn", "length", "INN must have 10 or 12 digits")
	}
	return nil
}

func (c Client) DisplayName() string    { return c.displayName }
func (c Client) IncomeType() IncomeType { return c.incomeType }
func (c Client) INN() string            { return c.inn }
func (c Client) ContactPhone() string   { return c.contactPhone }

// MarshalJSON encodes the payer with nulls for absent values.
func (c Client) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"contactPhone": optional(c.contactPhone),
		"displayName":  optional(c.displayName),
		"incomeType":   c.incomeType,
		"inn":          optional(c.inn),
	})
}

// UnmarshalJSON decodes and validates a payer.
func (c *Client) UnmarshalJSON(data []byte) error {
	var raw struct {
		ContactPhone *string    `json:"contactPhone"`
		DisplayName  *string    `json:"displayName"`
		IncomeType   IncomeType `json:"incomeType"`
		INN          *string    `json:"inn"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewClient(deref(raw.DisplayName), raw.IncomeType, deref(raw.INN), deref(raw.ContactPhone))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// AnonymousClient is a private payer with no details.
func AnonymousClient() Client {
	return Client{incomeType: FromIndividual}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
