package integration

import (
	"fmt"
	"time"

	"github.com/pigeonworks-llc/npd-client/emulator/store"
	"github.com/pigeonworks-llc/npd-client/pkg/income"
	"github.com/pigeonworks-llc/npd-client/pkg/money"
)

const (
	testINN      = "500100732259"
	testPassword = "secret"
	testPhone    = "79001234567"
	testSMSCode  = "111111"
)

// TestAccount returns the taxpayer seeded into every test server.
func TestAccount() *store.Account {
	return &store.Account{
		INN:              testINN,
		Password:         testPassword,
		Phone:            testPhone,
		DisplayName:      "Сидоров Сидор Сидорович",
		Email:            "sidorov@example.com",
		RegistrationDate: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// TestDataBuilder provides helper methods for building income requests.
type TestDataBuilder struct {
	prefix string
}

// NewTestDataBuilder creates a new TestDataBuilder naming services with prefix.
func NewTestDataBuilder(prefix string) *TestDataBuilder {
	return &TestDataBuilder{prefix: prefix}
}

// Item creates a single service item worth amount rubles.
func (b *TestDataBuilder) Item(seq int, amount string) (income.ServiceItem, error) {
	a, err := money.ParseAmount(amount)
	if err != nil {
		return income.ServiceItem{}, err
	}
	return income.NewServiceItem(GenerateServiceName(b.prefix, seq), a, money.QuantityFromInt(1))
}

// Items creates one service item per amount.
func (b *TestDataBuilder) Items(amounts ...string) ([]income.ServiceItem, error) {
	items := make([]income.ServiceItem, len(amounts))
	for i, amount := range amounts {
		item, err := b.Item(i, amount)
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return items, nil
}

// LegalEntity creates a payer organisation.
func (b *TestDataBuilder) LegalEntity() (income.Client, error) {
	return income.NewClient("ООО «Тест»", income.FromLegalEntity, "7707083893", "")
}

// GenerateServiceName generates a service name for testing.
func GenerateServiceName(prefix string, seq int) string {
	return fmt.Sprintf("%s-%04d", prefix, seq)
}

// GenerateTimeSequence generates daily operation times for testing.
func GenerateTimeSequence(start time.Time, count int) []time.Time {
	times := make([]time.Time, count)
	for i := 0; i < count; i++ {
		times[i] = start.AddDate(0, 0, i)
	}
	return times
}
