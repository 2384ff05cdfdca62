package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pigeonworks-llc/npd-client/pkg/money"
	"github.com/pigeonworks-llc/npd-client/pkg/nalogerr"
)

const sample = `
services:
  - key: site
    name: Разработка сайта
    amount: "25000.00"
  - key: consult
    name: "  Консультация  "
    amount: 1500.50
    income_account: Income:SelfEmployed:Consulting
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"site", "consult"}, c.Keys())

	site, ok := c.Lookup("site")
	require.True(t, ok)
	assert.Equal(t, "Разработка сайта", site.Name)
	assert.Equal(t, "25000.00", site.Amount.StringFixed())
	assert.Empty(t, site.IncomeAccount)

	consult, ok := c.Lookup("consult")
	require.True(t, ok)
	assert.Equal(t, "Консультация", consult.Name)
	assert.True(t, consult.Amount.Equal(money.MustAmount("1500.50")))
	assert.Equal(t, "Income:SelfEmployed:Consulting", consult.IncomeAccount)

	_, ok = c.Lookup("missing")
	assert.False(t, ok)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestParseRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"duplicate key", "services:\n  - {key: a, name: A, amount: \"1\"}\n  - {key: a, name: B, amount: \"2\"}\n"},
		{"missing key", "services:\n  - {name: A, amount: \"1\"}\n"},
		{"blank name", "services:\n  - {key: a, name: \"  \", amount: \"1\"}\n"},
		{"zero amount", "services:\n  - {key: a, name: A, amount: \"0\"}\n"},
		{"malformed amount", "services:\n  - {key: a, name: A, amount: abc}\n"},
		{"malformed yaml", "services: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestItem(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	item, err := c.Item("consult", money.MustQuantity("2"))
	require.NoError(t, err)
	assert.Equal(t, "Консультация", item.Name())
	assert.True(t, item.Total().Equal(money.MustAmount("3001.00")))

	_, err = c.Item("consult", money.MustQuantity("0"))
	assert.ErrorIs(t, err, nalogerr.ErrValidation)

	_, err = c.Item("unknown", money.QuantityFromInt(1))
	assert.Error(t, err)
}
