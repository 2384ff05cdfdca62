// Package catalog loads the YAML service catalog so that recurring services
// can be issued by key instead of retyping name and price.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pigeonworks-llc/npd-client/pkg/income"
	"github.com/pigeonworks-llc/npd-client/pkg/money"
)

// Service represents a catalog entry.
type Service struct {
	Key    string `yaml:"key"`
	Name   string `yaml:"name"`
	Amount string `yaml:"amount"` // decimal text, unquoted numbers keep their original digits
	// IncomeAccount overrides the ledger income account for this service.
	IncomeAccount string `yaml:"income_account"`
}

// File represents the catalog file layout.
type File struct {
	Services []Service `yaml:"services"`
}

// Entry is a validated catalog service.
type Entry struct {
	Key           string
	Name          string
	Amount        money.Amount
	IncomeAccount string
}

// Catalog maps service keys to validated entries.
type Catalog struct {
	entries map[string]Entry
	keys    []string
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse validates catalog YAML. Duplicate keys and entries that would not
// produce a valid income.ServiceItem are rejected.
func Parse(data []byte) (*Catalog, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	c := &Catalog{entries: make(map[string]Entry, len(file.Services))}
	for i, svc := range file.Services {
		key := strings.TrimSpace(svc.Key)
		if key == "" {
			return nil, fmt.Errorf("services[%d]: key is required", i)
		}
		if _, dup := c.entries[key]; dup {
			return nil, fmt.Errorf("services[%d]: duplicate key %q", i, key)
		}

		amount, err := money.ParseAmount(svc.Amount)
		if err != nil {
			return nil, fmt.Errorf("services[%d] %q: %w", i, key, err)
		}
		if _, err := income.NewServiceItem(svc.Name, amount, money.QuantityFromInt(1)); err != nil {
			return nil, fmt.Errorf("services[%d] %q: %w", i, key, err)
		}

		c.entries[key] = Entry{
			Key:           key,
			Name:          strings.TrimSpace(svc.Name),
			Amount:        amount,
			IncomeAccount: svc.IncomeAccount,
		}
		c.keys = append(c.keys, key)
	}

	return c, nil
}

// Lookup returns the entry for key.
func (c *Catalog) Lookup(key string) (Entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// Keys returns the service keys in file order.
func (c *Catalog) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Item builds a service item for key with the given quantity.
func (c *Catalog) Item(key string, quantity money.Quantity) (income.ServiceItem, error) {
	e, ok := c.entries[key]
	if !ok {
		return income.ServiceItem{}, fmt.Errorf("unknown service %q", key)
	}
	return income.NewServiceItem(e.Name, e.Amount, quantity)
}
