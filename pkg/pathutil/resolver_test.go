package pathutil

import (
	"path/filepath"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	p := New(Config{Root: "/home/user/.npd"})

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"token", p.GetTokenPath(), "/home/user/.npd/token.json"},
		{"device id", p.GetDeviceIDPath(), "/home/user/.npd/device-id"},
		{"database", p.GetDatabasePath(), "/home/user/.npd/history.db"},
		{"ledger", p.GetLedgerRoot(), "/home/user/.npd/ledger"},
		{"catalog", p.GetCatalogPath(), "/home/user/.npd/services.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestNewOverrides(t *testing.T) {
	p := New(Config{
		Root:         "/home/user/.npd",
		TokenPath:    "/secure/npd/token.json",
		DatabasePath: "/var/lib/npd.db",
		LedgerRoot:   "/home/user/accounting",
	})

	if got := p.GetDeviceIDPath(); got != "/secure/npd/device-id" {
		t.Errorf("GetDeviceIDPath() = %s, want device id next to token", got)
	}
	if got := p.GetDatabasePath(); got != "/var/lib/npd.db" {
		t.Errorf("GetDatabasePath() = %s", got)
	}
	if got := p.GetYearDir("2024"); got != "/home/user/accounting/2024" {
		t.Errorf("GetYearDir() = %s", got)
	}
}

func TestGetMonthFilePath(t *testing.T) {
	p := New(Config{Root: "/npd", LedgerRoot: "/ledger"})

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"2024-01", "/ledger/2024/2024-01.beancount", false},
		{"2024-12", "/ledger/2024/2024-12.beancount", false},
		{"2024-1", "", true},
		{"202401", "", true},
		{"24-01", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := p.GetMonthFilePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetMonthFilePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("GetMonthFilePath(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("NPD_ROOT", "")
	if _, err := FromEnv(); err == nil {
		t.Error("FromEnv() without NPD_ROOT: expected error")
	}

	t.Setenv("NPD_ROOT", "/npd")
	t.Setenv("NPD_CATALOG_PATH", "/etc/npd/services.yaml")
	p, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if got := p.GetCatalogPath(); got != "/etc/npd/services.yaml" {
		t.Errorf("GetCatalogPath() = %s", got)
	}
}

func TestEnsureParentDir(t *testing.T) {
	root := t.TempDir()
	p := New(Config{Root: root})

	path, err := p.GetMonthFilePath("2024-03")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.EnsureParentDir(path); err != nil {
		t.Fatalf("EnsureParentDir() error = %v", err)
	}
	if !p.FileExists(filepath.Join(root, "ledger", "2024")) {
		t.Error("year directory was not created")
	}
	if p.FileExists(path) {
		t.Error("month file should not exist yet")
	}
}
