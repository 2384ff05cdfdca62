package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pigeonworks-llc/npd-client/pkg/money"
)

func openTestDB(t *testing.T) *Connection {
	t.Helper()
	conn, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestOpenCreatesDirectory(t *testing.T) {
	conn := openTestDB(t)
	if _, err := os.Stat(conn.GetPath()); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestOpenMigratesOlderSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	// A history written before the income account column existed.
	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := raw.Exec(migrations[0]); err != nil {
		t.Fatalf("create version 1 schema: %v", err)
	}
	if _, err := raw.Exec(`PRAGMA user_version = 1`); err != nil {
		t.Fatal(err)
	}
	if _, err := raw.Exec(`INSERT INTO issued_receipts (uuid, inn, name, total, payment_type, operation_time)
		VALUES ('200old', '500100732259', 'Аудит', '1000', 'CASH', '2024-01-10T10:00:00Z')`); err != nil {
		t.Fatal(err)
	}
	raw.Close()

	for i := 0; i < 2; i++ {
		conn, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i+1, err)
		}
		version, err := conn.Version()
		if err != nil {
			t.Fatal(err)
		}
		if version != SchemaVersion {
			t.Errorf("Version() = %d, want %d", version, SchemaVersion)
		}

		got, err := NewIssueHistory(conn).GetReceipt("200old")
		if err != nil || got == nil {
			t.Fatalf("GetReceipt() = %v, %v", got, err)
		}
		if got.IncomeAccount != "" {
			t.Errorf("IncomeAccount = %q, want empty", got.IncomeAccount)
		}
		conn.Close()
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := raw.Exec(`PRAGMA user_version = 99`); err != nil {
		t.Fatal(err)
	}
	raw.Close()

	if conn, err := Open(path); err == nil {
		conn.Close()
		t.Fatal("Open() succeeded on a database from a newer version")
	}
}

func TestRecordIncomeKeepsIncomeAccount(t *testing.T) {
	history := NewIssueHistory(openTestDB(t))

	record := IssuedReceipt{
		UUID:          "200web",
		INN:           "500100732259",
		Name:          "Вёрстка",
		Total:         money.MustAmount("7000"),
		PaymentType:   "ACCOUNT",
		OperationTime: "2024-03-02T10:00:00Z",
		IncomeAccount: "Income:SelfEmployed:Web",
	}
	if err := history.RecordIncome(record); err != nil {
		t.Fatal(err)
	}

	record.IncomeAccount = ""
	if err := history.RecordIncome(record); err != nil {
		t.Fatal(err)
	}

	got, err := history.GetReceipt("200web")
	if err != nil {
		t.Fatal(err)
	}
	if got.IncomeAccount != "Income:SelfEmployed:Web" {
		t.Errorf("IncomeAccount = %q, want Income:SelfEmployed:Web", got.IncomeAccount)
	}
}

func TestRecordIncome(t *testing.T) {
	history := NewIssueHistory(openTestDB(t))

	record := IssuedReceipt{
		UUID:          "200abc1234",
		INN:           "500100732259",
		Name:          "Разработка сайта",
		Total:         money.MustAmount("25000.50"),
		PaymentType:   "CASH",
		OperationTime: "2024-03-01T10:00:00+03:00",
	}
	if err := history.RecordIncome(record); err != nil {
		t.Fatalf("RecordIncome() error = %v", err)
	}

	got, err := history.GetReceipt("200abc1234")
	if err != nil {
		t.Fatalf("GetReceipt() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetReceipt() returned nil")
	}
	if got.Status != StatusIssued {
		t.Errorf("Status = %s, want %s", got.Status, StatusIssued)
	}
	if !got.Total.Equal(record.Total) {
		t.Errorf("Total = %s, want %s", got.Total, record.Total)
	}
	if got.CancelComment.Valid || got.CancelledAt.Valid {
		t.Error("fresh receipt should carry no cancellation")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	missing, err := history.GetReceipt("unknown")
	if err != nil {
		t.Fatalf("GetReceipt(unknown) error = %v", err)
	}
	if missing != nil {
		t.Errorf("GetReceipt(unknown) = %+v, want nil", missing)
	}
}

func TestRecordCancel(t *testing.T) {
	history := NewIssueHistory(openTestDB(t))

	if err := history.RecordIncome(IssuedReceipt{
		UUID:          "200abc1234",
		INN:           "500100732259",
		Name:          "Аудит",
		Total:         money.MustAmount("1000"),
		PaymentType:   "ACCOUNT",
		OperationTime: "2024-03-01T10:00:00Z",
	}); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	changed, err := history.RecordCancel("200abc1234", "Возврат средств", at)
	if err != nil {
		t.Fatalf("RecordCancel() error = %v", err)
	}
	if !changed {
		t.Error("first RecordCancel() should change the record")
	}

	changed, err = history.RecordCancel("200abc1234", "Чек сформирован ошибочно", at.Add(time.Hour))
	if err != nil {
		t.Fatalf("second RecordCancel() error = %v", err)
	}
	if changed {
		t.Error("second RecordCancel() should be a no-op")
	}

	changed, err = history.RecordCancel("unknown", "Возврат средств", at)
	if err != nil || changed {
		t.Errorf("RecordCancel(unknown) = %v, %v; want false, nil", changed, err)
	}

	got, err := history.GetReceipt("200abc1234")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("Status = %s, want %s", got.Status, StatusCancelled)
	}
	if got.CancelComment.String != "Возврат средств" {
		t.Errorf("CancelComment = %q", got.CancelComment.String)
	}
	if !got.CancelledAt.Valid || !got.CancelledAt.Time.Equal(at) {
		t.Errorf("CancelledAt = %v, want %v", got.CancelledAt, at)
	}

	// Re-recording the income must not resurrect a cancelled receipt.
	if err := history.RecordIncome(*got); err != nil {
		t.Fatal(err)
	}
	got, _ = history.GetReceipt("200abc1234")
	if got.Status != StatusCancelled {
		t.Errorf("Status after re-record = %s, want %s", got.Status, StatusCancelled)
	}
}

func TestListReceiptsAndStats(t *testing.T) {
	history := NewIssueHistory(openTestDB(t))

	records := []IssuedReceipt{
		{UUID: "2000000001", INN: "500100732259", Name: "A", Total: money.MustAmount("0.10"), PaymentType: "CASH", OperationTime: "2024-01-10T10:00:00Z"},
		{UUID: "2000000002", INN: "500100732259", Name: "B", Total: money.MustAmount("0.20"), PaymentType: "CASH", OperationTime: "2024-02-10T10:00:00Z"},
		{UUID: "2000000003", INN: "500100732259", Name: "C", Total: money.MustAmount("100"), PaymentType: "ACCOUNT", OperationTime: "2024-03-10T10:00:00Z"},
	}
	for _, r := range records {
		if err := history.RecordIncome(r); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := history.RecordCancel("2000000003", "Возврат средств", time.Now()); err != nil {
		t.Fatal(err)
	}

	all, err := history.ListReceipts("")
	if err != nil {
		t.Fatalf("ListReceipts() error = %v", err)
	}
	if len(all) != 3 || all[0].UUID != "2000000003" {
		t.Errorf("ListReceipts() = %d records, first %v; want 3 newest first", len(all), all)
	}

	issued, err := history.ListReceipts(StatusIssued)
	if err != nil {
		t.Fatal(err)
	}
	if len(issued) != 2 {
		t.Errorf("ListReceipts(issued) = %d records, want 2", len(issued))
	}

	stats, err := history.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.Issued != 2 || stats.Cancelled != 1 {
		t.Errorf("Issued/Cancelled = %d/%d, want 2/1", stats.Issued, stats.Cancelled)
	}
	if !stats.IssuedTotal.Equal(money.MustAmount("0.30")) {
		t.Errorf("IssuedTotal = %s, want exactly 0.30", stats.IssuedTotal)
	}
	if stats.LastIssue.String != "2024-03-10T10:00:00Z" {
		t.Errorf("LastIssue = %q", stats.LastIssue.String)
	}
}

func TestMetadata(t *testing.T) {
	history := NewIssueHistory(openTestDB(t))

	value, err := history.GetMetadata("ledger.last_export")
	if err != nil || value != "" {
		t.Fatalf("GetMetadata(missing) = %q, %v", value, err)
	}

	if err := history.SetMetadata("ledger.last_export", "2024-03"); err != nil {
		t.Fatal(err)
	}
	if err := history.SetMetadata("ledger.last_export", "2024-04"); err != nil {
		t.Fatal(err)
	}

	value, err = history.GetMetadata("ledger.last_export")
	if err != nil {
		t.Fatal(err)
	}
	if value != "2024-04" {
		t.Errorf("GetMetadata() = %q, want 2024-04", value)
	}
}
