package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pigeonworks-llc/npd-client/pkg/db"
)

var statsList string

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display issue statistics",
	Long: `Display statistics from the local issue history.

Shows:
- Number of active and cancelled receipts
- Total of active receipts
- Last operation time
- Ledger export state, when NPD_LEDGER_ROOT is set

Example:
  npd stats
  npd stats --list issued`,
	Run: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsList, "list", "", "Also list receipts: all, issued or cancelled")
}

func runStats(cmd *cobra.Command, args []string) {
	e := loadEnv()

	conn, history := e.history()
	defer conn.Close()

	stats, err := history.GetStats()
	exitOnError(err, "failed to get statistics")

	// Display statistics
	fmt.Println("\n=== Issue Statistics ===")
	fmt.Printf("Database:           %s\n", conn.GetPath())
	fmt.Printf("Active receipts:    %d\n", stats.Issued)
	fmt.Printf("Cancelled receipts: %d\n", stats.Cancelled)
	fmt.Printf("Active total:       %s\n", stats.IssuedTotal.StringFixed())

	if stats.LastIssue.Valid {
		fmt.Printf("Last operation:     %s\n", stats.LastIssue.String)
	} else {
		fmt.Printf("Last operation:     (never)\n")
	}

	version, err := conn.Version()
	exitOnError(err, "failed to read schema version")
	fmt.Printf("Schema version:     %d\n", version)

	if repo := e.ledgerRepository(e.cfg.Nalog.INN); repo != nil {
		lastExport, err := history.GetMetadata(metaLastExport)
		exitOnError(err, "failed to read ledger metadata")
		if lastExport == "" {
			lastExport = "(never)"
		}
		year := time.Now().Format("2006")
		months, err := repo.Months(year)
		exitOnError(err, "failed to list ledger files")

		fmt.Printf("Ledger root:        %s\n", e.paths.GetLedgerRoot())
		fmt.Printf("Last ledger export: %s\n", lastExport)
		fmt.Printf("Ledger months %s: %s\n", year, strings.Join(months, ", "))
	}

	fmt.Println()

	if statsList == "" {
		return
	}

	var status db.ReceiptStatus
	switch statsList {
	case "all":
	case string(db.StatusIssued), string(db.StatusCancelled):
		status = db.ReceiptStatus(statsList)
	default:
		exitOnError(fmt.Errorf("unknown status %q", statsList), "invalid --list")
	}

	records, err := history.ListReceipts(status)
	exitOnError(err, "failed to list receipts")

	for _, r := range records {
		fmt.Printf("%s  %-25s  %-10s %12s  %s\n", r.UUID, r.OperationTime, r.Status, r.Total.StringFixed(), r.Name)
	}

	slog.Debug("Statistics displayed", "listed", len(records))
}
