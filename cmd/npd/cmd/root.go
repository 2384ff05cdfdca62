// Package cmd provides CLI commands for npd.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/pigeonworks-llc/npd-client/pkg/config"
	"github.com/pigeonworks-llc/npd-client/pkg/db"
	"github.com/pigeonworks-llc/npd-client/pkg/ledger"
	"github.com/pigeonworks-llc/npd-client/pkg/nalog"
	"github.com/pigeonworks-llc/npd-client/pkg/pathutil"
)

var (
	cfgFile  string
	debug    bool
	noLedger bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "npd",
	Short: "Register self-employed income receipts with «Мой налог»",
	Long: `npd is a CLI tool for the «Мой налог» self-employed tax service.

It supports:
- Login by INN/password or by phone and SMS code
- Registering income receipts, by hand or from a service catalog
- Fetching, printing and cancelling receipts
- Profile, payment details and tax queries
- A local SQLite history and an optional Beancount ledger export

Example:
  npd login --inn 500100732259
  npd income --name "Разработка сайта" --amount 25000
  npd receipt cancel 200abc1234 --reason refund
  npd stats`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup logging
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noLedger, "no-ledger", false, "skip the Beancount ledger export")

	// Add subcommands
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(phoneCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(incomeCmd)
	rootCmd.AddCommand(receiptCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(paymentTypesCmd)
	rootCmd.AddCommand(taxCmd)
	rootCmd.AddCommand(statsCmd)
}

// env holds what every command needs once configuration is loaded.
type env struct {
	cfg   *config.Config
	paths *pathutil.PathResolver
}

// loadEnv loads configuration and resolves local paths.
func loadEnv(required ...[]string) *env {
	cfg, err := config.Load(cfgFile)
	exitOnError(err, "failed to load configuration")

	if cfg.Debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	err = cfg.Validate(append([][]string{{"nalog", "apiUrl"}, {"paths", "root"}}, required...)...)
	exitOnError(err, "invalid configuration")

	paths := pathutil.New(pathutil.Config{
		Root:         cfg.Paths.Root,
		TokenPath:    cfg.Paths.TokenPath,
		DatabasePath: cfg.Paths.DBPath,
		LedgerRoot:   cfg.Paths.LedgerRoot,
		CatalogPath:  cfg.Paths.CatalogPath,
	})

	return &env{cfg: cfg, paths: paths}
}

// client builds a tax service client whose token lives in the state directory.
func (e *env) client() *nalog.Client {
	deviceID := e.cfg.Nalog.DeviceID
	if deviceID == "" {
		id, err := nalog.LoadOrCreateDeviceID(e.paths.GetDeviceIDPath())
		exitOnError(err, "failed to load device id")
		deviceID = id
	}

	client, err := nalog.NewClient(nalog.ClientConfig{
		BaseURL:     e.cfg.Nalog.APIURL,
		StoragePath: e.paths.GetTokenPath(),
		DeviceID:    deviceID,
		Logger:      slog.Default(),
	})
	exitOnError(err, "failed to create client")

	slog.Debug("Client ready", "base_url", e.cfg.Nalog.APIURL, "state", client.Session().State().String())
	return client
}

// history opens the issue history database. Callers close the connection.
func (e *env) history() (*db.Connection, *db.IssueHistory) {
	dbPath := e.paths.GetDatabasePath()
	slog.Debug("Opening database", "path", dbPath)

	conn, err := db.Open(dbPath)
	exitOnError(err, "failed to open database")

	return conn, db.NewIssueHistory(conn)
}

// metaLastExport records the ledger month written to most recently.
const metaLastExport = "ledger.last_export"

// ledgerRepository returns the ledger files, or nil when export is disabled.
// Export runs only when NPD_LEDGER_ROOT is configured.
func (e *env) ledgerRepository(inn string) *ledger.FileSystemRepository {
	if noLedger || e.cfg.Paths.LedgerRoot == "" {
		return nil
	}
	return ledger.NewFileSystemRepository(e.paths, ledger.Header{INN: inn})
}

// exporter returns the ledger exporter, or nil when export is disabled.
func (e *env) exporter(inn string) *ledger.Exporter {
	repo := e.ledgerRepository(inn)
	if repo == nil {
		return nil
	}
	return ledger.NewExporter(repo, ledger.Accounts{})
}

// markExported remembers the month of a ledger write.
func markExported(history *db.IssueHistory, at time.Time) {
	if err := history.SetMetadata(metaLastExport, at.Format("2006-01")); err != nil {
		slog.Warn("Failed to record ledger export", "error", err)
	}
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	exitOnError(err, "failed to encode output")
	fmt.Println(string(data))
}

// Helper function to handle errors and exit.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}
