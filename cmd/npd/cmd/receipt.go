package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/pigeonworks-llc/npd-client/pkg/income"
	"github.com/pigeonworks-llc/npd-client/pkg/ledger"
)

var cancelReason string

// receiptCmd represents the receipt command group.
var receiptCmd = &cobra.Command{
	Use:   "receipt",
	Short: "Fetch, print or cancel receipts",
}

var receiptJSONCmd = &cobra.Command{
	Use:   "json <uuid>",
	Short: "Print the receipt document as returned by the service",
	Args:  cobra.ExactArgs(1),
	Run:   runReceiptJSON,
}

var receiptPrintCmd = &cobra.Command{
	Use:   "print <uuid>",
	Short: "Print the address of the printable receipt",
	Args:  cobra.ExactArgs(1),
	Run:   runReceiptPrint,
}

var receiptCancelCmd = &cobra.Command{
	Use:   "cancel <uuid>",
	Short: "Cancel a receipt",
	Long: `Cancel a receipt. Cancelling an already cancelled receipt succeeds and
reports the earlier cancellation.

Example:
  npd receipt cancel 200abc1234 --reason refund`,
	Args: cobra.ExactArgs(1),
	Run:  runReceiptCancel,
}

func init() {
	receiptCancelCmd.Flags().StringVar(&cancelReason, "reason", "", "Cancel reason: mistake or refund (required)")
	receiptCancelCmd.MarkFlagRequired("reason")

	receiptCmd.AddCommand(receiptJSONCmd)
	receiptCmd.AddCommand(receiptPrintCmd)
	receiptCmd.AddCommand(receiptCancelCmd)
}

func runReceiptJSON(cmd *cobra.Command, args []string) {
	e := loadEnv()

	receipt, err := e.client().Receipt().JSON(cmd.Context(), args[0])
	exitOnError(err, "failed to fetch receipt")

	var out bytes.Buffer
	exitOnError(json.Indent(&out, receipt.Raw, "", "  "), "failed to format receipt")
	fmt.Println(out.String())
}

func runReceiptPrint(cmd *cobra.Command, args []string) {
	e := loadEnv()

	url, err := e.client().Receipt().PrintURL(args[0])
	exitOnError(err, "failed to build print URL")
	fmt.Println(url)
}

func runReceiptCancel(cmd *cobra.Command, args []string) {
	e := loadEnv()
	uuid := args[0]

	reason, err := income.ParseCancelReason(cancelReason)
	exitOnError(err, "invalid --reason")

	result, err := e.client().Receipt().Cancel(cmd.Context(), uuid, reason)
	exitOnError(err, "failed to cancel receipt")

	if result.AlreadyCancelled {
		fmt.Printf("Receipt %s was already cancelled: %s\n", uuid, result.CancellationInfo.Comment)
	} else {
		fmt.Printf("Receipt %s cancelled\n", uuid)
	}

	cancelledAt, err := time.Parse(time.RFC3339, result.CancellationInfo.OperationTime)
	if err != nil {
		cancelledAt = time.Now()
	}

	conn, history := e.history()
	defer conn.Close()

	// The history may not know the receipt, or may have missed a
	// cancellation made elsewhere; only a local transition is exported.
	record, err := history.GetReceipt(uuid)
	if err != nil {
		slog.Error("Failed to read history", "uuid", uuid, "error", err)
		return
	}
	changed, err := history.RecordCancel(uuid, result.CancellationInfo.Comment, cancelledAt)
	if err != nil {
		slog.Error("Failed to record cancellation", "uuid", uuid, "error", err)
		return
	}

	if !changed || record == nil {
		return
	}
	exporter := e.exporter(record.INN)
	if exporter == nil {
		return
	}

	written, err := exporter.RecordCancel(ledger.CancelEntry{
		ReceiptUUID:   uuid,
		CancelledAt:   cancelledAt,
		Name:          record.Name,
		Comment:       result.CancellationInfo.Comment,
		Total:         record.Total,
		IncomeAccount: record.IncomeAccount,
	})
	if err != nil {
		slog.Error("Failed to export cancellation to ledger", "uuid", uuid, "error", err)
		return
	}
	if !written {
		slog.Info("Cancellation already in ledger", "uuid", uuid)
		return
	}
	markExported(history, cancelledAt)
	slog.Info("Exported cancellation to ledger", "uuid", uuid)
}
