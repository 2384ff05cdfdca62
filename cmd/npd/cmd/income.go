package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pigeonworks-llc/npd-client/pkg/catalog"
	"github.com/pigeonworks-llc/npd-client/pkg/db"
	"github.com/pigeonworks-llc/npd-client/pkg/income"
	"github.com/pigeonworks-llc/npd-client/pkg/ledger"
	"github.com/pigeonworks-llc/npd-client/pkg/money"
	"github.com/pigeonworks-llc/npd-client/pkg/nalog"
)

var (
	incomeName        string
	incomeAmount      string
	incomeQuantity    string
	incomeService     string
	incomeTime        string
	incomePaymentType string
	incomeIgnoreLimit bool
	clientType        string
	clientINN         string
	clientName        string
	clientPhone       string
)

// incomeCmd represents the income command.
var incomeCmd = &cobra.Command{
	Use:   "income",
	Short: "Register an income receipt",
	Long: `Register an income receipt with the tax service.

The service is given either by --name and --amount or by --service, a key
of the YAML catalog (NPD_CATALOG_PATH). Without client flags the payer is an
anonymous individual.

The receipt is recorded in the local history and, when NPD_LEDGER_ROOT is
set, appended to the Beancount ledger.

Example:
  npd income --name "Разработка сайта" --amount 25000
  npd income --service consult --quantity 2 --client-type legal \
    --client-inn 7707083893 --client-name "ООО Вектор" --payment-type account`,
	Run: runIncome,
}

func init() {
	incomeCmd.Flags().StringVar(&incomeName, "name", "", "Service name")
	incomeCmd.Flags().StringVar(&incomeAmount, "amount", "", "Price per unit in rubles (e.g. 25000.00)")
	incomeCmd.Flags().StringVar(&incomeQuantity, "quantity", "1", "Quantity")
	incomeCmd.Flags().StringVar(&incomeService, "service", "", "Catalog service key")
	incomeCmd.Flags().StringVar(&incomeTime, "time", "", "Operation time (RFC3339, default now)")
	incomeCmd.Flags().StringVar(&incomePaymentType, "payment-type", "cash", "Payment type: cash or account")
	incomeCmd.Flags().BoolVar(&incomeIgnoreLimit, "ignore-limit", false, "Skip the server-side yearly income ceiling check")
	incomeCmd.Flags().StringVar(&clientType, "client-type", "individual", "Payer: individual, legal or foreign")
	incomeCmd.Flags().StringVar(&clientINN, "client-inn", "", "Payer INN")
	incomeCmd.Flags().StringVar(&clientName, "client-name", "", "Payer display name")
	incomeCmd.Flags().StringVar(&clientPhone, "client-phone", "", "Payer contact phone")

	incomeCmd.MarkFlagsMutuallyExclusive("service", "name")
	incomeCmd.MarkFlagsMutuallyExclusive("service", "amount")
}

func runIncome(cmd *cobra.Command, args []string) {
	e := loadEnv()

	quantity, err := money.ParseQuantity(incomeQuantity)
	exitOnError(err, "invalid --quantity")

	item, incomeAccount := buildItem(e, quantity)
	payer := buildPayer()

	paymentType := income.PaymentType(strings.ToUpper(incomePaymentType))
	if !paymentType.Valid() {
		exitOnError(fmt.Errorf("unknown payment type %q", incomePaymentType), "invalid --payment-type")
	}

	opTime := time.Now()
	if incomeTime != "" {
		opTime, err = time.Parse(time.RFC3339, incomeTime)
		exitOnError(err, "invalid --time")
	}

	opts := []nalog.IncomeOption{nalog.WithOperationTime(opTime), nalog.WithPaymentType(paymentType)}
	if incomeIgnoreLimit {
		opts = append(opts, nalog.WithIgnoreMaxTotalIncomeRestriction())
	}

	client := e.client()
	slog.Info("Registering income", "name", item.Name(), "total", item.Total().String())
	result, err := client.Income().CreateMultipleItems(cmd.Context(), []income.ServiceItem{item}, payer, opts...)
	exitOnError(err, "failed to register income")

	fmt.Printf("Receipt: %s\n", result.ApprovedReceiptUUID)
	fmt.Printf("Total:   %s\n", result.TotalAmount.StringFixed())
	if url, err := client.Receipt().PrintURL(result.ApprovedReceiptUUID); err == nil {
		fmt.Printf("Print:   %s\n", url)
	}

	// The receipt exists remotely from here on; local failures are reported
	// but do not fail the command.
	profile, _ := client.Session().Profile()
	conn, history := e.history()
	defer conn.Close()

	if err := history.RecordIncome(db.IssuedReceipt{
		UUID:          result.ApprovedReceiptUUID,
		INN:           profile.INN,
		Name:          item.Name(),
		Total:         result.TotalAmount,
		PaymentType:   string(paymentType),
		OperationTime: opTime.Format(time.RFC3339),
		IncomeAccount: incomeAccount,
	}); err != nil {
		slog.Error("Failed to record income history", "uuid", result.ApprovedReceiptUUID, "error", err)
	}

	exporter := e.exporter(profile.INN)
	if exporter == nil {
		return
	}
	payerName := ""
	if payer != nil {
		payerName = payer.DisplayName()
	}
	written, err := exporter.RecordIncome(ledger.IncomeEntry{
		ReceiptUUID:   result.ApprovedReceiptUUID,
		OperationTime: opTime,
		Name:          item.Name(),
		Payer:         payerName,
		Total:         result.TotalAmount,
		IncomeAccount: incomeAccount,
	})
	if err != nil {
		slog.Error("Failed to export income to ledger", "uuid", result.ApprovedReceiptUUID, "error", err)
		return
	}
	if !written {
		slog.Info("Receipt already in ledger", "uuid", result.ApprovedReceiptUUID)
		return
	}
	markExported(history, opTime)
	slog.Info("Exported to ledger", "uuid", result.ApprovedReceiptUUID)
}

// buildItem returns the service item and its ledger income account override.
func buildItem(e *env, quantity money.Quantity) (income.ServiceItem, string) {
	if incomeService != "" {
		c, err := catalog.Load(e.paths.GetCatalogPath())
		exitOnError(err, "failed to load service catalog")

		entry, ok := c.Lookup(incomeService)
		if !ok {
			exitOnError(fmt.Errorf("unknown service %q (known: %s)", incomeService, strings.Join(c.Keys(), ", ")), "invalid --service")
		}
		item, err := c.Item(incomeService, quantity)
		exitOnError(err, "invalid service item")
		return item, entry.IncomeAccount
	}

	if incomeName == "" || incomeAmount == "" {
		exitOnError(errors.New("either --service or both --name and --amount are required"), "invalid arguments")
	}
	amount, err := money.ParseAmount(incomeAmount)
	exitOnError(err, "invalid --amount")

	item, err := income.NewServiceItem(incomeName, amount, quantity)
	exitOnError(err, "invalid service item")
	return item, ""
}

// buildPayer returns nil for an anonymous individual.
func buildPayer() *income.Client {
	incomeType, err := income.ParseIncomeType(clientType)
	exitOnError(err, "invalid --client-type")

	if incomeType == income.FromIndividual && clientINN == "" && clientName == "" && clientPhone == "" {
		return nil
	}

	payer, err := income.NewClient(clientName, incomeType, clientINN, clientPhone)
	exitOnError(err, "invalid client")
	return &payer
}
