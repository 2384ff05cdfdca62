package cmd

import (
	"github.com/spf13/cobra"
)

var (
	taxOKTMO    string
	taxOnlyPaid bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Show the taxpayer profile",
	Run: func(cmd *cobra.Command, args []string) {
		user, err := loadEnv().client().User().Get(cmd.Context())
		exitOnError(err, "failed to fetch user")
		printJSON(user)
	},
}

var paymentTypesCmd = &cobra.Command{
	Use:   "payment-types",
	Short: "List registered payment details",
	Run: func(cmd *cobra.Command, args []string) {
		methods, err := loadEnv().client().PaymentType().Table(cmd.Context())
		exitOnError(err, "failed to fetch payment types")
		printJSON(methods)
	},
}

// taxCmd represents the tax command group. Without a subcommand it shows
// the current tax summary.
var taxCmd = &cobra.Command{
	Use:   "tax",
	Short: "Show the current tax summary",
	Run: func(cmd *cobra.Command, args []string) {
		summary, err := loadEnv().client().Tax().Get(cmd.Context())
		exitOnError(err, "failed to fetch taxes")
		printJSON(summary)
	},
}

var taxHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show accrued tax by period",
	Run: func(cmd *cobra.Command, args []string) {
		history, err := loadEnv().client().Tax().History(cmd.Context(), taxOKTMO)
		exitOnError(err, "failed to fetch tax history")
		printJSON(history)
	},
}

var taxPaymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "Show tax payments",
	Run: func(cmd *cobra.Command, args []string) {
		payments, err := loadEnv().client().Tax().Payments(cmd.Context(), taxOKTMO, taxOnlyPaid)
		exitOnError(err, "failed to fetch tax payments")
		printJSON(payments)
	},
}

func init() {
	taxCmd.PersistentFlags().StringVar(&taxOKTMO, "oktmo", "", "Region OKTMO code (default all)")
	taxPaymentsCmd.Flags().BoolVar(&taxOnlyPaid, "only-paid", false, "Only list paid charges")

	taxCmd.AddCommand(taxHistoryCmd)
	taxCmd.AddCommand(taxPaymentsCmd)
}
