// Command zatca onboards an EGS unit and signs, encodes and submits invoices.
package main

import (
	"fmt"
	"os"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/service"
	"github.com/alapierre/go-zatca-client/zatca/util"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	debug bool
	cfg   *zatca.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "zatca",
	Short: "ZATCA e-invoicing toolkit",
	Long: `zatca generates certificate requests, obtains compliance and production
CSIDs, signs invoices, encodes QR codes and submits invoices to the gateway.

The environment is read from ZATCA_ENV (sandbox, simulation, production).

Examples:
  # Generate a key and CSR
  zatca csr --cn TST-886431145-399999999900003 --org "Maximum Speed Tech Supply LTD" \
      --unit "Riyadh Branch" --serial "1-TST|2-TST|3-ed22f1d8" --vat 399999999900003 \
      --address RRRD2929 --category "Supply activities"

  # Obtain a compliance CSID
  ZATCA_OTP=123345 zatca compliance --csr request.csr --out compliance.json

  # Sign and report an invoice
  zatca submit invoice.xml --credential production.json --key private.pem`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := zatca.LoadConfig()
		if err != nil {
			return err
		}
		c.ConfigureLogging(debug || util.DebugEnabled())
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")

	rootCmd.AddCommand(csrCmd)
	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(qrCmd)
	rootCmd.AddCommand(complianceCmd)
	rootCmd.AddCommand(productionCmd)
	rootCmd.AddCommand(submitCmd)
}

func newService() (*service.Service, error) {
	return service.New(*cfg, nil)
}
