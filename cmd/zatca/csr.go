package main

import (
	"fmt"

	"github.com/alapierre/go-zatca-client/zatca/csr"
	"github.com/spf13/cobra"
)

var csrCmd = &cobra.Command{
	Use:   "csr",
	Short: "Generate a private key and certificate signing request",
	Long: `Generate a secp256k1 private key and a CSR for the configured environment.

Examples:
  zatca csr --cn TST-886431145-399999999900003 --org "Maximum Speed Tech Supply LTD" \
      --unit "Riyadh Branch" --serial "1-TST|2-TST|3-ed22f1d8-e6a2-1118-9b58-d9a8f11e445f" \
      --vat 399999999900003 --address RRRD2929 --category "Supply activities" \
      --csr-out request.csr --key-out private.pem`,
	RunE: runCSR,
}

var (
	csrProfile csr.Profile
	csrOut     string
	csrKeyOut  string
)

func init() {
	f := csrCmd.Flags()
	f.StringVar(&csrProfile.CommonName, "cn", "", "common name")
	f.StringVar(&csrProfile.OrganizationName, "org", "", "organization name")
	f.StringVar(&csrProfile.OrganizationalUnitName, "unit", "", "organizational unit, the branch name")
	f.StringVar(&csrProfile.Country, "country", "SA", "country code")
	f.StringVar(&csrProfile.SerialNumber, "serial", "", `EGS serial number "1-solution|2-model|3-device id"`)
	f.StringVar(&csrProfile.OrganizationIdentifier, "vat", "", "VAT registration number, 15 digits starting and ending with 3")
	f.StringVar(&csrProfile.Address, "address", "", "registered address")
	f.StringVar(&csrProfile.InvoiceType, "invoice-type", "1100", "invoice types the unit issues")
	f.StringVar(&csrProfile.BusinessCategory, "category", "", "business category")
	f.StringVar(&csrOut, "csr-out", "request.csr", "CSR output file")
	f.StringVar(&csrKeyOut, "key-out", "private.pem", "private key output file")
}

func runCSR(cmd *cobra.Command, args []string) error {
	s, err := newService()
	if err != nil {
		return err
	}
	b, err := s.NewCSR(csrProfile)
	if err != nil {
		return err
	}
	if err := b.SavePrivateKey(csrKeyOut); err != nil {
		return err
	}
	if err := b.SaveCSR(csrOut); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s CSR written to %s, key to %s\n", cfg.Environment, csrOut, csrKeyOut)
	return nil
}
