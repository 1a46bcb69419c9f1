package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/alapierre/go-zatca-client/zatca/keys"
	"github.com/alapierre/go-zatca-client/zatca/model"
	"github.com/alapierre/go-zatca-client/zatca/util"
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
)

var complianceCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Exchange a CSR and OTP for a compliance CSID",
	Long: `Request a compliance CSID. The OTP is taken from --otp or ZATCA_OTP.

Examples:
  ZATCA_OTP=123345 zatca compliance --csr request.csr --out compliance.json`,
	RunE: runCompliance,
}

var productionCmd = &cobra.Command{
	Use:   "production",
	Short: "Exchange a compliance CSID for a production CSID",
	RunE:  runProduction,
}

var submitCmd = &cobra.Command{
	Use:   "submit <invoice.xml>",
	Short: "Sign an invoice and report or clear it",
	Long: `Sign an invoice and send it to the gateway. Simplified invoices are reported,
standard invoices are cleared. With --compliance the invoice goes to the
compliance checks instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

var (
	csrPath          string
	otp              string
	credentialOut    string
	complianceCheck  bool
	compliancePath   string
	productionOutput string
)

func init() {
	complianceCmd.Flags().StringVar(&csrPath, "csr", "request.csr", "PEM CSR file")
	complianceCmd.Flags().StringVar(&otp, "otp", "", "one time password from the Fatoora portal")
	complianceCmd.Flags().StringVar(&credentialOut, "out", "compliance.json", "credential output file")

	productionCmd.Flags().StringVar(&compliancePath, "credential", "compliance.json", "compliance CSID file")
	productionCmd.Flags().StringVar(&productionOutput, "out", "production.json", "credential output file")

	submitCmd.Flags().BoolVar(&complianceCheck, "compliance", false, "send to the compliance checks")
}

func runCompliance(cmd *cobra.Command, args []string) error {
	pemCSR, err := os.ReadFile(csrPath)
	if err != nil {
		return errors.Wrap(err, "read csr")
	}
	if otp == "" {
		otp = util.GetEnvOrFailed("ZATCA_OTP")
	}
	s, err := newService()
	if err != nil {
		return err
	}
	cred, err := s.Client().IssueComplianceCSID(context.Background(), encodeCSR(pemCSR), otp)
	if err != nil {
		return err
	}
	if err := cred.Save(credentialOut); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "compliance CSID %d saved to %s\n", cred.RequestID, credentialOut)
	return nil
}

func runProduction(cmd *cobra.Command, args []string) error {
	compliance, err := model.LoadCredential(compliancePath)
	if err != nil {
		return err
	}
	s, err := newService()
	if err != nil {
		return err
	}
	cred, err := s.Client().IssueProductionCSID(context.Background(), *compliance)
	if err != nil {
		return err
	}
	if err := cred.Save(productionOutput); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "production CSID %d saved to %s\n", cred.RequestID, productionOutput)
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	doc, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrap(err, "read invoice")
	}
	cred, err := loadSigningMaterial()
	if err != nil {
		return err
	}
	key, err := keys.LoadPrivateKeyFromFile(keyPath)
	if err != nil {
		return err
	}
	s, err := newService()
	if err != nil {
		return err
	}
	p, err := s.ProcessInvoice(*cred, key, doc)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var res *model.SubmissionResponse
	if complianceCheck {
		res, err = s.CheckCompliance(ctx, *cred, p)
	} else {
		res, err = s.Submit(ctx, *cred, p)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: http %d, status %s\n", p.Canonical.UUID, res.HTTPStatus, res.Status())
	if res.Validation != nil && res.Validation.ValidationResults != nil {
		for _, m := range res.Validation.ValidationResults.WarningMessages {
			fmt.Fprintf(out, "warning: %s\n", m)
		}
	}
	for _, m := range res.Validation.Errors() {
		fmt.Fprintf(out, "error: %s\n", m)
	}
	if !res.IsSubmitted {
		return errors.Errorf("invoice %s was not accepted", p.Canonical.UUID)
	}
	return nil
}

// encodeCSR is the form the compliance endpoint expects: base64 of the PEM text.
func encodeCSR(pemCSR []byte) string {
	return base64.StdEncoding.EncodeToString(pemCSR)
}
