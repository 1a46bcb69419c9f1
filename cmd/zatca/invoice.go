package main

import (
	"fmt"
	"os"

	"github.com/alapierre/go-zatca-client/zatca/invoice"
	"github.com/alapierre/go-zatca-client/zatca/keys"
	"github.com/alapierre/go-zatca-client/zatca/model"
	"github.com/alapierre/go-zatca-client/zatca/qr"
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
)

var hashCmd = &cobra.Command{
	Use:   "hash <invoice.xml>",
	Short: "Print the UUID and invoice hash",
	Args:  cobra.ExactArgs(1),
	RunE:  runHash,
}

var signCmd = &cobra.Command{
	Use:   "sign <invoice.xml>",
	Short: "Sign an invoice and embed its QR code",
	Long: `Sign an unsigned invoice with the credential certificate and private key.

Examples:
  zatca sign invoice.xml --credential compliance.json --key private.pem --out signed.xml --png qr.png`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

var qrCmd = &cobra.Command{
	Use:   "qr <payload>",
	Short: "Decode a QR payload",
	Long: `Decode a base64 TLV QR payload and print its fields.

Examples:
  zatca qr ARlNYXhpbXVtIFNwZWVkIFRlY2ggU3VwcGx5... --png qr.png`,
	Args: cobra.ExactArgs(1),
	RunE: runQR,
}

var (
	credentialPath string
	keyPath        string
	signedOut      string
	pngOut         string
	pngSize        int
)

func init() {
	for _, c := range []*cobra.Command{signCmd, submitCmd} {
		c.Flags().StringVar(&credentialPath, "credential", "credential.json", "CSID credential file")
		c.Flags().StringVar(&keyPath, "key", "private.pem", "private key file")
	}
	signCmd.Flags().StringVar(&signedOut, "out", "signed.xml", "signed invoice output file")
	for _, c := range []*cobra.Command{signCmd, qrCmd} {
		c.Flags().StringVar(&pngOut, "png", "", "also render the QR code to this PNG file")
		c.Flags().IntVar(&pngSize, "png-size", qr.DefaultPNGSize, "PNG edge length in pixels")
	}
}

func runHash(cmd *cobra.Command, args []string) error {
	doc, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrap(err, "read invoice")
	}
	inv, err := invoice.NewCanonicalizer().Hash(doc)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "uuid: %s\nhash: %s\n", inv.UUID, inv.InvoiceHash)
	return nil
}

func loadSigningMaterial() (*model.Credential, error) {
	cred, err := model.LoadCredential(credentialPath)
	if err != nil {
		return nil, err
	}
	return cred, cred.Validate()
}

func runSign(cmd *cobra.Command, args []string) error {
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
	signed, err := p.Signed.SignedXML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(signedOut, signed, 0o644); err != nil {
		return errors.Wrap(err, "write signed invoice")
	}
	if err := writePNG(p.Signed.QRCodeB64); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "uuid: %s\nhash: %s\nsignature: %s\nqr: %s\n",
		p.Canonical.UUID, p.Canonical.InvoiceHash, p.Signed.SignatureB64, p.Signed.QRCodeB64)
	return nil
}

var tagNames = map[qr.Tag]string{
	qr.TagSellerName:           "seller name",
	qr.TagVATNumber:            "VAT number",
	qr.TagTimestamp:            "timestamp",
	qr.TagTotalWithVAT:         "total with VAT",
	qr.TagVATTotal:             "VAT total",
	qr.TagInvoiceHash:          "invoice hash",
	qr.TagSignature:            "signature",
	qr.TagPublicKey:            "public key",
	qr.TagCertificateSignature: "certificate signature",
}

func runQR(cmd *cobra.Command, args []string) error {
	fields, err := qr.Decode(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, f := range fields {
		switch f.Tag {
		case qr.TagPublicKey, qr.TagCertificateSignature:
			fmt.Fprintf(out, "%d %s: %X\n", f.Tag, tagNames[f.Tag], f.Value)
		default:
			fmt.Fprintf(out, "%d %s: %s\n", f.Tag, tagNames[f.Tag], f.Value)
		}
	}
	return writePNG(args[0])
}

func writePNG(payload string) error {
	if pngOut == "" {
		return nil
	}
	img, err := qr.PNG(payload, pngSize)
	if err != nil {
		return err
	}
	if err := os.WriteFile(pngOut, img, 0o644); err != nil {
		return errors.Wrap(err, "write png")
	}
	return nil
}
