package qr

import (
	"strings"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/invoice"
	"github.com/beevik/etree"
	"github.com/go-faster/errors"
)

var (
	sellerNamePath   = invoice.MustCompile("//cac:AccountingSupplierParty/cac:Party/cac:PartyLegalEntity/cbc:RegistrationName")
	vatNumberPath    = invoice.MustCompile("//cac:AccountingSupplierParty/cac:Party/cac:PartyTaxScheme/cbc:CompanyID")
	issueDatePath    = invoice.MustCompile("//cbc:IssueDate")
	issueTimePath    = invoice.MustCompile("//cbc:IssueTime")
	payableTotalPath = invoice.MustCompile("//cac:LegalMonetaryTotal/cbc:PayableAmount")
	vatTotalPath     = invoice.MustCompile("//cac:TaxTotal/cbc:TaxAmount")
	typeCodePath     = invoice.MustCompile("//cbc:InvoiceTypeCode")
)

// InvoiceFields are the values a QR code copies from the invoice.
type InvoiceFields struct {
	SellerName   string
	VATNumber    string
	Timestamp    string // IssueDate "T" IssueTime
	TotalWithVAT string
	VATTotal     string
	// Simplified marks B2C invoices, whose InvoiceTypeCode name starts with 02.
	Simplified bool
}

// ExtractFields reads InvoiceFields from an invoice document.
func ExtractFields(invoiceXML []byte) (*InvoiceFields, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(invoiceXML); err != nil {
		return nil, zatca.Document("extract qr fields", errors.Wrap(zatca.ErrMalformedInvoice, err.Error()))
	}
	root := doc.Root()
	if root == nil {
		return nil, zatca.Document("extract qr fields", errors.Wrap(zatca.ErrMalformedInvoice, "no root element"))
	}

	var missing []string
	text := func(p *invoice.Path) string {
		v, ok := p.Text(root)
		if !ok {
			missing = append(missing, p.String())
		}
		return v
	}

	f := &InvoiceFields{
		SellerName:   text(sellerNamePath),
		VATNumber:    text(vatNumberPath),
		TotalWithVAT: text(payableTotalPath),
		VATTotal:     text(vatTotalPath),
	}
	date, clock := text(issueDatePath), text(issueTimePath)
	f.Timestamp = date + "T" + clock

	if len(missing) > 0 {
		return nil, zatca.Document("extract qr fields", errors.Wrapf(zatca.ErrMalformedInvoice, "missing %s", strings.Join(missing, ", ")))
	}

	if tc := typeCodePath.First(root); tc != nil {
		f.Simplified = strings.HasPrefix(tc.SelectAttrValue("name", ""), "02")
	}
	return f, nil
}
