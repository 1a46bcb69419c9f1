package testutil

import (
	_ "embed"
	"strings"
)

// SampleInvoiceUUID is the cbc:UUID of SimplifiedInvoice.
const SampleInvoiceUUID = "3cf5ee18-ee25-44ea-a444-2cdff99aa1eb"

//go:embed testdata/simplified_invoice.xml
var simplifiedInvoice string

// SimplifiedInvoice returns an unsigned B2C invoice.
func SimplifiedInvoice() []byte {
	return []byte(simplifiedInvoice)
}

// StandardInvoice returns the same invoice typed as a B2B tax invoice.
func StandardInvoice() []byte {
	s := strings.Replace(simplifiedInvoice, `name="0200000"`, `name="0100000"`, 1)
	s = strings.Replace(s, "reporting:1.0", "clearance:1.0", 1)
	return []byte(s)
}

// WithoutSupplierParty drops the cac:AccountingSupplierParty element.
func WithoutSupplierParty() []byte {
	s := simplifiedInvoice
	start := strings.Index(s, "<cac:AccountingSupplierParty>")
	end := strings.Index(s, "</cac:AccountingSupplierParty>") + len("</cac:AccountingSupplierParty>")
	return []byte(s[:start] + s[end:])
}
