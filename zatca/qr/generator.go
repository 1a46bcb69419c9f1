// Package qr encodes the TLV payload of the invoice QR code.
package qr

import (
	"github.com/alapierre/go-zatca-client/zatca/cert"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "zatca.qr")

// Fields assembles tags 1 to 8, plus tag 9 for simplified invoices.
func Fields(f *InvoiceFields, invoiceHashB64, signatureB64 string, c *cert.Certificate) ([]Field, error) {
	fields := []Field{
		StringField(TagSellerName, f.SellerName),
		StringField(TagVATNumber, f.VATNumber),
		StringField(TagTimestamp, f.Timestamp),
		StringField(TagTotalWithVAT, f.TotalWithVAT),
		StringField(TagVATTotal, f.VATTotal),
		StringField(TagInvoiceHash, invoiceHashB64),
		StringField(TagSignature, signatureB64),
		{Tag: TagPublicKey, Value: c.RawPublicKey()},
	}
	if f.Simplified {
		sig, err := c.Signature()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Tag: TagCertificateSignature, Value: sig})
	}
	return fields, nil
}

// Generate extracts the fields from the canonical invoice and returns the base64 TLV payload.
func Generate(canonicalXML []byte, invoiceHashB64, signatureB64 string, c *cert.Certificate) (string, error) {
	f, err := ExtractFields(canonicalXML)
	if err != nil {
		return "", err
	}
	fields, err := Fields(f, invoiceHashB64, signatureB64, c)
	if err != nil {
		return "", err
	}
	payload, err := Encode(fields)
	if err != nil {
		return "", err
	}
	logger.Debugf("qr payload with %d fields, simplified=%t", len(fields), f.Simplified)
	return payload, nil
}
