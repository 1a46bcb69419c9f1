package model

import (
	"encoding/base64"

	"github.com/go-faster/errors"
)

// CanonicalInvoice is the hashed, canonical form of an unsigned invoice.
type CanonicalInvoice struct {
	UUID            string `json:"uuid"`
	InvoiceHash     string `json:"invoiceHash"`     // base64 SHA-256 of the canonical document
	InvoiceB64      string `json:"invoice"`         // XML declaration, newline, canonical document
	CanonicalXMLB64 string `json:"canonicalXmlB64"` // canonical document alone
}

// CanonicalXML decodes CanonicalXMLB64.
func (c *CanonicalInvoice) CanonicalXML() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(c.CanonicalXMLB64)
	if err != nil {
		return nil, errors.Wrap(err, "decode canonical xml")
	}
	return b, nil
}

// HashBytes decodes InvoiceHash.
func (c *CanonicalInvoice) HashBytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(c.InvoiceHash)
	if err != nil {
		return nil, errors.Wrap(err, "decode invoice hash")
	}
	return b, nil
}

// SignedInvoice is the final artifact sent to the gateway.
type SignedInvoice struct {
	SignatureB64     string `json:"signature"`
	SignedInvoiceB64 string `json:"signedInvoice"`
	QRCodeB64        string `json:"qrCode"`
}

// SignedXML decodes SignedInvoiceB64.
func (s *SignedInvoice) SignedXML() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s.SignedInvoiceB64)
	if err != nil {
		return nil, errors.Wrap(err, "decode signed invoice")
	}
	return b, nil
}
