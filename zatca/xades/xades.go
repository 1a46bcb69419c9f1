// Package xades builds and hashes the XAdES SignedProperties of an invoice signature.
package xades

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"github.com/alapierre/go-zatca-client/zatca/cert"
	godss "github.com/alapierre/godss/xades"
)

const (
	// SigningTimeLayout is local time without a zone suffix.
	SigningTimeLayout = "2006-01-02T15:04:05"

	SignedPropertiesID = "xadesSignedProperties"
	dsNamespace        = "http://www.w3.org/2000/09/xmldsig#"
	xadesNamespace     = "http://uri.etsi.org/01903/v1.3.2#"
	sha256Algorithm    = "http://www.w3.org/2001/04/xmlenc#sha256"
)

// SignedProperties are the protected attributes of the signature.
type SignedProperties struct {
	SigningTime  string
	CertDigest   string // HexBase64 of the certificate body
	IssuerName   string
	SerialNumber string // decimal
}

// ForCertificate collects the properties of c signed at t.
func ForCertificate(c *cert.Certificate, t time.Time) SignedProperties {
	return SignedProperties{
		SigningTime:  FormatSigningTime(t),
		CertDigest:   CertificateDigest(c),
		IssuerName:   c.IssuerName(),
		SerialNumber: c.SerialDecimal(),
	}
}

func FormatSigningTime(t time.Time) string {
	return t.Format(SigningTimeLayout)
}

// HexBase64 is base64 of the lowercase hex SHA-256 of data.
func HexBase64(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(sum[:])))
}

// CertificateDigest hashes the base64 certificate body exactly as it appears in ds:X509Certificate.
func CertificateDigest(c *cert.Certificate) string {
	return HexBase64([]byte(c.Body))
}

func indent(n int) string {
	return strings.Repeat(" ", n)
}

// Fragment renders the SignedProperties element with the indentation it has
// inside the signature extension, so that both hash to the same value.
func (p SignedProperties) Fragment() string {
	x := godss.Prefix
	ds := `xmlns:ds="` + dsNamespace + `"`

	lines := []string{
		`<` + x + `:` + godss.SignedPropertiesTag + ` xmlns:` + x + `="` + xadesNamespace + `" Id="` + SignedPropertiesID + `">`,
		indent(36) + `<` + x + `:` + godss.SignedSignaturePropertiesTag + `>`,
		indent(40) + `<` + x + `:` + godss.SigningTimeTag + `>` + p.SigningTime + `</` + x + `:` + godss.SigningTimeTag + `>`,
		indent(40) + `<` + x + `:` + godss.SigningCertificateTag + `>`,
		indent(44) + `<` + x + `:` + godss.CertTag + `>`,
		indent(48) + `<` + x + `:` + godss.CertDigestTag + `>`,
		indent(52) + `<ds:DigestMethod ` + ds + ` Algorithm="` + sha256Algorithm + `"/>`,
		indent(52) + `<ds:DigestValue ` + ds + `>` + p.CertDigest + `</ds:DigestValue>`,
		indent(48) + `</` + x + `:` + godss.CertDigestTag + `>`,
		indent(48) + `<` + x + `:` + godss.IssuerSerialTag + `>`,
		indent(52) + `<ds:X509IssuerName ` + ds + `>` + p.IssuerName + `</ds:X509IssuerName>`,
		indent(52) + `<ds:X509SerialNumber ` + ds + `>` + p.SerialNumber + `</ds:X509SerialNumber>`,
		indent(48) + `</` + x + `:` + godss.IssuerSerialTag + `>`,
		indent(44) + `</` + x + `:` + godss.CertTag + `>`,
		indent(40) + `</` + x + `:` + godss.SigningCertificateTag + `>`,
		indent(36) + `</` + x + `:` + godss.SignedSignaturePropertiesTag + `>`,
		indent(32) + `</` + x + `:` + godss.SignedPropertiesTag + `>`,
	}
	return strings.Join(lines, "\n")
}

// Hash is HexBase64 of the fragment after line ending normalization and trimming.
func (p SignedProperties) Hash() string {
	s := strings.ReplaceAll(p.Fragment(), "\r\n", "\n")
	return HexBase64([]byte(strings.TrimSpace(s)))
}
