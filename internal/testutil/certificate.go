// Package testutil issues secp256k1 certificates and sample documents for tests.
package testutil

import (
	"encoding/asn1"
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	"github.com/alapierre/go-zatca-client/zatca/cert"
	"github.com/alapierre/go-zatca-client/zatca/keys"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var oidECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}

type CertificateOptions struct {
	Serial    *big.Int
	Issuer    []cert.Attribute
	Subject   []cert.Attribute
	NotBefore time.Time
	NotAfter  time.Time
}

// AuthorityIssuer mirrors the shape of the issuing CA name used by the gateway.
func AuthorityIssuer() []cert.Attribute {
	return []cert.Attribute{
		{Type: cert.OIDDomainComponent, Value: "local"},
		{Type: cert.OIDDomainComponent, Value: "gov"},
		{Type: cert.OIDDomainComponent, Value: "extgazt"},
		{Type: cert.OIDCommonName, Value: "TSZEINVOICE-SubCA-1"},
	}
}

func DefaultCertificateOptions() CertificateOptions {
	serial, _ := new(big.Int).SetString("379112742831380471835263969587287663520528387", 10)
	return CertificateOptions{
		Serial: serial,
		Issuer: AuthorityIssuer(),
		Subject: []cert.Attribute{
			{Type: asn1.ObjectIdentifier{2, 5, 4, 6}, Value: "SA"},
			{Type: asn1.ObjectIdentifier{2, 5, 4, 11}, Value: "Riyadh Branch"},
			{Type: asn1.ObjectIdentifier{2, 5, 4, 10}, Value: "Maximum Speed Tech Supply LTD"},
			{Type: cert.OIDCommonName, Value: "TST-886431145-399999999900003"},
		},
		NotBefore: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:  time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// IssueCertificate returns the DER of a certificate for subject signed by issuer.
func IssueCertificate(t testing.TB, subject *secp256k1.PublicKey, issuer *secp256k1.PrivateKey, opts CertificateOptions) []byte {
	t.Helper()

	issuerName, err := cert.MarshalName(opts.Issuer)
	if err != nil {
		t.Fatalf("issuer name: %v", err)
	}
	subjectName, err := cert.MarshalName(opts.Subject)
	if err != nil {
		t.Fatalf("subject name: %v", err)
	}

	var tbs cryptobyte.Builder
	tbs.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.Tag(0).Constructed().ContextSpecific(), func(b *cryptobyte.Builder) {
			b.AddASN1Int64(2)
		})
		b.AddASN1BigInt(opts.Serial)
		addAlgorithm(b)
		b.AddBytes(issuerName)
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1GeneralizedTime(opts.NotBefore)
			b.AddASN1GeneralizedTime(opts.NotAfter)
		})
		b.AddBytes(subjectName)
		b.AddBytes(keys.SubjectPublicKeyInfo(subject))
	})
	tbsDER, err := tbs.Bytes()
	if err != nil {
		t.Fatalf("tbs certificate: %v", err)
	}

	var out cryptobyte.Builder
	out.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddBytes(tbsDER)
		addAlgorithm(b)
		b.AddASN1BitString(keys.Sign(issuer, tbsDER))
	})
	der, err := out.Bytes()
	if err != nil {
		t.Fatalf("certificate: %v", err)
	}
	return der
}

func addAlgorithm(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(oidECDSAWithSHA256)
	})
}

// Token wraps a certificate the way the gateway returns binarySecurityToken.
func Token(der []byte) string {
	body := base64.StdEncoding.EncodeToString(der)
	return base64.StdEncoding.EncodeToString([]byte(body))
}

// SigningIdentity is a key pair with its certificate.
type SigningIdentity struct {
	Key         *secp256k1.PrivateKey
	Issuer      *secp256k1.PrivateKey
	Certificate []byte
	Token       string
}

func NewSigningIdentity(t testing.TB) *SigningIdentity {
	t.Helper()
	key, err := keys.Generate()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	issuer, err := keys.Generate()
	if err != nil {
		t.Fatalf("generate issuer key: %v", err)
	}
	der := IssueCertificate(t, key.PubKey(), issuer, DefaultCertificateOptions())
	return &SigningIdentity{Key: key, Issuer: issuer, Certificate: der, Token: Token(der)}
}
