// Package cert reads the authority issued signing certificate.
//
// The authority uses secp256k1, which crypto/x509 refuses to parse, so the
// certificate is walked with cryptobyte instead.
package cert

import (
	"bytes"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/keys"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var logger = logrus.WithField("component", "zatca.cert")

// signatureWindow is how far from the end of the DER the issuer signature is searched for.
const signatureWindow = 72

type Certificate struct {
	Raw    []byte // DER
	Body   string // base64 of Raw, as embedded in ds:X509Certificate
	RawTBS []byte

	SerialNumber *big.Int
	RawIssuer    []byte
	Issuer       []Attribute
	Subject      []Attribute
	NotBefore    time.Time
	NotAfter     time.Time

	PublicKey          *secp256k1.PublicKey
	SignatureAlgorithm asn1.ObjectIdentifier
	SignatureValue     []byte // issuer signature read from the outer BIT STRING
}

func parseError(err error) error {
	return zatca.Crypto("parse certificate", errors.Wrap(zatca.ErrCertificateParse, err.Error()))
}

// Parse reads a DER encoded certificate.
func Parse(der []byte) (*Certificate, error) {
	c := &Certificate{
		Raw:          der,
		Body:         base64.StdEncoding.EncodeToString(der),
		SerialNumber: new(big.Int),
	}

	input := cryptobyte.String(der)
	var certSeq cryptobyte.String
	if !input.ReadASN1(&certSeq, cbasn1.SEQUENCE) {
		return nil, parseError(errors.New("malformed certificate"))
	}
	if !input.Empty() {
		return nil, parseError(errors.New("trailing data after certificate"))
	}

	var rawTBS cryptobyte.String
	if !certSeq.ReadASN1Element(&rawTBS, cbasn1.SEQUENCE) {
		return nil, parseError(errors.New("malformed tbs certificate"))
	}
	c.RawTBS = rawTBS

	if err := c.parseTBS(rawTBS); err != nil {
		return nil, parseError(err)
	}

	var sigAlg cryptobyte.String
	if !certSeq.ReadASN1(&sigAlg, cbasn1.SEQUENCE) || !sigAlg.ReadASN1ObjectIdentifier(&c.SignatureAlgorithm) {
		return nil, parseError(errors.New("malformed signature algorithm"))
	}
	var sig asn1.BitString
	if !certSeq.ReadASN1BitString(&sig) {
		return nil, parseError(errors.New("malformed signature value"))
	}
	c.SignatureValue = sig.RightAlign()

	return c, nil
}

func (c *Certificate) parseTBS(raw cryptobyte.String) error {
	var tbs cryptobyte.String
	if !raw.ReadASN1(&tbs, cbasn1.SEQUENCE) {
		return errors.New("malformed tbs certificate")
	}
	if !tbs.SkipOptionalASN1(cbasn1.Tag(0).Constructed().ContextSpecific()) {
		return errors.New("malformed version")
	}
	if !tbs.ReadASN1Integer(c.SerialNumber) {
		return errors.New("malformed serial number")
	}
	if !tbs.SkipASN1(cbasn1.SEQUENCE) {
		return errors.New("malformed tbs signature algorithm")
	}

	var issuer cryptobyte.String
	if !tbs.ReadASN1Element(&issuer, cbasn1.SEQUENCE) {
		return errors.New("malformed issuer")
	}
	c.RawIssuer = issuer
	var err error
	if c.Issuer, err = ParseName(issuer); err != nil {
		return errors.Wrap(err, "issuer")
	}

	var validity cryptobyte.String
	if !tbs.ReadASN1(&validity, cbasn1.SEQUENCE) {
		return errors.New("malformed validity")
	}
	if c.NotBefore, err = readTime(&validity); err != nil {
		return errors.Wrap(err, "notBefore")
	}
	if c.NotAfter, err = readTime(&validity); err != nil {
		return errors.Wrap(err, "notAfter")
	}

	var subject cryptobyte.String
	if !tbs.ReadASN1Element(&subject, cbasn1.SEQUENCE) {
		return errors.New("malformed subject")
	}
	if c.Subject, err = ParseName(subject); err != nil {
		return errors.Wrap(err, "subject")
	}

	var spki cryptobyte.String
	if !tbs.ReadASN1(&spki, cbasn1.SEQUENCE) {
		return errors.New("malformed subject public key info")
	}
	c.PublicKey, err = parsePublicKey(spki)
	return err
}

func readTime(s *cryptobyte.String) (time.Time, error) {
	var t time.Time
	switch {
	case s.PeekASN1Tag(cbasn1.UTCTime):
		if !s.ReadASN1UTCTime(&t) {
			return t, errors.New("malformed UTCTime")
		}
	case s.PeekASN1Tag(cbasn1.GeneralizedTime):
		if !s.ReadASN1GeneralizedTime(&t) {
			return t, errors.New("malformed GeneralizedTime")
		}
	default:
		return t, errors.New("unsupported time format")
	}
	return t, nil
}

func parsePublicKey(spki cryptobyte.String) (*secp256k1.PublicKey, error) {
	var algo cryptobyte.String
	var algOID asn1.ObjectIdentifier
	if !spki.ReadASN1(&algo, cbasn1.SEQUENCE) || !algo.ReadASN1ObjectIdentifier(&algOID) {
		return nil, errors.New("malformed public key algorithm")
	}
	if !algOID.Equal(keys.OIDPublicKeyECDSA) {
		return nil, errors.Wrapf(zatca.ErrUnsupportedPublicKey, "public key is not EC (%s)", algOID)
	}
	var curve asn1.ObjectIdentifier
	if !algo.ReadASN1ObjectIdentifier(&curve) {
		return nil, errors.New("missing named curve")
	}
	if !curve.Equal(keys.OIDCurveSecp256k1) {
		return nil, errors.Wrapf(zatca.ErrUnsupportedPublicKey, "curve %s", curve)
	}
	var point asn1.BitString
	if !spki.ReadASN1BitString(&point) {
		return nil, errors.New("malformed public key")
	}
	pub, err := secp256k1.ParsePubKey(point.RightAlign())
	if err != nil {
		return nil, errors.Wrap(err, "public key point")
	}
	return pub, nil
}

// ParseAny accepts a PEM certificate, a bare base64 body or raw DER.
func ParseAny(content []byte) (*Certificate, error) {
	content = bytes.TrimSpace(content)
	if block, _ := pem.Decode(content); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, parseError(errors.Errorf("unexpected PEM block: %s", block.Type))
		}
		return Parse(block.Bytes)
	}
	if len(content) > 0 && content[0] == 0x30 {
		return Parse(content)
	}
	der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(string(content)), ""))
	if err != nil {
		return nil, parseError(errors.Wrap(err, "certificate is neither PEM, DER nor base64"))
	}
	return Parse(der)
}

// FromBinarySecurityToken decodes the token issued with a CSID. The token is the
// base64 encoding of the base64 certificate body; a token that is directly the
// base64 of the DER is accepted too.
func FromBinarySecurityToken(token string) (*Certificate, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return nil, parseError(errors.Wrap(err, "binary security token is not base64"))
	}
	if len(decoded) > 0 && decoded[0] == 0x30 {
		if c, err := Parse(decoded); err == nil {
			return c, nil
		}
	}

	body := strings.TrimSpace(string(decoded))
	der, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, parseError(errors.Wrap(err, "certificate body is not base64"))
	}
	c, err := Parse(der)
	if err != nil {
		return nil, err
	}
	c.Body = body
	return c, nil
}

func LoadCertificateFromFile(path string) (*Certificate, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read cert file")
	}
	return ParseAny(b)
}

// PEM returns the certificate wrapped in PEM armor.
func (c *Certificate) PEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Raw})
}

// RawPublicKey returns the uncompressed SubjectPublicKeyInfo DER of the certificate key.
func (c *Certificate) RawPublicKey() []byte {
	return keys.SubjectPublicKeyInfo(c.PublicKey)
}

// Signature returns the issuer signature found by the tail window scan. The ASN.1
// walked SignatureValue is only compared against it and logged on mismatch.
func (c *Certificate) Signature() ([]byte, error) {
	sig, err := ExtractSignature(c.Raw)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(sig, c.SignatureValue) {
		logger.Warnf("tail window signature (%d bytes) differs from the encoded signature value (%d bytes)", len(sig), len(c.SignatureValue))
	}
	return sig, nil
}

// ExtractSignature returns everything from the first SEQUENCE tag within the
// last 72 bytes of der to its end.
func ExtractSignature(der []byte) ([]byte, error) {
	start := len(der) - signatureWindow
	if start < 0 {
		start = 0
	}
	idx := bytes.IndexByte(der[start:], 0x30)
	if idx < 0 {
		return nil, zatca.Crypto("extract signature", zatca.ErrSignatureExtraction)
	}
	return der[start+idx:], nil
}

// IssuerName renders the issuer as the signature expects it: the common name
// first, then the domain components in reverse certificate order.
func (c *Certificate) IssuerName() string {
	var parts []string
	for _, cn := range Find(c.Issuer, OIDCommonName) {
		parts = append(parts, "CN="+cn)
	}
	dcs := Find(c.Issuer, OIDDomainComponent)
	for i := len(dcs) - 1; i >= 0; i-- {
		parts = append(parts, "DC="+dcs[i])
	}
	return strings.Join(parts, ", ")
}

// SerialDecimal returns the serial number in base 10.
func (c *Certificate) SerialDecimal() string {
	return c.SerialNumber.Text(10)
}

// HexToDecimal converts a hexadecimal serial number to base 10 without loss.
func HexToDecimal(hexSerial string) (string, error) {
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(hexSerial)), "0x")
	s = strings.ReplaceAll(s, ":", "")
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return "", zatca.Validation("hex to decimal", errors.Errorf("invalid hexadecimal serial %q", hexSerial))
	}
	return n.Text(10), nil
}
