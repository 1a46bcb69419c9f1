// Package keys handles secp256k1 signing keys as used by the e-invoicing authority.
package keys

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"os"
	"strings"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "zatca.keys")

var (
	OIDPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	OIDCurveSecp256k1 = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

const (
	coordinateSize = 32
	pemPKCS8       = "PRIVATE KEY"
	pemSEC1        = "EC PRIVATE KEY"
)

// spkiHeader is the DER prefix of an uncompressed secp256k1 SubjectPublicKeyInfo:
// SEQUENCE { SEQUENCE { ecPublicKey, secp256k1 }, BIT STRING { 0x00, 0x04 ... } }
var spkiHeader = []byte{
	0x30, 0x56, 0x30, 0x10, 0x06, 0x07, 0x2A, 0x86, 0x48, 0xCE, 0x3D, 0x02, 0x01,
	0x06, 0x05, 0x2B, 0x81, 0x04, 0x00, 0x0A, 0x03, 0x42, 0x00, 0x04,
}

type ecPrivateKey struct {
	Version       int
	PrivateKey    []byte
	NamedCurveOID asn1.ObjectIdentifier `asn1:"optional,explicit,tag:0"`
	PublicKey     asn1.BitString        `asn1:"optional,explicit,tag:1"`
}

type pkcs8Key struct {
	Version    int
	Algo       pkix.AlgorithmIdentifier
	PrivateKey []byte
}

// Generate creates a fresh secp256k1 key pair.
func Generate() (*secp256k1.PrivateKey, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, zatca.Crypto("generate key", err)
	}
	return priv, nil
}

// SubjectPublicKeyInfo builds the DER SPKI of pub byte by byte, coordinates left padded to 32 bytes.
func SubjectPublicKeyInfo(pub *secp256k1.PublicKey) []byte {
	return SubjectPublicKeyInfoFromCoordinates(pub.X().Bytes(), pub.Y().Bytes())
}

// SubjectPublicKeyInfoFromCoordinates assembles the SPKI from raw big-endian coordinates.
func SubjectPublicKeyInfoFromCoordinates(x, y []byte) []byte {
	out := make([]byte, 0, len(spkiHeader)+2*coordinateSize)
	out = append(out, spkiHeader...)
	out = append(out, leftPad(x, coordinateSize)...)
	out = append(out, leftPad(y, coordinateSize)...)
	return out
}

func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b[len(b)-size:]
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

// MarshalSEC1 returns the RFC 5915 ECPrivateKey encoding.
func MarshalSEC1(priv *secp256k1.PrivateKey) ([]byte, error) {
	return marshalSEC1(priv, true)
}

func marshalSEC1(priv *secp256k1.PrivateKey, withCurve bool) ([]byte, error) {
	k := ecPrivateKey{
		Version:    1,
		PrivateKey: priv.Serialize(),
		PublicKey:  asn1.BitString{Bytes: priv.PubKey().SerializeUncompressed(), BitLength: 65 * 8},
	}
	if withCurve {
		k.NamedCurveOID = OIDCurveSecp256k1
	}
	der, err := asn1.Marshal(k)
	if err != nil {
		return nil, zatca.Crypto("marshal ec private key", err)
	}
	return der, nil
}

// MarshalPKCS8 returns the PKCS#8 PrivateKeyInfo encoding.
func MarshalPKCS8(priv *secp256k1.PrivateKey) ([]byte, error) {
	inner, err := marshalSEC1(priv, false)
	if err != nil {
		return nil, err
	}
	params, err := asn1.Marshal(OIDCurveSecp256k1)
	if err != nil {
		return nil, zatca.Crypto("marshal curve oid", err)
	}
	der, err := asn1.Marshal(pkcs8Key{
		Algo: pkix.AlgorithmIdentifier{
			Algorithm:  OIDPublicKeyECDSA,
			Parameters: asn1.RawValue{FullBytes: params},
		},
		PrivateKey: inner,
	})
	if err != nil {
		return nil, zatca.Crypto("marshal pkcs8", err)
	}
	return der, nil
}

// EncodePEM returns the key as a PKCS#8 "PRIVATE KEY" PEM block.
func EncodePEM(priv *secp256k1.PrivateKey) ([]byte, error) {
	der, err := MarshalPKCS8(priv)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPKCS8, Bytes: der}), nil
}

func LoadPrivateKeyFromFile(path string) (*secp256k1.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read key file")
	}
	return ParsePrivateKey(b)
}

// ParsePrivateKey accepts PKCS#8 or SEC1 keys, PEM armored, as a bare base64 body or as raw DER.
func ParsePrivateKey(content []byte) (*secp256k1.PrivateKey, error) {
	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return nil, zatca.Crypto("parse private key", errors.New("empty key"))
	}

	if bytes.HasPrefix(content, []byte("-----BEGIN")) {
		rest := content
		for len(rest) > 0 {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			switch block.Type {
			case pemPKCS8:
				return parsePKCS8(block.Bytes)
			case pemSEC1:
				return parseSEC1(block.Bytes)
			default:
				logger.Debugf("skipping PEM block %s", block.Type)
			}
		}
		return nil, zatca.Crypto("parse private key", errors.New("no PRIVATE KEY or EC PRIVATE KEY block found in PEM"))
	}

	der := content
	if decoded, err := base64.StdEncoding.DecodeString(stripWhitespace(string(content))); err == nil {
		der = decoded
	}
	if priv, err := parsePKCS8(der); err == nil {
		return priv, nil
	}
	return parseSEC1(der)
}

func parsePKCS8(der []byte) (*secp256k1.PrivateKey, error) {
	var k pkcs8Key
	if rest, err := asn1.Unmarshal(der, &k); err != nil {
		return nil, zatca.Crypto("parse pkcs8", err)
	} else if len(rest) > 0 {
		return nil, zatca.Crypto("parse pkcs8", errors.New("trailing data"))
	}
	if !k.Algo.Algorithm.Equal(OIDPublicKeyECDSA) {
		return nil, zatca.Crypto("parse pkcs8", errors.Wrapf(zatca.ErrUnsupportedPublicKey, "algorithm %s", k.Algo.Algorithm))
	}
	var curve asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(k.Algo.Parameters.FullBytes, &curve); err != nil {
		return nil, zatca.Crypto("parse pkcs8", errors.Wrap(err, "curve parameters"))
	}
	if !curve.Equal(OIDCurveSecp256k1) {
		return nil, zatca.Crypto("parse pkcs8", errors.Wrapf(zatca.ErrUnsupportedPublicKey, "curve %s", curve))
	}
	return parseSEC1(k.PrivateKey)
}

func parseSEC1(der []byte) (*secp256k1.PrivateKey, error) {
	var k ecPrivateKey
	if _, err := asn1.Unmarshal(der, &k); err != nil {
		return nil, zatca.Crypto("parse ec private key", err)
	}
	if k.Version != 1 {
		return nil, zatca.Crypto("parse ec private key", errors.Errorf("unknown version %d", k.Version))
	}
	if len(k.NamedCurveOID) > 0 && !k.NamedCurveOID.Equal(OIDCurveSecp256k1) {
		return nil, zatca.Crypto("parse ec private key", errors.Wrapf(zatca.ErrUnsupportedPublicKey, "curve %s", k.NamedCurveOID))
	}
	if len(k.PrivateKey) == 0 || len(k.PrivateKey) > coordinateSize {
		return nil, zatca.Crypto("parse ec private key", errors.Errorf("invalid key length %d", len(k.PrivateKey)))
	}
	return secp256k1.PrivKeyFromBytes(leftPad(k.PrivateKey, coordinateSize)), nil
}

// Sign computes ECDSA over SHA-256(message) and returns the DER signature.
// Nonces are derived per RFC 6979, so equal inputs give equal signatures.
func Sign(priv *secp256k1.PrivateKey, message []byte) []byte {
	digest := sha256.Sum256(message)
	return ecdsa.Sign(priv, digest[:]).Serialize()
}

// Verify checks a DER signature made by Sign.
func Verify(pub *secp256k1.PublicKey, message, signature []byte) error {
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return zatca.Crypto("verify", errors.Wrap(zatca.ErrInvalidSignature, err.Error()))
	}
	digest := sha256.Sum256(message)
	if !sig.Verify(digest[:], pub) {
		return zatca.Crypto("verify", zatca.ErrInvalidSignature)
	}
	return nil
}

// ParsePublicKey parses an uncompressed or compressed secp256k1 point.
func ParsePublicKey(point []byte) (*secp256k1.PublicKey, error) {
	pub, err := secp256k1.ParsePubKey(point)
	if err != nil {
		return nil, zatca.Crypto("parse public key", err)
	}
	return pub, nil
}

func stripWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
