package csr

import (
	"encoding/asn1"
	"encoding/pem"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/cert"
	"github.com/alapierre/go-zatca-client/zatca/keys"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/go-faster/errors"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	oidExtensionRequest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 14}
	oidECDSAWithSHA256  = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
)

const pemCSR = "CERTIFICATE REQUEST"

// buildRequest renders a PKCS#10 request from the configuration and signs it with priv.
func buildRequest(cfg *requestConfig, priv *secp256k1.PrivateKey) ([]byte, error) {
	if md, ok := cfg.get("req", "default_md"); ok && md != "sha256" {
		return nil, errors.Errorf("unsupported digest %s", md)
	}
	subject, err := cfg.subject()
	if err != nil {
		return nil, errors.Wrap(err, "subject")
	}
	exts, err := cfg.extensions()
	if err != nil {
		return nil, errors.Wrap(err, "extensions")
	}

	var info cryptobyte.Builder
	info.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(0)
		b.AddBytes(subject)
		b.AddBytes(keys.SubjectPublicKeyInfo(priv.PubKey()))
		b.AddASN1(cbasn1.Tag(0).Constructed().ContextSpecific(), func(b *cryptobyte.Builder) {
			if len(exts) == 0 {
				return
			}
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oidExtensionRequest)
				b.AddASN1(cbasn1.SET, func(b *cryptobyte.Builder) {
					b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
						for _, ext := range exts {
							b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
								b.AddASN1ObjectIdentifier(ext.oid)
								if ext.critical {
									b.AddASN1Boolean(true)
								}
								b.AddASN1OctetString(ext.value)
							})
						}
					})
				})
			})
		})
	})
	infoDER, err := info.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, "certification request info")
	}

	var req cryptobyte.Builder
	req.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddBytes(infoDER)
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidECDSAWithSHA256)
		})
		b.AddASN1BitString(keys.Sign(priv, infoDER))
	})
	return req.Bytes()
}

// Extension is a requested certificate extension.
type Extension struct {
	ID       asn1.ObjectIdentifier
	Critical bool
	Value    []byte
}

// Request is a parsed certificate signing request.
type Request struct {
	Raw        []byte
	RawInfo    []byte
	Subject    []cert.Attribute
	PublicKey  *secp256k1.PublicKey
	RawSPKI    []byte
	Extensions []Extension
	Signature  []byte
}

// ParseRequest reads a PEM or DER encoded request.
func ParseRequest(content []byte) (*Request, error) {
	if block, _ := pem.Decode(content); block != nil {
		if block.Type != pemCSR {
			return nil, zatca.Crypto("parse csr", errors.Errorf("unexpected PEM block: %s", block.Type))
		}
		content = block.Bytes
	}
	r, err := parseRequest(content)
	if err != nil {
		return nil, zatca.Crypto("parse csr", err)
	}
	return r, nil
}

func parseRequest(der []byte) (*Request, error) {
	r := &Request{Raw: der}

	input := cryptobyte.String(der)
	var outer cryptobyte.String
	if !input.ReadASN1(&outer, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, errors.New("malformed request")
	}
	var rawInfo cryptobyte.String
	if !outer.ReadASN1Element(&rawInfo, cbasn1.SEQUENCE) {
		return nil, errors.New("malformed request info")
	}
	r.RawInfo = rawInfo

	var info cryptobyte.String
	var version int64
	if !rawInfo.ReadASN1(&info, cbasn1.SEQUENCE) || !info.ReadASN1Integer(&version) || version != 0 {
		return nil, errors.New("malformed request version")
	}

	var subject cryptobyte.String
	if !info.ReadASN1Element(&subject, cbasn1.SEQUENCE) {
		return nil, errors.New("malformed subject")
	}
	var err error
	if r.Subject, err = cert.ParseName(subject); err != nil {
		return nil, err
	}

	var spki cryptobyte.String
	if !info.ReadASN1Element(&spki, cbasn1.SEQUENCE) {
		return nil, errors.New("malformed public key info")
	}
	r.RawSPKI = spki
	if r.PublicKey, err = parseSPKI(spki); err != nil {
		return nil, err
	}

	var attrs cryptobyte.String
	if !info.ReadASN1(&attrs, cbasn1.Tag(0).Constructed().ContextSpecific()) {
		return nil, errors.New("malformed attributes")
	}
	for !attrs.Empty() {
		var attr cryptobyte.String
		var oid asn1.ObjectIdentifier
		var values cryptobyte.String
		if !attrs.ReadASN1(&attr, cbasn1.SEQUENCE) || !attr.ReadASN1ObjectIdentifier(&oid) || !attr.ReadASN1(&values, cbasn1.SET) {
			return nil, errors.New("malformed attribute")
		}
		if !oid.Equal(oidExtensionRequest) {
			continue
		}
		var list cryptobyte.String
		if !values.ReadASN1(&list, cbasn1.SEQUENCE) {
			return nil, errors.New("malformed extension request")
		}
		for !list.Empty() {
			var ext cryptobyte.String
			var e Extension
			if !list.ReadASN1(&ext, cbasn1.SEQUENCE) || !ext.ReadASN1ObjectIdentifier(&e.ID) {
				return nil, errors.New("malformed extension")
			}
			if ext.PeekASN1Tag(cbasn1.BOOLEAN) && !ext.ReadASN1Boolean(&e.Critical) {
				return nil, errors.New("malformed extension criticality")
			}
			var value cryptobyte.String
			if !ext.ReadASN1(&value, cbasn1.OCTET_STRING) {
				return nil, errors.New("malformed extension value")
			}
			e.Value = value
			r.Extensions = append(r.Extensions, e)
		}
	}

	var alg cryptobyte.String
	var algOID asn1.ObjectIdentifier
	if !outer.ReadASN1(&alg, cbasn1.SEQUENCE) || !alg.ReadASN1ObjectIdentifier(&algOID) {
		return nil, errors.New("malformed signature algorithm")
	}
	if !algOID.Equal(oidECDSAWithSHA256) {
		return nil, errors.Errorf("unsupported signature algorithm %s", algOID)
	}
	var sig asn1.BitString
	if !outer.ReadASN1BitString(&sig) {
		return nil, errors.New("malformed signature")
	}
	r.Signature = sig.RightAlign()
	return r, nil
}

func parseSPKI(spki cryptobyte.String) (*secp256k1.PublicKey, error) {
	var inner, algo cryptobyte.String
	var algOID, curve asn1.ObjectIdentifier
	if !spki.ReadASN1(&inner, cbasn1.SEQUENCE) || !inner.ReadASN1(&algo, cbasn1.SEQUENCE) ||
		!algo.ReadASN1ObjectIdentifier(&algOID) || !algo.ReadASN1ObjectIdentifier(&curve) {
		return nil, errors.New("malformed public key algorithm")
	}
	if !algOID.Equal(keys.OIDPublicKeyECDSA) || !curve.Equal(keys.OIDCurveSecp256k1) {
		return nil, errors.Wrapf(zatca.ErrUnsupportedPublicKey, "%s/%s", algOID, curve)
	}
	var point asn1.BitString
	if !inner.ReadASN1BitString(&point) {
		return nil, errors.New("malformed public key")
	}
	return keys.ParsePublicKey(point.RightAlign())
}

// CheckSignature verifies the request self-signature.
func (r *Request) CheckSignature() error {
	return keys.Verify(r.PublicKey, r.RawInfo, r.Signature)
}

// Extension returns the requested extension with the given identifier.
func (r *Request) Extension(id asn1.ObjectIdentifier) (Extension, bool) {
	for _, e := range r.Extensions {
		if e.ID.Equal(id) {
			return e, true
		}
	}
	return Extension{}, false
}

// AlternativeName decodes the directoryName carried in the subjectAltName extension.
func (r *Request) AlternativeName() ([]cert.Attribute, error) {
	ext, ok := r.Extension(oidSubjectAltName)
	if !ok {
		return nil, errors.New("subjectAltName not requested")
	}
	s := cryptobyte.String(ext.Value)
	var names, dn cryptobyte.String
	if !s.ReadASN1(&names, cbasn1.SEQUENCE) || !names.ReadASN1(&dn, cbasn1.Tag(4).Constructed().ContextSpecific()) {
		return nil, errors.New("malformed subjectAltName")
	}
	return cert.ParseName(dn)
}
