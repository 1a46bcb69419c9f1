// Package signer signs canonical invoices and embeds the XAdES signature and QR code.
package signer

import (
	"bytes"
	_ "embed"
	"encoding/base64"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/cert"
	"github.com/alapierre/go-zatca-client/zatca/invoice"
	"github.com/alapierre/go-zatca-client/zatca/keys"
	"github.com/alapierre/go-zatca-client/zatca/model"
	"github.com/alapierre/go-zatca-client/zatca/qr"
	"github.com/alapierre/go-zatca-client/zatca/util"
	"github.com/alapierre/go-zatca-client/zatca/xades"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "zatca.signer")

//go:embed templates/ubl_extension.xml
var defaultUBLTemplate string

//go:embed templates/signature.xml
var defaultSignatureTemplate string

// templateData holds the placeholders of both templates.
type templateData struct {
	InvoiceHash          string
	SignedPropertiesHash string
	SignatureValue       string
	CertificateContent   string
	SigningTime          string
	CertificateDigest    string
	IssuerName           string
	SerialNumber         string
	QRCode               string
}

type Signer struct {
	clock             clockwork.Clock
	splicer           Splicer
	ublTemplate       string
	signatureTemplate string
}

type Option func(*Signer)

// WithClock sets the clock the signing time is read from.
func WithClock(c clockwork.Clock) Option {
	return func(s *Signer) {
		s.clock = c
	}
}

func WithSplicer(sp Splicer) Option {
	return func(s *Signer) {
		s.splicer = sp
	}
}

// WithTemplates replaces the UBL extension and signature block templates. Empty values keep the defaults.
func WithTemplates(ubl, signature string) Option {
	return func(s *Signer) {
		if ubl != "" {
			s.ublTemplate = ubl
		}
		if signature != "" {
			s.signatureTemplate = signature
		}
	}
}

func New(opts ...Option) *Signer {
	s := &Signer{
		clock:             clockwork.NewRealClock(),
		splicer:           OffsetSplicer{},
		ublTemplate:       defaultUBLTemplate,
		signatureTemplate: defaultSignatureTemplate,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewFromConfig builds a Signer with the template overrides named in cfg.
func NewFromConfig(cfg *zatca.Config, opts ...Option) (*Signer, error) {
	ubl, err := util.LoadTemplate(cfg.UBLTemplatePath, defaultUBLTemplate)
	if err != nil {
		return nil, err
	}
	sig, err := util.LoadTemplate(cfg.SignatureTemplatePath, defaultSignatureTemplate)
	if err != nil {
		return nil, err
	}
	return New(append([]Option{WithTemplates(ubl, sig)}, opts...)...), nil
}

// SignInvoiceHash signs the decoded bytes of a base64 invoice hash and returns the base64 DER signature.
func SignInvoiceHash(invoiceHashB64 string, priv *secp256k1.PrivateKey) (string, error) {
	if priv == nil {
		return "", zatca.Crypto("sign invoice hash", errors.New("private key is required"))
	}
	h, err := base64.StdEncoding.DecodeString(invoiceHashB64)
	if err != nil {
		return "", zatca.Crypto("sign invoice hash", errors.Wrap(err, "decode invoice hash"))
	}
	return base64.StdEncoding.EncodeToString(keys.Sign(priv, h)), nil
}

// VerifyInvoiceHash checks a signature made by SignInvoiceHash.
func VerifyInvoiceHash(invoiceHashB64, signatureB64 string, c *cert.Certificate) error {
	h, err := base64.StdEncoding.DecodeString(invoiceHashB64)
	if err != nil {
		return zatca.Crypto("verify invoice hash", errors.Wrap(err, "decode invoice hash"))
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return zatca.Crypto("verify invoice hash", errors.Wrap(err, "decode signature"))
	}
	return keys.Verify(c.PublicKey, h, sig)
}

// Sign signs inv with priv, renders the signature extension and the QR
// signature block and splices both into the canonical document.
func (s *Signer) Sign(cred model.Credential, priv *secp256k1.PrivateKey, inv *model.CanonicalInvoice) (*model.SignedInvoice, error) {
	c, err := cred.SigningCertificate()
	if err != nil {
		return nil, err
	}
	if priv != nil && !c.PublicKey.IsEqual(priv.PubKey()) {
		logger.Warn("private key does not match the credential certificate")
	}

	canonical, err := inv.CanonicalXML()
	if err != nil {
		return nil, zatca.Document("sign invoice", err)
	}
	if err := s.splicer.Check(canonical); err != nil {
		return nil, err
	}

	props := xades.ForCertificate(c, s.clock.Now())

	signature, err := SignInvoiceHash(inv.InvoiceHash, priv)
	if err != nil {
		return nil, err
	}

	qrCode, err := qr.Generate(canonical, inv.InvoiceHash, signature, c)
	if err != nil {
		return nil, err
	}

	data := templateData{
		InvoiceHash:          inv.InvoiceHash,
		SignedPropertiesHash: props.Hash(),
		SignatureValue:       signature,
		CertificateContent:   c.Body,
		SigningTime:          props.SigningTime,
		CertificateDigest:    props.CertDigest,
		IssuerName:           props.IssuerName,
		SerialNumber:         props.SerialNumber,
		QRCode:               qrCode,
	}

	extension, err := util.MergeTemplate("ubl extension", s.ublTemplate, data)
	if err != nil {
		return nil, zatca.Document("render ubl extension", err)
	}
	block, err := util.MergeTemplate("signature block", s.signatureTemplate, data)
	if err != nil {
		return nil, zatca.Document("render signature block", err)
	}

	spliced, err := s.splicer.Splice(canonical, bytes.TrimSpace(extension), bytes.TrimSpace(block))
	if err != nil {
		return nil, err
	}

	logger.Debugf("signed invoice %s at %s", inv.UUID, props.SigningTime)
	return &model.SignedInvoice{
		SignatureB64:     signature,
		SignedInvoiceB64: base64.StdEncoding.EncodeToString(invoice.WithDeclaration(spliced)),
		QRCodeB64:        qrCode,
	}, nil
}
