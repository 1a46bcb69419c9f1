// Package csr generates the key pair and PKCS#10 request used to obtain a CSID.
package csr

import (
	_ "embed"
	"encoding/base64"
	"encoding/pem"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/keys"
	"github.com/alapierre/go-zatca-client/zatca/util"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "zatca.csr")

//go:embed templates/csr.cnf
var DefaultTemplate string

var organizationIdentifierRe = regexp.MustCompile(`^3\d{13}3$`)

// ValidateOrganizationIdentifier checks the 15 digit VAT registration number.
func ValidateOrganizationIdentifier(id string) error {
	if !organizationIdentifierRe.MatchString(id) {
		return zatca.Validation("organization identifier", errors.Wrapf(zatca.ErrInvalidOrganizationIdentifier, "got %q", id))
	}
	return nil
}

// Profile holds the identity placed in the request.
type Profile struct {
	CommonName             string
	OrganizationName       string
	OrganizationalUnitName string
	Country                string
	// SerialNumber is the "1-solution|2-model|3-device id" triple. Its format is the caller's responsibility.
	SerialNumber           string
	OrganizationIdentifier string
	Address                string
	InvoiceType            string
	BusinessCategory       string
	Environment            zatca.Environment
}

// templateModel is what the request template is rendered with.
type templateModel struct {
	Profile
	CertificateTemplateName string
}

func (p Profile) fields() map[string]string {
	return map[string]string{
		"commonName":             p.CommonName,
		"organizationName":       p.OrganizationName,
		"organizationalUnitName": p.OrganizationalUnitName,
		"country":                p.Country,
		"serialNumber":           p.SerialNumber,
		"organizationIdentifier": p.OrganizationIdentifier,
		"address":                p.Address,
		"invoiceType":            p.InvoiceType,
		"businessCategory":       p.BusinessCategory,
	}
}

func (p Profile) missing() []string {
	var out []string
	for name, v := range p.fields() {
		if strings.TrimSpace(v) == "" {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// multiline lists the fields holding a line break. The request template is
// line based, so such a value would add entries of its own.
func (p Profile) multiline() []string {
	var out []string
	for name, v := range p.fields() {
		if strings.ContainsAny(v, "\r\n") {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Builder collects a Profile and generates the key pair and CSR from it.
// Setters after Generate discard the generated pair.
type Builder struct {
	profile  Profile
	template string
	err      error

	key *secp256k1.PrivateKey
	csr []byte // DER
}

type Option func(*Builder)

// WithTemplate replaces the embedded request template.
func WithTemplate(tpl string) Option {
	return func(b *Builder) {
		b.template = tpl
	}
}

// NewBuilder starts with country SA, invoice type 1100 and the sandbox environment.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		profile: Profile{
			Country:     "SA",
			InvoiceType: "1100",
			Environment: zatca.Sandbox,
		},
		template: DefaultTemplate,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// NewBuilderFromProfile validates p and returns a builder holding it.
func NewBuilderFromProfile(p Profile, opts ...Option) (*Builder, error) {
	b := NewBuilder(opts...)
	b.profile = p
	if err := ValidateOrganizationIdentifier(p.OrganizationIdentifier); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Builder) touch() *Builder {
	b.key = nil
	b.csr = nil
	return b
}

func (b *Builder) SetCommonName(v string) *Builder {
	b.profile.CommonName = v
	return b.touch()
}

func (b *Builder) SetOrganizationName(v string) *Builder {
	b.profile.OrganizationName = v
	return b.touch()
}

func (b *Builder) SetOrganizationalUnitName(v string) *Builder {
	b.profile.OrganizationalUnitName = v
	return b.touch()
}

func (b *Builder) SetCountry(v string) *Builder {
	b.profile.Country = v
	return b.touch()
}

func (b *Builder) SetSerialNumber(solutionName, model, deviceID string) *Builder {
	b.profile.SerialNumber = "1-" + solutionName + "|2-" + model + "|3-" + deviceID
	return b.touch()
}

func (b *Builder) SetRawSerialNumber(v string) *Builder {
	b.profile.SerialNumber = v
	return b.touch()
}

// SetOrganizationIdentifier validates id immediately; a failure is reported by Err and Generate.
func (b *Builder) SetOrganizationIdentifier(id string) *Builder {
	if err := ValidateOrganizationIdentifier(id); err != nil {
		b.err = err
		return b.touch()
	}
	b.err = nil
	b.profile.OrganizationIdentifier = id
	return b.touch()
}

func (b *Builder) SetAddress(v string) *Builder {
	b.profile.Address = v
	return b.touch()
}

func (b *Builder) SetInvoiceType(v string) *Builder {
	b.profile.InvoiceType = v
	return b.touch()
}

func (b *Builder) SetBusinessCategory(v string) *Builder {
	b.profile.BusinessCategory = v
	return b.touch()
}

func (b *Builder) SetEnvironment(e zatca.Environment) *Builder {
	b.profile.Environment = e
	return b.touch()
}

func (b *Builder) Profile() Profile {
	return b.profile
}

// Err returns the first validation error recorded by a setter.
func (b *Builder) Err() error {
	return b.err
}

// Generate creates the key pair and signs the request.
func (b *Builder) Generate() error {
	if b.err != nil {
		return b.err
	}
	if b.key != nil {
		return zatca.Validation("generate csr", zatca.ErrAlreadyGenerated)
	}
	if m := b.profile.missing(); len(m) > 0 {
		return zatca.Validation("generate csr", errors.Errorf("missing profile fields: %s", strings.Join(m, ", ")))
	}
	if m := b.profile.multiline(); len(m) > 0 {
		return zatca.Validation("generate csr", errors.Errorf("line breaks in profile fields: %s", strings.Join(m, ", ")))
	}
	if err := ValidateOrganizationIdentifier(b.profile.OrganizationIdentifier); err != nil {
		return err
	}
	if !b.profile.Environment.Valid() {
		return zatca.Validation("generate csr", errors.Errorf("unknown environment %d", int(b.profile.Environment)))
	}

	rendered, err := util.MergeTemplate("csr", b.template, templateModel{
		Profile:                 b.profile,
		CertificateTemplateName: b.profile.Environment.CertificateTemplateName(),
	})
	if err != nil {
		return zatca.Validation("render csr template", err)
	}
	cfg, err := parseConfig(string(rendered))
	if err != nil {
		return zatca.Validation("parse csr template", err)
	}

	key, err := keys.Generate()
	if err != nil {
		return err
	}
	der, err := buildRequest(cfg, key)
	if err != nil {
		return zatca.Crypto("build csr", err)
	}

	b.key = key
	b.csr = der
	logger.Debugf("generated %s csr for %s (%d bytes)", b.profile.Environment, b.profile.CommonName, len(der))
	return nil
}

// CSR returns the PEM encoded request.
func (b *Builder) CSR() ([]byte, error) {
	if b.csr == nil {
		return nil, zatca.Validation("csr", zatca.ErrNotGenerated)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemCSR, Bytes: b.csr}), nil
}

// EncodedCSR returns base64 of the PEM request, the form the compliance endpoint expects.
func (b *Builder) EncodedCSR() (string, error) {
	p, err := b.CSR()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(p), nil
}

func (b *Builder) PrivateKey() (*secp256k1.PrivateKey, error) {
	if b.key == nil {
		return nil, zatca.Validation("private key", zatca.ErrNotGenerated)
	}
	return b.key, nil
}

// PrivateKeyPEM returns the PKCS#8 PEM of the generated key.
func (b *Builder) PrivateKeyPEM() ([]byte, error) {
	key, err := b.PrivateKey()
	if err != nil {
		return nil, err
	}
	return keys.EncodePEM(key)
}

func (b *Builder) SaveCSR(path string) error {
	p, err := b.CSR()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, p, 0o644); err != nil {
		return errors.Wrap(err, "write csr")
	}
	return nil
}

func (b *Builder) SavePrivateKey(path string) error {
	p, err := b.PrivateKeyPEM()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, p, 0o600); err != nil {
		return errors.Wrap(err, "write private key")
	}
	return nil
}
