// Package service wires the CSR, canonicalization, signing and gateway
// components from one Config.
package service

import (
	"context"
	"net/http"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/api"
	"github.com/alapierre/go-zatca-client/zatca/csr"
	"github.com/alapierre/go-zatca-client/zatca/invoice"
	"github.com/alapierre/go-zatca-client/zatca/model"
	"github.com/alapierre/go-zatca-client/zatca/qr"
	"github.com/alapierre/go-zatca-client/zatca/signer"
	"github.com/alapierre/go-zatca-client/zatca/util"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "zatca.service")

type Service struct {
	cfg           zatca.Config
	client        *api.Client
	canonicalizer *invoice.Canonicalizer
	signer        *signer.Signer
	csrTemplate   string
	store         *model.CredentialStore
}

type options struct {
	clock         clockwork.Clock
	store         *model.CredentialStore
	clientOptions []api.Option
	transformer   invoice.Transformer
}

type Option func(*options)

func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithStore makes Onboard persist the issued credentials.
func WithStore(s *model.CredentialStore) Option {
	return func(o *options) {
		o.store = s
	}
}

func WithClientOptions(opts ...api.Option) Option {
	return func(o *options) {
		o.clientOptions = append(o.clientOptions, opts...)
	}
}

func WithTransformer(t invoice.Transformer) Option {
	return func(o *options) {
		o.transformer = t
	}
}

// New validates cfg and builds every component up front.
func New(cfg zatca.Config, httpClient *http.Client, opts ...Option) (*Service, error) {
	o := options{clock: clockwork.NewRealClock(), transformer: invoice.UBLTransform}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tpl, err := util.LoadTemplate(cfg.CSRTemplatePath, csr.DefaultTemplate)
	if err != nil {
		return nil, zatca.Validation("csr template", err)
	}
	sig, err := signer.NewFromConfig(&cfg, signer.WithClock(o.clock))
	if err != nil {
		return nil, zatca.Validation("signature templates", err)
	}

	return &Service{
		cfg:           cfg,
		client:        api.NewClientFromConfig(&cfg, httpClient, o.clientOptions...),
		canonicalizer: invoice.NewCanonicalizer(invoice.WithTransformer(o.transformer)),
		signer:        sig,
		csrTemplate:   tpl,
		store:         o.store,
	}, nil
}

func (s *Service) Config() zatca.Config {
	return s.cfg
}

func (s *Service) Client() *api.Client {
	return s.client
}

// NewCSR generates a key pair and request for p in the configured environment.
func (s *Service) NewCSR(p csr.Profile) (*csr.Builder, error) {
	p.Environment = s.cfg.Environment
	b, err := csr.NewBuilderFromProfile(p, csr.WithTemplate(s.csrTemplate))
	if err != nil {
		return nil, err
	}
	if err := b.Generate(); err != nil {
		return nil, err
	}
	return b, nil
}

// ProcessedInvoice is an invoice ready to be sent.
type ProcessedInvoice struct {
	Canonical  *model.CanonicalInvoice
	Signed     *model.SignedInvoice
	Simplified bool
}

func (p *ProcessedInvoice) Request() api.InvoiceRequest {
	return api.NewInvoiceRequest(p.Canonical, p.Signed)
}

// ProcessInvoice hashes, signs and adds the QR code to an unsigned invoice.
func (s *Service) ProcessInvoice(cred model.Credential, key *secp256k1.PrivateKey, invoiceXML []byte) (*ProcessedInvoice, error) {
	canonical, err := s.canonicalizer.Hash(invoiceXML)
	if err != nil {
		return nil, err
	}
	doc, err := canonical.CanonicalXML()
	if err != nil {
		return nil, zatca.Document("process invoice", err)
	}
	fields, err := qr.ExtractFields(doc)
	if err != nil {
		return nil, err
	}
	signed, err := s.signer.Sign(cred, key, canonical)
	if err != nil {
		return nil, err
	}
	return &ProcessedInvoice{Canonical: canonical, Signed: signed, Simplified: fields.Simplified}, nil
}

// Submit reports simplified invoices and sends standard ones for clearance.
func (s *Service) Submit(ctx context.Context, cred model.Credential, p *ProcessedInvoice) (*model.SubmissionResponse, error) {
	if p.Simplified {
		return s.client.Report(ctx, cred, p.Request())
	}
	return s.client.Clear(ctx, cred, p.Request())
}

// CheckCompliance sends a processed sample through the compliance checks.
func (s *Service) CheckCompliance(ctx context.Context, cred model.Credential, p *ProcessedInvoice) (*model.SubmissionResponse, error) {
	return s.client.CheckCompliance(ctx, cred, p.Request())
}

// OnboardRequest describes a full onboarding run.
type OnboardRequest struct {
	Profile csr.Profile
	OTP     string
	// Samples are unsigned invoices run through the compliance checks with the compliance credential.
	Samples [][]byte
	// Name, when set together with a store, is the prefix the credentials are saved under.
	Name string
}

type Onboarding struct {
	CSR        []byte // PEM
	Key        *secp256k1.PrivateKey
	Compliance *model.Credential
	Checks     []*model.SubmissionResponse
	Production *model.Credential
}

// ErrComplianceFailed is returned when a sample invoice does not pass the compliance checks.
var ErrComplianceFailed = errors.New("compliance check failed")

// Onboard generates a CSR, obtains the compliance CSID, passes the samples
// through the compliance checks and finally obtains the production CSID.
func (s *Service) Onboard(ctx context.Context, req OnboardRequest) (*Onboarding, error) {
	b, err := s.NewCSR(req.Profile)
	if err != nil {
		return nil, err
	}
	out := &Onboarding{}
	if out.CSR, err = b.CSR(); err != nil {
		return nil, err
	}
	if out.Key, err = b.PrivateKey(); err != nil {
		return nil, err
	}
	encoded, err := b.EncodedCSR()
	if err != nil {
		return nil, err
	}

	if out.Compliance, err = s.client.IssueComplianceCSID(ctx, encoded, req.OTP); err != nil {
		return out, err
	}
	if err := s.save(req.Name, "compliance", out.Compliance); err != nil {
		return out, err
	}

	for i, sample := range req.Samples {
		p, err := s.ProcessInvoice(*out.Compliance, out.Key, sample)
		if err != nil {
			return out, errors.Wrapf(err, "sample %d", i)
		}
		res, err := s.CheckCompliance(ctx, *out.Compliance, p)
		if err != nil {
			return out, errors.Wrapf(err, "sample %d", i)
		}
		out.Checks = append(out.Checks, res)
		if !res.IsSubmitted {
			return out, zatca.Remote("compliance check", errors.Wrapf(ErrComplianceFailed, "sample %d (%s): %q", i, p.Canonical.UUID, res.Status()))
		}
	}

	if out.Production, err = s.client.IssueProductionCSID(ctx, *out.Compliance); err != nil {
		return out, err
	}
	if err := s.save(req.Name, "production", out.Production); err != nil {
		return out, err
	}
	logger.Infof("onboarded %s in %s, production request id %d", req.Profile.CommonName, s.cfg.Environment, out.Production.RequestID)
	return out, nil
}

func (s *Service) save(name, kind string, c *model.Credential) error {
	if s.store == nil || name == "" {
		return nil
	}
	return s.store.Save(name+"-"+kind, *c)
}
