package service

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alapierre/go-zatca-client/internal/testutil"
	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/api"
	"github.com/alapierre/go-zatca-client/zatca/cert"
	"github.com/alapierre/go-zatca-client/zatca/csr"
	"github.com/alapierre/go-zatca-client/zatca/invoice"
	"github.com/alapierre/go-zatca-client/zatca/keys"
	"github.com/alapierre/go-zatca-client/zatca/model"
	"github.com/alapierre/go-zatca-client/zatca/signer"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profile() csr.Profile {
	return csr.Profile{
		CommonName:             "TST-886431145-399999999900003",
		OrganizationName:       "Maximum Speed Tech Supply LTD",
		OrganizationalUnitName: "Riyadh Branch",
		Country:                "SA",
		SerialNumber:           "1-TST|2-TST|3-ed22f1d8-e6a2-1118-9b58-d9a8f11e445f",
		OrganizationIdentifier: "399999999900003",
		Address:                "RRRD2929",
		InvoiceType:            "1100",
		BusinessCategory:       "Supply activities",
	}
}

// gateway imitates the endpoints used during onboarding and submission.
type gateway struct {
	t      *testing.T
	issuer *testutil.SigningIdentity

	mu        sync.Mutex
	token     string
	calls     []string
	rejectAll bool
}

func (g *gateway) fields(r *http.Request) map[string]string {
	b, _ := io.ReadAll(r.Body)
	out := map[string]string{}
	_ = jx.DecodeBytes(b).Obj(func(d *jx.Decoder, key string) error {
		s, err := d.Str()
		out[key] = s
		return err
	})
	return out
}

func (g *gateway) credential(w http.ResponseWriter, id int64) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("requestID")
	e.Int64(id)
	e.FieldStart("dispositionMessage")
	e.Str("ISSUED")
	e.FieldStart("binarySecurityToken")
	e.Str(g.token)
	e.FieldStart("secret")
	e.Str("secret")
	e.ObjEnd()
	_, _ = w.Write(e.Bytes())
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	path := strings.TrimPrefix(req.URL.Path, "/")
	g.calls = append(g.calls, path)
	body := g.fields(req)
	w.Header().Set("Content-Type", "application/json")

	switch path {
	case api.EndpointCompliance:
		pemCSR, err := base64.StdEncoding.DecodeString(body["csr"])
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		parsed, err := csr.ParseRequest(pemCSR)
		if err != nil || parsed.CheckSignature() != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"errors":["Invalid-CSR"]}`)
			return
		}
		der := testutil.IssueCertificate(g.t, parsed.PublicKey, g.issuer.Key, testutil.DefaultCertificateOptions())
		g.token = testutil.Token(der)
		g.credential(w, 1234567890123)
	case api.EndpointProductionCSIDs:
		g.credential(w, 30368)
	case api.EndpointComplianceInvoices, api.EndpointReporting, api.EndpointClearance:
		g.validate(w, req, body, path)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// validate recomputes the invoice hash of the signed document, the way the gateway does.
func (g *gateway) validate(w http.ResponseWriter, req *http.Request, body map[string]string, path string) {
	doc, _ := base64.StdEncoding.DecodeString(body["invoice"])
	inv, err := invoice.NewCanonicalizer().Hash(doc)
	status := "REPORTED"
	field := "reportingStatus"
	if path == api.EndpointClearance {
		status, field = "CLEARED", "clearanceStatus"
	}
	if g.rejectAll || err != nil || inv.InvoiceHash != body["invoiceHash"] || inv.UUID != body["uuid"] {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"validationResults":{"errorMessages":[{"code":"invoiceHash_QRCODE_INVALID","category":"QRCODE_VALIDATION","message":"hash mismatch"}],"status":"ERROR"},"`+field+`":"NOT_`+status+`"}`)
		return
	}
	_, _ = io.WriteString(w, `{"validationResults":{"status":"PASS"},"`+field+`":"`+status+`"}`)
}

func newService(t *testing.T, opts ...Option) (*Service, *gateway) {
	t.Helper()
	g := &gateway{t: t, issuer: testutil.NewSigningIdentity(t)}
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)

	opts = append(opts,
		WithClock(clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local))),
		WithClientOptions(api.WithBaseURL(srv.URL)),
	)
	s, err := New(zatca.DefaultConfig(), srv.Client(), opts...)
	require.NoError(t, err)
	return s, g
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := zatca.DefaultConfig()
	cfg.EnvironmentName = "staging"
	_, err := New(cfg, nil)
	assert.True(t, errors.Is(err, zatca.KindValidation))

	cfg = zatca.DefaultConfig()
	cfg.CSRTemplatePath = t.TempDir() + "/none.cnf"
	_, err = New(cfg, nil)
	assert.Error(t, err)
}

func TestOnboard(t *testing.T) {
	store, err := model.NewCredentialStore(t.TempDir())
	require.NoError(t, err)
	s, g := newService(t, WithStore(store))

	res, err := s.Onboard(context.Background(), OnboardRequest{
		Profile: profile(),
		OTP:     "123345",
		Samples: [][]byte{testutil.SimplifiedInvoice(), testutil.StandardInvoice()},
		Name:    "branch-1",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		api.EndpointCompliance,
		api.EndpointComplianceInvoices,
		api.EndpointComplianceInvoices,
		api.EndpointProductionCSIDs,
	}, g.calls)
	require.Len(t, res.Checks, 2)
	assert.Equal(t, int64(1234567890123), res.Compliance.RequestID)
	assert.Equal(t, int64(30368), res.Production.RequestID)

	c, err := res.Production.SigningCertificate()
	require.NoError(t, err)
	assert.True(t, c.PublicKey.IsEqual(res.Key.PubKey()))

	saved, err := store.Load("branch-1-production")
	require.NoError(t, err)
	assert.Equal(t, *res.Production, *saved)
	_, err = store.Load("branch-1-compliance")
	assert.NoError(t, err)
}

func TestOnboard_ComplianceFailure(t *testing.T) {
	s, g := newService(t)
	g.rejectAll = true

	res, err := s.Onboard(context.Background(), OnboardRequest{
		Profile: profile(),
		OTP:     "123345",
		Samples: [][]byte{testutil.SimplifiedInvoice()},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrComplianceFailed))
	require.NotNil(t, res)
	assert.NotNil(t, res.Compliance)
	assert.Nil(t, res.Production)
	assert.NotContains(t, g.calls, api.EndpointProductionCSIDs)
}

func TestOnboard_InvalidProfile(t *testing.T) {
	s, g := newService(t)
	p := profile()
	p.OrganizationIdentifier = "411111111101113"

	_, err := s.Onboard(context.Background(), OnboardRequest{Profile: p, OTP: "1"})
	assert.True(t, errors.Is(err, zatca.ErrInvalidOrganizationIdentifier))
	assert.Empty(t, g.calls)
}

func TestProcessAndSubmit(t *testing.T) {
	s, g := newService(t)
	id := testutil.NewSigningIdentity(t)
	cred := model.Credential{Certificate: id.Token, Secret: "secret", RequestID: 1}

	for _, tc := range []struct {
		name       string
		doc        []byte
		simplified bool
		endpoint   string
		status     model.SubmissionStatus
	}{
		{"simplified", testutil.SimplifiedInvoice(), true, api.EndpointReporting, model.StatusReported},
		{"standard", testutil.StandardInvoice(), false, api.EndpointClearance, model.StatusCleared},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p, err := s.ProcessInvoice(cred, id.Key, tc.doc)
			require.NoError(t, err)
			assert.Equal(t, tc.simplified, p.Simplified)
			require.NoError(t, signer.VerifyInvoiceHash(p.Canonical.InvoiceHash, p.Signed.SignatureB64, mustCert(t, cred)))

			res, err := s.Submit(context.Background(), cred, p)
			require.NoError(t, err)
			assert.True(t, res.IsSubmitted)
			assert.Equal(t, tc.status, res.Status())
			assert.Equal(t, tc.endpoint, g.calls[len(g.calls)-1])
		})
	}
}

func TestSubmit_Rejected(t *testing.T) {
	s, g := newService(t)
	g.rejectAll = true
	id := testutil.NewSigningIdentity(t)
	cred := model.Credential{Certificate: id.Token, Secret: "secret"}

	p, err := s.ProcessInvoice(cred, id.Key, testutil.SimplifiedInvoice())
	require.NoError(t, err)

	res, err := s.Submit(context.Background(), cred, p)
	require.NoError(t, err)
	assert.False(t, res.IsSubmitted)
	assert.Equal(t, model.StatusNotReported, res.Status())
	assert.Len(t, res.Validation.Errors(), 1)
}

func TestNewCSR_UsesConfiguredEnvironment(t *testing.T) {
	cfg := zatca.DefaultConfig()
	cfg.EnvironmentName = "simulation"
	s, err := New(cfg, nil)
	require.NoError(t, err)

	b, err := s.NewCSR(profile())
	require.NoError(t, err)
	assert.Equal(t, zatca.Simulation, b.Profile().Environment)

	pemCSR, err := b.CSR()
	require.NoError(t, err)
	parsed, err := csr.ParseRequest(pemCSR)
	require.NoError(t, err)
	key, err := b.PrivateKey()
	require.NoError(t, err)
	assert.Equal(t, keys.SubjectPublicKeyInfo(key.PubKey()), parsed.RawSPKI)
}

func mustCert(t *testing.T, c model.Credential) *cert.Certificate {
	t.Helper()
	parsed, err := c.SigningCertificate()
	require.NoError(t, err)
	return parsed
}
