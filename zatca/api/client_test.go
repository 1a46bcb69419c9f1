package api

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alapierre/go-zatca-client/internal/testutil"
	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/model"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	path    string
	headers http.Header
	body    map[string]string
}

func newServer(t *testing.T, status int, body string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.path = r.URL.Path
		rec.headers = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		rec.body = map[string]string{}
		_ = jx.DecodeBytes(b).Obj(func(d *jx.Decoder, key string) error {
			s, err := d.Str()
			rec.body[key] = s
			return err
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewClient(zatca.Sandbox, srv.Client(), WithBaseURL(srv.URL+"/e-invoicing/developer-portal"), WithLanguage("ar")), rec
}

func issued(t *testing.T) (string, string) {
	id := testutil.NewSigningIdentity(t)
	return id.Token, `{"requestID":1234567890123,"dispositionMessage":"ISSUED","binarySecurityToken":"` + id.Token + `","secret":"s3cr3t","errors":null}`
}

func TestNewClient_BaseURL(t *testing.T) {
	assert.Equal(t, zatca.Production.BaseURL(), NewClient(zatca.Production, nil).BaseURL())

	cfg := zatca.DefaultConfig()
	cfg.Environment = zatca.Simulation
	c := NewClientFromConfig(&cfg, nil)
	assert.Equal(t, zatca.Simulation.BaseURL(), c.BaseURL())
	assert.Equal(t, cfg.HTTPTimeout, c.httpClient.Timeout)
}

func TestIssueComplianceCSID(t *testing.T) {
	token, body := issued(t)
	c, rec := newServer(t, http.StatusOK, body)

	cred, err := c.IssueComplianceCSID(context.Background(), "Q1NS", "123345")
	require.NoError(t, err)

	assert.Equal(t, "/e-invoicing/developer-portal/compliance", rec.path)
	assert.Equal(t, "V2", rec.headers.Get("Accept-Version"))
	assert.Equal(t, "ar", rec.headers.Get("Accept-Language"))
	assert.Equal(t, "application/json", rec.headers.Get("Content-Type"))
	assert.Equal(t, "123345", rec.headers.Get("OTP"))
	assert.Empty(t, rec.headers.Get("Authorization"))
	assert.Equal(t, "Q1NS", rec.body["csr"])

	assert.Equal(t, token, cred.Certificate)
	assert.Equal(t, "s3cr3t", cred.Secret)
	assert.Equal(t, int64(1234567890123), cred.RequestID)
}

func TestIssueComplianceCSID_Rejected(t *testing.T) {
	c, _ := newServer(t, http.StatusBadRequest, `{"errors":[{"code":"Invalid-OTP","message":"Invalid OTP"}]}`)

	_, err := c.IssueComplianceCSID(context.Background(), "Q1NS", "000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, zatca.KindRemote))

	var apiErr *zatca.ApiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Invalid-OTP Invalid OTP", apiErr.Message)
}

func TestIssueComplianceCSID_MissingOTP(t *testing.T) {
	c := NewClient(zatca.Sandbox, nil)
	_, err := c.IssueComplianceCSID(context.Background(), "Q1NS", "")
	assert.True(t, errors.Is(err, zatca.KindValidation))
}

func TestIssueProductionCSID(t *testing.T) {
	token, body := issued(t)
	c, rec := newServer(t, http.StatusOK, body)

	compliance := model.Credential{Certificate: token, Secret: "compliance", RequestID: 42}
	cred, err := c.IssueProductionCSID(context.Background(), compliance)
	require.NoError(t, err)

	assert.Equal(t, "/e-invoicing/developer-portal/production/csids", rec.path)
	assert.Equal(t, compliance.BasicAuth(), rec.headers.Get("Authorization"))
	assert.Equal(t, "42", rec.body["compliance_request_id"])
	assert.Equal(t, "s3cr3t", cred.Secret)
}

func TestIssueProductionCSID_BadCredentialBody(t *testing.T) {
	c, _ := newServer(t, http.StatusOK, `{"requestID":1,"binarySecurityToken":"`+base64.StdEncoding.EncodeToString([]byte("nope"))+`","secret":"x"}`)

	_, err := c.IssueProductionCSID(context.Background(), model.Credential{Certificate: "a", Secret: "b", RequestID: 1})
	assert.Error(t, err)
}

var request = InvoiceRequest{InvoiceHash: "aGFzaA==", UUID: testutil.SampleInvoiceUUID, Invoice: "PEludm9pY2Uv Pg=="}

func TestReport(t *testing.T) {
	c, rec := newServer(t, http.StatusOK, `{"validationResults":{"infoMessages":[{"type":"INFO","code":"XSD_ZATCA_VALID","category":"XSD validation","message":"Complied with UBL 2.1 standards","status":"PASS"}],"warningMessages":[],"errorMessages":[],"status":"PASS"},"reportingStatus":"REPORTED"}`)
	cred := model.Credential{Certificate: "cert", Secret: "secret"}

	res, err := c.Report(context.Background(), cred, request)
	require.NoError(t, err)

	assert.Equal(t, "/e-invoicing/developer-portal/invoices/reporting/single", rec.path)
	assert.Equal(t, cred.BasicAuth(), rec.headers.Get("Authorization"))
	assert.Empty(t, rec.headers.Get("Clearance-Status"))
	assert.Equal(t, map[string]string{"invoiceHash": "aGFzaA==", "uuid": testutil.SampleInvoiceUUID, "invoice": "PEludm9pY2Uv Pg=="}, rec.body)

	assert.True(t, res.IsSubmitted)
	assert.Equal(t, model.StatusReported, res.Status())
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
}

func TestClear(t *testing.T) {
	c, rec := newServer(t, http.StatusOK, `{"validationResults":{"status":"PASS"},"clearanceStatus":"CLEARED","clearedInvoice":"PD94bWw="}`)

	res, err := c.Clear(context.Background(), model.Credential{Certificate: "c", Secret: "s"}, request)
	require.NoError(t, err)

	assert.Equal(t, "/e-invoicing/developer-portal/invoices/clearance/single", rec.path)
	assert.Equal(t, "1", rec.headers.Get("Clearance-Status"))
	assert.True(t, res.IsSubmitted)
	assert.Equal(t, "PD94bWw=", res.Validation.ClearedInvoice)
}

func TestClear_WrongStatusIsNotSubmitted(t *testing.T) {
	c, _ := newServer(t, http.StatusAccepted, `{"validationResults":{"status":"WARNING"},"reportingStatus":"REPORTED"}`)

	res, err := c.Clear(context.Background(), model.Credential{}, request)
	require.NoError(t, err)
	assert.False(t, res.IsSubmitted)
}

func TestReport_RejectionIsAnOutcome(t *testing.T) {
	c, _ := newServer(t, http.StatusBadRequest, `{"validationResults":{"errorMessages":[{"type":"ERROR","code":"invoiceHash_QRCODE_INVALID","category":"QRCODE_VALIDATION","message":"bad hash","status":"ERROR"}],"status":"ERROR"},"reportingStatus":"NOT_REPORTED"}`)

	res, err := c.Report(context.Background(), model.Credential{}, request)
	require.NoError(t, err)
	assert.False(t, res.IsSubmitted)
	assert.Equal(t, model.StatusNotReported, res.Status())
	require.Len(t, res.Validation.Errors(), 1)
	assert.Equal(t, "invoiceHash_QRCODE_INVALID", res.Validation.Errors()[0].Code)
}

func TestReport_Unauthorized(t *testing.T) {
	c, _ := newServer(t, http.StatusUnauthorized, ``)

	_, err := c.Report(context.Background(), model.Credential{}, request)
	var apiErr *zatca.ApiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "ZATCA returns http status 401", apiErr.Error())
}

func TestReport_ServerError(t *testing.T) {
	c, _ := newServer(t, http.StatusInternalServerError, `{"message":"Something went wrong"}`)

	_, err := c.Report(context.Background(), model.Credential{}, request)
	var apiErr *zatca.ApiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Something went wrong", apiErr.Message)
}

func TestCheckCompliance(t *testing.T) {
	c, rec := newServer(t, http.StatusOK, `{"validationResults":{"status":"PASS"},"reportingStatus":"REPORTED"}`)

	res, err := c.CheckCompliance(context.Background(), model.Credential{Certificate: "c", Secret: "s"}, request)
	require.NoError(t, err)
	assert.Equal(t, "/e-invoicing/developer-portal/compliance/invoices", rec.path)
	assert.True(t, res.IsSubmitted)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(zatca.Sandbox, nil, WithBaseURL(url))
	_, err := c.Report(context.Background(), model.Credential{}, request)
	var apiErr *zatca.ApiError
	require.True(t, errors.As(err, &apiErr))
	assert.Zero(t, apiErr.Status)
	assert.True(t, errors.Is(err, zatca.KindRemote))
}

func TestErrorMessage_Priority(t *testing.T) {
	for name, tc := range map[string]struct {
		body string
		want string
	}{
		"errors first": {
			`{"message":"m","validationResults":{"errorMessages":[{"code":"C","category":"K","message":"v"}]},"errors":["e1","e2"]}`,
			"e1; e2",
		},
		"validation before message": {
			`{"message":"m","validationResults":{"errorMessages":[{"code":"C","category":"K","message":"v"}]}}`,
			"C K v",
		},
		"message":      {`{"message":"m","errors":[]}`, "m"},
		"single error": {`{"errors":"only"}`, "only"},
		"not json":     {`<html/>`, ""},
		"empty":        {``, ""},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, errorMessage([]byte(tc.body)))
		})
	}
}
