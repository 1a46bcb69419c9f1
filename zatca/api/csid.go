package api

import (
	"context"
	"strconv"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/model"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// IssueComplianceCSID exchanges a CSR and the OTP from the Fatoora portal for
// a compliance credential. csrB64 is the base64 encoded PEM request.
func (c *Client) IssueComplianceCSID(ctx context.Context, csrB64, otp string) (*model.Credential, error) {
	if csrB64 == "" || otp == "" {
		return nil, zatca.Validation(EndpointCompliance, errors.New("csr and otp are required"))
	}
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("csr")
	e.Str(csrB64)
	e.ObjEnd()

	resp, err := c.post(ctx, EndpointCompliance, e.Bytes(), map[string]string{"OTP": otp})
	if err != nil {
		return nil, err
	}
	return resp.credential(EndpointCompliance)
}

// IssueProductionCSID trades a compliance credential that passed the
// compliance checks for a production credential.
func (c *Client) IssueProductionCSID(ctx context.Context, compliance model.Credential) (*model.Credential, error) {
	if compliance.RequestID == 0 {
		return nil, zatca.Validation(EndpointProductionCSIDs, errors.New("compliance request id is required"))
	}
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("compliance_request_id")
	e.Str(strconv.FormatInt(compliance.RequestID, 10))
	e.ObjEnd()

	resp, err := c.post(ctx, EndpointProductionCSIDs, e.Bytes(), map[string]string{"Authorization": compliance.BasicAuth()})
	if err != nil {
		return nil, err
	}
	return resp.credential(EndpointProductionCSIDs)
}

func (r *response) credential(endpoint string) (*model.Credential, error) {
	if !r.ok() {
		return nil, r.apiError(endpoint)
	}
	var cred model.Credential
	if err := cred.UnmarshalJSON(r.body); err != nil {
		return nil, zatca.Encoding(endpoint, errors.Wrap(err, "decode credential"))
	}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	logger.Debugf("%s issued credential, request id %d", endpoint, cred.RequestID)
	return &cred, nil
}
