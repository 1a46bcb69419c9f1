package api

import (
	"context"
	"net/http"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/model"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// InvoiceRequest is the body of the compliance, reporting and clearance calls.
type InvoiceRequest struct {
	InvoiceHash string
	UUID        string
	Invoice     string // base64 signed document
}

func NewInvoiceRequest(inv *model.CanonicalInvoice, signed *model.SignedInvoice) InvoiceRequest {
	return InvoiceRequest{InvoiceHash: inv.InvoiceHash, UUID: inv.UUID, Invoice: signed.SignedInvoiceB64}
}

func (r InvoiceRequest) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("invoiceHash")
	e.Str(r.InvoiceHash)
	e.FieldStart("uuid")
	e.Str(r.UUID)
	e.FieldStart("invoice")
	e.Str(r.Invoice)
	e.ObjEnd()
}

// CheckCompliance runs a signed sample invoice through the compliance checks.
func (c *Client) CheckCompliance(ctx context.Context, cred model.Credential, req InvoiceRequest) (*model.SubmissionResponse, error) {
	return c.submit(ctx, EndpointComplianceInvoices, cred, req, nil, "")
}

// Report submits a simplified invoice. It is submitted iff the gateway answers REPORTED.
func (c *Client) Report(ctx context.Context, cred model.Credential, req InvoiceRequest) (*model.SubmissionResponse, error) {
	return c.submit(ctx, EndpointReporting, cred, req, nil, model.StatusReported)
}

// Clear submits a standard invoice for clearance. It is submitted iff the gateway answers CLEARED.
func (c *Client) Clear(ctx context.Context, cred model.Credential, req InvoiceRequest) (*model.SubmissionResponse, error) {
	return c.submit(ctx, EndpointClearance, cred, req, map[string]string{"Clearance-Status": "1"}, model.StatusCleared)
}

// submit returns a response for every answer that carries validation
// results, rejected ones included. Other failures are errors. An empty want
// accepts either REPORTED or CLEARED.
func (c *Client) submit(ctx context.Context, endpoint string, cred model.Credential, req InvoiceRequest, extra map[string]string, want model.SubmissionStatus) (*model.SubmissionResponse, error) {
	var e jx.Encoder
	req.Encode(&e)

	headers := map[string]string{"Authorization": cred.BasicAuth()}
	for k, v := range extra {
		headers[k] = v
	}

	resp, err := c.post(ctx, endpoint, e.Bytes(), headers)
	if err != nil {
		return nil, err
	}

	clientError := resp.status >= http.StatusBadRequest && resp.status < http.StatusInternalServerError
	if !resp.ok() && !clientError {
		return nil, resp.apiError(endpoint)
	}

	var v model.ValidationResponse
	if err := v.UnmarshalJSON(resp.body); err != nil {
		if clientError {
			return nil, resp.apiError(endpoint)
		}
		return nil, zatca.Encoding(endpoint, errors.Wrap(err, "decode validation response"))
	}
	if clientError && v.ValidationResults == nil {
		return nil, resp.apiError(endpoint)
	}

	out := &model.SubmissionResponse{Validation: &v, HTTPStatus: resp.status}
	if resp.ok() {
		switch st := out.Status(); want {
		case "":
			out.IsSubmitted = st == model.StatusReported || st == model.StatusCleared
		default:
			out.IsSubmitted = st == want
		}
	}
	logger.Debugf("%s %s: http %d status %q submitted=%t", endpoint, req.UUID, resp.status, out.Status(), out.IsSubmitted)
	return out, nil
}
