// Package api talks to the ZATCA e-invoicing gateway.
package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/util"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "zatca.api")

const (
	EndpointCompliance         = "compliance"
	EndpointComplianceInvoices = "compliance/invoices"
	EndpointProductionCSIDs    = "production/csids"
	EndpointReporting          = "invoices/reporting/single"
	EndpointClearance          = "invoices/clearance/single"

	apiVersion = "V2"
)

type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL overrides the environment base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		c.baseURL = u
	}
}

// WithLanguage sets Accept-Language, en by default.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		if lang != "" {
			c.language = lang
		}
	}
}

// NewClient returns a gateway client. A nil httpClient means http.DefaultClient.
func NewClient(env zatca.Environment, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{baseURL: env.BaseURL(), language: "en", httpClient: httpClient}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewClientFromConfig applies the configured environment and language. A nil
// httpClient gets one with the configured timeout.
func NewClientFromConfig(cfg *zatca.Config, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return NewClient(cfg.Environment, httpClient, append([]Option{WithLanguage(cfg.Language)}, opts...)...)
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type response struct {
	status int
	body   []byte
}

func (r *response) ok() bool {
	return r.status == http.StatusOK || r.status == http.StatusAccepted
}

// post sends a JSON body. Only transport failures are returned as errors,
// the status code is left to the caller.
func (c *Client) post(ctx context.Context, endpoint string, body []byte, headers map[string]string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, zatca.Remote(endpoint, errors.Wrap(err, "create request"))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Version", apiVersion)
	req.Header.Set("Accept-Language", c.language)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, zatca.Remote(endpoint, &zatca.ApiError{Message: err.Error()})
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, zatca.Remote(endpoint, &zatca.ApiError{Status: resp.StatusCode, Message: "read body: " + err.Error()})
	}

	logger.Debugf("POST %s: %d in %s", endpoint, resp.StatusCode, time.Since(start))
	if util.HttpTraceEnabled() {
		logger.Debugf("request body: %s", body)
		logger.Debugf("response body: %s", b)
	}
	return &response{status: resp.StatusCode, body: b}, nil
}

func (r *response) apiError(endpoint string) error {
	return zatca.Remote(endpoint, &zatca.ApiError{
		Status:  r.status,
		Message: errorMessage(r.body),
		Body:    r.body,
	})
}
