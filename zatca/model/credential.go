package model

import (
	"encoding/base64"
	"os"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/cert"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Credential is a compliance or production CSID as issued by the gateway.
type Credential struct {
	Certificate string `json:"certificate"` // binarySecurityToken
	Secret      string `json:"secret"`
	RequestID   int64  `json:"requestId"`
}

func (c Credential) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("certificate")
	e.Str(c.Certificate)
	e.FieldStart("secret")
	e.Str(c.Secret)
	e.FieldStart("requestId")
	e.Int64(c.RequestID)
	e.ObjEnd()
}

// Decode reads the persisted record as well as the issuance response
// ({binarySecurityToken, secret, requestID}).
func (c *Credential) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "certificate", "binarySecurityToken":
			c.Certificate, err = decodeString(d)
		case "secret":
			c.Secret, err = decodeString(d)
		case "requestId", "requestID":
			c.RequestID, err = decodeInt64(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "credential field %s", key)
		}
		return nil
	})
}

func (c Credential) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	c.Encode(&e)
	return e.Bytes(), nil
}

func (c *Credential) UnmarshalJSON(data []byte) error {
	return c.Decode(jx.DecodeBytes(data))
}

// Validate checks that the certificate decodes to a parseable certificate.
func (c Credential) Validate() error {
	if c.Certificate == "" || c.Secret == "" {
		return zatca.Validation("credential", errors.New("certificate and secret are required"))
	}
	_, err := c.SigningCertificate()
	return err
}

// SigningCertificate parses the issued certificate.
func (c Credential) SigningCertificate() (*cert.Certificate, error) {
	return cert.FromBinarySecurityToken(c.Certificate)
}

// BasicAuth is the Authorization header value for requests made with this credential.
func (c Credential) BasicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.Certificate+":"+c.Secret))
}

func LoadCredential(path string) (*Credential, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read credential")
	}
	var c Credential
	if err := c.UnmarshalJSON(b); err != nil {
		return nil, zatca.Encoding("load credential", err)
	}
	return &c, nil
}

func (c Credential) Save(path string) error {
	b, err := c.MarshalJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return errors.Wrap(err, "write credential")
	}
	return nil
}
