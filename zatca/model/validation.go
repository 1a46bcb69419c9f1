package model

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

type SubmissionStatus string

const (
	StatusReported    SubmissionStatus = "REPORTED"
	StatusNotReported SubmissionStatus = "NOT_REPORTED"
	StatusCleared     SubmissionStatus = "CLEARED"
	StatusNotCleared  SubmissionStatus = "NOT_CLEARED"
)

// ValidationMessage is one entry of the info, warning or error lists.
type ValidationMessage struct {
	Type     string `json:"type"`
	Code     string `json:"code"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Status   string `json:"status"`
}

// String joins the non-empty code, category and message.
func (m ValidationMessage) String() string {
	var parts []string
	for _, s := range []string{m.Code, m.Category, m.Message} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func (m *ValidationMessage) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "type":
			m.Type, err = decodeString(d)
		case "code":
			m.Code, err = decodeString(d)
		case "category":
			m.Category, err = decodeString(d)
		case "message":
			m.Message, err = decodeString(d)
		case "status":
			m.Status, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

type ValidationResults struct {
	InfoMessages    []ValidationMessage `json:"infoMessages"`
	WarningMessages []ValidationMessage `json:"warningMessages"`
	ErrorMessages   []ValidationMessage `json:"errorMessages"`
	Status          string              `json:"status"`
}

func decodeMessages(d *jx.Decoder) ([]ValidationMessage, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Object:
		// single message instead of a list
		var m ValidationMessage
		if err := m.Decode(d); err != nil {
			return nil, err
		}
		return []ValidationMessage{m}, nil
	}
	var out []ValidationMessage
	err := d.Arr(func(d *jx.Decoder) error {
		var m ValidationMessage
		if err := m.Decode(d); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

func (v *ValidationResults) Decode(d *jx.Decoder) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "infoMessages":
			v.InfoMessages, err = decodeMessages(d)
		case "warningMessages":
			v.WarningMessages, err = decodeMessages(d)
		case "errorMessages":
			v.ErrorMessages, err = decodeMessages(d)
		case "status":
			v.Status, err = decodeString(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "validationResults.%s", key)
		}
		return nil
	})
}

// ValidationResponse is the body returned by the compliance, reporting and clearance endpoints.
type ValidationResponse struct {
	ValidationResults *ValidationResults `json:"validationResults"`
	ReportingStatus   string             `json:"reportingStatus"`
	ClearanceStatus   string             `json:"clearanceStatus"`
	ClearedInvoice    string             `json:"clearedInvoice"`
	QRSellerStatus    string             `json:"qrSellertStatus"`
	QRBuyerStatus     string             `json:"qrBuyertStatus"`
}

func (r *ValidationResponse) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "validationResults":
			if d.Next() == jx.Null {
				err = d.Null()
				break
			}
			r.ValidationResults = &ValidationResults{}
			err = r.ValidationResults.Decode(d)
		case "reportingStatus":
			r.ReportingStatus, err = decodeString(d)
		case "clearanceStatus":
			r.ClearanceStatus, err = decodeString(d)
		case "clearedInvoice":
			r.ClearedInvoice, err = decodeString(d)
		case "qrSellertStatus":
			r.QRSellerStatus, err = decodeString(d)
		case "qrBuyertStatus":
			r.QRBuyerStatus, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

func (r *ValidationResponse) UnmarshalJSON(data []byte) error {
	return r.Decode(jx.DecodeBytes(data))
}

// Errors returns the error messages, if any.
func (r *ValidationResponse) Errors() []ValidationMessage {
	if r == nil || r.ValidationResults == nil {
		return nil
	}
	return r.ValidationResults.ErrorMessages
}

// SubmissionResponse is the outcome of reporting or clearing a single invoice.
type SubmissionResponse struct {
	Validation  *ValidationResponse
	HTTPStatus  int
	IsSubmitted bool
}

// Status returns the reporting or clearance status, whichever the gateway set.
func (s *SubmissionResponse) Status() SubmissionStatus {
	if s.Validation == nil {
		return ""
	}
	if s.Validation.ClearanceStatus != "" {
		return SubmissionStatus(s.Validation.ClearanceStatus)
	}
	return SubmissionStatus(s.Validation.ReportingStatus)
}
