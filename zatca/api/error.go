package api

import (
	"strings"

	"github.com/alapierre/go-zatca-client/zatca/model"
	"github.com/go-faster/jx"
)

// errorMessage picks the gateway error text in priority order: errors,
// validationResults.errorMessages, message. An unreadable body gives "".
func errorMessage(body []byte) string {
	var (
		fromErrors     []string
		fromValidation []string
		message        string
	)
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return ""
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "errors":
			fromErrors, err = decodeErrors(d)
		case "validationResults":
			var v model.ValidationResults
			if err = v.Decode(d); err == nil {
				for _, m := range v.ErrorMessages {
					fromValidation = append(fromValidation, m.String())
				}
			}
		case "message":
			if d.Next() == jx.String {
				message, err = d.Str()
			} else {
				err = d.Skip()
			}
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		logger.Debugf("unreadable error body: %v", err)
	}

	switch {
	case len(fromErrors) > 0:
		return strings.Join(fromErrors, "; ")
	case len(fromValidation) > 0:
		return strings.Join(fromValidation, "; ")
	default:
		return message
	}
}

// decodeErrors accepts a string, a list of strings or a list of message objects.
func decodeErrors(d *jx.Decoder) ([]string, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		return []string{s}, err
	case jx.Array:
		var out []string
		err := d.Arr(func(d *jx.Decoder) error {
			switch d.Next() {
			case jx.String:
				s, err := d.Str()
				out = append(out, s)
				return err
			case jx.Object:
				var m model.ValidationMessage
				if err := m.Decode(d); err != nil {
					return err
				}
				out = append(out, m.String())
				return nil
			default:
				return d.Skip()
			}
		})
		return out, err
	default:
		return nil, d.Skip()
	}
}
