package qr

import (
	"encoding/base64"
	"sort"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/go-faster/errors"
)

type Tag byte

const (
	TagSellerName Tag = iota + 1
	TagVATNumber
	TagTimestamp
	TagTotalWithVAT
	TagVATTotal
	TagInvoiceHash
	TagSignature
	TagPublicKey
	TagCertificateSignature
)

// MaxValueLength is the largest value a single length byte can describe.
const MaxValueLength = 127

func (t Tag) Valid() bool {
	return t >= TagSellerName && t <= TagCertificateSignature
}

type Field struct {
	Tag   Tag
	Value []byte
}

func StringField(tag Tag, v string) Field {
	return Field{Tag: tag, Value: []byte(v)}
}

func validate(f Field) error {
	if !f.Tag.Valid() {
		return zatca.Encoding("encode tlv", errors.Wrapf(zatca.ErrInvalidTag, "tag %d", f.Tag))
	}
	if len(f.Value) > MaxValueLength {
		return zatca.Encoding("encode tlv", errors.Wrapf(zatca.ErrValueTooLong, "tag %d has %d bytes", f.Tag, len(f.Value)))
	}
	return nil
}

// EncodeTLV serializes fields as tag || length || value in ascending tag order.
func EncodeTLV(fields []Field) ([]byte, error) {
	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tag < sorted[j].Tag })

	size := 0
	for _, f := range sorted {
		if err := validate(f); err != nil {
			return nil, err
		}
		size += 2 + len(f.Value)
	}

	out := make([]byte, 0, size)
	for _, f := range sorted {
		out = append(out, byte(f.Tag), byte(len(f.Value)))
		out = append(out, f.Value...)
	}
	return out, nil
}

// Encode returns the base64 TLV payload carried by the QR code.
func Encode(fields []Field) (string, error) {
	b, err := EncodeTLV(fields)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeTLV parses a TLV stream produced by EncodeTLV.
func DecodeTLV(data []byte) ([]Field, error) {
	var out []Field
	for len(data) > 0 {
		if len(data) < 2 {
			return nil, zatca.Encoding("decode tlv", errors.New("truncated field header"))
		}
		tag, n := Tag(data[0]), int(data[1])
		if !tag.Valid() {
			return nil, zatca.Encoding("decode tlv", errors.Wrapf(zatca.ErrInvalidTag, "tag %d", tag))
		}
		if n > MaxValueLength {
			return nil, zatca.Encoding("decode tlv", errors.Wrapf(zatca.ErrValueTooLong, "tag %d declares %d bytes", tag, n))
		}
		if len(data) < 2+n {
			return nil, zatca.Encoding("decode tlv", errors.Errorf("tag %d truncated", tag))
		}
		out = append(out, Field{Tag: tag, Value: append([]byte(nil), data[2:2+n]...)})
		data = data[2+n:]
	}
	return out, nil
}

// Decode parses a base64 QR payload.
func Decode(payload string) ([]Field, error) {
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, zatca.Encoding("decode qr", err)
	}
	return DecodeTLV(b)
}
