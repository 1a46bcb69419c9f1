package cert

import (
	"encoding/asn1"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Attribute is a single AttributeTypeAndValue of a distinguished name.
type Attribute struct {
	Type  asn1.ObjectIdentifier
	Value string
}

var (
	OIDCommonName      = asn1.ObjectIdentifier{2, 5, 4, 3}
	OIDDomainComponent = asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 25}
)

var attributeNames = []struct {
	oid  asn1.ObjectIdentifier
	name string
}{
	{OIDCommonName, "CN"},
	{asn1.ObjectIdentifier{2, 5, 4, 4}, "SN"},
	{asn1.ObjectIdentifier{2, 5, 4, 5}, "serialNumber"},
	{asn1.ObjectIdentifier{2, 5, 4, 6}, "C"},
	{asn1.ObjectIdentifier{2, 5, 4, 7}, "L"},
	{asn1.ObjectIdentifier{2, 5, 4, 8}, "ST"},
	{asn1.ObjectIdentifier{2, 5, 4, 10}, "O"},
	{asn1.ObjectIdentifier{2, 5, 4, 11}, "OU"},
	{asn1.ObjectIdentifier{2, 5, 4, 12}, "title"},
	{asn1.ObjectIdentifier{2, 5, 4, 15}, "businessCategory"},
	{asn1.ObjectIdentifier{2, 5, 4, 26}, "registeredAddress"},
	{asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 1}, "UID"},
	{OIDDomainComponent, "DC"},
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}, "emailAddress"},
}

// ShortName returns the conventional short name of an attribute type, or its dotted form.
func ShortName(oid asn1.ObjectIdentifier) string {
	for _, a := range attributeNames {
		if a.oid.Equal(oid) {
			return a.name
		}
	}
	return oid.String()
}

// AttributeOID is the reverse of ShortName for the names known to this package.
func AttributeOID(name string) (asn1.ObjectIdentifier, bool) {
	for _, a := range attributeNames {
		if a.name == name {
			return a.oid, true
		}
	}
	return nil, false
}

// ParseName reads a DER RDNSequence into its attributes in encoding order.
func ParseName(der []byte) ([]Attribute, error) {
	input := cryptobyte.String(der)
	var rdns cryptobyte.String
	if !input.ReadASN1(&rdns, cbasn1.SEQUENCE) {
		return nil, errors.New("malformed name")
	}

	var out []Attribute
	for !rdns.Empty() {
		var set cryptobyte.String
		if !rdns.ReadASN1(&set, cbasn1.SET) {
			return nil, errors.New("malformed relative distinguished name")
		}
		for !set.Empty() {
			var atv cryptobyte.String
			if !set.ReadASN1(&atv, cbasn1.SEQUENCE) {
				return nil, errors.New("malformed attribute")
			}
			var a Attribute
			if !atv.ReadASN1ObjectIdentifier(&a.Type) {
				return nil, errors.New("malformed attribute type")
			}
			var value cryptobyte.String
			var tag cbasn1.Tag
			if !atv.ReadAnyASN1(&value, &tag) {
				return nil, errors.New("malformed attribute value")
			}
			a.Value = string(value)
			out = append(out, a)
		}
	}
	return out, nil
}

// FormatName renders attributes as "CN=x, O=y" in the given order.
func FormatName(attrs []Attribute) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, ShortName(a.Type)+"="+a.Value)
	}
	return strings.Join(parts, ", ")
}

// Find returns the values of every attribute of the given type.
func Find(attrs []Attribute, oid asn1.ObjectIdentifier) []string {
	var out []string
	for _, a := range attrs {
		if a.Type.Equal(oid) {
			out = append(out, a.Value)
		}
	}
	return out
}

var (
	oidCountry           = asn1.ObjectIdentifier{2, 5, 4, 6}
	oidSerialNumberAttr  = asn1.ObjectIdentifier{2, 5, 4, 5}
	printableStringTypes = []asn1.ObjectIdentifier{oidCountry, oidSerialNumberAttr}
	ia5StringTypes       = []asn1.ObjectIdentifier{OIDDomainComponent, {1, 2, 840, 113549, 1, 9, 1}}
)

func valueTag(oid asn1.ObjectIdentifier) cbasn1.Tag {
	for _, o := range printableStringTypes {
		if o.Equal(oid) {
			return cbasn1.PrintableString
		}
	}
	for _, o := range ia5StringTypes {
		if o.Equal(oid) {
			return cbasn1.IA5String
		}
	}
	return cbasn1.UTF8String
}

// MarshalName encodes attributes as an RDNSequence, one attribute per RDN.
// Country and serialNumber use PrintableString, DC and emailAddress IA5String,
// everything else UTF8String.
func MarshalName(attrs []Attribute) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, a := range attrs {
			tag := valueTag(a.Type)
			if tag == cbasn1.PrintableString && !IsPrintable(a.Value) {
				b.SetError(errors.Errorf("%s value %q is not a printable string", ShortName(a.Type), a.Value))
				return
			}
			b.AddASN1(cbasn1.SET, func(b *cryptobyte.Builder) {
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1ObjectIdentifier(a.Type)
					b.AddASN1(tag, func(b *cryptobyte.Builder) {
						b.AddBytes([]byte(a.Value))
					})
				})
			})
		}
	})
	return b.Bytes()
}

// IsPrintable reports whether s fits the ASN.1 PrintableString alphabet.
func IsPrintable(s string) bool {
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
		case strings.ContainsRune(" '()+,-./:=?", r):
		default:
			return false
		}
	}
	return true
}
