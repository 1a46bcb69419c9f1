package csr

import (
	"bufio"
	"encoding/asn1"
	"strconv"
	"strings"

	"github.com/alapierre/go-zatca-client/zatca/cert"
	"github.com/go-faster/errors"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	oidSubjectAltName          = asn1.ObjectIdentifier{2, 5, 29, 17}
	oidCertificateTemplateName = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 20, 2}
)

type entry struct {
	key   string
	value string
}

// requestConfig is a rendered request configuration split into named sections.
// Entries before the first section header belong to the "" section.
type requestConfig struct {
	sections map[string][]entry
}

func parseConfig(text string) (*requestConfig, error) {
	cfg := &requestConfig{sections: map[string][]entry{}}
	section := ""

	sc := bufio.NewScanner(strings.NewReader(text))
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		if strings.HasPrefix(s, "[") {
			if !strings.HasSuffix(s, "]") {
				return nil, errors.Errorf("line %d: unterminated section header", line)
			}
			section = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		k, v, ok := strings.Cut(s, "=")
		if !ok {
			return nil, errors.Errorf("line %d: expected key = value", line)
		}
		cfg.sections[section] = append(cfg.sections[section], entry{
			key:   strings.TrimSpace(k),
			value: strings.TrimSpace(v),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *requestConfig) get(section, key string) (string, bool) {
	for _, e := range c.sections[section] {
		if e.key == key {
			return e.value, true
		}
	}
	return "", false
}

// oid resolves a short attribute name, a name from oid_section or a dotted OID.
func (c *requestConfig) oid(name string) (asn1.ObjectIdentifier, error) {
	if oid, ok := cert.AttributeOID(name); ok {
		return oid, nil
	}
	switch name {
	case "subjectAltName":
		return oidSubjectAltName, nil
	case "certificateTemplateName":
		return oidCertificateTemplateName, nil
	}
	if section, ok := c.get("", "oid_section"); ok {
		if dotted, ok := c.get(section, name); ok {
			return parseOID(dotted)
		}
	}
	return parseOID(name)
}

func parseOID(dotted string) (asn1.ObjectIdentifier, error) {
	parts := strings.Split(dotted, ".")
	if len(parts) < 2 {
		return nil, errors.Errorf("unknown object identifier %q", dotted)
	}
	oid := make(asn1.ObjectIdentifier, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, errors.Errorf("invalid object identifier %q", dotted)
		}
		oid[i] = n
	}
	return oid, nil
}

// name builds the DER name of every entry in section, in file order.
func (c *requestConfig) name(section string) ([]byte, error) {
	entries, ok := c.sections[section]
	if !ok {
		return nil, errors.Errorf("section [%s] not found", section)
	}
	attrs := make([]cert.Attribute, 0, len(entries))
	for _, e := range entries {
		if e.value == "" {
			return nil, errors.Errorf("[%s] %s has no value", section, e.key)
		}
		oid, err := c.oid(e.key)
		if err != nil {
			return nil, errors.Wrapf(err, "[%s] %s", section, e.key)
		}
		attrs = append(attrs, cert.Attribute{Type: oid, Value: e.value})
	}
	return cert.MarshalName(attrs)
}

type extension struct {
	oid      asn1.ObjectIdentifier
	critical bool
	value    []byte
}

func (c *requestConfig) subject() ([]byte, error) {
	section, ok := c.get("req", "distinguished_name")
	if !ok {
		return nil, errors.New("[req] distinguished_name is missing")
	}
	return c.name(section)
}

func (c *requestConfig) extensions() ([]extension, error) {
	section, ok := c.get("req", "req_extensions")
	if !ok {
		return nil, nil
	}
	entries, ok := c.sections[section]
	if !ok {
		return nil, errors.Errorf("section [%s] not found", section)
	}

	out := make([]extension, 0, len(entries))
	for _, e := range entries {
		oid, err := c.oid(e.key)
		if err != nil {
			return nil, errors.Wrapf(err, "[%s] %s", section, e.key)
		}
		ext := extension{oid: oid}
		value := e.value
		if v, ok := strings.CutPrefix(value, "critical,"); ok {
			ext.critical = true
			value = strings.TrimSpace(v)
		}
		if ext.value, err = c.extensionValue(value); err != nil {
			return nil, errors.Wrapf(err, "[%s] %s", section, e.key)
		}
		out = append(out, ext)
	}
	return out, nil
}

func (c *requestConfig) extensionValue(value string) ([]byte, error) {
	var b cryptobyte.Builder

	switch {
	case strings.HasPrefix(value, "ASN1:"):
		kind, content, ok := strings.Cut(strings.TrimPrefix(value, "ASN1:"), ":")
		if !ok {
			return nil, errors.Errorf("malformed ASN1 value %q", value)
		}
		var tag cbasn1.Tag
		switch strings.ToUpper(kind) {
		case "PRINTABLESTRING", "PRINTABLE":
			if !cert.IsPrintable(content) {
				return nil, errors.Errorf("%q is not a printable string", content)
			}
			tag = cbasn1.PrintableString
		case "UTF8STRING", "UTF8":
			tag = cbasn1.UTF8String
		case "IA5STRING", "IA5":
			tag = cbasn1.IA5String
		default:
			return nil, errors.Errorf("unsupported ASN1 type %s", kind)
		}
		b.AddASN1(tag, func(b *cryptobyte.Builder) {
			b.AddBytes([]byte(content))
		})

	case strings.HasPrefix(value, "dirName:"):
		dn, err := c.name(strings.TrimPrefix(value, "dirName:"))
		if err != nil {
			return nil, err
		}
		// GeneralNames { directoryName [4] EXPLICIT Name }
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1(cbasn1.Tag(4).Constructed().ContextSpecific(), func(b *cryptobyte.Builder) {
				b.AddBytes(dn)
			})
		})

	default:
		return nil, errors.Errorf("unsupported extension value %q", value)
	}
	return b.Bytes()
}
