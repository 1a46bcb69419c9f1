// Package invoice turns an unsigned UBL invoice into its canonical form and hash.
package invoice

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/model"
	"github.com/beevik/etree"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "zatca.invoice")

// XMLDeclaration prefixes every invoice transported at the gateway boundary.
const XMLDeclaration = `<?xml version="1.0" encoding="utf-8"?>`

// uuidPath matches only a direct child of the invoice root.
var uuidPath = MustCompile("cbc:UUID")

type Canonicalizer struct {
	transform Transformer
}

type Option func(*Canonicalizer)

// WithTransformer replaces UBLTransform.
func WithTransformer(t Transformer) Option {
	return func(c *Canonicalizer) {
		c.transform = t
	}
}

func NewCanonicalizer(opts ...Option) *Canonicalizer {
	c := &Canonicalizer{transform: UBLTransform}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Hash extracts the UUID, applies the transform, canonicalizes and hashes the invoice.
func (c *Canonicalizer) Hash(invoiceXML []byte) (*model.CanonicalInvoice, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(invoiceXML); err != nil {
		return nil, zatca.Document("hash invoice", errors.Wrap(zatca.ErrMalformedInvoice, err.Error()))
	}
	if doc.Root() == nil {
		return nil, zatca.Document("hash invoice", errors.Wrap(zatca.ErrMalformedInvoice, "no root element"))
	}

	id, ok := uuidPath.Text(doc.Root())
	if !ok {
		return nil, zatca.Document("hash invoice", errors.Wrap(zatca.ErrMalformedInvoice, "cbc:UUID not found"))
	}
	if _, err := uuid.Parse(id); err != nil {
		logger.Warnf("invoice UUID %q is not a valid UUID: %v", id, err)
	}

	if err := c.transform.Transform(doc); err != nil {
		return nil, zatca.Document("hash invoice", errors.Wrap(zatca.ErrTransform, err.Error()))
	}

	canonical, err := Canonicalize(doc)
	if err != nil {
		return nil, zatca.Document("hash invoice", errors.Wrap(zatca.ErrTransform, err.Error()))
	}

	sum := sha256.Sum256(canonical)
	res := &model.CanonicalInvoice{
		UUID:            id,
		InvoiceHash:     base64.StdEncoding.EncodeToString(sum[:]),
		InvoiceB64:      base64.StdEncoding.EncodeToString(WithDeclaration(canonical)),
		CanonicalXMLB64: base64.StdEncoding.EncodeToString(canonical),
	}
	logger.Debugf("invoice %s hash %s", res.UUID, res.InvoiceHash)
	return res, nil
}

// Canonicalize returns the inclusive C14N 1.0 form (without comments) of the
// document element. Namespace declarations stay where the document put them,
// so the root keeps every prefix the signature blocks use.
func Canonicalize(doc *etree.Document) ([]byte, error) {
	if doc.Root() == nil {
		return nil, errors.New("document has no root element")
	}
	canonical, err := dsig.MakeC14N10RecCanonicalizer().Canonicalize(doc.Root())
	if err != nil {
		return nil, errors.Wrap(err, "c14n")
	}
	return canonical, nil
}

// WithDeclaration prefixes doc with the UTF-8 XML declaration and a newline.
func WithDeclaration(doc []byte) []byte {
	out := make([]byte, 0, len(XMLDeclaration)+1+len(doc))
	out = append(out, XMLDeclaration...)
	out = append(out, '\n')
	return append(out, doc...)
}
