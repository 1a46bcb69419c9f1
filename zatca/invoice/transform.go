package invoice

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/go-faster/errors"
)

// Transformer prepares a parsed invoice for canonicalization.
type Transformer interface {
	Transform(doc *etree.Document) error
}

type TransformFunc func(doc *etree.Document) error

func (f TransformFunc) Transform(doc *etree.Document) error {
	return f(doc)
}

// UBLTransform removes what signing adds to an invoice: every UBLExtensions
// inside Invoice, the AdditionalDocumentReference whose cbc:ID is QR and the
// cac:Signature child of Invoice.
var UBLTransform Transformer = TransformFunc(stripSignatureArtifacts)

func stripSignatureArtifacts(doc *etree.Document) error {
	root := doc.Root()
	if root == nil {
		return errors.New("document has no root element")
	}

	var remove []*etree.Element
	walk(root, func(e *etree.Element) {
		switch e.Tag {
		case "UBLExtensions":
			if hasInvoiceAncestor(e) {
				remove = append(remove, e)
			}
		case "AdditionalDocumentReference":
			if isQRReference(e) {
				remove = append(remove, e)
			}
		case "Signature":
			if p := e.Parent(); p != nil && p.Tag == "Invoice" {
				remove = append(remove, e)
			}
		}
	})

	for _, e := range remove {
		if p := e.Parent(); p != nil {
			p.RemoveChild(e)
		}
	}
	if len(remove) > 0 {
		logger.Debugf("transform removed %d elements", len(remove))
	}
	return nil
}

func hasInvoiceAncestor(e *etree.Element) bool {
	for p := e.Parent(); p != nil; p = p.Parent() {
		if p.Tag == "Invoice" {
			return true
		}
	}
	return false
}

func isQRReference(e *etree.Element) bool {
	for _, c := range e.ChildElements() {
		if c.Tag == "ID" && c.NamespaceURI() == NamespaceCBC && strings.TrimSpace(c.Text()) == "QR" {
			return true
		}
	}
	return false
}
