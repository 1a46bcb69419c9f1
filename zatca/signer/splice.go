package signer

import (
	"bytes"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/go-faster/errors"
)

// SupplierPartyAnchor is the element the visible signature block is placed before.
const SupplierPartyAnchor = "<cac:AccountingSupplierParty>"

// Splicer places the rendered signature extension and signature block into a
// canonical invoice without touching any other byte of it.
type Splicer interface {
	// Check fails with ErrInsertionPointNotFound when an insertion point is missing.
	Check(canonical []byte) error
	Splice(canonical, extension, signature []byte) ([]byte, error)
}

// OffsetSplicer inserts the extension right after the first '>' of the
// document, which closes the root start tag of a canonical invoice, and the
// signature block right before Anchor.
type OffsetSplicer struct {
	Anchor string
}

func (s OffsetSplicer) anchor() []byte {
	if s.Anchor == "" {
		return []byte(SupplierPartyAnchor)
	}
	return []byte(s.Anchor)
}

func (s OffsetSplicer) offsets(canonical []byte) (rootEnd, at int, err error) {
	rootEnd = bytes.IndexByte(canonical, '>')
	if rootEnd < 0 {
		return 0, 0, zatca.Document("splice signature", errors.Wrap(zatca.ErrInsertionPointNotFound, "root start tag"))
	}
	anchor := s.anchor()
	at = bytes.Index(canonical, anchor)
	if at < 0 {
		return 0, 0, zatca.Document("splice signature", errors.Wrapf(zatca.ErrInsertionPointNotFound, "%s", anchor))
	}
	if at <= rootEnd {
		return 0, 0, zatca.Document("splice signature", errors.Wrapf(zatca.ErrInsertionPointNotFound, "%s before the root start tag ends", anchor))
	}
	return rootEnd, at, nil
}

func (s OffsetSplicer) Check(canonical []byte) error {
	_, _, err := s.offsets(canonical)
	return err
}

func (s OffsetSplicer) Splice(canonical, extension, signature []byte) ([]byte, error) {
	rootEnd, at, err := s.offsets(canonical)
	if err != nil {
		return nil, err
	}
	logger.Debugf("splicing extension at %d, signature at %d", rootEnd+1, at)

	out := make([]byte, 0, len(canonical)+len(extension)+len(signature))
	out = append(out, canonical[:rootEnd+1]...)
	out = append(out, extension...)
	out = append(out, canonical[rootEnd+1:at]...)
	out = append(out, signature...)
	return append(out, canonical[at:]...), nil
}
