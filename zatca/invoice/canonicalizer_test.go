package invoice

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/alapierre/go-zatca-client/internal/testutil"
	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/beevik/etree"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_Deterministic(t *testing.T) {
	c := NewCanonicalizer()

	first, err := c.Hash(testutil.SimplifiedInvoice())
	require.NoError(t, err)
	second, err := c.Hash(testutil.SimplifiedInvoice())
	require.NoError(t, err)

	assert.Equal(t, testutil.SampleInvoiceUUID, first.UUID)
	assert.Equal(t, first.InvoiceHash, second.InvoiceHash)
	assert.Equal(t, first.CanonicalXMLB64, second.CanonicalXMLB64)
}

func TestHash_Encodings(t *testing.T) {
	res, err := NewCanonicalizer().Hash(testutil.SimplifiedInvoice())
	require.NoError(t, err)

	canonical, err := res.CanonicalXML()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(canonical, []byte("<Invoice ")))
	assert.NotContains(t, string(canonical), "<!--")

	sum := sha256.Sum256(canonical)
	assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), res.InvoiceHash)

	withDecl, err := base64.StdEncoding.DecodeString(res.InvoiceB64)
	require.NoError(t, err)
	assert.Equal(t, `<?xml version="1.0" encoding="utf-8"?>`+"\n"+string(canonical), string(withDecl))

	h, err := res.HashBytes()
	require.NoError(t, err)
	assert.Len(t, h, 32)
}

// sampleInvoiceHash is the SHA-256 of the sample invoice canonicalized by
// xmllint --c14n once its comment is removed.
const sampleInvoiceHash = "FaYvRl6qmTNC7L8MWw3qgMViK4XehFqNzYT9ArVtnbk="

func TestHash_KnownAnswer(t *testing.T) {
	res, err := NewCanonicalizer().Hash(testutil.SimplifiedInvoice())
	require.NoError(t, err)
	assert.Equal(t, sampleInvoiceHash, res.InvoiceHash)
}

func TestCanonicalize_KeepsNamespacesOnRoot(t *testing.T) {
	res, err := NewCanonicalizer().Hash(testutil.SimplifiedInvoice())
	require.NoError(t, err)
	canonical, err := res.CanonicalXML()
	require.NoError(t, err)
	s := string(canonical)

	rootTag := s[:strings.IndexByte(s, '>')+1]
	for _, ns := range []string{NamespaceInvoice, NamespaceCAC, NamespaceCBC, NamespaceEXT} {
		assert.Contains(t, rootTag, `="`+ns+`"`)
	}
	assert.Equal(t, 1, strings.Count(s, "xmlns:cac="))
	assert.Contains(t, s, "<cac:AccountingSupplierParty>")
	assert.Contains(t, s, "\n    <cbc:ProfileID>reporting:1.0</cbc:ProfileID>")
}

func TestHash_Idempotent(t *testing.T) {
	c := NewCanonicalizer()
	res, err := c.Hash(testutil.SimplifiedInvoice())
	require.NoError(t, err)

	again, err := base64.StdEncoding.DecodeString(res.InvoiceB64)
	require.NoError(t, err)

	res2, err := c.Hash(again)
	require.NoError(t, err)
	assert.Equal(t, res.InvoiceHash, res2.InvoiceHash)
	assert.Equal(t, res.CanonicalXMLB64, res2.CanonicalXMLB64)
}

func TestHash_IgnoresSignatureArtifacts(t *testing.T) {
	plain, err := NewCanonicalizer().Hash(testutil.SimplifiedInvoice())
	require.NoError(t, err)

	s := string(testutil.SimplifiedInvoice())
	rootEnd := strings.Index(s, "<!--")
	s = s[:rootEnd] + `<ext:UBLExtensions><ext:UBLExtension><ext:ExtensionURI>x</ext:ExtensionURI></ext:UBLExtension></ext:UBLExtensions>` + s[rootEnd:]
	s = strings.Replace(s, "<cac:AccountingSupplierParty>",
		`<cac:AdditionalDocumentReference><cbc:ID>QR</cbc:ID><cac:Attachment/></cac:AdditionalDocumentReference><cac:Signature><cbc:ID>sig</cbc:ID></cac:Signature><cac:AccountingSupplierParty>`, 1)

	signed, err := NewCanonicalizer().Hash([]byte(s))
	require.NoError(t, err)
	assert.Equal(t, plain.InvoiceHash, signed.InvoiceHash)
}

func TestHash_KeepsOtherDocumentReferences(t *testing.T) {
	res, err := NewCanonicalizer().Hash(testutil.SimplifiedInvoice())
	require.NoError(t, err)
	canonical, err := res.CanonicalXML()
	require.NoError(t, err)
	assert.Contains(t, string(canonical), "<cbc:ID>ICV</cbc:ID>")
	assert.Contains(t, string(canonical), "<cbc:ID>PIH</cbc:ID>")
}

func TestHash_MissingUUID(t *testing.T) {
	doc := strings.Replace(string(testutil.SimplifiedInvoice()),
		"<cbc:UUID>3cf5ee18-ee25-44ea-a444-2cdff99aa1eb</cbc:UUID>", "", 1)

	_, err := NewCanonicalizer().Hash([]byte(doc))
	require.Error(t, err)
	assert.True(t, errors.Is(err, zatca.ErrMalformedInvoice))
	assert.True(t, errors.Is(err, zatca.KindDocument))
}

func TestHash_NotXML(t *testing.T) {
	_, err := NewCanonicalizer().Hash([]byte("{not xml"))
	assert.True(t, errors.Is(err, zatca.ErrMalformedInvoice))
}

func TestHash_TransformFailure(t *testing.T) {
	c := NewCanonicalizer(WithTransformer(TransformFunc(func(*etree.Document) error {
		return errors.New("boom")
	})))
	_, err := c.Hash(testutil.SimplifiedInvoice())
	require.Error(t, err)
	assert.True(t, errors.Is(err, zatca.ErrTransform))
}

func TestPath_MatchesNamespaceNotPrefix(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<r xmlns:b="`+NamespaceCBC+`" xmlns:o="urn:other"><o:UUID>wrong</o:UUID><x><b:UUID>right</b:UUID></x></r>`))

	v, ok := MustCompile("//cbc:UUID").Text(doc.Root())
	require.True(t, ok)
	assert.Equal(t, "right", v)

	assert.Len(t, MustCompile("//UUID").All(doc.Root()), 2)
	assert.Nil(t, MustCompile("cbc:UUID").First(doc.Root()))
	assert.NotNil(t, MustCompile("x/cbc:UUID").First(doc.Root()))
}

func TestCompile_Errors(t *testing.T) {
	for _, expr := range []string{"", "//", "//foo:Bar", "a//b"} {
		_, err := Compile(expr)
		assert.Error(t, err, expr)
	}
}
