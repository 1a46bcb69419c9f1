package xades

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/alapierre/go-zatca-client/internal/testutil"
	"github.com/alapierre/go-zatca-client/zatca/cert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = SignedProperties{
	SigningTime:  "2024-09-07T17:41:08",
	CertDigest:   "ZDMwMmI0MTE1NzVjOTU2NTk4YzVlODhhYmI0ODU2NDUyNTU2YTVhYjhhMDFmN2FjYjk1YTA2OWQ0NjY2MmQ1NQ==",
	IssuerName:   "CN=PRZEINVOICESCA4-CA, DC=extgazt, DC=gov, DC=local",
	SerialNumber: "379112742831380471835263969587287663520528387",
}

func TestFragment_Layout(t *testing.T) {
	lines := strings.Split(sample.Fragment(), "\n")
	require.Len(t, lines, 17)

	assert.Equal(t, `<xades:SignedProperties xmlns:xades="http://uri.etsi.org/01903/v1.3.2#" Id="xadesSignedProperties">`, lines[0])
	assert.Equal(t, strings.Repeat(" ", 36)+"<xades:SignedSignatureProperties>", lines[1])
	assert.Equal(t, strings.Repeat(" ", 40)+"<xades:SigningTime>2024-09-07T17:41:08</xades:SigningTime>", lines[2])
	assert.Equal(t, strings.Repeat(" ", 52)+`<ds:X509IssuerName xmlns:ds="http://www.w3.org/2000/09/xmldsig#">CN=PRZEINVOICESCA4-CA, DC=extgazt, DC=gov, DC=local</ds:X509IssuerName>`, lines[10])
	assert.Equal(t, strings.Repeat(" ", 32)+"</xades:SignedProperties>", lines[16])
}

func TestHash_IsHexThenBase64(t *testing.T) {
	sum := sha256.Sum256([]byte(sample.Fragment()))
	want := base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(sum[:])))
	assert.Equal(t, want, sample.Hash())

	changed := sample
	changed.SerialNumber = "379112742831380471835263969587287663520528388"
	assert.NotEqual(t, sample.Hash(), changed.Hash())
}

func TestHexBase64(t *testing.T) {
	// sha256("") = e3b0c442...
	assert.Equal(t,
		base64.StdEncoding.EncodeToString([]byte("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")),
		HexBase64(nil))
}

func TestForCertificate(t *testing.T) {
	id := testutil.NewSigningIdentity(t)
	c, err := cert.Parse(id.Certificate)
	require.NoError(t, err)

	ts := time.Date(2024, 9, 7, 17, 41, 8, 500, time.Local)
	p := ForCertificate(c, ts)

	assert.Equal(t, "2024-09-07T17:41:08", p.SigningTime)
	assert.Equal(t, "CN=TSZEINVOICE-SubCA-1, DC=extgazt, DC=gov, DC=local", p.IssuerName)
	assert.Equal(t, "379112742831380471835263969587287663520528387", p.SerialNumber)
	assert.Equal(t, HexBase64([]byte(c.Body)), p.CertDigest)
}
