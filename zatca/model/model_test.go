package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alapierre/go-zatca-client/internal/testutil"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredential_SaveLoad(t *testing.T) {
	c := Credential{Certificate: "TUlJQ...", Secret: "s3cr3t/+=", RequestID: 1234567890123}
	p := filepath.Join(t.TempDir(), "csid.json")

	require.NoError(t, c.Save(p))
	loaded, err := LoadCredential(p)
	require.NoError(t, err)
	assert.Equal(t, c, *loaded)
}

func TestCredential_FlatJSON(t *testing.T) {
	c := Credential{Certificate: "cert", Secret: "secret", RequestID: 42}
	b, err := json.Marshal(c)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, map[string]any{"certificate": "cert", "secret": "secret", "requestId": float64(42)}, m)
}

func TestCredential_DecodeIssuanceResponse(t *testing.T) {
	body := `{"requestID":1234567890123,"dispositionMessage":"ISSUED","binarySecurityToken":"VE9LRU4=","secret":"abc","errors":null}`

	var c Credential
	require.NoError(t, c.Decode(jx.DecodeStr(body)))
	assert.Equal(t, Credential{Certificate: "VE9LRU4=", Secret: "abc", RequestID: 1234567890123}, c)

	var s Credential
	require.NoError(t, s.UnmarshalJSON([]byte(`{"binarySecurityToken":"x","secret":"y","requestID":"77"}`)))
	assert.Equal(t, int64(77), s.RequestID)
}

func TestCredential_BasicAuth(t *testing.T) {
	c := Credential{Certificate: "user", Secret: "pass"}
	assert.Equal(t, "Basic dXNlcjpwYXNz", c.BasicAuth())
}

func TestCredential_Validate(t *testing.T) {
	id := testutil.NewSigningIdentity(t)
	c := Credential{Certificate: id.Token, Secret: "secret"}
	assert.NoError(t, c.Validate())

	assert.Error(t, Credential{Certificate: "bm90IGEgY2VydA==", Secret: "x"}.Validate())
	assert.Error(t, Credential{}.Validate())
}

func TestValidationResponse_Decode(t *testing.T) {
	body := `{
		"validationResults": {
			"infoMessages": {"type":"INFO","code":"XSD_ZATCA_VALID","category":"XSD validation","message":"Complied with UBL 2.1 standards","status":"PASS"},
			"warningMessages": [],
			"errorMessages": [{"type":"ERROR","code":"invoiceTimeStamp_QRCODE_INVALID","category":"QRCODE_VALIDATION","message":"timestamp mismatch","status":"ERROR"}],
			"status": "ERROR"
		},
		"reportingStatus": "NOT_REPORTED",
		"clearanceStatus": null,
		"qrSellertStatus": null,
		"qrBuyertStatus": null
	}`

	var r ValidationResponse
	require.NoError(t, r.UnmarshalJSON([]byte(body)))
	require.NotNil(t, r.ValidationResults)
	assert.Len(t, r.ValidationResults.InfoMessages, 1)
	assert.Empty(t, r.ValidationResults.WarningMessages)
	require.Len(t, r.Errors(), 1)
	assert.Equal(t, "invoiceTimeStamp_QRCODE_INVALID QRCODE_VALIDATION timestamp mismatch", r.Errors()[0].String())
	assert.Equal(t, "NOT_REPORTED", r.ReportingStatus)

	s := SubmissionResponse{Validation: &r}
	assert.Equal(t, StatusNotReported, s.Status())
}

func TestCredentialStore(t *testing.T) {
	store, err := NewCredentialStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("production")
	assert.True(t, errors.Is(err, ErrCredentialNotFound))

	_, err = store.Load("../escape")
	assert.Error(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Save("production", Credential{Certificate: "c", Secret: "s", RequestID: int64(i)}))
		}(i)
	}
	wg.Wait()

	c, err := store.Load("production")
	require.NoError(t, err)
	assert.Equal(t, "c", c.Certificate)

	require.NoError(t, store.Delete("production"))
	_, err = store.Load("production")
	assert.True(t, errors.Is(err, ErrCredentialNotFound))
}

func TestCredentialStore_SaveReplacesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	store, err := NewCredentialStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("compliance", Credential{Certificate: "a", Secret: "s", RequestID: 1}))
	require.NoError(t, store.Save("compliance", Credential{Certificate: "b", Secret: "s", RequestID: 2}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "compliance.json", entries[0].Name())

	c, err := store.Load("compliance")
	require.NoError(t, err)
	assert.Equal(t, Credential{Certificate: "b", Secret: "s", RequestID: 2}, *c)
}
