package zatca

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind classifies failures so callers can decide on retry or backoff without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindCrypto
	KindDocument
	KindEncoding
	KindRemote
)

var kindNames = map[Kind]string{
	KindUnknown:    "unknown error",
	KindValidation: "validation error",
	KindCrypto:     "crypto error",
	KindDocument:   "document error",
	KindEncoding:   "encoding error",
	KindRemote:     "remote error",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error lets a Kind be used directly as an errors.Is target.
func (k Kind) Error() string {
	return k.String()
}

var (
	ErrInvalidOrganizationIdentifier = errors.New("organization identifier must be 15 digits starting and ending with 3")
	ErrNotGenerated                  = errors.New("csr and private key have not been generated yet")
	ErrAlreadyGenerated              = errors.New("csr already generated, change the profile before generating again")

	ErrMalformedInvoice       = errors.New("malformed invoice")
	ErrTransform              = errors.New("invoice transform failed")
	ErrInsertionPointNotFound = errors.New("insertion point not found")

	ErrCertificateParse     = errors.New("certificate parse failed")
	ErrSignatureExtraction  = errors.New("certificate signature not found")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrUnsupportedPublicKey = errors.New("unsupported public key")

	ErrInvalidTag   = errors.New("tlv tag out of range")
	ErrValueTooLong = errors.New("tlv value too long")
)

// Error is the common failure type of this module.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.Kind == k
}

// NewError wraps err with a kind and the name of the failing operation. A nil err yields nil.
func NewError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op string, err error) error { return NewError(KindValidation, op, err) }
func Crypto(op string, err error) error     { return NewError(KindCrypto, op, err) }
func Document(op string, err error) error   { return NewError(KindDocument, op, err) }
func Encoding(op string, err error) error   { return NewError(KindEncoding, op, err) }
func Remote(op string, err error) error     { return NewError(KindRemote, op, err) }

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ApiError is a non-success answer from the gateway.
type ApiError struct {
	Status  int    // HTTP status, 0 for transport failures
	Message string // text extracted from the response body
	Body    []byte // raw body, for diagnostics
}

func (e *ApiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ZATCA returns http status %d", e.Status)
	}
	return fmt.Sprintf("ZATCA returns http status %d: %s", e.Status, e.Message)
}
