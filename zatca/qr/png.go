package qr

import (
	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/skip2/go-qrcode"
)

// DefaultPNGSize is the edge length of rendered codes in pixels.
const DefaultPNGSize = 300

// PNG renders the base64 payload as a scannable image.
func PNG(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultPNGSize
	}
	b, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, zatca.Encoding("render qr png", err)
	}
	return b, nil
}
