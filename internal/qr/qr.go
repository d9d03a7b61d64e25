package qr

import (
	"encoding/base64"
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length in pixels of generated codes.
const DefaultSize = 200

// Payload is the string encoded in a share's QR code. Scanning it opens the
// download page with the PIN pre-filled.
func Payload(shareURL, pin string) string {
	return shareURL + "?pin=" + url.QueryEscape(pin)
}

// PNG renders payload as a QR code image.
func PNG(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return png, nil
}

// DataURI renders payload as a base64 PNG data URI suitable for an <img> src.
func DataURI(payload string, size int) (string, error) {
	png, err := PNG(payload, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
