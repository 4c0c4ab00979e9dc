// Package qrimage renders QR tokens as inline images for API clients.
package qrimage

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 256

// DataURI encodes the payload as a PNG QR code wrapped in a data URI, ready
// for direct use in an <img> tag.
func DataURI(payload string) (string, error) {
	return DataURISized(payload, defaultSize)
}

// DataURISized renders at an explicit pixel size.
func DataURISized(payload string, size int) (string, error) {
	if size <= 0 {
		size = defaultSize
	}

	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
