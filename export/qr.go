// Package export renders recipes into downloadable formats: a PDF of a
// user's favorites and PNG QR codes pointing at recipe sources.
package export

import (
	"errors"
	"fmt"

	"github.com/skip2/go-qrcode"
)

var ErrNoURL = errors.New("recipe has no source url")

const DefaultQRSize = 256

// RecipeQR encodes url as a PNG QR code of size x size pixels.
func RecipeQR(url string, size int) ([]byte, error) {
	if url == "" {
		return nil, ErrNoURL
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
