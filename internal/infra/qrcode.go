package infra

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultQRSize is the PNG edge length in pixels for rendered codes.
const DefaultQRSize = 512

// RenderQRPNG encodes content as a PNG QR code. Medium error correction
// survives a printed poster being scuffed or partially covered.
func RenderQRPNG(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qrcode: encode: %w", err)
	}
	return png, nil
}
