package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/webp"
)

// Decode turns raw photo bytes into a bitmap. JPEG, PNG, GIF and WebP go
// through imaging (honouring EXIF orientation); HEIC/HEIF is sniffed by its
// ftyp brand. Every failure wraps ErrImageDecode.
func Decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrImageDecode)
	}
	if isHEIC(raw) {
		img, err := heic.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: heic: %v", ErrImageDecode, err)
		}
		return img, nil
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: zero-sized image", ErrImageDecode)
	}
	return img, nil
}

func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}
