package ocr

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"math"

	"github.com/disintegration/imaging"
)

// ConditionOptions toggles the conditioning steps. Steps run in field order.
type ConditionOptions struct {
	CropTop   float64 // fraction of height removed from the top; 0 disables
	Scale     float64 // upscale factor; <=1 disables
	Grayscale bool
	Contrast  float64 // luminance stretch factor around mid-gray; <=0 or 1 disables

	Binarize          bool
	BinarizeThreshold uint8
}

// DefaultConditionOptions mirrors the tuning used for phone screenshots of the
// bank notification screen.
func DefaultConditionOptions() ConditionOptions {
	return ConditionOptions{
		CropTop:           0.10,
		Scale:             2.0,
		Grayscale:         true,
		Contrast:          1.3,
		BinarizeThreshold: 140,
	}
}

// Conditioner prepares decoded photos for tesseract.
type Conditioner struct {
	Opts ConditionOptions
	// Warnf receives cosmetic-step failures. Defaults to log.Printf.
	Warnf func(format string, args ...any)
}

// NewConditioner returns a Conditioner using opts.
func NewConditioner(opts ConditionOptions) *Conditioner {
	return &Conditioner{Opts: opts}
}

// Condition decodes raw and applies the conditioning steps. Decode failure is
// returned as ErrImageDecode; later failures fall back to the decoded image.
func (c *Conditioner) Condition(raw []byte) (image.Image, error) {
	img, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return c.Apply(img), nil
}

// Apply runs crop, upscale, grayscale, contrast and binarize in that order.
// If any step panics or yields an empty image the original img is returned.
func (c *Conditioner) Apply(img image.Image) (out image.Image) {
	defer func() {
		if r := recover(); r != nil {
			c.warnf("OCR conditioning failed, using original image: %v", r)
			out = img
		}
	}()
	cur := img
	steps := []struct {
		name string
		on   bool
		fn   func(image.Image) image.Image
	}{
		{"crop", c.Opts.CropTop > 0, func(i image.Image) image.Image { return cropTop(i, c.Opts.CropTop) }},
		{"upscale", c.Opts.Scale > 1, func(i image.Image) image.Image { return upscale(i, c.Opts.Scale) }},
		{"grayscale", c.Opts.Grayscale, func(i image.Image) image.Image { return imaging.Grayscale(i) }},
		{"contrast", c.Opts.Contrast > 0 && c.Opts.Contrast != 1, func(i image.Image) image.Image { return stretchContrast(i, c.Opts.Contrast) }},
		{"binarize", c.Opts.Binarize, func(i image.Image) image.Image { return binarize(i, c.Opts.BinarizeThreshold) }},
	}
	for _, s := range steps {
		if !s.on {
			continue
		}
		next := s.fn(cur)
		if next == nil || next.Bounds().Empty() {
			c.warnf("OCR conditioning step %s produced an empty image, using original", s.name)
			return img
		}
		cur = next
	}
	return cur
}

func (c *Conditioner) warnf(format string, args ...any) {
	if c.Warnf != nil {
		c.Warnf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// cropTop removes the status bar strip.
func cropTop(img image.Image, frac float64) image.Image {
	b := img.Bounds()
	if frac >= 1 {
		panic(fmt.Sprintf("crop fraction %v removes the whole image", frac))
	}
	cropY := int(float64(b.Dy()) * frac)
	return imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y+cropY, b.Max.X, b.Max.Y))
}

// upscale resizes by factor with bicubic resampling.
func upscale(img image.Image, factor float64) image.Image {
	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * factor))
	h := int(math.Round(float64(b.Dy()) * factor))
	return imaging.Resize(img, w, h, imaging.CatmullRom)
}

// stretchContrast pushes each channel away from mid-gray: v' = (v-128)*f+128, clamped.
func stretchContrast(img image.Image, factor float64) image.Image {
	var lut [256]uint8
	for i := range lut {
		v := (float64(i)-128)*factor + 128
		lut[i] = clampUint8(v)
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})
}

// binarize performs a global threshold on luminance.
func binarize(img image.Image, threshold uint8) *image.NRGBA {
	src := imaging.Clone(img)
	b := src.Bounds()
	out := image.NewNRGBA(b)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := y*src.Stride + x*4
			r, g, bb := float64(src.Pix[i]), float64(src.Pix[i+1]), float64(src.Pix[i+2])
			lum := uint8(0.299*r + 0.587*g + 0.114*bb)
			var v uint8 = 255
			if lum <= threshold {
				v = 0
			}
			j := y*out.Stride + x*4
			out.Pix[j], out.Pix[j+1], out.Pix[j+2], out.Pix[j+3] = v, v, v, 255
		}
	}
	return out
}

func clampUint8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}
