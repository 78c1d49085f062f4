package extract

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// ImageOptions controls how extracted images are shrunk and encoded
// before being inlined into model requests.
type ImageOptions struct {
	MaxDim  int // bound on both dimensions; images are never upscaled
	Quality int // JPEG quality, 1-100
}

func (o ImageOptions) withDefaults() ImageOptions {
	if o.MaxDim <= 0 {
		o.MaxDim = 512
	}
	if o.Quality <= 0 {
		o.Quality = 80
	}
	return o
}

// fit scales img down to fit within maxDim on both axes, preserving
// aspect ratio. Images already within bounds are returned as-is.
func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	scale := float64(maxDim) / float64(w)
	if s := float64(maxDim) / float64(h); s < scale {
		scale = s
	}
	outW := int(float64(w) * scale)
	outH := int(float64(h) * scale)
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodeJPEGBase64 shrinks img per opts, encodes it as JPEG and
// returns the base64 payload together with the final pixel size.
func EncodeJPEGBase64(img image.Image, opts ImageOptions) (string, int, int, error) {
	opts = opts.withDefaults()
	img = fit(img, opts.MaxDim)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return "", 0, 0, err
	}

	b := img.Bounds()
	return base64.StdEncoding.EncodeToString(buf.Bytes()), b.Dx(), b.Dy(), nil
}
