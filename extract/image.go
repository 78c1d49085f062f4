package extract

import (
	"context"
	"fmt"
	"image"
	_ "image/png"
	"os"

	"github.com/renqiu/gohomework/element"
)

// ImageExtractor handles single-image documents: the whole file
// becomes one image element on page 1.
type ImageExtractor struct {
	opts ImageOptions
}

func NewImageExtractor(opts ImageOptions) *ImageExtractor {
	return &ImageExtractor{opts: opts.withDefaults()}
}

func (e *ImageExtractor) SupportedFormats() []string { return []string{"jpg", "jpeg", "png"} }

func (e *ImageExtractor) Extract(ctx context.Context, path string) ([]*element.Element, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	b64, w, h, err := EncodeJPEGBase64(img, e.opts)
	if err != nil {
		return nil, err
	}
	return []*element.Element{
		element.New(element.Image, 1, b64, element.BBox{X1: float64(w), Y1: float64(h)}),
	}, nil
}
