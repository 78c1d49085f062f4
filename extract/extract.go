// Package extract turns document files into ordered page elements:
// per-page text blocks, embedded images and full-page snapshots, all
// sized and encoded for multimodal model calls.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/renqiu/gohomework/element"
)

// Extractor can extract elements from a specific document format.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]*element.Element, error)
	SupportedFormats() []string
}

type Registry struct {
	extractors map[string]Extractor
}

func NewRegistry(opts ImageOptions, rasterizer Rasterizer) *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	pdf := NewPDFExtractor(opts, rasterizer)
	img := NewImageExtractor(opts)

	for _, e := range []Extractor{pdf, img} {
		for _, f := range e.SupportedFormats() {
			r.extractors[f] = e
		}
	}
	return r
}

func (r *Registry) Get(format string) (Extractor, error) {
	e, ok := r.extractors[format]
	if !ok {
		return nil, fmt.Errorf("no extractor for format: %s", format)
	}
	return e, nil
}

func (r *Registry) Register(format string, e Extractor) {
	r.extractors[format] = e
}

// Format derives the registry key for a file path: the extension,
// lowercased, without the dot.
func Format(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
