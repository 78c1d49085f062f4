package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/renqiu/gohomework/element"
)

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, "scan.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, testImage(w, h)); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return path
}

func TestImageExtractorPNG(t *testing.T) {
	path := writePNG(t, t.TempDir(), 640, 480)

	elements, err := NewImageExtractor(ImageOptions{}).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(elements) != 1 {
		t.Fatalf("elements: got %d, want 1", len(elements))
	}

	el := elements[0]
	if el.Kind != element.Image {
		t.Errorf("kind: got %q, want %q", el.Kind, element.Image)
	}
	if el.Page != 1 {
		t.Errorf("page: got %d, want 1", el.Page)
	}

	data, err := base64.StdEncoding.DecodeString(el.Content)
	if err != nil {
		t.Fatalf("content is not base64: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("content is not a JPEG: %v", err)
	}
	if cfg.Width != 512 || cfg.Height != 384 {
		t.Errorf("size: got %dx%d, want 512x384", cfg.Width, cfg.Height)
	}
	if el.BBox.X1 != 512 || el.BBox.Y1 != 384 {
		t.Errorf("bbox: got %+v, want 512x384 extent", el.BBox)
	}
}

func TestImageExtractorJPEG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(path, makeJPEG(t, 64, 64), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	elements, err := NewImageExtractor(ImageOptions{}).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(elements) != 1 {
		t.Fatalf("elements: got %d, want 1", len(elements))
	}
	// Small images keep their size.
	if el := elements[0]; el.BBox.X1 != 64 || el.BBox.Y1 != 64 {
		t.Errorf("bbox: got %+v, want 64x64 extent", el.BBox)
	}
}

func TestImageExtractorRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(path, []byte("not an image at all"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if _, err := NewImageExtractor(ImageOptions{}).Extract(context.Background(), path); err == nil {
		t.Error("expected error for non-image data")
	}
}

func TestImageExtractorMissingFile(t *testing.T) {
	if _, err := NewImageExtractor(ImageOptions{}).Extract(context.Background(), "/nope/missing.png"); err == nil {
		t.Error("expected error for missing file")
	}
}
