package extract

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func TestFitKeepsSmallImages(t *testing.T) {
	img := fit(testImage(100, 50), 512)
	b := img.Bounds()
	if b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("bounds: got %dx%d, want 100x50 untouched", b.Dx(), b.Dy())
	}
}

func TestFitDownscalesKeepingAspect(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{1024, 768, 512, 384},
		{512, 1024, 256, 512},
		{2000, 1000, 512, 256},
		{600, 600, 512, 512},
	}

	for _, tt := range tests {
		b := fit(testImage(tt.w, tt.h), 512).Bounds()
		if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
			t.Errorf("fit(%dx%d): got %dx%d, want %dx%d",
				tt.w, tt.h, b.Dx(), b.Dy(), tt.wantW, tt.wantH)
		}
	}
}

func TestEncodeJPEGBase64(t *testing.T) {
	b64, w, h, err := EncodeJPEGBase64(testImage(1024, 768), ImageOptions{MaxDim: 512, Quality: 80})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if w != 512 || h != 384 {
		t.Errorf("reported size: got %dx%d, want 512x384", w, h)
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("payload is not a JPEG: %v", err)
	}
	if cfg.Width != 512 || cfg.Height != 384 {
		t.Errorf("encoded size: got %dx%d, want 512x384", cfg.Width, cfg.Height)
	}
}

func TestEncodeJPEGBase64Defaults(t *testing.T) {
	// Zero options mean 512px bound at quality 80.
	b64, w, h, err := EncodeJPEGBase64(testImage(2048, 1024), ImageOptions{})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if w != 512 || h != 256 {
		t.Errorf("reported size: got %dx%d, want 512x256", w, h)
	}
	if b64 == "" {
		t.Error("payload is empty")
	}
}
