package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Rasterizer renders a single PDF page to an image.
type Rasterizer interface {
	Render(ctx context.Context, path string, page int) (image.Image, error)
}

// PopplerRasterizer shells out to pdftoppm for page rendering.
type PopplerRasterizer struct {
	Binary string // pdftoppm binary, defaults to "pdftoppm"
	DPI    int    // render resolution, defaults to 144
}

func (r *PopplerRasterizer) Render(ctx context.Context, path string, page int) (image.Image, error) {
	bin := r.Binary
	if bin == "" {
		bin = "pdftoppm"
	}
	dpi := r.DPI
	if dpi <= 0 {
		dpi = 144
	}

	dir, err := os.MkdirTemp("", "gohomework-raster-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, bin,
		"-jpeg", "-r", strconv.Itoa(dpi),
		"-f", strconv.Itoa(page), "-l", strconv.Itoa(page),
		"-singlefile", path, out)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %v: %s", page, err, bytes.TrimSpace(output))
	}

	f, err := os.Open(out + ".jpg")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return jpeg.Decode(f)
}
