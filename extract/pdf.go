package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/renqiu/gohomework/element"
)

// PDFExtractor reads text and images out of PDF files. Each page with
// a text layer yields one text element spanning the whole page.
// Embedded JPEG images become image elements; pages that yield no
// image fall back to a full-page raster so scanned content still
// reaches the model.
type PDFExtractor struct {
	opts       ImageOptions
	rasterizer Rasterizer
}

func NewPDFExtractor(opts ImageOptions, rasterizer Rasterizer) *PDFExtractor {
	return &PDFExtractor{opts: opts.withDefaults(), rasterizer: rasterizer}
}

func (e *PDFExtractor) SupportedFormats() []string { return []string{"pdf"} }

func (e *PDFExtractor) Extract(ctx context.Context, path string) ([]*element.Element, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PDF: %w", err)
	}
	streams := scanJPEGStreams(raw)
	used := make([]bool, len(streams))

	var elements []*element.Element
	totalPages := reader.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		pageW, pageH := pageSize(page)
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("extract: page text failed", "page", pageNum, "error", err)
			text = ""
		}
		if text = strings.TrimSpace(text); text != "" {
			elements = append(elements,
				element.New(element.Text, pageNum, text, element.BBox{X1: pageW, Y1: pageH}))
		} else {
			slog.Warn("extract: no text on page", "page", pageNum)
		}

		extracted := 0
		for _, data := range pageJPEGs(page, streams, used) {
			img, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				slog.Warn("extract: embedded image skipped", "page", pageNum, "error", err)
				continue
			}
			el, err := e.imageElement(element.Image, pageNum, img)
			if err != nil {
				slog.Warn("extract: embedded image skipped", "page", pageNum, "error", err)
				continue
			}
			elements = append(elements, el)
			extracted++
		}

		if extracted == 0 {
			el, err := e.rasterElement(ctx, path, pageNum)
			if err != nil {
				slog.Warn("extract: page raster failed", "page", pageNum, "error", err)
				continue
			}
			elements = append(elements, el)
			slog.Debug("extract: page snapshot added", "page", pageNum)
		}
	}

	slog.Info("extract: pdf processed", "path", path, "pages", totalPages, "elements", len(elements))
	return elements, nil
}

func (e *PDFExtractor) rasterElement(ctx context.Context, path string, pageNum int) (*element.Element, error) {
	if e.rasterizer == nil {
		return nil, fmt.Errorf("no rasterizer configured")
	}
	img, err := e.rasterizer.Render(ctx, path, pageNum)
	if err != nil {
		return nil, err
	}
	return e.imageElement(element.PageImage, pageNum, img)
}

func (e *PDFExtractor) imageElement(kind element.Kind, pageNum int, img image.Image) (*element.Element, error) {
	b64, w, h, err := EncodeJPEGBase64(img, e.opts)
	if err != nil {
		return nil, err
	}
	return element.New(kind, pageNum, b64, element.BBox{X1: float64(w), Y1: float64(h)}), nil
}

// pageSize reads the page MediaBox, walking up the page tree for
// inherited values. Falls back to A4 point dimensions.
func pageSize(page pdf.Page) (w, h float64) {
	box := inherited(page.V, "MediaBox")
	if box.Kind() != pdf.Array || box.Len() < 4 {
		return 595, 842
	}
	w = box.Index(2).Float64() - box.Index(0).Float64()
	h = box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return 595, 842
	}
	return w, h
}

func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		if r := v.Key(key); !r.IsNull() {
			return r
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

// pageJPEGs returns the JPEG payloads for the page's image XObjects.
// The PDF library only exposes Flate stream contents, so JPEG data is
// taken from the raw-byte scan instead: streams are matched to
// XObjects by pixel size and consumed in document order.
func pageJPEGs(page pdf.Page, streams []jpegStream, used []bool) [][]byte {
	xobjs := inherited(page.V, "Resources").Key("XObject")
	if xobjs.Kind() != pdf.Dict {
		return nil
	}

	var out [][]byte
	for _, name := range xobjs.Keys() {
		obj := xobjs.Key(name)
		if obj.Kind() != pdf.Stream || obj.Key("Subtype").Name() != "Image" || !isDCT(obj) {
			continue
		}
		w := int(obj.Key("Width").Int64())
		h := int(obj.Key("Height").Int64())
		for i := range streams {
			if !used[i] && streams[i].width == w && streams[i].height == h {
				used[i] = true
				out = append(out, streams[i].data)
				break
			}
		}
	}
	return out
}

func isDCT(obj pdf.Value) bool {
	filter := obj.Key("Filter")
	switch filter.Kind() {
	case pdf.Name:
		return filter.Name() == "DCTDecode"
	case pdf.Array:
		for i := 0; i < filter.Len(); i++ {
			if filter.Index(i).Name() == "DCTDecode" {
				return true
			}
		}
	}
	return false
}

type jpegStream struct {
	width  int
	height int
	data   []byte
}

var (
	jpegSOI = []byte{0xFF, 0xD8, 0xFF}
	jpegEOI = []byte{0xFF, 0xD9}
)

// scanJPEGStreams locates JPEG payloads in raw PDF bytes by their
// start/end markers and records their pixel size. Candidates whose
// header does not decode are discarded.
func scanJPEGStreams(raw []byte) []jpegStream {
	var out []jpegStream
	off := 0
	for {
		i := bytes.Index(raw[off:], jpegSOI)
		if i < 0 {
			return out
		}
		start := off + i
		j := bytes.Index(raw[start:], jpegEOI)
		if j < 0 {
			return out
		}
		end := start + j + len(jpegEOI)

		data := raw[start:end]
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			off = start + len(jpegSOI)
			continue
		}
		out = append(out, jpegStream{width: cfg.Width, height: cfg.Height, data: data})
		off = end
	}
}
