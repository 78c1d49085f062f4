// Package element defines the page elements extracted from homework
// documents and their reading order.
package element

import "sort"

// Kind discriminates what an element carries.
type Kind string

const (
	// Text is the merged text content of one page.
	Text Kind = "text"
	// Image is an embedded picture, stored as base64 JPEG.
	Image Kind = "image"
	// PageImage is a rasterized snapshot of a whole page, used when the
	// page has no embedded pictures.
	PageImage Kind = "page_image"
)

// BBox is an axis-aligned bounding box in page coordinates,
// (X0,Y0) top-left and (X1,Y1) bottom-right.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Element is a single piece of page content. Content holds text for
// Text elements and base64-encoded JPEG data for Image and PageImage
// elements. Elements are immutable once extracted; pipeline stages
// share them by pointer.
type Element struct {
	Kind    Kind    `json:"type"`
	Page    int     `json:"page"`
	Content string  `json:"content"`
	BBox    BBox    `json:"bbox"`
	CenterY float64 `json:"center_y"`
}

// New builds an element with its vertical center precomputed from the
// bounding box.
func New(kind Kind, page int, content string, box BBox) *Element {
	return &Element{
		Kind:    kind,
		Page:    page,
		Content: content,
		BBox:    box,
		CenterY: (box.Y0 + box.Y1) / 2,
	}
}

// IsImage reports whether the element carries picture data.
func (e *Element) IsImage() bool {
	return e.Kind == Image || e.Kind == PageImage
}

// SortReadingOrder sorts elements in place by page number, then by
// vertical center within a page. The sort is stable so elements that
// tie keep their extraction order.
func SortReadingOrder(elements []*Element) {
	sort.SliceStable(elements, func(i, j int) bool {
		if elements[i].Page != elements[j].Page {
			return elements[i].Page < elements[j].Page
		}
		return elements[i].CenterY < elements[j].CenterY
	})
}
