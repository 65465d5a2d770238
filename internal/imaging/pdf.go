package imaging

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// DefaultDPI is the resolution used when a caller passes a non-positive dpi.
const DefaultDPI = 150

// RenderPDFPage rasterizes one page of a PDF document through MuPDF.
//
// page is 0-based. A page outside the document is an error rather than a
// silent fallback to the first page.
func RenderPDFPage(path string, page, dpi int) (image.Image, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if page < 0 || page >= doc.NumPage() {
		return nil, fmt.Errorf("page %d outside document with %d pages", page, doc.NumPage())
	}

	img, err := doc.ImageDPI(page, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("failed to render PDF page %d: %w", page, err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return img, nil
}
