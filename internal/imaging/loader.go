package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ErrEmptyImage is returned for images with a zero-sized bounding box.
var ErrEmptyImage = errors.New("image has no pixels")

// Load reads and decodes a single image file.
//
// Supported formats are PNG, JPEG, GIF, BMP, TIFF and WebP. The format is
// detected from the file contents, not the extension.
//
// # Errors
//
//   - Returns error if the file does not exist or cannot be read
//   - Returns error if the contents are not a supported image
//   - Returns ErrEmptyImage for zero-sized images
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return img, nil
}

// Decode decodes an in-memory image using the same decoders as Load.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return img, nil
}

// LoadDocument loads path as a page bitmap. PDF files (by extension) have
// page rendered at dpi; everything else goes through Load and ignores page
// and dpi.
func LoadDocument(path string, page, dpi int) (image.Image, error) {
	if IsPDF(path) {
		return RenderPDFPage(path, page, dpi)
	}
	return Load(path)
}

// IsPDF reports whether path names a PDF document.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// ImageCache provides thread-safe caching of loaded documents to avoid
// redundant disk reads and PDF rendering.
//
// Entries are keyed by path, page and dpi. Cached images remain in memory
// until removed via Evict() or Clear().
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

func cacheKey(path string, page, dpi int) string {
	if !IsPDF(path) {
		return path
	}
	return fmt.Sprintf("%s#%d@%d", path, page, dpi)
}

// Load retrieves a document page from the cache or loads it via LoadDocument.
func (c *ImageCache) Load(path string, page, dpi int) (image.Image, error) {
	key := cacheKey(path, page, dpi)

	c.mu.RLock()
	if img, ok := c.images[key]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := LoadDocument(path, page, dpi)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[key] = img
	c.mu.Unlock()

	return img, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes every cached page of path.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	for key := range c.images {
		if key == path || strings.HasPrefix(key, path+"#") {
			delete(c.images, key)
		}
	}
	c.mu.Unlock()
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns the pixel dimensions of img.
func GetDimensions(img image.Image) *DimensionsResult {
	bounds := img.Bounds()
	return &DimensionsResult{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}
}
