package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// newSolidImage creates an in-memory image filled with a single colour.
func newSolidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// writeTestPNG writes img into the test's temp dir and returns the path.
func writeTestPNG(t *testing.T, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTestPNG(t, "page.png", newSolidImage(120, 80, color.White))

	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 80 {
		t.Errorf("dimensions: got %dx%d, want 120x80", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestLoad_ContentSniffing(t *testing.T) {
	// PNG bytes behind a misleading extension still decode
	path := writeTestPNG(t, "page.jpg", newSolidImage(10, 10, color.Black))

	if _, err := Load(path); err != nil {
		t.Errorf("Load should detect format from contents: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	if _, err := Load("/nonexistent/path/to/image.png"); err == nil {
		t.Error("Load should fail for non-existent file")
	}
}

func TestLoad_InvalidImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load should fail for invalid image data")
	}
}

func TestDecode(t *testing.T) {
	data, err := EncodePNG(newSolidImage(30, 20, color.White))
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}

	img, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 20 {
		t.Errorf("dimensions: got %dx%d, want 30x20", img.Bounds().Dx(), img.Bounds().Dy())
	}

	if _, err := Decode([]byte("garbage")); err == nil {
		t.Error("Decode should fail for invalid data")
	}
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"paper.pdf", true},
		{"PAPER.PDF", true},
		{"/tmp/scan.png", false},
		{"pdf", false},
		{"archive.pdf.png", false},
	}
	for _, tt := range tests {
		if got := IsPDF(tt.path); got != tt.want {
			t.Errorf("IsPDF(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestLoadDocument_Image(t *testing.T) {
	path := writeTestPNG(t, "page.png", newSolidImage(40, 40, color.White))

	// page and dpi are ignored for bitmaps
	img, err := LoadDocument(path, 3, 600)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	if img.Bounds().Dx() != 40 {
		t.Errorf("width: got %d, want 40", img.Bounds().Dx())
	}
}

func TestLoadDocument_MissingPDF(t *testing.T) {
	if _, err := LoadDocument(filepath.Join(t.TempDir(), "missing.pdf"), 0, 150); err == nil {
		t.Error("LoadDocument should fail for a missing PDF")
	}
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	path := writeTestPNG(t, "cached.png", newSolidImage(100, 100, color.White))

	img1, err := cache.Load(path, 0, 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	img2, err := cache.Load(path, 0, 0)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached image")
	}
}

func TestImageCache_Evict(t *testing.T) {
	cache := NewImageCache()
	path := writeTestPNG(t, "evict.png", newSolidImage(50, 50, color.White))

	if _, err := cache.Load(path, 0, 0); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cache.Evict(path)

	cache.mu.RLock()
	_, exists := cache.images[path]
	cache.mu.RUnlock()
	if exists {
		t.Error("Evict did not remove image from cache")
	}

	// Unknown paths are a no-op
	cache.Evict("/nonexistent/path")
}

func TestImageCache_Clear(t *testing.T) {
	cache := NewImageCache()
	path := writeTestPNG(t, "clear.png", newSolidImage(50, 50, color.White))

	if _, err := cache.Load(path, 0, 0); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cache.Clear()

	cache.mu.RLock()
	count := len(cache.images)
	cache.mu.RUnlock()
	if count != 0 {
		t.Errorf("Clear did not empty cache: %d images remain", count)
	}
}

func TestImageCache_PDFKeys(t *testing.T) {
	if got := cacheKey("doc.pdf", 2, 150); got != "doc.pdf#2@150" {
		t.Errorf("cacheKey: got %s", got)
	}
	if got := cacheKey("scan.png", 2, 150); got != "scan.png" {
		t.Errorf("cacheKey for bitmap: got %s", got)
	}
}

func TestImageCache_ConcurrentAccess(t *testing.T) {
	cache := NewImageCache()
	path := writeTestPNG(t, "concurrent.png", newSolidImage(50, 50, color.White))

	var wg sync.WaitGroup
	errs := make(chan error, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(path, 0, 0); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Load error: %v", err)
	}
}

func TestGetDimensions(t *testing.T) {
	dims := GetDimensions(newSolidImage(300, 200, color.White))
	if dims.Width != 300 || dims.Height != 200 {
		t.Errorf("got %dx%d, want 300x200", dims.Width, dims.Height)
	}
}
