package ocr

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/layout-detect/internal/imaging"
)

// DefaultLanguage is used when no language is configured.
const DefaultLanguage = "eng"

// Recognizer runs Tesseract on image regions. A single client is reused
// across calls; calls are serialised because the client is not thread safe.
type Recognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewRecognizer creates a recognizer for language ("eng", "eng+deu", ...).
func NewRecognizer(language string) (*Recognizer, error) {
	if language == "" {
		language = DefaultLanguage
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(strings.Split(language, "+")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	// Blocks are already segmented; treat each as one uniform block of text.
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	return &Recognizer{client: client}, nil
}

// Recognize returns the trimmed text inside rect.
//
// rect is clamped to the image; a rect entirely outside it is an error.
func (r *Recognizer) Recognize(img image.Image, rect image.Rectangle) (string, error) {
	cropped, err := imaging.Crop(img, rect)
	if err != nil {
		return "", err
	}
	data, err := imaging.EncodePNG(cropped)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases the Tesseract client.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}

// Version reports the linked Tesseract version.
func Version() string {
	return gosseract.Version()
}
