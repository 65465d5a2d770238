// Package imaging loads documents as bitmaps and renders layout output.
//
// Inputs are PNG, JPEG, GIF, BMP, TIFF or WebP images, or a single page of a
// PDF rendered through MuPDF. Coordinates are 0-based with (0,0) at the
// top-left corner; rectangles are half-open, matching image.Rectangle.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. The remaining functions
// are stateless and never mutate their input image.
//
// # Performance Considerations
//
// Rendered PDF pages are large. Long-running processes that load many
// documents should Evict() pages they no longer need.
package imaging
