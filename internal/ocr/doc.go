// Package ocr recognises the text inside detected layout blocks using
// Tesseract (via gosseract/v2).
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// # Supported Languages
//
// The default language is English ("eng"). Other Tesseract codes such as
// "deu", "fra" or "chi_sim" work when their data files are installed, and
// several can be combined with "+" ("eng+deu").
//
// # Scope
//
// Only text-like blocks (text, title, list) are recognised. Tables and
// figures keep an empty Text field. A block that fails recognition is logged
// and skipped; it never fails the whole run.
package ocr
