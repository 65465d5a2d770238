// Package detection segments a document page into layout regions without a
// trained model.
//
// It is the offline fallback behind the "heuristic" layout backend: good
// enough for clean, born-digital pages and for exercising the pipeline when
// no model weights are available. Scanned pages, multi-column magazines and
// dense forms are better served by a real detector.
//
// # Algorithm Overview
//
//  1. Binarization: pixels darker than a luminance threshold become ink
//  2. Run-length smearing: short horizontal gaps (between words) and short
//     vertical gaps (between lines) are filled so each paragraph, table or
//     figure becomes one connected blob
//  3. Connected components: blobs are collected with an 8-connected
//     flood fill and reduced to bounding boxes
//  4. Classification: each box is labelled from statistics of the original
//     ink inside it (ruled lines, ink density, line count, indentation)
//
// # Region Kinds
//
// Kinds are numbered like the PubLayNet classes so a Block's kind can be used
// directly as a class index:
//
//	0 text   1 title   2 list   3 table   4 figure
//
// # Coordinate System
//
// Bounds use the image's own coordinates with an inclusive top-left corner
// (X1, Y1) and an exclusive bottom-right corner (X2, Y2).
package detection
