package detection

import (
	"errors"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// Kind classifies a segmented region. Values double as PubLayNet class indices.
type Kind int

const (
	KindText Kind = iota
	KindTitle
	KindList
	KindTable
	KindFigure
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindTitle:
		return "title"
	case KindList:
		return "list"
	case KindTable:
		return "table"
	case KindFigure:
		return "figure"
	}
	return "unknown"
}

// Fixed confidences per kind. The heuristics give no calibrated score, so
// tables (ruled lines are a strong signal) rank highest and lists lowest.
var kindConfidence = map[Kind]float64{
	KindText:   0.75,
	KindTitle:  0.7,
	KindList:   0.65,
	KindTable:  0.9,
	KindFigure: 0.8,
}

// Block is one segmented region of a page.
type Block struct {
	Bounds     Bounds  `json:"bounds"`
	Kind       Kind    `json:"kind"`
	Confidence float64 `json:"confidence"`
}

// Options tunes Segment. Zero values select a resolution-dependent default.
type Options struct {
	// InkThreshold is the luminance below which a pixel counts as ink.
	InkThreshold uint8

	// HGap is the widest horizontal gap bridged by smearing (word spacing).
	HGap int

	// VGap is the tallest vertical gap bridged by smearing (line spacing).
	VGap int

	// MinArea drops regions smaller than this many square pixels.
	MinArea int

	// MaxSide downsizes larger pages before segmentation; results are
	// scaled back to the original resolution.
	MaxSide int
}

// DefaultOptions returns options suited to pages rendered at 100-200 DPI.
func DefaultOptions() Options {
	return Options{
		InkThreshold: 128,
		MaxSide:      1400,
	}
}

// ErrEmptyPage is returned for images without pixels.
var ErrEmptyPage = errors.New("page has no pixels")

// Segment splits a page image into layout blocks sorted in reading order
// (top to bottom, then left to right).
//
// A blank page yields an empty, non-nil slice.
func Segment(img image.Image, opts Options) ([]Block, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, ErrEmptyPage
	}
	if opts.InkThreshold == 0 {
		opts.InkThreshold = 128
	}

	work := img
	scale := 1.0
	if opts.MaxSide > 0 {
		longest := maxInt(bounds.Dx(), bounds.Dy())
		if longest > opts.MaxSide {
			scale = float64(longest) / float64(opts.MaxSide)
			if bounds.Dx() >= bounds.Dy() {
				work = imaging.Resize(img, opts.MaxSide, 0, imaging.Box)
			} else {
				work = imaging.Resize(img, 0, opts.MaxSide, imaging.Box)
			}
		}
	}

	blocks := segmentPage(work, opts)

	for i := range blocks {
		if scale != 1.0 {
			blocks[i].Bounds = scaleBounds(blocks[i].Bounds, scale)
		}
		blocks[i].Bounds.X1 += bounds.Min.X
		blocks[i].Bounds.X2 += bounds.Min.X
		blocks[i].Bounds.Y1 += bounds.Min.Y
		blocks[i].Bounds.Y2 += bounds.Min.Y
	}
	return blocks, nil
}

// segmentPage runs the pipeline in the image's local coordinates.
func segmentPage(img image.Image, opts Options) []Block {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	hGap := opts.HGap
	if hGap <= 0 {
		hGap = maxInt(10, width/50)
	}
	vGap := opts.VGap
	if vGap <= 0 {
		vGap = maxInt(6, height/80)
	}
	minArea := opts.MinArea
	if minArea <= 0 {
		minArea = maxInt(50, width*height/2000)
	}

	ink := inkMask(img, opts.InkThreshold)
	smeared := smearVertical(smearHorizontal(ink, hGap), vGap)

	blocks := make([]Block, 0)
	stats := make([]blockStats, 0)
	for _, contour := range findContours(smeared, width, height) {
		b := contourBounds(contour)
		if b.Area() < minArea {
			continue
		}
		s := measure(ink, b)
		kind := classifyShape(s, b, height)
		blocks = append(blocks, Block{Bounds: b, Kind: kind})
		stats = append(stats, s)
	}

	refineText(blocks, stats, width)
	blocks = mergeOverlapping(dropNested(blocks))

	for i := range blocks {
		blocks[i].Confidence = kindConfidence[blocks[i].Kind]
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Bounds.Y1 != blocks[j].Bounds.Y1 {
			return blocks[i].Bounds.Y1 < blocks[j].Bounds.Y1
		}
		return blocks[i].Bounds.X1 < blocks[j].Bounds.X1
	})
	return blocks
}

// blockStats summarises the original ink inside a region.
type blockStats struct {
	density    float64 // ink pixels / area
	blankRatio float64 // rows without ink / height
	lines      int     // runs of consecutive rows containing ink
	hRules     int     // horizontal ruled lines spanning most of the width
	vRules     int     // vertical ruled lines spanning most of the height
}

// ruleSpan is the fraction of a region a line must cover to count as a rule.
const ruleSpan = 0.8

func measure(ink [][]bool, b Bounds) blockStats {
	var s blockStats
	inkPixels := 0
	blankRows := 0
	inLine, inHRule := false, false

	for y := b.Y1; y < b.Y2; y++ {
		rowInk, run, longest := 0, 0, 0
		for x := b.X1; x < b.X2; x++ {
			if ink[y][x] {
				rowInk++
				run++
				longest = maxInt(longest, run)
			} else {
				run = 0
			}
		}
		inkPixels += rowInk

		if rowInk == 0 {
			blankRows++
			inLine = false
		} else if !inLine {
			s.lines++
			inLine = true
		}

		if float64(longest) >= ruleSpan*float64(b.Width()) {
			if !inHRule {
				s.hRules++
				inHRule = true
			}
		} else {
			inHRule = false
		}
	}

	inVRule := false
	for x := b.X1; x < b.X2; x++ {
		run, longest := 0, 0
		for y := b.Y1; y < b.Y2; y++ {
			if ink[y][x] {
				run++
				longest = maxInt(longest, run)
			} else {
				run = 0
			}
		}
		if float64(longest) >= ruleSpan*float64(b.Height()) {
			if !inVRule {
				s.vRules++
				inVRule = true
			}
		} else {
			inVRule = false
		}
	}

	s.density = float64(inkPixels) / float64(b.Area())
	s.blankRatio = float64(blankRows) / float64(b.Height())
	return s
}

// classifyShape separates tables and figures from text-like regions.
func classifyShape(s blockStats, b Bounds, pageHeight int) Kind {
	if s.hRules >= 2 && s.vRules >= 2 {
		return KindTable
	}
	figureMinHeight := maxInt(40, pageHeight/20)
	if b.Height() >= figureMinHeight && s.blankRatio < 0.1 && s.density >= 0.2 {
		return KindFigure
	}
	return KindText
}

// refineText splits text-like regions into titles, list items and body text.
//
// Titles are single short lines. List blocks are indented relative to the
// leftmost text block on the page.
func refineText(blocks []Block, stats []blockStats, pageWidth int) {
	minLeft := math.MaxInt
	for _, b := range blocks {
		if b.Kind == KindText {
			minLeft = minInt(minLeft, b.Bounds.X1)
		}
	}
	indent := maxInt(8, pageWidth/30)

	for i := range blocks {
		if blocks[i].Kind != KindText {
			continue
		}
		b := blocks[i].Bounds
		switch {
		case stats[i].lines == 1 && float64(b.Width()) < 0.6*float64(pageWidth):
			blocks[i].Kind = KindTitle
		case b.X1-minLeft >= indent:
			blocks[i].Kind = KindList
		}
	}
}

// dropNested removes regions that lie inside a table or figure, such as
// cell text or labels within a chart.
func dropNested(blocks []Block) []Block {
	kept := make([]Block, 0, len(blocks))
	for i, b := range blocks {
		nested := false
		for j, outer := range blocks {
			if i == j || (outer.Kind != KindTable && outer.Kind != KindFigure) {
				continue
			}
			if contains(outer.Bounds, b.Bounds) && outer.Bounds != b.Bounds {
				nested = true
				break
			}
		}
		if !nested {
			kept = append(kept, b)
		}
	}
	return kept
}

// mergeOverlapping combines overlapping blocks of the same kind into their
// union, keeping the higher confidence.
func mergeOverlapping(blocks []Block) []Block {
	if len(blocks) == 0 {
		return blocks
	}

	merged := make([]Block, 0)

	for _, r := range blocks {
		foundMerge := false
		for i := range merged {
			if merged[i].Kind == r.Kind && regionsOverlap(r.Bounds, merged[i].Bounds) {
				merged[i].Bounds = mergeBounds(r.Bounds, merged[i].Bounds)
				merged[i].Confidence = math.Max(r.Confidence, merged[i].Confidence)
				foundMerge = true
				break
			}
		}
		if !foundMerge {
			merged = append(merged, r)
		}
	}

	return merged
}
