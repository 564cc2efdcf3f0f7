// Package annotate models per-page vector annotations and composites
// them onto rendered page bitmaps.
//
// Annotation geometry is normalized: every point lives in [0,1]²
// relative to the rendered page content, so the same annotation data
// draws correctly at any zoom level or device rotation. Annotations
// are baked into the rendered bitmap at render time; changing a page's
// annotations means invalidating that page's cache entry.
package annotate

import (
	"image/color"
)

// Point is a normalized page-relative coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one drawn polyline.
type Stroke struct {
	Color  color.RGBA `json:"-"`
	Width  float64    `json:"width"`
	Points []Point    `json:"points"`
}

// TextItem is a positioned piece of text, left-aligned at its point.
// FontSize is expressed relative to a 400-unit-wide page and scales
// proportionally with render width.
type TextItem struct {
	Color    color.RGBA `json:"-"`
	FontSize float64    `json:"fontSize"`
	At       Point      `json:"at"`
	Text     string     `json:"text"`
}

// Page is the full annotation set for one document page. The renderer
// only reads it; ownership stays with the caller.
type Page struct {
	Strokes []Stroke   `json:"strokes"`
	Texts   []TextItem `json:"texts"`
}

// Empty reports whether the page has nothing to draw.
func (p *Page) Empty() bool {
	return p == nil || (len(p.Strokes) == 0 && len(p.Texts) == 0)
}
