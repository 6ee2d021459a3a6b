package entity

import "strings"

// Region is an axis-aligned bounding box in page pixel coordinates, as
// reported by the preprocessing/OCR collaborator.
type Region struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Intersects reports whether two regions overlap with positive area.
func (r Region) Intersects(o Region) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

// WhitenedRegion marks an area flagged as possibly erased or whitened, with
// the detector's confidence in [0,1].
type WhitenedRegion struct {
	Region     Region  `json:"region"`
	Confidence float64 `json:"confidence"`
}

// TextRegion maps a rendered text area back to the logical field it holds,
// together with the font cluster the glyphs were assigned to. Field uses
// canonical names ("total", "tax", ...) or "line_items[i].amount" style
// references for items.
type TextRegion struct {
	Region        Region `json:"region"`
	Field         string `json:"field"`
	FontClusterID string `json:"font_cluster_id"`
}

// ImageSignals carries the image-level metadata computed upstream. The core
// never touches pixels; this is all it sees of the source image.
type ImageSignals struct {
	Whitened    []WhitenedRegion `json:"whitened_regions,omitempty"`
	TextRegions []TextRegion     `json:"text_regions,omitempty"`
}

// IsMonetaryField reports whether a text-region field reference points at a
// monetary value. Whitening over these areas is weighted higher.
func IsMonetaryField(field string) bool {
	switch field {
	case "total", "subtotal", "tax", "discount":
		return true
	}
	return strings.HasSuffix(field, ".amount") || strings.HasSuffix(field, ".unit_price")
}
