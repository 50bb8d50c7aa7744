package types

// BoundingBox is an axis-aligned rectangle in original-image pixels with a class label.
// Corners are kept exactly as drawn, so X1 may be greater than X2 for a right-to-left drag.
type BoundingBox struct {
	X1    int    `json:"x1"`
	Y1    int    `json:"y1"`
	X2    int    `json:"x2"`
	Y2    int    `json:"y2"`
	Class string `json:"class"`
}

// Coords returns the corners in x1, y1, x2, y2 order
func (b BoundingBox) Coords() [4]int {
	return [4]int{b.X1, b.Y1, b.X2, b.Y2}
}

// Normalized returns the box with X1<=X2 and Y1<=Y2
func (b BoundingBox) Normalized() BoundingBox {
	if b.X1 > b.X2 {
		b.X1, b.X2 = b.X2, b.X1
	}
	if b.Y1 > b.Y2 {
		b.Y1, b.Y2 = b.Y2, b.Y1
	}
	return b
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Suggestion is a box proposed by a vision model, not yet accepted into the store
type Suggestion struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// ToPixels converts the normalized box to a BoundingBox for an image of the given size
func (s Suggestion) ToPixels(width, height int, class string) BoundingBox {
	fw, fh := float64(width), float64(height)
	return BoundingBox{
		X1:    int(s.Box.X*fw + 0.5),
		Y1:    int(s.Box.Y*fh + 0.5),
		X2:    int((s.Box.X+s.Box.W)*fw + 0.5),
		Y2:    int((s.Box.Y+s.Box.H)*fh + 0.5),
		Class: class,
	}
}

// SuggestionResult is the raw structure a vision model is asked to return
type SuggestionResult struct {
	Objects     []Suggestion `json:"objects"`
	Description string       `json:"description"`
}
