// Package view keeps the display zoom of the annotated image and renders the
// zoomed raster with its box outlines.
package view

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/menta2k/image-annotator/pkg/types"
)

// DefaultZoomStep is the multiplier applied per zoom in/out step
const DefaultZoomStep = 1.2

// BoxColor is the outline color used for stored boxes
var BoxColor = color.NRGBA{255, 0, 0, 255}

// PendingColor is the outline color of the rectangle being dragged
var PendingColor = color.NRGBA{255, 204, 0, 255}

// View holds the zoom factor applied to the base image for display
type View struct {
	factor float64
	step   float64
}

// New creates a View at zoom 1.0. A step <= 1 falls back to DefaultZoomStep.
func New(step float64) *View {
	if step <= 1 {
		step = DefaultZoomStep
	}
	return &View{factor: 1, step: step}
}

// Factor returns the current zoom multiplier
func (v *View) Factor() float64 {
	return v.factor
}

// Step returns the per-step zoom multiplier
func (v *View) Step() float64 {
	return v.step
}

// ZoomIn multiplies the zoom factor by the step
func (v *View) ZoomIn() float64 {
	v.factor *= v.step
	return v.factor
}

// ZoomOut divides the zoom factor by the step
func (v *View) ZoomOut() float64 {
	v.factor /= v.step
	return v.factor
}

// Reset returns the zoom factor to 1.0
func (v *View) Reset() {
	v.factor = 1
}

// ToImage converts a display coordinate to original-image pixels
func (v *View) ToImage(x, y int) (int, int) {
	return int(math.Round(float64(x) / v.factor)), int(math.Round(float64(y) / v.factor))
}

// ToDisplay converts an original-image coordinate to display pixels
func (v *View) ToDisplay(x, y int) (int, int) {
	return int(math.Round(float64(x) * v.factor)), int(math.Round(float64(y) * v.factor))
}

// DisplaySize returns the size of the zoomed raster for an image of width x height
func (v *View) DisplaySize(width, height int) (int, int) {
	return int(math.Round(float64(width) * v.factor)), int(math.Round(float64(height) * v.factor))
}

// Render returns the image scaled by the current zoom factor
func (v *View) Render(img image.Image) image.Image {
	b := img.Bounds()
	w, h := v.DisplaySize(b.Dx(), b.Dy())
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if w == b.Dx() && h == b.Dy() {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// RenderWithBoxes renders the zoomed raster and redraws every stored box on it
func (v *View) RenderWithBoxes(img image.Image, boxes []types.BoundingBox) *image.NRGBA {
	display := make([]types.BoundingBox, 0, len(boxes))
	for _, b := range boxes {
		x1, y1 := v.ToDisplay(b.X1, b.Y1)
		x2, y2 := v.ToDisplay(b.X2, b.Y2)
		display = append(display, types.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2, Class: b.Class})
	}
	return Overlay(v.Render(img), display, BoxColor, 2)
}

// Overlay draws box outlines onto a copy of img
func Overlay(img image.Image, boxes []types.BoundingBox, c color.NRGBA, stroke int) *image.NRGBA {
	nrgba := imaging.Clone(img)
	if stroke < 1 {
		stroke = 1
	}
	for _, b := range boxes {
		drawBox(nrgba, b.Normalized(), c, stroke)
	}
	return nrgba
}

// SavePreview saves an image to path, choosing the encoder from the extension
func SavePreview(img image.Image, path string, quality int) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create preview directory: %w", err)
		}
	}

	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create preview file: %w", err)
		}
		defer f.Close()
		if err := webp.Encode(f, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return fmt.Errorf("failed to encode webp preview: %w", err)
		}
		return f.Close()
	case "png":
		return imaging.Save(img, path)
	case "jpg", "jpeg":
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	default:
		return fmt.Errorf("unsupported preview format: %s", filepath.Ext(path))
	}
}

func drawBox(img *image.NRGBA, b types.BoundingBox, c color.NRGBA, stroke int) {
	x0, y0, x1, y1 := b.X1, b.Y1, b.X2+1, b.Y2+1
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if y < 0 || y >= h {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= w {
		return
	}
	x0 = max(x0, 0)
	x1 = min(x1, w)
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if x < 0 || x >= w {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= h {
		return
	}
	y0 = max(y0, 0)
	y1 = min(y1, h)
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
