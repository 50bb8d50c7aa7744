package cropper

import (
	"errors"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-annotator/pkg/types"
	"github.com/menta2k/image-annotator/pkg/view"
)

// ErrEmptyRegion is returned when a box has no area inside the image
var ErrEmptyRegion = errors.New("box has no area inside the image")

// Config holds configuration for region crops
type Config struct {
	PaddingRatio float64 // extra margin on each side, relative to the box size
	MaxSize      int     // long side limit of each crop in px, 0 = native size
	Format       string  // png, jpg or webp
	Quality      int
}

// Cropper cuts annotated regions out of an image
type Cropper struct {
	config Config
}

// New creates a Cropper with default configuration
func New() *Cropper {
	return &Cropper{
		config: Config{
			PaddingRatio: 0,
			MaxSize:      0,
			Format:       "png",
			Quality:      90,
		},
	}
}

// NewWithConfig creates a Cropper with custom configuration
func NewWithConfig(config Config) *Cropper {
	if config.Format == "" {
		config.Format = "png"
	}
	return &Cropper{config: config}
}

// Region returns the pixel rectangle cut for box: normalized, padded and clamped to bounds
func (c *Cropper) Region(box types.BoundingBox, bounds image.Rectangle) image.Rectangle {
	b := box.Normalized()
	padX := int(math.Round(float64(b.X2-b.X1) * c.config.PaddingRatio))
	padY := int(math.Round(float64(b.Y2-b.Y1) * c.config.PaddingRatio))

	r := image.Rect(b.X1-padX, b.Y1-padY, b.X2+padX, b.Y2+padY)
	return r.Add(bounds.Min).Intersect(bounds)
}

// Crop cuts box out of img. Boxes are in image pixels relative to the top-left corner.
func (c *Cropper) Crop(img image.Image, box types.BoundingBox) (image.Image, error) {
	r := c.Region(box, img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("%w: %v", ErrEmptyRegion, box.Coords())
	}

	crop := imaging.Crop(img, r)
	if c.config.MaxSize > 0 && (r.Dx() > c.config.MaxSize || r.Dy() > c.config.MaxSize) {
		crop = imaging.Fit(crop, c.config.MaxSize, c.config.MaxSize, imaging.Lanczos)
	}
	return crop, nil
}

// CropName returns the file name for the index-th crop of a box with the given label
func (c *Cropper) CropName(prefix string, index int, class string) string {
	label := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(class))
	return fmt.Sprintf("%s_%03d_%s.%s", prefix, index, label, strings.ToLower(c.config.Format))
}

// Export writes one image per box into dir and returns the written paths.
// Boxes without area inside the image are skipped.
func (c *Cropper) Export(img image.Image, boxes []types.BoundingBox, dir, prefix string) ([]string, error) {
	var written []string
	for i, box := range boxes {
		crop, err := c.Crop(img, box)
		if errors.Is(err, ErrEmptyRegion) {
			continue
		}
		if err != nil {
			return written, err
		}

		path := filepath.Join(dir, c.CropName(prefix, i+1, box.Class))
		if err := view.SavePreview(crop, path, c.config.Quality); err != nil {
			return written, fmt.Errorf("failed to save crop %d: %w", i+1, err)
		}
		written = append(written, path)
	}
	return written, nil
}
