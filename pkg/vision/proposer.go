// Package vision proposes candidate boxes without a model by looking for
// salient regions: areas whose edge and brightness response stands out from
// the image average.
package vision

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-annotator/pkg/types"
)

// analysisSize is the long side the image is reduced to before scanning
const analysisSize = 256

// Config holds configuration for region proposals
type Config struct {
	EdgeWeight       float64
	BrightnessWeight float64
	Threshold        float64 // minimum window saliency relative to the image mean
	MinRegionRatio   float64 // minimum window area relative to the image area
	MaxProposals     int
	OverlapLimit     float64 // IoU above which a weaker proposal is dropped
}

// Proposer finds salient rectangular regions
type Proposer struct {
	config Config
}

// New creates a Proposer with default configuration
func New() *Proposer {
	return &Proposer{
		config: Config{
			EdgeWeight:       0.6,
			BrightnessWeight: 0.4,
			Threshold:        1.5,
			MinRegionRatio:   0.01,
			MaxProposals:     5,
			OverlapLimit:     0.3,
		},
	}
}

// NewWithConfig creates a Proposer with custom configuration
func NewWithConfig(config Config) *Proposer {
	return &Proposer{config: config}
}

// Region is a rectangle in image pixels with its saliency score
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// IoU returns the intersection over union of two regions
func (r Region) IoU(o Region) float64 {
	x1, y1 := max(r.X, o.X), max(r.Y, o.Y)
	x2, y2 := min(r.X+r.Width, o.X+o.Width), min(r.Y+r.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	inter := (x2 - x1) * (y2 - y1)
	return float64(inter) / float64(r.Area()+o.Area()-inter)
}

// Box converts the region to a bounding box with the given label
func (r Region) Box(class string) types.BoundingBox {
	return types.BoundingBox{X1: r.X, Y1: r.Y, X2: r.X + r.Width, Y2: r.Y + r.Height, Class: class}
}

// Propose returns salient regions in original-image pixels, strongest first
func (p *Proposer) Propose(img image.Image) []Region {
	bounds := img.Bounds()
	if bounds.Dx() < 3 || bounds.Dy() < 3 {
		return nil
	}

	small := imaging.Fit(img, analysisSize, analysisSize, imaging.Box)
	width, height := small.Bounds().Dx(), small.Bounds().Dy()

	saliency, mean := p.saliencyMap(small)
	if mean == 0 {
		return nil
	}

	regions := p.scanWindows(saliency, width, height, mean)
	regions = p.suppress(regions)

	fx := float64(bounds.Dx()) / float64(width)
	fy := float64(bounds.Dy()) / float64(height)
	for i, r := range regions {
		regions[i] = Region{
			X:      int(math.Round(float64(r.X) * fx)),
			Y:      int(math.Round(float64(r.Y) * fy)),
			Width:  int(math.Round(float64(r.Width) * fx)),
			Height: int(math.Round(float64(r.Height) * fy)),
			Score:  r.Score,
		}
	}
	return regions
}

// saliencyMap combines neighbour contrast and brightness per pixel
func (p *Proposer) saliencyMap(img *image.NRGBA) ([][]float64, float64) {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()

	saliency := make([][]float64, height)
	for i := range saliency {
		saliency[i] = make([]float64, width)
	}

	neighbors := [][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	var total float64
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			c := img.NRGBAAt(x, y)

			var edge float64
			for _, off := range neighbors {
				n := img.NRGBAAt(x+off[0], y+off[1])
				dr := float64(c.R) - float64(n.R)
				dg := float64(c.G) - float64(n.G)
				db := float64(c.B) - float64(n.B)
				edge += math.Sqrt(dr*dr + dg*dg + db*db)
			}
			edge /= 8 * 255 * math.Sqrt(3)

			brightness := (float64(c.R) + float64(c.G) + float64(c.B)) / (3 * 255)

			s := p.config.EdgeWeight*edge + p.config.BrightnessWeight*brightness
			saliency[y][x] = s
			total += s
		}
	}
	return saliency, total / float64(width*height)
}

// scanWindows slides square windows over the map and keeps those above threshold
func (p *Proposer) scanWindows(saliency [][]float64, width, height int, mean float64) []Region {
	side := min(width, height)
	minArea := int(float64(width*height) * p.config.MinRegionRatio)

	var regions []Region
	for _, size := range []int{side / 12, side / 8, side / 6, side / 4} {
		if size < 8 || size*size < minArea {
			continue
		}
		step := max(size/4, 1)
		for y := 0; y+size <= height; y += step {
			for x := 0; x+size <= width; x += step {
				score := windowMean(saliency, x, y, size) / mean
				if score >= p.config.Threshold {
					regions = append(regions, Region{X: x, Y: y, Width: size, Height: size, Score: score})
				}
			}
		}
	}

	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].Score != regions[j].Score {
			return regions[i].Score > regions[j].Score
		}
		return regions[i].Area() > regions[j].Area()
	})
	return regions
}

// suppress drops regions overlapping a stronger one and caps the count
func (p *Proposer) suppress(regions []Region) []Region {
	var kept []Region
	for _, r := range regions {
		overlaps := false
		for _, k := range kept {
			if r.IoU(k) > p.config.OverlapLimit {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		kept = append(kept, r)
		if p.config.MaxProposals > 0 && len(kept) == p.config.MaxProposals {
			break
		}
	}
	return kept
}

func windowMean(saliency [][]float64, x, y, size int) float64 {
	var total float64
	for ry := y; ry < y+size; ry++ {
		for rx := x; rx < x+size; rx++ {
			total += saliency[ry][rx]
		}
	}
	return total / float64(size*size)
}
