// Package imageannotator provides bounding-box annotation of images with
// export to JSON and Pascal VOC XML.
//
// Basic usage:
//
//	package main
//
//	import (
//		"log"
//
//		imageannotator "github.com/menta2k/image-annotator"
//	)
//
//	func main() {
//		a, err := imageannotator.New([]string{"Disease Class 1", "Disease Class 2"})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		if err := a.LoadImage("leaf.jpg"); err != nil {
//			log.Fatal(err)
//		}
//
//		// Pointer events in display coordinates, as a canvas would deliver them
//		s := a.Session()
//		s.Press(10, 10)
//		s.Drag(30, 30)
//		s.Release(50, 50)
//
//		if _, err := a.Export("leaf", "all"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these components:
//
// 1. Annotation (pkg/annotation): the box store and the session state machine
// 2. Analyzer (pkg/analyzer): image loading and size metadata
// 3. View (pkg/view): zoom and box overlay rendering
// 4. Export (pkg/export): JSON and Pascal VOC exporters
// 5. Detection (pkg/detection): optional box suggestions from a vision model
// 6. Vision (pkg/vision): model-free proposals from salient regions
// 7. Cropper (pkg/cropper): one image per annotated region
//
// Boxes are stored in original-image pixels whatever the zoom was when they
// were drawn, and the VOC size element is read from the image file itself.
package imageannotator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/menta2k/image-annotator/pkg/analyzer"
	"github.com/menta2k/image-annotator/pkg/annotation"
	"github.com/menta2k/image-annotator/pkg/cropper"
	"github.com/menta2k/image-annotator/pkg/detection"
	"github.com/menta2k/image-annotator/pkg/export"
	"github.com/menta2k/image-annotator/pkg/types"
	"github.com/menta2k/image-annotator/pkg/view"
	"github.com/menta2k/image-annotator/pkg/vision"
)

// Version of the image annotator library
const Version = "1.0.0"

// ErrNoSuggester is returned by Suggest when no vision backend is configured
var ErrNoSuggester = errors.New("no suggestion backend configured")

// Options configures an Annotator
type Options struct {
	Classes   []string
	ZoomStep  float64
	Analyzer  analyzer.Config
	Suggester *detection.Suggester
	Proposer  *vision.Proposer
	Cropper   *cropper.Cropper
}

// Annotator bundles the session with loading, rendering and export
type Annotator struct {
	analyzer  *analyzer.ImageAnalyzer
	session   *annotation.Session
	suggester *detection.Suggester
	proposer  *vision.Proposer
	cropper   *cropper.Cropper
	image     image.Image
}

// New creates an Annotator with default image settings and the given labels
func New(classes []string) (*Annotator, error) {
	return NewWithConfig(Options{Classes: classes, ZoomStep: view.DefaultZoomStep})
}

// NewWithConfig creates an Annotator from options
func NewWithConfig(opts Options) (*Annotator, error) {
	session, err := annotation.NewSession(opts.Classes, opts.ZoomStep)
	if err != nil {
		return nil, err
	}

	a := &Annotator{
		analyzer:  analyzer.New(),
		session:   session,
		suggester: opts.Suggester,
		proposer:  opts.Proposer,
		cropper:   opts.Cropper,
	}
	if a.proposer == nil {
		a.proposer = vision.New()
	}
	if a.cropper == nil {
		a.cropper = cropper.New()
	}
	if len(opts.Analyzer.SupportedFormats) > 0 {
		a.analyzer = analyzer.NewWithConfig(opts.Analyzer)
	}
	return a, nil
}

// Session returns the annotation session driven by UI events
func (a *Annotator) Session() *annotation.Session {
	return a.session
}

// Image returns the decoded image, or nil before LoadImage
func (a *Annotator) Image() image.Image {
	return a.image
}

// LoadImage decodes path and starts a fresh session on it. On failure the
// previous image and its boxes are kept.
func (a *Annotator) LoadImage(path string) error {
	img, ref, err := a.analyzer.LoadImage(path)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	a.image = img
	a.session.LoadImage(ref)
	return nil
}

// Document returns the current boxes and image reference for export
func (a *Annotator) Document() export.Document {
	ref, _ := a.session.Image()
	return export.Document{Image: ref, Boxes: a.session.Boxes()}
}

// SaveJSON writes the JSON export to path
func (a *Annotator) SaveJSON(path string) error {
	return export.NewJSONExporter().Export(a.Document(), path)
}

// SaveVOC writes the Pascal VOC export to path
func (a *Annotator) SaveVOC(path string) error {
	return export.NewVOCExporter().Export(a.Document(), path)
}

// Export writes the named formats ("json", "voc", "all") next to base and
// returns the written paths. No names means every format.
func (a *Annotator) Export(base string, formats ...string) ([]string, error) {
	if len(formats) == 0 {
		formats = []string{"all"}
	}

	var exporters []export.Exporter
	seen := map[export.Format]bool{}
	for _, name := range formats {
		parsed, err := export.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		for _, f := range parsed {
			if seen[f] {
				continue
			}
			seen[f] = true
			e, err := export.ForFormat(f)
			if err != nil {
				return nil, err
			}
			exporters = append(exporters, e)
		}
	}
	return export.ExportAll(a.Document(), base, exporters...)
}

// Render returns the zoomed image with every stored box outlined
func (a *Annotator) Render() (image.Image, error) {
	if a.image == nil {
		return nil, annotation.ErrNoImage
	}
	rendered := a.session.View().RenderWithBoxes(a.image, a.session.Boxes())
	if pending, ok := a.session.Pending(); ok {
		rendered = view.Overlay(rendered, []types.BoundingBox{pending}, view.PendingColor, 1)
	}
	return rendered, nil
}

// SavePreview writes the rendered view to path (png, jpg or webp)
func (a *Annotator) SavePreview(path string, quality int) error {
	rendered, err := a.Render()
	if err != nil {
		return err
	}
	return view.SavePreview(rendered, path, quality)
}

// Suggest asks the configured vision model for candidate boxes on the loaded image
func (a *Annotator) Suggest(ctx context.Context) ([]types.Suggestion, error) {
	if a.suggester == nil {
		return nil, ErrNoSuggester
	}
	if a.image == nil {
		return nil, annotation.ErrNoImage
	}
	return a.suggester.Suggest(ctx, a.image, a.session.Classes())
}

// Propose returns salient regions of the loaded image as boxes with the
// selected label. They are not stored.
func (a *Annotator) Propose() ([]types.BoundingBox, error) {
	if a.image == nil {
		return nil, annotation.ErrNoImage
	}
	regions := a.proposer.Propose(a.image)
	boxes := make([]types.BoundingBox, 0, len(regions))
	for _, r := range regions {
		boxes = append(boxes, r.Box(a.session.Class()))
	}
	return boxes, nil
}

// ExportCrops writes each stored box as its own image into dir, named after the image
func (a *Annotator) ExportCrops(dir string) ([]string, error) {
	ref, ok := a.session.Image()
	if !ok || a.image == nil {
		return nil, annotation.ErrNoImage
	}
	if a.session.Len() == 0 {
		return nil, export.ErrNoAnnotations
	}
	prefix := strings.TrimSuffix(ref.Filename(), filepath.Ext(ref.Filename()))
	return a.cropper.Export(a.image, a.session.Boxes(), dir, prefix)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
