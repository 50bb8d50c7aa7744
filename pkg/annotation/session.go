// Package annotation holds the state of one annotation session: the loaded
// image, the boxes drawn on it, the display zoom and the pointer state.
//
// Boxes are recorded in original-image pixels. Release divides the display
// coordinates by the zoom factor in effect at that moment, so zooming never
// invalidates what was already drawn.
package annotation

import (
	"errors"
	"fmt"

	"github.com/menta2k/image-annotator/pkg/analyzer"
	"github.com/menta2k/image-annotator/pkg/types"
	"github.com/menta2k/image-annotator/pkg/view"
)

var (
	// ErrNoImage is returned when drawing starts before an image is loaded
	ErrNoImage = errors.New("no image loaded")
	// ErrUnknownClass is returned when selecting a label outside the configured set
	ErrUnknownClass = errors.New("unknown class label")
	// ErrNoClasses is returned when a session is created without labels
	ErrNoClasses = errors.New("class list is empty")
)

// Session is the application state shared by every UI handler
type Session struct {
	image   *analyzer.ImageRef
	store   *Store
	view    *view.View
	classes []string
	current string

	drawing bool
	startX  int
	startY  int
	lastX   int
	lastY   int
}

// NewSession creates a session with the given class labels; the first label is selected
func NewSession(classes []string, zoomStep float64) (*Session, error) {
	if len(classes) == 0 {
		return nil, ErrNoClasses
	}
	labels := make([]string, len(classes))
	copy(labels, classes)

	return &Session{
		store:   NewStore(),
		view:    view.New(zoomStep),
		classes: labels,
		current: labels[0],
	}, nil
}

// LoadImage makes ref the annotated image, dropping boxes and zoom from the previous one
func (s *Session) LoadImage(ref analyzer.ImageRef) {
	s.image = &ref
	s.store.Clear()
	s.view.Reset()
	s.drawing = false
}

// Image returns the loaded image reference
func (s *Session) Image() (analyzer.ImageRef, bool) {
	if s.image == nil {
		return analyzer.ImageRef{}, false
	}
	return *s.image, true
}

// Classes returns the configured labels
func (s *Session) Classes() []string {
	out := make([]string, len(s.classes))
	copy(out, s.classes)
	return out
}

// Class returns the label applied to newly drawn boxes
func (s *Session) Class() string {
	return s.current
}

// SelectClass changes the label applied to subsequently drawn boxes
func (s *Session) SelectClass(label string) error {
	if !s.hasClass(label) {
		return fmt.Errorf("%w: %q", ErrUnknownClass, label)
	}
	s.current = label
	return nil
}

func (s *Session) hasClass(label string) bool {
	for _, c := range s.classes {
		if c == label {
			return true
		}
	}
	return false
}

// Press starts a rectangle at display coordinates (x, y)
func (s *Session) Press(x, y int) error {
	if s.image == nil {
		return ErrNoImage
	}
	s.drawing = true
	s.startX, s.startY = x, y
	s.lastX, s.lastY = x, y
	return nil
}

// Drag moves the free corner of the rectangle in progress. It is ignored while idle.
func (s *Session) Drag(x, y int) {
	if !s.drawing {
		return
	}
	s.lastX, s.lastY = x, y
}

// Release completes the rectangle in progress and stores it in image coordinates.
// It reports false when no rectangle was being drawn.
func (s *Session) Release(x, y int) (types.BoundingBox, bool) {
	if !s.drawing {
		return types.BoundingBox{}, false
	}
	s.drawing = false

	x1, y1 := s.view.ToImage(s.startX, s.startY)
	x2, y2 := s.view.ToImage(x, y)
	box := types.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2, Class: s.current}
	s.store.Append(box)
	return box, true
}

// Drawing reports whether a rectangle is in progress
func (s *Session) Drawing() bool {
	return s.drawing
}

// Pending returns the rubber-band rectangle in display coordinates while drawing
func (s *Session) Pending() (types.BoundingBox, bool) {
	if !s.drawing {
		return types.BoundingBox{}, false
	}
	return types.BoundingBox{X1: s.startX, Y1: s.startY, X2: s.lastX, Y2: s.lastY, Class: s.current}, true
}

// AddBox appends a box given directly in image coordinates with the selected label
func (s *Session) AddBox(x1, y1, x2, y2 int) (types.BoundingBox, error) {
	if s.image == nil {
		return types.BoundingBox{}, ErrNoImage
	}
	box := types.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2, Class: s.current}
	s.store.Append(box)
	return box, nil
}

// AddSuggestion accepts a model suggestion. Labels outside the class set get the selected label.
func (s *Session) AddSuggestion(sg types.Suggestion) (types.BoundingBox, error) {
	if s.image == nil {
		return types.BoundingBox{}, ErrNoImage
	}
	label := sg.Label
	if !s.hasClass(label) {
		label = s.current
	}
	box := sg.ToPixels(s.image.Width, s.image.Height, label)
	s.store.Append(box)
	return box, nil
}

// Undo removes the most recent box; false means there was nothing to undo
func (s *Session) Undo() (types.BoundingBox, bool) {
	return s.store.Undo()
}

// Boxes returns the stored boxes in image coordinates
func (s *Session) Boxes() []types.BoundingBox {
	return s.store.List()
}

// DisplayBoxes returns the stored boxes scaled to the current zoom for redraw
func (s *Session) DisplayBoxes() []types.BoundingBox {
	boxes := s.store.List()
	for i, b := range boxes {
		boxes[i].X1, boxes[i].Y1 = s.view.ToDisplay(b.X1, b.Y1)
		boxes[i].X2, boxes[i].Y2 = s.view.ToDisplay(b.X2, b.Y2)
	}
	return boxes
}

// Len returns the number of stored boxes
func (s *Session) Len() int {
	return s.store.Len()
}

// View returns the display view
func (s *Session) View() *view.View {
	return s.view
}

// ZoomIn enlarges the display by one step
func (s *Session) ZoomIn() float64 {
	return s.view.ZoomIn()
}

// ZoomOut shrinks the display by one step
func (s *Session) ZoomOut() float64 {
	return s.view.ZoomOut()
}

// Zoom returns the current display zoom factor
func (s *Session) Zoom() float64 {
	return s.view.Factor()
}
