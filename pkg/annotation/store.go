package annotation

import "github.com/menta2k/image-annotator/pkg/types"

// Store is the ordered list of boxes drawn on one image; insertion order is drawing order
type Store struct {
	boxes []types.BoundingBox
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// Append adds a box to the end. Coordinates are not validated.
func (s *Store) Append(box types.BoundingBox) {
	s.boxes = append(s.boxes, box)
}

// Undo removes the last box. It reports false when there was nothing to undo.
func (s *Store) Undo() (types.BoundingBox, bool) {
	if len(s.boxes) == 0 {
		return types.BoundingBox{}, false
	}
	last := s.boxes[len(s.boxes)-1]
	s.boxes = s.boxes[:len(s.boxes)-1]
	return last, true
}

// Clear empties the store
func (s *Store) Clear() {
	s.boxes = nil
}

// List returns a copy of the boxes in drawing order
func (s *Store) List() []types.BoundingBox {
	out := make([]types.BoundingBox, len(s.boxes))
	copy(out, s.boxes)
	return out
}

// Len returns the number of stored boxes
func (s *Store) Len() int {
	return len(s.boxes)
}
