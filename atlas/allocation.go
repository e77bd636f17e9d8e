package atlas

import "fmt"

// AllocationKind distinguishes whole-layer from packed allocations.
type AllocationKind uint8

const (
	// AllocationPartial is a packer region inside a busy layer.
	AllocationPartial AllocationKind = iota

	// AllocationFull claims an entire layer.
	AllocationFull
)

// String returns a string representation of the kind.
func (k AllocationKind) String() string {
	if k == AllocationFull {
		return "full"
	}
	return "partial"
}

// Allocation is a reservation of texels in one layer.
type Allocation struct {
	Kind  AllocationKind
	Layer int

	// Region is set for partial allocations.
	Region Region

	// size is the layer edge, used by full allocations.
	size int
}

// Position returns the top-left corner of the allocation in its layer.
func (a Allocation) Position() (x, y int) {
	if a.Kind == AllocationFull {
		return 0, 0
	}
	return a.Region.X, a.Region.Y
}

// Size returns the allocated size in pixels.
func (a Allocation) Size() (width, height int) {
	if a.Kind == AllocationFull {
		return a.size, a.size
	}
	return a.Region.Width, a.Region.Height
}

// String returns a string representation of the allocation.
func (a Allocation) String() string {
	w, h := a.Size()
	x, y := a.Position()
	return fmt.Sprintf("Allocation(%s layer=%d %d,%d %dx%d)", a.Kind, a.Layer, x, y, w, h)
}

// Fragment is one tile of an image larger than a layer. X and Y locate the
// tile inside the image.
type Fragment struct {
	X, Y       int
	Allocation Allocation
}

// Entry records where an image lives in the atlas. Exactly one of
// Allocation (contiguous) or Fragments (fragmented) is meaningful.
//
// An entry must be passed to Remove exactly once.
type Entry struct {
	// Width and Height are the logical image size.
	Width, Height int

	// Allocation holds a contiguous image.
	Allocation Allocation

	// Fragments tile [0,Width)×[0,Height) row-major when the image is
	// larger than a layer. Y counts from the top edge, or from the bottom
	// edge when the atlas was configured with FlipY.
	Fragments []Fragment
}

// Fragmented returns true if the image is split across several allocations.
func (e *Entry) Fragmented() bool {
	return len(e.Fragments) > 0
}

// Size returns the logical image size.
func (e *Entry) Size() (width, height int) {
	return e.Width, e.Height
}

// Allocations returns every allocation held by the entry.
func (e *Entry) Allocations() []Allocation {
	if !e.Fragmented() {
		return []Allocation{e.Allocation}
	}
	out := make([]Allocation, len(e.Fragments))
	for i, f := range e.Fragments {
		out[i] = f.Allocation
	}
	return out
}

// placements returns each allocation together with its position in the
// image.
func (e *Entry) placements() []Fragment {
	if !e.Fragmented() {
		return []Fragment{{Allocation: e.Allocation}}
	}
	return e.Fragments
}
