package atlas

import (
	"fmt"
	"sort"
)

// Region is a rectangle inside one atlas layer. Regions are created only by
// a layer's [Packer]; X and Y are aligned to the packer alignment and
// Width and Height are the requested size.
type Region struct {
	X, Y          int
	Width, Height int
}

// IsValid returns true if the region has positive dimensions.
func (r Region) IsValid() bool {
	return r.Width > 0 && r.Height > 0
}

// Contains returns true if the point (x, y) is inside the region.
func (r Region) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Overlaps returns true if the two regions share at least one pixel.
func (r Region) Overlaps(o Region) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// String returns a string representation of the region.
func (r Region) String() string {
	return fmt.Sprintf("Region(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// Packer sub-divides one square layer into rectangles and supports freeing
// them again.
//
// The layer is organized in horizontal shelves. Each shelf is a strip of
// fixed height split into spans that are either used or free. Allocation
// picks the shelf whose height wastes the least space, opening a new shelf
// below the last one when no existing shelf is a close fit. Freed spans
// coalesce with free neighbours, adjacent empty shelves merge and trailing
// empty shelves are dropped so their height returns to the free area.
//
// Packer is not safe for concurrent use.
type Packer struct {
	width   int
	height  int
	align   int
	shelves []shelf

	allocs   int
	usedArea int
}

type shelf struct {
	y      int
	height int
	spans  []span // sorted by x, covering [0, width)
}

type span struct {
	x     int
	width int
	used  bool
}

// NewPacker creates a packer for a width×height layer. Every region starts
// on a multiple of align and reserves a footprint rounded up to align, so
// regions never share an align×align block.
func NewPacker(width, height, align int) *Packer {
	if align < 1 {
		align = 1
	}
	return &Packer{
		width:   width,
		height:  height,
		align:   align,
		shelves: make([]shelf, 0, 8),
	}
}

// Allocate reserves a w×h rectangle. Returns false if no free rectangle of
// that size exists.
func (p *Packer) Allocate(w, h int) (Region, bool) {
	if w <= 0 || h <= 0 || w > p.width || h > p.height {
		return Region{}, false
	}
	fw := alignUp(w, p.align)
	fh := alignUp(h, p.align)

	best, bestSpan := -1, -1
	bestWaste := 0
	for i := range p.shelves {
		s := &p.shelves[i]
		if s.height < fh {
			continue
		}
		j := s.findFree(fw)
		if j < 0 {
			continue
		}
		waste := s.height - fh
		if best < 0 || waste < bestWaste {
			best, bestSpan, bestWaste = i, j, waste
			if waste == 0 {
				break
			}
		}
	}

	// A loose fit on an old shelf is worse than a fresh shelf while the
	// layer still has vertical room.
	if best < 0 || bestWaste > fh/2 {
		if i, ok := p.openShelf(fh); ok {
			best, bestSpan = i, 0
		}
	}
	if best < 0 {
		return Region{}, false
	}

	s := &p.shelves[best]
	x := s.take(bestSpan, fw)
	p.allocs++
	p.usedArea += w * h
	return Region{X: x, Y: s.y, Width: w, Height: h}, true
}

// Deallocate frees a region returned by Allocate. Returns false if the
// region is not currently allocated.
func (p *Packer) Deallocate(r Region) bool {
	i := sort.Search(len(p.shelves), func(i int) bool { return p.shelves[i].y >= r.Y })
	if i == len(p.shelves) || p.shelves[i].y != r.Y {
		return false
	}
	s := &p.shelves[i]
	if !s.release(r.X, alignUp(r.Width, p.align)) {
		return false
	}
	p.allocs--
	p.usedArea -= r.Width * r.Height

	if s.isEmpty() {
		p.mergeEmpty(i)
	}
	return true
}

// IsEmpty returns true if no region is allocated.
func (p *Packer) IsEmpty() bool {
	return p.allocs == 0
}

// Allocations returns the number of live regions.
func (p *Packer) Allocations() int {
	return p.allocs
}

// UsedArea returns the total area of live regions.
func (p *Packer) UsedArea() int {
	return p.usedArea
}

// Utilization returns the fraction of the layer covered by live regions.
func (p *Packer) Utilization() float64 {
	if p.width <= 0 || p.height <= 0 {
		return 0
	}
	return float64(p.usedArea) / float64(p.width*p.height)
}

// ShelfCount returns the number of shelves currently in use.
func (p *Packer) ShelfCount() int {
	return len(p.shelves)
}

// Reset frees every region.
func (p *Packer) Reset() {
	p.shelves = p.shelves[:0]
	p.allocs = 0
	p.usedArea = 0
}

func (p *Packer) bottom() int {
	if len(p.shelves) == 0 {
		return 0
	}
	last := p.shelves[len(p.shelves)-1]
	return last.y + last.height
}

func (p *Packer) openShelf(h int) (int, bool) {
	y := p.bottom()
	if y+h > p.height {
		return -1, false
	}
	p.shelves = append(p.shelves, shelf{
		y:      y,
		height: h,
		spans:  []span{{x: 0, width: p.width}},
	})
	return len(p.shelves) - 1, true
}

// mergeEmpty folds the empty shelf i into its empty neighbours and drops
// empty shelves at the bottom of the stack.
func (p *Packer) mergeEmpty(i int) {
	if i+1 < len(p.shelves) && p.shelves[i+1].isEmpty() {
		p.shelves[i].height += p.shelves[i+1].height
		p.shelves = append(p.shelves[:i+1], p.shelves[i+2:]...)
	}
	if i > 0 && p.shelves[i-1].isEmpty() {
		p.shelves[i-1].height += p.shelves[i].height
		p.shelves = append(p.shelves[:i], p.shelves[i+1:]...)
	}
	for n := len(p.shelves); n > 0 && p.shelves[n-1].isEmpty(); n-- {
		p.shelves = p.shelves[:n-1]
	}
}

// findFree returns the index of the first free span at least w wide.
func (s *shelf) findFree(w int) int {
	for j, sp := range s.spans {
		if !sp.used && sp.width >= w {
			return j
		}
	}
	return -1
}

// take marks the first w pixels of span j as used and returns their x.
func (s *shelf) take(j, w int) int {
	sp := s.spans[j]
	if sp.width == w {
		s.spans[j].used = true
		return sp.x
	}
	rest := span{x: sp.x + w, width: sp.width - w}
	s.spans[j] = span{x: sp.x, width: w, used: true}
	s.spans = append(s.spans, span{})
	copy(s.spans[j+2:], s.spans[j+1:])
	s.spans[j+1] = rest
	return sp.x
}

// release frees the used span starting at x with width w.
func (s *shelf) release(x, w int) bool {
	j := sort.Search(len(s.spans), func(j int) bool { return s.spans[j].x >= x })
	if j == len(s.spans) || s.spans[j].x != x || !s.spans[j].used || s.spans[j].width != w {
		return false
	}
	s.spans[j].used = false
	if j+1 < len(s.spans) && !s.spans[j+1].used {
		s.spans[j].width += s.spans[j+1].width
		s.spans = append(s.spans[:j+1], s.spans[j+2:]...)
	}
	if j > 0 && !s.spans[j-1].used {
		s.spans[j-1].width += s.spans[j].width
		s.spans = append(s.spans[:j], s.spans[j+1:]...)
	}
	return true
}

func (s *shelf) isEmpty() bool {
	return len(s.spans) == 1 && !s.spans[0].used
}
