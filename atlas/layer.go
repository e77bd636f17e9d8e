package atlas

type layerState uint8

const (
	layerEmpty layerState = iota
	layerBusy
	layerFull
)

func (s layerState) String() string {
	switch s {
	case layerBusy:
		return "busy"
	case layerFull:
		return "full"
	default:
		return "empty"
	}
}

// layer is one slice of the texture array. packer is non-nil only while
// the layer is busy.
type layer struct {
	state  layerState
	packer *Packer
}

func (l *layer) isEmpty() bool {
	return l.state == layerEmpty
}

func (l *layer) allocations() int {
	switch l.state {
	case layerFull:
		return 1
	case layerBusy:
		return l.packer.Allocations()
	default:
		return 0
	}
}

func (l *layer) clear() {
	l.state = layerEmpty
	l.packer = nil
}
