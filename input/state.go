package input

import "sync/atomic"

// DeviceState is the per-device bookkeeping of one poll cycle: the ordered
// sources, one direction set per hat and the change-sets of the last poll.
//
// Reset, MarkChanged and SetDPad are only called by the owning device while it
// holds its poll lock. DPad and Sources may be read concurrently.
type DeviceState struct {
	sources      []*Source
	byOffset     map[int]*Source
	dpads        []atomic.Uint32
	changed      []*Source
	changedDPads []int
}

func NewDeviceState(sources []*Source, dpadCount int) *DeviceState {
	s := &DeviceState{
		sources:  sources,
		byOffset: make(map[int]*Source, len(sources)),
		dpads:    make([]atomic.Uint32, dpadCount),
	}
	for _, src := range sources {
		s.byOffset[src.Offset()] = src
	}
	return s
}

func (s *DeviceState) Sources() []*Source {
	out := make([]*Source, len(s.sources))
	copy(out, s.sources)
	return out
}

// Source returns the source at offset, or nil.
func (s *DeviceState) Source(offset int) *Source {
	return s.byOffset[offset]
}

func (s *DeviceState) DPadCount() int { return len(s.dpads) }

func (s *DeviceState) DPad(i int) DPadDirection {
	if i < 0 || i >= len(s.dpads) {
		return DPadNone
	}
	return DPadDirection(s.dpads[i].Load())
}

// Reset clears the change-sets at the start of a poll.
func (s *DeviceState) Reset() {
	s.changed = s.changed[:0]
	s.changedDPads = s.changedDPads[:0]
}

func (s *DeviceState) MarkChanged(src *Source) {
	s.changed = append(s.changed, src)
}

// SetDPad stores the direction set of hat i and records it as changed when it
// differs from the previous one.
func (s *DeviceState) SetDPad(i int, d DPadDirection) bool {
	if i < 0 || i >= len(s.dpads) {
		return false
	}
	if DPadDirection(s.dpads[i].Swap(uint32(d))) == d {
		return false
	}
	s.changedDPads = append(s.changedDPads, i)
	return true
}

// ApplyDPad stores the direction set of hat i and refreshes its four
// direction sources, marking the ones that changed.
func (s *DeviceState) ApplyDPad(i int, d DPadDirection) {
	if !s.SetDPad(i, d) {
		return
	}
	for _, dir := range DPadDirections {
		src := s.byOffset[DPadOffset(i, dir)]
		if src == nil {
			continue
		}
		v := 0.0
		if d.Has(dir) {
			v = 1
		}
		if src.Refresh(v) {
			s.MarkChanged(src)
		}
	}
}

func (s *DeviceState) HasChanges() bool {
	return len(s.changed) > 0 || len(s.changedDPads) > 0
}

// Changes returns a copy of the sources changed in the last poll.
func (s *DeviceState) Changes() []*Source {
	out := make([]*Source, len(s.changed))
	copy(out, s.changed)
	return out
}

// ChangedDPads returns a copy of the hat indices changed in the last poll.
func (s *DeviceState) ChangedDPads() []int {
	out := make([]int, len(s.changedDPads))
	copy(out, s.changedDPads)
	return out
}
