package accel

import (
	"github.com/LiangYue1981816/embree/device"
)

// Arena is a growable byte region holding the packed leaves of one BVH.
// Leaves are addressed by offset so growing the arena never invalidates
// them. Capacity is accounted with the owning device.
type Arena struct {
	dev  *device.Device
	data []byte
}

// NewArena creates an empty arena.
func NewArena(dev *device.Device) *Arena {
	return &Arena{dev: dev}
}

// Reserve makes sure that at least size more bytes can be allocated without
// growing.
func (a *Arena) Reserve(size int) error {
	need := len(a.data) + size
	if need <= cap(a.data) {
		return nil
	}
	newCap := 2 * cap(a.data)
	if newCap < need {
		newCap = need
	}
	if a.dev != nil {
		if err := a.dev.ReserveMemory(int64(newCap - cap(a.data))); err != nil {
			return err
		}
	}
	grown := make([]byte, len(a.data), newCap)
	copy(grown, a.data)
	a.data = grown
	return nil
}

// Alloc returns the offset and storage of a new region of size bytes. The
// returned slice stays valid until the next call to Alloc or Reserve.
func (a *Arena) Alloc(size int) (int, []byte, error) {
	if err := a.Reserve(size); err != nil {
		return 0, nil, err
	}
	offset := len(a.data)
	a.data = a.data[:offset+size]
	return offset, a.data[offset : offset+size : offset+size], nil
}

// Bytes returns the region at offset.
func (a *Arena) Bytes(offset, size int) []byte {
	return a.data[offset : offset+size]
}

// Len returns the number of allocated bytes.
func (a *Arena) Len() int {
	return len(a.data)
}

// Release frees the arena storage.
func (a *Arena) Release() {
	if a.dev != nil && cap(a.data) > 0 {
		a.dev.ReleaseMemory(int64(cap(a.data)))
	}
	a.data = nil
}
