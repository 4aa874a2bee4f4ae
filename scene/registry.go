package scene

import (
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/geometry"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/samber/lo"
)

// registry maps geometry IDs to geometries. Deleted geometries that are
// still referenced by an instance or a group keep their slot (and ID) until
// the last reference is dropped. All methods expect the scene lock to be
// held.
type registry struct {
	slots []geometry.Geometry
	refs  []int

	// Released IDs; the most recently released ID is reused first.
	free []uint32

	// Geometries whose storage is released after the next successful
	// commit.
	released []geometry.Geometry
}

// nextID returns the ID for a new geometry. If requested is not
// ray.InvalidGeometryID that exact ID is used.
func (r *registry) nextID(requested uint32) (uint32, error) {
	if requested == ray.InvalidGeometryID {
		if n := len(r.free); n > 0 {
			return r.free[n-1], nil
		}
		return uint32(len(r.slots)), nil
	}
	if int(requested) < len(r.slots) && r.slots[requested] != nil {
		return 0, device.Errorf(device.InvalidOperation, "geometry ID %d is already in use", requested)
	}
	return requested, nil
}

// put stores g in the slot for its ID, growing the table as needed.
func (r *registry) put(g geometry.Geometry) {
	id := g.ID()
	for uint32(len(r.slots)) <= id {
		if next := uint32(len(r.slots)); next < id {
			r.free = append(r.free, next)
		}
		r.slots = append(r.slots, nil)
		r.refs = append(r.refs, 0)
	}
	r.free = lo.Without(r.free, id)
	r.slots[id] = g
	r.refs[id] = 0
}

// get returns the live geometry with the given ID.
func (r *registry) get(id uint32) (geometry.Geometry, error) {
	if int(id) >= len(r.slots) || r.slots[id] == nil || r.slots[id].Deleted() {
		return nil, device.Errorf(device.InvalidArgument, "invalid geometry ID %d", id)
	}
	return r.slots[id], nil
}

// remove marks g deleted. Its slot is freed right away unless something
// still references it.
func (r *registry) remove(g geometry.Geometry) {
	g.Lock()
	g.Erase()
	g.Unlock()
	if r.refs[g.ID()] == 0 {
		r.recycle(g.ID())
	}
}

func (r *registry) addRef(id uint32) {
	r.refs[id]++
}

func (r *registry) dropRef(id uint32) {
	r.refs[id]--
	if r.refs[id] == 0 && r.slots[id] != nil && r.slots[id].Deleted() {
		r.recycle(id)
	}
}

func (r *registry) recycle(id uint32) {
	r.released = append(r.released, r.slots[id])
	r.slots[id] = nil
	r.free = append(r.free, id)
}

// snapshot returns a copy of the slot table for use by a build.
func (r *registry) snapshot() []geometry.Geometry {
	return append([]geometry.Geometry(nil), r.slots...)
}

// live returns every geometry that has not been deleted.
func (r *registry) live() []geometry.Geometry {
	return lo.Filter(r.slots, func(g geometry.Geometry, _ int) bool {
		return g != nil && !g.Deleted()
	})
}

// drainReleased returns and forgets the geometries waiting for release.
func (r *registry) drainReleased() []geometry.Geometry {
	out := r.released
	r.released = nil
	return out
}
