package geometry

import (
	"sync"

	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/types"
)

// Base implements the state shared by all geometry kinds. Concrete kinds
// embed it and override the operations they support.
type Base struct {
	mu sync.Mutex

	owner     Owner
	typ       Type
	id        uint32
	flags     Flags
	timeSteps int

	enabled  bool
	deleted  bool
	modified bool
	mask     uint32
	userData interface{}

	buffers map[BufferType]*device.Buffer

	intersectFilter filterSet
	occlusionFilter filterSet
}

func newBase(owner Owner, typ Type, id uint32, flags Flags, timeSteps int) Base {
	return Base{
		owner:     owner,
		typ:       typ,
		id:        id,
		flags:     flags,
		timeSteps: timeSteps,
		enabled:   true,
		modified:  true,
		mask:      ^uint32(0),
		buffers:   make(map[BufferType]*device.Buffer),
	}
}

// addBuffer allocates a device owned buffer.
func (b *Base) addBuffer(t BufferType, format device.Format, numItems int) error {
	var dev *device.Device
	if b.owner != nil {
		dev = b.owner.Device()
	}
	buf, err := device.NewBuffer(dev, t.String(), format, numItems)
	if err != nil {
		return err
	}
	b.buffers[t] = buf
	return nil
}

func (b *Base) buffer(t BufferType) (*device.Buffer, error) {
	buf, ok := b.buffers[t]
	if !ok {
		return nil, device.Errorf(device.InvalidArgument, "unknown buffer type %s for %s geometry", t, b.typ)
	}
	return buf, nil
}

// Buffer returns the buffer of type t or nil if the geometry has none.
func (b *Base) Buffer(t BufferType) *device.Buffer {
	return b.buffers[t]
}

func (b *Base) checkMutable() error {
	if b.owner != nil && b.owner.Frozen() {
		return ErrFrozen
	}
	return nil
}

// setModified flags the geometry and notifies the owning scene.
func (b *Base) setModified() {
	b.modified = true
	if b.owner != nil {
		b.owner.GeometryModified(b.id)
	}
}

// Type returns the geometry kind.
func (b *Base) Type() Type { return b.typ }

// ID returns the geometry ID.
func (b *Base) ID() uint32 { return b.id }

// Flags returns the geometry flags.
func (b *Base) Flags() Flags { return b.flags }

// TimeSteps returns the number of motion blur time steps.
func (b *Base) TimeSteps() int { return b.timeSteps }

// Lock acquires the geometry lock.
func (b *Base) Lock() { b.mu.Lock() }

// Unlock releases the geometry lock.
func (b *Base) Unlock() { b.mu.Unlock() }

func (b *Base) Enabled() bool { return b.enabled }

func (b *Base) Enable() error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	if !b.enabled {
		b.enabled = true
		b.setModified()
	}
	return nil
}

func (b *Base) Disable() error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	if b.enabled {
		b.enabled = false
		b.setModified()
	}
	return nil
}

func (b *Base) Mask() uint32 { return b.mask }

func (b *Base) SetMask(mask uint32) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	b.mask = mask
	b.setModified()
	return nil
}

func (b *Base) UserData() interface{} { return b.userData }

func (b *Base) SetUserData(data interface{}) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	b.userData = data
	return nil
}

// Update flags every buffer as modified.
func (b *Base) Update() error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	for _, buf := range b.buffers {
		buf.SetModified()
	}
	b.setModified()
	return nil
}

// UpdateBuffer flags a single buffer as modified.
func (b *Base) UpdateBuffer(t BufferType) error {
	buf, err := b.buffer(t)
	if err != nil {
		return err
	}
	if err = b.checkMutable(); err != nil {
		return err
	}
	buf.SetModified()
	b.setModified()
	return nil
}

// SetBuffer shares caller memory with the geometry.
func (b *Base) SetBuffer(t BufferType, data []byte, offset, stride, numItems int) error {
	buf, err := b.buffer(t)
	if err != nil {
		return err
	}
	if err = b.checkMutable(); err != nil {
		return err
	}
	if err = buf.Set(data, offset, stride, numItems); err != nil {
		return err
	}
	b.setModified()
	return nil
}

// Map grants write access to a buffer.
func (b *Base) Map(t BufferType) ([]byte, error) {
	buf, err := b.buffer(t)
	if err != nil {
		return nil, err
	}
	if err = b.checkMutable(); err != nil {
		return nil, err
	}
	return buf.Map()
}

// Unmap ends write access to a buffer.
func (b *Base) Unmap(t BufferType) error {
	buf, err := b.buffer(t)
	if err != nil {
		return err
	}
	if err = buf.Unmap(); err != nil {
		return err
	}
	b.setModified()
	return nil
}

// AnyMapped reports whether any buffer is currently mapped.
func (b *Base) AnyMapped() bool {
	for _, buf := range b.buffers {
		if buf.IsMapped() {
			return true
		}
	}
	return false
}

func (b *Base) SetTransform(xfm types.Affine, timeStep int) error {
	return ErrNotSupported
}

func (b *Base) SetTessellationRate(rate float32) error {
	return ErrNotSupported
}

func (b *Base) SetBoundsFunc(fn BoundsFunc) error {
	return ErrNotSupported
}

func (b *Base) SetDisplacementFunc(fn DisplacementFunc, bounds *ray.Bounds) error {
	return ErrNotSupported
}

func (b *Base) SetIntersectionFilter(fn FilterFunc) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	b.intersectFilter.fn1 = fn
	b.setModified()
	return nil
}

func (b *Base) SetIntersectionFilterN(width int, fn FilterFuncN) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	slot, err := widthSlot(width)
	if err != nil {
		return err
	}
	b.intersectFilter.fnN[slot] = fn
	b.setModified()
	return nil
}

func (b *Base) SetOcclusionFilter(fn FilterFunc) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	b.occlusionFilter.fn1 = fn
	b.setModified()
	return nil
}

func (b *Base) SetOcclusionFilterN(width int, fn FilterFuncN) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	slot, err := widthSlot(width)
	if err != nil {
		return err
	}
	b.occlusionFilter.fnN[slot] = fn
	b.setModified()
	return nil
}

// HasFilters reports whether any intersection or occlusion filter is set.
func (b *Base) HasFilters() bool {
	return !b.intersectFilter.empty() || !b.occlusionFilter.empty()
}

// FilterIntersection runs the intersection filters for the candidate hit
// stored in r.
func (b *Base) FilterIntersection(ctx *ray.Context, r *ray.Ray) bool {
	if b.intersectFilter.empty() {
		return true
	}
	return b.intersectFilter.run(ctx, b.userData, r)
}

// FilterOcclusion runs the occlusion filters for the candidate hit stored
// in r.
func (b *Base) FilterOcclusion(ctx *ray.Context, r *ray.Ray) bool {
	if b.occlusionFilter.empty() {
		return true
	}
	return b.occlusionFilter.run(ctx, b.userData, r)
}

func (b *Base) Modified() bool { return b.modified }

// Committed resets the modification flags of the geometry and its buffers.
func (b *Base) Committed() {
	b.modified = false
	for _, buf := range b.buffers {
		buf.ClearModified()
	}
}

func (b *Base) Deleted() bool { return b.deleted }

// Erase marks the geometry as deleted.
func (b *Base) Erase() {
	b.deleted = true
	b.enabled = false
}

// Release frees device owned buffer storage. It is called once no instance
// or group references the geometry anymore.
func (b *Base) Release() {
	for _, buf := range b.buffers {
		buf.Release()
	}
}

// verifyBuffers checks that every buffer holds storage for its elements.
func (b *Base) verifyBuffers() error {
	for t, buf := range b.buffers {
		if !buf.Valid() {
			return device.Errorf(device.InvalidOperation, "%s geometry %d: %s buffer is incomplete", b.typ, b.id, t)
		}
	}
	return nil
}

// Filterer is implemented by every geometry that embeds Base.
type Filterer interface {
	FilterIntersection(ctx *ray.Context, r *ray.Ray) bool
	FilterOcclusion(ctx *ray.Context, r *ray.Ray) bool
}
