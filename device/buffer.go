package device

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"sync"
	"unsafe"

	"github.com/LiangYue1981816/embree/types"
)

// Format describes the element type stored in a buffer.
type Format uint8

// Supported buffer formats.
const (
	FormatUint Format = iota
	FormatUint2
	FormatUint3
	FormatUint4
	FormatFloat
	FormatFloat2
	FormatFloat3
	FormatFloat4
)

// Size returns the element size in bytes.
func (f Format) Size() int {
	switch f {
	case FormatUint, FormatFloat:
		return 4
	case FormatUint2, FormatFloat2:
		return 8
	case FormatUint3, FormatFloat3:
		return 12
	}
	return 16
}

// Components returns the number of 32-bit components per element.
func (f Format) Components() int {
	return f.Size() / 4
}

func (f Format) String() string {
	switch f {
	case FormatUint:
		return "uint"
	case FormatUint2:
		return "uint2"
	case FormatUint3:
		return "uint3"
	case FormatUint4:
		return "uint4"
	case FormatFloat:
		return "float"
	case FormatFloat2:
		return "float2"
	case FormatFloat3:
		return "float3"
	}
	return "float4"
}

// Buffer is a typed, strided view over either device owned memory or memory
// shared by the caller.
type Buffer struct {
	mu sync.Mutex

	// Associated Device; used for memory accounting of owned storage.
	device *Device

	// A name for identifying the buffer.
	name string

	format   Format
	data     []byte
	offset   int
	stride   int
	numItems int

	// Set if the storage was allocated by the device.
	owned bool

	mapped   bool
	modified bool
}

// NewBuffer allocates a device owned buffer for numItems elements.
func NewBuffer(d *Device, name string, format Format, numItems int) (*Buffer, error) {
	b := &Buffer{
		device:   d,
		name:     name,
		format:   format,
		stride:   format.Size(),
		numItems: numItems,
		modified: true,
	}
	if err := b.allocate(numItems); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Buffer) allocate(numItems int) error {
	size := numItems * b.format.Size()
	if b.device != nil {
		if err := b.device.ReserveMemory(int64(size)); err != nil {
			return err
		}
	}
	b.data = make([]byte, size)
	b.owned = true
	b.offset = 0
	b.stride = b.format.Size()
	b.numItems = numItems
	return nil
}

// Release frees device owned storage.
func (b *Buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseLocked()
}

func (b *Buffer) releaseLocked() {
	if b.owned && b.device != nil {
		b.device.ReleaseMemory(int64(len(b.data)))
	}
	b.data = nil
	b.owned = false
}

// Name returns the buffer name.
func (b *Buffer) Name() string {
	return b.name
}

// Format returns the element format.
func (b *Buffer) Format() Format {
	return b.format
}

// Len returns the number of elements.
func (b *Buffer) Len() int {
	return b.numItems
}

// Stride returns the byte distance between consecutive elements.
func (b *Buffer) Stride() int {
	return b.stride
}

// IsShared reports whether the buffer points to caller owned memory.
func (b *Buffer) IsShared() bool {
	return b.data != nil && !b.owned
}

// IsMapped reports whether the buffer is currently mapped.
func (b *Buffer) IsMapped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mapped
}

// Modified reports whether the buffer changed since ClearModified.
func (b *Buffer) Modified() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modified
}

// SetModified flags the contents as changed.
func (b *Buffer) SetModified() {
	b.mu.Lock()
	b.modified = true
	b.mu.Unlock()
}

// ClearModified resets the modification flag after a commit.
func (b *Buffer) ClearModified() {
	b.mu.Lock()
	b.modified = false
	b.mu.Unlock()
}

// Set points the buffer to caller owned memory. The element count stays
// unchanged unless numItems > 0.
func (b *Buffer) Set(data []byte, offset, stride, numItems int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mapped {
		return Errorf(InvalidOperation, "buffer %s is mapped", b.name)
	}
	if offset < 0 || offset%4 != 0 {
		return Errorf(InvalidOperation, "buffer %s: offset %d must be a non-negative multiple of 4", b.name, offset)
	}
	if stride%4 != 0 || stride < b.format.Size() {
		return Errorf(InvalidOperation, "buffer %s: stride %d must be a multiple of 4 and at least %d", b.name, stride, b.format.Size())
	}
	maxStride := DefaultMaxStride
	if b.device != nil {
		maxStride = b.device.Options().MaxStride
	}
	if stride >= maxStride {
		return Errorf(InvalidArgument, "buffer %s: stride %d exceeds limit %d", b.name, stride, maxStride)
	}
	if numItems <= 0 {
		numItems = b.numItems
	}
	if numItems > 0 {
		if need := offset + (numItems-1)*stride + b.format.Size(); need > len(data) {
			return Errorf(InvalidArgument, "buffer %s: %d bytes required for %d items; got %d", b.name, need, numItems, len(data))
		}
	}

	b.releaseLocked()
	b.data = data
	b.offset = offset
	b.stride = stride
	b.numItems = numItems
	b.modified = true
	return nil
}

// SetSlice shares the contents of a slice of fixed size values (e.g.
// []float32, []types.Vec4 or a slice of user structs). The behavior of this
// method is undefined if the slice elements contain pointers.
func (b *Buffer) SetSlice(data interface{}, offset, stride, numItems int) error {
	return b.Set(sliceBytes(data), offset, stride, numItems)
}

// Map grants write access to the raw storage. Only one caller may map a
// buffer at a time.
func (b *Buffer) Map() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mapped {
		return nil, Errorf(InvalidOperation, "buffer %s already mapped", b.name)
	}
	if b.data == nil {
		if err := b.allocate(b.numItems); err != nil {
			return nil, err
		}
	}
	b.mapped = true
	return b.data[b.offset:], nil
}

// Unmap ends a Map session and flags the contents as modified.
func (b *Buffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.mapped {
		return Errorf(InvalidOperation, "buffer %s is not mapped", b.name)
	}
	b.mapped = false
	b.modified = true
	return nil
}

// Uint returns component c of element i.
func (b *Buffer) Uint(i, c int) uint32 {
	pos := b.offset + i*b.stride + c*4
	return binary.LittleEndian.Uint32(b.data[pos : pos+4])
}

// Float returns component c of element i.
func (b *Buffer) Float(i, c int) float32 {
	return math.Float32frombits(b.Uint(i, c))
}

// Vec3 returns the first three float components of element i.
func (b *Buffer) Vec3(i int) types.Vec3 {
	return types.Vec3{b.Float(i, 0), b.Float(i, 1), b.Float(i, 2)}
}

// Vec4 returns element i as a 4 component vector. Elements with fewer than
// four components are zero extended.
func (b *Buffer) Vec4(i int) types.Vec4 {
	var out types.Vec4
	for c := 0; c < b.format.Components() && c < 4; c++ {
		out[c] = b.Float(i, c)
	}
	return out
}

// PutFloats writes the float components of element i.
func (b *Buffer) PutFloats(i int, values ...float32) {
	for c, v := range values {
		pos := b.offset + i*b.stride + c*4
		binary.LittleEndian.PutUint32(b.data[pos:pos+4], math.Float32bits(v))
	}
}

// PutUints writes the integer components of element i.
func (b *Buffer) PutUints(i int, values ...uint32) {
	for c, v := range values {
		pos := b.offset + i*b.stride + c*4
		binary.LittleEndian.PutUint32(b.data[pos:pos+4], v)
	}
}

// Valid reports whether the buffer holds storage for all of its elements.
func (b *Buffer) Valid() bool {
	if b.numItems == 0 {
		return true
	}
	return b.data != nil && b.offset+(b.numItems-1)*b.stride+b.format.Size() <= len(b.data)
}

// Implements Stringer.
func (b *Buffer) String() string {
	return fmt.Sprintf("%s (%s x %d, stride %d, shared %t)", b.name, b.format, b.numItems, b.stride, b.IsShared())
}

// Given an interface{} containing a slice return a byte view of its data.
func sliceBytes(data interface{}) []byte {
	reflVal := reflect.ValueOf(data)

	if reflVal.Kind() != reflect.Slice {
		panic("sliceBytes: this function only supports slices")
	}

	sliceElemCount := reflVal.Len()
	if sliceElemCount == 0 {
		return nil
	}

	size := sliceElemCount * int(reflVal.Type().Elem().Size())
	return unsafe.Slice((*byte)(unsafe.Pointer(reflVal.Index(0).Addr().Pointer())), size)
}
