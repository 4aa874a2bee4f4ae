package ray

import "unsafe"

// PacketAlignment returns the required storage alignment for packets of the
// given width.
func PacketAlignment(width int) uintptr {
	switch width {
	case 4:
		return 16
	case 8:
		return 32
	case 16:
		return 64
	}
	return 4
}

// Aligned reports whether the storage behind p starts on an align byte
// boundary.
func Aligned(p unsafe.Pointer, align uintptr) bool {
	return uintptr(p)%align == 0
}

// PacketAligned reports whether the mask and every field of a packet are
// aligned for the given width.
func PacketAligned(valid []int32, p *RayN, width int) bool {
	align := PacketAlignment(width)
	if len(valid) > 0 && !Aligned(unsafe.Pointer(unsafe.SliceData(valid)), align) {
		return false
	}
	for _, f := range [][]float32{p.OrgX, p.OrgY, p.OrgZ, p.TNear, p.DirX, p.DirY, p.DirZ, p.Time, p.TFar, p.NgX, p.NgY, p.NgZ, p.U, p.V} {
		if !Aligned(unsafe.Pointer(unsafe.SliceData(f)), align) {
			return false
		}
	}
	for _, f := range [][]uint32{p.Mask, p.GeomID, p.PrimID, p.InstID} {
		if !Aligned(unsafe.Pointer(unsafe.SliceData(f)), align) {
			return false
		}
	}
	return true
}

// AlignedMask returns a valid mask of width lanes whose storage satisfies
// PacketAlignment(width).
func AlignedMask(width int) []int32 {
	buf := make([]int32, width+packetAlign/4)
	off := alignOffset(unsafe.Pointer(unsafe.SliceData(buf))) / 4
	valid := buf[off : off+width : off+width]
	for i := range valid {
		valid[i] = -1
	}
	return valid
}
