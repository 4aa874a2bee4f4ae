package device

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// ISA identifies the vector instruction set the packet kernels target.
type ISA uint8

// Supported instruction sets, ordered by packet width.
const (
	ISAScalar ISA = iota
	ISASSE2
	ISAAVX
	ISAAVX512
)

func (isa ISA) String() string {
	switch isa {
	case ISAScalar:
		return "scalar"
	case ISASSE2:
		return "sse2"
	case ISAAVX:
		return "avx"
	case ISAAVX512:
		return "avx512"
	}
	return fmt.Sprintf("isa(%d)", uint8(isa))
}

// ParseISA parses an isa name as used in device configuration strings.
func ParseISA(name string) (ISA, bool) {
	switch strings.ToLower(name) {
	case "scalar":
		return ISAScalar, true
	case "sse", "sse2", "neon":
		return ISASSE2, true
	case "avx", "avx2":
		return ISAAVX, true
	case "avx512", "avx512knl", "avx512skx":
		return ISAAVX512, true
	}
	return ISAScalar, false
}

// DetectISA returns the widest instruction set supported by the host.
func DetectISA() ISA {
	switch runtime.GOARCH {
	case "amd64", "386":
		switch {
		case cpu.X86.HasAVX512F:
			return ISAAVX512
		case cpu.X86.HasAVX:
			return ISAAVX
		case cpu.X86.HasSSE2:
			return ISASSE2
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			return ISASSE2
		}
	}
	return ISAScalar
}

// PacketWidths returns the packet widths compiled in for this isa. Width 1
// is always available.
func (isa ISA) PacketWidths() []int {
	switch isa {
	case ISAAVX512:
		return []int{1, 4, 8, 16}
	case ISAAVX:
		return []int{1, 4, 8}
	case ISASSE2:
		return []int{1, 4}
	}
	return []int{1}
}

// NativeWidth returns the widest packet the isa handles natively; ray
// streams are regrouped into packets of this width.
func (isa ISA) NativeWidth() int {
	widths := isa.PacketWidths()
	return widths[len(widths)-1]
}

// Supports reports whether packets of the given width are available.
func (isa ISA) Supports(width int) bool {
	for _, w := range isa.PacketWidths() {
		if w == width {
			return true
		}
	}
	return false
}
