package scene

import (
	"strings"
)

// Flags describe the expected scene dynamics and query distribution.
type Flags uint32

// Supported scene flags.
const (
	Static      Flags = 0
	Dynamic     Flags = 1 << 0
	Compact     Flags = 1 << 8
	Coherent    Flags = 1 << 9
	Incoherent  Flags = 1 << 10
	HighQuality Flags = 1 << 11
	Robust      Flags = 1 << 16
)

func (f Flags) String() string {
	var names []string
	if f&Dynamic != 0 {
		names = append(names, "dynamic")
	} else {
		names = append(names, "static")
	}
	for _, flag := range []struct {
		f    Flags
		name string
	}{
		{Compact, "compact"},
		{Coherent, "coherent"},
		{Incoherent, "incoherent"},
		{HighQuality, "high-quality"},
		{Robust, "robust"},
	} {
		if f&flag.f != 0 {
			names = append(names, flag.name)
		}
	}
	return strings.Join(names, "|")
}

// AlgorithmFlags select the query entry points a scene must support.
type AlgorithmFlags uint32

// Supported algorithm flags.
const (
	Intersect1      AlgorithmFlags = 1 << 0
	Intersect4      AlgorithmFlags = 1 << 1
	Intersect8      AlgorithmFlags = 1 << 2
	Intersect16     AlgorithmFlags = 1 << 3
	Interpolate     AlgorithmFlags = 1 << 4
	IntersectStream AlgorithmFlags = 1 << 5
)

// packetFlag returns the algorithm flag enabling packets of the given width.
func packetFlag(width int) AlgorithmFlags {
	switch width {
	case 1:
		return Intersect1
	case 4:
		return Intersect4
	case 8:
		return Intersect8
	case 16:
		return Intersect16
	}
	return 0
}

// State is the commit state of a scene.
type State uint32

// Supported scene states.
const (
	Modified State = iota
	Building
	Committed
)

func (s State) String() string {
	switch s {
	case Modified:
		return "modified"
	case Building:
		return "building"
	}
	return "committed"
}
