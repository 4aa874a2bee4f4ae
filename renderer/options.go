package renderer

type Options struct {
	// Frame dims.
	FrameW uint32
	FrameH uint32

	// Trace shadow-style occlusion rays instead of closest hit rays.
	Occlusion bool
}
