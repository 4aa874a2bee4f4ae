package renderer

// Renderer traces primary rays for a sequence of frames.
type Renderer interface {
	// Trace a frame into the hit buffer.
	Render() error

	// Per pixel results of the last frame. Entries hold the hit geometry
	// id, or ray.Occluded for blocked occlusion rays.
	HitBuffer() []uint32

	// Number of frames rendered so far.
	Frames() int

	// Shutdown renderer and any attached tracer.
	Close()

	// Get statistics for the last frame.
	Stats() FrameStats
}
