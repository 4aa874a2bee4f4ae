package tracer

import "github.com/LiangYue1981816/embree/scene"

// A unit of work that is processed by a tracer.
type BlockRequest struct {
	// Block start row and height.
	BlockY uint32
	BlockH uint32

	// Trace shadow style occlusion rays instead of closest hit rays.
	Occlusion bool

	// A channel to signal on block completion with the number of completed rows.
	DoneChan chan<- uint32

	// A channel to signal if an error occurs.
	ErrChan chan<- error
}

// Tracer statistics.
type Stats struct {
	// The traced block height
	BlockH uint32

	// The time for tracing this block (in nanoseconds)
	BlockTime int64

	// Rays traced and rays that hit something in the last block.
	Rays int64
	Hits int64
}

type Tracer interface {
	// Get tracer id.
	Id() string

	// Shutdown the tracer.
	Close()

	// Get the tracer's throughput estimate relative to tracing single
	// rays.
	SpeedEstimate() float32

	// Attach the tracer to a committed scene. Results are written to
	// hitBuffer which holds one geometry ID per pixel.
	Setup(sc *scene.Scene, camera *Camera, frameW, frameH uint32, hitBuffer []uint32) error

	// Enqueue block request.
	Enqueue(BlockRequest)

	// Retrieve last block statistics.
	Stats() *Stats
}
