package renderer

import (
	"time"

	"github.com/LiangYue1981816/embree/log"
	"github.com/LiangYue1981816/embree/scene"
	"github.com/LiangYue1981816/embree/tracer"
	"github.com/pkg/errors"
)

// defaultRenderer splits each frame into blocks and traces them in parallel
// using a pool of tracers.
type defaultRenderer struct {
	logger log.Logger

	scene     *scene.Scene
	camera    *tracer.Camera
	scheduler tracer.BlockScheduler
	tracers   []tracer.Tracer
	options   Options

	// Per pixel hit results shared by all tracers.
	hitBuffer []uint32

	blockAssignments []uint32
	stats            FrameStats
	frames           int

	interruptChan chan struct{}
}

// NewDefault creates a renderer that traces sc through camera using the
// supplied tracers. The scene must already be committed.
func NewDefault(sc *scene.Scene, camera *tracer.Camera, scheduler tracer.BlockScheduler, tracers []tracer.Tracer, opts Options) (Renderer, error) {
	if sc == nil {
		return nil, ErrSceneNotDefined
	}
	if camera == nil {
		return nil, ErrCameraNotDefined
	}
	if len(tracers) == 0 {
		return nil, ErrNoTracers
	}
	if opts.FrameW == 0 || opts.FrameH == 0 {
		return nil, ErrInvalidFrame
	}
	if scheduler == nil {
		scheduler = tracer.NaiveScheduler()
	}

	r := &defaultRenderer{
		logger:        log.New("renderer"),
		scene:         sc,
		camera:        camera,
		scheduler:     scheduler,
		tracers:       tracers,
		options:       opts,
		hitBuffer:     make([]uint32, opts.FrameW*opts.FrameH),
		interruptChan: make(chan struct{}),
	}

	camera.SetupProjection(float32(opts.FrameW) / float32(opts.FrameH))
	for _, tr := range tracers {
		if err := tr.Setup(sc, camera, opts.FrameW, opts.FrameH, r.hitBuffer); err != nil {
			r.Close()
			return nil, err
		}
	}

	r.stats.Tracers = make([]TracerStat, len(tracers))
	return r, nil
}

func (r *defaultRenderer) HitBuffer() []uint32 {
	return r.hitBuffer
}

func (r *defaultRenderer) Frames() int {
	return r.frames
}

func (r *defaultRenderer) Render() error {
	start := time.Now()
	r.blockAssignments = r.scheduler.Schedule(r.tracers, r.options.FrameH)

	doneChan := make(chan uint32, len(r.tracers))
	errChan := make(chan error, len(r.tracers))

	var blockY uint32
	var pending int
	for idx, tr := range r.tracers {
		blockH := r.blockAssignments[idx]
		if blockH == 0 {
			continue
		}
		pending++
		go tr.Enqueue(tracer.BlockRequest{
			BlockY:    blockY,
			BlockH:    blockH,
			Occlusion: r.options.Occlusion,
			DoneChan:  doneChan,
			ErrChan:   errChan,
		})
		blockY += blockH
	}

	var pendingRows = r.options.FrameH
	for ; pending > 0; pending-- {
		select {
		case rows := <-doneChan:
			pendingRows -= rows
		case err := <-errChan:
			return err
		case <-r.interruptChan:
			return ErrInterrupted
		}
	}
	if pendingRows != 0 {
		return errors.Errorf("renderer: %d rows were not traced", pendingRows)
	}

	r.stats.RenderTime = time.Since(start)
	r.collectStats()
	r.frames++
	r.logger.Debugf("frame %d traced in %s", r.frames, r.stats.RenderTime)
	return nil
}

func (r *defaultRenderer) collectStats() {
	var rays int64
	for idx, tr := range r.tracers {
		stat := &r.stats.Tracers[idx]
		stat.Id = tr.Id()
		stat.IsPrimary = idx == 0
		stat.BlockH = r.blockAssignments[idx]
		stat.FramePercent = 100.0 * float32(stat.BlockH) / float32(r.options.FrameH)
		if stat.BlockH == 0 {
			stat.RenderTime, stat.Rays, stat.Hits = 0, 0, 0
			continue
		}
		trStats := tr.Stats()
		stat.RenderTime = time.Duration(trStats.BlockTime)
		stat.Rays = trStats.Rays
		stat.Hits = trStats.Hits
		rays += trStats.Rays
	}

	r.stats.RaysPerSecond = 0
	if secs := r.stats.RenderTime.Seconds(); secs > 0 {
		r.stats.RaysPerSecond = float64(rays) / secs
	}
}

func (r *defaultRenderer) Close() {
	select {
	case <-r.interruptChan:
		return
	default:
	}
	close(r.interruptChan)
	for _, tr := range r.tracers {
		tr.Close()
	}
}

func (r *defaultRenderer) Stats() FrameStats {
	return r.stats
}
