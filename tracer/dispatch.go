package tracer

import (
	"fmt"
	"sync"
	"time"

	"github.com/LiangYue1981816/embree/log"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/scene"
	"github.com/LiangYue1981816/embree/types"
	"github.com/pkg/errors"
)

// Mode selects the scene query entry point a tracer uses.
type Mode uint8

// Supported dispatch modes.
const (
	// One Intersect1/Occluded1 call per pixel.
	Single Mode = iota

	// Packets of 4, 8 or 16 pixels.
	Packet

	// One array of rays per row.
	Stream1M

	// One array of ray pointers per row.
	Stream1Mp

	// Each row split into packets of the tracer width (structure of arrays).
	StreamNM

	// One structure of pointers per row.
	StreamNp
)

func (m Mode) String() string {
	switch m {
	case Single:
		return "single"
	case Packet:
		return "packet"
	case Stream1M:
		return "stream-1M"
	case Stream1Mp:
		return "stream-1Mp"
	case StreamNM:
		return "stream-NM"
	case StreamNp:
		return "stream-Np"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode resolves a mode name as returned by Mode.String.
func ParseMode(name string) (Mode, bool) {
	for m := Single; m <= StreamNp; m++ {
		if m.String() == name {
			return m, true
		}
	}
	return 0, false
}

// dispatchTracer traces primary rays through one of the scene query entry
// points. Requests are processed sequentially by a worker goroutine.
type dispatchTracer struct {
	logger log.Logger
	id     string
	mode   Mode
	width  int

	scene  *scene.Scene
	camera *Camera
	frameW uint32
	frameH uint32
	hits   []uint32

	reqChan   chan BlockRequest
	closeChan chan struct{}
	wg        sync.WaitGroup
	setupOnce sync.Once

	statsMu sync.Mutex
	stats   Stats
}

// NewDispatchTracer creates a tracer for the given mode. Width selects the
// packet width for Packet and StreamNM modes and is ignored otherwise.
func NewDispatchTracer(mode Mode, width int) (Tracer, error) {
	switch mode {
	case Packet:
		if width != 4 && width != 8 && width != 16 {
			return nil, errors.Errorf("tracer: unsupported packet width %d", width)
		}
	case StreamNM:
		if width < 1 {
			return nil, errors.Errorf("tracer: invalid stream packet width %d", width)
		}
	default:
		width = 1
	}
	if mode > StreamNp {
		return nil, errors.Errorf("tracer: unsupported mode %s", mode)
	}

	id := mode.String()
	if mode == Packet || mode == StreamNM {
		id = fmt.Sprintf("%s-%d", mode, width)
	}
	return &dispatchTracer{
		logger:    log.New(id),
		id:        id,
		mode:      mode,
		width:     width,
		reqChan:   make(chan BlockRequest),
		closeChan: make(chan struct{}),
	}, nil
}

func (tr *dispatchTracer) Id() string {
	return tr.id
}

func (tr *dispatchTracer) SpeedEstimate() float32 {
	switch tr.mode {
	case Packet:
		return float32(tr.width) * 0.25
	case Single:
		return 1
	}
	return 2
}

func (tr *dispatchTracer) Setup(sc *scene.Scene, camera *Camera, frameW, frameH uint32, hitBuffer []uint32) error {
	if sc == nil || camera == nil {
		return errors.New("tracer: scene and camera must be defined")
	}
	if uint32(len(hitBuffer)) < frameW*frameH {
		return errors.Errorf("tracer: hit buffer holds %d entries; need %d", len(hitBuffer), frameW*frameH)
	}
	tr.scene = sc
	tr.camera = camera
	tr.frameW = frameW
	tr.frameH = frameH
	tr.hits = hitBuffer

	tr.setupOnce.Do(func() {
		tr.wg.Add(1)
		go tr.run()
	})
	return nil
}

func (tr *dispatchTracer) Enqueue(req BlockRequest) {
	tr.reqChan <- req
}

func (tr *dispatchTracer) Stats() *Stats {
	tr.statsMu.Lock()
	defer tr.statsMu.Unlock()
	stats := tr.stats
	return &stats
}

func (tr *dispatchTracer) Close() {
	select {
	case <-tr.closeChan:
		return
	default:
	}
	close(tr.closeChan)
	tr.wg.Wait()
	tr.logger.Debug("shut down")
}

func (tr *dispatchTracer) run() {
	defer tr.wg.Done()
	for {
		select {
		case req := <-tr.reqChan:
			start := time.Now()
			hits, err := tr.traceBlock(req)
			if err != nil {
				req.ErrChan <- errors.Wrapf(err, "tracer %s", tr.id)
				continue
			}

			tr.statsMu.Lock()
			tr.stats = Stats{
				BlockH:    req.BlockH,
				BlockTime: time.Since(start).Nanoseconds(),
				Rays:      int64(req.BlockH) * int64(tr.frameW),
				Hits:      hits,
			}
			tr.statsMu.Unlock()
			req.DoneChan <- req.BlockH
		case <-tr.closeChan:
			return
		}
	}
}

// traceBlock traces the rows of a block and returns the number of hits.
func (tr *dispatchTracer) traceBlock(req BlockRequest) (int64, error) {
	var hits int64
	for y := req.BlockY; y < req.BlockY+req.BlockH && y < tr.frameH; y++ {
		row := tr.hits[y*tr.frameW : (y+1)*tr.frameW]
		if err := tr.traceRow(y, req.Occlusion, row); err != nil {
			return hits, err
		}
		for _, geomID := range row {
			if hitValue(geomID, req.Occlusion) {
				hits++
			}
		}
	}
	return hits, nil
}

// hitValue reports whether a hit buffer entry records an intersection.
// Occlusion queries mark blocked rays by writing ray.Occluded.
func hitValue(geomID uint32, occlusion bool) bool {
	if occlusion {
		return geomID == ray.Occluded
	}
	return geomID != ray.InvalidGeometryID
}

func (tr *dispatchTracer) traceRow(y uint32, occlusion bool, out []uint32) error {
	switch tr.mode {
	case Single:
		for x := range out {
			r := tr.camera.Ray(uint32(x), y, tr.frameW, tr.frameH)
			var err error
			if occlusion {
				err = tr.scene.Occluded1(nil, &r)
			} else {
				err = tr.scene.Intersect1(nil, &r)
			}
			if err != nil {
				return err
			}
			out[x] = r.GeomID
		}
		return nil
	case Packet:
		return tr.tracePackets(y, occlusion, out)
	case Stream1M, Stream1Mp:
		rays := make([]ray.Ray, len(out))
		for x := range rays {
			rays[x] = tr.camera.Ray(uint32(x), y, tr.frameW, tr.frameH)
		}
		var err error
		if tr.mode == Stream1M {
			if occlusion {
				err = tr.scene.Occluded1M(nil, rays, len(rays), 1)
			} else {
				err = tr.scene.Intersect1M(nil, rays, len(rays), 1)
			}
		} else {
			ptrs := make([]*ray.Ray, len(rays))
			for x := range rays {
				ptrs[x] = &rays[x]
			}
			if occlusion {
				err = tr.scene.Occluded1Mp(nil, ptrs, len(ptrs))
			} else {
				err = tr.scene.Intersect1Mp(nil, ptrs, len(ptrs))
			}
		}
		if err != nil {
			return err
		}
		for x := range rays {
			out[x] = rays[x].GeomID
		}
		return nil
	case StreamNM:
		return tr.traceStreamNM(y, occlusion, out)
	case StreamNp:
		p := ray.NewRayN(len(out))
		for x := range out {
			r := tr.camera.Ray(uint32(x), y, tr.frameW, tr.frameH)
			p.Set(x, &r)
		}
		var err error
		if occlusion {
			err = tr.scene.OccludedNp(nil, p, len(out))
		} else {
			err = tr.scene.IntersectNp(nil, p, len(out))
		}
		if err != nil {
			return err
		}
		copy(out, p.GeomID)
		return nil
	}
	return errors.Errorf("unsupported mode %s", tr.mode)
}

func (tr *dispatchTracer) tracePackets(y uint32, occlusion bool, out []uint32) error {
	query := tr.packetQuery(occlusion)
	p := ray.NewRayN(tr.width)
	valid := ray.AlignedMask(tr.width)

	for x0 := 0; x0 < len(out); x0 += tr.width {
		for i := 0; i < tr.width; i++ {
			x := x0 + i
			if x >= len(out) {
				valid[i] = 0
				continue
			}
			valid[i] = -1
			r := tr.camera.Ray(uint32(x), y, tr.frameW, tr.frameH)
			p.Set(i, &r)
		}
		if err := query(valid, nil, p); err != nil {
			return err
		}
		for i := 0; i < tr.width && x0+i < len(out); i++ {
			out[x0+i] = p.GeomID[i]
		}
	}
	return nil
}

func (tr *dispatchTracer) packetQuery(occlusion bool) func([]int32, *ray.Context, *ray.RayN) error {
	switch {
	case tr.width == 4 && occlusion:
		return tr.scene.Occluded4
	case tr.width == 4:
		return tr.scene.Intersect4
	case tr.width == 8 && occlusion:
		return tr.scene.Occluded8
	case tr.width == 8:
		return tr.scene.Intersect8
	case occlusion:
		return tr.scene.Occluded16
	}
	return tr.scene.Intersect16
}

// traceStreamNM splits the row into packets of the tracer width. Lanes past
// the end of the row hold empty rays which the stream skips.
func (tr *dispatchTracer) traceStreamNM(y uint32, occlusion bool, out []uint32) error {
	n := tr.width
	m := (len(out) + n - 1) / n
	packets := make([]ray.RayN, m)
	pad := ray.New(types.Vec3{}, types.Vec3{0, 0, 1}, 1, 0)
	for j := range packets {
		packets[j] = *ray.NewRayN(n)
		for i := 0; i < n; i++ {
			if x := j*n + i; x < len(out) {
				r := tr.camera.Ray(uint32(x), y, tr.frameW, tr.frameH)
				packets[j].Set(i, &r)
			} else {
				packets[j].Set(i, &pad)
			}
		}
	}

	var err error
	if occlusion {
		err = tr.scene.OccludedNM(nil, packets, n, m, 1)
	} else {
		err = tr.scene.IntersectNM(nil, packets, n, m, 1)
	}
	if err != nil {
		return err
	}
	for x := range out {
		out[x] = packets[x/n].GeomID[x%n]
	}
	return nil
}
