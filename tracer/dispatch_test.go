package tracer

import (
	"testing"

	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/geometry"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/scene"
	"github.com/LiangYue1981816/embree/types"
)

const (
	testFrameW = 13
	testFrameH = 9
)

// setupScene places a unit quad at z = 0 that covers the middle of the
// frame of a camera looking down +z.
func setupScene(t *testing.T) (*device.Device, *scene.Scene, *Camera) {
	dev, err := device.New("")
	if err != nil {
		t.Fatal(err)
	}
	sc, err := scene.New(dev, scene.Static, 0)
	if err != nil {
		t.Fatal(err)
	}
	id, err := sc.NewQuadMesh(geometry.Static, 1, 4, 1, ray.InvalidGeometryID)
	if err != nil {
		t.Fatal(err)
	}
	g, _ := sc.Geometry(id)
	mesh := g.(*geometry.QuadMesh)
	if _, err = sc.Map(id, geometry.VertexBuffer0); err != nil {
		t.Fatal(err)
	}
	for i, v := range []types.Vec3{{-1, -1, 0}, {1, -1, 0}, {1, 1, 0}, {-1, 1, 0}} {
		mesh.Buffer(geometry.VertexBuffer0).PutFloats(i, v[0], v[1], v[2])
	}
	if err = sc.Unmap(id, geometry.VertexBuffer0); err != nil {
		t.Fatal(err)
	}
	if _, err = sc.Map(id, geometry.IndexBuffer); err != nil {
		t.Fatal(err)
	}
	mesh.Buffer(geometry.IndexBuffer).PutUints(0, 0, 1, 2, 3)
	if err = sc.Unmap(id, geometry.IndexBuffer); err != nil {
		t.Fatal(err)
	}
	if err = sc.Commit(); err != nil {
		t.Fatal(err)
	}

	cam := NewCamera(45)
	cam.Frame(types.BBox{Lower: types.Vec3{-2, -2, 0}, Upper: types.Vec3{2, 2, 0}})
	cam.SetupProjection(float32(testFrameW) / float32(testFrameH))
	return dev, sc, cam
}

func traceFrame(t *testing.T, tr Tracer, sc *scene.Scene, cam *Camera, occlusion bool) []uint32 {
	hits := make([]uint32, testFrameW*testFrameH)
	if err := tr.Setup(sc, cam, testFrameW, testFrameH, hits); err != nil {
		t.Fatal(err)
	}

	doneChan := make(chan uint32, 1)
	errChan := make(chan error, 1)
	tr.Enqueue(BlockRequest{BlockY: 0, BlockH: testFrameH, Occlusion: occlusion, DoneChan: doneChan, ErrChan: errChan})
	select {
	case rows := <-doneChan:
		if rows != testFrameH {
			t.Fatalf("[%s] expected %d completed rows; got %d", tr.Id(), testFrameH, rows)
		}
	case err := <-errChan:
		t.Fatalf("[%s] trace failed: %v", tr.Id(), err)
	}
	return hits
}

func TestDispatchModesAgree(t *testing.T) {
	dev, sc, cam := setupScene(t)

	ref, err := NewDispatchTracer(Single, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer ref.Close()
	expHits := traceFrame(t, ref, sc, cam, false)
	expOccluded := traceFrame(t, ref, sc, cam, true)

	var numHits int
	for i, geomID := range expHits {
		if geomID != ray.InvalidGeometryID {
			numHits++
			if expOccluded[i] != ray.Occluded {
				t.Fatalf("expected pixel %d to be occluded", i)
			}
		}
	}
	if numHits == 0 || numHits == len(expHits) {
		t.Fatalf("expected the quad to cover part of the frame; got %d hits", numHits)
	}
	if ref.Stats().Rays != testFrameW*testFrameH || ref.Stats().Hits != int64(numHits) {
		t.Fatalf("unexpected tracer stats %+v", ref.Stats())
	}

	type spec struct {
		mode  Mode
		width int
	}
	specs := []spec{
		{Stream1M, 0},
		{Stream1Mp, 0},
		{StreamNM, 4},
		{StreamNM, 5},
		{StreamNp, 0},
	}
	for _, w := range []int{4, 8, 16} {
		if dev.ISA().Supports(w) {
			specs = append(specs, spec{Packet, w})
		}
	}

	for _, s := range specs {
		tr, err := NewDispatchTracer(s.mode, s.width)
		if err != nil {
			t.Fatal(err)
		}
		hits := traceFrame(t, tr, sc, cam, false)
		occluded := traceFrame(t, tr, sc, cam, true)
		tr.Close()

		for i := range hits {
			if hits[i] != expHits[i] {
				t.Fatalf("[%s] pixel %d: expected geometry %d; got %d", tr.Id(), i, expHits[i], hits[i])
			}
			if occluded[i] != expOccluded[i] {
				t.Fatalf("[%s] pixel %d: expected occlusion result %d; got %d", tr.Id(), i, expOccluded[i], occluded[i])
			}
		}
	}
}

func TestDispatchTracerErrors(t *testing.T) {
	if _, err := NewDispatchTracer(Packet, 3); err == nil {
		t.Fatal("expected packet width 3 to be rejected")
	}
	if _, err := NewDispatchTracer(Mode(42), 0); err == nil {
		t.Fatal("expected unknown mode to be rejected")
	}

	_, sc, cam := setupScene(t)
	tr, err := NewDispatchTracer(Single, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()
	if err = tr.Setup(sc, cam, testFrameW, testFrameH, make([]uint32, 4)); err == nil {
		t.Fatal("expected short hit buffer to be rejected")
	}

	// Queries on a modified scene fail.
	if err = tr.Setup(sc, cam, testFrameW, testFrameH, make([]uint32, testFrameW*testFrameH)); err != nil {
		t.Fatal(err)
	}
	dynamic, err := scene.New(sc.Device(), scene.Dynamic, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err = tr.Setup(dynamic, cam, testFrameW, testFrameH, make([]uint32, testFrameW*testFrameH)); err != nil {
		t.Fatal(err)
	}
	doneChan := make(chan uint32, 1)
	errChan := make(chan error, 1)
	tr.Enqueue(BlockRequest{BlockY: 0, BlockH: 1, DoneChan: doneChan, ErrChan: errChan})
	select {
	case <-doneChan:
		t.Fatal("expected tracing an uncommitted scene to fail")
	case err = <-errChan:
		if device.CodeOf(err) != device.InvalidOperation {
			t.Fatalf("expected INVALID_OPERATION; got %v", err)
		}
	}
}

func TestParseMode(t *testing.T) {
	for m := Single; m <= StreamNp; m++ {
		if got, ok := ParseMode(m.String()); !ok || got != m {
			t.Fatalf("expected %q to parse as %d; got %d", m.String(), m, got)
		}
	}
	if _, ok := ParseMode("bogus"); ok {
		t.Fatal("expected unknown mode name to be rejected")
	}
}

func TestCameraRays(t *testing.T) {
	cam := NewCamera(90)
	cam.SetupProjection(1)

	r := cam.Ray(0, 0, 2, 2)
	if r.Dir[0] >= 0 || r.Dir[1] <= 0 || r.Dir[2] <= 0 {
		t.Fatalf("expected top-left ray to point up and left; got %v", r.Dir)
	}
	r = cam.Ray(1, 1, 2, 2)
	if r.Dir[0] <= 0 || r.Dir[1] >= 0 {
		t.Fatalf("expected bottom-right ray to point down and right; got %v", r.Dir)
	}
}
