package renderer

import (
	"testing"

	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/geometry"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/scene"
	"github.com/LiangYue1981816/embree/tracer"
	"github.com/LiangYue1981816/embree/types"
)

func setupScene(t *testing.T) *scene.Scene {
	dev, err := device.New("")
	if err != nil {
		t.Fatal(err)
	}
	sc, err := scene.New(dev, scene.Static, 0)
	if err != nil {
		t.Fatal(err)
	}
	id, err := sc.NewTriangleMesh(geometry.Static, 2, 4, 1, ray.InvalidGeometryID)
	if err != nil {
		t.Fatal(err)
	}
	g, _ := sc.Geometry(id)
	mesh := g.(*geometry.TriangleMesh)
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
	mesh.Buffer(geometry.IndexBuffer).PutUints(0, 0, 1, 2)
	mesh.Buffer(geometry.IndexBuffer).PutUints(1, 0, 2, 3)
	if err = sc.Unmap(id, geometry.IndexBuffer); err != nil {
		t.Fatal(err)
	}
	if err = sc.Commit(); err != nil {
		t.Fatal(err)
	}
	return sc
}

func setupCamera() *tracer.Camera {
	cam := tracer.NewCamera(45)
	cam.Frame(types.BBox{Lower: types.Vec3{-2, -2, 0}, Upper: types.Vec3{2, 2, 0}})
	return cam
}

func TestRendererValidation(t *testing.T) {
	sc := setupScene(t)
	cam := setupCamera()
	opts := Options{FrameW: 8, FrameH: 8}

	if _, err := NewDefault(nil, cam, tracer.NaiveScheduler(), nil, opts); err != ErrSceneNotDefined {
		t.Fatalf("expected error %v; got %v", ErrSceneNotDefined, err)
	}
	if _, err := NewDefault(sc, nil, tracer.NaiveScheduler(), nil, opts); err != ErrCameraNotDefined {
		t.Fatalf("expected error %v; got %v", ErrCameraNotDefined, err)
	}
	if _, err := NewDefault(sc, cam, tracer.NaiveScheduler(), nil, opts); err != ErrNoTracers {
		t.Fatalf("expected error %v; got %v", ErrNoTracers, err)
	}

	tr, err := tracer.NewDispatchTracer(tracer.Single, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()
	if _, err = NewDefault(sc, cam, tracer.NaiveScheduler(), []tracer.Tracer{tr}, Options{FrameW: 8}); err != ErrInvalidFrame {
		t.Fatalf("expected error %v; got %v", ErrInvalidFrame, err)
	}
}

func TestRenderFrame(t *testing.T) {
	sc := setupScene(t)
	opts := Options{FrameW: 16, FrameH: 12}

	var tracers []tracer.Tracer
	for _, mode := range []tracer.Mode{tracer.Single, tracer.Stream1M, tracer.StreamNp} {
		tr, err := tracer.NewDispatchTracer(mode, 0)
		if err != nil {
			t.Fatal(err)
		}
		tracers = append(tracers, tr)
	}

	r, err := NewDefault(sc, setupCamera(), tracer.PerfectScheduler(), tracers, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for frame := 0; frame < 3; frame++ {
		if err = r.Render(); err != nil {
			t.Fatalf("[frame %d] render failed: %v", frame, err)
		}

		var expHits int64
		for _, geomID := range r.HitBuffer() {
			if geomID == 0 {
				expHits++
			} else if geomID != ray.InvalidGeometryID {
				t.Fatalf("[frame %d] unexpected geometry id %d in hit buffer", frame, geomID)
			}
		}
		if expHits == 0 {
			t.Fatalf("[frame %d] expected some pixels to hit the mesh", frame)
		}

		stats := r.Stats()
		if len(stats.Tracers) != len(tracers) {
			t.Fatalf("expected %d tracer stat entries; got %d", len(tracers), len(stats.Tracers))
		}
		var rows uint32
		var rays, hits int64
		for _, stat := range stats.Tracers {
			rows += stat.BlockH
			rays += stat.Rays
			hits += stat.Hits
		}
		if rows != opts.FrameH {
			t.Fatalf("[frame %d] expected %d scheduled rows; got %d", frame, opts.FrameH, rows)
		}
		if rays != int64(opts.FrameW*opts.FrameH) {
			t.Fatalf("[frame %d] expected %d rays; got %d", frame, opts.FrameW*opts.FrameH, rays)
		}
		if hits != expHits {
			t.Fatalf("[frame %d] expected %d hits; got %d", frame, expHits, hits)
		}
		if !stats.Tracers[0].IsPrimary {
			t.Fatal("expected first tracer to be flagged as primary")
		}
		if r.Frames() != frame+1 {
			t.Fatalf("expected frame counter to be %d; got %d", frame+1, r.Frames())
		}
	}
}

func TestRenderOcclusion(t *testing.T) {
	sc := setupScene(t)
	tr, err := tracer.NewDispatchTracer(tracer.Stream1Mp, 0)
	if err != nil {
		t.Fatal(err)
	}

	r, err := NewDefault(sc, setupCamera(), tracer.NaiveScheduler(), []tracer.Tracer{tr}, Options{FrameW: 8, FrameH: 8, Occlusion: true})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if err = r.Render(); err != nil {
		t.Fatal(err)
	}
	var occluded int64
	for _, v := range r.HitBuffer() {
		if v == ray.Occluded {
			occluded++
		}
	}
	if occluded == 0 || occluded != r.Stats().Tracers[0].Hits {
		t.Fatalf("expected occluded pixel count to match tracer hits; got %d and %d", occluded, r.Stats().Tracers[0].Hits)
	}
}
