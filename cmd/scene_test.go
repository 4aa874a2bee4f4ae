package cmd

import (
	"testing"

	"github.com/LiangYue1981816/embree/asset"
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/scene"
	"github.com/LiangYue1981816/embree/types"
)

func quadAsset() *asset.Scene {
	return &asset.Scene{
		Meshes: []*asset.Mesh{
			{
				Name:     "tri",
				Vertices: []types.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}},
				Triangles: [][3]uint32{
					{0, 1, 2},
				},
			},
			{
				Name:     "quad",
				Vertices: []types.Vec3{{2, 0, 0}, {3, 0, 0}, {3, 1, 0}, {2, 1, 0}},
				Quads: [][4]uint32{
					{0, 1, 2, 3},
				},
			},
		},
	}
}

func downRay(x, y float32) ray.Ray {
	return ray.Infinite(types.Vec3{x, y, -1}, types.Vec3{0, 0, 1})
}

func TestSceneBuilderCommitModes(t *testing.T) {
	for _, mode := range []string{commitDefault, commitJoin, commitThread} {
		dev, err := device.New("threads=2")
		if err != nil {
			t.Fatal(err)
		}

		b := &sceneBuilder{dev: dev, flags: scene.Static, commitMode: mode, threads: 3}
		sc, err := b.Build(quadAsset())
		if err != nil {
			t.Fatalf("[%s] build failed: %v", mode, err)
		}
		if sc.State() != scene.Committed {
			t.Fatalf("[%s] expected scene to be committed; got %s", mode, sc.State())
		}

		r := downRay(0.75, 0.25)
		if err = sc.Intersect1(nil, &r); err != nil {
			t.Fatal(err)
		}
		if r.GeomID != 0 {
			t.Fatalf("[%s] expected triangle mesh hit; got geometry %d", mode, r.GeomID)
		}
		r = downRay(2.5, 0.5)
		if err = sc.Intersect1(nil, &r); err != nil {
			t.Fatal(err)
		}
		if r.GeomID != 1 {
			t.Fatalf("[%s] expected quad mesh hit; got geometry %d", mode, r.GeomID)
		}

		b.Close()
		if err = dev.Close(); err != nil {
			t.Fatalf("[%s] expected device to close after releasing scenes; got %v", mode, err)
		}
	}
}

func TestSceneBuilderInstances(t *testing.T) {
	dev, err := device.New("")
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	as := quadAsset()
	shift := types.Identity()
	shift.P = types.Vec3{10, 0, 0}
	as.Instances = []asset.Instance{
		{Mesh: 0, Transform: types.Identity()},
		{Mesh: 0, Transform: shift},
	}

	b := &sceneBuilder{dev: dev, flags: scene.Static}
	defer b.Close()
	sc, err := b.Build(as)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.scenes) != 2 {
		t.Fatalf("expected a top level and a single source scene; got %d scenes", len(b.scenes))
	}

	r := downRay(10.75, 0.25)
	if err = sc.Intersect1(nil, &r); err != nil {
		t.Fatal(err)
	}
	if r.InstID != 1 || r.GeomID != 0 {
		t.Fatalf("expected hit on geometry 0 of instance 1; got %d/%d", r.GeomID, r.InstID)
	}

	// The quad mesh is not instanced.
	r = downRay(2.5, 0.5)
	if err = sc.Intersect1(nil, &r); err != nil {
		t.Fatal(err)
	}
	if r.Hit() {
		t.Fatalf("expected ray to miss; got geometry %d", r.GeomID)
	}
}

func TestSceneBuilderErrors(t *testing.T) {
	dev, err := device.New("")
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	b := &sceneBuilder{dev: dev, commitMode: "bogus"}
	defer b.Close()
	if _, err = b.Build(quadAsset()); err == nil {
		t.Fatal("expected unknown commit mode to be rejected")
	}

	b2 := &sceneBuilder{dev: dev, commitMode: commitThread}
	defer b2.Close()
	if _, err = b2.Build(quadAsset()); err == nil {
		t.Fatal("expected thread commit without threads to be rejected")
	}
}

func TestRandomScene(t *testing.T) {
	as := randomScene(7, 3, 100)
	if len(as.Meshes) != 3 {
		t.Fatalf("expected 3 meshes; got %d", len(as.Meshes))
	}
	var prims int
	for _, m := range as.Meshes {
		prims += m.NumPrims()
		if len(m.Vertices) != 3*len(m.Triangles) {
			t.Fatalf("expected 3 vertices per triangle in mesh %s", m.Name)
		}
	}
	if prims != 100 {
		t.Fatalf("expected 100 triangles; got %d", prims)
	}

	bounds := as.Bounds()
	if bounds.Lower[0] < -0.05 || bounds.Upper[0] > 1.05 {
		t.Fatalf("expected triangles to stay close to the unit cube; got %v", bounds)
	}

	again := randomScene(7, 3, 100)
	if again.Meshes[1].Vertices[4] != as.Meshes[1].Vertices[4] {
		t.Fatal("expected the same seed to generate the same scene")
	}
}

func TestCreateTracers(t *testing.T) {
	tracers, err := createTracers([]string{"single", "stream-NM"}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracers) != 2 || tracers[1].Id() != "stream-NM-4" {
		t.Fatalf("unexpected tracers %v", tracers)
	}
	for _, tr := range tracers {
		tr.Close()
	}

	if _, err = createTracers([]string{"single", "bogus"}, 0); err == nil {
		t.Fatal("expected unknown mode to be rejected")
	}
}
