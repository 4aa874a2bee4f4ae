package accel

import (
	"testing"

	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/geometry"
	"github.com/LiangYue1981816/embree/types"
)

type mapSource map[uint32]geometry.Geometry

func (s mapSource) Geometry(id uint32) geometry.Geometry { return s[id] }

// stripMesh returns a mesh of n triangles where triangle i spans x in
// [i, i+1] at z = 0.
func stripMesh(t testing.TB, id uint32, n, timeSteps int) *geometry.TriangleMesh {
	m, err := geometry.NewTriangleMesh(nil, id, geometry.Static, n, 3*n, timeSteps)
	if err != nil {
		t.Fatal(err)
	}
	for step := 0; step < timeSteps; step++ {
		vtx := m.Buffer(geometry.VertexBuffer(step))
		dy := float32(step)
		for i := 0; i < n; i++ {
			x := float32(i)
			vtx.PutFloats(3*i, x, dy, 0)
			vtx.PutFloats(3*i+1, x+1, dy, 0)
			vtx.PutFloats(3*i+2, x, dy+1, 0)
			m.Buffer(geometry.IndexBuffer).PutUints(i, uint32(3*i), uint32(3*i+1), uint32(3*i+2))
		}
	}
	return m
}

func TestLayoutBytes(t *testing.T) {
	specs := []struct {
		layout Layout
		n      int
		exp    int
	}{
		// header + 4 x 8 index bytes + 4 x 3 x 16 vertex bytes
		{NewLayout(KindTriangles, 4, 1), 4, 4 + 32 + 192},
		{NewLayout(KindTriangles, 4, 1), 10, 2*228 + (4 + 16 + 96)},
		{NewLayout(KindTriangles, 4, 2), 1, 4 + 8 + 96},
		{NewLayout(KindCurves, 8, 1), 8, 4 + 64 + 512},
		{NewLayout(KindObjects, 4, 1), 5, (4 + 32) + (4 + 8)},
		{NewLayout(KindLines, 4, 1), 0, 0},
	}

	for specIndex, spec := range specs {
		if got := spec.layout.Bytes(spec.n); got != spec.exp {
			t.Errorf("[spec %d] expected Bytes(%d) to be %d; got %d", specIndex, spec.n, spec.exp, got)
		}
	}
}

func TestLayoutBytesMatchesBlockSizes(t *testing.T) {
	for _, m := range []int{4, 8} {
		for _, kind := range Kinds {
			for _, steps := range []int{1, 2} {
				l := NewLayout(kind, m, steps)
				for n := 0; n <= 3*m+1; n++ {
					sum := 0
					for left := n; left > 0; left -= m {
						sum += l.BlockBytes(min(left, m))
					}
					if got := l.Bytes(n); got != sum {
						t.Fatalf("[%s M=%d T=%d] expected Bytes(%d) = %d; got %d", kind, m, steps, n, sum, got)
					}
					if got := l.Blocks(n); got != (n+m-1)/m {
						t.Fatalf("[%s M=%d] expected %d blocks for %d prims; got %d", kind, m, (n+m-1)/m, n, got)
					}
				}
			}
		}
	}
}

func TestFillRoundTrip(t *testing.T) {
	mesh := stripMesh(t, 7, 6, 2)
	src := mapSource{7: mesh}

	prims := make([]PrimRef, 0, 6)
	prims = CollectPrims(prims, mesh)
	if len(prims) != 6 {
		t.Fatalf("expected 6 primitive refs; got %d", len(prims))
	}

	layout := NewLayout(KindTriangles, 4, 2)
	arena := NewArena(nil)
	leaf, err := layout.CreateLeaf(arena, prims, src)
	if err != nil {
		t.Fatal(err)
	}
	if leaf.Size != layout.Bytes(6) || arena.Len() != leaf.Size {
		t.Fatalf("expected leaf to occupy exactly %d bytes; got %d (arena %d)", layout.Bytes(6), leaf.Size, arena.Len())
	}

	blocks := layout.Decode(arena.Bytes(leaf.Offset, leaf.Size), leaf.Count)
	if len(blocks) != 2 || blocks[0].Count != 4 || blocks[1].Count != 2 {
		t.Fatalf("expected blocks of 4 and 2 primitives; got %+v", blocks)
	}

	var verts [3]types.Vec4
	prim := 0
	for _, b := range blocks {
		if b.Kind != KindTriangles || b.Verts != 3 || b.TimeSteps != 2 {
			t.Fatalf("unexpected block header %+v", b)
		}
		for i := 0; i < b.Count; i++ {
			if b.GeomID(i) != 7 || b.PrimID(i) != uint32(prim) {
				t.Fatalf("expected prim (7, %d); got (%d, %d)", prim, b.GeomID(i), b.PrimID(i))
			}
			for step := 0; step < 2; step++ {
				mesh.PrimVertices(prim, step, verts[:])
				for v := 0; v < 3; v++ {
					if got := b.Vertex(i, step, v); got != verts[v] {
						t.Fatalf("[prim %d, t %d, v %d] expected %v; got %v", prim, step, v, verts[v], got)
					}
				}
			}
			prim++
		}
	}
}

func TestFillAdvancesCursor(t *testing.T) {
	mesh := stripMesh(t, 0, 5, 1)
	prims := CollectPrims(nil, mesh)
	layout := NewLayout(KindTriangles, 4, 1)

	buf := make([]byte, layout.Bytes(len(prims)))
	begin := 1
	n := layout.Fill(buf, prims, &begin, 3, mapSource{0: mesh})
	if begin != 3 {
		t.Fatalf("expected cursor to advance to 3; got %d", begin)
	}
	if n != layout.BlockBytes(2) {
		t.Fatalf("expected %d bytes to be written; got %d", layout.BlockBytes(2), n)
	}
	if b := DecodeBlock(buf); b.PrimID(0) != 1 || b.PrimID(1) != 2 {
		t.Fatalf("expected block to start at primitive 1; got %d", b.PrimID(0))
	}
	if n = layout.Fill(buf, prims, &begin, 3, nil); n != 0 {
		t.Fatalf("expected exhausted run to write nothing; got %d bytes", n)
	}
}

func TestArenaMemoryAccounting(t *testing.T) {
	dev, err := device.New("threads=1")
	if err != nil {
		t.Fatal(err)
	}

	arena := NewArena(dev)
	off, buf, err := arena.Alloc(100)
	if err != nil {
		t.Fatal(err)
	}
	if off != 0 || len(buf) != 100 {
		t.Fatalf("expected 100 bytes at offset 0; got %d at %d", len(buf), off)
	}
	if off, _, _ = arena.Alloc(10); off != 100 {
		t.Fatalf("expected second allocation at offset 100; got %d", off)
	}
	if used, _ := dev.Parameter(device.ParamMemoryUsed); used < 110 {
		t.Fatalf("expected at least 110 bytes to be accounted; got %d", used)
	}
	arena.Release()
	if used, _ := dev.Parameter(device.ParamMemoryUsed); used != 0 {
		t.Fatalf("expected memory to be released; got %d", used)
	}

	dev.SetMemoryMonitor(func(bytes int64, post bool) bool { return bytes < 0 })
	if _, _, err = arena.Alloc(16); device.CodeOf(err) != device.OutOfMemory {
		t.Fatalf("expected OUT_OF_MEMORY; got %v", err)
	}
}

func BenchmarkCreateLeaf(b *testing.B) {
	mesh := stripMesh(b, 0, 64, 1)
	prims := CollectPrims(nil, mesh)
	src := mapSource{0: mesh}
	layout := NewLayout(KindTriangles, 4, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		arena := NewArena(nil)
		if _, err := layout.CreateLeaf(arena, prims, src); err != nil {
			b.Fatal(err)
		}
	}
}
