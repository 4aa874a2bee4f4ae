package accel

import (
	"testing"

	"github.com/LiangYue1981816/embree/types"
)

func TestBVHLeafCallback(t *testing.T) {
	type primSpec struct {
		min types.Vec3
		max types.Vec3
	}

	primSpecs := []primSpec{
		{types.Vec3{-2, 0, -2}, types.Vec3{-1, 1, -1}},
		{types.Vec3{1, 0, -2}, types.Vec3{2, 1, -1}},
		{types.Vec3{-2, 0, 1}, types.Vec3{-1, 1, 2}},
		{types.Vec3{1, 0, 1}, types.Vec3{2, 1, 2}},
	}

	itemList := make([]PrimRef, len(primSpecs))
	for idx, ps := range primSpecs {
		itemList[idx] = PrimRef{
			Bounds: types.Static(types.BBox{Lower: ps.min, Upper: ps.max}),
			PrimID: uint32(idx),
		}
	}

	var cbCount = 0
	var expItemListCount = 0
	cb := func(leaf *Node, itemList []PrimRef) error {
		leaf.SetLeaf(uint32(cbCount), len(itemList))
		cbCount++
		if len(itemList) != expItemListCount {
			t.Fatalf("expected leaf callback to be called with %d items; got %d", expItemListCount, len(itemList))
		}
		return nil
	}

	var expCount = 0

	// Partition each item in a single leaf
	cbCount = 0
	expItemListCount = 1
	treeNodes, stats, err := BuildBVH(itemList, 1, 1, ScoreParallel, cb)
	if err != nil {
		t.Fatal(err)
	}

	expCount = 4
	if cbCount != expCount {
		t.Fatalf("expected leaf callback to be called %d times; called %d", expCount, cbCount)
	}
	expCount = 7
	if len(treeNodes) != expCount {
		t.Fatalf("expected bvh tree to have %d nodes; got %d", expCount, len(treeNodes))
	}
	if stats.Leaves != 4 || stats.Nodes != 3 || stats.MaxDepth != 2 {
		t.Fatalf("unexpected build stats %+v", stats)
	}

	// Partition two items in a single leaf
	cbCount = 0
	expItemListCount = 2
	treeNodes, _, err = BuildBVH(itemList, 2, 2, ScoreParallel, cb)
	if err != nil {
		t.Fatal(err)
	}

	expCount = 2
	if cbCount != expCount {
		t.Fatalf("expected leaf callback to be called %d times; called %d", expCount, cbCount)
	}
	expCount = 3
	if len(treeNodes) != expCount {
		t.Fatalf("expected bvh tree to have %d nodes; got %d", expCount, len(treeNodes))
	}

	root := treeNodes[0]
	if root.IsLeaf() {
		t.Fatal("expected root to be an inner node")
	}
	exp := types.BBox{Lower: types.Vec3{-2, 0, -2}, Upper: types.Vec3{2, 1, 2}}
	if root.Bounds.Bounds0 != exp {
		t.Fatalf("expected root bounds %v; got %v", exp, root.Bounds.Bounds0)
	}
	left, right := root.Children()
	for _, child := range []uint32{left, right} {
		if !treeNodes[child].IsLeaf() {
			t.Fatalf("expected node %d to be a leaf", child)
		}
		if _, count := treeNodes[child].Leaf(); count != 2 {
			t.Fatalf("expected leaf %d to hold 2 items; got %d", child, count)
		}
	}
}

func TestBVHMedianSplit(t *testing.T) {
	// Coincident primitives cannot be separated by SAH; the builder must
	// still respect the maximum leaf size.
	itemList := make([]PrimRef, 20)
	for i := range itemList {
		itemList[i] = PrimRef{Bounds: types.Static(types.BBox{Upper: types.Splat(1)}), PrimID: uint32(i)}
	}

	var leaves, items int
	_, _, err := BuildBVH(itemList, 2, 4, ScoreParallel, func(leaf *Node, prims []PrimRef) error {
		if len(prims) > 4 {
			t.Fatalf("expected at most 4 items per leaf; got %d", len(prims))
		}
		leaf.SetLeaf(uint32(leaves), len(prims))
		leaves++
		items += len(prims)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if items != len(itemList) {
		t.Fatalf("expected every item to be stored once; got %d", items)
	}
}

func TestBVHParallelScoring(t *testing.T) {
	itemList := make([]PrimRef, 2*parallelScoreItems)
	for i := range itemList {
		x := float32(i)
		itemList[i] = PrimRef{Bounds: types.Static(types.BBox{Lower: types.Vec3{x, 0, 0}, Upper: types.Vec3{x + 0.5, 1, 1}})}
	}

	var items int
	nodes, stats, err := BuildBVH(itemList, 4, 32, ScoreParallel, func(leaf *Node, prims []PrimRef) error {
		leaf.SetLeaf(0, len(prims))
		items += len(prims)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if items != len(itemList) {
		t.Fatalf("expected %d items in leaves; got %d", len(itemList), items)
	}
	if len(nodes) != stats.Nodes+stats.Leaves {
		t.Fatalf("expected %d nodes; got %d", stats.Nodes+stats.Leaves, len(nodes))
	}
}

func TestBVHInlineScoring(t *testing.T) {
	itemList := make([]PrimRef, 2*parallelScoreItems)
	for i := range itemList {
		x := float32(i%64) + 0.25*float32(i/64)
		y := float32(i / 64)
		itemList[i] = PrimRef{
			Bounds: types.Static(types.BBox{Lower: types.Vec3{x, y, 0}, Upper: types.Vec3{x + 0.5, y + 0.5, 1}}),
			PrimID: uint32(i),
		}
	}

	build := func(mode ScoreMode) ([]Node, []uint32) {
		var order []uint32
		nodes, _, err := BuildBVH(itemList, 4, 32, mode, func(leaf *Node, prims []PrimRef) error {
			leaf.SetLeaf(uint32(len(order)), len(prims))
			for _, p := range prims {
				order = append(order, p.PrimID)
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		return nodes, order
	}

	parallelNodes, parallelOrder := build(ScoreParallel)
	inlineNodes, inlineOrder := build(ScoreInline)
	if len(parallelNodes) != len(inlineNodes) {
		t.Fatalf("expected inline scoring to build %d nodes; got %d", len(parallelNodes), len(inlineNodes))
	}
	for i := range parallelNodes {
		if parallelNodes[i] != inlineNodes[i] {
			t.Fatalf("expected node %d to match the parallel build; got %+v, want %+v", i, inlineNodes[i], parallelNodes[i])
		}
	}
	if len(parallelOrder) != len(inlineOrder) {
		t.Fatalf("expected %d leaf items; got %d", len(parallelOrder), len(inlineOrder))
	}
	for i := range parallelOrder {
		if parallelOrder[i] != inlineOrder[i] {
			t.Fatalf("expected leaf item %d to be prim %d; got %d", i, parallelOrder[i], inlineOrder[i])
		}
	}
}
