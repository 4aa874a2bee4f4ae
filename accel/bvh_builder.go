package accel

import (
	"math"
	"sort"
	"time"

	"github.com/LiangYue1981816/embree/log"
	"github.com/LiangYue1981816/embree/types"
)

const (
	// The BVH builder will not attempt to calculate split candidates
	// if the centroid bbox along an axis is less than this threshold.
	minSideLength float32 = 1e-6

	// Number of split planes evaluated per axis.
	splitBins = 16

	// Work lists smaller than this are scored on the calling goroutine.
	parallelScoreItems = 512
)

// ScoreMode selects where the builder scores split candidates.
type ScoreMode int

const (
	// ScoreParallel scores the candidates of large work lists on
	// short lived goroutines.
	ScoreParallel ScoreMode = iota

	// ScoreInline scores every candidate on the goroutine running the
	// build. Per thread floating point modes of the caller then apply to
	// the whole build.
	ScoreInline
)

// Node is a BVH node. For inner nodes lData and rData hold the indices of
// the left and right child which are always > 0. For leaves lData <= 0
// holds the negated leaf index and rData < 0 the negated primitive count.
type Node struct {
	Bounds types.LBBox

	lData int32
	rData int32
}

// SetChildNodes turns the node into an inner node.
func (n *Node) SetChildNodes(left, right uint32) {
	n.lData = int32(left)
	n.rData = int32(right)
}

// SetLeaf turns the node into a leaf referencing leaf index leaf.
func (n *Node) SetLeaf(leaf uint32, count int) {
	n.lData = -int32(leaf)
	n.rData = -int32(count)
}

// IsLeaf reports whether the node is a leaf.
func (n *Node) IsLeaf() bool {
	return n.lData <= 0
}

// Children returns the child indices of an inner node.
func (n *Node) Children() (uint32, uint32) {
	return uint32(n.lData), uint32(n.rData)
}

// Leaf returns the leaf index and primitive count of a leaf node.
func (n *Node) Leaf() (uint32, int) {
	return uint32(-n.lData), int(-n.rData)
}

// A callback that is called whenever the BVH builder creates a new leaf.
type LeafFunc func(leaf *Node, prims []PrimRef) error

type splitCandidate struct {
	index                 int
	axis                  int
	splitPoint            float32
	leftCount, rightCount int
	score                 float32
}

// BuildStats summarizes a BVH build.
type BuildStats struct {
	Items    int
	Nodes    int
	Leaves   int
	MaxDepth int
}

type bvhBuilder struct {
	logger log.Logger

	// Bvh nodes stored as a contiguous list
	nodes []Node

	// A callback invoked to set up BVH leafs
	leafCb LeafFunc

	// The minimum number of items that are required for creating a leaf.
	minLeafItems int

	// Work lists larger than this are always split.
	maxLeafItems int

	// Score result chan
	scoreChan chan splitCandidate

	scoreMode ScoreMode

	// First error reported by the leaf callback
	err error

	stats BuildStats
}

// BuildBVH constructs a BVH over prims.
//
// The builder uses SAH for scoring splits:
// score = num_prims * node bbox half area.
//
// Work lists with at most minLeafItems entries become leaves. Lists larger
// than maxLeafItems are split at the median when no split improves the
// score. Both score modes produce the same tree.
func BuildBVH(prims []PrimRef, minLeafItems, maxLeafItems int, mode ScoreMode, leafCb LeafFunc) ([]Node, BuildStats, error) {
	builder := &bvhBuilder{
		logger:       log.New("bvh builder"),
		nodes:        make([]Node, 0, 2*len(prims)/max(minLeafItems, 1)+1),
		leafCb:       leafCb,
		minLeafItems: minLeafItems,
		maxLeafItems: maxLeafItems,
		scoreChan:    make(chan splitCandidate),
		scoreMode:    mode,
		stats: BuildStats{
			Items: len(prims),
		},
	}
	if len(prims) == 0 {
		return nil, builder.stats, nil
	}

	start := time.Now()
	builder.partition(prims, 0)
	if builder.err != nil {
		return nil, builder.stats, builder.err
	}
	builder.logger.Debugf(
		"BVH tree build time: %d ms, items: %d, maxDepth: %d, nodes: %d, leafs: %d",
		time.Since(start).Nanoseconds()/1e6,
		builder.stats.Items, builder.stats.MaxDepth, builder.stats.Nodes, builder.stats.Leaves,
	)
	return builder.nodes, builder.stats, nil
}

// Partition work list and return node index.
func (b *bvhBuilder) partition(workList []PrimRef, depth int) uint32 {
	if b.err != nil {
		return 0
	}
	if depth > b.stats.MaxDepth {
		b.stats.MaxDepth = depth
	}

	node := Node{Bounds: types.EmptyLBBox()}
	centroids := types.EmptyBBox()
	for i := range workList {
		node.Bounds = node.Bounds.Extend(workList[i].Bounds)
		centroids = centroids.ExtendPoint(workList[i].Center())
	}

	// Do we have enough items for partitioning? If not create a leaf
	if len(workList) <= b.minLeafItems {
		return b.createLeaf(&node, workList)
	}

	// Calc current node score
	bestScore := float32(len(workList)) * node.Bounds.Union().HalfArea()
	var bestSplit *splitCandidate

	candidates := make([]splitCandidate, 0, 3*(splitBins-1))
	side := centroids.Size()
	for axis := 0; axis < 3; axis++ {
		// Skip axis if all centroids (nearly) coincide
		if side[axis] < minSideLength {
			continue
		}
		step := side[axis] / splitBins
		for bin := 1; bin < splitBins; bin++ {
			candidates = append(candidates, splitCandidate{
				index:      len(candidates),
				axis:       axis,
				splitPoint: centroids.Lower[axis] + float32(bin)*step,
			})
		}
	}

	// Run split tests in parallel for large work lists
	if b.scoreMode == ScoreParallel && len(workList) >= parallelScoreItems {
		for _, candidate := range candidates {
			go candidate.Score(workList, b.scoreChan)
		}
		for pendingScores := len(candidates); pendingScores > 0; pendingScores-- {
			candidate := <-b.scoreChan
			candidates[candidate.index] = candidate
		}
	} else {
		for i := range candidates {
			candidates[i].evaluate(workList)
		}
	}

	// Ties go to the earliest candidate regardless of arrival order.
	for i := range candidates {
		if candidates[i].score < bestScore {
			bestScore = candidates[i].score
			bestSplit = &candidates[i]
		}
	}

	var leftWorkList, rightWorkList []PrimRef
	switch {
	case bestSplit != nil:
		leftWorkList = make([]PrimRef, 0, bestSplit.leftCount)
		rightWorkList = make([]PrimRef, 0, bestSplit.rightCount)
		for _, item := range workList {
			if item.Center()[bestSplit.axis] < bestSplit.splitPoint {
				leftWorkList = append(leftWorkList, item)
			} else {
				rightWorkList = append(rightWorkList, item)
			}
		}
	case len(workList) > b.maxLeafItems:
		leftWorkList, rightWorkList = medianSplit(workList, centroids)
	default:
		// If we can't find a split that improves the current node score create a leaf
		return b.createLeaf(&node, workList)
	}

	// Add node to list
	nodeIndex := len(b.nodes)
	b.nodes = append(b.nodes, node)
	b.stats.Nodes++

	// Partition children and update node indices
	leftNodeIndex := b.partition(leftWorkList, depth+1)
	rightNodeIndex := b.partition(rightWorkList, depth+1)
	b.nodes[nodeIndex].SetChildNodes(leftNodeIndex, rightNodeIndex)

	return uint32(nodeIndex)
}

// Score calculates the score for splitting the workList with this split
// candidate and reports the result to the supplied channel.
func (c splitCandidate) Score(workList []PrimRef, resChan chan<- splitCandidate) {
	c.evaluate(workList)
	resChan <- c
}

func (c *splitCandidate) evaluate(workList []PrimRef) {
	left, right := types.EmptyBBox(), types.EmptyBBox()
	for i := range workList {
		itemBBox := workList[i].BBox()
		if workList[i].Center()[c.axis] < c.splitPoint {
			c.leftCount++
			left = left.Extend(itemBBox)
		} else {
			c.rightCount++
			right = right.Extend(itemBBox)
		}
	}

	// Make sure that we got enough items of each side of the split
	minItemsOnEachSide := 2
	if len(workList) <= 3 {
		minItemsOnEachSide = 1
	}
	if c.leftCount < minItemsOnEachSide || c.rightCount < minItemsOnEachSide {
		c.score = math.MaxFloat32
		return
	}

	c.score = float32(c.leftCount)*left.HalfArea() + float32(c.rightCount)*right.HalfArea()
}

// medianSplit divides the work list in half along the widest centroid axis.
func medianSplit(workList []PrimRef, centroids types.BBox) ([]PrimRef, []PrimRef) {
	side := centroids.Size()
	axis := 0
	if side[1] > side[axis] {
		axis = 1
	}
	if side[2] > side[axis] {
		axis = 2
	}

	sorted := make([]PrimRef, len(workList))
	copy(sorted, workList)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Center()[axis] < sorted[j].Center()[axis]
	})
	mid := len(sorted) / 2
	return sorted[:mid], sorted[mid:]
}

// Setup the given node as a leaf containing all items in the work list.
// Returns the index to the node in the bvh node array.
func (b *bvhBuilder) createLeaf(node *Node, workList []PrimRef) uint32 {
	if err := b.leafCb(node, workList); err != nil {
		b.err = err
		return 0
	}

	// append node to list
	nodeIndex := len(b.nodes)
	b.nodes = append(b.nodes, *node)

	// update stats
	b.stats.Leaves++

	return uint32(nodeIndex)
}
