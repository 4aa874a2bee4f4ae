package scene

import (
	"runtime"
	"sync"
	"time"

	"github.com/LiangYue1981816/embree/accel"
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/geometry"
	"github.com/LiangYue1981816/embree/types"
	"github.com/samber/lo"
)

// runner executes a batch of independent build tasks and returns the first
// error.
type runner func(tasks []func() error) error

// Commit builds the scene on the device worker pool.
func (s *Scene) Commit() error {
	if err := s.check(); err != nil {
		return err
	}
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	return s.device.Report(s.build(s.device.RunTasks, accel.ScoreParallel))
}

// CommitJoin builds the scene using every goroutine that calls CommitJoin
// while the build is in progress. All callers return the result of the
// same build.
func (s *Scene) CommitJoin() error {
	if err := s.check(); err != nil {
		return err
	}
	s.joinMu.Lock()
	if w := s.join; w != nil {
		s.joinMu.Unlock()
		w.help()
		return w.err
	}
	w := newWorkers()
	s.join = w
	s.joinMu.Unlock()

	s.buildMu.Lock()
	err := s.build(w.run, accel.ScoreParallel)
	s.buildMu.Unlock()

	s.joinMu.Lock()
	s.join = nil
	s.joinMu.Unlock()
	w.finish(err)
	return s.device.Report(err)
}

// CommitThread builds the scene using exactly numThreads caller owned
// goroutines. Each of them must call CommitThread with a distinct threadID
// in [0, numThreads); all of them block until the last one arrives and
// return once the build is complete. The calling OS threads run with
// denormals flushed to zero for the duration of the build and carry out all
// of its work, split scoring included.
func (s *Scene) CommitThread(threadID, numThreads int) error {
	if err := s.check(); err != nil {
		return err
	}
	if numThreads <= 0 {
		return s.device.Report(device.Errorf(device.InvalidOperation, "invalid number of threads specified"))
	}
	if threadID < 0 || threadID >= numThreads {
		return s.device.Report(device.Errorf(device.InvalidOperation, "invalid thread ID"))
	}

	s.joinMu.Lock()
	tc := s.threads
	if tc == nil {
		tc = newThreadCommit(numThreads)
		s.threads = tc
	}
	if tc.numThreads != numThreads {
		s.joinMu.Unlock()
		return s.device.Report(device.Errorf(device.InvalidOperation, "commit in progress expects %d threads; got %d", tc.numThreads, numThreads))
	}
	if tc.arrived[threadID] {
		s.joinMu.Unlock()
		return s.device.Report(device.Errorf(device.InvalidOperation, "thread %d already joined the commit", threadID))
	}
	tc.arrived[threadID] = true
	tc.count++
	if tc.count == numThreads {
		// The round is complete; the next CommitThread starts a new one.
		s.threads = nil
		close(tc.ready)
	}
	s.joinMu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	restore := enableFlushToZero()
	defer restore()

	<-tc.ready
	if threadID != 0 {
		tc.help()
		return tc.err
	}

	// Every build step must run on one of the callers' OS threads.
	s.buildMu.Lock()
	err := s.build(tc.run, accel.ScoreInline)
	s.buildMu.Unlock()
	tc.finish(err)
	return s.device.Report(err)
}

// workers lets a group of goroutines cooperate on the tasks of one build.
type workers struct {
	work chan func()
	done chan struct{}

	// Result of the build; valid once done is closed.
	err error
}

func newWorkers() *workers {
	return &workers{
		work: make(chan func()),
		done: make(chan struct{}),
	}
}

// help runs tasks handed out by run until finish is called.
func (w *workers) help() {
	for {
		select {
		case fn := <-w.work:
			fn()
		case <-w.done:
			return
		}
	}
}

// run distributes tasks between the calling goroutine and all helpers and
// blocks until every task completed.
func (w *workers) run(tasks []func() error) error {
	if len(tasks) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	wg.Add(len(tasks))
	go func() {
		for _, task := range tasks {
			fn := task
			w.work <- func() {
				defer wg.Done()
				if err := device.RunTask(fn); err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
				}
			}
		}
	}()

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	for {
		select {
		case fn := <-w.work:
			fn()
		case <-finished:
			return firstErr
		}
	}
}

// finish publishes the build result and releases all helpers.
func (w *workers) finish(err error) {
	w.err = err
	close(w.done)
}

// threadCommit tracks the callers of one CommitThread round.
type threadCommit struct {
	*workers

	numThreads int
	arrived    []bool
	count      int

	// Closed once all numThreads callers arrived.
	ready chan struct{}
}

func newThreadCommit(numThreads int) *threadCommit {
	return &threadCommit{
		workers:    newWorkers(),
		numThreads: numThreads,
		arrived:    make([]bool, numThreads),
		ready:      make(chan struct{}),
	}
}

// build runs a full scene build and publishes the result. On failure the
// previously committed index stays in place and the scene remains
// modified.
func (s *Scene) build(run runner, mode accel.ScoreMode) error {
	start := time.Now()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return device.Errorf(device.InvalidOperation, "scene is closed")
	}
	geoms := s.reg.snapshot()
	progress := s.progress
	s.mu.RUnlock()

	s.state.Store(uint32(Building))
	idx, err := s.buildIndex(geoms, progress, run, mode)
	if err != nil {
		s.state.Store(uint32(Modified))
		s.logger.Warningf("commit failed: %s", err)
		return err
	}

	for _, g := range geoms {
		if g != nil {
			g.Lock()
			g.Committed()
			g.Unlock()
		}
	}
	old := s.index.Swap(idx)
	s.committed.Store(true)
	s.state.CompareAndSwap(uint32(Building), uint32(Committed))

	if old != nil {
		old.release()
	}
	s.mu.Lock()
	released := s.reg.drainReleased()
	s.mu.Unlock()
	for _, g := range released {
		g.Release()
	}

	s.logger.Debugf("commit completed in %d ms (%d accelerators, %d private)", time.Since(start).Nanoseconds()/1e6, len(idx.accels), len(idx.private))
	return nil
}

// buildIndex validates the captured geometries and builds the private and
// top level accelerators.
func (s *Scene) buildIndex(geoms []geometry.Geometry, progress ProgressMonitorFunc, run runner, mode accel.ScoreMode) (*index, error) {
	monitor := func(p float64) error {
		if progress != nil && !progress(p) {
			return device.Errorf(device.Cancelled, "commit cancelled by progress monitor")
		}
		return nil
	}
	if err := monitor(0); err != nil {
		return nil, err
	}

	var (
		groups    []*geometry.Group
		instances []*geometry.GeometryInstance
		members   = make(map[uint32]bool)
	)
	for _, g := range geoms {
		if g == nil {
			continue
		}
		if g.AnyMapped() {
			return nil, device.Errorf(device.InvalidOperation, "%s geometry %d has mapped buffers", g.Type(), g.ID())
		}
		g.Lock()
		err := g.Prepare()
		g.Unlock()
		if err != nil {
			return nil, err
		}

		switch t := g.(type) {
		case *geometry.Group:
			groups = append(groups, t)
			for _, m := range t.Members() {
				members[m.ID()] = true
			}
		case *geometry.GeometryInstance:
			instances = append(instances, t)
		}
	}

	opts := s.device.Options()
	idx := &index{geoms: geoms, bounds: types.EmptyLBBox()}
	newIntersectorTable(idx, opts.ISA, s.aflags)

	// Groups first; geometry instances may reference them.
	groupAccels := make([]*accel.BVH, len(groups))
	err := run(lo.Map(groups, func(grp *geometry.Group, i int) func() error {
		return func() (err error) {
			groupAccels[i], err = s.buildAccel(idx, opts.LeafWidth, grp.Members(), mode)
			return err
		}
	}))
	idx.private = append(idx.private, lo.Compact(groupAccels)...)
	if err != nil {
		idx.release()
		return nil, err
	}
	byGroup := make(map[uint32]*accel.BVH, len(groups))
	for i, grp := range groups {
		if groupAccels[i] != nil {
			grp.SetAccel(groupAccels[i])
			byGroup[grp.ID()] = groupAccels[i]
		}
	}
	if err = monitor(1.0 / 3); err != nil {
		idx.release()
		return nil, err
	}

	instAccels := make([]*accel.BVH, len(instances))
	err = run(lo.Map(instances, func(gi *geometry.GeometryInstance, i int) func() error {
		return func() (err error) {
			if gi.Target().Type() == geometry.GroupType {
				return nil
			}
			instAccels[i], err = s.buildAccel(idx, opts.LeafWidth, []geometry.Geometry{gi.Target()}, mode)
			return err
		}
	}))
	idx.private = append(idx.private, lo.Compact(instAccels)...)
	if err != nil {
		idx.release()
		return nil, err
	}
	for i, gi := range instances {
		switch {
		case instAccels[i] != nil:
			gi.SetAccel(instAccels[i])
		case byGroup[gi.Target().ID()] != nil:
			gi.SetAccel(byGroup[gi.Target().ID()])
		default:
			gi.SetAccel(nil)
		}
	}
	if err = monitor(2.0 / 3); err != nil {
		idx.release()
		return nil, err
	}

	// Top level accelerators over every enabled geometry that is not
	// traced through a group.
	byKind := lo.GroupBy(lo.Filter(geoms, func(g geometry.Geometry, _ int) bool {
		return g != nil && g.Enabled() && !g.Deleted() && !members[g.ID()]
	}), func(g geometry.Geometry) accel.Kind {
		return accel.KindOf(g.Type())
	})
	top := make([]*accel.BVH, len(accel.Kinds))
	err = run(lo.FilterMap(accel.Kinds, func(kind accel.Kind, i int) (func() error, bool) {
		list, ok := byKind[kind]
		return func() (err error) {
			top[i], err = s.buildAccel(idx, opts.LeafWidth, list, mode)
			return err
		}, ok
	}))
	idx.accels = lo.Compact(top)
	if err != nil {
		idx.release()
		return nil, err
	}
	for _, a := range idx.accels {
		idx.bounds = idx.bounds.Extend(a.LinearBounds())
	}
	if err = monitor(1); err != nil {
		idx.release()
		return nil, err
	}
	return idx, nil
}

// buildAccel builds a BVH over all primitives of geoms, which must share
// one leaf kind. It returns nil if there is nothing to build.
func (s *Scene) buildAccel(src accel.Source, leafWidth int, geoms []geometry.Geometry, mode accel.ScoreMode) (*accel.BVH, error) {
	if len(geoms) == 0 {
		return nil, nil
	}

	kind := accel.KindOf(geoms[0].Type())
	timeSteps := lo.Max(lo.Map(geoms, func(g geometry.Geometry, _ int) int {
		return g.TimeSteps()
	}))

	var prims []accel.PrimRef
	for _, g := range geoms {
		prims = accel.CollectPrims(prims, g)
	}
	if len(prims) == 0 {
		return nil, nil
	}
	return accel.Build(s.device, accel.NewLayout(kind, leafWidth, timeSteps), prims, src, mode)
}
