package tracer

import (
	"testing"

	"github.com/LiangYue1981816/embree/scene"
)

func TestNaiveScheduler(t *testing.T) {
	type spec struct {
		speed1   float32
		speed2   float32
		frameH   uint32
		expRows1 uint32
		expRows2 uint32
	}
	specs := []spec{
		{1, 2, 10, 4, 6},
		{2, 1, 10, 7, 3},
		{1, 1000, 10, 1, 9},
		{1, 1, 1, 0, 1},
	}

	for index, s := range specs {
		tr1 := makeMockTracer("mock-1", s.speed1)
		tr2 := makeMockTracer("mock-2", s.speed2)
		tracers := []Tracer{tr1, tr2}

		sch := NaiveScheduler()
		blockAssignment := sch.Schedule(tracers, s.frameH)

		if blockAssignment[0] != s.expRows1 {
			t.Fatalf("[spec %d] expected tracer 0 to be assigned %d rows; got %d", index, s.expRows1, blockAssignment[0])
		}

		if blockAssignment[1] != s.expRows2 {
			t.Fatalf("[spec %d] expected tracer 1 to be assigned %d rows; got %d", index, s.expRows2, blockAssignment[1])
		}
	}
}

func TestPerfectScheduler(t *testing.T) {
	type spec struct {
		frameH   uint32
		time1    int64
		time2    int64
		expRows1 uint32
		expRows2 uint32
	}
	specs := []spec{
		// First call always behaves like the naive scheduler
		{10, 1, 5, 5, 5},
		// Second call should use the block times to assign rows
		{10, 1, 5, 9, 1},
		// This time tracer 2 performed much better
		{10, 5, 1, 7, 3},
	}

	// Tracers have same speed
	tr1 := makeMockTracer("mock-1", 1)
	tr2 := makeMockTracer("mock-2", 1)
	tracers := []Tracer{tr1, tr2}

	sch := PerfectScheduler()
	for index, s := range specs {
		tr1.stats.BlockTime = s.time1
		tr2.stats.BlockTime = s.time2

		blockAssignment := sch.Schedule(tracers, s.frameH)

		if blockAssignment[0] != s.expRows1 {
			t.Fatalf("[spec %d] expected tracer 0 to be assigned %d rows; got %d", index, s.expRows1, blockAssignment[0])
		}

		if blockAssignment[1] != s.expRows2 {
			t.Fatalf("[spec %d] expected tracer 1 to be assigned %d rows; got %d", index, s.expRows2, blockAssignment[1])
		}

		tr1.stats.BlockH = blockAssignment[0]
		tr2.stats.BlockH = blockAssignment[1]
	}
}

type mockTracer struct {
	id    string
	speed float32
	stats *Stats
}

func makeMockTracer(id string, speed float32) *mockTracer {
	return &mockTracer{
		id:    id,
		speed: speed,
		stats: &Stats{},
	}
}

func (mt *mockTracer) Id() string {
	return mt.id
}

func (mt *mockTracer) SpeedEstimate() float32 {
	return mt.speed
}

func (mt *mockTracer) Setup(_ *scene.Scene, _ *Camera, _, _ uint32, _ []uint32) error {
	return nil
}

func (mt *mockTracer) Close() {
}

func (mt *mockTracer) Enqueue(_ BlockRequest) {
}

func (mt *mockTracer) Stats() *Stats {
	return mt.stats
}

func TestDistribute(t *testing.T) {
	type spec struct {
		rates  []float64
		frameH uint32
		exp    []uint32
	}
	specs := []spec{
		// Rounding leftovers go to the first tracer
		{[]float64{3, 1}, 10, []uint32{8, 2}},
		// More tracers than rows; the one row minimum is taken back
		{[]float64{1, 1, 1}, 2, []uint32{0, 1, 1}},
		// No usable rates
		{[]float64{0, 0}, 5, []uint32{5, 0}},
	}

	for index, s := range specs {
		out := distribute(make([]uint32, len(s.rates)), s.rates, s.frameH)
		var total uint32
		for i := range out {
			if out[i] != s.exp[i] {
				t.Fatalf("[spec %d] expected tracer %d to be assigned %d rows; got %d", index, i, s.exp[i], out[i])
			}
			total += out[i]
		}
		if total != s.frameH {
			t.Fatalf("[spec %d] expected %d assigned rows; got %d", index, s.frameH, total)
		}
	}
}
