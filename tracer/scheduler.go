package tracer

import "math"

// The BlockScheduler interface is implemented by all block scheduling algorithms.
type BlockScheduler interface {
	// Split frame into blocks of variable height and assign to the pool
	// of tracers using feedback collected from previous frames.
	//
	// This function returns the block height assignment for each tracer
	// in the input list.
	Schedule(tracers []Tracer, frameH uint32) []uint32
}

// The naive scheduler splits the frame according to the speed estimate of
// each tracer.
type naiveScheduler struct {
	blockAssignment []uint32
}

// NaiveScheduler creates a scheduler that only uses tracer speed estimates.
func NaiveScheduler() BlockScheduler {
	return &naiveScheduler{}
}

func (sch *naiveScheduler) Schedule(tracers []Tracer, frameH uint32) []uint32 {
	if len(sch.blockAssignment) != len(tracers) {
		sch.blockAssignment = make([]uint32, len(tracers))
	}
	return assignBySpeed(sch.blockAssignment, tracers, frameH)
}

// The perfect scheduler assumes that the volume of tracing work between two
// subsequent frames is approximately the same.
type perfectScheduler struct {
	blockAssignment []uint32
}

// PerfectScheduler creates a scheduler that balances blocks using the
// timings of the previous frame.
func PerfectScheduler() BlockScheduler {
	return &perfectScheduler{}
}

// Split frame into blocks of variable height and assign to the pool
// of tracers using feedback collected from previous frames.
//
// When previous frame information is available the scheduler uses the
// following formula for estimating the workload for tracer w and frame i+1:
// w_i, f_i+1 = (blockH,w_i / time,w_i) / Σ(blockH_i-1 / time,i-1)
func (sch *perfectScheduler) Schedule(tracers []Tracer, frameH uint32) []uint32 {
	// If this is the first time we try to schedule or the number of tracers
	// has changed we need to reset the block assignments
	if len(sch.blockAssignment) != len(tracers) {
		sch.blockAssignment = make([]uint32, len(tracers))
		return assignBySpeed(sch.blockAssignment, tracers, frameH)
	}

	rates := make([]float64, len(tracers))
	for idx, tr := range tracers {
		stats := tr.Stats()
		if stats.BlockTime <= 0 {
			// No usable timing for this tracer; fall back to estimates.
			return assignBySpeed(sch.blockAssignment, tracers, frameH)
		}
		rates[idx] = float64(stats.BlockH) / float64(stats.BlockTime)
	}
	return distribute(sch.blockAssignment, rates, frameH)
}

func assignBySpeed(out []uint32, tracers []Tracer, frameH uint32) []uint32 {
	rates := make([]float64, len(tracers))
	for idx, tr := range tracers {
		rates[idx] = float64(tr.SpeedEstimate())
	}
	return distribute(out, rates, frameH)
}

// distribute splits frameH rows proportionally to rates. Every tracer gets
// at least one row; rows lost to rounding go to the first tracer.
func distribute(out []uint32, rates []float64, frameH uint32) []uint32 {
	var total float64
	for _, rate := range rates {
		total += rate
	}
	if total <= 0 || len(out) == 0 {
		for idx := range out {
			out[idx] = 0
		}
		if len(out) > 0 {
			out[0] = frameH
		}
		return out
	}

	scaler := float64(frameH) / total
	var scheduledRows uint32
	for idx, rate := range rates {
		out[idx] = uint32(math.Max(1.0, math.Floor(rate*scaler)))
		scheduledRows += out[idx]
	}

	// The one row minimum may overshoot for tiny frames; take the excess
	// from the largest blocks.
	for scheduledRows > frameH {
		largest := 0
		for idx := range out {
			if out[idx] > out[largest] {
				largest = idx
			}
		}
		if out[largest] == 0 {
			break
		}
		out[largest]--
		scheduledRows--
	}

	// In case rows don't add up to the frame height append the missing ones to the first tracer
	out[0] += frameH - scheduledRows
	return out
}
