package device

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/LiangYue1981816/embree/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Kernel version reported through ParamVersion*.
const (
	VersionMajor = 2
	VersionMinor = 17
	VersionPatch = 0
)

// Param identifies a device parameter.
type Param uint32

// Supported device parameters.
const (
	// Read-only.
	ParamVersion Param = iota
	ParamVersionMajor
	ParamVersionMinor
	ParamVersionPatch
	ParamISA
	ParamNativeWidth
	ParamMemoryUsed

	// Read-write.
	ParamThreads
	ParamVerbose
	ParamMaxStride
	ParamLeafWidth
)

// ErrorFunc receives every error reported by a device.
type ErrorFunc func(code ErrorCode, msg string)

// MemoryMonitorFunc is invoked before (post == false) every allocation
// with a positive byte count and after every release with a negative one.
// Returning false for an allocation makes it fail with OutOfMemory.
type MemoryMonitorFunc func(bytes int64, post bool) bool

// Device owns scenes, global parameters and the error/memory callbacks.
type Device struct {
	logger log.Logger
	id     uuid.UUID

	// The device lock serializes scene creation/destruction and parameter
	// mutation. Each device has its own lock so separate devices never
	// contend with each other.
	mu sync.Mutex

	opts   Options
	closed bool

	// Number of live scenes attached to this device.
	scenes atomic.Int32

	lastError atomic.Uint32

	cbMu       sync.RWMutex
	errorFn    ErrorFunc
	memMonitor MemoryMonitorFunc
	memUsed    atomic.Int64

	poolOnce sync.Once
	pool     worker.DynamicWorkerPool
	taskID   atomic.Int64
}

// New creates a device configured by cfg (see ParseConfig).
func New(cfg string) (*Device, error) {
	opts, err := ParseConfig(cfg)
	if err != nil {
		return nil, ReportNoDevice(err)
	}

	id := uuid.New()
	d := &Device{
		logger: log.New(fmt.Sprintf("device-%s", id.String()[:8])),
		id:     id,
		opts:   opts,
	}
	if opts.Verbose > 0 {
		log.SetLevel(log.LevelFromVerbosity(opts.Verbose))
	}
	d.logger.Infof("created device (isa %s, %d threads, leaf width %d)", opts.ISA, opts.Threads, opts.LeafWidth)
	return d, nil
}

// ID returns the unique device identifier.
func (d *Device) ID() uuid.UUID {
	return d.id
}

// Implements Stringer.
func (d *Device) String() string {
	opts := d.Options()
	return fmt.Sprintf("Device %s\nISA: %s (packet widths %v)\nThreads: %d", d.id, opts.ISA, opts.ISA.PacketWidths(), opts.Threads)
}

// Lock acquires the device lock.
func (d *Device) Lock() {
	d.mu.Lock()
}

// Unlock releases the device lock.
func (d *Device) Unlock() {
	d.mu.Unlock()
}

// Options returns a snapshot of the device options.
func (d *Device) Options() Options {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts
}

// ISA returns the instruction set selected for this device.
func (d *Device) ISA() ISA {
	return d.Options().ISA
}

// Close releases the device. It fails while scenes created on the device
// are still alive.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return d.report(Errorf(InvalidOperation, "device already closed"))
	}
	if n := d.scenes.Load(); n > 0 {
		return d.report(Errorf(InvalidOperation, "device still owns %d scene(s)", n))
	}
	d.closed = true
	d.logger.Info("device closed")
	return nil
}

// AttachScene registers a new scene with the device. It must be called
// while holding the device lock.
func (d *Device) AttachScene() error {
	if d.closed {
		return Errorf(InvalidOperation, "device is closed")
	}
	d.scenes.Add(1)
	return nil
}

// DetachScene unregisters a scene. It must be called while holding the
// device lock.
func (d *Device) DetachScene() {
	d.scenes.Add(-1)
}

// Parameter returns the value of a device parameter.
func (d *Device) Parameter(p Param) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch p {
	case ParamVersion:
		return VersionMajor*10000 + VersionMinor*100 + VersionPatch, nil
	case ParamVersionMajor:
		return VersionMajor, nil
	case ParamVersionMinor:
		return VersionMinor, nil
	case ParamVersionPatch:
		return VersionPatch, nil
	case ParamISA:
		return int64(d.opts.ISA), nil
	case ParamNativeWidth:
		return int64(d.opts.ISA.NativeWidth()), nil
	case ParamMemoryUsed:
		return d.memUsed.Load(), nil
	case ParamThreads:
		return int64(d.opts.Threads), nil
	case ParamVerbose:
		return int64(d.opts.Verbose), nil
	case ParamMaxStride:
		return int64(d.opts.MaxStride), nil
	case ParamLeafWidth:
		return int64(d.opts.LeafWidth), nil
	}
	return 0, d.report(Errorf(InvalidArgument, "unknown readable parameter %d", p))
}

// SetParameter updates a writable device parameter.
func (d *Device) SetParameter(p Param, value int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch p {
	case ParamThreads:
		if value <= 0 {
			return d.report(Errorf(InvalidArgument, "thread count must be positive"))
		}
		d.opts.Threads = int(value)
	case ParamVerbose:
		if value < 0 {
			return d.report(Errorf(InvalidArgument, "verbosity must not be negative"))
		}
		d.opts.Verbose = int(value)
		log.SetLevel(log.LevelFromVerbosity(int(value)))
	case ParamMaxStride:
		if value <= 0 {
			return d.report(Errorf(InvalidArgument, "max stride must be positive"))
		}
		d.opts.MaxStride = int(value)
	case ParamLeafWidth:
		if value != 4 && value != 8 {
			return d.report(Errorf(InvalidArgument, "leaf width must be 4 or 8"))
		}
		d.opts.LeafWidth = int(value)
	default:
		return d.report(Errorf(InvalidArgument, "unknown writable parameter %d", p))
	}
	return nil
}

// SetErrorFunc registers a callback that is invoked for every reported
// error. Passing nil removes the callback.
func (d *Device) SetErrorFunc(fn ErrorFunc) {
	d.cbMu.Lock()
	d.errorFn = fn
	d.cbMu.Unlock()
}

// SetMemoryMonitor registers the memory monitor callback.
func (d *Device) SetMemoryMonitor(fn MemoryMonitorFunc) {
	d.cbMu.Lock()
	d.memMonitor = fn
	d.cbMu.Unlock()
}

// Report records err in the device and process error slots and forwards it
// to the error callback. It returns err unchanged so entry points can
// write `return d.Report(err)`.
func (d *Device) Report(err error) error {
	if err == nil {
		return nil
	}
	return d.report(err)
}

func (d *Device) report(err error) error {
	code := CodeOf(err)
	d.lastError.Store(uint32(code))
	processError.Store(uint32(code))

	d.cbMu.RLock()
	fn := d.errorFn
	d.cbMu.RUnlock()

	d.logger.Warningf("%s", err)
	if fn != nil {
		fn(code, err.Error())
	}
	return err
}

// LastError returns and clears the device error slot.
func (d *Device) LastError() ErrorCode {
	return ErrorCode(d.lastError.Swap(uint32(NoError)))
}

// ReserveMemory accounts for an allocation of the given size. The memory
// monitor may veto it.
func (d *Device) ReserveMemory(bytes int64) error {
	d.cbMu.RLock()
	fn := d.memMonitor
	d.cbMu.RUnlock()

	if fn != nil && !fn(bytes, false) {
		return Errorf(OutOfMemory, "memory monitor rejected allocation of %d bytes", bytes)
	}
	d.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory accounts for freed memory.
func (d *Device) ReleaseMemory(bytes int64) {
	if bytes == 0 {
		return
	}
	d.memUsed.Add(-bytes)

	d.cbMu.RLock()
	fn := d.memMonitor
	d.cbMu.RUnlock()
	if fn != nil {
		fn(-bytes, true)
	}
}

// RunTasks executes tasks on the device worker pool and blocks until all
// of them completed. The first error (or recovered panic) is returned.
func (d *Device) RunTasks(tasks []func() error) error {
	if len(tasks) == 0 {
		return nil
	}
	if len(tasks) == 1 {
		return runTask(tasks[0])
	}

	d.poolOnce.Do(func() {
		threads := d.Options().Threads
		d.pool = worker.NewDynamicWorkerPool(threads, 256, 1*time.Second)
	})

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	for _, task := range tasks {
		wg.Add(1)
		fn := task
		d.pool.SubmitTask(worker.Task{
			ID: int(d.taskID.Add(1)),
			Do: func() (any, error) {
				defer wg.Done()
				err := runTask(fn)
				if err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
				}
				return nil, err
			},
		})
	}
	wg.Wait()
	return firstErr
}

// runTask runs fn converting panics into UnknownError.
func runTask(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WithStack(Errorf(UnknownError, "panic during task: %v", r))
		}
	}()
	return fn()
}

// RunTask is the exported form of runTask used by cooperative builders.
func RunTask(fn func() error) error {
	return runTask(fn)
}
