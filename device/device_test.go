package device

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestDeviceParameters(t *testing.T) {
	d, err := New("threads=2")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	v, err := d.Parameter(ParamVersionMajor)
	if err != nil || v != VersionMajor {
		t.Fatalf("expected major version %d; got %d (%v)", VersionMajor, v, err)
	}

	if err = d.SetParameter(ParamThreads, 4); err != nil {
		t.Fatal(err)
	}
	if v, _ = d.Parameter(ParamThreads); v != 4 {
		t.Fatalf("expected threads to be 4; got %d", v)
	}

	if err = d.SetParameter(ParamVersion, 1); CodeOf(err) != InvalidArgument {
		t.Fatalf("expected read-only parameter update to fail with INVALID_ARGUMENT; got %v", err)
	}
	if code := d.LastError(); code != InvalidArgument {
		t.Fatalf("expected device error slot to hold INVALID_ARGUMENT; got %s", ErrorName(code))
	}
	if code := d.LastError(); code != NoError {
		t.Fatalf("expected error slot to be cleared after read; got %s", ErrorName(code))
	}
}

func TestDeviceErrorCallback(t *testing.T) {
	d, _ := New("")
	defer d.Close()

	var gotCode ErrorCode
	var gotMsg string
	d.SetErrorFunc(func(code ErrorCode, msg string) {
		gotCode = code
		gotMsg = msg
	})

	err := d.Report(Wrap(Errorf(InvalidOperation, "scene not committed"), "intersect1"))
	if gotCode != InvalidOperation {
		t.Fatalf("expected callback to receive INVALID_OPERATION; got %s", ErrorName(gotCode))
	}
	if gotMsg != err.Error() {
		t.Fatalf("expected callback message %q; got %q", err.Error(), gotMsg)
	}
	if !errors.Is(err, ErrInvalidOperation) {
		t.Fatal("expected wrapped error to match the INVALID_OPERATION sentinel")
	}
	if code := LastError(); code != InvalidOperation {
		t.Fatalf("expected process error slot to hold INVALID_OPERATION; got %s", ErrorName(code))
	}

	if code := CodeOf(errors.New("boom")); code != UnknownError {
		t.Fatalf("expected foreign errors to map to UNKNOWN_ERROR; got %s", ErrorName(code))
	}
}

func TestDeviceCloseWithLiveScenes(t *testing.T) {
	d, _ := New("")

	d.Lock()
	if err := d.AttachScene(); err != nil {
		t.Fatal(err)
	}
	d.Unlock()

	if err := d.Close(); CodeOf(err) != InvalidOperation {
		t.Fatalf("expected close to fail while a scene is alive; got %v", err)
	}

	d.Lock()
	d.DetachScene()
	d.Unlock()

	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); CodeOf(err) != InvalidOperation {
		t.Fatalf("expected double close to fail; got %v", err)
	}
}

func TestMemoryMonitor(t *testing.T) {
	d, _ := New("")
	defer d.Close()

	var total int64
	d.SetMemoryMonitor(func(bytes int64, post bool) bool {
		if !post && total+bytes > 1024 {
			return false
		}
		total += bytes
		return true
	})

	if err := d.ReserveMemory(512); err != nil {
		t.Fatal(err)
	}
	if err := d.ReserveMemory(1024); CodeOf(err) != OutOfMemory {
		t.Fatalf("expected OUT_OF_MEMORY; got %v", err)
	}
	d.ReleaseMemory(512)
	if total != 0 {
		t.Fatalf("expected monitor total to return to 0; got %d", total)
	}
	if used, _ := d.Parameter(ParamMemoryUsed); used != 0 {
		t.Fatalf("expected 0 bytes in use; got %d", used)
	}
}

func TestRunTasks(t *testing.T) {
	d, _ := New("threads=4")
	defer d.Close()

	var count atomic.Int32
	tasks := make([]func() error, 16)
	for i := range tasks {
		tasks[i] = func() error {
			count.Add(1)
			return nil
		}
	}
	if err := d.RunTasks(tasks); err != nil {
		t.Fatal(err)
	}
	if count.Load() != 16 {
		t.Fatalf("expected 16 tasks to run; got %d", count.Load())
	}

	tasks[3] = func() error { panic("user callback failure") }
	if err := d.RunTasks(tasks); CodeOf(err) != UnknownError {
		t.Fatalf("expected panic to surface as UNKNOWN_ERROR; got %v", err)
	}
}
