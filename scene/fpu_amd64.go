package scene

// MXCSR control bits.
const (
	mxcsrDAZ = 1 << 6
	mxcsrFTZ = 1 << 15
)

func getMXCSR() uint32

func setMXCSR(v uint32)

// enableFlushToZero sets the flush-to-zero and denormals-are-zero modes of
// the current OS thread and returns a function restoring the previous
// mode. The caller must have locked the OS thread.
func enableFlushToZero() func() {
	old := getMXCSR()
	setMXCSR(old | mxcsrFTZ | mxcsrDAZ)
	return func() { setMXCSR(old) }
}
