//go:build !amd64

package scene

func enableFlushToZero() func() {
	return func() {}
}
