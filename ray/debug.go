//go:build rtdebug

package ray

// DebugChecks is true when the package is built with the rtdebug tag;
// entry points then validate alignment and mapped buffers.
const DebugChecks = true
