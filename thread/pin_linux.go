//go:build linux

package thread

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// PinToCore locks the calling goroutine to its current OS thread and
// restricts that OS thread's scheduling affinity to cpu, grounded on
// the Linux-only sched_setaffinity pattern other_examples/
// 23skdu-longbow__numa_allocator.go uses for BindGoroutineToNode.
// Must be called from the goroutine that will run as this core's
// worker, before any work is dispatched to it.
func PinToCore(cpu int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
