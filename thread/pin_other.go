//go:build !linux

package thread

import "runtime"

// PinToCore locks the calling goroutine to its current OS thread.
// True CPU affinity is a Linux-only syscall (sched_setaffinity); on
// other platforms we fall back to just pinning the goroutine so it at
// least never migrates OS threads mid-transaction, the weaker
// guarantee this engine's non-Linux portability story relies on.
func PinToCore(cpu int) error {
	runtime.LockOSThread()
	return nil
}
