package assorted

import "testing"

// There is nothing to assert about a memory fence's effect in a
// single-threaded test beyond "it does not panic and returns". The
// concurrency tests in mcs/ and rendezvous/ exercise these fences
// under real contention.
func TestFencesDoNotPanic(t *testing.T) {
	MemoryFenceAcquire()
	MemoryFenceRelease()
	MemoryFenceAcqRel()
	MemoryFenceConsume()
	MemoryFenceSeqCst()
}
