package thread

import (
	"bytes"
	"runtime"
	"strconv"
)

// currentGoroutineID parses the numeric id out of this goroutine's
// runtime.Stack header. Used only to back assertOwningGoroutine; never
// on a hot path callers should rely on for anything else.
func currentGoroutineID() int64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	i := bytes.IndexByte(b, ' ')
	if i < 0 {
		return -1
	}
	n, err := strconv.ParseInt(string(b[:i]), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// assertOwningGoroutine panics if called from a goroutine other than
// the one that ran Initialize, catching violations of spec.md §5's
// "per-core chunk, read set, write set, log buffer: mutated only by
// the owning thread" at the point they happen instead of as a data race
// discovered much later.
func (t *Thread) assertOwningGoroutine() {
	if t.ownerGoroutine == 0 {
		return // Initialize not yet called; nothing to check against.
	}
	if id := currentGoroutineID(); id != t.ownerGoroutine {
		panic("thread: Thread method called from a goroutine other than its owning one")
	}
}
