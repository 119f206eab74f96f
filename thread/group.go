package thread

import "github.com/foedus-go/foedus/errorstack"

// Group owns every Thread in the engine and gives each one its own
// goroutine pinned to its core, so callers dispatch work onto a
// specific thread rather than that work migrating across OS threads
// mid-transaction (spec.md §5 "Transactions are non-preemptive within
// a thread"). Threads are initialized and uninitialized in ascending
// global-ordinal order, deterministically, per spec.md §3 "Thread
// lifecycle".
type Group struct {
	threads []*Thread
	cpus    []int // cpus[i] is the CPU to pin threads[i]'s goroutine to
	inbox   []chan func(*Thread)
	done    []chan struct{}
}

// NewGroup builds a Group over threads, each pinned to the
// correspondingly-indexed entry of cpus.
func NewGroup(threads []*Thread, cpus []int) *Group {
	if len(threads) != len(cpus) {
		panic("thread: NewGroup requires one cpu per thread")
	}
	return &Group{
		threads: threads,
		cpus:    cpus,
		inbox:   make([]chan func(*Thread), len(threads)),
		done:    make([]chan struct{}, len(threads)),
	}
}

// Threads returns every thread in ascending global-ordinal order.
func (g *Group) Threads() []*Thread { return g.threads }

// ByGlobalOrdinal returns the thread with the given global ordinal.
func (g *Group) ByGlobalOrdinal(ordinal int32) *Thread {
	for _, th := range g.threads {
		if th.globalOrdinal == ordinal {
			return th
		}
	}
	return nil
}

// Initialize spins up one pinned goroutine per thread, in ascending
// global-ordinal order, each of which calls Thread.Initialize from
// inside its pinned goroutine before entering its work loop.
func (g *Group) Initialize() error {
	var batch errorstack.Batch
	for i, th := range g.threads {
		inbox := make(chan func(*Thread))
		done := make(chan struct{})
		g.inbox[i] = inbox
		g.done[i] = done

		initErr := make(chan error, 1)
		go g.run(th, g.cpus[i], inbox, done, initErr)
		batch.Add(<-initErr)
	}
	return batch.Summarize()
}

func (g *Group) run(th *Thread, cpu int, inbox <-chan func(*Thread), done chan<- struct{}, initErr chan<- error) {
	if err := PinToCore(cpu); err != nil {
		initErr <- errorstack.Wrap(err, "pinning thread goroutine to core")
		close(done)
		return
	}
	initErr <- th.Initialize()
	for task := range inbox {
		task(th)
	}
	close(done)
}

// Submit runs fn on the thread with the given global ordinal, from
// inside that thread's own pinned goroutine, and blocks until fn
// returns.
func (g *Group) Submit(ordinal int32, fn func(*Thread)) {
	for i, th := range g.threads {
		if th.globalOrdinal == ordinal {
			reply := make(chan struct{})
			g.inbox[i] <- func(t *Thread) {
				fn(t)
				close(reply)
			}
			<-reply
			return
		}
	}
	panic("thread: Submit on unknown global ordinal")
}

// Uninitialize stops every thread's goroutine and calls
// Thread.Uninitialize from inside it, in descending global-ordinal
// order (the reverse of Initialize), aggregating failures.
func (g *Group) Uninitialize() error {
	var batch errorstack.Batch
	for i := len(g.threads) - 1; i >= 0; i-- {
		uninitErr := make(chan error, 1)
		g.inbox[i] <- func(t *Thread) { uninitErr <- t.Uninitialize() }
		batch.Add(<-uninitErr)
		close(g.inbox[i])
		<-g.done[i]
	}
	return batch.Summarize()
}
