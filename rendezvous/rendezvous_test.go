package rendezvous

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Scenario 1 of spec.md §8: construct; is_signaled == false; signal;
// both is_signaled and is_signaled_weak return true.
func TestSignalBasic(t *testing.T) {
	r := New()
	require.False(t, r.IsSignaledWeak())
	require.False(t, r.IsSignaled())
	r.Signal()
	require.True(t, r.IsSignaled())
	require.True(t, r.IsSignaledWeak())
}

func TestWaitThenSignalUnblocks(t *testing.T) {
	r := New()
	var ended atomic.Bool
	done := make(chan struct{})
	go func() {
		r.Wait()
		ended.Store(true)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	require.False(t, r.IsSignaledWeak())
	require.False(t, ended.Load())

	r.Signal()
	require.True(t, r.IsSignaled())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter did not observe signal")
	}
	require.True(t, ended.Load())
}

func TestSignalThenWaitReturnsImmediately(t *testing.T) {
	r := New()
	r.Signal()
	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait after signal should return immediately")
	}
}

// Scenario 2 of spec.md §8: 300 rendezvous, 4 client goroutines each
// waiting on all of them sequentially; main goroutine signals in order
// with occasional sleeps; every rendezvous ends with counter == 4, no
// deadlock, no spurious unblock before signal.
func TestManyRendezvousNoSpuriousWakeup(t *testing.T) {
	const reps = 300
	const clients = 4

	many := make([]*Rendezvous, reps)
	counters := make([]atomic.Int32, reps)
	for i := range many {
		many[i] = New()
	}

	var wg sync.WaitGroup
	wg.Add(clients)
	for c := 0; c < clients; c++ {
		go func() {
			defer wg.Done()
			for i := 0; i < reps; i++ {
				many[i].Wait()
				require.True(t, many[i].IsSignaled())
				counters[i].Add(1)
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	for i := 0; i < reps; i++ {
		require.Equal(t, int32(0), counters[i].Load())
	}

	for i := 0; i < reps; i++ {
		many[i].Signal()
		if i%3 == 0 {
			time.Sleep(10 * time.Microsecond)
		}
	}

	wg.Wait()
	for i := 0; i < reps; i++ {
		require.Equal(t, int32(clients), counters[i].Load())
	}
}
