package snapshotcache

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foedus-go/foedus/errorstack"
	"github.com/foedus-go/foedus/storage"
)

type countingReader struct {
	reads atomic.Int64
	fail  bool
}

func (r *countingReader) ReadPage(id storage.SnapshotPointer) (storage.Page, error) {
	r.reads.Add(1)
	if r.fail {
		return nil, errorstack.New(errorstack.CodeSnapshotReadFailed, "injected failure")
	}
	page := storage.NewPage()
	page.InitHeader(storage.StorageID(id), 0, 0, 0, 1)
	return page, nil
}

func TestFindOrReadCachesAfterFirstMiss(t *testing.T) {
	reader := &countingReader{}
	cache, err := NewCache(DefaultOptions(1<<20), reader)
	require.NoError(t, err)
	defer cache.Close()

	page1, err := cache.FindOrRead(storage.SnapshotPointer(7))
	require.NoError(t, err)
	require.EqualValues(t, 7, page1.StorageID())

	cache.cache.Wait()

	page2, err := cache.FindOrRead(storage.SnapshotPointer(7))
	require.NoError(t, err)
	require.EqualValues(t, 7, page2.StorageID())

	require.EqualValues(t, 1, reader.reads.Load())
	stats := cache.Stats()
	require.EqualValues(t, 1, stats.Hits)
	require.EqualValues(t, 1, stats.Misses)
}

func TestFindOrReadPropagatesReaderFailure(t *testing.T) {
	reader := &countingReader{fail: true}
	cache, err := NewCache(DefaultOptions(1<<20), reader)
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.FindOrRead(storage.SnapshotPointer(1))
	require.Error(t, err)
	require.Equal(t, errorstack.CodeSnapshotReadFailed, errorstack.CodeOf(err))
	require.EqualValues(t, 1, cache.Stats().Misses)
	require.EqualValues(t, 1, cache.Stats().ReadFailures)
}

func TestInvalidateForcesReread(t *testing.T) {
	reader := &countingReader{}
	cache, err := NewCache(DefaultOptions(1<<20), reader)
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.FindOrRead(storage.SnapshotPointer(3))
	require.NoError(t, err)
	cache.cache.Wait()

	cache.Invalidate(storage.SnapshotPointer(3))
	cache.cache.Wait()

	_, err = cache.FindOrRead(storage.SnapshotPointer(3))
	require.NoError(t, err)
	require.EqualValues(t, 2, reader.reads.Load())
}
