// Package snapshotcache implements the bounded, NUMA-oblivious cache
// in front of the out-of-scope durable snapshot reader (SPEC_FULL.md
// §4.13). It backs Thread.FindOrReadASnapshotPage: a hit returns the
// cached page bytes, a miss delegates to the injected
// SnapshotPageReader and remembers the result.
package snapshotcache

import (
	"github.com/dgraph-io/ristretto/v2"

	"github.com/foedus-go/foedus/errorstack"
	"github.com/foedus-go/foedus/storage"
)

// SnapshotPageReader is the out-of-scope collaborator that knows how to
// fetch a page from durable snapshot storage. This repository ships no
// implementation other than NullSnapshotPageReader; a real one (file-
// backed, object-store-backed) lives outside this engine's scope
// (spec.md §1 "file I/O and snapshot durability").
type SnapshotPageReader interface {
	ReadPage(id storage.SnapshotPointer) (storage.Page, error)
}

// NullSnapshotPageReader always reports the page as not found. Useful
// for tests and for storages that have never been snapshotted.
type NullSnapshotPageReader struct{}

// ReadPage implements SnapshotPageReader.
func (NullSnapshotPageReader) ReadPage(id storage.SnapshotPointer) (storage.Page, error) {
	return nil, errorstack.Newf(errorstack.CodeSnapshotReadFailed, "snapshotcache: no snapshot backing for pointer %d", id)
}

// Options configures a Cache's capacity.
type Options struct {
	// MaxCost bounds the cache's total cost, in bytes of cached page
	// data. Ristretto tracks admission against this budget internally.
	MaxCost int64
	// NumCounters sizes ristretto's internal frequency sketch; the
	// upstream guidance is roughly 10x the number of items you expect
	// to hold at once. Defaults to a reasonable value derived from
	// MaxCost / PageSize when left zero.
	NumCounters int64
}

// DefaultOptions returns Options sized for maxCostBytes of cached pages.
func DefaultOptions(maxCostBytes int64) Options {
	expectedItems := maxCostBytes / storage.PageSize
	if expectedItems < 1 {
		expectedItems = 1
	}
	return Options{
		MaxCost:     maxCostBytes,
		NumCounters: expectedItems * 10,
	}
}

// Stats tallies cache outcomes, as returned by Cache.Stats. Evictions
// are not counted, and none of these counts is exported to telemetry.
type Stats struct {
	Hits, Misses, ReadFailures uint64
}

// Cache is the snapshot page cache fronting a SnapshotPageReader.
type Cache struct {
	reader SnapshotPageReader
	cache  *ristretto.Cache[storage.SnapshotPointer, storage.Page]

	hits, misses, readFailures atomicCounter
}

// atomicCounter is a tiny non-atomic counter: Cache's callers are
// expected to be one Thread at a time (spec.md's per-thread ownership
// model), so no synchronization is needed here beyond what ristretto
// itself already provides for its own internal state.
type atomicCounter uint64

// NewCache builds a Cache of the given capacity, reading through to
// reader on misses.
func NewCache(opts Options, reader SnapshotPageReader) (*Cache, error) {
	rc, err := ristretto.NewCache(&ristretto.Config[storage.SnapshotPointer, storage.Page]{
		NumCounters: opts.NumCounters,
		MaxCost:     opts.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errorstack.Wrap(err, "snapshotcache: constructing ristretto cache")
	}
	return &Cache{reader: reader, cache: rc}, nil
}

// FindOrRead returns the cached page for id if present; otherwise it
// reads through the configured SnapshotPageReader, caches the result,
// and returns it (spec.md §4.8 "find_or_read_a_snapshot_page").
func (c *Cache) FindOrRead(id storage.SnapshotPointer) (storage.Page, error) {
	if page, ok := c.cache.Get(id); ok {
		c.hits++
		return page, nil
	}
	c.misses++
	page, err := c.reader.ReadPage(id)
	if err != nil {
		c.readFailures++
		return nil, errorstack.Wrap(err, "snapshotcache: read-through miss")
	}
	c.cache.Set(id, page, int64(len(page)))
	return page, nil
}

// Invalidate drops id from the cache, if present. Used when a caller
// knows a cached snapshot page has been superseded.
func (c *Cache) Invalidate(id storage.SnapshotPointer) {
	c.cache.Del(id)
}

// Stats returns a snapshot of this cache's hit/miss counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: uint64(c.hits), Misses: uint64(c.misses), ReadFailures: uint64(c.readFailures)}
}

// Close releases ristretto's background goroutines. Safe to call once;
// Engine.Uninitialize calls it.
func (c *Cache) Close() {
	c.cache.Close()
}
