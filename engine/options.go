// Package engine wires memory, thread, storage/array, and telemetry
// into the single process-wide object spec.md §9 calls for: "Engine,
// passed explicitly to every component's constructor rather than
// reached via globals." Grounded on SPEC_FULL.md §3 "Engine" and §4.15
// "Engine Options".
package engine

import "github.com/foedus-go/foedus/errorstack"

// Options holds the six recognized engine option keys from spec.md §6
// ("xct.max_read_set_size", "xct.max_write_set_size",
// "memory.page_pool_size_per_node", "memory.pages_for_free_pool",
// "thread.group_count", "thread.thread_count_per_group"), plus the
// telemetry knobs SPEC_FULL.md §6 adds. There is no flag/env/file
// parsing here (spec.md §1, §6): a caller builds Options in Go code,
// typically starting from EmitDefaults.
type Options struct {
	XctMaxReadSetSize         int
	XctMaxWriteSetSize        int
	MemoryPagePoolSizePerNode uint64 // bytes
	MemoryPagesForFreePool    uint64
	ThreadGroupCount          int
	ThreadCountPerGroup       int

	TelemetryEnabled        bool
	TelemetryServiceName    string
	TelemetryPrometheusPort int
	TelemetryLogLevel       string
	TelemetryLogFormat      string
}

// EmitDefaults returns an Options populated with the engine's chosen
// defaults (spec.md §6: "defaults chosen by the engine, validated at
// initialize"). A 64 MiB page pool per node, sized for a handful of
// small arrays without requiring a caller to do page-size arithmetic.
func EmitDefaults() Options {
	return Options{
		XctMaxReadSetSize:         64,
		XctMaxWriteSetSize:        64,
		MemoryPagePoolSizePerNode: 64 << 20,
		MemoryPagesForFreePool:    32,
		ThreadGroupCount:          1,
		ThreadCountPerGroup:       2,

		TelemetryEnabled:        false,
		TelemetryServiceName:    "foedus-go",
		TelemetryPrometheusPort: 9464,
		TelemetryLogLevel:       "info",
		TelemetryLogFormat:      "json",
	}
}

// Validate reports the first invalid field found (spec.md §6:
// "validated at initialize"). All six recognized keys are integers and
// must be positive; nothing here second-guesses the caller's choice of
// magnitude beyond that.
func (o Options) Validate() error {
	switch {
	case o.XctMaxReadSetSize <= 0:
		return errorstack.New(errorstack.CodeBadAlignment, "engine: xct.max_read_set_size must be positive")
	case o.XctMaxWriteSetSize <= 0:
		return errorstack.New(errorstack.CodeBadAlignment, "engine: xct.max_write_set_size must be positive")
	case o.MemoryPagePoolSizePerNode == 0:
		return errorstack.New(errorstack.CodeBadAlignment, "engine: memory.page_pool_size_per_node must be positive")
	case o.MemoryPagesForFreePool == 0:
		return errorstack.New(errorstack.CodeBadAlignment, "engine: memory.pages_for_free_pool must be positive")
	case o.ThreadGroupCount <= 0:
		return errorstack.New(errorstack.CodeBadAlignment, "engine: thread.group_count must be positive")
	case o.ThreadCountPerGroup <= 0:
		return errorstack.New(errorstack.CodeBadAlignment, "engine: thread.thread_count_per_group must be positive")
	}
	return nil
}
