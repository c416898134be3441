// Package host provides an in-process compute platform for gpustream.
//
// The host platform executes the stream kernel program on CPU goroutines
// with the same work-group semantics as a GPU: work-items are scheduled in
// groups of the program's work-group size, each group owns private
// work-group memory, and barriers separate phases so that no lane reads a
// work-group slot before its producer has written it.
//
// Execution model:
//
//	Context queue (one goroutine, in order)
//	    └── Dispatch: groups split across Workers goroutines
//	            └── work-group: phases of lanes, barrier between phases
//
// Kernels are native Go implementations of the program's entry points,
// selected by name when the program is built. A program naming an entry
// point the platform has no implementation for fails to build.
//
// The platform registers itself as "host" on import:
//
//	import _ "github.com/gogpu/gpustream/backend/host"
//
// Device attributes (memory sizes, double precision, worker count) are
// configurable with [Config] so that capacity and precision checks can be
// exercised without special hardware.
package host
