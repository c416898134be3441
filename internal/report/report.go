// Package report turns kernel timings into bandwidth figures and renders
// them as a text table, CSV or a PNG chart.
package report

import (
	"fmt"
	"slices"
	"time"
)

// Function names, in report order.
const (
	Copy  = "Copy"
	Mul   = "Mul"
	Add   = "Add"
	Triad = "Triad"
	Dot   = "Dot"
)

// Functions lists the benchmarked functions in report order.
var Functions = []string{Copy, Mul, Add, Triad, Dot}

// arraysTouched is the number of arrays each function reads or writes.
var arraysTouched = map[string]uint64{
	Copy:  2,
	Mul:   2,
	Add:   3,
	Triad: 3,
	Dot:   2,
}

// BytesPerCall returns the bytes one call of function moves over n
// elements of elemSize bytes.
func BytesPerCall(function string, n, elemSize int) (uint64, error) {
	k, ok := arraysTouched[function]
	if !ok {
		return 0, fmt.Errorf("report: unknown function %q", function)
	}
	return k * uint64(n) * uint64(elemSize), nil
}

// Result holds the timings of one function.
type Result struct {
	Function string

	// Bytes is the traffic of one call.
	Bytes uint64

	// Times has one entry per iteration.
	Times []time.Duration
}

// Stats summarizes a Result.
type Stats struct {
	Min, Max, Avg time.Duration

	// MBps is the bandwidth of the fastest call in 10^6 bytes per second.
	MBps float64
}

// Stats computes the statistics over every iteration but the first,
// which includes warm-up costs. It needs at least two timings.
func (r Result) Stats() (Stats, error) {
	if len(r.Times) < 2 {
		return Stats{}, fmt.Errorf("report: %s: need at least 2 timings, have %d", r.Function, len(r.Times))
	}
	times := r.Times[1:]
	var total time.Duration
	for _, t := range times {
		total += t
	}
	s := Stats{
		Min: slices.Min(times),
		Max: slices.Max(times),
		Avg: total / time.Duration(len(times)),
	}
	s.MBps = Bandwidth(r.Bytes, s.Min)
	return s, nil
}

// Bandwidth returns bytes/d in 10^6 bytes per second. A zero duration
// yields zero.
func Bandwidth(bytes uint64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return 1e-6 * float64(bytes) / d.Seconds()
}

// Header describes a benchmark run.
type Header struct {
	Version     string
	Platform    string
	Device      string
	Driver      string
	Precision   string
	ArraySize   int
	ElementSize int
	NumTimes    int
}

// ArrayBytes is the size of one array.
func (h Header) ArrayBytes() uint64 { return uint64(h.ArraySize) * uint64(h.ElementSize) }

// TotalBytes is the size of the three arrays.
func (h Header) TotalBytes() uint64 { return 3 * h.ArrayBytes() }
