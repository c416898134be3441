package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/text/language"

	"github.com/gogpu/gpustream"
	"github.com/gogpu/gpustream/internal/config"
	"github.com/gogpu/gpustream/internal/report"
)

// Starting values of the arrays.
const (
	startA = 0.1
	startB = 0.2
	startC = 0.0
)

// bench holds what a benchmark run needs besides the element type.
type bench struct {
	cfg    *config.Config
	cat    *gpustream.Catalog
	csv    bool
	stdout io.Writer
	stderr io.Writer
}

func runBenchmark[T gpustream.Float](b bench) int {
	cfg := b.cfg
	e, err := gpustream.New[T](b.cat, cfg.ArraySize, cfg.Device,
		gpustream.WithWorkgroupSize(cfg.WorkgroupSize))
	if err != nil {
		fmt.Fprintf(b.stderr, "gpustream: %v\n", err)
		if isDeviceError(err) {
			return exitDevice
		}
		return exitUsage
	}
	defer e.Close()

	info := e.Device()
	header := report.Header{
		Version:     gpustream.Version,
		Platform:    info.Platform,
		Device:      info.Name,
		Driver:      info.Driver,
		Precision:   e.Element().Name,
		ArraySize:   cfg.ArraySize,
		ElementSize: e.Element().Size,
		NumTimes:    cfg.NumTimes,
	}
	printer := report.Printer(language.English)
	if !b.csv {
		report.WriteHeader(b.stdout, printer, header)
		fmt.Fprintln(b.stdout)
	}

	n := cfg.ArraySize
	a, bb, c := make([]T, n), make([]T, n), make([]T, n)
	fillArray(a, startA)
	fillArray(bb, startB)
	fillArray(c, startC)
	if err := e.WriteArrays(a, bb, c); err != nil {
		fmt.Fprintf(b.stderr, "gpustream: %v\n", err)
		return exitDevice
	}

	results, sum, err := timeKernels(e, cfg.NumTimes)
	if err != nil {
		fmt.Fprintf(b.stderr, "gpustream: %v\n", err)
		return exitDevice
	}

	if err := e.ReadArrays(a, bb, c); err != nil {
		fmt.Fprintf(b.stderr, "gpustream: %v\n", err)
		return exitDevice
	}
	failures := checkSolution(cfg.NumTimes, a, bb, c, sum)
	for _, f := range failures {
		fmt.Fprintln(b.stderr, f)
	}

	if b.csv {
		err = report.WriteCSV(b.stdout, header, results)
	} else {
		err = report.WriteTable(b.stdout, printer, results)
	}
	if err != nil {
		fmt.Fprintf(b.stderr, "gpustream: %v\n", err)
		return exitUsage
	}
	if cfg.Chart != "" {
		title := fmt.Sprintf("%s, %s, %d elements", info.Name, header.Precision, n)
		if err := report.SaveChart(cfg.Chart, title, results); err != nil {
			fmt.Fprintf(b.stderr, "gpustream: %v\n", err)
			return exitUsage
		}
	}

	if len(failures) > 0 {
		return exitValidation
	}
	return exitOK
}

// isDeviceError reports whether err is one of the device or build errors.
func isDeviceError(err error) bool {
	return errors.Is(err, gpustream.ErrInvalidDeviceIndex) ||
		errors.Is(err, gpustream.ErrUnsupportedPrecision) ||
		errors.Is(err, gpustream.ErrBuildFailure) ||
		errors.Is(err, gpustream.ErrInsufficientMemory)
}

func fillArray[T gpustream.Float](s []T, v T) {
	for i := range s {
		s[i] = v
	}
}

// timeKernels runs copy, mul, add, triad and dot numTimes times and returns
// the timings and the last dot product.
func timeKernels[T gpustream.Float](e *gpustream.Engine[T], numTimes int) ([]report.Result, T, error) {
	n, size := e.ArraySize(), e.Element().Size
	results := make([]report.Result, len(report.Functions))
	for i, f := range report.Functions {
		bytes, err := report.BytesPerCall(f, n, size)
		if err != nil {
			return nil, 0, err
		}
		results[i] = report.Result{Function: f, Bytes: bytes, Times: make([]time.Duration, 0, numTimes)}
	}

	var sum T
	ops := []func() error{
		e.Copy,
		e.Mul,
		e.Add,
		e.Triad,
		func() (err error) {
			sum, err = e.Dot()
			return err
		},
	}
	for range numTimes {
		for i, op := range ops {
			start := time.Now()
			if err := op(); err != nil {
				return nil, 0, err
			}
			results[i].Times = append(results[i].Times, time.Since(start))
		}
	}
	return results, sum, nil
}

// checkSolution replays the kernels on scalars and compares the device
// arrays and dot product against them. It returns one message per failed
// check.
func checkSolution[T gpustream.Float](numTimes int, a, b, c []T, sum T) []string {
	goldA, goldB, goldC := T(startA), T(startB), T(startC)
	scalar := T(gpustream.StartScalar)
	for range numTimes {
		goldC = goldA
		goldB = scalar * goldC
		goldC = goldA + goldB
		goldA = goldB + scalar*goldC
	}
	goldSum := goldA * goldB * T(len(a))

	eps := epsilon[T]() * 100
	var failures []string
	for _, arr := range []struct {
		name string
		data []T
		gold T
	}{{"a", a, goldA}, {"b", b, goldB}, {"c", c, goldC}} {
		if errAvg := averageError(arr.data, arr.gold); errAvg > eps {
			failures = append(failures, fmt.Sprintf("Validation failed on %s[]. Average error %g", arr.name, errAvg))
		}
	}

	errSum := math.Abs(float64(sum-goldSum) / float64(goldSum))
	if errSum > sumTolerance[T]() {
		failures = append(failures, fmt.Sprintf("Validation failed on sum. Error %g\nSum was %.12f but should be %.12f",
			errSum, float64(sum), float64(goldSum)))
	}
	return failures
}

func averageError[T gpustream.Float](s []T, gold T) float64 {
	var total float64
	for _, v := range s {
		total += math.Abs(float64(v - gold))
	}
	return total / float64(len(s))
}

// sumTolerance is the relative error allowed on the dot product. The host
// adds one float32 partial sum per work-group, which loses digits on large
// arrays.
func sumTolerance[T gpustream.Float]() float64 {
	if gpustream.ElementOf[T]().Double() {
		return 1e-8
	}
	return 1e-3
}

// epsilon is the machine epsilon of T.
func epsilon[T gpustream.Float]() float64 {
	if gpustream.ElementOf[T]().Double() {
		return 0x1p-52
	}
	return 0x1p-23
}
