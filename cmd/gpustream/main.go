// Command gpustream measures the memory bandwidth of a compute device with
// the copy, mul, add, triad and dot kernels.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gogpu/gpustream"
	"github.com/gogpu/gpustream/backend/wgpu"
	"github.com/gogpu/gpustream/internal/config"
)

// Exit codes.
const (
	exitOK         = 0
	exitUsage      = 1
	exitDevice     = 2
	exitValidation = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gpustream", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		list       = fs.Bool("list", false, "list available devices and exit")
		device     = fs.Int("device", 0, "device index")
		arraySize  = fs.Int("arraysize", config.DefaultArraySize, "elements per array")
		numTimes   = fs.Int("numtimes", config.DefaultNumTimes, "iterations (at least 2)")
		useFloat   = fs.Bool("float", false, "use single precision instead of double")
		wgSize     = fs.Uint("wgsize", config.DefaultWorkgroupSize, "work-group size")
		configPath = fs.String("config", "", "YAML configuration file")
		chart      = fs.String("chart", "", "write a PNG bandwidth chart")
		csvOut     = fs.Bool("csv", false, "print results as CSV")
		verbose    = fs.Bool("verbose", false, "debug logging")
	)
	fs.IntVar(arraySize, "s", config.DefaultArraySize, "shorthand for --arraysize")
	fs.IntVar(numTimes, "n", config.DefaultNumTimes, "shorthand for --numtimes")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "gpustream: %v\n", err)
			return exitUsage
		}
		cfg = loaded
	}

	// Flags given on the command line win over the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device = *device
		case "arraysize", "s":
			cfg.ArraySize = *arraySize
		case "numtimes", "n":
			cfg.NumTimes = *numTimes
		case "float":
			if *useFloat {
				cfg.Precision = config.PrecisionFloat
			} else {
				cfg.Precision = config.PrecisionDouble
			}
		case "wgsize":
			cfg.WorkgroupSize = uint32(*wgSize)
		case "chart":
			cfg.Chart = *chart
		case "verbose":
			if *verbose {
				cfg.LogLevel = "debug"
			}
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "gpustream: %v\n", err)
		return exitUsage
	}

	level, _ := cfg.Level()
	gpustream.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
	defer gpustream.SetLogger(nil)

	wgpu.Configure(cfg.WGPUPlatform())
	platforms, err := cfg.SelectPlatforms()
	if err != nil {
		fmt.Fprintf(stderr, "gpustream: %v\n", err)
		return exitUsage
	}
	cat := gpustream.NewCatalog(platforms...)

	if *list {
		listDevices(stdout, cat)
		return exitOK
	}

	b := bench{cfg: cfg, cat: cat, csv: *csvOut, stdout: stdout, stderr: stderr}
	if cfg.Double() {
		return runBenchmark[float64](b)
	}
	return runBenchmark[float32](b)
}

func listDevices(w io.Writer, cat *gpustream.Catalog) {
	devices := cat.List()
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices found.")
		return
	}
	fmt.Fprintln(w, "Devices:")
	for _, d := range devices {
		fmt.Fprintf(w, "%d: %s (%s)\n", d.Index, d.Name, d.Driver)
	}
	fmt.Fprintln(w)
}
