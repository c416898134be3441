package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Printer formats numbers for tag, e.g. with thousands separators.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

// WriteHeader prints the run description.
func WriteHeader(w io.Writer, p *message.Printer, h Header) {
	p.Fprintf(w, "gpustream\n")
	p.Fprintf(w, "Version: %s\n", h.Version)
	p.Fprintf(w, "Running kernels %d times\n", h.NumTimes)
	p.Fprintf(w, "Precision: %s\n", h.Precision)
	p.Fprintf(w, "Array size: %.1f MB (=%.1f GB)\n", mega(h.ArrayBytes()), giga(h.ArrayBytes()))
	p.Fprintf(w, "Total size: %.1f MB (=%.1f GB)\n", mega(h.TotalBytes()), giga(h.TotalBytes()))
	p.Fprintf(w, "Using %s device %s\n", h.Platform, h.Device)
	p.Fprintf(w, "Driver: %s\n", h.Driver)
}

func mega(b uint64) float64 { return float64(b) * 1e-6 }
func giga(b uint64) float64 { return float64(b) * 1e-9 }

// WriteTable prints one aligned row per result.
func WriteTable(w io.Writer, p *message.Printer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Function\tMBytes/sec\tMin (sec)\tMax\tAverage\t")
	for _, r := range results {
		s, err := r.Stats()
		if err != nil {
			return err
		}
		p.Fprintf(tw, "%s\t%.3f\t%.5f\t%.5f\t%.5f\t\n",
			r.Function, s.MBps, s.Min.Seconds(), s.Max.Seconds(), s.Avg.Seconds())
	}
	return tw.Flush()
}

// WriteCSV prints the results with a header row for machine consumption.
func WriteCSV(w io.Writer, h Header, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"function", "num_times", "n_elements", "sizeof",
		"max_mbytes_per_sec", "min_runtime", "max_runtime", "avg_runtime",
	}); err != nil {
		return err
	}
	for _, r := range results {
		s, err := r.Stats()
		if err != nil {
			return err
		}
		if err := cw.Write([]string{
			r.Function,
			strconv.Itoa(h.NumTimes),
			strconv.Itoa(h.ArraySize),
			strconv.Itoa(h.ElementSize),
			strconv.FormatFloat(s.MBps, 'f', 3, 64),
			strconv.FormatFloat(s.Min.Seconds(), 'f', 9, 64),
			strconv.FormatFloat(s.Max.Seconds(), 'f', 9, 64),
			strconv.FormatFloat(s.Avg.Seconds(), 'f', 9, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
