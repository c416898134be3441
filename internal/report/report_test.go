package report

import (
	"bytes"
	"encoding/csv"
	"image/png"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"
)

func TestBytesPerCall(t *testing.T) {
	tests := []struct {
		function string
		want     uint64
	}{
		{Copy, 2 * 1024 * 8},
		{Mul, 2 * 1024 * 8},
		{Add, 3 * 1024 * 8},
		{Triad, 3 * 1024 * 8},
		{Dot, 2 * 1024 * 8},
	}
	for _, tt := range tests {
		got, err := BytesPerCall(tt.function, 1024, 8)
		if err != nil {
			t.Fatalf("BytesPerCall(%s) error = %v", tt.function, err)
		}
		if got != tt.want {
			t.Errorf("BytesPerCall(%s) = %d, want %d", tt.function, got, tt.want)
		}
	}
	if _, err := BytesPerCall("Scale", 1024, 8); err == nil {
		t.Error("BytesPerCall(Scale) error = nil, want error")
	}
}

func TestStatsSkipsFirstIteration(t *testing.T) {
	r := Result{
		Function: Copy,
		Bytes:    2_000_000,
		Times:    []time.Duration{time.Second, 2 * time.Millisecond, 4 * time.Millisecond, 3 * time.Millisecond},
	}
	s, err := r.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if s.Min != 2*time.Millisecond {
		t.Errorf("Min = %v, want 2ms", s.Min)
	}
	if s.Max != 4*time.Millisecond {
		t.Errorf("Max = %v, want 4ms (first iteration excluded)", s.Max)
	}
	if s.Avg != 3*time.Millisecond {
		t.Errorf("Avg = %v, want 3ms", s.Avg)
	}
	if math.Abs(s.MBps-1000) > 1e-9 {
		t.Errorf("MBps = %v, want 1000", s.MBps)
	}

	if _, err := (Result{Function: Dot, Times: []time.Duration{time.Second}}).Stats(); err == nil {
		t.Error("Stats() with one timing: error = nil, want error")
	}
}

func TestBandwidth(t *testing.T) {
	if got := Bandwidth(3_000_000, time.Second); got != 3 {
		t.Errorf("Bandwidth() = %v, want 3", got)
	}
	if got := Bandwidth(100, 0); got != 0 {
		t.Errorf("Bandwidth(zero duration) = %v, want 0", got)
	}
}

func sampleResults() []Result {
	results := make([]Result, len(Functions))
	for i, f := range Functions {
		b, _ := BytesPerCall(f, 1<<25, 8)
		results[i] = Result{
			Function: f,
			Bytes:    b,
			Times:    []time.Duration{50 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond},
		}
	}
	return results
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTable(&buf, Printer(language.English), sampleResults()); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1+len(Functions) {
		t.Fatalf("WriteTable() wrote %d lines, want %d:\n%s", len(lines), 1+len(Functions), out)
	}
	if !strings.HasPrefix(lines[0], "Function") || !strings.Contains(lines[0], "MBytes/sec") {
		t.Errorf("header = %q", lines[0])
	}
	// Copy moves 2*2^25*8 bytes in 20ms: 26,843.546 MB/s.
	if !strings.Contains(lines[1], "26,843.546") {
		t.Errorf("Copy row = %q, want grouped bandwidth 26,843.546", lines[1])
	}
}

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	WriteHeader(&buf, Printer(language.English), Header{
		Version:     "0.1.0",
		Platform:    "host",
		Device:      "cpu",
		Driver:      "go",
		Precision:   "double",
		ArraySize:   1 << 25,
		ElementSize: 8,
		NumTimes:    100,
	})
	out := buf.String()
	for _, want := range []string{"Version: 0.1.0", "Running kernels 100 times", "Precision: double", "268.4 MB (=0.3 GB)", "805.3 MB (=0.8 GB)"} {
		if !strings.Contains(out, want) {
			t.Errorf("WriteHeader() output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	h := Header{ArraySize: 1 << 25, ElementSize: 8, NumTimes: 3}
	if err := WriteCSV(&buf, h, sampleResults()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("csv.ReadAll() error = %v", err)
	}
	if len(records) != 1+len(Functions) {
		t.Fatalf("WriteCSV() wrote %d records, want %d", len(records), 1+len(Functions))
	}
	if records[1][0] != Copy || records[1][1] != "3" || records[1][3] != "8" {
		t.Errorf("Copy record = %v", records[1])
	}
	if records[1][4] != "26843.546" {
		t.Errorf("Copy bandwidth = %q, want 26843.546", records[1][4])
	}
}

func TestChart(t *testing.T) {
	img, err := Chart("test", sampleResults())
	if err != nil {
		t.Fatalf("Chart() error = %v", err)
	}
	if img.Bounds().Dx() != chartWidth || img.Bounds().Dy() != chartHeight {
		t.Errorf("Chart() bounds = %v", img.Bounds())
	}
	// The tallest bar reaches the top of the plot area.
	hasBar := false
	for x := marginLeft; x < chartWidth-marginRight; x++ {
		if img.RGBAAt(x, marginTop+1) == chartBar {
			hasBar = true
			break
		}
	}
	if !hasBar {
		t.Error("Chart() has no bar reaching the top of the plot")
	}

	path := filepath.Join(t.TempDir(), "chart.png")
	if err := SaveChart(path, "test", sampleResults()); err != nil {
		t.Fatalf("SaveChart() error = %v", err)
	}
	var buf bytes.Buffer
	if err := WriteChart(&buf, "test", sampleResults()); err != nil {
		t.Fatalf("WriteChart() error = %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Errorf("png.Decode() error = %v", err)
	}
}
