package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// hostConfig restricts the run to a small host device.
const hostConfig = `
platforms: [host]
array_size: 4096
num_times: 3
host:
  name: "test host"
  workers: 2
  global_memory_mb: 64
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunBenchmark(t *testing.T) {
	cfg := writeFile(t, "cfg.yaml", hostConfig)
	for _, precision := range []struct {
		args []string
		name string
	}{
		{nil, "double"},
		{[]string{"--float"}, "float"},
	} {
		t.Run(precision.name, func(t *testing.T) {
			args := append([]string{"--config", cfg}, precision.args...)
			code, out, errOut := runCLI(t, args...)
			if code != exitOK {
				t.Fatalf("run() = %d, want %d\nstderr:\n%s", code, exitOK, errOut)
			}
			for _, want := range []string{"Precision: " + precision.name, "Using host device test host", "Function", "Copy", "Mul", "Add", "Triad", "Dot"} {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	cfg := writeFile(t, "cfg.yaml", hostConfig)
	chart := filepath.Join(t.TempDir(), "bw.png")
	code, out, errOut := runCLI(t, "--config", cfg, "-s", "2048", "-n", "2", "--wgsize", "128", "--csv", "--chart", chart)
	if code != exitOK {
		t.Fatalf("run() = %d\nstderr:\n%s", code, errOut)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 6 || !strings.HasPrefix(lines[0], "function,") {
		t.Fatalf("CSV output = %q", out)
	}
	if !strings.HasPrefix(lines[1], "Copy,2,2048,8,") {
		t.Errorf("Copy row = %q, want num_times 2, 2048 elements of 8 bytes", lines[1])
	}

	f, err := os.Open(chart)
	if err != nil {
		t.Fatalf("chart not written: %v", err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Errorf("chart is not a PNG: %v", err)
	}
}

func TestRunList(t *testing.T) {
	cfg := writeFile(t, "cfg.yaml", hostConfig+"  devices: 2\n")
	code, out, _ := runCLI(t, "--config", cfg, "--list")
	if code != exitOK {
		t.Fatalf("run(--list) = %d", code)
	}
	if !strings.HasPrefix(out, "Devices:\n0: test host #0 (") || !strings.Contains(out, "\n1: test host #1 (") {
		t.Errorf("listing = %q", out)
	}
}

func TestRunErrors(t *testing.T) {
	cfg := writeFile(t, "cfg.yaml", hostConfig)
	noDouble := writeFile(t, "nodouble.yaml", hostConfig+"  double_precision: false\n")
	tiny := writeFile(t, "tiny.yaml", strings.Replace(hostConfig, "global_memory_mb: 64", "global_memory_mb: 1", 1))
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"unknown flag", []string{"--bogus"}, exitUsage, ""},
		{"missing config", []string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, exitUsage, "failed to read config"},
		{"one iteration", []string{"--config", cfg, "-n", "1"}, exitUsage, "num_times"},
		{"indivisible array", []string{"--config", cfg, "-s", "1000"}, exitUsage, "multiple"},
		{"bad device", []string{"--config", cfg, "--device", "3"}, exitDevice, "invalid device index"},
		{"no double precision", []string{"--config", noDouble}, exitDevice, "--float"},
		{"too large", []string{"--config", tiny, "-s", "1048576"}, exitDevice, "exceeds maximum allocation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, tt.args...)
			if code != tt.wantCode {
				t.Errorf("run() = %d, want %d\nstderr:\n%s", code, tt.wantCode, errOut)
			}
			if tt.wantErr != "" && !strings.Contains(errOut, tt.wantErr) {
				t.Errorf("stderr = %q, want it to contain %q", errOut, tt.wantErr)
			}
		})
	}
}

func TestCheckSolution(t *testing.T) {
	const n, numTimes = 256, 10
	goldA, goldB, goldC := 0.1, 0.2, 0.0
	for range numTimes {
		goldC = goldA
		goldB = 0.3 * goldC
		goldC = goldA + goldB
		goldA = goldB + 0.3*goldC
	}
	a, b, c := make([]float64, n), make([]float64, n), make([]float64, n)
	fillArray(a, goldA)
	fillArray(b, goldB)
	fillArray(c, goldC)
	sum := goldA * goldB * n

	if f := checkSolution(numTimes, a, b, c, sum); len(f) != 0 {
		t.Fatalf("checkSolution() = %v, want no failures", f)
	}

	b[7] += 1
	f := checkSolution(numTimes, a, b, c, sum*1.01)
	if len(f) != 2 {
		t.Fatalf("checkSolution() = %v, want failures on b[] and sum", f)
	}
	if !strings.Contains(f[0], "b[]") || !strings.Contains(f[1], "sum") {
		t.Errorf("checkSolution() = %v", f)
	}
}
