package gpustream

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/gogpu/gpustream/backend"
	"github.com/gogpu/gpustream/backend/host"
)

func openHostDevice(t *testing.T, cfg host.Config) (backend.Device, backend.Context) {
	t.Helper()
	devs, err := host.New(cfg).Devices()
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	ctx, err := devs[0].Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(ctx.Release)
	return devs[0], ctx
}

func newHostEngine[T Float](t *testing.T, cfg host.Config, n int, opts ...Option) *Engine[T] {
	t.Helper()
	if cfg.GlobalMemory == 0 {
		cfg.GlobalMemory = 1 << 30
	}
	e, err := New[T](hostCatalog(cfg), n, 0, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// closeTo reports whether got is within rel of want, or within abs near zero.
func closeTo(got, want, rel float64) bool {
	diff := math.Abs(got - want)
	return diff <= rel*math.Abs(want) || diff <= rel
}

func randomArrays[T Float](n int, seed uint64) (a, b, c []T) {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	a, b, c = make([]T, n), make([]T, n), make([]T, n)
	for i := range n {
		a[i] = T(r.Float64())
		b[i] = T(r.Float64())
		c[i] = T(r.Float64())
	}
	return a, b, c
}

func TestEngineKernelsFloat32(t *testing.T) { testEngineKernels[float32](t, 1e-5) }
func TestEngineKernelsFloat64(t *testing.T) { testEngineKernels[float64](t, 1e-12) }

func testEngineKernels[T Float](t *testing.T, tol float64) {
	const n = 4096
	e := newHostEngine[T](t, host.Config{Workers: 4}, n)
	scalar := e.Scalar()
	a, b, c := randomArrays[T](n, 1)
	gotA, gotB, gotC := make([]T, n), make([]T, n), make([]T, n)

	load := func(t *testing.T) {
		t.Helper()
		if err := e.WriteArrays(a, b, c); err != nil {
			t.Fatalf("WriteArrays() error = %v", err)
		}
	}
	read := func(t *testing.T) {
		t.Helper()
		if err := e.ReadArrays(gotA, gotB, gotC); err != nil {
			t.Fatalf("ReadArrays() error = %v", err)
		}
	}
	check := func(t *testing.T, array string, got []T, want func(i int) T) {
		t.Helper()
		for i := range got {
			if !closeTo(float64(got[i]), float64(want(i)), tol) {
				t.Fatalf("%s[%d] = %v, want %v", array, i, got[i], want(i))
			}
		}
	}

	t.Run("copy", func(t *testing.T) {
		load(t)
		if err := e.Copy(); err != nil {
			t.Fatalf("Copy() error = %v", err)
		}
		read(t)
		check(t, "c", gotC, func(i int) T { return a[i] })
		check(t, "a", gotA, func(i int) T { return a[i] })
	})
	t.Run("mul", func(t *testing.T) {
		load(t)
		if err := e.Mul(); err != nil {
			t.Fatalf("Mul() error = %v", err)
		}
		read(t)
		check(t, "b", gotB, func(i int) T { return scalar * c[i] })
	})
	t.Run("add", func(t *testing.T) {
		load(t)
		if err := e.Add(); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		read(t)
		check(t, "c", gotC, func(i int) T { return a[i] + b[i] })
	})
	t.Run("triad", func(t *testing.T) {
		load(t)
		if err := e.Triad(); err != nil {
			t.Fatalf("Triad() error = %v", err)
		}
		read(t)
		check(t, "a", gotA, func(i int) T { return b[i] + scalar*c[i] })
	})
	t.Run("dot", func(t *testing.T) {
		load(t)
		got, err := e.Dot()
		if err != nil {
			t.Fatalf("Dot() error = %v", err)
		}
		var want float64
		for i := range a {
			want += float64(a[i]) * float64(b[i])
		}
		if !closeTo(float64(got), want, tol) {
			t.Errorf("Dot() = %v, want %v", got, want)
		}
	})
}

func TestDotScenario(t *testing.T) {
	const n = 1024
	e := newHostEngine[float32](t, host.Config{}, n, WithWorkgroupSize(64))
	a, b, c := make([]float32, n), make([]float32, n), make([]float32, n)
	for i := range n {
		a[i], b[i] = 1.0, 2.0
	}
	if err := e.WriteArrays(a, b, c); err != nil {
		t.Fatalf("WriteArrays() error = %v", err)
	}
	got, err := e.Dot()
	if err != nil {
		t.Fatalf("Dot() error = %v", err)
	}
	if got != 2048 {
		t.Errorf("Dot() = %v, want 2048", got)
	}
}

func TestDotWorkgroupSizes(t *testing.T) {
	const n = 8192
	a, b, c := randomArrays[float64](n, 7)
	var want float64
	for i := range a {
		want += a[i] * b[i]
	}
	for _, ws := range []uint32{1, 2, 32, 64, 256, 1024} {
		e := newHostEngine[float64](t, host.Config{}, n, WithWorkgroupSize(ws))
		if err := e.WriteArrays(a, b, c); err != nil {
			t.Fatalf("WriteArrays() error = %v", err)
		}
		got, err := e.Dot()
		if err != nil {
			t.Fatalf("ws=%d: Dot() error = %v", ws, err)
		}
		if !closeTo(got, want, 1e-12) {
			t.Errorf("ws=%d: Dot() = %v, want %v", ws, got, want)
		}
		if e.WorkgroupSize() != ws {
			t.Errorf("WorkgroupSize() = %d, want %d", e.WorkgroupSize(), ws)
		}
	}
}

func TestEngineAccessors(t *testing.T) {
	e := newHostEngine[float64](t, host.Config{Name: "acc"}, 2048)
	if e.ArraySize() != 2048 {
		t.Errorf("ArraySize() = %d, want 2048", e.ArraySize())
	}
	if e.WorkgroupSize() != DefaultWorkgroupSize {
		t.Errorf("WorkgroupSize() = %d, want %d", e.WorkgroupSize(), DefaultWorkgroupSize)
	}
	if e.Element() != Float64 {
		t.Errorf("Element() = %v, want %v", e.Element(), Float64)
	}
	if e.Scalar() != 0.3 {
		t.Errorf("Scalar() = %v, want 0.3", e.Scalar())
	}
	if e.Device().Name != "acc" {
		t.Errorf("Device().Name = %q, want %q", e.Device().Name, "acc")
	}
	if e.Program() == nil || e.Program().Options().Element != Float64 {
		t.Error("Program() does not reflect the engine element type")
	}
}

func TestNewUnsupportedPrecision(t *testing.T) {
	cat := hostCatalog(host.Config{NoDoublePrecision: true, GlobalMemory: 1 << 30})

	_, err := New[float64](cat, 1024, 0)
	if !errors.Is(err, ErrUnsupportedPrecision) {
		t.Fatalf("New[float64]() error = %v, want ErrUnsupportedPrecision", err)
	}
	var pe *PrecisionError
	if !errors.As(err, &pe) || pe.Device == "" {
		t.Errorf("New[float64]() error = %v, want *PrecisionError naming the device", err)
	}

	e, err := New[float32](cat, 1024, 0)
	if err != nil {
		t.Fatalf("New[float32]() error = %v", err)
	}
	e.Close()
}

func TestNewInsufficientMemory(t *testing.T) {
	const n = 1024
	// Three float32 arrays plus one partial sum per 64-lane group.
	const need = 3*n*4 + n/64*4

	tests := []struct {
		name       string
		cfg        host.Config
		wantErr    bool
		wantReason string
	}{
		{"exact fit", host.Config{GlobalMemory: need}, false, ""},
		{"one byte short", host.Config{GlobalMemory: need - 1}, true, "global memory"},
		{"without sum buffer", host.Config{GlobalMemory: 3 * n * 4}, true, "global memory"},
		{"array above max allocation", host.Config{GlobalMemory: 1 << 20, MaxAllocation: n*4 - 1}, true, "maximum allocation"},
		{"array at max allocation", host.Config{GlobalMemory: 1 << 20, MaxAllocation: n * 4}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New[float32](hostCatalog(tt.cfg), n, 0)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("New() error = %v", err)
				}
				e.Close()
				return
			}
			if !errors.Is(err, ErrInsufficientMemory) {
				t.Fatalf("New() error = %v, want ErrInsufficientMemory", err)
			}
			var me *MemoryError
			if !errors.As(err, &me) {
				t.Fatalf("New() error is not a *MemoryError")
			}
			if me.Required <= me.Available {
				t.Errorf("MemoryError = %+v, want Required > Available", me)
			}
			if !strings.Contains(me.Reason, tt.wantReason) {
				t.Errorf("Reason = %q, want it to mention %q", me.Reason, tt.wantReason)
			}
		})
	}
}

func TestNewInvalidArguments(t *testing.T) {
	cat := hostCatalog(host.Config{GlobalMemory: 1 << 30})
	tests := []struct {
		name    string
		n       int
		index   int
		opts    []Option
		wantErr error
	}{
		{"zero size", 0, 0, nil, ErrInvalidArraySize},
		{"negative size", -64, 0, nil, ErrInvalidArraySize},
		{"not a multiple of work-group", 1000, 0, nil, ErrInvalidArraySize},
		{"not a multiple of custom work-group", 192, 0, []Option{WithWorkgroupSize(128)}, ErrInvalidArraySize},
		{"bad index", 1024, 1, nil, ErrInvalidDeviceIndex},
		{"negative index", 1024, -1, nil, ErrInvalidDeviceIndex},
		{"zero work-group", 1024, 0, []Option{WithWorkgroupSize(0)}, ErrBuildFailure},
		{"work-group not a power of two", 960, 0, []Option{WithWorkgroupSize(96)}, ErrBuildFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New[float32](cat, tt.n, tt.index, tt.opts...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
			}
			if e != nil {
				t.Error("New() returned a non-nil engine on failure")
			}
		})
	}
}

func TestArrayLengthMismatch(t *testing.T) {
	e := newHostEngine[float32](t, host.Config{}, 1024)
	short := make([]float32, 512)
	full := make([]float32, 1024)
	if err := e.WriteArrays(full, short, full); !errors.Is(err, ErrInvalidArraySize) {
		t.Errorf("WriteArrays() error = %v, want ErrInvalidArraySize", err)
	}
	if err := e.ReadArrays(full, full, short); !errors.Is(err, ErrInvalidArraySize) {
		t.Errorf("ReadArrays() error = %v, want ErrInvalidArraySize", err)
	}
}

func TestEngineClose(t *testing.T) {
	e, err := New[float32](hostCatalog(host.Config{GlobalMemory: 1 << 30}), 1024, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	buf := make([]float32, 1024)
	ops := map[string]func() error{
		"Copy":        e.Copy,
		"Mul":         e.Mul,
		"Add":         e.Add,
		"Triad":       e.Triad,
		"Dot":         func() error { _, err := e.Dot(); return err },
		"WriteArrays": func() error { return e.WriteArrays(buf, buf, buf) },
		"ReadArrays":  func() error { return e.ReadArrays(buf, buf, buf) },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, ErrClosed) {
			t.Errorf("%s() after Close error = %v, want ErrClosed", name, err)
		}
	}
}

func TestEnginesIndependent(t *testing.T) {
	cat := hostCatalog(host.Config{GlobalMemory: 1 << 30})
	e1, err := New[float32](cat, 1024, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e1.Close()
	e2, err := New[float64](cat, 2048, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e2.Close()

	ones32 := make([]float32, 1024)
	for i := range ones32 {
		ones32[i] = 1
	}
	ones64 := make([]float64, 2048)
	for i := range ones64 {
		ones64[i] = 1
	}
	if err := e1.WriteArrays(ones32, ones32, ones32); err != nil {
		t.Fatal(err)
	}
	if err := e2.WriteArrays(ones64, ones64, ones64); err != nil {
		t.Fatal(err)
	}
	if got, _ := e1.Dot(); got != 1024 {
		t.Errorf("e1.Dot() = %v, want 1024", got)
	}
	if got, _ := e2.Dot(); got != 2048 {
		t.Errorf("e2.Dot() = %v, want 2048", got)
	}
}

func BenchmarkTriad(b *testing.B) {
	const n = 1 << 20
	e, err := New[float32](hostCatalog(host.Config{}), n, 0)
	if err != nil {
		b.Fatal(err)
	}
	defer e.Close()
	b.SetBytes(3 * n * 4)
	for b.Loop() {
		if err := e.Triad(); err != nil {
			b.Fatal(err)
		}
	}
}
