package wgpu_test

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpustream"
	"github.com/gogpu/gpustream/backend"
	"github.com/gogpu/gpustream/backend/host"
	"github.com/gogpu/gpustream/backend/wgpu"
)

// softwareCatalog returns a catalog holding the HAL software adapter, which
// interprets the compiled kernels on the CPU.
func softwareCatalog(t *testing.T, cfg wgpu.Config) *gpustream.Catalog {
	t.Helper()
	if _, ok := hal.GetBackend(gputypes.BackendEmpty); !ok {
		t.Skip("software HAL backend not compiled in")
	}
	cfg.IncludeSoftware = true
	p := wgpu.NewPlatform(gputypes.BackendEmpty, cfg)
	t.Cleanup(p.Close)
	cat := gpustream.NewCatalog(p)
	if cat.Len() == 0 {
		t.Skip("no software adapter")
	}
	return cat
}

func newEngine(t *testing.T, cat *gpustream.Catalog, n int) *gpustream.Engine[float32] {
	t.Helper()
	e, err := gpustream.New[float32](cat, n, 0)
	if err != nil {
		t.Fatalf("New(%d) error = %v", n, err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// TestSoftwareKernelsMatchHost runs the WGSL kernels and compares every
// array against the host device after each operation. The interpreter runs
// the lanes of a work-group one after another and treats barriers as
// no-ops, so stream_dot is not checked here.
func TestSoftwareKernelsMatchHost(t *testing.T) {
	const n = 64 * 12

	tests := []struct {
		name  string
		limit uint32
	}{
		{"one dimension", 0},
		{"folded into 4x3 groups", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gpu := newEngine(t, softwareCatalog(t, wgpu.Config{MaxWorkgroupsPerDimension: tt.limit}), n)
			ref := newEngine(t, gpustream.NewCatalog(host.New(host.Config{GlobalMemory: 1 << 30})), n)

			a, b, c := make([]float32, n), make([]float32, n), make([]float32, n)
			for i := range n {
				a[i] = float32(i)
				b[i] = float32(n - i)
				c[i] = 0.5
			}
			for _, e := range []*gpustream.Engine[float32]{gpu, ref} {
				if err := e.WriteArrays(a, b, c); err != nil {
					t.Fatalf("WriteArrays() error = %v", err)
				}
			}

			ops := []struct {
				name string
				run  func(*gpustream.Engine[float32]) error
			}{
				{"copy", (*gpustream.Engine[float32]).Copy},
				{"mul", (*gpustream.Engine[float32]).Mul},
				{"add", (*gpustream.Engine[float32]).Add},
				{"triad", (*gpustream.Engine[float32]).Triad},
			}
			for _, op := range ops {
				if err := op.run(gpu); err != nil {
					t.Fatalf("%s on software adapter error = %v", op.name, err)
				}
				if err := op.run(ref); err != nil {
					t.Fatalf("%s on host error = %v", op.name, err)
				}
				compareArrays(t, op.name, gpu, ref)
			}
		})
	}
}

func compareArrays(t *testing.T, op string, gpu, ref *gpustream.Engine[float32]) {
	t.Helper()
	n := gpu.ArraySize()
	var got, want [3][]float32
	for i := range got {
		got[i], want[i] = make([]float32, n), make([]float32, n)
	}
	if err := gpu.ReadArrays(got[0], got[1], got[2]); err != nil {
		t.Fatalf("ReadArrays() error = %v", err)
	}
	if err := ref.ReadArrays(want[0], want[1], want[2]); err != nil {
		t.Fatalf("ReadArrays() error = %v", err)
	}
	for k, name := range []string{"a", "b", "c"} {
		for i := range n {
			g, w := float64(got[k][i]), float64(want[k][i])
			if math.Abs(g-w) > 1e-6*math.Max(1, math.Abs(w)) {
				t.Fatalf("after %s: %s[%d] = %v, want %v", op, name, i, g, w)
			}
		}
	}
}

func TestNewRejectsUndispatchableGroups(t *testing.T) {
	tests := []struct {
		name  string
		limit uint32
		n     int
	}{
		// 65537 is prime and above the default limit of 65535.
		{"prime group count", 0, 64 * 65537},
		// 10 = 2*5 and 5 is above the limit.
		{"no factor within limit", 4, 64 * 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := softwareCatalog(t, wgpu.Config{MaxWorkgroupsPerDimension: tt.limit})
			e, err := gpustream.New[float32](cat, tt.n, 0)
			if err == nil {
				e.Close()
				t.Fatalf("New(%d) error = nil, want ErrInvalidArraySize", tt.n)
			}
			if !errors.Is(err, gpustream.ErrInvalidArraySize) {
				t.Errorf("New(%d) error = %v, want ErrInvalidArraySize", tt.n, err)
			}
			if !errors.Is(err, backend.ErrDispatch) {
				t.Errorf("New(%d) error = %v, want ErrDispatch", tt.n, err)
			}
		})
	}
}
