package gpustream

import "unsafe"

// Float is the set of element types an Engine can stream.
type Float interface {
	~float32 | ~float64
}

// ElementType describes the element type of an engine.
type ElementType struct {
	// Size is the byte width, 4 or 8.
	Size int

	// WGSL is the WGSL scalar type name, "f32" or "f64".
	WGSL string

	// Name is the precision name used in reports, "float" or "double".
	Name string
}

// Double reports whether the element type needs 64-bit float support.
func (e ElementType) Double() bool { return e.Size == 8 }

func (e ElementType) String() string { return e.Name }

// Element types.
var (
	Float32 = ElementType{Size: 4, WGSL: "f32", Name: "float"}
	Float64 = ElementType{Size: 8, WGSL: "f64", Name: "double"}
)

// ElementOf returns the element type descriptor of T.
func ElementOf[T Float]() ElementType {
	var zero T
	if unsafe.Sizeof(zero) == 8 {
		return Float64
	}
	return Float32
}

// asBytes reinterprets s as its backing bytes without copying.
func asBytes[T Float](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero)))
}
