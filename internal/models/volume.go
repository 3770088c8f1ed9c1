package models

import (
	"fmt"
	"math"
)

// PixelType names the scalar type a volume was decoded from or will be encoded to
type PixelType string

const (
	Uint8   PixelType = "uint8"
	Int8    PixelType = "int8"
	Uint16  PixelType = "uint16"
	Int16   PixelType = "int16"
	Uint32  PixelType = "uint32"
	Int32   PixelType = "int32"
	Uint64  PixelType = "uint64"
	Int64   PixelType = "int64"
	Float32 PixelType = "float32"
	Float64 PixelType = "float64"
)

// ByteSize returns the width of one scalar of this type, or 0 if the type is unknown
func (p PixelType) ByteSize() int {
	switch p {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Uint64, Int64, Float64:
		return 8
	}
	return 0
}

// Array is an N-dimensional raster stored as a flat slice in row-major order:
// the last axis varies fastest.
type Array struct {
	// Shape holds the extent of every axis, slowest-varying first
	Shape []int

	// Data holds Len() values in row-major order
	Data []float64
}

// NewArray allocates a zero-filled array with the given shape
func NewArray(shape ...int) Array {
	s := append([]int(nil), shape...)
	return Array{Shape: s, Data: make([]float64, product(s))}
}

// Len returns the number of elements described by Shape
func (a Array) Len() int {
	return product(a.Shape)
}

// Strides returns the flat-index step of every axis
func (a Array) Strides() []int {
	strides := make([]int, len(a.Shape))
	step := 1
	for i := len(a.Shape) - 1; i >= 0; i-- {
		strides[i] = step
		step *= a.Shape[i]
	}
	return strides
}

// Index converts a multi-index into a flat offset into Data
func (a Array) Index(idx ...int) int {
	if len(idx) != len(a.Shape) {
		panic(fmt.Sprintf("models: index has %d axes, array has %d", len(idx), len(a.Shape)))
	}
	off := 0
	for i, v := range idx {
		off = off*a.Shape[i] + v
	}
	return off
}

// At returns the value at the given multi-index
func (a Array) At(idx ...int) float64 {
	return a.Data[a.Index(idx...)]
}

// Set stores v at the given multi-index
func (a Array) Set(v float64, idx ...int) {
	a.Data[a.Index(idx...)] = v
}

// Clone returns a deep copy
func (a Array) Clone() Array {
	return Array{
		Shape: append([]int(nil), a.Shape...),
		Data:  append([]float64(nil), a.Data...),
	}
}

// SameShape reports whether both arrays have identical extents
func (a Array) SameShape(b Array) bool {
	return EqualShape(a.Shape, b.Shape)
}

// Equal reports whether both arrays have the same shape and element values
func (a Array) Equal(b Array) bool {
	if !a.SameShape(b) || len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return false
		}
	}
	return true
}

// EqualShape compares two extents axis by axis
func EqualShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MulSizes multiplies extents. It reports false when an extent is not
// positive or the product does not fit in an int.
func MulSizes(sizes ...int) (int, bool) {
	n := 1
	for _, s := range sizes {
		if s <= 0 || n > math.MaxInt/s {
			return 0, false
		}
		n *= s
	}
	return n, true
}

func product(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Volume represents a decoded 3D image with its physical geometry.
// Pixel data is kept in the imaging convention (z, y, x[, c]); use the
// axes package to move it into the (x, y, z) challenge convention.
type Volume struct {
	// Pixels is the raster in native order (z, y, x) or (z, y, x, c)
	Pixels Array

	// Size is the extent along x, y and z in voxels
	Size [3]int

	// Origin is the physical position of the first voxel in mm (LPS)
	Origin [3]float64

	// Spacing is the physical size of each voxel in mm
	Spacing [3]float64

	// Direction is the 3x3 direction cosine matrix in row-major order;
	// column j is the direction of image axis j
	Direction [9]float64

	// Components is the number of values per voxel (1 for scalar images)
	Components int

	// PixelType is the on-disk scalar type
	PixelType PixelType
}

// IdentityDirection is the axis-aligned direction matrix
var IdentityDirection = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// NewVolume allocates a scalar zero-filled volume with unit spacing,
// zero origin and identity direction.
func NewVolume(x, y, z int, pixelType PixelType) *Volume {
	return &Volume{
		Pixels:     NewArray(z, y, x),
		Size:       [3]int{x, y, z},
		Spacing:    [3]float64{1, 1, 1},
		Direction:  IdentityDirection,
		Components: 1,
		PixelType:  pixelType,
	}
}

// NativeShape returns the raster shape implied by Size and Components
func (v *Volume) NativeShape() []int {
	shape := []int{v.Size[2], v.Size[1], v.Size[0]}
	if v.Components > 1 {
		shape = append(shape, v.Components)
	}
	return shape
}

// Check verifies that the raster agrees with the declared geometry
func (v *Volume) Check() error {
	if v.Size[0] <= 0 || v.Size[1] <= 0 || v.Size[2] <= 0 {
		return fmt.Errorf("invalid volume size %v", v.Size)
	}
	if v.Components < 1 {
		return fmt.Errorf("invalid number of components %d", v.Components)
	}
	if _, ok := MulSizes(v.Size[0], v.Size[1], v.Size[2], v.Components, max(v.PixelType.ByteSize(), 1)); !ok {
		return fmt.Errorf("volume size %v with %d components is too large", v.Size, v.Components)
	}
	if !EqualShape(v.Pixels.Shape, v.NativeShape()) {
		return fmt.Errorf("raster shape %v does not match size %v with %d components",
			v.Pixels.Shape, v.Size, v.Components)
	}
	if len(v.Pixels.Data) != v.Pixels.Len() {
		return fmt.Errorf("raster holds %d values, expected %d", len(v.Pixels.Data), v.Pixels.Len())
	}
	return nil
}

// CopyInformation copies origin, spacing and direction from src.
// Pixel data, size and pixel type are left untouched.
func (v *Volume) CopyInformation(src *Volume) {
	v.Origin = src.Origin
	v.Spacing = src.Spacing
	v.Direction = src.Direction
}

// SameGeometry reports whether two volumes share size, origin, spacing and direction
func (v *Volume) SameGeometry(o *Volume) bool {
	return v.Size == o.Size && v.Origin == o.Origin && v.Spacing == o.Spacing && v.Direction == o.Direction
}
