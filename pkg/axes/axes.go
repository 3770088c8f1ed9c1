// Package axes converts rasters between the imaging convention, where the
// slowest-varying axis is z and the fastest is x, and the challenge
// convention, where arrays are indexed as (x, y, z).
//
// Both directions are a full reversal of the axis sequence, so ToNative
// undoes ToChallenge element for element. Every load and save path must
// cross this boundary exactly once.
package axes

import (
	"cowsubmit/internal/models"
)

// ToChallenge reorders a native (z, y, x) raster into (x, y, z).
// The input is not modified.
func ToChallenge(native models.Array) models.Array {
	return reverse(native)
}

// ToNative reorders an (x, y, z) raster back into the native (z, y, x) order.
// The input is not modified.
func ToNative(challenge models.Array) models.Array {
	return reverse(challenge)
}

// reverse transposes an array so that axis i of the result is axis n-1-i of src
func reverse(src models.Array) models.Array {
	n := len(src.Shape)
	shape := make([]int, n)
	for i, s := range src.Shape {
		shape[n-1-i] = s
	}
	dst := models.Array{Shape: shape, Data: make([]float64, len(src.Data))}
	if len(src.Data) == 0 {
		return dst
	}

	// stride in dst of each src axis
	dstStrides := dst.Strides()
	step := make([]int, n)
	for i := 0; i < n; i++ {
		step[i] = dstStrides[n-1-i]
	}

	// walk src in memory order with a running multi-index
	idx := make([]int, n)
	off := 0
	for i, v := range src.Data {
		dst.Data[off] = v
		if i == len(src.Data)-1 {
			break
		}
		for ax := n - 1; ax >= 0; ax-- {
			idx[ax]++
			off += step[ax]
			if idx[ax] < src.Shape[ax] {
				break
			}
			off -= step[ax] * idx[ax]
			idx[ax] = 0
		}
	}
	return dst
}

// ChallengeShape returns the shape of a volume's raster once moved into the
// challenge order, with the component axis first for vector images.
func ChallengeShape(v *models.Volume) []int {
	shape := make([]int, 0, 4)
	if v.Components > 1 {
		shape = append(shape, v.Components)
	}
	return append(shape, v.Size[0], v.Size[1], v.Size[2])
}
