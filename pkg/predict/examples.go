package predict

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"cowsubmit/internal/models"
)

// DefaultThresholdFraction keeps voxels brighter than a third of the maximum
const DefaultThresholdFraction = 1.0 / 3.0

// Names of the example segmenters
const (
	SegmenterThreshold = "threshold"
	SegmenterZeros     = "zeros"
)

// Threshold labels every voxel of the main input whose intensity lies in
// [floor(max*fraction), max] with 1. Label 1 is the CoW in binary runs and
// the basilar artery in multiclass runs.
func Threshold(fraction float64) SegmentFunc {
	return func(in Inputs) (models.Array, error) {
		if in.MainVolume().Components > 1 {
			return models.Array{}, fmt.Errorf("threshold segmentation needs a scalar image, got %d components",
				in.MainVolume().Components)
		}
		main := in.Main()
		out := models.NewArray(main.Shape...)
		if len(main.Data) == 0 {
			return out, nil
		}
		upper := floats.Max(main.Data)
		lower := math.Floor(upper * fraction)
		for i, v := range main.Data {
			if v >= lower && v <= upper {
				out.Data[i] = 1
			}
		}
		return out, nil
	}
}

// Zeros predicts background everywhere
func Zeros(in Inputs) (models.Array, error) {
	return models.NewArray(in.Extent()...), nil
}

// CenterBox predicts a box of half the MR extent starting at a quarter of it
func CenterBox(in Inputs) (map[string]any, error) {
	v := in.MRVolume
	size := make([]int, 3)
	location := make([]int, 3)
	for i := range size {
		size[i] = v.Size[i] / 2
		location[i] = v.Size[i] / 4
	}
	return map[string]any{"size": size, "location": location}, nil
}

// CompleteCoW classifies every edge of a standard CoW as present except the
// third A2.
func CompleteCoW(Inputs) (map[string]any, error) {
	return map[string]any{
		"anterior":  map[string]any{"L-A1": 1, "Acom": 1, "3rd-A2": 0, "R-A1": 1},
		"posterior": map[string]any{"L-Pcom": 1, "L-P1": 1, "R-P1": 1, "R-Pcom": 1},
	}, nil
}

// Example returns the example algorithm with the named segmenter
func Example(segmenter string, fraction float64) (Algorithm, error) {
	var seg SegmentFunc
	switch strings.ToLower(segmenter) {
	case "", SegmenterThreshold:
		if fraction <= 0 || fraction > 1 {
			return Algorithm{}, fmt.Errorf("%w: threshold fraction must be in (0, 1], got %g",
				models.ErrInvalidConfig, fraction)
		}
		seg = Threshold(fraction)
		segmenter = SegmenterThreshold
	case SegmenterZeros:
		seg = Zeros
	default:
		return Algorithm{}, fmt.Errorf("%w: unknown segmenter %q, must be %q or %q",
			models.ErrInvalidConfig, segmenter, SegmenterThreshold, SegmenterZeros)
	}
	return Algorithm{
		Name:     "example-" + strings.ToLower(segmenter),
		Segment:  seg,
		Detect:   CenterBox,
		Classify: CompleteCoW,
	}, nil
}
