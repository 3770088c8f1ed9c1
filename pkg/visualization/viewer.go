// Package visualization renders slices of volumes and predictions as JPEG
// previews for a quick visual check of a run.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"

	"cowsubmit/internal/models"
)

// Axes along which slices can be taken
var Axes = []string{"x", "y", "z"}

// Viewer renders slices of a scalar volume
type Viewer struct {
	// vol is the volume in native (z, y, x) order
	vol *models.Volume

	// data holds the first component of every voxel
	data []float64

	// lo and hi are the intensity window mapped onto black and white
	lo float64
	hi float64
}

// NewViewer creates a viewer windowed on the volume's full intensity range.
// Vector images are rendered from their first component.
func NewViewer(vol *models.Volume) *Viewer {
	data := vol.Pixels.Data
	if vol.Components > 1 {
		data = make([]float64, len(vol.Pixels.Data)/vol.Components)
		for i := range data {
			data[i] = vol.Pixels.Data[i*vol.Components]
		}
	}
	v := &Viewer{vol: vol, data: data}
	if len(data) > 0 {
		v.lo, v.hi = floats.Min(data), floats.Max(data)
	}
	return v
}

// SetWindow overrides the intensity window
func (v *Viewer) SetWindow(lo, hi float64) {
	v.lo, v.hi = lo, hi
}

func (v *Viewer) gray(value float64) color.Gray16 {
	if v.hi <= v.lo {
		if value > v.lo {
			return color.Gray16{Y: 65535}
		}
		return color.Gray16{}
	}
	norm := (value - v.lo) / (v.hi - v.lo)
	return color.Gray16{Y: uint16(math.Round(math.Max(0, math.Min(65535, norm*65535))))}
}

func (v *Viewer) extent(axis string) (int, error) {
	switch strings.ToLower(axis) {
	case "x":
		return v.vol.Size[0], nil
	case "y":
		return v.vol.Size[1], nil
	case "z":
		return v.vol.Size[2], nil
	}
	return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// ExtractSlice extracts a 2D slice through the volume at position along axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	n, err := v.extent(axis)
	if err != nil {
		return nil, err
	}
	if position < 0 || position >= n {
		return nil, fmt.Errorf("position %d outside [0, %d) along %s", position, n, axis)
	}

	width, height, depth := v.vol.Size[0], v.vol.Size[1], v.vol.Size[2]
	at := func(x, y, z int) float64 { return v.data[(z*height+y)*width+x] }

	var img *image.Gray16
	switch strings.ToLower(axis) {
	case "x":
		// YZ plane
		img = image.NewGray16(image.Rect(0, 0, depth, height))
		for y := 0; y < height; y++ {
			for z := 0; z < depth; z++ {
				img.SetGray16(z, y, v.gray(at(position, y, z)))
			}
		}
	case "y":
		// XZ plane
		img = image.NewGray16(image.Rect(0, 0, width, depth))
		for z := 0; z < depth; z++ {
			for x := 0; x < width; x++ {
				img.SetGray16(x, z, v.gray(at(x, position, z)))
			}
		}
	default:
		// XY plane
		img = image.NewGray16(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetGray16(x, y, v.gray(at(x, y, position)))
			}
		}
	}
	return img, nil
}

// ExtractRegion crops a box given as (x, y, z) start and size. The result
// keeps the physical position of its first voxel.
func (v *Viewer) ExtractRegion(start, size [3]int) (*models.Volume, error) {
	for i := range start {
		if start[i] < 0 {
			return nil, fmt.Errorf("start coordinates must be non-negative")
		}
		if size[i] <= 0 {
			return nil, fmt.Errorf("size dimensions must be positive")
		}
		if start[i]+size[i] > v.vol.Size[i] {
			return nil, fmt.Errorf("region extends beyond volume boundaries")
		}
	}

	region := models.NewVolume(size[0], size[1], size[2], v.vol.PixelType)
	region.CopyInformation(v.vol)
	for row := 0; row < 3; row++ {
		for axis := 0; axis < 3; axis++ {
			region.Origin[row] += v.vol.Direction[row*3+axis] * v.vol.Spacing[axis] * float64(start[axis])
		}
	}

	width, height := v.vol.Size[0], v.vol.Size[1]
	for z := 0; z < size[2]; z++ {
		for y := 0; y < size[1]; y++ {
			for x := 0; x < size[0]; x++ {
				src := ((start[2]+z)*height+(start[1]+y))*width + (start[0] + x)
				region.Pixels.Set(v.data[src], z, y, x)
			}
		}
	}
	return region, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveMidSlices saves the central slice along every axis as
// <prefix>_<axis>.jpg in outputDir and returns the files written.
func (v *Viewer) SaveMidSlices(outputDir, prefix string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}
	var files []string
	for _, axis := range Axes {
		n, _ := v.extent(axis)
		img, err := v.ExtractSlice(axis, n/2)
		if err != nil {
			return nil, err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.jpg", prefix, axis))
		if err := v.SaveSlice(img, filename); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", filename, err)
		}
		files = append(files, filename)
	}
	return files, nil
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	n, err := v.extent(axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < n; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", strings.ToLower(axis), pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
