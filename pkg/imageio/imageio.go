// Package imageio loads and saves volumes by file extension and computes
// the content hash used to verify that an input did not change between
// pairing and loading.
package imageio

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"cowsubmit/internal/models"
	"cowsubmit/pkg/metaio"
	"cowsubmit/pkg/nifti"
)

// Extensions lists the recognised volume file extensions, longest first
var Extensions = []string{".nii.gz", ".mha", ".mhd", ".nii"}

// Extension returns the volume extension of name, or "" if it is not a volume file
func Extension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range Extensions {
		if strings.HasSuffix(lower, ext) {
			return name[len(name)-len(ext):]
		}
	}
	return ""
}

// IsVolumeFile reports whether name has a recognised volume extension
func IsVolumeFile(name string) bool {
	return Extension(name) != ""
}

// TrimExtension strips the volume extension from name
func TrimExtension(name string) string {
	return strings.TrimSuffix(name, Extension(name))
}

// Load decodes the volume at path
func Load(path string) (*models.Volume, error) {
	var (
		vol *models.Volume
		err error
	)
	switch strings.ToLower(Extension(path)) {
	case ".mha", ".mhd":
		vol, err = metaio.Read(path)
	case ".nii", ".nii.gz":
		vol, err = nifti.Read(path)
	default:
		return nil, fmt.Errorf("%w: unrecognised volume extension for %s", models.ErrDecode, path)
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrDecode, err)
	}
	if err := vol.Check(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrDecode, path, err)
	}
	return vol, nil
}

// Save encodes vol to path, choosing the format by extension
func Save(path string, vol *models.Volume, compress bool) error {
	switch strings.ToLower(Extension(path)) {
	case ".mha", ".mhd":
		return metaio.Write(path, vol, compress)
	case ".nii", ".nii.gz":
		return nifti.Write(path, vol)
	}
	return fmt.Errorf("unrecognised volume extension for %s", path)
}

// Encode streams vol in the format implied by name without touching the filesystem
func Encode(w io.Writer, name string, vol *models.Volume, compress bool) error {
	switch strings.ToLower(Extension(name)) {
	case ".mha":
		return metaio.Encode(w, vol, compress)
	case ".nii":
		return nifti.Encode(w, vol, false)
	case ".nii.gz":
		return nifti.Encode(w, vol, true)
	}
	return fmt.Errorf("cannot stream %s as a single file", name)
}

// Hash returns a hex SHA-256 digest over pixel type, geometry and pixel values
func Hash(vol *models.Volume) string {
	h := sha256.New()
	io.WriteString(h, string(vol.PixelType))
	var buf [8]byte
	putInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	putFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	for _, s := range vol.Size {
		putInt(s)
	}
	putInt(vol.Components)
	for _, v := range vol.Origin {
		putFloat(v)
	}
	for _, v := range vol.Spacing {
		putFloat(v)
	}
	for _, v := range vol.Direction {
		putFloat(v)
	}
	for _, v := range vol.Pixels.Data {
		putFloat(v)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Convert re-encodes the volume at src into dir, swapping its extension for ext.
// It returns the path written.
func Convert(src, ext, dir string, compress bool) (string, error) {
	if !IsVolumeFile("x" + ext) {
		return "", fmt.Errorf("unsupported target extension %q", ext)
	}
	vol, err := Load(src)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	dst := filepath.Join(dir, TrimExtension(filepath.Base(src))+ext)
	if err := Save(dst, vol, compress); err != nil {
		return "", err
	}
	return dst, nil
}

// Summary collects the attributes of a volume that are worth logging
type Summary struct {
	Size       [3]int
	Origin     [3]float64
	Spacing    [3]float64
	Direction  [9]float64
	Components int
	PixelType  models.PixelType
	Min        float64
	Max        float64
	Mean       float64
	StdDev     float64
}

// Describe summarises the geometry and intensity range of vol
func Describe(vol *models.Volume) Summary {
	s := Summary{
		Size:       vol.Size,
		Origin:     vol.Origin,
		Spacing:    vol.Spacing,
		Direction:  vol.Direction,
		Components: vol.Components,
		PixelType:  vol.PixelType,
	}
	if len(vol.Pixels.Data) > 0 {
		s.Min = floats.Min(vol.Pixels.Data)
		s.Max = floats.Max(vol.Pixels.Data)
		s.Mean, s.StdDev = stat.MeanStdDev(vol.Pixels.Data, nil)
	}
	return s
}

// MarshalLogObject lets a Summary be logged with zap.Object
func (s Summary) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("size", fmt.Sprint(s.Size))
	enc.AddString("origin", fmt.Sprint(s.Origin))
	enc.AddString("spacing", fmt.Sprint(s.Spacing))
	enc.AddString("direction", fmt.Sprint(s.Direction))
	enc.AddInt("components", s.Components)
	enc.AddString("pixel_type", string(s.PixelType))
	enc.AddFloat64("min", s.Min)
	enc.AddFloat64("max", s.Max)
	enc.AddFloat64("mean", s.Mean)
	enc.AddFloat64("stddev", s.StdDev)
	return nil
}
