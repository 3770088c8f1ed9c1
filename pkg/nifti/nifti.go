// Package nifti reads and writes single-file NIfTI-1 volumes (.nii, .nii.gz).
//
// Geometry is converted to the LPS convention used by MetaImage, so a volume
// read from either format carries the same origin and direction.
package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"cowsubmit/internal/models"
	"cowsubmit/pkg/pixels"
)

const (
	headerSize = 348
	dataOffset = 352

	xformScannerAnat = 1
	intentVector     = 1007
	unitsMMSec       = 2 | 8
)

var datatypes = map[int16]models.PixelType{
	2:    models.Uint8,
	4:    models.Int16,
	8:    models.Int32,
	16:   models.Float32,
	64:   models.Float64,
	256:  models.Int8,
	512:  models.Uint16,
	768:  models.Uint32,
	1024: models.Int64,
	1280: models.Uint64,
}

// header is the on-disk NIfTI-1 header
type header struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XYZTUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// IsGzip reports whether path names a compressed NIfTI file
func IsGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// Read decodes the NIfTI file at path, decompressing .gz files
func Read(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if IsGzip(path) {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	vol, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return vol, nil
}

// Decode reads an uncompressed NIfTI-1 stream
func Decode(r io.Reader) (*models.Volume, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("file too short for a NIfTI-1 header")
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(data) == headerSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(data) == headerSize:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("not a NIfTI-1 file")
	}

	var h header
	if err := binary.Read(bytes.NewReader(data[:headerSize]), order, &h); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	if h.Magic != [4]byte{'n', '+', '1', 0} {
		return nil, fmt.Errorf("unsupported NIfTI magic %q (only single-file n+1 is supported)", h.Magic[:3])
	}

	pt, ok := datatypes[h.Datatype]
	if !ok {
		return nil, fmt.Errorf("unsupported NIfTI datatype %d", h.Datatype)
	}

	ndim := int(h.Dim[0])
	if ndim < 2 || ndim > 5 {
		return nil, fmt.Errorf("unsupported number of dimensions %d", ndim)
	}
	dim := func(i int) int {
		if i > ndim || h.Dim[i] < 1 {
			return 1
		}
		return int(h.Dim[i])
	}
	if dim(4) > 1 {
		return nil, fmt.Errorf("time series with %d frames are not supported", dim(4))
	}

	vol := &models.Volume{
		Size:       [3]int{dim(1), dim(2), dim(3)},
		Components: dim(5),
		PixelType:  pt,
	}
	if err := geometry(&h, vol); err != nil {
		return nil, err
	}

	if math.IsNaN(float64(h.VoxOffset)) || h.VoxOffset > float32(len(data)) {
		return nil, fmt.Errorf("invalid vox_offset %g", h.VoxOffset)
	}
	offset := int(h.VoxOffset)
	if offset < dataOffset {
		offset = dataOffset
	}
	need, ok := models.MulSizes(vol.Size[0], vol.Size[1], vol.Size[2], vol.Components, pt.ByteSize())
	if !ok {
		return nil, fmt.Errorf("invalid dimensions %v with %d components", vol.Size, vol.Components)
	}
	if offset > len(data) || len(data)-offset < need {
		return nil, fmt.Errorf("pixel data truncated: have %d bytes after offset %d, need %d", max(len(data)-offset, 0), offset, need)
	}
	values, err := pixels.Decode(data[offset:offset+need], pt, order)
	if err != nil {
		return nil, err
	}

	if h.SclSlope != 0 && !(h.SclSlope == 1 && h.SclInter == 0) {
		slope, inter := float64(h.SclSlope), float64(h.SclInter)
		for i, v := range values {
			values[i] = v*slope + inter
		}
		vol.PixelType = models.Float32
	}

	vol.Pixels = models.Array{Shape: vol.NativeShape(), Data: values}
	if vol.Components > 1 {
		vol.Pixels.Data = interleave(values, vol.Components)
	}
	return vol, nil
}

// geometry fills origin, spacing and direction from sform, qform or pixdim, in that order
func geometry(h *header, vol *models.Volume) error {
	var ras [9]float64
	var origin [3]float64

	switch {
	case h.SformCode > 0:
		rows := [3][4]float32{h.SrowX, h.SrowY, h.SrowZ}
		for j := 0; j < 3; j++ {
			norm := 0.0
			for i := 0; i < 3; i++ {
				norm += float64(rows[i][j]) * float64(rows[i][j])
			}
			norm = math.Sqrt(norm)
			if norm == 0 {
				return fmt.Errorf("degenerate sform column %d", j)
			}
			vol.Spacing[j] = norm
			for i := 0; i < 3; i++ {
				ras[i*3+j] = float64(rows[i][j]) / norm
			}
		}
		origin = [3]float64{float64(h.SrowX[3]), float64(h.SrowY[3]), float64(h.SrowZ[3])}

	case h.QformCode > 0:
		b, c, d := float64(h.QuaternB), float64(h.QuaternC), float64(h.QuaternD)
		a := 1 - (b*b + c*c + d*d)
		if a < 1e-7 {
			a = 1 / math.Sqrt(b*b+c*c+d*d)
			b, c, d = b*a, c*a, d*a
			a = 0
		} else {
			a = math.Sqrt(a)
		}
		qfac := 1.0
		if h.Pixdim[0] < 0 {
			qfac = -1
		}
		ras = [9]float64{
			a*a + b*b - c*c - d*d, 2 * (b*c - a*d), 2 * (b*d + a*c) * qfac,
			2 * (b*c + a*d), a*a + c*c - b*b - d*d, 2 * (c*d - a*b) * qfac,
			2 * (b*d - a*c), 2 * (c*d + a*b), (a*a + d*d - c*c - b*b) * qfac,
		}
		for j := 0; j < 3; j++ {
			vol.Spacing[j] = pixdim(h, j+1)
		}
		origin = [3]float64{float64(h.QoffsetX), float64(h.QoffsetY), float64(h.QoffsetZ)}

	default:
		ras = models.IdentityDirection
		for j := 0; j < 3; j++ {
			vol.Spacing[j] = pixdim(h, j+1)
		}
	}

	// RAS to LPS: flip the first two world axes
	for j := 0; j < 3; j++ {
		vol.Direction[0*3+j] = clean(-ras[0*3+j])
		vol.Direction[1*3+j] = clean(-ras[1*3+j])
		vol.Direction[2*3+j] = clean(ras[2*3+j])
	}
	vol.Origin = [3]float64{clean(-origin[0]), clean(-origin[1]), clean(origin[2])}
	return nil
}

// clean maps negative zero to zero so hashes of equal geometry agree
func clean(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}

func pixdim(h *header, i int) float64 {
	if h.Pixdim[i] <= 0 {
		return 1
	}
	return float64(h.Pixdim[i])
}

// Write encodes vol to path, gzip-compressed when path ends in .gz
func Write(path string, vol *models.Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, vol, IsGzip(path)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// Encode writes vol as a little-endian NIfTI-1 stream
func Encode(w io.Writer, vol *models.Volume, compress bool) error {
	if err := vol.Check(); err != nil {
		return err
	}
	code := int16(-1)
	for c, pt := range datatypes {
		if pt == vol.PixelType {
			code = c
		}
	}
	if code < 0 {
		return fmt.Errorf("pixel type %q cannot be stored as NIfTI", vol.PixelType)
	}

	h := header{
		SizeofHdr: headerSize,
		Regular:   'r',
		Datatype:  code,
		Bitpix:    int16(vol.PixelType.ByteSize() * 8),
		VoxOffset: dataOffset,
		SclSlope:  1,
		XYZTUnits: unitsMMSec,
		SformCode: xformScannerAnat,
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	for i, n := range vol.Size {
		if n > math.MaxInt16 {
			return fmt.Errorf("size %d along axis %d exceeds the NIfTI-1 limit of %d", n, i, math.MaxInt16)
		}
	}
	if vol.Components > math.MaxInt16 {
		return fmt.Errorf("%d components exceed the NIfTI-1 limit of %d", vol.Components, math.MaxInt16)
	}
	h.Dim = [8]int16{3, int16(vol.Size[0]), int16(vol.Size[1]), int16(vol.Size[2]), 1, 1, 1, 1}
	h.Pixdim = [8]float32{1, float32(vol.Spacing[0]), float32(vol.Spacing[1]), float32(vol.Spacing[2]), 1, 1, 1, 1}
	if vol.Components > 1 {
		h.Dim[0] = 5
		h.Dim[5] = int16(vol.Components)
		h.IntentCode = intentVector
	}

	// LPS to RAS affine
	rows := [3]*[4]float32{&h.SrowX, &h.SrowY, &h.SrowZ}
	sign := [3]float64{-1, -1, 1}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rows[i][j] = float32(sign[i] * vol.Direction[i*3+j] * vol.Spacing[j])
		}
		rows[i][3] = float32(sign[i] * vol.Origin[i])
	}

	values := vol.Pixels.Data
	if vol.Components > 1 {
		values = deinterleave(values, vol.Components)
	}
	payload, err := pixels.Encode(values, vol.PixelType, binary.LittleEndian)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		return err
	}
	buf.Write(make([]byte, dataOffset-headerSize))
	buf.Write(payload)

	if !compress {
		_, err := w.Write(buf.Bytes())
		return err
	}
	zw := gzip.NewWriter(w)
	if _, err := zw.Write(buf.Bytes()); err != nil {
		return err
	}
	return zw.Close()
}

// interleave converts component-major data (c, z, y, x) to voxel-major (z, y, x, c)
func interleave(src []float64, components int) []float64 {
	n := len(src) / components
	dst := make([]float64, len(src))
	for c := 0; c < components; c++ {
		for i := 0; i < n; i++ {
			dst[i*components+c] = src[c*n+i]
		}
	}
	return dst
}

// deinterleave is the inverse of interleave
func deinterleave(src []float64, components int) []float64 {
	n := len(src) / components
	dst := make([]float64, len(src))
	for c := 0; c < components; c++ {
		for i := 0; i < n; i++ {
			dst[c*n+i] = src[i*components+c]
		}
	}
	return dst
}
