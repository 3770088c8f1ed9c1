// Package metaio reads and writes MetaImage volumes: a text header of
// "Key = Value" lines followed by the pixel payload, either inline
// (ElementDataFile = LOCAL, .mha) or in a detached file (.mhd + .raw).
package metaio

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cowsubmit/internal/models"
	"cowsubmit/pkg/pixels"
)

// Local is the ElementDataFile value for an inline payload
const Local = "LOCAL"

var elementTypes = map[string]models.PixelType{
	"MET_UCHAR":      models.Uint8,
	"MET_CHAR":       models.Int8,
	"MET_USHORT":     models.Uint16,
	"MET_SHORT":      models.Int16,
	"MET_UINT":       models.Uint32,
	"MET_INT":        models.Int32,
	"MET_ULONG":      models.Uint32,
	"MET_LONG":       models.Int32,
	"MET_ULONG_LONG": models.Uint64,
	"MET_LONG_LONG":  models.Int64,
	"MET_FLOAT":      models.Float32,
	"MET_DOUBLE":     models.Float64,
}

var metTypeNames = map[models.PixelType]string{
	models.Uint8:   "MET_UCHAR",
	models.Int8:    "MET_CHAR",
	models.Uint16:  "MET_USHORT",
	models.Int16:   "MET_SHORT",
	models.Uint32:  "MET_UINT",
	models.Int32:   "MET_INT",
	models.Uint64:  "MET_ULONG_LONG",
	models.Int64:   "MET_LONG_LONG",
	models.Float32: "MET_FLOAT",
	models.Float64: "MET_DOUBLE",
}

// Header holds the parsed header fields in file order
type Header struct {
	Keys   []string
	Values map[string]string
}

func (h *Header) get(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := h.Values[strings.ToLower(k)]; ok {
			return v, true
		}
	}
	return "", false
}

// Read decodes the MetaImage file at path
func Read(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vol, err := Decode(bufio.NewReader(f), filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return vol, nil
}

// Decode reads a MetaImage stream. dir resolves a detached ElementDataFile.
func Decode(r *bufio.Reader, dir string) (*models.Volume, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	if v, ok := hdr.get("ObjectType"); ok && !strings.EqualFold(v, "Image") {
		return nil, fmt.Errorf("unsupported ObjectType %q", v)
	}

	ndims := 3
	if v, ok := hdr.get("NDims"); ok {
		if ndims, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid NDims %q", v)
		}
	}
	if ndims != 2 && ndims != 3 {
		return nil, fmt.Errorf("only 2D and 3D images are supported, got NDims = %d", ndims)
	}

	vol := &models.Volume{
		Spacing:    [3]float64{1, 1, 1},
		Direction:  models.IdentityDirection,
		Components: 1,
	}

	dims, err := intList(hdr, ndims, "DimSize")
	if err != nil {
		return nil, err
	}
	vol.Size = [3]int{1, 1, 1}
	copy(vol.Size[:], dims)

	if sp, err := floatList(hdr, ndims, "ElementSpacing", "ElementSize"); err == nil {
		copy(vol.Spacing[:], sp)
	} else if !isMissing(err) {
		return nil, err
	}
	if org, err := floatList(hdr, ndims, "Offset", "Origin", "Position"); err == nil {
		copy(vol.Origin[:], org)
	} else if !isMissing(err) {
		return nil, err
	}
	if tm, err := floatList(hdr, ndims*ndims, "TransformMatrix", "Rotation", "Orientation"); err == nil {
		// each group of ndims values is one image axis
		for axis := 0; axis < ndims; axis++ {
			for row := 0; row < ndims; row++ {
				vol.Direction[row*3+axis] = tm[axis*ndims+row]
			}
		}
	} else if !isMissing(err) {
		return nil, err
	}

	if v, ok := hdr.get("ElementNumberOfChannels"); ok {
		if vol.Components, err = strconv.Atoi(v); err != nil || vol.Components < 1 {
			return nil, fmt.Errorf("invalid ElementNumberOfChannels %q", v)
		}
	}

	et, ok := hdr.get("ElementType")
	if !ok {
		return nil, fmt.Errorf("missing ElementType")
	}
	if vol.PixelType, ok = elementTypes[strings.ToUpper(et)]; !ok {
		return nil, fmt.Errorf("unsupported ElementType %q", et)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if v, ok := hdr.get("BinaryDataByteOrderMSB", "ElementByteOrderMSB"); ok && isTrue(v) {
		order = binary.BigEndian
	}

	want, ok := models.MulSizes(vol.Size[0], vol.Size[1], vol.Size[2], vol.Components, vol.PixelType.ByteSize())
	if !ok {
		return nil, fmt.Errorf("invalid DimSize %v with %d channels of %s", dims, vol.Components, vol.PixelType)
	}

	payload, err := readPayload(r, hdr, dir)
	if err != nil {
		return nil, err
	}

	vol.Pixels = models.Array{Shape: vol.NativeShape()}
	if len(payload) < want {
		return nil, fmt.Errorf("pixel data truncated: have %d bytes, need %d", len(payload), want)
	}
	if vol.Pixels.Data, err = pixels.Decode(payload[:want], vol.PixelType, order); err != nil {
		return nil, err
	}
	return vol, nil
}

func readHeader(r *bufio.Reader) (*Header, error) {
	hdr := &Header{Values: make(map[string]string)}
	for {
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, fmt.Errorf("header ended before ElementDataFile")
			}
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		key = strings.TrimSpace(key)
		hdr.Keys = append(hdr.Keys, key)
		hdr.Values[strings.ToLower(key)] = strings.TrimSpace(value)
		if strings.EqualFold(key, "ElementDataFile") {
			return hdr, nil
		}
	}
}

func readPayload(r *bufio.Reader, hdr *Header, dir string) ([]byte, error) {
	dataFile, _ := hdr.get("ElementDataFile")
	var src io.Reader = r
	if !strings.EqualFold(dataFile, Local) {
		if strings.EqualFold(dataFile, "LIST") || strings.Contains(dataFile, "%") {
			return nil, fmt.Errorf("multi-file ElementDataFile %q is not supported", dataFile)
		}
		f, err := os.Open(filepath.Join(dir, dataFile))
		if err != nil {
			return nil, fmt.Errorf("failed to open element data file: %w", err)
		}
		defer f.Close()
		src = f
	}

	if v, ok := hdr.get("CompressedData"); ok && isTrue(v) {
		zr, err := zlib.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed pixel data: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read pixel data: %w", err)
	}
	return data, nil
}

// Write encodes vol to path. A .mhd path gets a detached .raw (or .zraw) file.
func Write(path string, vol *models.Volume, compress bool) error {
	if err := vol.Check(); err != nil {
		return err
	}
	payload, err := encodePayload(vol, compress)
	if err != nil {
		return err
	}

	dataFile := Local
	if strings.EqualFold(filepath.Ext(path), ".mhd") {
		ext := ".raw"
		if compress {
			ext = ".zraw"
		}
		dataFile = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ext
		if err := os.WriteFile(filepath.Join(filepath.Dir(path), dataFile), payload, 0644); err != nil {
			return fmt.Errorf("failed to write element data file: %w", err)
		}
	}

	var buf bytes.Buffer
	writeHeader(&buf, vol, compress, len(payload), dataFile)
	if dataFile == Local {
		buf.Write(payload)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Encode writes vol as a single inline MetaImage stream
func Encode(w io.Writer, vol *models.Volume, compress bool) error {
	if err := vol.Check(); err != nil {
		return err
	}
	payload, err := encodePayload(vol, compress)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	writeHeader(&buf, vol, compress, len(payload), Local)
	buf.Write(payload)
	_, err = w.Write(buf.Bytes())
	return err
}

func encodePayload(vol *models.Volume, compress bool) ([]byte, error) {
	raw, err := pixels.Encode(vol.Pixels.Data, vol.PixelType, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	if !compress {
		return raw, nil
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress pixel data: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress pixel data: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, vol *models.Volume, compress bool, payloadSize int, dataFile string) {
	tm := make([]float64, 9)
	for axis := 0; axis < 3; axis++ {
		for row := 0; row < 3; row++ {
			tm[axis*3+row] = vol.Direction[row*3+axis]
		}
	}

	fmt.Fprintf(buf, "ObjectType = Image\n")
	fmt.Fprintf(buf, "NDims = 3\n")
	fmt.Fprintf(buf, "BinaryData = True\n")
	fmt.Fprintf(buf, "BinaryDataByteOrderMSB = False\n")
	if compress {
		fmt.Fprintf(buf, "CompressedData = True\n")
		fmt.Fprintf(buf, "CompressedDataSize = %d\n", payloadSize)
	} else {
		fmt.Fprintf(buf, "CompressedData = False\n")
	}
	fmt.Fprintf(buf, "TransformMatrix = %s\n", joinFloats(tm))
	fmt.Fprintf(buf, "Offset = %s\n", joinFloats(vol.Origin[:]))
	fmt.Fprintf(buf, "CenterOfRotation = 0 0 0\n")
	if o, ok := orientation(vol.Direction); ok {
		fmt.Fprintf(buf, "AnatomicalOrientation = %s\n", o)
	}
	fmt.Fprintf(buf, "ElementSpacing = %s\n", joinFloats(vol.Spacing[:]))
	fmt.Fprintf(buf, "DimSize = %d %d %d\n", vol.Size[0], vol.Size[1], vol.Size[2])
	if vol.Components > 1 {
		fmt.Fprintf(buf, "ElementNumberOfChannels = %d\n", vol.Components)
	}
	fmt.Fprintf(buf, "ElementType = %s\n", metTypeNames[vol.PixelType])
	fmt.Fprintf(buf, "ElementDataFile = %s\n", dataFile)
}

// orientation names, per image axis, the patient side the axis starts from
// (identity is RAI). It reports false for oblique directions where two axes
// share a dominant patient axis.
func orientation(dir [9]float64) (string, bool) {
	letters := [3][2]byte{{'R', 'L'}, {'A', 'P'}, {'I', 'S'}}
	var code [3]byte
	var used [3]bool
	for axis := 0; axis < 3; axis++ {
		best := 0
		for row := 1; row < 3; row++ {
			if math.Abs(dir[row*3+axis]) > math.Abs(dir[best*3+axis]) {
				best = row
			}
		}
		if used[best] || dir[best*3+axis] == 0 {
			return "", false
		}
		used[best] = true
		if dir[best*3+axis] > 0 {
			code[axis] = letters[best][0]
		} else {
			code[axis] = letters[best][1]
		}
	}
	return string(code[:]), true
}

func joinFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

type missingKeyError struct{ key string }

func (e missingKeyError) Error() string { return "missing header key " + e.key }

func isMissing(err error) bool {
	_, ok := err.(missingKeyError)
	return ok
}

func floatList(hdr *Header, n int, keys ...string) ([]float64, error) {
	raw, ok := hdr.get(keys...)
	if !ok {
		return nil, missingKeyError{keys[0]}
	}
	fields := strings.Fields(raw)
	if len(fields) != n {
		return nil, fmt.Errorf("%s needs %d values, got %q", keys[0], n, raw)
	}
	out := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q", keys[0], f)
		}
		out[i] = v
	}
	return out, nil
}

func intList(hdr *Header, n int, key string) ([]int, error) {
	raw, ok := hdr.get(key)
	if !ok {
		return nil, missingKeyError{key}
	}
	fields := strings.Fields(raw)
	if len(fields) != n {
		return nil, fmt.Errorf("%s needs %d values, got %q", key, n, raw)
	}
	out := make([]int, n)
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid %s value %q", key, f)
		}
		out[i] = v
	}
	return out, nil
}

func isTrue(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
