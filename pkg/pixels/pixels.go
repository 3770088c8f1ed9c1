// Package pixels converts raw scalar buffers to and from float64 samples.
package pixels

import (
	"encoding/binary"
	"fmt"
	"math"

	"cowsubmit/internal/models"
)

// Decode interprets raw as a packed sequence of scalars of type t
func Decode(raw []byte, t models.PixelType, order binary.ByteOrder) ([]float64, error) {
	size := t.ByteSize()
	if size == 0 {
		return nil, fmt.Errorf("unsupported pixel type %q", t)
	}
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("buffer of %d bytes is not a multiple of %d-byte %s samples", len(raw), size, t)
	}

	out := make([]float64, len(raw)/size)
	for i := range out {
		b := raw[i*size : (i+1)*size]
		switch t {
		case models.Uint8:
			out[i] = float64(b[0])
		case models.Int8:
			out[i] = float64(int8(b[0]))
		case models.Uint16:
			out[i] = float64(order.Uint16(b))
		case models.Int16:
			out[i] = float64(int16(order.Uint16(b)))
		case models.Uint32:
			out[i] = float64(order.Uint32(b))
		case models.Int32:
			out[i] = float64(int32(order.Uint32(b)))
		case models.Uint64:
			out[i] = float64(order.Uint64(b))
		case models.Int64:
			out[i] = float64(int64(order.Uint64(b)))
		case models.Float32:
			out[i] = float64(math.Float32frombits(order.Uint32(b)))
		case models.Float64:
			out[i] = math.Float64frombits(order.Uint64(b))
		}
	}
	return out, nil
}

// Encode packs samples as scalars of type t. Integer types truncate toward
// zero and wrap on overflow.
func Encode(values []float64, t models.PixelType, order binary.ByteOrder) ([]byte, error) {
	size := t.ByteSize()
	if size == 0 {
		return nil, fmt.Errorf("unsupported pixel type %q", t)
	}

	out := make([]byte, len(values)*size)
	for i, v := range values {
		b := out[i*size : (i+1)*size]
		switch t {
		case models.Uint8, models.Int8:
			b[0] = byte(int64(v))
		case models.Uint16, models.Int16:
			order.PutUint16(b, uint16(int64(v)))
		case models.Uint32, models.Int32:
			order.PutUint32(b, uint32(int64(v)))
		case models.Uint64:
			order.PutUint64(b, uint64(v))
		case models.Int64:
			order.PutUint64(b, uint64(int64(v)))
		case models.Float32:
			order.PutUint32(b, math.Float32bits(float32(v)))
		case models.Float64:
			order.PutUint64(b, math.Float64bits(v))
		}
	}
	return out, nil
}

// Cast converts samples to the value range of t, as writing and re-reading
// them with that type would.
func Cast(values []float64, t models.PixelType) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		switch t {
		case models.Uint8:
			out[i] = float64(uint8(int64(v)))
		case models.Int8:
			out[i] = float64(int8(int64(v)))
		case models.Uint16:
			out[i] = float64(uint16(int64(v)))
		case models.Int16:
			out[i] = float64(int16(int64(v)))
		case models.Uint32:
			out[i] = float64(uint32(int64(v)))
		case models.Int32:
			out[i] = float64(int32(int64(v)))
		case models.Uint64:
			out[i] = float64(uint64(v))
		case models.Int64:
			out[i] = float64(int64(v))
		case models.Float32:
			out[i] = float64(float32(v))
		default:
			out[i] = v
		}
	}
	return out
}
