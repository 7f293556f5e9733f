package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBatch means a wave batch is not a whole number of float32 samples.
var ErrShortBatch = errors.New("batch length is not a multiple of 4")

// EncodeBatch appends samples to dst as float32 little-endian values.
func EncodeBatch(dst []byte, samples []float64) []byte {
	for _, v := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	return dst
}

// DecodeBatch appends the samples of b to dst.
func DecodeBatch(dst []float64, b []byte) ([]float64, error) {
	if len(b)%4 != 0 {
		return dst, fmt.Errorf("decode batch of %d bytes: %w", len(b), ErrShortBatch)
	}
	for i := 0; i < len(b); i += 4 {
		bits := binary.LittleEndian.Uint32(b[i:])
		dst = append(dst, float64(math.Float32frombits(bits)))
	}
	return dst, nil
}
