// Package vecmath provides similarity primitives over embedding vectors.
package vecmath

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// CosineSimilarity computes cosine similarity between two vectors.
// Mismatched lengths or empty vectors yield 0 rather than an error.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EuclideanDistance computes the L2 distance between two vectors.
// Mismatched lengths or empty vectors yield +Inf.
func EuclideanDistance(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// EncodeVector packs a vector as little-endian float32 bytes, the format
// used by the embedding BLOB columns.
func EncodeVector(v Vector) []byte {
	if len(v) == 0 {
		return nil
	}
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

// DecodeVector unpacks a little-endian float32 BLOB. A nil or empty blob
// decodes to a nil vector.
func DecodeVector(b []byte) (Vector, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(b))
	}
	v := make(Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
