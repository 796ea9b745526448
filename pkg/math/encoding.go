package math

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a matrix or vector string cannot be decoded.
var ErrMalformed = errors.New("malformed numeric string")

// String encodes the matrix as 16 space-separated floats in memory order.
// The encoding is lossless: ParseMat4(m.String()) == m.
func (m Mat4) String() string {
	return formatFloats(m[:])
}

// String encodes the vector as 3 space-separated floats.
func (v Vec3) String() string {
	return formatFloats([]float32{v.X, v.Y, v.Z})
}

// ParseMat4 decodes a matrix produced by Mat4.String.
func ParseMat4(s string) (Mat4, error) {
	var m Mat4
	if err := parseFloats(s, m[:]); err != nil {
		return Mat4{}, fmt.Errorf("mat4: %w", err)
	}
	return m, nil
}

// ParseVec3 decodes a vector produced by Vec3.String.
func ParseVec3(s string) (Vec3, error) {
	var f [3]float32
	if err := parseFloats(s, f[:]); err != nil {
		return Vec3{}, fmt.Errorf("vec3: %w", err)
	}
	return Vec3{f[0], f[1], f[2]}, nil
}

func formatFloats(values []float32) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	return b.String()
}

func parseFloats(s string, dst []float32) error {
	fields := strings.Fields(s)
	if len(fields) != len(dst) {
		return fmt.Errorf("%w: expected %d values, got %d", ErrMalformed, len(dst), len(fields))
	}
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return fmt.Errorf("%w: value %d: %v", ErrMalformed, i, err)
		}
		dst[i] = float32(v)
	}
	return nil
}
