// Package bfield provides the magnetic field maps used to build helical
// track frames and to drive the integrated track model.
//
// Field values are in Tesla, positions in millimetres.
package bfield

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Field is a static magnetic field map.
type Field interface {
	At(x r3.Vec) r3.Vec
}

// Uniform is a constant field.
type Uniform struct {
	B r3.Vec
}

// NewUniformZ returns a uniform field of bz Tesla along global z.
func NewUniformZ(bz float64) Uniform {
	return Uniform{B: r3.Vec{Z: bz}}
}

// At returns the field value, which is the same everywhere.
func (u Uniform) At(r3.Vec) r3.Vec { return u.B }

// Solenoid is an axially symmetric field with a central value B0 along z
// that falls off over the characteristic length Length (mm):
//
//	Bz = B0 / (1 + (z/L)²)
//	Br = B0 · r · z / (L² (1 + (z/L)²)²)
//
// Br follows from ∇·B = 0 so the map is divergence free.
type Solenoid struct {
	B0     float64
	Length float64
}

// At returns the field value at x.
func (s Solenoid) At(x r3.Vec) r3.Vec {
	if s.Length <= 0 {
		return r3.Vec{Z: s.B0}
	}
	u := x.Z / s.Length
	d := 1 + u*u
	bz := s.B0 / d
	// Br/r so that Bx = x·Br/r and By = y·Br/r
	brOverR := s.B0 * x.Z / (s.Length * s.Length * d * d)
	return r3.Vec{X: x.X * brOverR, Y: x.Y * brOverR, Z: bz}
}

// IsUniform reports whether f is known to be constant in space. A nil field
// counts as uniform (and zero).
func IsUniform(f Field) bool {
	switch v := f.(type) {
	case nil:
		return true
	case Uniform, *Uniform:
		return true
	case Solenoid:
		return v.Length <= 0
	default:
		return false
	}
}

// Magnitude returns |B| at x, or 0 for a nil field.
func Magnitude(f Field, x r3.Vec) float64 {
	if f == nil {
		return 0
	}
	return r3.Norm(f.At(x))
}

// Bz returns the z component of the field at x, or 0 for a nil field.
func Bz(f Field, x r3.Vec) float64 {
	if f == nil {
		return 0
	}
	return f.At(x).Z
}
