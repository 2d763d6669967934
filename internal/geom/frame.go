// Package geom holds the small amount of coordinate geometry shared by the
// track, surface and cradle packages: local track frames and angle helpers.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Frame is a rigid local coordinate system. Rot holds the local axes as
// columns expressed in global coordinates, so global = Origin + Rot·local.
type Frame struct {
	Origin r3.Vec
	Rot    *r3.Mat
}

// Identity returns the global frame.
func Identity() Frame {
	return Frame{Rot: r3.Eye()}
}

// NewFrame returns a frame at origin whose local z axis points along axis.
// The local x axis is the projection of global x (or global y when axis is
// nearly parallel to x) onto the plane orthogonal to axis.
func NewFrame(origin, axis r3.Vec) Frame {
	n := r3.Norm(axis)
	if n == 0 {
		return Frame{Origin: origin, Rot: r3.Eye()}
	}
	ez := r3.Scale(1/n, axis)
	if math.Abs(ez.Z-1) < 1e-15 {
		return Frame{Origin: origin, Rot: r3.Eye()}
	}

	ref := r3.Vec{X: 1}
	if math.Abs(ez.X) > 0.9 {
		ref = r3.Vec{Y: 1}
	}
	ex := r3.Unit(r3.Sub(ref, r3.Scale(r3.Dot(ref, ez), ez)))
	ey := r3.Cross(ez, ex)

	return Frame{
		Origin: origin,
		Rot: r3.NewMat([]float64{
			ex.X, ey.X, ez.X,
			ex.Y, ey.Y, ez.Y,
			ex.Z, ey.Z, ez.Z,
		}),
	}
}

func (f Frame) rot() *r3.Mat {
	if f.Rot == nil {
		return r3.Eye()
	}
	return f.Rot
}

// ToGlobal maps a local point to global coordinates.
func (f Frame) ToGlobal(p r3.Vec) r3.Vec {
	return r3.Add(f.Origin, f.rot().MulVec(p))
}

// ToLocal maps a global point to local coordinates.
func (f Frame) ToLocal(p r3.Vec) r3.Vec {
	return f.rot().MulVecTrans(r3.Sub(p, f.Origin))
}

// DirToGlobal rotates a local direction into global coordinates.
func (f Frame) DirToGlobal(v r3.Vec) r3.Vec {
	return f.rot().MulVec(v)
}

// DirToLocal rotates a global direction into local coordinates.
func (f Frame) DirToLocal(v r3.Vec) r3.Vec {
	return f.rot().MulVecTrans(v)
}

// IsIdentityRotation reports whether the local axes coincide with the
// global ones. The origin may still be displaced.
func (f Frame) IsIdentityRotation() bool {
	if f.Rot == nil {
		return true
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(f.Rot.At(i, j)-want) > 1e-15 {
				return false
			}
		}
	}
	return true
}
