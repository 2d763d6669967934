// Package testutil provides shared test utilities and fixtures.
//
// This package centralises the matrix and vector comparisons used by the
// track, surface and cradle tests.
package testutil

import (
	"fmt"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// MatrixMismatch returns a description of the first element where got
// differs from want by more than tol·(1+|want|), or "" if they agree.
func MatrixMismatch(want, got mat.Matrix, tol float64) string {
	wr, wc := want.Dims()
	gr, gc := got.Dims()
	if wr != gr || wc != gc {
		return fmt.Sprintf("dims = %dx%d, want %dx%d", gr, gc, wr, wc)
	}
	for i := 0; i < wr; i++ {
		for j := 0; j < wc; j++ {
			w, g := want.At(i, j), got.At(i, j)
			if math.IsNaN(g) || math.Abs(w-g) > tol*(1+math.Abs(w)) {
				return fmt.Sprintf("element (%d,%d) = %.10g, want %.10g (tol %g)", i, j, g, w, tol)
			}
		}
	}
	return ""
}

// AssertMatrixNear fails the test if any element of got differs from want
// by more than tol relative to 1+|want|.
func AssertMatrixNear(t testing.TB, want, got mat.Matrix, tol float64) {
	t.Helper()
	if msg := MatrixMismatch(want, got, tol); msg != "" {
		t.Errorf("matrix mismatch: %s\nwant:\n%v\ngot:\n%v",
			msg, mat.Formatted(want, mat.Squeeze()), mat.Formatted(got, mat.Squeeze()))
	}
}

// AssertVecNear fails the test if got is farther than tol from want.
func AssertVecNear(t testing.TB, want, got r3.Vec, tol float64) {
	t.Helper()
	if d := r3.Norm(r3.Sub(want, got)); !(d <= tol) {
		t.Errorf("vector = %v, want %v (distance %g > %g)", got, want, d, tol)
	}
}

// Identity returns an n×n identity matrix.
func Identity(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}
