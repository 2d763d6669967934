package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	// Verify nil error doesn't cause issues
	AssertNoError(t, nil)
	assert.Error(t, errors.New("boom"))
}

func TestMatrixMismatch(t *testing.T) {
	t.Parallel()

	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	t.Run("equal", func(t *testing.T) {
		assert.Empty(t, MatrixMismatch(a, mat.DenseCopyOf(a), 1e-12))
	})

	t.Run("within relative tolerance", func(t *testing.T) {
		b := mat.NewDense(2, 2, []float64{1, 2, 3, 4 + 4e-7})
		assert.Empty(t, MatrixMismatch(a, b, 1e-6))
	})

	t.Run("element differs", func(t *testing.T) {
		b := mat.NewDense(2, 2, []float64{1, 2, 3.1, 4})
		assert.Contains(t, MatrixMismatch(a, b, 1e-6), "element (1,0)")
	})

	t.Run("dims differ", func(t *testing.T) {
		assert.Contains(t, MatrixMismatch(a, Identity(3), 1e-6), "dims")
	})
}

func TestAssertHelpersAcceptMatchingValues(t *testing.T) {
	t.Parallel()

	AssertMatrixNear(t, Identity(4), Identity(4), 0)
	AssertVecNear(t, r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 1, Y: 2, Z: 3 + 1e-9}, 1e-8)
}
