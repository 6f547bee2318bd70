package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestBuildIdentity(t *testing.T) {
	src := [][3]float64{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}}
	tgt := [][3]float64{{3, 0, 0}, {0, 0, 0}, {2, 0, 0}, {1, 0, 0}}

	M := Build(src, tgt, DefaultOptions())
	require.Equal(t, 4, M.Matched())

	P := mat.NewDense(4, 4, []float64{
		0, 0, 0, 1,
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, 1, 0, 0,
	})
	if !mat.Equal(P, M.Dense()) {
		t.Errorf("expected permutation matrix, got\n%v", mat.Formatted(M.Dense()))
	}

	values := []float64{10, 11, 20, 21, 30, 31, 40, 41}
	out := make([]float64, 8)
	require.NoError(t, M.Apply(2, values, out, -1))
	assert.Equal(t, []float64{40, 41, 10, 11, 30, 31, 20, 21}, out)
}

func TestBuildInverseDistance(t *testing.T) {
	src := [][3]float64{{0, 0, 0}, {1, 0, 0}, {10, 0, 0}}
	tgt := [][3]float64{{0.25, 0, 0}}

	M := Build(src, tgt, Options{KNearest: 2, Tolerance: 1e-12})
	D := M.Dense()
	assert.InDelta(t, 0.75, D.At(0, 0), 1e-12)
	assert.InDelta(t, 0.25, D.At(0, 1), 1e-12)
	assert.Equal(t, 0.0, D.At(0, 2))

	out := make([]float64, 1)
	require.NoError(t, M.Apply(1, []float64{4, 8, 100}, out, 0))
	assert.InDelta(t, 5.0, out[0], 1e-12)
}

func TestBuildMaxDistance(t *testing.T) {
	src := [][3]float64{{0, 0, 0}}
	tgt := [][3]float64{{0, 0, 0}, {5, 0, 0}}

	M := Build(src, tgt, Options{KNearest: 1, MaxDistance: 1})
	assert.Equal(t, 1, M.Matched())

	out := []float64{0, 0}
	require.NoError(t, M.Apply(1, []float64{7}, out, -3))
	assert.Equal(t, []float64{7, -3}, out)
}

func TestApplyValidation(t *testing.T) {
	M := Build(nil, [][3]float64{{0, 0, 0}}, DefaultOptions())
	assert.Equal(t, 0, M.Matched())

	out := []float64{1}
	require.NoError(t, M.Apply(1, nil, out, 2.5))
	assert.Equal(t, []float64{2.5}, out)

	assert.Error(t, M.Apply(0, nil, out, 0))
	assert.Error(t, M.Apply(1, []float64{1}, out, 0))
	assert.Error(t, M.Apply(2, nil, out, 0))
}
