package mesh

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unitLo, unitHi = [3]float64{0, 0, 0}, [3]float64{1, 1, 1}

func TestNewBox(t *testing.T) {
	testCases := []struct {
		name                   string
		nx, ny, nz             int
		dim, cells, verts, bfs int
	}{
		{"line", 4, 0, 0, 1, 4, 5, 2},
		{"quad", 3, 2, 0, 2, 6, 12, 10},
		{"hex", 2, 2, 2, 3, 8, 27, 24},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := NewBox(tc.nx, tc.ny, tc.nz, unitLo, unitHi)
			if err != nil {
				t.Fatalf("NewBox failed: %v", err)
			}
			if err = m.Validate(); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			assert.Equal(t, tc.dim, m.Dim)
			assert.Equal(t, tc.cells, m.NumCells())
			assert.Equal(t, tc.verts, m.NumVertices())
			assert.Len(t, m.BoundaryFaces(), tc.bfs)
		})
	}

	_, err := NewBox(0, 1, 1, unitLo, unitHi)
	assert.Error(t, err)
	_, err = NewBox(2, 0, 3, unitLo, unitHi)
	assert.Error(t, err)
}

func TestCellCentroid(t *testing.T) {
	m, err := NewBox(4, 2, 0, unitLo, [3]float64{2, 1, 0})
	require.NoError(t, err)

	c := m.CellCentroid(5) // i=1, j=1
	assert.InDelta(t, 0.75, c[0], 1e-12)
	assert.InDelta(t, 0.75, c[1], 1e-12)
	assert.Equal(t, Quad, m.CellType(5))
}

func TestSelector(t *testing.T) {
	testCases := []struct {
		expr string
		want bool
	}{
		{"", true},
		{SelectAll, true},
		{"x < 0.5", true},
		{"x > 0.5", false},
		{"between(y, 0.2, 0.8) && id == 3", true},
		{"part == 1", false},
		{"sqrt(x*x + y*y) < 1", true},
	}
	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			s, err := NewSelector(tc.expr)
			require.NoError(t, err)
			got, err := s.Match([3]float64{0.25, 0.5, 0}, 3, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := NewSelector("x <")
	assert.Error(t, err)
}

func TestMortonOrder(t *testing.T) {
	points := [][3]float64{{1, 1, 0}, {0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	order := MortonOrder(points)
	// Z-order visits (0,0) (1,0) (0,1) (1,1)
	assert.Equal(t, []int{1, 2, 3, 0}, order)

	assert.Empty(t, MortonOrder(nil))
}

func TestAdapterCells(t *testing.T) {
	m, err := NewBox(4, 4, 0, unitLo, unitHi)
	require.NoError(t, err)

	a, err := NewAdapter(m, "x < 0.5", 2)
	require.NoError(t, err)
	require.Equal(t, 8, a.NumElements())

	var selected []int
	for k := 0; k < m.NumCells(); k++ {
		if m.CellCentroid(k)[0] < 0.5 {
			selected = append(selected, k)
		}
	}
	for i := range a.EltList {
		assert.Equal(t, selected[a.NewToOld[i]], a.EltList[i])
		assert.Equal(t, m.CellCentroid(a.EltList[i]), a.Points(OnCells)[i])
	}

	sorted := slices.Clone(a.EltList)
	slices.Sort(sorted)
	assert.Equal(t, selected, sorted)

	// 3 columns of 5 vertices touched by the left half
	assert.Equal(t, 15, a.NumPoints(OnNodes))
	assert.Equal(t, 25, a.ParentSize(OnNodes))
	assert.Equal(t, 16, a.ParentSize(OnCells))
}

func TestAdapterBoundaryFaces(t *testing.T) {
	m, err := NewBox(2, 2, 0, unitLo, unitHi)
	require.NoError(t, err)

	a, err := NewAdapter(m, "y == 0", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, a.NumElements())
	assert.Equal(t, 8, a.ParentSize(OnCells))
	for _, p := range a.Points(OnCells) {
		assert.Equal(t, 0.0, p[1])
	}
	assert.Equal(t, 3, a.NumPoints(OnNodes))

	_, err = NewAdapter(m, SelectAll, 3)
	assert.Error(t, err)
}

func TestLoadGambitNeutral(t *testing.T) {
	content := `        CONTROL INFO 2.0.0
** GAMBIT NEUTRAL FILE
Two tets
PROGRAM:                  Test     VERSION:  1.0
Mon Jan  1 00:00:00 2025
     NUMNP     NELEM     NGRPS    NBSETS     NDFCD     NDFVL
         8         2         1         0         3         3
ENDOFSECTION
   NODAL COORDINATES 2.0.0
         1   0.00000000000e+00   0.00000000000e+00   0.00000000000e+00
         2   1.00000000000e+00   0.00000000000e+00   0.00000000000e+00
         3   0.00000000000e+00   1.00000000000e+00   0.00000000000e+00
         4   0.00000000000e+00   0.00000000000e+00   1.00000000000e+00
         5   1.00000000000e+00   1.00000000000e+00   0.00000000000e+00
         6   1.00000000000e+00   0.00000000000e+00   1.00000000000e+00
         7   0.00000000000e+00   1.00000000000e+00   1.00000000000e+00
         8   1.00000000000e+00   1.00000000000e+00   1.00000000000e+00
ENDOFSECTION
   ELEMENTS/CELLS 2.0.0
         1         6         4         1         2         3         4
         2         6         4         2         5         6         8
ENDOFSECTION`

	path := filepath.Join(t.TempDir(), "two_tets.neu")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing mesh file: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assert.Equal(t, 3, m.Dim)
	assert.Equal(t, 8, m.NumVertices())
	assert.Equal(t, 2, m.NumCells())
	assert.Equal(t, Tet, m.CellType(0))

	_, err = Load(filepath.Join(t.TempDir(), "missing.neu"))
	assert.Error(t, err)
}
