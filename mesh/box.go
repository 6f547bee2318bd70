package mesh

import "fmt"

// NewBox builds a structured mesh of the box [lo, hi]. ny == 0 gives a line
// mesh of nx segments, nz == 0 a quad mesh of nx*ny cells, otherwise a hex
// mesh. Cells are numbered x fastest.
func NewBox(nx, ny, nz int, lo, hi [3]float64) (*Mesh, error) {
	if nx < 1 || ny < 0 || nz < 0 || (ny == 0 && nz > 0) {
		return nil, fmt.Errorf("invalid box resolution %dx%dx%d", nx, ny, nz)
	}
	dim := 3
	switch {
	case ny == 0:
		dim = 1
	case nz == 0:
		dim = 2
	}
	n := [3]int{nx, max(ny, 1), max(nz, 1)}
	nv := [3]int{nx + 1, 1, 1}
	if dim >= 2 {
		nv[1] = ny + 1
	}
	if dim == 3 {
		nv[2] = nz + 1
	}

	coord := func(d, i int) float64 {
		if nv[d] == 1 {
			return lo[d]
		}
		return lo[d] + (hi[d]-lo[d])*float64(i)/float64(nv[d]-1)
	}
	vid := func(i, j, k int) int {
		return i + nv[0]*(j+nv[1]*k)
	}

	m := &Mesh{Dim: dim}
	m.Vertices = make([][3]float64, 0, nv[0]*nv[1]*nv[2])
	for k := 0; k < nv[2]; k++ {
		for j := 0; j < nv[1]; j++ {
			for i := 0; i < nv[0]; i++ {
				m.Vertices = append(m.Vertices, [3]float64{coord(0, i), coord(1, j), coord(2, k)})
			}
		}
	}

	m.Cells = make([][]int, 0, n[0]*n[1]*n[2])
	for k := 0; k < n[2]; k++ {
		for j := 0; j < n[1]; j++ {
			for i := 0; i < n[0]; i++ {
				switch dim {
				case 1:
					m.Cells = append(m.Cells, []int{vid(i, 0, 0), vid(i+1, 0, 0)})
				case 2:
					m.Cells = append(m.Cells, []int{
						vid(i, j, 0), vid(i+1, j, 0), vid(i+1, j+1, 0), vid(i, j+1, 0),
					})
				case 3:
					m.Cells = append(m.Cells, []int{
						vid(i, j, k), vid(i+1, j, k), vid(i+1, j+1, k), vid(i, j+1, k),
						vid(i, j, k+1), vid(i+1, j, k+1), vid(i+1, j+1, k+1), vid(i, j+1, k+1),
					})
				}
			}
		}
	}
	return m, nil
}
