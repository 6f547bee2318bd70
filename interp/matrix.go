package interp

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// Options controls how target points are matched to source points
type Options struct {
	// KNearest is the number of source points blended per target point
	KNearest int
	// Tolerance below which a source point is taken as coincident
	Tolerance float64
	// MaxDistance beyond which source points are ignored, 0 for no limit
	MaxDistance float64
}

func DefaultOptions() Options {
	return Options{KNearest: 1, Tolerance: 1e-10}
}

// Matrix is a sparse row-stochastic interpolation operator from Cols source
// points to Rows target points. Every non-empty row sums to one, so the
// transfer conserves intensive quantities.
type Matrix struct {
	Rows, Cols int
	cols       [][]int
	weights    [][]float64
}

// Build matches every target point against the source cloud with a k-d tree
// and assigns inverse-distance weights. A coincident source point takes the
// full weight.
func Build(src, tgt [][3]float64, opts Options) *Matrix {
	if opts.KNearest < 1 {
		opts.KNearest = 1
	}
	m := &Matrix{
		Rows:    len(tgt),
		Cols:    len(src),
		cols:    make([][]int, len(tgt)),
		weights: make([][]float64, len(tgt)),
	}
	if len(src) == 0 {
		return m
	}

	pts := make(kdtree.Points, len(src))
	index := make(map[*float64]int, len(src))
	for i, p := range src {
		pts[i] = kdtree.Point{p[0], p[1], p[2]}
		index[&pts[i][0]] = i
	}
	// New reorders pts; the point backing arrays stay put
	tree := kdtree.New(pts, false)

	k := min(opts.KNearest, len(src))
	for r, p := range tgt {
		keep := kdtree.NewNKeeper(k)
		tree.NearestSet(keep, kdtree.Point{p[0], p[1], p[2]})

		type neighbor struct {
			col  int
			dist float64
		}
		near := make([]neighbor, 0, k)
		for _, c := range keep.Heap {
			if c.Comparable == nil {
				continue
			}
			q := c.Comparable.(kdtree.Point)
			d := math.Sqrt(c.Dist)
			if opts.MaxDistance > 0 && d > opts.MaxDistance {
				continue
			}
			near = append(near, neighbor{index[&q[0]], d})
		}
		if len(near) == 0 {
			continue
		}
		sort.Slice(near, func(a, b int) bool {
			if near[a].dist != near[b].dist {
				return near[a].dist < near[b].dist
			}
			return near[a].col < near[b].col
		})

		if near[0].dist <= opts.Tolerance {
			m.cols[r] = []int{near[0].col}
			m.weights[r] = []float64{1}
			continue
		}
		cols := make([]int, len(near))
		w := make([]float64, len(near))
		for i, n := range near {
			cols[i] = n.col
			w[i] = 1 / n.dist
		}
		floats.Scale(1/floats.Sum(w), w)
		m.cols[r] = cols
		m.weights[r] = w
	}
	return m
}

// Matched is the number of target points with at least one contribution
func (m *Matrix) Matched() int {
	n := 0
	for _, c := range m.cols {
		if len(c) > 0 {
			n++
		}
	}
	return n
}

// Apply interpolates src (Cols x dim, row major) into dst (Rows x dim).
// Unmatched target rows are set to def.
func (m *Matrix) Apply(dim int, src, dst []float64, def float64) error {
	if dim < 1 {
		return fmt.Errorf("invalid dimension %d", dim)
	}
	if len(src) != m.Cols*dim {
		return fmt.Errorf("source has %d values, want %d", len(src), m.Cols*dim)
	}
	if len(dst) != m.Rows*dim {
		return fmt.Errorf("target has %d values, want %d", len(dst), m.Rows*dim)
	}
	if m.Cols == 0 {
		for i := range dst {
			dst[i] = def
		}
		return nil
	}
	S := mat.NewDense(m.Cols, dim, src)
	for r := 0; r < m.Rows; r++ {
		out := dst[r*dim : (r+1)*dim]
		if len(m.cols[r]) == 0 {
			for j := range out {
				out[j] = def
			}
			continue
		}
		for j := range out {
			out[j] = 0
		}
		for i, c := range m.cols[r] {
			floats.AddScaled(out, m.weights[r][i], S.RawRowView(c))
		}
	}
	return nil
}

// Dense expands the operator, for inspection and tests
func (m *Matrix) Dense() *mat.Dense {
	if m.Rows == 0 || m.Cols == 0 {
		return &mat.Dense{}
	}
	D := mat.NewDense(m.Rows, m.Cols, nil)
	for r := range m.cols {
		for i, c := range m.cols[r] {
			D.Set(r, c, m.weights[r][i])
		}
	}
	return D
}
