package mesh

import (
	"fmt"
	"slices"
	"strings"
)

// ElementType identifies the shape of a cell or face
type ElementType uint8

const (
	Point ElementType = iota
	Line
	Tri
	Quad
	Tet
	Hex
)

func (et ElementType) String() string {
	switch et {
	case Point:
		return "Point"
	case Line:
		return "Line"
	case Tri:
		return "Tri"
	case Quad:
		return "Quad"
	case Tet:
		return "Tet"
	case Hex:
		return "Hex"
	}
	return fmt.Sprintf("ElementType(%d)", et)
}

// Mesh is a process's native unstructured mesh. Cells list vertex indices;
// the element type is implied by Dim and the vertex count.
type Mesh struct {
	Dim      int
	Vertices [][3]float64
	Cells    [][]int
	EToP     []int // Cell to partition, optional

	faces []Face
}

// Face is a boundary face of a cell
type Face struct {
	Cell     int
	Local    int // Face number within the cell
	Vertices []int
}

func (m *Mesh) NumCells() int    { return len(m.Cells) }
func (m *Mesh) NumVertices() int { return len(m.Vertices) }

// CellType infers the element type of cell k
func (m *Mesh) CellType(k int) ElementType {
	return elementType(m.Dim, len(m.Cells[k]))
}

func elementType(dim, nverts int) ElementType {
	switch {
	case dim == 0 || nverts == 1:
		return Point
	case dim == 1:
		return Line
	case dim == 2 && nverts == 3:
		return Tri
	case dim == 2:
		return Quad
	case dim == 3 && nverts == 4:
		return Tet
	default:
		return Hex
	}
}

// Centroid returns the vertex average of the listed vertices
func (m *Mesh) Centroid(verts []int) [3]float64 {
	var c [3]float64
	if len(verts) == 0 {
		return c
	}
	for _, v := range verts {
		for d := 0; d < 3; d++ {
			c[d] += m.Vertices[v][d]
		}
	}
	for d := 0; d < 3; d++ {
		c[d] /= float64(len(verts))
	}
	return c
}

func (m *Mesh) CellCentroid(k int) [3]float64 {
	return m.Centroid(m.Cells[k])
}

// Partition returns the partition of cell k, or 0 when no EToP is set
func (m *Mesh) Partition(k int) int {
	if k < 0 || k >= len(m.EToP) {
		return 0
	}
	return m.EToP[k]
}

// Validate checks vertex references and cell sizes
func (m *Mesh) Validate() error {
	if m.Dim < 1 || m.Dim > 3 {
		return fmt.Errorf("invalid mesh dimension %d", m.Dim)
	}
	for k, cell := range m.Cells {
		if len(cell) < m.Dim+1 {
			return fmt.Errorf("cell %d has %d vertices, need at least %d", k, len(cell), m.Dim+1)
		}
		for _, v := range cell {
			if v < 0 || v >= len(m.Vertices) {
				return fmt.Errorf("cell %d references vertex %d of %d", k, v, len(m.Vertices))
			}
		}
	}
	if m.EToP != nil && len(m.EToP) != len(m.Cells) {
		return fmt.Errorf("EToP length %d does not match %d cells", len(m.EToP), len(m.Cells))
	}
	return nil
}

// cellFaces lists the local faces of a cell as vertex lists
func cellFaces(et ElementType, cell []int) [][]int {
	pick := func(idx ...int) []int {
		out := make([]int, len(idx))
		for i, j := range idx {
			out[i] = cell[j]
		}
		return out
	}
	switch et {
	case Line:
		return [][]int{pick(0), pick(1)}
	case Tri:
		return [][]int{pick(0, 1), pick(1, 2), pick(2, 0)}
	case Quad:
		return [][]int{pick(0, 1), pick(1, 2), pick(2, 3), pick(3, 0)}
	case Tet:
		return [][]int{pick(0, 1, 2), pick(0, 1, 3), pick(1, 2, 3), pick(0, 2, 3)}
	case Hex:
		return [][]int{
			pick(0, 3, 2, 1), pick(4, 5, 6, 7),
			pick(0, 1, 5, 4), pick(1, 2, 6, 5),
			pick(2, 3, 7, 6), pick(3, 0, 4, 7),
		}
	}
	return nil
}

func faceKey(verts []int) string {
	s := slices.Clone(verts)
	slices.Sort(s)
	var sb strings.Builder
	for i, v := range s {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", v)
	}
	return sb.String()
}

// BoundaryFaces returns the faces owned by exactly one cell, ordered by cell
// then local face number. The result is computed once.
func (m *Mesh) BoundaryFaces() []Face {
	if m.faces != nil {
		return m.faces
	}
	count := make(map[string]int)
	for k := range m.Cells {
		for _, f := range cellFaces(m.CellType(k), m.Cells[k]) {
			count[faceKey(f)]++
		}
	}
	faces := make([]Face, 0)
	for k := range m.Cells {
		for i, f := range cellFaces(m.CellType(k), m.Cells[k]) {
			if count[faceKey(f)] == 1 {
				faces = append(faces, Face{Cell: k, Local: i, Vertices: f})
			}
		}
	}
	m.faces = faces
	return faces
}

// String returns a short summary of the mesh
func (m *Mesh) String() string {
	var sb strings.Builder
	counts := make(map[ElementType]int)
	for k := range m.Cells {
		counts[m.CellType(k)]++
	}
	sb.WriteString(fmt.Sprintf("Mesh: dim=%d vertices=%d cells=%d boundary faces=%d\n",
		m.Dim, len(m.Vertices), len(m.Cells), len(m.BoundaryFaces())))
	for _, et := range []ElementType{Line, Tri, Quad, Tet, Hex} {
		if counts[et] > 0 {
			sb.WriteString(fmt.Sprintf("  %s: %d\n", et, counts[et]))
		}
	}
	return sb.String()
}
