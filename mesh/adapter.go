package mesh

import (
	"fmt"
	"slices"
)

// Location says where field values live
type Location int

const (
	OnCells Location = iota
	OnNodes
)

func (l Location) String() string {
	switch l {
	case OnCells:
		return "cells"
	case OnNodes:
		return "nodes"
	}
	return fmt.Sprintf("Location(%d)", int(l))
}

// Adapter is the locally selected part of a native mesh in the form used by
// the interpolation engine. Selected elements are stored in engine order,
// the Z-order of their centroids.
//
// Element indices come in three numberings:
//   - parent: the native mesh numbering (cells, or boundary faces when
//     EltDim is one less than the mesh dimension)
//   - compact: position in the ascending list of selected parent indices
//   - engine: position in the adapter's point arrays and field buffers
type Adapter struct {
	Parent    *Mesh
	Predicate string
	EltDim    int

	// EltList maps engine index to parent element index
	EltList []int
	// NewToOld maps engine index to compact index
	NewToOld []int
	// VertexList maps node index to parent vertex, ascending
	VertexList []int

	centroids [][3]float64
	nodes     [][3]float64
	identity  []int
}

// NewAdapter selects the elements of dimension eltDim matching predicate.
// eltDim equal to the mesh dimension selects cells, one less selects
// boundary faces.
func NewAdapter(m *Mesh, predicate string, eltDim int) (*Adapter, error) {
	sel, err := NewSelector(predicate)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		parent   int
		part     int
		verts    []int
		centroid [3]float64
	}
	var candidates []candidate
	switch eltDim {
	case m.Dim:
		candidates = make([]candidate, len(m.Cells))
		for k, cell := range m.Cells {
			candidates[k] = candidate{k, m.Partition(k), cell, m.Centroid(cell)}
		}
	case m.Dim - 1:
		faces := m.BoundaryFaces()
		candidates = make([]candidate, len(faces))
		for i, f := range faces {
			candidates[i] = candidate{i, m.Partition(f.Cell), f.Vertices, m.Centroid(f.Vertices)}
		}
	default:
		return nil, fmt.Errorf("element dimension %d not supported on a %dD mesh", eltDim, m.Dim)
	}

	var selected []candidate
	for _, c := range candidates {
		ok, err := sel.Match(c.centroid, c.parent, c.part)
		if err != nil {
			return nil, err
		}
		if ok {
			selected = append(selected, c)
		}
	}

	points := make([][3]float64, len(selected))
	for i, c := range selected {
		points[i] = c.centroid
	}
	order := MortonOrder(points)

	a := &Adapter{
		Parent:    m,
		Predicate: sel.String(),
		EltDim:    eltDim,
		EltList:   make([]int, len(selected)),
		NewToOld:  order,
		centroids: make([][3]float64, len(selected)),
	}
	used := make(map[int]bool)
	for i, c := range order {
		a.EltList[i] = selected[c].parent
		a.centroids[i] = selected[c].centroid
		for _, v := range selected[c].verts {
			used[v] = true
		}
	}

	a.VertexList = make([]int, 0, len(used))
	for v := range used {
		a.VertexList = append(a.VertexList, v)
	}
	slices.Sort(a.VertexList)
	a.nodes = make([][3]float64, len(a.VertexList))
	a.identity = make([]int, len(a.VertexList))
	for i, v := range a.VertexList {
		a.nodes[i] = m.Vertices[v]
		a.identity[i] = i
	}
	return a, nil
}

// NumElements is the number of selected elements
func (a *Adapter) NumElements() int { return len(a.EltList) }

// NumPoints is the number of located points for loc
func (a *Adapter) NumPoints(loc Location) int {
	if loc == OnNodes {
		return len(a.nodes)
	}
	return len(a.centroids)
}

// Points returns the coordinates of the located points in engine order
func (a *Adapter) Points(loc Location) [][3]float64 {
	if loc == OnNodes {
		return a.nodes
	}
	return a.centroids
}

// ParentIndex maps engine index to parent numbering for loc
func (a *Adapter) ParentIndex(loc Location) []int {
	if loc == OnNodes {
		return a.VertexList
	}
	return a.EltList
}

// CompactIndex maps engine index to compact numbering for loc. Nodes are
// kept in compact order.
func (a *Adapter) CompactIndex(loc Location) []int {
	if loc == OnNodes {
		return a.identity
	}
	return a.NewToOld
}

// ParentSize is the length of a parent-numbered array for loc
func (a *Adapter) ParentSize(loc Location) int {
	switch {
	case loc == OnNodes:
		return len(a.Parent.Vertices)
	case a.EltDim == a.Parent.Dim:
		return len(a.Parent.Cells)
	default:
		return len(a.Parent.BoundaryFaces())
	}
}
