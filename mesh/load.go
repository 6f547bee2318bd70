package mesh

import (
	"fmt"

	"github.com/notargets/gocfd/DG3D/mesh/readers"
)

// Load reads a volume mesh file (Gambit neutral, Gmsh, ...) and converts it
// to a native Mesh. Partition assignments in the file are kept in EToP.
func Load(meshFile string) (*Mesh, error) {
	msh, err := readers.ReadMeshFile(meshFile)
	if err != nil {
		return nil, fmt.Errorf("reading mesh file %s: %w", meshFile, err)
	}

	m := &Mesh{
		Dim:      3,
		Vertices: make([][3]float64, len(msh.Vertices)),
		Cells:    make([][]int, msh.NumElements),
	}
	for i, v := range msh.Vertices {
		m.Vertices[i] = [3]float64{v[0], v[1], v[2]}
	}
	for k := 0; k < msh.NumElements; k++ {
		m.Cells[k] = append([]int(nil), msh.EtoV[k]...)
	}
	if len(msh.EToP) == msh.NumElements {
		m.EToP = append([]int(nil), msh.EToP...)
	}

	if err = m.Validate(); err != nil {
		return nil, fmt.Errorf("mesh file %s: %w", meshFile, err)
	}
	return m, nil
}
