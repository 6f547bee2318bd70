package coupling

import "github.com/notargets/DGCoupling/mesh"

// CoupledMesh is a mesh registered with a session. Its adapter exists once
// InitMeshes has run; its handles are created on first field registration
// in each direction.
type CoupledMesh struct {
	ID        int
	Name      string
	Predicate string
	EltDim    int
	Direction Direction

	Adapter *mesh.Adapter

	// Position of this rank's elements in the group-wide numbering
	GlobalOffset int
	GlobalCount  int

	SendHandle *ParallelMesh
	RecvHandle *ParallelMesh
}

// ParallelMesh binds a mesh adapter to the process group of one channel
type ParallelMesh struct {
	Mesh      *CoupledMesh
	Direction Direction
	Group     []int // World ranks of this process's side of the channel
}

func (pm *ParallelMesh) Name() string           { return pm.Mesh.Name }
func (pm *ParallelMesh) Adapter() *mesh.Adapter { return pm.Mesh.Adapter }

// NumElements is the number of selected elements, -1 before InitMeshes
func (cm *CoupledMesh) NumElements() int {
	if cm.Adapter == nil {
		return -1
	}
	return cm.Adapter.NumElements()
}

// Handle returns the handle for dir, nil when not yet created
func (cm *CoupledMesh) Handle(dir Direction) *ParallelMesh {
	switch dir {
	case DirSend:
		return cm.SendHandle
	case DirRecv:
		return cm.RecvHandle
	}
	return nil
}

// ensureHandle creates the handle for dir on first use and binds it to ch
func (cm *CoupledMesh) ensureHandle(dir Direction, ch Channel, group []int) (*ParallelMesh, error) {
	if pm := cm.Handle(dir); pm != nil {
		return pm, nil
	}
	pm := &ParallelMesh{Mesh: cm, Direction: dir, Group: group}
	if err := ch.Bind(pm); err != nil {
		return nil, err
	}
	if dir == DirSend {
		cm.SendHandle = pm
	} else {
		cm.RecvHandle = pm
	}
	return pm, nil
}
