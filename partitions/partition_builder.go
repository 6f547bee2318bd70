package partitions

import (
	"fmt"
	"math"
	"strings"

	"github.com/notargets/DGCoupling/mesh"
)

// PartitionBuilder distributes the cells of a mesh over the ranks of a group
type PartitionBuilder struct {
	Mesh          *mesh.Mesh
	NumPartitions int
	Strategy      PartitionStrategy
}

// PartitionStrategy defines how elements are grouped
type PartitionStrategy int

const (
	BlockPartition    PartitionStrategy = iota // Consecutive elements
	RoundRobin                                 // Distribute cyclically
	SpaceFillingCurve                          // Blocks along the Z-order of centroids
	FromMesh                                   // Use the mesh's own EToP
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "roundrobin"
	case SpaceFillingCurve:
		return "sfc"
	case FromMesh:
		return "mesh"
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

// ParseStrategy converts a configuration name to a strategy
func ParseStrategy(name string) (PartitionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "block":
		return BlockPartition, nil
	case "roundrobin", "round-robin":
		return RoundRobin, nil
	case "sfc", "morton":
		return SpaceFillingCurve, nil
	case "mesh":
		return FromMesh, nil
	}
	return BlockPartition, fmt.Errorf("unknown partition strategy %q", name)
}

// BuildPartitions creates a partition layout for the mesh
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumPartitions < 1 {
		return nil, fmt.Errorf("invalid partition count %d", pb.NumPartitions)
	}

	eToP, err := pb.partitionElements()
	if err != nil {
		return nil, err
	}

	partitions := pb.createPartitions(eToP)
	kpartMax := 0
	for _, p := range partitions {
		kpartMax = max(kpartMax, p.NumElements)
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalElements: pb.Mesh.NumCells(),
		NumPartitions: pb.NumPartitions,
		EToP:          eToP,
	}

	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return layout, nil
}

// partitionElements assigns elements to partitions
func (pb *PartitionBuilder) partitionElements() ([]int, error) {
	K := pb.Mesh.NumCells()
	np := pb.NumPartitions
	eToP := make([]int, K)
	perPartition := max(1, int(math.Ceil(float64(K)/float64(np))))

	switch pb.Strategy {
	case BlockPartition:
		for i := 0; i < K; i++ {
			eToP[i] = min(i/perPartition, np-1)
		}

	case RoundRobin:
		for i := 0; i < K; i++ {
			eToP[i] = i % np
		}

	case SpaceFillingCurve:
		centroids := make([][3]float64, K)
		for k := range centroids {
			centroids[k] = pb.Mesh.CellCentroid(k)
		}
		for pos, k := range mesh.MortonOrder(centroids) {
			eToP[k] = min(pos/perPartition, np-1)
		}

	case FromMesh:
		if len(pb.Mesh.EToP) != K {
			return nil, fmt.Errorf("mesh carries no partition map")
		}
		for k, p := range pb.Mesh.EToP {
			if p < 0 || p >= np {
				return nil, fmt.Errorf("element %d in partition %d, only %d partitions", k, p, np)
			}
			eToP[k] = p
		}

	default:
		return nil, fmt.Errorf("unsupported strategy %v", pb.Strategy)
	}
	return eToP, nil
}

// createPartitions builds partition structures from element assignments
func (pb *PartitionBuilder) createPartitions(eToP []int) []Partition {
	partitions := make([]Partition, pb.NumPartitions)
	for i := range partitions {
		partitions[i] = Partition{
			ID:       i,
			Elements: make([]int, 0),
		}
	}
	for elem, part := range eToP {
		partitions[part].Elements = append(partitions[part].Elements, elem)
		partitions[part].NumElements++
	}
	return partitions
}
