package partitions

import (
	"fmt"
	"math"

	"github.com/notargets/DGCoupling/mesh"
)

// Partition is the set of cells owned by one rank of a process group
type Partition struct {
	// Unique identifier for this partition, equal to the owning group rank
	ID int

	// Element membership
	Elements    []int // Global cell indices, ascending
	NumElements int
}

// PartitionLayout manages the decomposition of a mesh across a group
type PartitionLayout struct {
	Partitions []Partition

	// Global sizing information
	KpartMax      int // max(NumElements) across all partitions
	TotalElements int
	NumPartitions int

	// Element to partition mapping
	EToP []int // Length TotalElements: element k belongs to partition EToP[k]
}

// GetPartition returns the partition containing element k
func (pl *PartitionLayout) GetPartition(elementID int) int {
	if elementID < 0 || elementID >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[elementID]
}

// ValidateLayout checks partition consistency
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("%d partitions stored, NumPartitions is %d",
			len(pl.Partitions), pl.NumPartitions)
	}
	actualMax, total := 0, 0
	for _, p := range pl.Partitions {
		if p.NumElements != len(p.Elements) {
			return fmt.Errorf("partition %d: NumElements %d != %d elements",
				p.ID, p.NumElements, len(p.Elements))
		}
		for _, k := range p.Elements {
			if pl.GetPartition(k) != p.ID {
				return fmt.Errorf("partition %d: element %d mapped to partition %d",
					p.ID, k, pl.GetPartition(k))
			}
		}
		actualMax = max(actualMax, p.NumElements)
		total += p.NumElements
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	if total != pl.TotalElements || len(pl.EToP) != total {
		return fmt.Errorf("partitions hold %d elements, layout has %d (EToP %d)",
			total, pl.TotalElements, len(pl.EToP))
	}
	return nil
}

// PartitionStatistics computes load balance metrics
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinElements:   math.MaxInt32,
		AvgElements:   float64(pl.TotalElements) / float64(pl.NumPartitions),
	}
	for _, p := range pl.Partitions {
		stats.MinElements = min(stats.MinElements, p.NumElements)
		stats.MaxElements = max(stats.MaxElements, p.NumElements)
	}
	stats.Imbalance = float64(stats.MaxElements) / stats.AvgElements
	return stats
}

type PartitionStats struct {
	NumPartitions int
	MinElements   int
	MaxElements   int
	AvgElements   float64
	Imbalance     float64 // MaxElements / AvgElements
}

// GatherField picks partition p's values out of a global cell array
func (pl *PartitionLayout) GatherField(p, dim int, global []float64) []float64 {
	elems := pl.Partitions[p].Elements
	local := make([]float64, len(elems)*dim)
	for i, k := range elems {
		copy(local[i*dim:(i+1)*dim], global[k*dim:(k+1)*dim])
	}
	return local
}

// ScatterField places partition p's values into a global cell array
func (pl *PartitionLayout) ScatterField(p, dim int, local, global []float64) {
	for i, k := range pl.Partitions[p].Elements {
		copy(global[k*dim:(k+1)*dim], local[i*dim:(i+1)*dim])
	}
}

// Extract builds the sub-mesh owned by partition p. Local cell i is global
// cell Partitions[p].Elements[i]; vertices are renumbered compactly.
func Extract(m *mesh.Mesh, pl *PartitionLayout, p int) (*mesh.Mesh, error) {
	if p < 0 || p >= pl.NumPartitions {
		return nil, fmt.Errorf("partition %d out of range [0,%d)", p, pl.NumPartitions)
	}
	if pl.TotalElements != m.NumCells() {
		return nil, fmt.Errorf("layout covers %d elements, mesh has %d cells",
			pl.TotalElements, m.NumCells())
	}
	sub := &mesh.Mesh{Dim: m.Dim}
	globalToLocal := make(map[int]int)
	for _, k := range pl.Partitions[p].Elements {
		cell := make([]int, len(m.Cells[k]))
		for i, v := range m.Cells[k] {
			lv, ok := globalToLocal[v]
			if !ok {
				lv = len(sub.Vertices)
				globalToLocal[v] = lv
				sub.Vertices = append(sub.Vertices, m.Vertices[v])
			}
			cell[i] = lv
		}
		sub.Cells = append(sub.Cells, cell)
		sub.EToP = append(sub.EToP, p)
	}
	return sub, nil
}
