package mesh

import (
	"math"
	"sort"
)

const mortonBits = 21

// spread inserts two zero bits between each of the low 21 bits of v
func spread(v uint64) uint64 {
	v &= 0x1fffff
	v = (v | v<<32) & 0x1f00000000ffff
	v = (v | v<<16) & 0x1f0000ff0000ff
	v = (v | v<<8) & 0x100f00f00f00f00f
	v = (v | v<<4) & 0x10c30c30c30c30c3
	v = (v | v<<2) & 0x1249249249249249
	return v
}

// MortonCodes quantizes points to the bounding box and interleaves the
// coordinate bits along a Z-order curve.
func MortonCodes(points [][3]float64) []uint64 {
	codes := make([]uint64, len(points))
	if len(points) == 0 {
		return codes
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		for d := 0; d < 3; d++ {
			lo[d] = math.Min(lo[d], p[d])
			hi[d] = math.Max(hi[d], p[d])
		}
	}
	scale := float64(uint64(1)<<mortonBits - 1)
	for i, p := range points {
		var q [3]uint64
		for d := 0; d < 3; d++ {
			if ext := hi[d] - lo[d]; ext > 0 {
				q[d] = uint64((p[d] - lo[d]) / ext * scale)
			}
		}
		codes[i] = spread(q[0]) | spread(q[1])<<1 | spread(q[2])<<2
	}
	return codes
}

// MortonOrder returns the permutation that sorts points along the Z-order
// curve. Ties keep their input order.
func MortonOrder(points [][3]float64) []int {
	codes := MortonCodes(points)
	order := make([]int, len(points))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return codes[order[a]] < codes[order[b]]
	})
	return order
}
