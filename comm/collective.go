package comm

import (
	"fmt"
	"slices"
)

// Allgather sends local to every rank of c and returns the contributions of
// all ranks indexed by rank. Every rank of c must call it with the same tag.
func Allgather(c Communicator, tag string, local []int) ([][]int, error) {
	me := c.Rank()
	for dest := 0; dest < c.Size(); dest++ {
		if dest == me {
			continue
		}
		if err := c.Send(dest, Message{Tag: tag, Ints: local}); err != nil {
			return nil, fmt.Errorf("allgather %s: %w", tag, err)
		}
	}
	out := make([][]int, c.Size())
	for src := 0; src < c.Size(); src++ {
		if src == me {
			out[src] = slices.Clone(local)
			continue
		}
		m, err := Expect(c, src, tag)
		if err != nil {
			return nil, fmt.Errorf("allgather %s: %w", tag, err)
		}
		out[src] = m.Ints
	}
	return out, nil
}

// AllgatherInt is Allgather for a single value per rank.
func AllgatherInt(c Communicator, tag string, v int) ([]int, error) {
	parts, err := Allgather(c, tag, []int{v})
	if err != nil {
		return nil, err
	}
	out := make([]int, len(parts))
	for i, p := range parts {
		if len(p) != 1 {
			return nil, fmt.Errorf("allgather %s: rank %d sent %d values", tag, i, len(p))
		}
		out[i] = p[0]
	}
	return out, nil
}

// Barrier returns once every rank of c has entered it.
func Barrier(c Communicator) error {
	_, err := Allgather(c, "barrier", nil)
	return err
}

// WorldRanks gathers, over the local communicator, the world rank of each
// local member. Entry i is the world rank of local rank i. The returned
// slice belongs to the caller.
func WorldRanks(local Communicator, worldRank int) ([]int, error) {
	return AllgatherInt(local, "world-ranks", worldRank)
}
