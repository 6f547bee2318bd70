package comm

import (
	"fmt"
	"slices"
)

// Group is a sub-communicator over a subset of a parent communicator's
// ranks. Group rank i maps to parent rank Ranks()[i].
type Group struct {
	parent Communicator
	ranks  []int
	rank   int
}

// NewGroup builds the group view for the calling rank, which must be a
// member of ranks.
func NewGroup(parent Communicator, ranks []int) (*Group, error) {
	if len(ranks) == 0 {
		return nil, fmt.Errorf("empty group")
	}
	seen := make(map[int]bool, len(ranks))
	for _, r := range ranks {
		if err := checkRank(r, parent.Size()); err != nil {
			return nil, err
		}
		if seen[r] {
			return nil, fmt.Errorf("rank %d listed twice in group", r)
		}
		seen[r] = true
	}
	me := slices.Index(ranks, parent.Rank())
	if me < 0 {
		return nil, fmt.Errorf("rank %d is not a member of group %v", parent.Rank(), ranks)
	}
	return &Group{
		parent: parent,
		ranks:  slices.Clone(ranks),
		rank:   me,
	}, nil
}

func (g *Group) Rank() int { return g.rank }
func (g *Group) Size() int { return len(g.ranks) }

// Ranks returns the parent ranks of the members, in group order.
func (g *Group) Ranks() []int { return slices.Clone(g.ranks) }

// ParentRank translates a group rank to the parent communicator.
func (g *Group) ParentRank(r int) int {
	if r < 0 || r >= len(g.ranks) {
		return -1
	}
	return g.ranks[r]
}

func (g *Group) Send(dest int, m Message) error {
	if err := checkRank(dest, len(g.ranks)); err != nil {
		return err
	}
	return g.parent.Send(g.ranks[dest], m)
}

func (g *Group) Recv(src int) (Message, error) {
	if err := checkRank(src, len(g.ranks)); err != nil {
		return Message{}, err
	}
	m, err := g.parent.Recv(g.ranks[src])
	if err != nil {
		return m, err
	}
	m.Source = src
	return m, nil
}

// Close is a no-op: the parent owns the transport.
func (g *Group) Close() error { return nil }
