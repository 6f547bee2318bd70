package coupling

import (
	"slices"

	"github.com/notargets/DGCoupling/comm"
	"github.com/sirupsen/logrus"
)

// Channel is one direction of exchange between a source group and a target
// group of world ranks. Sync, Send and Recv are collective over both groups.
type Channel interface {
	Direction() Direction
	Sources() []int
	Targets() []int
	// Synced reports whether the interpolation has been built
	Synced() bool
	// Bind makes a mesh handle part of the channel's interpolation
	Bind(pm *ParallelMesh) error
	// Attach adds a field, replacing an attached field of the same name
	// and mesh
	Attach(f *Field) error
	Detach(f *Field)
	Attached() []*Field
	Sync() error
	Send() error
	Recv() error
	Close() error
}

type channelConfig struct {
	coupling string
	dir      Direction
	world    comm.Communicator
	sources  []int
	targets  []int
	interp   InterpOptions
	log      *logrus.Entry
}

func (cfg channelConfig) isSource() bool {
	return slices.Contains(cfg.sources, cfg.world.Rank())
}

// pointSetKey names one located point cloud of a mesh
type pointSetKey struct {
	mesh string
	loc  Location
}

// disabledChannel stands in for the exchange engine in builds without
// coupling support.
type disabledChannel struct {
	dir Direction
}

func (c *disabledChannel) Direction() Direction { return c.dir }
func (c *disabledChannel) Sources() []int { return nil }
func (c *disabledChannel) Targets() []int { return nil }
func (c *disabledChannel) Synced() bool { return false }
func (c *disabledChannel) Bind(*ParallelMesh) error { return ErrUnsupported }
func (c *disabledChannel) Attach(*Field) error { return ErrUnsupported }
func (c *disabledChannel) Detach(*Field) {}
func (c *disabledChannel) Attached() []*Field { return nil }
func (c *disabledChannel) Sync() error { return ErrUnsupported }
func (c *disabledChannel) Send() error { return ErrUnsupported }
func (c *disabledChannel) Recv() error { return ErrUnsupported }
func (c *disabledChannel) Close() error { return ErrUnsupported }
