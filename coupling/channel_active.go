//go:build !nocoupling

package coupling

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/notargets/DGCoupling/comm"
	"github.com/notargets/DGCoupling/interp"
	"github.com/notargets/DGCoupling/metrics"
	"github.com/sirupsen/logrus"
)

const (
	tagSync = "sync"
	tagAck  = "ack"
	tagData = "data"
)

// activeChannel exchanges fields between every source rank and every
// target rank. Targets own the interpolation: one matrix per mesh and
// location, built at Sync from the point clouds of all sources.
type activeChannel struct {
	channelConfig
	source bool

	meshes []*ParallelMesh
	fields []*Field

	synced   bool
	matrices map[pointSetKey]*interp.Matrix
	counts   map[pointSetKey][]int // Points contributed by each source rank
}

func newActiveChannel(cfg channelConfig) *activeChannel {
	return &activeChannel{
		channelConfig: cfg,
		source:        cfg.isSource(),
	}
}

func (c *activeChannel) Direction() Direction { return c.dir }
func (c *activeChannel) Sources() []int { return slices.Clone(c.sources) }
func (c *activeChannel) Targets() []int { return slices.Clone(c.targets) }
func (c *activeChannel) Synced() bool { return c.synced }
func (c *activeChannel) Attached() []*Field { return slices.Clone(c.fields) }

func (c *activeChannel) Bind(pm *ParallelMesh) error {
	if pm.Direction != c.dir {
		return configErr("mesh %s handle is %v, channel is %v", pm.Name(), pm.Direction, c.dir)
	}
	if !slices.Contains(c.meshes, pm) {
		c.meshes = append(c.meshes, pm)
	}
	return nil
}

func (c *activeChannel) Attach(f *Field) error {
	if f.Direction != c.dir {
		return configErr("field %s is %v, channel is %v", f.Name, f.Direction, c.dir)
	}
	if f.handle == nil || !slices.Contains(c.meshes, f.handle) {
		return configErr("field %s mesh is not bound to the %v channel", f.Name, c.dir)
	}
	for i, g := range c.fields {
		if g == f {
			return nil
		}
		if g.Name == f.Name && g.handle == f.handle {
			c.fields[i] = f
			return nil
		}
	}
	c.fields = append(c.fields, f)
	return nil
}

func (c *activeChannel) Detach(f *Field) {
	c.fields = slices.DeleteFunc(c.fields, func(g *Field) bool { return g == f })
}

func (c *activeChannel) Close() error {
	c.meshes = nil
	c.fields = nil
	c.matrices = nil
	c.counts = nil
	return nil
}

// Sync exchanges point clouds and builds the interpolation. Every rank of
// both groups returns an error if any target failed.
func (c *activeChannel) Sync() error {
	start := time.Now()
	var err error
	if c.source {
		err = c.syncSource()
	} else {
		err = c.syncTarget()
	}
	if err != nil {
		return err
	}
	c.synced = true
	metrics.RecordSync(c.coupling, c.dir.String(), time.Since(start))
	c.log.WithFields(logrus.Fields{
		"direction": c.dir,
		"meshes":    len(c.meshes),
		"elapsed":   time.Since(start),
	}).Info("channel synchronized")
	return nil
}

func (c *activeChannel) syncSource() error {
	msg := comm.Message{Tag: tagSync}
	for _, pm := range c.meshes {
		for _, loc := range []Location{OnCells, OnNodes} {
			pts := pm.Adapter().Points(loc)
			msg.Names = append(msg.Names, pm.Name())
			msg.Ints = append(msg.Ints, int(loc), len(pts))
			for _, p := range pts {
				msg.Floats = append(msg.Floats, p[0], p[1], p[2])
			}
		}
	}
	for _, t := range c.targets {
		if err := c.world.Send(t, msg); err != nil {
			return fmt.Errorf("sync %v: %w", c.dir, err)
		}
	}

	var errs []error
	for _, t := range c.targets {
		ack, err := comm.Expect(c.world, t, tagAck)
		if err != nil {
			return c.protocolErr("sync", err)
		}
		if len(ack.Names) > 0 {
			errs = append(errs, fmt.Errorf("rank %d: %s", t, ack.Names[0]))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: sync %v rejected: %w", ErrConfiguration, c.dir, errors.Join(errs...))
	}
	return nil
}

// decodePointSets splits a sync message into its point clouds
func decodePointSets(m comm.Message) (map[pointSetKey][][3]float64, error) {
	if len(m.Ints) != 2*len(m.Names) {
		return nil, fmt.Errorf("malformed sync message from rank %d", m.Source)
	}
	sets := make(map[pointSetKey][][3]float64, len(m.Names))
	off := 0
	for i, name := range m.Names {
		loc, n := Location(m.Ints[2*i]), m.Ints[2*i+1]
		if off+3*n > len(m.Floats) {
			return nil, fmt.Errorf("truncated sync message from rank %d", m.Source)
		}
		pts := make([][3]float64, n)
		for j := range pts {
			copy(pts[j][:], m.Floats[off+3*j:off+3*j+3])
		}
		sets[pointSetKey{name, loc}] = pts
		off += 3 * n
	}
	return sets, nil
}

func (c *activeChannel) syncTarget() error {
	received := make([]map[pointSetKey][][3]float64, len(c.sources))
	var failure error
	for i, s := range c.sources {
		m, err := comm.Expect(c.world, s, tagSync)
		if err != nil {
			return c.protocolErr("sync", err)
		}
		if received[i], err = decodePointSets(m); err != nil && failure == nil {
			failure = err
		}
	}

	matrices := make(map[pointSetKey]*interp.Matrix)
	counts := make(map[pointSetKey][]int)
	opts := interp.Options{
		KNearest:    c.interp.KNearest,
		Tolerance:   c.interp.Tolerance,
		MaxDistance: c.interp.MaxDistance,
	}
	for _, pm := range c.meshes {
		if failure != nil {
			break
		}
		for _, loc := range []Location{OnCells, OnNodes} {
			key := pointSetKey{pm.Name(), loc}
			var src [][3]float64
			n := make([]int, len(c.sources))
			found := false
			for i := range c.sources {
				pts, ok := received[i][key]
				found = found || ok
				n[i] = len(pts)
				src = append(src, pts...)
			}
			if !found {
				failure = fmt.Errorf("no source rank defines mesh %s", pm.Name())
				break
			}
			matrices[key] = interp.Build(src, pm.Adapter().Points(loc), opts)
			counts[key] = n
		}
	}

	ack := comm.Message{Tag: tagAck}
	if failure != nil {
		ack.Names = []string{failure.Error()}
	}
	for _, s := range c.sources {
		if err := c.world.Send(s, ack); err != nil {
			return fmt.Errorf("sync %v: %w", c.dir, err)
		}
	}
	if failure != nil {
		return fmt.Errorf("%w: sync %v: %w", ErrConfiguration, c.dir, failure)
	}
	c.matrices = matrices
	c.counts = counts
	return nil
}

// Send pushes every attached field to every target rank
func (c *activeChannel) Send() error {
	if !c.source {
		return configErr("rank %d is not a source of the %v channel", c.world.Rank(), c.dir)
	}
	if !c.synced {
		return orderErr("send on unsynchronized %v channel", c.dir)
	}
	msg := comm.Message{Tag: tagData}
	for _, f := range c.fields {
		msg.Names = append(msg.Names, f.handle.Name(), f.Name)
		msg.Ints = append(msg.Ints, f.Dim, int(f.Location), len(f.Values))
		msg.Floats = append(msg.Floats, f.Values...)
	}
	for _, t := range c.targets {
		if err := c.world.Send(t, msg); err != nil {
			return fmt.Errorf("send %v: %w", c.dir, err)
		}
	}
	for _, f := range c.fields {
		f.dirty = false
	}
	metrics.RecordTransfer(c.coupling, c.dir.String(), len(msg.Floats))
	c.log.WithField("fields", len(c.fields)).Debug("fields sent")
	return nil
}

type fieldRef struct {
	mesh, field string
}

type fieldPayload struct {
	dim    int
	loc    Location
	values []float64
}

func decodeFields(m comm.Message) (map[fieldRef]fieldPayload, error) {
	if len(m.Names)%2 != 0 || len(m.Ints) != 3*len(m.Names)/2 {
		return nil, fmt.Errorf("malformed data message from rank %d", m.Source)
	}
	out := make(map[fieldRef]fieldPayload, len(m.Names)/2)
	off := 0
	for i := 0; i < len(m.Names)/2; i++ {
		ref := fieldRef{mesh: m.Names[2*i], field: m.Names[2*i+1]}
		n := m.Ints[3*i+2]
		if off+n > len(m.Floats) {
			return nil, fmt.Errorf("truncated data message from rank %d", m.Source)
		}
		out[ref] = fieldPayload{
			dim:    m.Ints[3*i],
			loc:    Location(m.Ints[3*i+1]),
			values: m.Floats[off : off+n],
		}
		off += n
	}
	return out, nil
}

// Recv pulls from every source rank and overwrites the attached fields.
// Nothing is written unless every field can be assembled.
func (c *activeChannel) Recv() error {
	if c.source {
		return configErr("rank %d is not a target of the %v channel", c.world.Rank(), c.dir)
	}
	if !c.synced {
		return orderErr("recv on unsynchronized %v channel", c.dir)
	}
	parts := make([]map[fieldRef]fieldPayload, len(c.sources))
	var failure error
	for i, s := range c.sources {
		m, err := comm.Expect(c.world, s, tagData)
		if err != nil {
			return c.protocolErr("recv", err)
		}
		if parts[i], err = decodeFields(m); err != nil && failure == nil {
			failure = configErr("%v", err)
		}
	}
	if failure != nil {
		return failure
	}

	results := make([][]float64, len(c.fields))
	total := 0
	for j, f := range c.fields {
		key := f.key()
		M, ok := c.matrices[key]
		if !ok {
			return orderErr("mesh %s of field %s was bound after synchronization", key.mesh, f.Name)
		}
		src := make([]float64, 0, M.Cols*f.Dim)
		for i, s := range c.sources {
			p, ok := parts[i][fieldRef{key.mesh, f.Name}]
			if !ok {
				return configErr("rank %d does not send field %s on mesh %s", s, f.Name, key.mesh)
			}
			if p.dim != f.Dim || p.loc != f.Location {
				return configErr("field %s: rank %d sends dim %d on %v, want dim %d on %v",
					f.Name, s, p.dim, p.loc, f.Dim, f.Location)
			}
			if want := c.counts[key][i] * f.Dim; len(p.values) != want {
				return configErr("field %s: rank %d sends %d values, want %d",
					f.Name, s, len(p.values), want)
			}
			src = append(src, p.values...)
		}
		results[j] = make([]float64, len(f.Values))
		if err := M.Apply(f.Dim, src, results[j], c.interp.DefaultValue); err != nil {
			return configErr("field %s: %v", f.Name, err)
		}
		total += len(src)
	}
	for j, f := range c.fields {
		f.receive(results[j])
	}
	metrics.RecordTransfer(c.coupling, c.dir.String(), total)
	c.log.WithField("fields", len(c.fields)).Debug("fields received")
	return nil
}

func (c *activeChannel) protocolErr(op string, err error) error {
	if errors.Is(err, comm.ErrUnexpectedTag) {
		return fmt.Errorf("%w: %s %v: %w", ErrOrdering, op, c.dir, err)
	}
	return fmt.Errorf("%s %v: %w", op, c.dir, err)
}
