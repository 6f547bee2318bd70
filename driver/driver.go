// Package driver runs a two group field exchange over a shared mesh. Each
// group partitions the global mesh over its own ranks; group1 sends a cell
// field to group2 and group2 answers with a node field. Every received value
// is checked against the analytic field that produced it.
package driver

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/notargets/DGCoupling/comm"
	"github.com/notargets/DGCoupling/config"
	"github.com/notargets/DGCoupling/coupling"
	"github.com/notargets/DGCoupling/mesh"
	"github.com/notargets/DGCoupling/partitions"
	"github.com/sirupsen/logrus"
)

const meshName = "interface"

// Result summarizes the run of one rank
type Result struct {
	Rank      int
	Group     int // 1 or 2
	GroupRank int
	Cells     int // Cells of the local partition
	Selected  int // Coupled elements of the local partition
	Offset    int // Group-wide number of this rank's first coupled element
	Coupled   int // Coupled elements across the group
	Steps     int
	Received  int // Values checked against the analytic field
	MaxError  float64
	Elapsed   time.Duration
}

// Field is the analytic field exchanged at time t
func Field(p [3]float64, t float64) float64 {
	return math.Sin(2*math.Pi*p[0])*math.Cos(2*math.Pi*p[1]) + p[2] + t
}

// Run drives one rank of the exchange. It is collective over world.
func Run(ctx context.Context, world comm.Communicator, cfg *config.Config, global *mesh.Mesh, log *logrus.Entry) (*Result, error) {
	start := time.Now()
	if world.Size() != cfg.WorldSize() {
		return nil, fmt.Errorf("world has %d ranks, coupling groups span %d", world.Size(), cfg.WorldSize())
	}
	res := &Result{Rank: world.Rank(), Group: 1}
	own := cfg.Coupling.Group1
	if slices.Contains(cfg.Coupling.Group2, world.Rank()) {
		res.Group, own = 2, cfg.Coupling.Group2
	}
	res.GroupRank = slices.Index(own, world.Rank())
	log = log.WithFields(logrus.Fields{"rank": res.Rank, "group": res.Group})

	layout, local, err := partition(cfg, global, len(own), res.GroupRank)
	if err != nil {
		return nil, err
	}
	res.Cells = local.NumCells()

	reg := coupling.NewRegistry(world,
		coupling.WithMesh(local),
		coupling.WithLogger(log),
		coupling.WithInterpolation(coupling.InterpOptions{
			KNearest:     cfg.Coupling.KNearest,
			Tolerance:    cfg.Coupling.Tolerance,
			MaxDistance:  cfg.Coupling.MaxDistance,
			DefaultValue: cfg.Coupling.DefaultValue,
		}),
	)
	h, err := reg.Create(cfg.Coupling.Name, cfg.Coupling.Group1, cfg.Coupling.Group2)
	if err != nil {
		return nil, err
	}
	defer destroy(reg, h, log)
	s, err := reg.Get(h)
	if err != nil {
		return nil, err
	}

	ex, err := setup(s, local, res.Group, cfg.Mesh.Predicate)
	if err != nil {
		return nil, err
	}
	ex.global, ex.layout, ex.part = global, layout, res.GroupRank
	cm := s.Mesh(ex.meshID)
	res.Selected = cm.NumElements()
	res.Offset, res.Coupled = cm.GlobalOffset, cm.GlobalCount

	// The two groups must enter the channels in opposite order
	order := []coupling.Direction{coupling.DirSend, coupling.DirRecv}
	if res.Group == 2 {
		slices.Reverse(order)
	}
	for _, dir := range order {
		if err = s.Sync(dir); err != nil {
			return nil, err
		}
	}
	log.WithFields(logrus.Fields{
		"selected": res.Selected,
		"offset":   res.Offset,
		"coupled":  res.Coupled,
	}).Info("coupling synchronized")

	for step := 1; step <= cfg.Run.Steps; step++ {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		t := float64(step) / float64(cfg.Run.Steps)
		if res.Group == 1 {
			err = ex.lead(s, t)
		} else {
			err = ex.follow(s, t)
		}
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}
		res.Steps = step
		log.WithFields(logrus.Fields{"step": step, "max_error": ex.maxError}).Debug("step done")
	}

	res.Received = ex.received
	res.MaxError = ex.maxError
	res.Elapsed = time.Since(start)
	log.WithFields(logrus.Fields{
		"steps":     res.Steps,
		"max_error": res.MaxError,
		"elapsed":   res.Elapsed,
	}).Info("run complete")
	return res, nil
}

// destroy releases the session. A failure only loses the session's
// channels, so it is logged rather than returned.
func destroy(reg *coupling.Registry, h coupling.Handle, log *logrus.Entry) {
	if err := reg.Destroy(h); err != nil {
		log.WithError(err).Warn("destroy coupling session")
	}
}

func partition(cfg *config.Config, global *mesh.Mesh, n, p int) (*partitions.PartitionLayout, *mesh.Mesh, error) {
	strategy, err := partitions.ParseStrategy(cfg.Mesh.Strategy)
	if err != nil {
		return nil, nil, err
	}
	pb := &partitions.PartitionBuilder{Mesh: global, NumPartitions: n, Strategy: strategy}
	layout, err := pb.BuildPartitions()
	if err != nil {
		return nil, nil, fmt.Errorf("partition mesh: %w", err)
	}
	local, err := partitions.Extract(global, layout, p)
	if err != nil {
		return nil, nil, err
	}
	return layout, local, nil
}

// exchange holds the fields of one rank and the running error
type exchange struct {
	global *mesh.Mesh
	layout *partitions.PartitionLayout
	part   int
	local  *mesh.Mesh
	meshID int
	cells  int // Field id of u, on cells, group1 to group2
	nodes  int // Field id of v, on nodes, group2 to group1

	received int
	maxError float64
}

func setup(s *coupling.Session, local *mesh.Mesh, group int, predicate string) (*exchange, error) {
	meshID, err := s.DefineMesh(meshName, predicate, local.Dim, true, true)
	if err != nil {
		return nil, err
	}
	if err = s.InitMeshes(); err != nil {
		return nil, err
	}
	uDir, vDir := coupling.DirSend, coupling.DirRecv
	if group == 2 {
		uDir, vDir = vDir, uDir
	}
	u, err := s.AddField("u", meshID, 1, coupling.OnCells, coupling.NoTime, uDir)
	if err != nil {
		return nil, err
	}
	v, err := s.AddField("v", meshID, 1, coupling.OnNodes, coupling.LinearTime, vDir)
	if err != nil {
		return nil, err
	}
	return &exchange{local: local, meshID: meshID, cells: u, nodes: v}, nil
}

// globalCellValues samples the field on every cell of the global mesh
func (ex *exchange) globalCellValues(t float64) []float64 {
	vals := make([]float64, ex.global.NumCells())
	for k := range vals {
		vals[k] = Field(ex.global.CellCentroid(k), t)
	}
	return vals
}

// cellValues is this partition's share of the global cell field
func (ex *exchange) cellValues(t float64) []float64 {
	return ex.layout.GatherField(ex.part, 1, ex.globalCellValues(t))
}

func (ex *exchange) nodeValues(t float64) []float64 {
	vals := make([]float64, ex.local.NumVertices())
	for i, p := range ex.local.Vertices {
		vals[i] = Field(p, t)
	}
	return vals
}

func nans(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = math.NaN()
	}
	return v
}

// importField reads a received field on the local parent numbering. Entries
// outside the selection stay NaN.
func importField(s *coupling.Session, fieldID, n int) ([]float64, error) {
	got := nans(n)
	if err := s.ImportValues(fieldID, true, got); err != nil {
		return nil, err
	}
	return got, nil
}

// compare records the error of every received entry of got against want
func (ex *exchange) compare(got, want []float64) {
	for i, v := range got {
		if math.IsNaN(v) {
			continue
		}
		ex.maxError = max(ex.maxError, math.Abs(v-want[i]))
		ex.received++
	}
}

// checkCells places the received cells in the global numbering and compares
// them with the global field
func (ex *exchange) checkCells(s *coupling.Session, t float64) error {
	got, err := importField(s, ex.cells, ex.local.NumCells())
	if err != nil {
		return err
	}
	placed := nans(ex.global.NumCells())
	ex.layout.ScatterField(ex.part, 1, got, placed)
	ex.compare(placed, ex.globalCellValues(t))
	return nil
}

func (ex *exchange) checkNodes(s *coupling.Session, t float64) error {
	got, err := importField(s, ex.nodes, ex.local.NumVertices())
	if err != nil {
		return err
	}
	ex.compare(got, ex.nodeValues(t))
	return nil
}

func (ex *exchange) lead(s *coupling.Session, t float64) error {
	if err := s.ExportValues(ex.cells, true, ex.cellValues(t)); err != nil {
		return err
	}
	if err := s.Send(); err != nil {
		return err
	}
	if err := s.Recv(); err != nil {
		return err
	}
	return ex.checkNodes(s, t)
}

func (ex *exchange) follow(s *coupling.Session, t float64) error {
	if err := s.Recv(); err != nil {
		return err
	}
	if err := ex.checkCells(s, t); err != nil {
		return err
	}
	if err := s.ExportValues(ex.nodes, true, ex.nodeValues(t)); err != nil {
		return err
	}
	return s.Send()
}
