package coupling

import (
	"fmt"
	"slices"

	"github.com/notargets/DGCoupling/comm"
	"github.com/notargets/DGCoupling/mesh"
	"github.com/sirupsen/logrus"
)

// Session is one named coupling between two process groups. It owns the
// meshes and fields registered on this rank and the send and receive
// channels. Methods are not safe for concurrent use; InitMeshes, Sync,
// Send and Recv are collective.
type Session struct {
	Name   string
	Handle Handle

	world  comm.Communicator
	group  *comm.Group // This rank's side of the coupling
	native *mesh.Mesh
	log    *logrus.Entry

	meshes []*CoupledMesh
	fields []*Field

	send, recv             Channel
	sendSynced, recvSynced bool
	meshesInit             bool
	destroyed              bool
}

func (s *Session) check() error {
	if err := capability(); err != nil {
		return err
	}
	if s.destroyed {
		return lookupErr("coupling session %s was destroyed", s.Name)
	}
	return nil
}

func (s *Session) release() {
	s.meshes = nil
	s.fields = nil
	s.destroyed = true
}

// Group returns the world ranks of this rank's side of the coupling
func (s *Session) Group() []int { return s.group.Ranks() }

// Channel returns the channel of dir, nil for any other direction
func (s *Session) Channel(dir Direction) Channel {
	switch dir {
	case DirSend:
		return s.send
	case DirRecv:
		return s.recv
	}
	return nil
}

// Synced reports whether the channel of dir has been synchronized
func (s *Session) Synced(dir Direction) bool {
	switch dir {
	case DirSend:
		return s.sendSynced
	case DirRecv:
		return s.recvSynced
	}
	return false
}

// DefineMesh registers a selection of the native mesh. isSource and isDest
// set the directions the mesh may carry fields in.
func (s *Session) DefineMesh(name, predicate string, eltDim int, isSource, isDest bool) (int, error) {
	if err := s.check(); err != nil {
		return -1, err
	}
	if s.meshesInit {
		return -1, orderErr("mesh %s defined after InitMeshes", name)
	}
	var dir Direction
	if isSource {
		dir |= DirSend
	}
	if isDest {
		dir |= DirRecv
	}
	if dir == 0 {
		return -1, configErr("mesh %s is neither source nor destination", name)
	}
	if name == "" {
		return -1, configErr("mesh name is empty")
	}
	if s.MeshID(name) >= 0 {
		return -1, configErr("mesh %s already defined", name)
	}
	if _, err := mesh.NewSelector(predicate); err != nil {
		return -1, configErr("mesh %s: %v", name, err)
	}
	cm := &CoupledMesh{
		ID:        len(s.meshes),
		Name:      name,
		Predicate: predicate,
		EltDim:    eltDim,
		Direction: dir,
	}
	s.meshes = append(s.meshes, cm)
	s.log.WithFields(logrus.Fields{
		"mesh":      name,
		"id":        cm.ID,
		"direction": dir,
	}).Debug("mesh defined")
	return cm.ID, nil
}

// InitMeshes builds the adapter of every defined mesh and numbers the
// selected elements across the group. It is collective over this rank's
// group and fails on every member if any member fails.
func (s *Session) InitMeshes() error {
	if err := s.check(); err != nil {
		return err
	}
	if s.meshesInit {
		return orderErr("InitMeshes called twice on %s", s.Name)
	}

	var failure error
	if s.native == nil && len(s.meshes) > 0 {
		failure = fmt.Errorf("no native mesh")
	}
	adapters := make([]*mesh.Adapter, len(s.meshes))
	for i, cm := range s.meshes {
		if failure != nil {
			break
		}
		a, err := mesh.NewAdapter(s.native, cm.Predicate, cm.EltDim)
		if err != nil {
			failure = fmt.Errorf("mesh %s: %w", cm.Name, err)
			break
		}
		adapters[i] = a
	}

	// Every member contributes [status, count per mesh]
	local := make([]int, 1+len(s.meshes))
	if failure != nil {
		local[0] = 1
	} else {
		for i, a := range adapters {
			local[1+i] = a.NumElements()
		}
	}
	all, err := comm.Allgather(s.group, "init-meshes", local)
	if err != nil {
		return fmt.Errorf("init meshes %s: %w", s.Name, err)
	}
	if failure != nil {
		return configErr("init meshes %s: %v", s.Name, failure)
	}
	for r, part := range all {
		if len(part) != len(local) {
			return configErr("init meshes %s: group rank %d defines %d meshes, want %d",
				s.Name, r, len(part)-1, len(s.meshes))
		}
		if part[0] != 0 {
			return configErr("init meshes %s: group rank %d failed", s.Name, r)
		}
	}

	for i, cm := range s.meshes {
		cm.Adapter = adapters[i]
		cm.GlobalOffset, cm.GlobalCount = 0, 0
		for r, part := range all {
			if r < s.group.Rank() {
				cm.GlobalOffset += part[1+i]
			}
			cm.GlobalCount += part[1+i]
		}
	}
	s.meshesInit = true
	s.log.WithField("meshes", len(s.meshes)).Info("meshes initialized")
	return nil
}

// MeshID returns the id of the named mesh, -1 when absent
func (s *Session) MeshID(name string) int {
	if s.check() != nil {
		return -1
	}
	for _, cm := range s.meshes {
		if cm.Name == name {
			return cm.ID
		}
	}
	return -1
}

// Mesh returns the mesh with id, nil when absent
func (s *Session) Mesh(id int) *CoupledMesh {
	if s.check() != nil || id < 0 || id >= len(s.meshes) {
		return nil
	}
	return s.meshes[id]
}

// MeshNumElements is the local number of selected elements, -1 when the
// mesh is unknown or not yet initialized.
func (s *Session) MeshNumElements(id int) int {
	cm := s.Mesh(id)
	if cm == nil {
		return -1
	}
	return cm.NumElements()
}

// MeshElementList maps selected elements to native mesh elements. It is nil
// when the mesh is unknown or not yet initialized.
func (s *Session) MeshElementList(id int) []int {
	cm := s.Mesh(id)
	if cm == nil || cm.Adapter == nil {
		return nil
	}
	return cm.Adapter.EltList
}

// AddField registers a field on a mesh for one direction and attaches it
// to the matching channel.
func (s *Session) AddField(name string, meshID, dim int, loc Location, td TimeDiscretization, dir Direction) (int, error) {
	if err := s.check(); err != nil {
		return -1, err
	}
	if !s.meshesInit {
		return -1, orderErr("field %s added before InitMeshes", name)
	}
	cm := s.Mesh(meshID)
	if cm == nil {
		return -1, lookupErr("field %s: no mesh with id %d", name, meshID)
	}
	switch {
	case dim < 1:
		return -1, configErr("field %s: dimension %d", name, dim)
	case dir != DirSend && dir != DirRecv:
		return -1, configErr("field %s: direction must be send or recv, got %v", name, dir)
	case !cm.Direction.Has(dir):
		return -1, configErr("field %s: mesh %s does not %v", name, cm.Name, dir)
	case loc != OnCells && loc != OnNodes:
		return -1, configErr("field %s: location %v", name, loc)
	case td < NoTime || td > ConstOnTimeInterval:
		return -1, configErr("field %s: time discretization %v", name, td)
	}
	if s.FieldID(meshID, name) >= 0 {
		return -1, configErr("field %s already defined on mesh %s", name, cm.Name)
	}

	ch := s.Channel(dir)
	pm, err := cm.ensureHandle(dir, ch, s.group.Ranks())
	if err != nil {
		return -1, err
	}
	f := &Field{
		ID:        len(s.fields),
		Name:      name,
		MeshID:    meshID,
		Dim:       dim,
		Location:  loc,
		TimeDiscr: td,
		Direction: dir,
		Values:    make([]float64, cm.Adapter.NumPoints(loc)*dim),
		handle:    pm,
	}
	if err := ch.Attach(f); err != nil {
		return -1, err
	}
	s.fields = append(s.fields, f)
	s.log.WithFields(logrus.Fields{
		"field":     name,
		"mesh":      cm.Name,
		"dim":       dim,
		"location":  loc,
		"direction": dir,
	}).Debug("field added")
	return f.ID, nil
}

// FieldID returns the id of the named field on meshID, -1 when absent
func (s *Session) FieldID(meshID int, name string) int {
	if s.check() != nil {
		return -1
	}
	for _, f := range s.fields {
		if f.MeshID == meshID && f.Name == name {
			return f.ID
		}
	}
	return -1
}

// Field returns the field with id, nil when absent
func (s *Session) Field(id int) *Field {
	if s.check() != nil || id < 0 || id >= len(s.fields) {
		return nil
	}
	return s.fields[id]
}

// Sync builds the interpolation of the channel of dir. Only the first
// successful call on a channel does any work.
func (s *Session) Sync(dir Direction) error {
	if err := s.check(); err != nil {
		return err
	}
	ch := s.Channel(dir)
	if ch == nil {
		return configErr("sync direction must be send or recv, got %v", dir)
	}
	if s.Synced(dir) {
		return nil
	}
	if !s.meshesInit {
		return orderErr("sync %v before InitMeshes", dir)
	}
	if err := ch.Sync(); err != nil {
		return fmt.Errorf("coupling %s: %w", s.Name, err)
	}
	if dir == DirSend {
		s.sendSynced = true
	} else {
		s.recvSynced = true
	}
	return nil
}

// Send pushes every send field to every rank of the other group
func (s *Session) Send() error {
	if err := s.check(); err != nil {
		return err
	}
	if !s.sendSynced {
		return orderErr("send on %s before sync", s.Name)
	}
	if err := s.send.Send(); err != nil {
		return fmt.Errorf("coupling %s: %w", s.Name, err)
	}
	return nil
}

// Recv overwrites every receive field with values from the other group
func (s *Session) Recv() error {
	if err := s.check(); err != nil {
		return err
	}
	if !s.recvSynced {
		return orderErr("recv on %s before sync", s.Name)
	}
	if err := s.recv.Recv(); err != nil {
		return fmt.Errorf("coupling %s: %w", s.Name, err)
	}
	return nil
}

// ReattachField binds the field again to the channel of its direction.
// Synchronization state is kept.
func (s *Session) ReattachField(fieldID int) error {
	if err := s.check(); err != nil {
		return err
	}
	f := s.Field(fieldID)
	if f == nil {
		return lookupErr("no field with id %d", fieldID)
	}
	ch := s.Channel(f.Direction)
	if !slices.Contains(ch.Attached(), f) {
		s.log.WithField("field", f.Name).Debug("field reattached")
	}
	return ch.Attach(f)
}
