package coupling

import (
	"fmt"
	"slices"

	"github.com/notargets/DGCoupling/comm"
	"github.com/notargets/DGCoupling/mesh"
	"github.com/notargets/DGCoupling/metrics"
	"github.com/sirupsen/logrus"
)

// Registry owns the coupling sessions of one process. Handles index an
// append-only slot list and are never reused, so a handle to a destroyed
// session stays invalid. A Registry is driven by a single goroutine.
type Registry struct {
	world  comm.Communicator
	native *mesh.Mesh
	interp InterpOptions
	log    *logrus.Entry

	sessions []*Session
}

type Option func(*Registry)

// WithMesh sets the native mesh that session meshes select from
func WithMesh(m *mesh.Mesh) Option {
	return func(r *Registry) { r.native = m }
}

func WithLogger(log *logrus.Entry) Option {
	return func(r *Registry) { r.log = log }
}

// WithInterpolation sets the options used to build interpolation matrices
func WithInterpolation(opts InterpOptions) Option {
	return func(r *Registry) { r.interp = opts }
}

func NewRegistry(world comm.Communicator, opts ...Option) *Registry {
	r := &Registry{
		world:  world,
		interp: DefaultInterpOptions(),
		log:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create opens a session between two disjoint groups of world ranks. The
// calling rank must belong to exactly one of them; a member of group1 sends
// to group2 and receives from it, a member of group2 the mirror.
func (r *Registry) Create(name string, group1, group2 []int) (Handle, error) {
	if err := capability(); err != nil {
		return InvalidHandle, err
	}
	if err := r.checkGroups(group1, group2); err != nil {
		return InvalidHandle, fmt.Errorf("create %s: %w", name, err)
	}
	me := r.world.Rank()
	in1, in2 := slices.Contains(group1, me), slices.Contains(group2, me)
	if in1 == in2 {
		return InvalidHandle, configErr("create %s: rank %d must be in exactly one group", name, me)
	}

	own, other := group1, group2
	if in2 {
		own, other = group2, group1
	}
	group, err := comm.NewGroup(r.world, own)
	if err != nil {
		return InvalidHandle, configErr("create %s: %v", name, err)
	}

	h := Handle(len(r.sessions))
	log := r.log.WithFields(logrus.Fields{
		"coupling": name,
		"rank":     me,
	})
	s := &Session{
		Name:   name,
		Handle: h,
		world:  r.world,
		group:  group,
		native: r.native,
		log:    log,
	}
	s.send = newChannel(channelConfig{
		coupling: name,
		dir:      DirSend,
		world:    r.world,
		sources:  slices.Clone(own),
		targets:  slices.Clone(other),
		interp:   r.interp,
		log:      log.WithField("direction", DirSend),
	})
	s.recv = newChannel(channelConfig{
		coupling: name,
		dir:      DirRecv,
		world:    r.world,
		sources:  slices.Clone(other),
		targets:  slices.Clone(own),
		interp:   r.interp,
		log:      log.WithField("direction", DirRecv),
	})
	r.sessions = append(r.sessions, s)
	metrics.Sessions.Inc()

	log.WithFields(logrus.Fields{
		"handle": h,
		"group":  own,
		"peers":  other,
	}).Info("coupling session created")
	return h, nil
}

func (r *Registry) checkGroups(group1, group2 []int) error {
	if len(group1) == 0 || len(group2) == 0 {
		return configErr("empty process group")
	}
	seen := make(map[int]int)
	for g, ranks := range [][]int{group1, group2} {
		for _, rank := range ranks {
			if rank < 0 || rank >= r.world.Size() {
				return configErr("rank %d outside world of size %d", rank, r.world.Size())
			}
			if prev, ok := seen[rank]; ok {
				if prev == g {
					return configErr("rank %d listed twice in group%d", rank, g+1)
				}
				return configErr("rank %d is in both groups", rank)
			}
			seen[rank] = g
		}
	}
	return nil
}

// Get returns the live session of h
func (r *Registry) Get(h Handle) (*Session, error) {
	if err := capability(); err != nil {
		return nil, err
	}
	if h < 0 || int(h) >= len(r.sessions) || r.sessions[h] == nil {
		return nil, lookupErr("no coupling session with handle %d", h)
	}
	return r.sessions[h], nil
}

// ByName returns the handle of the live session called name, or
// InvalidHandle.
func (r *Registry) ByName(name string) Handle {
	if capability() != nil {
		return InvalidHandle
	}
	for h, s := range r.sessions {
		if s != nil && s.Name == name {
			return Handle(h)
		}
	}
	return InvalidHandle
}

// Destroy releases the session's meshes, fields and channels. The handle
// is not reused.
func (r *Registry) Destroy(h Handle) error {
	s, err := r.Get(h)
	if err != nil {
		return err
	}
	var errs []error
	for _, ch := range []Channel{s.send, s.recv} {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.release()
	r.sessions[h] = nil
	metrics.Sessions.Dec()
	s.log.Info("coupling session destroyed")
	if len(errs) > 0 {
		return fmt.Errorf("destroy %s: %w", s.Name, errs[0])
	}
	return nil
}

// Len is the number of handles ever allocated
func (r *Registry) Len() int { return len(r.sessions) }
