package comm

import (
	"fmt"
	"slices"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// queueCapacity bounds the in-flight messages per ordered rank pair
const queueCapacity = 16

var worldCounter atomix.Uint32

// localWorld connects size ranks living in one process. Each ordered pair
// (src, dst) owns one bounded SPSC queue: rank src is its only producer and
// rank dst its only consumer, so every rank must be driven by one goroutine.
type localWorld struct {
	id     uint32
	size   int
	queues []lfq.SPSC[Message]
	closed atomix.Uint32
}

type localComm struct {
	w    *localWorld
	rank int
}

// NewLocalWorld returns one Communicator per rank of an in-process world.
func NewLocalWorld(size int) []Communicator {
	if size < 1 {
		panic(fmt.Sprintf("invalid local world size %d", size))
	}
	w := &localWorld{
		id:     worldCounter.Add(1),
		size:   size,
		queues: make([]lfq.SPSC[Message], size*size),
	}
	for i := range w.queues {
		w.queues[i].Init(queueCapacity)
	}
	comms := make([]Communicator, size)
	for r := 0; r < size; r++ {
		comms[r] = &localComm{w: w, rank: r}
	}
	return comms
}

func (w *localWorld) isClosed() bool {
	return w.closed.Add(0) != 0
}

func (w *localWorld) queue(src, dst int) *lfq.SPSC[Message] {
	return &w.queues[src*w.size+dst]
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.w.size }

// Send copies the payload so the receiver never aliases the sender's buffers.
func (c *localComm) Send(dest int, m Message) error {
	if err := checkRank(dest, c.w.size); err != nil {
		return err
	}
	m.Source = c.rank
	m.Names = slices.Clone(m.Names)
	m.Ints = slices.Clone(m.Ints)
	m.Floats = slices.Clone(m.Floats)

	q := c.w.queue(c.rank, dest)
	var bo iox.Backoff
	for {
		if c.w.isClosed() {
			return ErrClosed
		}
		err := q.Enqueue(&m)
		if err == nil {
			return nil
		}
		if !iox.IsWouldBlock(err) {
			return fmt.Errorf("local world %d: send %d->%d: %w", c.w.id, c.rank, dest, err)
		}
		bo.Wait()
	}
}

func (c *localComm) Recv(src int) (Message, error) {
	if err := checkRank(src, c.w.size); err != nil {
		return Message{}, err
	}
	q := c.w.queue(src, c.rank)
	var bo iox.Backoff
	for {
		m, err := q.Dequeue()
		if err == nil {
			return m, nil
		}
		if !iox.IsWouldBlock(err) {
			return Message{}, fmt.Errorf("local world %d: recv %d<-%d: %w", c.w.id, c.rank, src, err)
		}
		if c.w.isClosed() {
			return Message{}, ErrClosed
		}
		bo.Wait()
	}
}

// Close shuts down the whole world; blocked peers return ErrClosed.
func (c *localComm) Close() error {
	c.w.closed.Add(1)
	return nil
}
