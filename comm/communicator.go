package comm

import (
	"errors"
	"fmt"
)

// Communicator is one rank's endpoint into a set of ranks that exchange
// Messages point to point. Delivery between a given pair of ranks is FIFO.
// A Communicator is driven by a single goroutine.
type Communicator interface {
	Rank() int
	Size() int
	// Send blocks until the message is handed to the transport
	Send(dest int, m Message) error
	// Recv blocks until the next message from src arrives
	Recv(src int) (Message, error)
	Close() error
}

// Message is the unit exchanged between ranks. Payload layout is owned by
// the protocol using the communicator.
type Message struct {
	Tag    string    `json:"tag"`
	Source int       `json:"source"`
	Names  []string  `json:"names,omitempty"`
	Ints   []int     `json:"ints,omitempty"`
	Floats []float64 `json:"floats,omitempty"`
}

var (
	ErrClosed        = errors.New("communicator closed")
	ErrInvalidRank   = errors.New("invalid rank")
	ErrUnexpectedTag = errors.New("unexpected message tag")
)

func checkRank(rank, size int) error {
	if rank < 0 || rank >= size {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidRank, rank, size)
	}
	return nil
}

// Expect receives the next message from src and checks its tag. A mismatch
// means the peers are not executing the same collective sequence.
func Expect(c Communicator, src int, tag string) (Message, error) {
	m, err := c.Recv(src)
	if err != nil {
		return Message{}, err
	}
	if m.Tag != tag {
		return m, fmt.Errorf("%w: rank %d expected %q from %d, got %q",
			ErrUnexpectedTag, c.Rank(), tag, src, m.Tag)
	}
	return m, nil
}
