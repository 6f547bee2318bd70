package comm

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRanks drives every communicator of a world on its own goroutine
func runRanks(t *testing.T, comms []Communicator, fn func(c Communicator) error) {
	t.Helper()
	var wg sync.WaitGroup
	errs := make([]error, len(comms))
	for i, c := range comms {
		wg.Add(1)
		go func(i int, c Communicator) {
			defer wg.Done()
			errs[i] = fn(c)
		}(i, c)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: %v", i, err)
		}
	}
}

func TestLocalWorldSendRecv(t *testing.T) {
	comms := NewLocalWorld(2)
	require.Len(t, comms, 2)
	assert.Equal(t, 0, comms[0].Rank())
	assert.Equal(t, 2, comms[1].Size())

	runRanks(t, comms, func(c Communicator) error {
		if c.Rank() == 0 {
			for i := 0; i < 3*queueCapacity; i++ {
				if err := c.Send(1, Message{Tag: "seq", Ints: []int{i}}); err != nil {
					return err
				}
			}
			return nil
		}
		for i := 0; i < 3*queueCapacity; i++ {
			m, err := Expect(c, 0, "seq")
			if err != nil {
				return err
			}
			if m.Source != 0 || m.Ints[0] != i {
				t.Errorf("message %d: got source %d value %v", i, m.Source, m.Ints)
			}
		}
		return nil
	})
}

func TestLocalWorldDoesNotAlias(t *testing.T) {
	comms := NewLocalWorld(2)
	buf := []float64{1, 2, 3}
	require.NoError(t, comms[0].Send(1, Message{Tag: "data", Floats: buf}))
	buf[0] = 99

	m, err := comms[1].Recv(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, m.Floats)
}

func TestLocalWorldInvalidRank(t *testing.T) {
	comms := NewLocalWorld(1)
	err := comms[0].Send(3, Message{})
	assert.True(t, errors.Is(err, ErrInvalidRank))
	_, err = comms[0].Recv(-1)
	assert.True(t, errors.Is(err, ErrInvalidRank))
}

func TestLocalWorldClose(t *testing.T) {
	comms := NewLocalWorld(2)
	done := make(chan error)
	go func() {
		_, err := comms[1].Recv(0)
		done <- err
	}()
	require.NoError(t, comms[0].Close())
	assert.True(t, errors.Is(<-done, ErrClosed))
	assert.True(t, errors.Is(comms[0].Send(1, Message{}), ErrClosed))
}

func TestExpectTagMismatch(t *testing.T) {
	comms := NewLocalWorld(2)
	require.NoError(t, comms[0].Send(1, Message{Tag: "data"}))
	_, err := Expect(comms[1], 0, "sync")
	assert.True(t, errors.Is(err, ErrUnexpectedTag))
}

func TestAllgatherAndBarrier(t *testing.T) {
	comms := NewLocalWorld(4)
	results := make([][][]int, 4)
	runRanks(t, comms, func(c Communicator) error {
		parts, err := Allgather(c, "counts", []int{c.Rank(), 10 * c.Rank()})
		if err != nil {
			return err
		}
		results[c.Rank()] = parts
		return Barrier(c)
	})
	for r := 0; r < 4; r++ {
		for src := 0; src < 4; src++ {
			assert.Equal(t, []int{src, 10 * src}, results[r][src])
		}
	}
}

func TestGroupAndWorldRanks(t *testing.T) {
	comms := NewLocalWorld(5)
	groups := [][]int{{4, 1, 2}, {0, 3}}
	got := make([][]int, 5)

	runRanks(t, comms, func(c Communicator) error {
		members := groups[0]
		if c.Rank() == 0 || c.Rank() == 3 {
			members = groups[1]
		}
		g, err := NewGroup(c, members)
		if err != nil {
			return err
		}
		ranks, err := WorldRanks(g, c.Rank())
		if err != nil {
			return err
		}
		got[c.Rank()] = ranks
		return nil
	})

	for _, r := range groups[0] {
		assert.Equal(t, groups[0], got[r], "rank %d", r)
	}
	for _, r := range groups[1] {
		assert.Equal(t, groups[1], got[r], "rank %d", r)
	}
}

func TestNewGroupValidation(t *testing.T) {
	comms := NewLocalWorld(3)
	testCases := []struct {
		name  string
		ranks []int
	}{
		{"empty", nil},
		{"not a member", []int{1, 2}},
		{"duplicate", []int{0, 1, 1}},
		{"out of range", []int{0, 7}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGroup(comms[0], tc.ranks)
			if err == nil {
				t.Errorf("expected error for ranks %v", tc.ranks)
			}
		})
	}

	g, err := NewGroup(comms[2], []int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, 0, g.Rank())
	assert.Equal(t, 0, g.ParentRank(1))
	assert.Equal(t, -1, g.ParentRank(2))
}
