package comm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocketWorld(t *testing.T) {
	const size = 3
	listeners := make([]*Listener, size)
	peers := make([]string, size)
	for r := 0; r < size; r++ {
		l, err := Listen("127.0.0.1:0")
		require.NoError(t, err)
		listeners[r] = l
		peers[r] = l.Addr()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	comms := make([]Communicator, size)
	errs := make(chan error, size)
	for r := 0; r < size; r++ {
		go func(r int) {
			c, err := listeners[r].Connect(ctx, r, peers, "run-test")
			if err == nil {
				comms[r] = c
			}
			errs <- err
		}(r)
	}
	for r := 0; r < size; r++ {
		require.NoError(t, <-errs)
	}
	defer func() {
		for _, c := range comms {
			c.Close()
		}
	}()

	results := make([][][]int, size)
	runRanks(t, comms, func(c Communicator) error {
		parts, err := Allgather(c, "ws", []int{c.Rank() + 1})
		if err != nil {
			return err
		}
		results[c.Rank()] = parts
		return Barrier(c)
	})
	for r := 0; r < size; r++ {
		assert.Equal(t, [][]int{{1}, {2}, {3}}, results[r])
	}

	require.NoError(t, comms[1].Send(1, Message{Tag: "self", Floats: []float64{0.5}}))
	m, err := Expect(comms[1], 1, "self")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, m.Floats)
}

func TestWebsocketConnectTimeout(t *testing.T) {
	l, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// rank 0 of a two-rank world waits for a peer that never dials
	_, err = l.Connect(ctx, 0, []string{l.Addr(), "127.0.0.1:1"}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWebsocketConnectSilentPeer(t *testing.T) {
	l, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	// A peer that opens the connection but never says hello
	silent, _, err := websocket.DefaultDialer.Dial("ws://"+l.Addr()+wsPath, nil)
	require.NoError(t, err)
	defer silent.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := l.Connect(ctx, 0, []string{l.Addr(), "127.0.0.1:1"}, "")
		done <- err
	}()
	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Connect blocked on a peer that never sent hello")
	}
}

func TestHandshakeDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d, _ := ctx.Deadline()
	assert.Equal(t, d, handshakeDeadline(ctx))
	assert.WithinDuration(t, time.Now().Add(handshakeTimeout), handshakeDeadline(context.Background()), time.Second)
}
