package comm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsPath     = "/couple"
	inboxDepth = 64
	dialRetry  = 100 * time.Millisecond

	tagHello   = "hello"
	tagWelcome = "welcome"
)

// handshakeTimeout bounds the hello/welcome exchange on a new connection
var handshakeTimeout = 10 * time.Second

// handshakeDeadline is handshakeTimeout from now, or the deadline of ctx
// when that comes first
func handshakeDeadline(ctx context.Context) time.Time {
	d := time.Now().Add(handshakeTimeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

// Listener accepts the websocket connections of higher ranks for one rank
// of a networked world.
type Listener struct {
	ln       net.Listener
	srv      *http.Server
	upgrader websocket.Upgrader
	incoming chan *websocket.Conn
}

// Listen starts serving the coupling endpoint on addr. Use ":0" style
// addresses to let the system pick a port and read it back with Addr.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	l := &Listener{
		ln:       ln,
		incoming: make(chan *websocket.Conn, inboxDepth),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, l.accept)
	l.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		_ = l.srv.Serve(ln)
	}()
	return l, nil
}

// Addr returns the host:port the listener is bound to.
func (l *Listener) Addr() string { return l.ln.Addr().String() }

func (l *Listener) accept(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	select {
	case l.incoming <- conn:
	default:
		conn.Close()
	}
}

// Close stops accepting connections. Established peer connections are
// closed by the communicator.
func (l *Listener) Close() error {
	return l.srv.Close()
}

type wsPeer struct {
	conn   *websocket.Conn
	connID string
	mu     sync.Mutex
}

func (p *wsPeer) write(m Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(m)
}

// WebsocketComm is a Communicator whose ranks are separate processes joined
// by one websocket connection per rank pair.
type WebsocketComm struct {
	rank     int
	size     int
	runID    string
	listener *Listener
	peers    []*wsPeer
	inbox    []chan Message
	done     chan struct{}
	once     sync.Once
}

// Connect joins the world described by peers (peers[r] is the listen
// address of rank r). Rank r dials every lower rank and accepts every higher
// one. A non-empty runID must match on both ends of each connection.
func (l *Listener) Connect(ctx context.Context, rank int, peers []string, runID string) (*WebsocketComm, error) {
	size := len(peers)
	if err := checkRank(rank, size); err != nil {
		return nil, err
	}
	c := &WebsocketComm{
		rank:     rank,
		size:     size,
		runID:    runID,
		listener: l,
		peers:    make([]*wsPeer, size),
		inbox:    make([]chan Message, size),
		done:     make(chan struct{}),
	}
	for i := range c.inbox {
		c.inbox[i] = make(chan Message, inboxDepth)
	}

	for j := 0; j < rank; j++ {
		p, err := c.dial(ctx, j, peers[j])
		if err != nil {
			c.Close()
			return nil, err
		}
		c.peers[j] = p
	}

	for pending := size - 1 - rank; pending > 0; {
		select {
		case <-ctx.Done():
			c.Close()
			return nil, fmt.Errorf("rank %d waiting for %d peers: %w", rank, pending, ctx.Err())
		case conn := <-l.incoming:
			src, p, err := c.welcome(ctx, conn)
			if err != nil {
				conn.Close()
				continue
			}
			c.peers[src] = p
			pending--
		}
	}

	for j, p := range c.peers {
		if p != nil {
			go c.readLoop(j, p)
		}
	}
	return c, nil
}

func (c *WebsocketComm) dial(ctx context.Context, dest int, addr string) (*wsPeer, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	url := "ws://" + addr + wsPath
	var conn *websocket.Conn
	for {
		var err error
		conn, _, err = dialer.DialContext(ctx, url, nil)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("websocket dial rank %d at %s: %w", dest, addr, err)
		case <-time.After(dialRetry):
		}
	}

	connID := uuid.NewString()
	hello := Message{Tag: tagHello, Source: c.rank, Names: []string{c.runID, connID}}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("hello to rank %d: %w", dest, err)
	}
	var reply Message
	_ = conn.SetReadDeadline(handshakeDeadline(ctx))
	if err := conn.ReadJSON(&reply); err != nil {
		conn.Close()
		return nil, fmt.Errorf("welcome from rank %d: %w", dest, err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if reply.Tag != tagWelcome || reply.Source != dest {
		conn.Close()
		return nil, fmt.Errorf("%w: rank %d answered %q as rank %d", ErrUnexpectedTag, dest, reply.Tag, reply.Source)
	}
	return &wsPeer{conn: conn, connID: connID}, nil
}

func (c *WebsocketComm) welcome(ctx context.Context, conn *websocket.Conn) (int, *wsPeer, error) {
	var hello Message
	_ = conn.SetReadDeadline(handshakeDeadline(ctx))
	if err := conn.ReadJSON(&hello); err != nil {
		return -1, nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})
	if hello.Tag != tagHello || len(hello.Names) != 2 {
		return -1, nil, fmt.Errorf("%w: %q", ErrUnexpectedTag, hello.Tag)
	}
	src := hello.Source
	if src <= c.rank || src >= c.size || c.peers[src] != nil {
		return -1, nil, fmt.Errorf("%w: unexpected hello from rank %d", ErrInvalidRank, src)
	}
	if runID := hello.Names[0]; c.runID != "" && runID != "" && runID != c.runID {
		return -1, nil, fmt.Errorf("rank %d belongs to run %s, not %s", src, runID, c.runID)
	}
	if err := conn.WriteJSON(Message{Tag: tagWelcome, Source: c.rank, Names: []string{c.runID}}); err != nil {
		return -1, nil, err
	}
	return src, &wsPeer{conn: conn, connID: hello.Names[1]}, nil
}

func (c *WebsocketComm) readLoop(src int, p *wsPeer) {
	defer close(c.inbox[src])
	for {
		var m Message
		if err := p.conn.ReadJSON(&m); err != nil {
			return
		}
		m.Source = src
		select {
		case c.inbox[src] <- m:
		case <-c.done:
			return
		}
	}
}

func (c *WebsocketComm) Rank() int { return c.rank }
func (c *WebsocketComm) Size() int { return c.size }

// RunID identifies the world this communicator joined.
func (c *WebsocketComm) RunID() string { return c.runID }

func (c *WebsocketComm) Send(dest int, m Message) error {
	if err := checkRank(dest, c.size); err != nil {
		return err
	}
	m.Source = c.rank
	if dest == c.rank {
		select {
		case c.inbox[dest] <- m:
			return nil
		case <-c.done:
			return ErrClosed
		}
	}
	if err := c.peers[dest].write(m); err != nil {
		return fmt.Errorf("send %d->%d: %w", c.rank, dest, err)
	}
	return nil
}

func (c *WebsocketComm) Recv(src int) (Message, error) {
	if err := checkRank(src, c.size); err != nil {
		return Message{}, err
	}
	select {
	case m, ok := <-c.inbox[src]:
		if !ok {
			return Message{}, fmt.Errorf("recv %d<-%d: %w", c.rank, src, ErrClosed)
		}
		return m, nil
	case <-c.done:
		return Message{}, ErrClosed
	}
}

// Close says goodbye to every peer and stops the listener.
func (c *WebsocketComm) Close() error {
	var errs []error
	c.once.Do(func() {
		close(c.done)
		for _, p := range c.peers {
			if p == nil {
				continue
			}
			p.mu.Lock()
			_ = p.conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			p.mu.Unlock()
			if err := p.conn.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := c.listener.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}
