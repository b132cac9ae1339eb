package ports

import (
	"fmt"
	"net"
	"sync"
)

// Reservation is an exclusive claim on a port, backed by an actual open
// listening socket. While held, no other process can bind the port.
// Connections accepted on the placeholder listener are tracked and
// force-closed on Release so the real server can bind cleanly.
type Reservation struct {
	port string
	num  int
	ln   net.Listener

	mu     sync.Mutex
	conns  []net.Conn
	closed bool
	once   sync.Once
}

// reserve binds the port on loopback and starts draining stray
// connections.
func reserve(port int) (*Reservation, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("reserve port %d: %w", port, err)
	}

	r := &Reservation{
		port: fmt.Sprintf("%d", port),
		num:  port,
		ln:   ln,
	}
	go r.drain()
	return r, nil
}

// Port returns the reserved port number.
func (r *Reservation) Port() int {
	return r.num
}

// drain accepts and tracks connections made against the placeholder
// listener (eager health checkers, browsers retrying) until release.
func (r *Reservation) drain() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			conn.Close()
			return
		}
		r.conns = append(r.conns, conn)
		r.mu.Unlock()
	}
}

// Release force-closes tracked connections and the placeholder listener,
// freeing the port for the real server. Safe to call more than once.
func (r *Reservation) Release() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		conns := r.conns
		r.conns = nil
		r.mu.Unlock()

		for _, conn := range conns {
			conn.Close()
		}
		r.ln.Close()
	})
}
