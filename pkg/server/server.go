package server

import (
	"net"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/silversupreme/fuelwatch/pkg/flight"
)

// DefaultReadSize matches the receive buffer of the first-generation telemetry
// stations.
const DefaultReadSize = 128

// DefaultMaxLine bounds how much of an unterminated line a connection may
// buffer before it is discarded.
const DefaultMaxLine = 1024

// Emitter receives the output of every connection. Implementations must be
// safe for concurrent use.
type Emitter interface {
	Connected(identity string)
	Observed(obs flight.Observation)
	Rejected(identity, line string, err error)
	Ended(sum flight.Summary)
}

// Options tunes a Server. The zero value reads DefaultReadSize bytes at a
// time, caps lines at DefaultMaxLine and accepts without limit.
type Options struct {
	ReadSize int
	MaxLine  int

	// MaxConns caps concurrently handled connections. Further clients wait
	// in the listen backlog. Zero means no cap.
	MaxConns int
}

// Server accepts telemetry connections and runs one flight per connection.
type Server struct {
	listener net.Listener
	out      Emitter
	readSize int
	maxLine  int
	slots    chan struct{}

	done      chan struct{}
	closeOnce sync.Once

	// Stamps the connection bounds of every flight Summary.
	Clock clock.Clock
}

// New constructs and returns a Server.
func New(listener net.Listener, out Emitter, clock clock.Clock, opts Options) *Server {
	s := &Server{
		listener: listener,
		out:      out,
		readSize: opts.ReadSize,
		maxLine:  opts.MaxLine,
		done:     make(chan struct{}),

		Clock: clock,
	}
	if s.readSize <= 0 {
		s.readSize = DefaultReadSize
	}
	if s.maxLine <= 0 {
		s.maxLine = DefaultMaxLine
	}
	if opts.MaxConns > 0 {
		s.slots = make(chan struct{}, opts.MaxConns)
	}
	return s
}

// Addr is the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve is the main acceptor loop. Every connection is handled on its own
// goroutine. Serve returns nil once the listener is closed.
func (s *Server) Serve() error {
	for {
		if !s.acquire() {
			return nil
		}

		conn, err := s.listener.Accept()
		if err != nil {
			s.release()
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			glog.Errorf("couldn't accept connection: %v", err)
			continue
		}

		go func() {
			defer s.release()
			s.handle(conn)
		}()
	}
}

// Close stops accepting. Connections already being handled run until their
// peers disconnect.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.listener.Close()
}

// acquire waits for a free slot. It reports false once the server is closed.
func (s *Server) acquire() bool {
	if s.slots == nil {
		return true
	}
	select {
	case s.slots <- struct{}{}:
		return true
	case <-s.done:
		return false
	}
}

func (s *Server) release() {
	if s.slots != nil {
		<-s.slots
	}
}
