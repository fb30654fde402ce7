package server

import (
	"io"
	"net"
	"strings"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/silversupreme/fuelwatch/pkg/flight"
	"github.com/silversupreme/fuelwatch/pkg/telemetry"
)

type flightConn struct {
	net.Conn

	session string

	// Filled in by the first line the client sends.
	identity string
	flight   *flight.State

	// The first data line carries the telemetry header.
	headerSeen bool
}

// handle performs the actual line protocol client management.
func (s *Server) handle(c net.Conn) {
	defer c.Close()

	conn := flightConn{
		Conn:    c,
		session: uuid.NewString(),
	}
	connectedAt := s.Clock.Now()
	glog.V(1).Infof("session %s: accepted %s", conn.session, c.RemoteAddr())

	lines := NewReassembler(s.maxLine)
	buf := make([]byte, s.readSize)
	for {
		n, err := conn.Read(buf)
		overlong := lines.Overlong
		for _, line := range lines.Feed(buf[:n]) {
			s.dispatch(&conn, line)
		}
		if lines.Overlong > overlong {
			glog.Warningf("session %s: discarded a line longer than %d bytes", conn.session, s.maxLine)
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			glog.Errorf("session %s: reading from %s: %v", conn.session, c.RemoteAddr(), err)
			break
		}
	}

	if conn.flight == nil {
		glog.Infof("session %s: %s disconnected before identifying", conn.session, c.RemoteAddr())
		return
	}

	if lines.Buffered() > 0 {
		glog.Warningf("session %s: dropping %d bytes of unterminated telemetry", conn.session, lines.Buffered())
	}

	sum, err := conn.flight.Close()
	if err != nil {
		glog.Errorf("session %s: %v", conn.session, err)
		return
	}
	sum.ConnectedAt, sum.DisconnectedAt = connectedAt, s.Clock.Now()
	s.out.Ended(sum)

	glog.Infof("Client %s disconnected after %s with %d readings.",
		conn.identity, sum.DisconnectedAt.Sub(sum.ConnectedAt), sum.Readings)
}

// dispatch routes one complete line: the first is the identity, the rest
// are telemetry.
func (s *Server) dispatch(conn *flightConn, line string) {
	if conn.flight == nil {
		conn.identity = strings.TrimSpace(line)
		conn.flight = flight.New(conn.identity)
		s.out.Connected(conn.identity)
		glog.Infof("session %s: airplane %s connected from %s", conn.session, conn.identity, conn.RemoteAddr())
		return
	}

	// blank lines are part of the file format
	if strings.TrimSpace(line) == "" {
		return
	}
	glog.V(2).Infof("session %s: %q", conn.session, line)

	parse := telemetry.Parse
	if !conn.headerSeen {
		parse = telemetry.ParseFirstLine
		conn.headerSeen = true
	}

	rec, err := parse(line)
	if err != nil {
		s.out.Rejected(conn.identity, line, err)
		return
	}

	obs, ok, err := conn.flight.Advance(rec)
	if err != nil {
		glog.Errorf("session %s: %v", conn.session, err)
		return
	}
	if !ok {
		return
	}
	if obs.Backwards {
		glog.Warningf("airplane %s: telemetry went back in time to %s", conn.identity, obs.Timestamp)
	}
	s.out.Observed(obs)
}
