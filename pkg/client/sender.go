// Package client streams a telemetry file to a fuelwatch server one line at
// a time.
package client

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultIdentity returns a fresh airplane identity.
func DefaultIdentity() string {
	return "ClientID_" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// Sender writes newline-terminated lines to a server connection.
type Sender struct {
	w       io.Writer
	maxLine int

	// unterminated tail of the last read
	partial string

	Sent    int
	Skipped int
}

// NewSender returns a Sender writing to w. Lines longer than maxLine bytes,
// newline included, are skipped; zero disables the limit.
func NewSender(w io.Writer, maxLine int) *Sender {
	return &Sender{w: w, maxLine: maxLine}
}

// Identify sends the identity line that must precede any telemetry.
func (s *Sender) Identify(id string) error {
	_, err := io.WriteString(s.w, id+"\n")
	return errors.Wrap(err, "send identity")
}

// Send transmits every line of r, including a final unterminated one.
func (s *Sender) Send(r io.Reader) error {
	if err := s.pump(bufio.NewReader(r)); err != nil {
		return err
	}
	return s.flush()
}

// Follow sends the file at path and then keeps sending lines appended to it
// until ctx is done or the file is removed or renamed.
func (s *Sender) Follow(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer watcher.Close()

	// watch first so no write between reading and watching is lost
	if err := watcher.Add(path); err != nil {
		return errors.Wrapf(err, "watch %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open telemetry")
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if err := s.pump(r); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return s.flush()

		case event, ok := <-watcher.Events:
			if !ok {
				return s.flush()
			}
			if err := s.pump(r); err != nil {
				return err
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				glog.Infof("%s went away, finishing flight", path)
				return s.flush()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return s.flush()
			}
			glog.Errorf("watching %s: %v", path, err)
		}
	}
}

// pump sends every complete line currently readable from r.
func (s *Sender) pump(r *bufio.Reader) error {
	for {
		chunk, err := r.ReadString('\n')
		s.partial += chunk
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read telemetry")
		}

		line := s.partial
		s.partial = ""
		if err := s.sendLine(line); err != nil {
			return err
		}
	}
}

func (s *Sender) flush() error {
	if s.partial == "" {
		return nil
	}
	line := s.partial
	s.partial = ""
	return s.sendLine(line)
}

func (s *Sender) sendLine(line string) error {
	msg := strings.TrimRight(line, "\r\n") + "\n"
	if s.maxLine > 0 && len(msg) > s.maxLine {
		glog.Warningf("line is too long, skipping: %q", strings.TrimSpace(msg))
		s.Skipped++
		return nil
	}

	if _, err := io.WriteString(s.w, msg); err != nil {
		return errors.Wrap(err, "send telemetry")
	}
	s.Sent++
	return nil
}
