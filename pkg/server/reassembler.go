package server

import (
	"bytes"
)

// Reassembler turns arbitrarily sized reads into newline-terminated lines.
// Bytes after the last newline stay buffered until a later Feed completes
// them. The zero value buffers lines of any length.
type Reassembler struct {
	buf bytes.Buffer
	max int

	// set while the rest of an overlong line is thrown away
	discarding bool

	// Overlong counts lines dropped for exceeding the limit.
	Overlong int
}

// NewReassembler returns a Reassembler that drops any line longer than max
// bytes, delimiter excluded. Zero means no limit.
func NewReassembler(max int) *Reassembler {
	return &Reassembler{max: max}
}

// Feed appends p and returns every line it completes, in order, with the
// newline (and a preceding carriage return) removed.
func (r *Reassembler) Feed(p []byte) []string {
	// everything already buffered is known to hold no newline
	from := r.buf.Len()
	r.buf.Write(p)

	var lines []string
	for {
		i := bytes.IndexByte(r.buf.Bytes()[from:], '\n')
		if i < 0 {
			// one spare byte for a carriage return still waiting on its newline
			if r.max > 0 && r.buf.Len() > r.max+1 {
				r.buf.Reset()
				if !r.discarding {
					r.discarding = true
					r.Overlong++
				}
			}
			return lines
		}

		line := r.buf.Next(from + i + 1)
		from = 0
		if r.discarding {
			r.discarding = false
			continue
		}

		line = bytes.TrimSuffix(line[:len(line)-1], []byte{'\r'})
		if r.max > 0 && len(line) > r.max {
			r.Overlong++
			continue
		}
		lines = append(lines, string(line))
	}
}

// Buffered is the size of the incomplete trailing line.
func (r *Reassembler) Buffered() int {
	return r.buf.Len()
}
