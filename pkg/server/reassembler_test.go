package server

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var reassemblyCases = []struct {
	name   string
	chunks []string
	want   []string
	rest   int
}{
	{
		name:   "SingleLine",
		chunks: []string{"ClientID_1\n"},
		want:   []string{"ClientID_1"},
	},
	{
		name:   "ManyLinesOneRead",
		chunks: []string{"id\nFUEL TOTAL QUANTITY,1_1_2024 0:0:0,5,\n 1_1_2024 0:0:1,4,\n"},
		want:   []string{"id", "FUEL TOTAL QUANTITY,1_1_2024 0:0:0,5,", " 1_1_2024 0:0:1,4,"},
	},
	{
		name:   "LineSplitAcrossReads",
		chunks: []string{" 1_1_", "2024 0:0", ":1,4,", "\n"},
		want:   []string{" 1_1_2024 0:0:1,4,"},
	},
	{
		name:   "PartialTailKept",
		chunks: []string{"a\nb\nc"},
		want:   []string{"a", "b"},
		rest:   1,
	},
	{
		name:   "CarriageReturnStripped",
		chunks: []string{"a\r", "\nb\r\n"},
		want:   []string{"a", "b"},
	},
	{
		name:   "BlankLinesKept",
		chunks: []string{"\n   \n"},
		want:   []string{"", "   "},
	},
	{
		name:   "NoNewline",
		chunks: []string{"abc", "def"},
		rest:   6,
	},
}

func TestReassembler(t *testing.T) {
	for _, test := range reassemblyCases {
		t.Run(test.name, func(t *testing.T) {
			var r Reassembler
			var got []string
			for _, c := range test.chunks {
				got = append(got, r.Feed([]byte(c))...)
			}
			assert.Equal(t, test.want, got)
			assert.Equal(t, test.rest, r.Buffered())
		})
	}
}

// Any chunking of the same byte stream yields the same lines.
func TestReassemblerChunkingInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(27000))

	var want []string
	for i := 0; i < 200; i++ {
		want = append(want, strings.Repeat(string(rune('a'+i%26)), rng.Intn(40)))
	}
	stream := []byte(strings.Join(want, "\n") + "\n")

	for trial := 0; trial < 50; trial++ {
		var r Reassembler
		var got []string
		for rest := stream; len(rest) > 0; {
			n := 1 + rng.Intn(64)
			if n > len(rest) {
				n = len(rest)
			}
			got = append(got, r.Feed(rest[:n])...)
			rest = rest[n:]
		}
		if !assert.Equal(t, want, got, "trial %d", trial) {
			return
		}
		assert.Zero(t, r.Buffered())
	}
}

func TestReassemblerDropsOverlongLines(t *testing.T) {
	r := NewReassembler(5)

	assert.Empty(t, r.Feed([]byte("abcdefgh")))
	assert.Zero(t, r.Buffered())
	assert.Equal(t, 1, r.Overlong)

	// the rest of the overlong line is thrown away too
	assert.Equal(t, []string{"ok"}, r.Feed([]byte("ijklmnopq\nok\n")))
	assert.Equal(t, 1, r.Overlong)

	assert.Equal(t, []string{"ab"}, r.Feed([]byte("123456\nab\n")))
	assert.Equal(t, 2, r.Overlong)

	assert.Empty(t, r.Feed([]byte("abcde\r")))
	assert.Equal(t, []string{"abcde"}, r.Feed([]byte("\n")))
	assert.Equal(t, 2, r.Overlong)
}
