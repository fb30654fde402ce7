package sink

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silversupreme/fuelwatch/pkg/flight"
)

// lineWriter fails the test if a single Write is not exactly one whole line.
type lineWriter struct {
	t     *testing.T
	m     sync.Mutex
	lines []string
}

func (w *lineWriter) Write(p []byte) (int, error) {
	s := string(p)
	assert.True(w.t, strings.HasSuffix(s, "\n"), "partial write %q", s)
	assert.Equal(w.t, 1, strings.Count(s, "\n"), "write spans lines %q", s)

	w.m.Lock()
	w.lines = append(w.lines, strings.TrimSuffix(s, "\n"))
	w.m.Unlock()
	return len(p), nil
}

func TestConsoleLines(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, "")

	s.Connected("ClientID_41")
	s.Observed(flight.Observation{
		Identity:      "ClientID_41",
		Timestamp:     time.Date(2023, time.March, 3, 14, 53, 22, 0, time.UTC),
		FuelRemaining: 4564.405273,
		Rate:          0.061036,
	})
	s.Ended(flight.Summary{Identity: "ClientID_41", AverageConsumption: 0.5})

	assert.Equal(t, ""+
		"Connected client, airplane ID: ClientID_41\n"+
		"Airplane ClientID_41 [Fri Mar  3 14:53:22 2023] Fuel Remaining: 4564.41 | Current Consumption: 0.061036 fuel/sec\n"+
		"Flight for airplane ClientID_41 ended. Average Fuel Consumption: 0.5 fuel/sec\n",
		buf.String())
}

func TestSummaryLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flights.log")
	require.NoError(t, os.WriteFile(path, []byte("earlier\n"), 0o644))

	s := New(&bytes.Buffer{}, path)
	s.Ended(flight.Summary{Identity: "a", AverageConsumption: 1.25})
	s.Ended(flight.Summary{Identity: "b"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ""+
		"earlier\n"+
		"Flight for airplane a ended. Average Fuel Consumption: 1.25 fuel/sec\n"+
		"Flight for airplane b ended. Average Fuel Consumption: 0 fuel/sec\n",
		string(data))
}

func TestSummaryLogFailureKeepsConsole(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "missing", "flights.log")
	s := New(&buf, path)

	s.Ended(flight.Summary{Identity: "a"})

	assert.Contains(t, buf.String(), "Flight for airplane a ended.")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestConcurrentWritesStayWhole(t *testing.T) {
	w := &lineWriter{t: t}
	path := filepath.Join(t.TempDir(), "flights.log")
	s := New(w, path)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("ClientID_%d", i)
			s.Connected(id)
			for j := 0; j < 20; j++ {
				s.Observed(flight.Observation{Identity: id, Rate: float64(j)})
			}
			s.Ended(flight.Summary{Identity: id})
		}(i)
	}
	wg.Wait()

	assert.Len(t, w.lines, writers*22)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, writers)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "Flight for airplane ClientID_"), l)
		assert.True(t, strings.HasSuffix(l, "fuel/sec"), l)
	}
}
