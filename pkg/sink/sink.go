// Package sink serializes flight output shared by every connection: the
// console stream and the append-only summary log.
package sink

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/silversupreme/fuelwatch/pkg/flight"
)

// ConsoleTimeLayout formats observation timestamps on the console.
const ConsoleTimeLayout = "Mon Jan _2 15:04:05 2006"

// Sink owns the console and the summary log. Each destination has its own
// lock, so a line is always written whole.
type Sink struct {
	consoleM sync.Mutex
	console  io.Writer

	summaryM    sync.Mutex
	summaryPath string
}

// New returns a Sink writing to console and appending summaries to
// summaryPath. An empty summaryPath disables the summary log.
func New(console io.Writer, summaryPath string) *Sink {
	return &Sink{
		console:     console,
		summaryPath: summaryPath,
	}
}

// Connected announces a new flight.
func (s *Sink) Connected(identity string) {
	s.println(fmt.Sprintf("Connected client, airplane ID: %s", identity))
}

// Observed prints an instantaneous consumption reading.
func (s *Sink) Observed(obs flight.Observation) {
	s.println(fmt.Sprintf("Airplane %s [%s] Fuel Remaining: %s | Current Consumption: %s fuel/sec",
		obs.Identity, obs.Timestamp.Format(ConsoleTimeLayout), num(obs.FuelRemaining), num(obs.Rate)))
}

// Rejected logs a line that failed to parse. It is never persisted.
func (s *Sink) Rejected(identity, line string, err error) {
	glog.Warningf("airplane %s: skipping telemetry %q: %v", identity, line, err)
}

// Ended prints the flight summary and appends it to the summary log. A log
// failure is reported and otherwise ignored.
func (s *Sink) Ended(sum flight.Summary) {
	line := SummaryLine(sum)
	s.println(line)

	if err := s.appendSummary(line); err != nil {
		glog.Errorf("couldn't record summary for %s: %v", sum.Identity, err)
	}
}

// SummaryLine is the durable record of a completed flight.
func SummaryLine(sum flight.Summary) string {
	return fmt.Sprintf("Flight for airplane %s ended. Average Fuel Consumption: %s fuel/sec",
		sum.Identity, num(sum.AverageConsumption))
}

func (s *Sink) println(line string) {
	s.consoleM.Lock()
	defer s.consoleM.Unlock()

	if _, err := io.WriteString(s.console, line+"\n"); err != nil {
		glog.Errorf("couldn't write to console: %v", err)
	}
}

func (s *Sink) appendSummary(line string) error {
	if s.summaryPath == "" {
		return nil
	}

	s.summaryM.Lock()
	defer s.summaryM.Unlock()

	f, err := os.OpenFile(s.summaryPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open summary log")
	}

	if _, err := io.WriteString(f, line+"\n"); err != nil {
		f.Close()
		return errors.Wrapf(err, "append to %s", s.summaryPath)
	}
	return errors.Wrap(f.Close(), "close summary log")
}

// num prints six significant digits.
func num(v float64) string {
	return fmt.Sprintf("%.6g", v)
}
