// Package telemetry parses the fuel telemetry lines sent by aircraft.
package telemetry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// Header prefixes the first data line of every flight.
	Header = "FUEL TOTAL QUANTITY,"

	// TimestampLayout matches d_m_yyyy H:M:S without leading zeros.
	TimestampLayout = "2_1_2006 15:4:5"

	fieldDelimiter = ","
	padding        = " \t\r"
)

// Record is one parsed telemetry reading.
type Record struct {
	Timestamp     time.Time
	FuelRemaining float64
}

// Kind classifies why a line could not be parsed.
type Kind int

const (
	BadHeader Kind = iota + 1
	BadTimestamp
	BadFuelValue
)

func (k Kind) String() string {
	switch k {
	case BadHeader:
		return "bad header"
	case BadTimestamp:
		return "bad timestamp"
	case BadFuelValue:
		return "bad fuel value"
	default:
		return "unknown"
	}
}

// ParseError reports a malformed telemetry line.
type ParseError struct {
	Kind  Kind
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q: %v", e.Kind, e.Token, e.Err)
	}
	return fmt.Sprintf("%s %q", e.Kind, e.Token)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsKind reports whether err is a ParseError of the given kind.
func IsKind(err error, kind Kind) bool {
	var perr *ParseError
	if !errors.As(err, &perr) {
		return false
	}
	return perr.Kind == kind
}

// Parse reads a data line of the form "<date> <time>,<fuel>,".
// Surrounding padding is ignored, as is anything after the second comma.
func Parse(line string) (Record, error) {
	line = strings.Trim(line, padding)

	tsToken, rest, found := strings.Cut(line, fieldDelimiter)
	ts, err := time.Parse(TimestampLayout, tsToken)
	if err != nil {
		return Record{}, &ParseError{Kind: BadTimestamp, Token: tsToken, Err: err}
	}
	if !found {
		return Record{}, &ParseError{Kind: BadFuelValue, Err: errors.New("missing fuel field")}
	}

	fuelToken, _, _ := strings.Cut(rest, fieldDelimiter)
	fuel, err := parseFuel(fuelToken)
	if err != nil {
		return Record{}, &ParseError{Kind: BadFuelValue, Token: fuelToken, Err: err}
	}

	return Record{Timestamp: ts, FuelRemaining: fuel}, nil
}

// ParseFirstLine strips Header from the first data line of a flight and
// parses the remainder with Parse.
func ParseFirstLine(line string) (Record, error) {
	line = strings.Trim(line, padding)
	if !strings.HasPrefix(line, Header) {
		return Record{}, &ParseError{Kind: BadHeader, Token: line}
	}
	return Parse(strings.TrimPrefix(line, Header))
}

// parseFuel accepts leading blanks but nothing after the number.
func parseFuel(token string) (float64, error) {
	token = strings.TrimLeft(token, " \t")
	if token == "" {
		return 0, errors.New("empty")
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("not finite: %v", v)
	}
	return v, nil
}
