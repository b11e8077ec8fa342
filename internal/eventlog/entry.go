// Package eventlog holds the simulated-time event log: its line format, the
// append-only file it is written to, and a few in-process sinks.
package eventlog

import (
	"strings"
	"time"
)

const (
	// LineLayout renders timestamps as dd.MM.yyyy HH:mm:ss.
	LineLayout = "02.01.2006 15:04:05"
	separator  = " - "
)

// Entry is one event, stamped with simulated time.
type Entry struct {
	Time    time.Time
	Message string
}

func (e Entry) String() string {
	return e.Time.Format(LineLayout) + separator + e.Message
}

// Sink receives every event. Implementations must not block the caller for
// long and must never panic on I/O failure.
type Sink interface {
	Record(Entry)
}

// FileName derives the log file name from the real wall-clock start time.
func FileName(startedAt time.Time) string {
	stamp := strings.ReplaceAll(startedAt.Format(LineLayout), ":", "-")
	return "log " + stamp + ".txt"
}

// Multi fans an entry out to every sink in order.
type Multi []Sink

func (m Multi) Record(e Entry) {
	for _, s := range m {
		if s != nil {
			s.Record(e)
		}
	}
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Entry)

func (f SinkFunc) Record(e Entry) { f(e) }
