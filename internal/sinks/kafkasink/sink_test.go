package kafkasink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Agrid-Dev/greenhouse/internal/eventlog"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without brokers")
	}
	s, err := New(Config{Brokers: []string{"localhost:9092"}})
	if err != nil {
		t.Fatal(err)
	}
	if s.cfg.Topic != "greenhouse.events" {
		t.Fatalf("expected default topic, got %q", s.cfg.Topic)
	}
	kw, ok := s.w.(*kafka.Writer)
	if !ok || !kw.Async || kw.Topic != "greenhouse.events" {
		t.Fatalf("expected async writer on the default topic, got %+v", s.w)
	}
}

func TestRecordWritesKeyedMessage(t *testing.T) {
	fw := &fakeWriter{}
	s := &Sink{cfg: Config{DeviceID: "gh1", RunID: "r1"}, w: fw}

	at := time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC)
	s.Record(eventlog.Entry{Time: at, Message: "IR heating enabled."})

	if len(fw.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fw.msgs))
	}
	m := fw.msgs[0]
	if string(m.Key) != "gh1" {
		t.Fatalf("expected key gh1, got %q", m.Key)
	}
	var got eventMessage
	if err := json.Unmarshal(m.Value, &got); err != nil {
		t.Fatal(err)
	}
	if got.RunID != "r1" || got.Time != "2026-10-14T06:00:00Z" || got.Line != "14.10.2026 06:00:00 - IR heating enabled." {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestRecordSwallowsErrors(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	s := &Sink{cfg: Config{DeviceID: "gh1"}, w: fw}

	s.Record(eventlog.Entry{Message: "x"})
	if len(fw.msgs) != 1 {
		t.Fatal("expected write attempted")
	}
	if err := s.Close(); err != nil || !fw.closed {
		t.Fatal("expected writer closed")
	}
}
