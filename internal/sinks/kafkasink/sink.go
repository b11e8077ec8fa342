// Package kafkasink forwards event log entries to a Kafka topic.
package kafkasink

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Agrid-Dev/greenhouse/internal/eventlog"
)

type Config struct {
	Brokers  []string
	Topic    string
	DeviceID string
	RunID    string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink publishes asynchronously so Record never waits on the brokers.
type Sink struct {
	cfg Config
	w   messageWriter
}

func New(cfg Config) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = "greenhouse.events"
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Printf("kafka: dropped %d event(s): %v", len(msgs), err)
			}
		},
	}
	return &Sink{cfg: cfg, w: w}, nil
}

type eventMessage struct {
	DeviceID string `json:"device_id"`
	RunID    string `json:"run_id,omitempty"`
	Time     string `json:"time"`
	Message  string `json:"message"`
	Line     string `json:"line"`
}

func (s *Sink) message(e eventlog.Entry) kafka.Message {
	b, _ := json.Marshal(eventMessage{
		DeviceID: s.cfg.DeviceID,
		RunID:    s.cfg.RunID,
		Time:     e.Time.Format(time.RFC3339),
		Message:  e.Message,
		Line:     e.String(),
	})
	return kafka.Message{Key: []byte(s.cfg.DeviceID), Value: b}
}

func (s *Sink) Record(e eventlog.Entry) {
	if err := s.w.WriteMessages(context.Background(), s.message(e)); err != nil {
		log.Printf("kafka: write event: %v", err)
	}
}

func (s *Sink) Close() error {
	return s.w.Close()
}
