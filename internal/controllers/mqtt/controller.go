package mqttctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Agrid-Dev/greenhouse/internal/eventlog"
	"github.com/Agrid-Dev/greenhouse/internal/greenhouse"
	"github.com/Agrid-Dev/greenhouse/internal/ports"
)

type Config struct {
	// Identity
	DeviceID string

	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics
	BaseTopic string

	// Behavior
	QoS             byte
	RetainSnapshot  bool
	PublishInterval time.Duration
	PublishEvents   bool

	Username string
	Password string
}

type Controller struct {
	svc ports.GreenhouseService
	cfg Config

	mu     sync.RWMutex
	client mqtt.Client
}

func New(svc ports.GreenhouseService, cfg Config) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}

	if cfg.DeviceID == "" {
		return nil, errors.New("mqtt: DeviceID is required")
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "greenhouse/" + cfg.DeviceID
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "greenhouse-" + cfg.DeviceID
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 1 * time.Second
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	return &Controller{
		svc: svc,
		cfg: cfg,
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		token := cl.Subscribe(c.topic("set/+"), c.cfg.QoS, c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("mqtt: subscribe %s: %v", c.topic("set/+"), err)
		}
	}

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	c.setClient(client)

	// Publish loop: publish snapshot on interval, and only when changed.
	ticker := time.NewTicker(c.cfg.PublishInterval)
	defer ticker.Stop()

	last := c.svc.Get()
	c.publishSnapshot(last)

	for {
		select {
		case <-ctx.Done():
			c.setClient(nil)
			client.Disconnect(250)
			return ctx.Err()

		case <-ticker.C:
			cur := c.svc.Get()
			if !reflect.DeepEqual(cur, last) {
				c.publishSnapshot(cur)
				last = cur
			}
		}
	}
}

func (c *Controller) setClient(cl mqtt.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client = cl
}

func (c *Controller) currentClient() mqtt.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

func (c *Controller) publishSnapshot(s greenhouse.Snapshot) {
	cl := c.currentClient()
	if cl == nil {
		return
	}
	dto := snapshotDTO{
		Running:            s.Running,
		SimulationTime:     s.Time.Format(time.RFC3339),
		Minutes:            s.Minutes,
		CO2Level:           s.CO2Level,
		Cloudiness:         s.Cloudiness,
		UV:                 subsystemDTO(s.UV),
		CO2Lift:            subsystemDTO(s.CO2Lift),
		IR:                 subsystemDTO(s.IR),
		LastIRConsumption:  s.LastIRConsumption,
		TotalIRConsumption: s.TotalIRConsumption,
	}
	b, _ := json.Marshal(dto)
	cl.Publish(c.topic("snapshot"), c.cfg.QoS, c.cfg.RetainSnapshot, b)
}

// Record publishes an event log line to <base>/events. It never waits on the broker.
func (c *Controller) Record(e eventlog.Entry) {
	if !c.cfg.PublishEvents {
		return
	}
	cl := c.currentClient()
	if cl == nil {
		return
	}
	b, _ := json.Marshal(eventDTO{
		Time:    e.Time.Format(time.RFC3339),
		Message: e.Message,
		Line:    e.String(),
	})
	cl.Publish(c.topic("events"), c.cfg.QoS, false, b)
}

type subsystemDTO struct {
	Active   bool    `json:"active"`
	Progress float64 `json:"progress"`
}

type snapshotDTO struct {
	Running            bool         `json:"running"`
	SimulationTime     string       `json:"simulation_time"`
	Minutes            uint32       `json:"minutes"`
	CO2Level           int          `json:"co2_level"`
	Cloudiness         int          `json:"cloudiness"`
	UV                 subsystemDTO `json:"uv"`
	CO2Lift            subsystemDTO `json:"co2"`
	IR                 subsystemDTO `json:"ir"`
	LastIRConsumption  float64      `json:"last_ir_consumption_kwh"`
	TotalIRConsumption float64      `json:"total_ir_consumption_kwh"`
}

type eventDTO struct {
	Time    string `json:"time"`
	Message string `json:"message"`
	Line    string `json:"line"`
}

// Command payload format: {"value": ...}
type valueReq[T any] struct {
	Value *T `json:"value"`
}

func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	// topic format: <base>/set/<field>
	t := msg.Topic()
	prefix := strings.TrimRight(c.cfg.BaseTopic, "/") + "/set/"
	if !strings.HasPrefix(t, prefix) {
		return
	}
	field := strings.TrimPrefix(t, prefix)

	payload := msg.Payload()

	// Dispatch by field
	switch field {
	case "running":
		v, err := decodeValueStrict[bool](payload)
		if err != nil {
			return
		}
		c.svc.SetRunning(v)

	case "toggle":
		s, err := decodeValueStrict[string](payload)
		if err != nil {
			return
		}
		sub, err := greenhouse.ParseSubsystem(s)
		if err != nil {
			return
		}
		_, _ = c.svc.Toggle(sub)
	}
}

func (c *Controller) topic(suffix string) string {
	return strings.TrimRight(c.cfg.BaseTopic, "/") + "/" + suffix
}

func decodeValueStrict[T any](b []byte) (T, error) {
	var zero T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req valueReq[T]
	if err := dec.Decode(&req); err != nil {
		return zero, err
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}
