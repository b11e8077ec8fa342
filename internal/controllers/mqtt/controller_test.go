package mqttctrl

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Agrid-Dev/greenhouse/internal/eventlog"
	"github.com/Agrid-Dev/greenhouse/internal/greenhouse"
	"github.com/Agrid-Dev/greenhouse/internal/testutil"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeToken struct {
	err  error
	done chan struct{}
}

func (t fakeToken) Done() <-chan struct{} {
	if t.done == nil {
		t.done = make(chan struct{})
		close(t.done)
	}
	return t.done
}

func (t fakeToken) Wait() bool                       { return true }
func (t fakeToken) WaitTimeout(_ time.Duration) bool { return true }
func (t fakeToken) Error() error                     { return t.err }

type publishCall struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakeClient struct {
	publishes []publishCall
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() mqtt.Token    { return fakeToken{} }
func (c *fakeClient) Disconnect(_ uint)      {}
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = append([]byte(nil), v...)
	case string:
		b = []byte(v)
	default:
		// shouldn't happen in our controller, but keep it safe
		tmp, _ := json.Marshal(v)
		b = tmp
	}
	c.publishes = append(c.publishes, publishCall{
		topic: topic, qos: qos, retain: retained, payload: b,
	})
	return fakeToken{}
}
func (c *fakeClient) Subscribe(_ string, _ byte, _ mqtt.MessageHandler) mqtt.Token {
	return fakeToken{}
}
func (c *fakeClient) SubscribeMultiple(_ map[string]byte, _ mqtt.MessageHandler) mqtt.Token {
	return fakeToken{}
}
func (c *fakeClient) Unsubscribe(_ ...string) mqtt.Token       { return fakeToken{} }
func (c *fakeClient) AddRoute(_ string, _ mqtt.MessageHandler) {}
func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader  { return mqtt.ClientOptionsReader{} }

// ---- tests ----
func newDefaultSvc() *testutil.FakeGreenhouseService {
	return testutil.NewFakeGreenhouseService()
}

func newTestController(t *testing.T, svc *testutil.FakeGreenhouseService, cfg Config) (*Controller, *fakeClient) {
	t.Helper()
	if cfg.DeviceID == "" {
		cfg.DeviceID = "gh1"
	}
	c, err := New(svc, cfg)
	if err != nil {
		t.Fatal(err)
	}
	fc := &fakeClient{}
	c.setClient(fc)
	return c, fc
}

func TestNewDefaults(t *testing.T) {
	svc := newDefaultSvc()
	c, err := New(svc, Config{DeviceID: "gh1"})
	if err != nil {
		t.Fatal(err)
	}

	if c.cfg.BrokerURL != "tcp://localhost:1883" {
		t.Fatalf("expected default BrokerURL, got %q", c.cfg.BrokerURL)
	}
	if c.cfg.BaseTopic != "greenhouse/gh1" {
		t.Fatalf("expected default BaseTopic, got %q", c.cfg.BaseTopic)
	}
	if c.cfg.ClientID != "greenhouse-gh1" {
		t.Fatalf("expected default ClientID, got %q", c.cfg.ClientID)
	}
	if c.cfg.PublishInterval != 1*time.Second {
		t.Fatalf("expected default PublishInterval, got %v", c.cfg.PublishInterval)
	}
}

func TestNewValidation(t *testing.T) {
	svc := newDefaultSvc()

	if _, err := New(svc, Config{}); err == nil {
		t.Fatal("expected error when DeviceID missing")
	}

	if _, err := New(svc, Config{DeviceID: "x", QoS: 2}); err == nil {
		t.Fatal("expected error when QoS > 1")
	}
}

func TestTopicJoin(t *testing.T) {
	svc := newDefaultSvc()
	c, err := New(svc, Config{DeviceID: "gh1", BaseTopic: "greenhouse/gh1/"})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.topic("snapshot"); got != "greenhouse/gh1/snapshot" {
		t.Fatalf("expected topic without double slashes, got %q", got)
	}
}

func TestDecodeValueStrict(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		v, err := decodeValueStrict[bool]([]byte(`{"value": true}`))
		if err != nil {
			t.Fatal(err)
		}
		if !v {
			t.Fatalf("expected true, got %v", v)
		}
	})

	t.Run("missing value", func(t *testing.T) {
		_, err := decodeValueStrict[bool]([]byte(`{}`))
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := decodeValueStrict[string]([]byte(`{"value":"uv","extra":1}`))
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := decodeValueStrict[string]([]byte(`{"value":`))
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestOnMessage_IgnoresWrongPrefix(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := newTestController(t, svc, Config{})

	c.onMessage(nil, fakeMessage{
		topic:   "otherprefix/set/running",
		payload: []byte(`{"value":true}`),
	})

	if running, _ := svc.Calls(); len(running) != 0 {
		t.Fatal("expected SetRunning not called")
	}
}

func TestOnMessage_Running(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := newTestController(t, svc, Config{})

	c.onMessage(nil, fakeMessage{
		topic:   "greenhouse/gh1/set/running",
		payload: []byte(`{"value":true}`),
	})

	running, _ := svc.Calls()
	if len(running) != 1 || running[0] != true {
		t.Fatalf("expected SetRunning(true), got %v", running)
	}
	if !svc.Running() {
		t.Fatal("expected service running")
	}
}

func TestOnMessage_RunningInvalid_DoesNotCallService(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := newTestController(t, svc, Config{})

	c.onMessage(nil, fakeMessage{
		topic:   "greenhouse/gh1/set/running",
		payload: []byte(`{"value":"yes"}`),
	})

	if running, _ := svc.Calls(); len(running) != 0 {
		t.Fatalf("expected SetRunning not called, got %v", running)
	}
}

func TestOnMessage_Toggle(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := newTestController(t, svc, Config{})

	c.onMessage(nil, fakeMessage{
		topic:   "greenhouse/gh1/set/toggle",
		payload: []byte(`{"value":"co2"}`),
	})

	_, toggles := svc.Calls()
	if len(toggles) != 1 || toggles[0] != greenhouse.SubsystemCO2Lift {
		t.Fatalf("expected Toggle(co2), got %v", toggles)
	}
}

func TestOnMessage_ToggleInvalid_DoesNotCallService(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := newTestController(t, svc, Config{})

	c.onMessage(nil, fakeMessage{
		topic:   "greenhouse/gh1/set/toggle",
		payload: []byte(`{"value":"sprinkler"}`),
	})

	if _, toggles := svc.Calls(); len(toggles) != 0 {
		t.Fatalf("expected Toggle not called, got %v", toggles)
	}
}

// Service errors are swallowed by the controller.
func TestOnMessage_ServiceError_IsIgnored(t *testing.T) {
	svc := newDefaultSvc()
	svc.ToggleErr = errors.New("boom")
	c, _ := newTestController(t, svc, Config{})

	c.onMessage(nil, fakeMessage{
		topic:   "greenhouse/gh1/set/toggle",
		payload: []byte(`{"value":"uv"}`),
	})

	if _, toggles := svc.Calls(); len(toggles) != 1 {
		t.Fatal("expected Toggle called")
	}
}

func TestPublishSnapshot_PublishesJSON(t *testing.T) {
	svc := newDefaultSvc()
	c, fc := newTestController(t, svc, Config{QoS: 1, RetainSnapshot: true})

	c.publishSnapshot(svc.Get())

	if len(fc.publishes) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(fc.publishes))
	}

	p := fc.publishes[0]
	if p.topic != "greenhouse/gh1/snapshot" {
		t.Fatalf("expected snapshot topic, got %q", p.topic)
	}
	if p.qos != 1 || p.retain != true {
		t.Fatalf("expected qos=1 retain=true, got qos=%d retain=%v", p.qos, p.retain)
	}

	var got map[string]any
	if err := json.Unmarshal(p.payload, &got); err != nil {
		t.Fatalf("invalid published json: %v payload=%s", err, string(p.payload))
	}
	if got["co2_level"] != float64(650) {
		t.Fatalf("expected co2_level=650, got %v", got["co2_level"])
	}
	if got["cloudiness"] != float64(58) {
		t.Fatalf("expected cloudiness=58, got %v", got["cloudiness"])
	}
	ir, ok := got["ir"].(map[string]any)
	if !ok || ir["active"] != true {
		t.Fatalf("expected ir active, got %v", got["ir"])
	}
}

func TestPublishSnapshot_NoClient(t *testing.T) {
	svc := newDefaultSvc()
	c, err := New(svc, Config{DeviceID: "gh1"})
	if err != nil {
		t.Fatal(err)
	}
	// Must not panic before Run has connected.
	c.publishSnapshot(svc.Get())
	c.Record(eventlog.Entry{Message: "x"})
}

func TestRecord_PublishesEventLine(t *testing.T) {
	svc := newDefaultSvc()
	c, fc := newTestController(t, svc, Config{PublishEvents: true})

	at := time.Date(2026, 10, 14, 7, 0, 0, 0, time.UTC)
	c.Record(eventlog.Entry{Time: at, Message: "UV irradiation system disabled."})

	if len(fc.publishes) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(fc.publishes))
	}
	p := fc.publishes[0]
	if p.topic != "greenhouse/gh1/events" || p.retain {
		t.Fatalf("unexpected publish %+v", p)
	}
	var got eventDTO
	if err := json.Unmarshal(p.payload, &got); err != nil {
		t.Fatal(err)
	}
	if got.Line != "14.10.2026 07:00:00 - UV irradiation system disabled." {
		t.Fatalf("unexpected line %q", got.Line)
	}
}

func TestRecord_DisabledByDefault(t *testing.T) {
	svc := newDefaultSvc()
	c, fc := newTestController(t, svc, Config{})

	c.Record(eventlog.Entry{Message: "ignored"})
	if len(fc.publishes) != 0 {
		t.Fatalf("expected no publish, got %d", len(fc.publishes))
	}
}
