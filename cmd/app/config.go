package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/Agrid-Dev/greenhouse/internal/greenhouse"
)

const envPrefix = "GREENHOUSE_"

type Config struct {
	DeviceID string `koanf:"device_id" yaml:"device_id"`

	Simulation SimulationConfig `koanf:"simulation" yaml:"simulation"`
	EventLog   EventLogConfig   `koanf:"event_log" yaml:"event_log"`
	Display    DisplayConfig    `koanf:"display" yaml:"display"`

	Controllers ControllersConfig `koanf:"controllers" yaml:"controllers"`
	Sinks       SinksConfig       `koanf:"sinks" yaml:"sinks"`
}

type SimulationConfig struct {
	TickInterval time.Duration `koanf:"tick_interval" yaml:"tick_interval"`
	StartTime    string        `koanf:"start_time" yaml:"start_time"` // "HH:MM", simulated
	Autostart    bool          `koanf:"autostart" yaml:"autostart"`
	Seed         uint64        `koanf:"seed" yaml:"seed"`

	InitialCO2        *int `koanf:"initial_co2" yaml:"initial_co2,omitempty"`
	InitialCloudiness *int `koanf:"initial_cloudiness" yaml:"initial_cloudiness,omitempty"`
}

type EventLogConfig struct {
	Dir    string `koanf:"dir" yaml:"dir"`
	Recent int    `koanf:"recent" yaml:"recent"` // entries kept in memory for the API
}

type DisplayConfig struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
}

type ControllersConfig struct {
	HTTP   HTTPConfig   `koanf:"http" yaml:"http"`
	MQTT   MQTTConfig   `koanf:"mqtt" yaml:"mqtt"`
	MODBUS ModbusConfig `koanf:"modbus" yaml:"modbus"`
}

type HTTPConfig struct {
	Enabled        bool          `koanf:"enabled" yaml:"enabled"`
	Addr           string        `koanf:"addr" yaml:"addr"`
	StreamInterval time.Duration `koanf:"stream_interval" yaml:"stream_interval"`
	AccessLog      bool          `koanf:"access_log" yaml:"access_log"`
}

type MQTTConfig struct {
	Enabled         bool          `koanf:"enabled" yaml:"enabled"`
	BrokerURL       string        `koanf:"broker_url" yaml:"broker_url"`
	ClientID        string        `koanf:"client_id" yaml:"client_id"`
	BaseTopic       string        `koanf:"base_topic" yaml:"base_topic"`
	QoS             byte          `koanf:"qos" yaml:"qos"`
	RetainSnapshot  bool          `koanf:"retain_snapshot" yaml:"retain_snapshot"`
	PublishInterval time.Duration `koanf:"publish_interval" yaml:"publish_interval"`
	PublishEvents   bool          `koanf:"publish_events" yaml:"publish_events"`
	Username        string        `koanf:"username" yaml:"username"`
	Password        string        `koanf:"password" yaml:"password"`
}

type ModbusConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`
	UnitID  byte   `koanf:"unit_id" yaml:"unit_id"`
}

type SinksConfig struct {
	Kafka KafkaConfig `koanf:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `koanf:"enabled" yaml:"enabled"`
	Brokers []string `koanf:"brokers" yaml:"brokers"`
	Topic   string   `koanf:"topic" yaml:"topic"`
}

func defaultConfig() Config {
	return Config{
		DeviceID: "default",
		Simulation: SimulationConfig{
			TickInterval: time.Second,
			StartTime:    "05:30",
		},
		EventLog: EventLogConfig{Dir: ".", Recent: 200},
		Controllers: ControllersConfig{
			HTTP:   HTTPConfig{Enabled: true, Addr: ":8080", StreamInterval: time.Second},
			MQTT:   MQTTConfig{PublishInterval: time.Second},
			MODBUS: ModbusConfig{Addr: "127.0.0.1:1502", UnitID: 1},
		},
		Sinks: SinksConfig{Kafka: KafkaConfig{Topic: "greenhouse.events"}},
	}
}

// LoadConfig layers defaults, the config file (if present) and GREENHOUSE_* env vars.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return cfg, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			parser, err := parserFor(path)
			if err != nil {
				return cfg, err
			}
			if err := k.Load(file.Provider(path), parser); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		// Config file missing → use defaults
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = envKeyTransform(strings.TrimPrefix(key, envPrefix))
			if strings.HasSuffix(key, ".brokers") {
				return key, strings.Split(value, ",")
			}
			return key, value
		},
	}), nil)
	if err != nil {
		return cfg, fmt.Errorf("load env: %w", err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	// PORT is common in containers; an explicit addr wins.
	if v := os.Getenv("PORT"); v != "" && os.Getenv(envPrefix+"CONTROLLERS_HTTP_ADDR") == "" {
		cfg.Controllers.HTTP.Addr = ":" + v
	}
	if !cfg.Controllers.HTTP.Enabled && !cfg.Controllers.MQTT.Enabled && !cfg.Controllers.MODBUS.Enabled && !cfg.Display.Enabled {
		cfg.Controllers.HTTP.Enabled = true
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return kyaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config extension %q", ext)
	}
}

// envKeyTransform maps an env var name (prefix stripped) onto a koanf key:
// CONTROLLERS_HTTP_ADDR → controllers.http.addr, EVENT_LOG_DIR → event_log.dir.
func envKeyTransform(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	parts := strings.Split(s, "_")

	switch parts[0] {
	case "controllers", "sinks":
		if len(parts) < 3 {
			return s
		}
		return parts[0] + "." + parts[1] + "." + strings.Join(parts[2:], "_")
	case "simulation", "display":
		if len(parts) < 2 {
			return s
		}
		return parts[0] + "." + strings.Join(parts[1:], "_")
	case "event":
		if len(parts) < 3 || parts[1] != "log" {
			return s
		}
		return "event_log." + strings.Join(parts[2:], "_")
	}
	return s
}

// Params converts the simulation section into engine parameters.
func (c Config) Params() (greenhouse.Params, error) {
	p := greenhouse.DefaultParams()
	p.TickInterval = c.Simulation.TickInterval
	p.Seed = c.Simulation.Seed
	p.InitialCO2 = c.Simulation.InitialCO2
	p.InitialCloudiness = c.Simulation.InitialCloudiness

	if c.Simulation.StartTime != "" {
		t, err := time.Parse("15:04", c.Simulation.StartTime)
		if err != nil {
			return p, fmt.Errorf("invalid simulation.start_time %q: %w", c.Simulation.StartTime, err)
		}
		p.StartOfDay = time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// YAML renders the effective configuration.
func (c Config) YAML() ([]byte, error) {
	c.Controllers.MQTT.Password = redact(c.Controllers.MQTT.Password)
	return yaml.Marshal(c)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
