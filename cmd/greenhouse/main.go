package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Agrid-Dev/greenhouse/cmd/app"
	httpctrl "github.com/Agrid-Dev/greenhouse/internal/controllers/http"
	modbusctrl "github.com/Agrid-Dev/greenhouse/internal/controllers/modbus"
	mqttctrl "github.com/Agrid-Dev/greenhouse/internal/controllers/mqtt"
	"github.com/Agrid-Dev/greenhouse/internal/device"
	"github.com/Agrid-Dev/greenhouse/internal/display"
	"github.com/Agrid-Dev/greenhouse/internal/eventlog"
	"github.com/Agrid-Dev/greenhouse/internal/greenhouse"
	"github.com/Agrid-Dev/greenhouse/internal/sinks/kafkasink"
)

func main() {
	var (
		configPath  string
		printConfig bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file (.yaml/.yml/.json)")
	flag.BoolVar(&printConfig, "print-config", false, "print the effective configuration and exit")
	flag.Parse()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if printConfig {
		b, err := cfg.YAML()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Print(string(b))
		return
	}

	params, err := cfg.Params()
	if err != nil {
		log.Fatal(err)
	}

	logFile, err := eventlog.Create(cfg.EventLog.Dir, time.Now())
	if err != nil {
		log.Fatal(err)
	}
	defer logFile.Close()
	recent := eventlog.NewRecent(cfg.EventLog.Recent)

	// Network sinks need the engine (mqtt) or the run id (kafka), so they
	// are attached once both exist.
	var late eventlog.Multi
	sink := eventlog.Multi{logFile, recent, eventlog.SinkFunc(func(e eventlog.Entry) { late.Record(e) })}

	opts := []greenhouse.Option{greenhouse.WithSink(sink)}
	if cfg.Display.Enabled {
		opts = append(opts, greenhouse.WithRenderer(display.NewConsole(os.Stdout)))
	}
	engine, err := greenhouse.New(params, opts...)
	if err != nil {
		log.Fatal(err)
	}
	dev := device.New(cfg.DeviceID, engine)
	log.Printf("greenhouse %s run %s, event log %s", dev.ID, dev.RunID, logFile.Path())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var runners []func(context.Context) error

	if c := cfg.Controllers.HTTP; c.Enabled {
		hc := httpctrl.Config{
			Addr:           c.Addr,
			DeviceID:       dev.ID,
			RunID:          dev.RunID.String(),
			StreamInterval: c.StreamInterval,
		}
		if c.AccessLog {
			hc.AccessLog = os.Stderr
		}
		srv := httpctrl.New(dev.E, recent, hc)
		log.Printf("http listening on %s", c.Addr)
		runners = append(runners, srv.Run)
	}

	if c := cfg.Controllers.MQTT; c.Enabled {
		mc, err := mqttctrl.New(dev.E, mqttctrl.Config{
			DeviceID:        dev.ID,
			BrokerURL:       c.BrokerURL,
			ClientID:        c.ClientID,
			BaseTopic:       c.BaseTopic,
			QoS:             c.QoS,
			RetainSnapshot:  c.RetainSnapshot,
			PublishInterval: c.PublishInterval,
			PublishEvents:   c.PublishEvents,
			Username:        c.Username,
			Password:        c.Password,
		})
		if err != nil {
			log.Fatal(err)
		}
		late = append(late, mc)
		runners = append(runners, mc.Run)
	}

	if c := cfg.Controllers.MODBUS; c.Enabled {
		mb, err := modbusctrl.New(dev.E, modbusctrl.Config{
			DeviceID: dev.ID,
			Addr:     c.Addr,
			UnitID:   c.UnitID,
		})
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("modbus listening on %s (unit %d)", c.Addr, c.UnitID)
		runners = append(runners, mb.Run)
	}

	if c := cfg.Sinks.Kafka; c.Enabled {
		ks, err := kafkasink.New(kafkasink.Config{
			Brokers:  c.Brokers,
			Topic:    c.Topic,
			DeviceID: dev.ID,
			RunID:    dev.RunID.String(),
		})
		if err != nil {
			log.Fatal(err)
		}
		defer ks.Close()
		late = append(late, ks)
	}

	var wg sync.WaitGroup
	for _, run := range runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("controller exited: %v", err)
				cancel()
			}
		}()
	}

	if cfg.Simulation.Autostart {
		dev.E.Start()
	}
	_ = dev.E.Run(ctx)
	wg.Wait()

	if n := logFile.Failures(); n > 0 {
		log.Printf("event log: %d write(s) failed", n)
	}
}
