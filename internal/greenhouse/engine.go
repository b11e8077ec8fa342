package greenhouse

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/Agrid-Dev/greenhouse/internal/eventlog"
)

type Engine struct {
	mu     sync.Mutex
	params Params
	src    Source
	now    func() time.Time
	sink   eventlog.Sink
	views  []Renderer

	s    Snapshot
	stop chan struct{} // non-nil while running
}

type Option func(*Engine)

// WithSource replaces the random source.
func WithSource(src Source) Option {
	return func(e *Engine) { e.src = src }
}

// WithClock sets the wall clock used to pick the simulated day.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSink receives every log event.
func WithSink(s eventlog.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithRenderer registers a display collaborator.
func WithRenderer(r Renderer) Option {
	return func(e *Engine) { e.views = append(e.views, r) }
}

// New initializes the simulation and emits the initialization event.
func New(params Params, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{params: params, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.src == nil {
		e.src = newSource(params.Seed)
	}

	wall := e.now()
	start := time.Date(wall.Year(), wall.Month(), wall.Day(), 0, 0, 0, 0, wall.Location()).Add(params.StartOfDay)

	e.s = Snapshot{
		Time:             start,
		CO2Level:         between(e.src, InitialCO2Min, InitialCO2Max),
		Cloudiness:       between(e.src, InitialCloudinessMin, InitialCloudinessMax),
		LastIRActivation: start.Add(-IRCooldown),
	}
	if params.InitialCO2 != nil {
		e.s.CO2Level = *params.InitialCO2
	}
	if params.InitialCloudiness != nil {
		e.s.Cloudiness = *params.InitialCloudiness
	}

	e.logLocked(fmt.Sprintf("System initialized. CO₂: %d ppm, Cloudiness: %d%%", e.s.CO2Level, e.s.Cloudiness))
	return e, nil
}

func (e *Engine) Get() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stop != nil
}

func (e *Engine) TickInterval() time.Duration { return e.params.TickInterval }

// Start begins ticking. It returns false if the engine was already running.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop != nil {
		return false
	}
	stop := make(chan struct{})
	e.stop = stop
	e.s.Running = true
	e.logLocked("Simulation started")
	go e.loop(stop)
	return true
}

// Stop halts ticking. It returns false if the engine was not running.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop == nil {
		return false
	}
	close(e.stop)
	e.stop = nil
	e.s.Running = false
	e.logLocked("Simulation stopped")
	return true
}

// SetRunning starts or stops the engine and reports whether anything changed.
func (e *Engine) SetRunning(on bool) bool {
	if on {
		return e.Start()
	}
	return e.Stop()
}

// Run blocks until ctx is done, then stops the engine.
func (e *Engine) Run(ctx context.Context) error {
	<-ctx.Done()
	e.Stop()
	return ctx.Err()
}

func (e *Engine) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(e.params.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.mu.Lock()
			if e.stop != stop {
				// Stop won the race with this tick.
				e.mu.Unlock()
				return
			}
			snap := e.stepLocked()
			e.mu.Unlock()
			e.render(snap)
		}
	}
}

// Tick advances the simulation by one minute regardless of the running flag.
func (e *Engine) Tick() Snapshot {
	e.mu.Lock()
	snap := e.stepLocked()
	e.mu.Unlock()
	e.render(snap)
	return snap
}

func (e *Engine) render(s Snapshot) {
	for _, v := range e.views {
		v.Render(s)
	}
}

// Toggle flips a subsystem by hand and returns its new state.
func (e *Engine) Toggle(sub Subsystem) (bool, error) {
	if !sub.Valid() {
		return false, ErrInvalidSubsystem
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &e.s
	switch sub {
	case SubsystemUV:
		if s.UV.Active {
			s.UV = SubsystemState{}
			e.logLocked("UV irradiation system disabled manually.")
		} else {
			s.UV = SubsystemState{Active: true}
			e.logLocked("UV irradiation system enabled manually.")
		}
		return s.UV.Active, nil

	case SubsystemCO2Lift:
		if s.CO2Lift.Active {
			s.CO2Lift = SubsystemState{}
			e.logLocked("CO₂ lift system disabled manually.")
		} else {
			s.CO2Lift = SubsystemState{Active: true}
			s.StartCO2Level = s.CO2Level
			e.logLocked("CO₂ lift system enabled manually.")
		}
		return s.CO2Lift.Active, nil

	default:
		if s.IR.Active {
			used := kWh(e.src, IRManualMinKWh, IRManualMaxKWh)
			s.IR = SubsystemState{}
			s.LastIRActivation = s.Time
			e.recordConsumptionLocked(used)
			e.logLocked("IR heating disabled manually. Consumed: " + formatKWh(used) + " kWh")
		} else {
			s.IR = SubsystemState{Active: true}
			s.LastIRActivation = s.Time.Add(IRCooldown)
			e.logLocked("IR heating enabled manually.")
		}
		return s.IR.Active, nil
	}
}

func (e *Engine) recordConsumptionLocked(used float64) {
	e.s.LastIRConsumption = used
	e.s.TotalIRConsumption = math.Round((e.s.TotalIRConsumption+used)*100) / 100
}

func (e *Engine) logLocked(msg string) {
	if e.sink == nil {
		return
	}
	e.sink.Record(eventlog.Entry{Time: e.s.Time, Message: msg})
}

func formatKWh(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
